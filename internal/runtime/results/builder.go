package results

import (
	"context"

	"github.com/drblury/actionflow/internal/runtime/content"
	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/ids"
	"github.com/drblury/actionflow/internal/runtime/metadata"
)

// Builders are owned by a single action invocation. They are not safe for
// concurrent use; call Result to obtain an immutable value.

type accumulator struct {
	actx    events.ActionContext
	metrics []Metric
}

func (a *accumulator) finish() base {
	return base{metrics: cloneMetrics(a.metrics)}
}

func (a *accumulator) save(ctx context.Context, data []byte, name, mediaType string) (content.Content, error) {
	return a.actx.SaveBytes(ctx, data, name, mediaType)
}

// DomainBuilder accumulates a DomainResult.
type DomainBuilder struct {
	accumulator
	annotations metadata.Metadata
}

// NewDomain starts a DomainResult bound to actx.
func NewDomain(actx events.ActionContext) *DomainBuilder {
	return &DomainBuilder{accumulator: accumulator{actx: actx}, annotations: metadata.Metadata{}}
}

func (b *DomainBuilder) Annotate(key, value string) *DomainBuilder {
	b.annotations[key] = value
	return b
}

func (b *DomainBuilder) AddMetric(m Metric) *DomainBuilder {
	b.metrics = append(b.metrics, m)
	return b
}

func (b *DomainBuilder) Result() DomainResult {
	return DomainResult{base: b.finish(), annotations: b.annotations.Clone()}
}

// EnrichBuilder accumulates an EnrichResult.
type EnrichBuilder struct {
	accumulator
	enrichments []events.Enrichment
	annotations metadata.Metadata
}

// NewEnrich starts an EnrichResult bound to actx.
func NewEnrich(actx events.ActionContext) *EnrichBuilder {
	return &EnrichBuilder{accumulator: accumulator{actx: actx}, annotations: metadata.Metadata{}}
}

func (b *EnrichBuilder) Enrich(name, value, mediaType string) *EnrichBuilder {
	b.enrichments = append(b.enrichments, events.Enrichment{Name: name, Value: value, MediaType: mediaType})
	return b
}

func (b *EnrichBuilder) Annotate(key, value string) *EnrichBuilder {
	b.annotations[key] = value
	return b
}

func (b *EnrichBuilder) AddMetric(m Metric) *EnrichBuilder {
	b.metrics = append(b.metrics, m)
	return b
}

func (b *EnrichBuilder) Result() EnrichResult {
	return EnrichResult{
		base:        b.finish(),
		enrichments: append([]events.Enrichment{}, b.enrichments...),
		annotations: b.annotations.Clone(),
	}
}

// FormatBuilder accumulates a FormatResult. Setting content twice keeps the
// last value.
type FormatBuilder struct {
	accumulator
	content  content.Content
	metadata metadata.Metadata
}

// NewFormat starts a FormatResult bound to actx.
func NewFormat(actx events.ActionContext) *FormatBuilder {
	return &FormatBuilder{accumulator: accumulator{actx: actx}, metadata: metadata.Metadata{}}
}

func (b *FormatBuilder) SetContent(c content.Content) *FormatBuilder {
	b.content = c.Copy()
	return b
}

// SaveBytes stores data and uses it as the formatted content.
func (b *FormatBuilder) SaveBytes(ctx context.Context, data []byte, name, mediaType string) error {
	c, err := b.save(ctx, data, name, mediaType)
	if err != nil {
		return err
	}
	b.content = c
	return nil
}

// SaveString stores s and uses it as the formatted content.
func (b *FormatBuilder) SaveString(ctx context.Context, s, name, mediaType string) error {
	return b.SaveBytes(ctx, []byte(s), name, mediaType)
}

func (b *FormatBuilder) AddMetadata(key, value string) *FormatBuilder {
	b.metadata[key] = value
	return b
}

func (b *FormatBuilder) AddAllMetadata(md map[string]string) *FormatBuilder {
	for k, v := range md {
		b.metadata[k] = v
	}
	return b
}

func (b *FormatBuilder) AddMetric(m Metric) *FormatBuilder {
	b.metrics = append(b.metrics, m)
	return b
}

func (b *FormatBuilder) Result() FormatResult {
	return FormatResult{base: b.finish(), content: b.content.Copy(), metadata: b.metadata.Clone()}
}

// FormatManyBuilder accumulates a FormatManyResult.
type FormatManyBuilder struct {
	accumulator
	children []FormatChild
}

// NewFormatMany starts a FormatManyResult bound to actx.
func NewFormatMany(actx events.ActionContext) *FormatManyBuilder {
	return &FormatManyBuilder{accumulator: accumulator{actx: actx}}
}

// Add appends a child under a newly generated did and returns that did.
// Metrics recorded on child are reported by the parent.
func (b *FormatManyBuilder) Add(child *FormatBuilder) string {
	did := ids.NewDid()
	format := child.Result()
	format.base = base{}
	b.children = append(b.children, FormatChild{Did: did, Format: format})
	b.metrics = append(b.metrics, child.metrics...)
	return did
}

func (b *FormatManyBuilder) AddMetric(m Metric) *FormatManyBuilder {
	b.metrics = append(b.metrics, m)
	return b
}

func (b *FormatManyBuilder) Result() FormatManyResult {
	return FormatManyResult{base: b.finish(), children: append([]FormatChild{}, b.children...)}
}

// LoadBuilder accumulates a LoadResult.
type LoadBuilder struct {
	accumulator
	content            []content.Content
	metadata           metadata.Metadata
	domains            []events.Domain
	annotations        metadata.Metadata
	deleteMetadataKeys []string
}

// NewLoad starts a LoadResult bound to actx.
func NewLoad(actx events.ActionContext) *LoadBuilder {
	return &LoadBuilder{
		accumulator: accumulator{actx: actx},
		metadata:    metadata.Metadata{},
		annotations: metadata.Metadata{},
	}
}

// AddContent appends one or more contents in call order.
func (b *LoadBuilder) AddContent(cs ...content.Content) *LoadBuilder {
	b.content = append(b.content, copyContents(cs)...)
	return b
}

// SaveBytes stores data and appends it as content.
func (b *LoadBuilder) SaveBytes(ctx context.Context, data []byte, name, mediaType string) error {
	c, err := b.save(ctx, data, name, mediaType)
	if err != nil {
		return err
	}
	b.content = append(b.content, c)
	return nil
}

// SaveString stores s and appends it as content.
func (b *LoadBuilder) SaveString(ctx context.Context, s, name, mediaType string) error {
	return b.SaveBytes(ctx, []byte(s), name, mediaType)
}

func (b *LoadBuilder) AddMetadata(key, value string) *LoadBuilder {
	b.metadata[key] = value
	return b
}

func (b *LoadBuilder) AddAllMetadata(md map[string]string) *LoadBuilder {
	for k, v := range md {
		b.metadata[k] = v
	}
	return b
}

func (b *LoadBuilder) AddDomain(name, value, mediaType string) *LoadBuilder {
	b.domains = append(b.domains, events.Domain{Name: name, Value: value, MediaType: mediaType})
	return b
}

func (b *LoadBuilder) Annotate(key, value string) *LoadBuilder {
	b.annotations[key] = value
	return b
}

// DeleteMetadataKey records keys to remove downstream. Duplicates are kept.
func (b *LoadBuilder) DeleteMetadataKey(keys ...string) *LoadBuilder {
	b.deleteMetadataKeys = append(b.deleteMetadataKeys, keys...)
	return b
}

func (b *LoadBuilder) AddMetric(m Metric) *LoadBuilder {
	b.metrics = append(b.metrics, m)
	return b
}

func (b *LoadBuilder) Result() LoadResult {
	return LoadResult{
		base:               b.finish(),
		content:            copyContents(b.content),
		metadata:           b.metadata.Clone(),
		domains:            append([]events.Domain{}, b.domains...),
		annotations:        b.annotations.Clone(),
		deleteMetadataKeys: append([]string{}, b.deleteMetadataKeys...),
	}
}

// LoadManyBuilder accumulates a LoadManyResult.
type LoadManyBuilder struct {
	accumulator
	children []LoadChild
}

// NewLoadMany starts a LoadManyResult bound to actx.
func NewLoadMany(actx events.ActionContext) *LoadManyBuilder {
	return &LoadManyBuilder{accumulator: accumulator{actx: actx}}
}

// Add appends a child under a newly generated did and returns that did.
func (b *LoadManyBuilder) Add(child *LoadBuilder) string {
	did := ids.NewDid()
	b.AddWithDid(did, child)
	return did
}

// AddWithDid appends a child under a caller supplied did. Metrics recorded
// on child are reported by the parent.
func (b *LoadManyBuilder) AddWithDid(did string, child *LoadBuilder) *LoadManyBuilder {
	load := child.Result()
	load.base = base{}
	b.children = append(b.children, LoadChild{Did: did, Load: load})
	b.metrics = append(b.metrics, child.metrics...)
	return b
}

func (b *LoadManyBuilder) AddMetric(m Metric) *LoadManyBuilder {
	b.metrics = append(b.metrics, m)
	return b
}

func (b *LoadManyBuilder) Result() LoadManyResult {
	return LoadManyResult{base: b.finish(), children: append([]LoadChild{}, b.children...)}
}

// ReinjectBuilder accumulates a ReinjectResult.
type ReinjectBuilder struct {
	accumulator
	children []ReinjectChild
}

// NewReinject starts a ReinjectResult bound to actx.
func NewReinject(actx events.ActionContext) *ReinjectBuilder {
	return &ReinjectBuilder{accumulator: accumulator{actx: actx}}
}

func (b *ReinjectBuilder) AddChild(filename, flow string, cs []content.Content, md map[string]string) *ReinjectBuilder {
	b.children = append(b.children, ReinjectChild{
		Filename: filename,
		Flow:     flow,
		Metadata: metadata.Metadata(md).Clone(),
		Content:  copyContents(cs),
	})
	return b
}

// SaveChild stores data and reinjects it as a single-content child.
func (b *ReinjectBuilder) SaveChild(ctx context.Context, filename, flow string, data []byte, mediaType string, md map[string]string) error {
	c, err := b.save(ctx, data, filename, mediaType)
	if err != nil {
		return err
	}
	b.AddChild(filename, flow, []content.Content{c}, md)
	return nil
}

func (b *ReinjectBuilder) AddMetric(m Metric) *ReinjectBuilder {
	b.metrics = append(b.metrics, m)
	return b
}

func (b *ReinjectBuilder) Result() ReinjectResult {
	children := make([]ReinjectChild, 0, len(b.children))
	for _, c := range b.children {
		children = append(children, c.clone())
	}
	return ReinjectResult{base: b.finish(), children: children}
}

// TransformBuilder accumulates a single-entry TransformResult.
type TransformBuilder struct {
	accumulator
	entry TransformEntry
}

// NewTransform starts a TransformResult bound to actx.
func NewTransform(actx events.ActionContext) *TransformBuilder {
	return &TransformBuilder{
		accumulator: accumulator{actx: actx},
		entry:       TransformEntry{Metadata: metadata.Metadata{}, Annotations: metadata.Metadata{}},
	}
}

// AddContent appends one or more contents in call order.
func (b *TransformBuilder) AddContent(cs ...content.Content) *TransformBuilder {
	b.entry.Content = append(b.entry.Content, copyContents(cs)...)
	return b
}

// SaveBytes stores data and appends it as content.
func (b *TransformBuilder) SaveBytes(ctx context.Context, data []byte, name, mediaType string) error {
	c, err := b.save(ctx, data, name, mediaType)
	if err != nil {
		return err
	}
	b.entry.Content = append(b.entry.Content, c)
	return nil
}

// SaveString stores s and appends it as content.
func (b *TransformBuilder) SaveString(ctx context.Context, s, name, mediaType string) error {
	return b.SaveBytes(ctx, []byte(s), name, mediaType)
}

func (b *TransformBuilder) AddMetadata(key, value string) *TransformBuilder {
	b.entry.Metadata[key] = value
	return b
}

func (b *TransformBuilder) AddAllMetadata(md map[string]string) *TransformBuilder {
	for k, v := range md {
		b.entry.Metadata[k] = v
	}
	return b
}

func (b *TransformBuilder) Annotate(key, value string) *TransformBuilder {
	b.entry.Annotations[key] = value
	return b
}

// DeleteMetadataKey records keys to remove downstream. Duplicates are kept.
func (b *TransformBuilder) DeleteMetadataKey(keys ...string) *TransformBuilder {
	b.entry.DeleteMetadataKeys = append(b.entry.DeleteMetadataKeys, keys...)
	return b
}

func (b *TransformBuilder) AddMetric(m Metric) *TransformBuilder {
	b.metrics = append(b.metrics, m)
	return b
}

func (b *TransformBuilder) Result() TransformResult {
	return TransformResult{base: b.finish(), entries: []TransformEntry{b.entry.clone()}}
}

// TransformManyBuilder accumulates a TransformResult with several entries.
type TransformManyBuilder struct {
	accumulator
	entries []TransformEntry
}

// NewTransformMany starts a multi-entry TransformResult bound to actx.
func NewTransformMany(actx events.ActionContext) *TransformManyBuilder {
	return &TransformManyBuilder{accumulator: accumulator{actx: actx}}
}

// Add appends an unnamed entry. Metrics recorded on child are kept.
func (b *TransformManyBuilder) Add(child *TransformBuilder) *TransformManyBuilder {
	return b.AddNamed("", child)
}

// AddNamed appends an entry that carries name on the wire.
func (b *TransformManyBuilder) AddNamed(name string, child *TransformBuilder) *TransformManyBuilder {
	entry := child.entry.clone()
	entry.Name = name
	b.entries = append(b.entries, entry)
	b.metrics = append(b.metrics, child.metrics...)
	return b
}

func (b *TransformManyBuilder) AddMetric(m Metric) *TransformManyBuilder {
	b.metrics = append(b.metrics, m)
	return b
}

func (b *TransformManyBuilder) Result() TransformResult {
	entries := make([]TransformEntry, 0, len(b.entries))
	for _, e := range b.entries {
		entries = append(entries, e.clone())
	}
	return TransformResult{base: b.finish(), entries: entries}
}
