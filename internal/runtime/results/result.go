// Package results defines the closed set of outcomes an action can produce and
// how they are encoded for the orchestrator.
package results

import (
	"fmt"

	"github.com/drblury/actionflow/internal/runtime/content"
	errorspkg "github.com/drblury/actionflow/internal/runtime/errors"
	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/metadata"
)

// Type is the discriminator written under "type" in the response envelope.
type Type string

const (
	TypeDomain     Type = "domain"
	TypeEgress     Type = "egress"
	TypeEnrich     Type = "enrich"
	TypeError      Type = "error"
	TypeFilter     Type = "filter"
	TypeFormat     Type = "format"
	TypeFormatMany Type = "formatMany"
	TypeLoad       Type = "load"
	TypeLoadMany   Type = "loadMany"
	TypeReinject   Type = "reinject"
	TypeTransform  Type = "transform"
	TypeValidate   Type = "validate"
)

// PayloadKey returns the envelope key the payload nests under, or "" for
// variants without a payload.
func (t Type) PayloadKey() string {
	switch t {
	case TypeEgress, TypeValidate:
		return ""
	default:
		return string(t)
	}
}

// Result is the outcome of one action invocation. The set of implementations
// is closed; only this package can add variants.
type Result interface {
	Type() Type
	Metrics() []Metric
	isResult()
}

type base struct {
	metrics []Metric
}

func (b base) Metrics() []Metric { return cloneMetrics(b.metrics) }

func (base) isResult() {}

func (b base) withMetrics(ms []Metric) base {
	out := cloneMetrics(b.metrics)
	return base{metrics: append(out, cloneMetrics(ms)...)}
}

// Validate reports results that cannot be encoded faithfully, such as a
// format result without content.
func Validate(r Result) error {
	if r == nil {
		return errorspkg.ErrNilResult
	}
	switch v := r.(type) {
	case FormatResult:
		return checkContent(v.content)
	case FormatManyResult:
		for i, child := range v.children {
			if err := checkContent(child.Format.content); err != nil {
				return fmt.Errorf("format child %d: %w", i, err)
			}
		}
	}
	return nil
}

func checkContent(c content.Content) error {
	if len(c.Segments) == 0 {
		return fmt.Errorf("format result content: %w", errorspkg.ErrEmptyContent)
	}
	return nil
}

// DomainResult indexes annotations against the unit of work.
type DomainResult struct {
	base
	annotations metadata.Metadata
}

func (DomainResult) Type() Type { return TypeDomain }

func (r DomainResult) Annotations() metadata.Metadata { return r.annotations.Clone() }

// EgressResult reports that content left the system. Its metrics are exactly
// files_out and bytes_out tagged with the destination.
type EgressResult struct {
	destination string
	bytes       int64
}

// NewEgress builds an egress result for bytesEgressed bytes sent to destination.
func NewEgress(destination string, bytesEgressed int64) EgressResult {
	return EgressResult{destination: destination, bytes: bytesEgressed}
}

func (EgressResult) Type() Type { return TypeEgress }

func (r EgressResult) Destination() string { return r.destination }

func (r EgressResult) Bytes() int64 { return r.bytes }

func (r EgressResult) Metrics() []Metric {
	return []Metric{
		NewMetric(FilesOut, 1, EndpointTag, r.destination),
		NewMetric(BytesOut, r.bytes, EndpointTag, r.destination),
	}
}

func (EgressResult) isResult() {}

// EnrichResult adds enrichments to the unit of work.
type EnrichResult struct {
	base
	enrichments []events.Enrichment
	annotations metadata.Metadata
}

func (EnrichResult) Type() Type { return TypeEnrich }

func (r EnrichResult) Enrichments() []events.Enrichment {
	return append([]events.Enrichment{}, r.enrichments...)
}

func (r EnrichResult) Annotations() metadata.Metadata { return r.annotations.Clone() }

// ErrorResult terminates processing of the unit of work.
type ErrorResult struct {
	base
	cause       string
	context     string
	annotations metadata.Metadata
}

// NewError builds an error result. errContext holds the diagnostic detail,
// usually a message followed by a stack trace.
func NewError(cause, errContext string) ErrorResult {
	return ErrorResult{cause: cause, context: errContext, annotations: metadata.Metadata{}}
}

func (ErrorResult) Type() Type { return TypeError }

func (r ErrorResult) Cause() string { return r.cause }

func (r ErrorResult) Context() string { return r.context }

func (r ErrorResult) Annotations() metadata.Metadata { return r.annotations.Clone() }

// WithAnnotation returns a copy with key set to value.
func (r ErrorResult) WithAnnotation(key, value string) ErrorResult {
	r.annotations = r.annotations.With(key, value)
	return r
}

// WithMetrics returns a copy carrying additional metrics.
func (r ErrorResult) WithMetrics(ms ...Metric) ErrorResult {
	r.base = r.base.withMetrics(ms)
	return r
}

// FilterResult deliberately drops the unit of work.
type FilterResult struct {
	base
	message string
}

// NewFilter builds a filter result with a human readable reason.
func NewFilter(message string) FilterResult {
	return FilterResult{message: message}
}

func (FilterResult) Type() Type { return TypeFilter }

func (r FilterResult) Message() string { return r.message }

// WithMetrics returns a copy carrying additional metrics.
func (r FilterResult) WithMetrics(ms ...Metric) FilterResult {
	r.base = r.base.withMetrics(ms)
	return r
}

// FormatResult carries the single formatted content.
type FormatResult struct {
	base
	content  content.Content
	metadata metadata.Metadata
}

func (FormatResult) Type() Type { return TypeFormat }

func (r FormatResult) Content() content.Content { return r.content.Copy() }

func (r FormatResult) Metadata() metadata.Metadata { return r.metadata.Clone() }

// FormatChild is one entry of a FormatManyResult.
type FormatChild struct {
	Did    string
	Format FormatResult
}

// FormatManyResult splits the unit of work into several formatted children.
type FormatManyResult struct {
	base
	children []FormatChild
}

func (FormatManyResult) Type() Type { return TypeFormatMany }

func (r FormatManyResult) Children() []FormatChild {
	return append([]FormatChild{}, r.children...)
}

// LoadResult carries loaded content, metadata and domains.
type LoadResult struct {
	base
	content            []content.Content
	metadata           metadata.Metadata
	domains            []events.Domain
	annotations        metadata.Metadata
	deleteMetadataKeys []string
}

func (LoadResult) Type() Type { return TypeLoad }

func (r LoadResult) Content() []content.Content { return copyContents(r.content) }

func (r LoadResult) Metadata() metadata.Metadata { return r.metadata.Clone() }

func (r LoadResult) Domains() []events.Domain { return append([]events.Domain{}, r.domains...) }

func (r LoadResult) Annotations() metadata.Metadata { return r.annotations.Clone() }

func (r LoadResult) DeleteMetadataKeys() []string {
	return append([]string{}, r.deleteMetadataKeys...)
}

// LoadChild is one entry of a LoadManyResult.
type LoadChild struct {
	Did  string
	Load LoadResult
}

// LoadManyResult splits the unit of work into several loaded children.
type LoadManyResult struct {
	base
	children []LoadChild
}

func (LoadManyResult) Type() Type { return TypeLoadMany }

func (r LoadManyResult) Children() []LoadChild {
	return append([]LoadChild{}, r.children...)
}

// ReinjectChild is a new unit of work handed back to a flow.
type ReinjectChild struct {
	Filename string
	Flow     string
	Metadata metadata.Metadata
	Content  []content.Content
}

// ReinjectResult reinjects new units of work into the system.
type ReinjectResult struct {
	base
	children []ReinjectChild
}

func (ReinjectResult) Type() Type { return TypeReinject }

func (r ReinjectResult) Children() []ReinjectChild {
	out := make([]ReinjectChild, 0, len(r.children))
	for _, c := range r.children {
		out = append(out, c.clone())
	}
	return out
}

func (c ReinjectChild) clone() ReinjectChild {
	return ReinjectChild{
		Filename: c.Filename,
		Flow:     c.Flow,
		Metadata: c.Metadata.Clone(),
		Content:  copyContents(c.Content),
	}
}

// TransformEntry is one output of a transform. Name is only set for entries
// added by name through a TransformManyBuilder.
type TransformEntry struct {
	Name               string
	Content            []content.Content
	Metadata           metadata.Metadata
	Annotations        metadata.Metadata
	DeleteMetadataKeys []string
}

func (e TransformEntry) clone() TransformEntry {
	return TransformEntry{
		Name:               e.Name,
		Content:            copyContents(e.Content),
		Metadata:           e.Metadata.Clone(),
		Annotations:        e.Annotations.Clone(),
		DeleteMetadataKeys: append([]string{}, e.DeleteMetadataKeys...),
	}
}

// TransformResult carries one or more transformed outputs in insertion order.
type TransformResult struct {
	base
	entries []TransformEntry
}

func (TransformResult) Type() Type { return TypeTransform }

func (r TransformResult) Entries() []TransformEntry {
	out := make([]TransformEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.clone())
	}
	return out
}

// ValidateResult signals the unit of work passed validation.
type ValidateResult struct {
	base
}

// NewValidate builds a validate result.
func NewValidate() ValidateResult { return ValidateResult{} }

func (ValidateResult) Type() Type { return TypeValidate }

// WithMetrics returns a copy carrying additional metrics.
func (r ValidateResult) WithMetrics(ms ...Metric) ValidateResult {
	r.base = r.base.withMetrics(ms)
	return r
}

func copyContents(cs []content.Content) []content.Content {
	out := make([]content.Content, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Copy())
	}
	return out
}
