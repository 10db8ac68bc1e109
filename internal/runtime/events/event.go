// Package events holds the unit of work handed to an action and the decoding
// of the orchestrator's work items.
package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/drblury/actionflow/internal/runtime/content"
	"github.com/drblury/actionflow/internal/runtime/metadata"
)

// Domain is a named, typed value attached to a unit of work.
type Domain struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	MediaType string `json:"mediaType"`
}

// Enrichment has the shape of a Domain but is produced by enrich actions.
type Enrichment struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	MediaType string `json:"mediaType"`
}

// DeltaFileMessage is one input of an Event.
type DeltaFileMessage struct {
	SourceFilename string
	Metadata       metadata.Metadata
	SourceMetadata metadata.Metadata
	Content        []content.Content
	Domains        []Domain
	Enrichments    []Enrichment
}

// ContentAt returns the content at index i.
func (m DeltaFileMessage) ContentAt(i int) (content.Content, error) {
	if i < 0 || i >= len(m.Content) {
		return content.Content{}, &ExpectedContentError{Index: i, Size: len(m.Content)}
	}
	return m.Content[i], nil
}

// FirstContent is ContentAt(0).
func (m DeltaFileMessage) FirstContent() (content.Content, error) {
	return m.ContentAt(0)
}

// Domain returns the first domain with the given name.
func (m DeltaFileMessage) Domain(name string) (Domain, error) {
	for _, d := range m.Domains {
		if d.Name == name {
			return d, nil
		}
	}
	return Domain{}, &MissingDomainError{Name: name}
}

// Enrichment returns the first enrichment with the given name.
func (m DeltaFileMessage) Enrichment(name string) (Enrichment, error) {
	for _, e := range m.Enrichments {
		if e.Name == name {
			return e, nil
		}
	}
	return Enrichment{}, &MissingEnrichmentError{Name: name}
}

// MetadataValue returns the metadata value for key.
func (m DeltaFileMessage) MetadataValue(key string) (string, error) {
	v, ok := m.Metadata.Lookup(key)
	if !ok {
		return "", &MissingMetadataError{Key: key}
	}
	return v, nil
}

// MetadataOr returns the metadata value for key or def when absent.
func (m DeltaFileMessage) MetadataOr(key, def string) string {
	if v, ok := m.Metadata.Lookup(key); ok {
		return v
	}
	return def
}

// SourceMetadataValue returns the ingress metadata value for key.
func (m DeltaFileMessage) SourceMetadataValue(key string) (string, error) {
	v, ok := m.SourceMetadata.Lookup(key)
	if !ok {
		return "", &MissingSourceMetadataError{Key: key}
	}
	return v, nil
}

// ActionContext identifies one invocation of an action.
type ActionContext struct {
	Did string
	// Name is the "{flow}.{action}" name carried by the work item.
	Name        string
	Flow        string
	Action      string
	IngressFlow string
	EgressFlow  string
	SystemName  string
	Hostname    string
	// ActionVersion is the version of the plugin hosting the action.
	ActionVersion string
	Storage       content.Storage
}

// SplitName splits "{flow}.{action}" at the first dot.
func SplitName(name string) (flow, action string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// SaveBytes stores data for this unit of work.
func (c ActionContext) SaveBytes(ctx context.Context, data []byte, name, mediaType string) (content.Content, error) {
	return content.Save(ctx, c.Storage, c.Did, data, name, mediaType)
}

// SaveString stores s for this unit of work.
func (c ActionContext) SaveString(ctx context.Context, s, name, mediaType string) (content.Content, error) {
	return c.SaveBytes(ctx, []byte(s), name, mediaType)
}

// LoadBytes reads the bytes behind c.
func (c ActionContext) LoadBytes(ctx context.Context, ct content.Content) ([]byte, error) {
	return content.Load(ctx, c.Storage, ct)
}

// LoadString reads the bytes behind c as a string.
func (c ActionContext) LoadString(ctx context.Context, ct content.Content) (string, error) {
	data, err := c.LoadBytes(ctx, ct)
	return string(data), err
}

// Event is the unit of work delivered to an action. Treat it as read only.
type Event struct {
	Messages      []DeltaFileMessage
	Context       ActionContext
	Params        json.RawMessage
	QueueName     string
	ReturnAddress string
}

// Message returns the first message, or an empty one when there is none.
func (e Event) Message() DeltaFileMessage {
	if len(e.Messages) == 0 {
		return DeltaFileMessage{Metadata: metadata.Metadata{}}
	}
	return e.Messages[0]
}
