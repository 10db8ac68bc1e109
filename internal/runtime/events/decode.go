package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/drblury/actionflow/internal/runtime/content"
	errorspkg "github.com/drblury/actionflow/internal/runtime/errors"
	"github.com/drblury/actionflow/internal/runtime/jsoncodec"
	"github.com/drblury/actionflow/internal/runtime/metadata"
)

var (
	errMissingDid  = errors.New("events: actionContext.did is required")
	errMissingName = errors.New("events: actionContext.name is required")
)

type wireMessage struct {
	SourceFilename string            `json:"sourceFilename"`
	Metadata       map[string]string `json:"metadata"`
	SourceMetadata map[string]string `json:"sourceMetadata"`
	ContentList    []content.Content `json:"contentList"`
	Domains        []Domain          `json:"domains"`
	Enrichments    []Enrichment      `json:"enrichments"`
}

type wireContext struct {
	Did         string `json:"did"`
	Name        string `json:"name"`
	IngressFlow string `json:"ingressFlow"`
	EgressFlow  string `json:"egressFlow"`
	SystemName  string `json:"systemName"`
}

type wireEvent struct {
	DeltaFileMessages []wireMessage   `json:"deltaFileMessages"`
	ActionContext     wireContext     `json:"actionContext"`
	ActionParams      json.RawMessage `json:"actionParams"`
	QueueName         string          `json:"queueName"`
	ReturnAddress     string          `json:"returnAddress"`
}

// Decode parses a raw work item into an Event bound to hostname and storage.
func Decode(raw []byte, hostname string, storage content.Storage) (Event, error) {
	if len(raw) == 0 {
		return Event{}, errorspkg.ErrEventPayloadRequired
	}
	var w wireEvent
	if err := jsoncodec.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("events: decode work item: %w", err)
	}
	if w.ActionContext.Did == "" {
		return Event{}, errMissingDid
	}
	if w.ActionContext.Name == "" {
		return Event{}, errMissingName
	}

	flow, action := SplitName(w.ActionContext.Name)
	ev := Event{
		Context: ActionContext{
			Did:         w.ActionContext.Did,
			Name:        w.ActionContext.Name,
			Flow:        flow,
			Action:      action,
			IngressFlow: w.ActionContext.IngressFlow,
			EgressFlow:  w.ActionContext.EgressFlow,
			SystemName:  w.ActionContext.SystemName,
			Hostname:    hostname,
			Storage:     storage,
		},
		Params:        w.ActionParams,
		QueueName:     w.QueueName,
		ReturnAddress: w.ReturnAddress,
	}
	if len(ev.Params) == 0 || string(ev.Params) == "null" {
		ev.Params = json.RawMessage(`{}`)
	}

	// An item with unusable content still carries a did, so the event is
	// returned alongside the error and the caller can answer for it.
	var contentErr error
	ev.Messages = make([]DeltaFileMessage, 0, len(w.DeltaFileMessages))
	for i, m := range w.DeltaFileMessages {
		for j, c := range m.ContentList {
			if len(c.Segments) == 0 && contentErr == nil {
				contentErr = &EmptyContentError{Message: i, Index: j, Name: c.Name}
			}
		}
		ev.Messages = append(ev.Messages, DeltaFileMessage{
			SourceFilename: m.SourceFilename,
			Metadata:       metadata.Metadata(m.Metadata).Clone(),
			SourceMetadata: metadata.Metadata(m.SourceMetadata).Clone(),
			Content:        m.ContentList,
			Domains:        m.Domains,
			Enrichments:    m.Enrichments,
		})
	}
	return ev, contentErr
}
