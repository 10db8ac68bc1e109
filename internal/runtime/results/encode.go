package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/drblury/actionflow/internal/runtime/content"
	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/jsoncodec"
	"github.com/drblury/actionflow/internal/runtime/metadata"
)

// Envelope is the response published for one Event.
type Envelope struct {
	Did string
	// Action is the "{flow}.{action}" name from the Event context.
	Action string
	Start  time.Time
	Stop   time.Time
	Result Result
}

// NewEnvelope binds r to the Event context it answers.
func NewEnvelope(actx events.ActionContext, start, stop time.Time, r Result) Envelope {
	return Envelope{Did: actx.Did, Action: actx.Name, Start: start, Stop: stop, Result: r}
}

type wireContent struct {
	Name      string            `json:"name"`
	MediaType string            `json:"mediaType"`
	Segments  []content.Segment `json:"segments"`
}

type wireDomain struct {
	Annotations map[string]string `json:"annotations"`
}

type wireEnrich struct {
	Enrichments []events.Enrichment `json:"enrichments"`
	Annotations map[string]string   `json:"annotations"`
}

type wireError struct {
	Cause       string            `json:"cause"`
	Context     string            `json:"context"`
	Annotations map[string]string `json:"annotations"`
}

type wireFilter struct {
	Message string `json:"message"`
}

type wireFormat struct {
	Did      string            `json:"did,omitempty"`
	Content  wireContent       `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

type wireLoad struct {
	Did                string            `json:"did,omitempty"`
	Content            []wireContent     `json:"content"`
	Metadata           map[string]string `json:"metadata"`
	Domains            []events.Domain   `json:"domains"`
	Annotations        map[string]string `json:"annotations"`
	DeleteMetadataKeys []string          `json:"deleteMetadataKeys"`
}

type wireReinject struct {
	Filename string            `json:"filename"`
	Flow     string            `json:"flow"`
	Metadata map[string]string `json:"metadata"`
	Content  []wireContent     `json:"content"`
}

type wireTransform struct {
	Name               string            `json:"name,omitempty"`
	Content            []wireContent     `json:"content"`
	Metadata           map[string]string `json:"metadata"`
	Annotations        map[string]string `json:"annotations"`
	DeleteMetadataKeys []string          `json:"deleteMetadataKeys"`
}

// Encode renders the envelope as the JSON object the orchestrator parses.
// Every field of the variant is written, with empty maps as {} and empty
// lists as [].
func Encode(env Envelope) ([]byte, error) {
	if env.Result == nil {
		return nil, errors.New("results: envelope has no result")
	}
	out := map[string]any{
		"did":     env.Did,
		"action":  env.Action,
		"start":   epochSeconds(env.Start),
		"stop":    epochSeconds(env.Stop),
		"type":    string(env.Result.Type()),
		"metrics": cloneMetrics(env.Result.Metrics()),
	}
	if key := env.Result.Type().PayloadKey(); key != "" {
		out[key] = payloadOf(env.Result)
	}
	data, err := jsoncodec.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("results: encode %s envelope: %w", env.Result.Type(), err)
	}
	return data, nil
}

func payloadOf(r Result) any {
	switch v := r.(type) {
	case DomainResult:
		return wireDomain{Annotations: mapOf(v.annotations)}
	case EnrichResult:
		return wireEnrich{Enrichments: listOf(v.enrichments), Annotations: mapOf(v.annotations)}
	case ErrorResult:
		return wireError{Cause: v.cause, Context: v.context, Annotations: mapOf(v.annotations)}
	case FilterResult:
		return wireFilter{Message: v.message}
	case FormatResult:
		return formatWire("", v)
	case FormatManyResult:
		out := make([]wireFormat, 0, len(v.children))
		for _, c := range v.children {
			out = append(out, formatWire(c.Did, c.Format))
		}
		return out
	case LoadResult:
		return loadWire("", v)
	case LoadManyResult:
		out := make([]wireLoad, 0, len(v.children))
		for _, c := range v.children {
			out = append(out, loadWire(c.Did, c.Load))
		}
		return out
	case ReinjectResult:
		out := make([]wireReinject, 0, len(v.children))
		for _, c := range v.children {
			out = append(out, wireReinject{
				Filename: c.Filename,
				Flow:     c.Flow,
				Metadata: mapOf(c.Metadata),
				Content:  contentsWire(c.Content),
			})
		}
		return out
	case TransformResult:
		out := make([]wireTransform, 0, len(v.entries))
		for _, e := range v.entries {
			out = append(out, wireTransform{
				Name:               e.Name,
				Content:            contentsWire(e.Content),
				Metadata:           mapOf(e.Metadata),
				Annotations:        mapOf(e.Annotations),
				DeleteMetadataKeys: listOf(e.DeleteMetadataKeys),
			})
		}
		return out
	}
	return nil
}

func formatWire(did string, r FormatResult) wireFormat {
	return wireFormat{Did: did, Content: contentWire(r.content), Metadata: mapOf(r.metadata)}
}

func loadWire(did string, r LoadResult) wireLoad {
	return wireLoad{
		Did:                did,
		Content:            contentsWire(r.content),
		Metadata:           mapOf(r.metadata),
		Domains:            listOf(r.domains),
		Annotations:        mapOf(r.annotations),
		DeleteMetadataKeys: listOf(r.deleteMetadataKeys),
	}
}

func contentWire(c content.Content) wireContent {
	return wireContent{Name: c.Name, MediaType: c.MediaType, Segments: listOf(c.Segments)}
}

func contentsWire(cs []content.Content) []wireContent {
	out := make([]wireContent, 0, len(cs))
	for _, c := range cs {
		out = append(out, contentWire(c))
	}
	return out
}

func mapOf(m metadata.Metadata) map[string]string {
	return m.Clone()
}

func listOf[T any](in []T) []T {
	return append(make([]T, 0, len(in)), in...)
}

func epochSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func fromEpochSeconds(s float64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond))
}

type wireEnvelope struct {
	Did     string   `json:"did"`
	Action  string   `json:"action"`
	Start   float64  `json:"start"`
	Stop    float64  `json:"stop"`
	Type    Type     `json:"type"`
	Metrics []Metric `json:"metrics"`
}

// Decode parses an encoded envelope back into its Result. Timestamps keep
// microsecond precision.
func Decode(raw []byte) (Envelope, error) {
	var head wireEnvelope
	if err := jsoncodec.Unmarshal(raw, &head); err != nil {
		return Envelope{}, fmt.Errorf("results: decode envelope: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := jsoncodec.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, fmt.Errorf("results: decode envelope: %w", err)
	}

	env := Envelope{
		Did:    head.Did,
		Action: head.Action,
		Start:  fromEpochSeconds(head.Start),
		Stop:   fromEpochSeconds(head.Stop),
	}
	b := base{metrics: cloneMetrics(head.Metrics)}

	var payload json.RawMessage
	if key := head.Type.PayloadKey(); key != "" {
		var ok bool
		if payload, ok = fields[key]; !ok {
			return Envelope{}, fmt.Errorf("results: %s envelope has no %q payload", head.Type, key)
		}
	}

	r, err := decodeResult(head.Type, b, payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Result = r
	return env, nil
}

func decodeResult(t Type, b base, payload json.RawMessage) (Result, error) {
	unmarshal := func(dst any) error {
		if err := jsoncodec.Unmarshal(payload, dst); err != nil {
			return fmt.Errorf("results: decode %s payload: %w", t, err)
		}
		return nil
	}

	switch t {
	case TypeDomain:
		var w wireDomain
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return DomainResult{base: b, annotations: metadata.Metadata(w.Annotations).Clone()}, nil
	case TypeEgress:
		return decodeEgress(b)
	case TypeEnrich:
		var w wireEnrich
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return EnrichResult{base: b, enrichments: listOf(w.Enrichments), annotations: metadata.Metadata(w.Annotations).Clone()}, nil
	case TypeError:
		var w wireError
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return ErrorResult{base: b, cause: w.Cause, context: w.Context, annotations: metadata.Metadata(w.Annotations).Clone()}, nil
	case TypeFilter:
		var w wireFilter
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return FilterResult{base: b, message: w.Message}, nil
	case TypeFormat:
		var w wireFormat
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return formatFromWire(b, w), nil
	case TypeFormatMany:
		var ws []wireFormat
		if err := unmarshal(&ws); err != nil {
			return nil, err
		}
		children := make([]FormatChild, 0, len(ws))
		for _, w := range ws {
			children = append(children, FormatChild{Did: w.Did, Format: formatFromWire(base{}, w)})
		}
		return FormatManyResult{base: b, children: children}, nil
	case TypeLoad:
		var w wireLoad
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return loadFromWire(b, w), nil
	case TypeLoadMany:
		var ws []wireLoad
		if err := unmarshal(&ws); err != nil {
			return nil, err
		}
		children := make([]LoadChild, 0, len(ws))
		for _, w := range ws {
			children = append(children, LoadChild{Did: w.Did, Load: loadFromWire(base{}, w)})
		}
		return LoadManyResult{base: b, children: children}, nil
	case TypeReinject:
		var ws []wireReinject
		if err := unmarshal(&ws); err != nil {
			return nil, err
		}
		children := make([]ReinjectChild, 0, len(ws))
		for _, w := range ws {
			children = append(children, ReinjectChild{
				Filename: w.Filename,
				Flow:     w.Flow,
				Metadata: metadata.Metadata(w.Metadata).Clone(),
				Content:  contentsFromWire(w.Content),
			})
		}
		return ReinjectResult{base: b, children: children}, nil
	case TypeTransform:
		var ws []wireTransform
		if err := unmarshal(&ws); err != nil {
			return nil, err
		}
		entries := make([]TransformEntry, 0, len(ws))
		for _, w := range ws {
			entries = append(entries, TransformEntry{
				Name:               w.Name,
				Content:            contentsFromWire(w.Content),
				Metadata:           metadata.Metadata(w.Metadata).Clone(),
				Annotations:        metadata.Metadata(w.Annotations).Clone(),
				DeleteMetadataKeys: listOf(w.DeleteMetadataKeys),
			})
		}
		return TransformResult{base: b, entries: entries}, nil
	case TypeValidate:
		return ValidateResult{base: b}, nil
	}
	return nil, fmt.Errorf("results: unknown result type %q", t)
}

// decodeEgress rebuilds an egress result from its files_out and bytes_out
// metrics, in any order. Other metrics are rejected.
func decodeEgress(b base) (Result, error) {
	var files, sent *Metric
	for i := range b.metrics {
		m := &b.metrics[i]
		switch {
		case m.Name == FilesOut && files == nil:
			files = m
		case m.Name == BytesOut && sent == nil:
			sent = m
		default:
			return nil, fmt.Errorf("results: unexpected egress metric %s", m.Name)
		}
	}
	if files == nil || sent == nil {
		return nil, fmt.Errorf("results: egress envelope lacks %s and %s metrics", FilesOut, BytesOut)
	}
	destination, _ := sent.Tag(EndpointTag)
	return EgressResult{destination: destination, bytes: sent.Value}, nil
}

func formatFromWire(b base, w wireFormat) FormatResult {
	return FormatResult{base: b, content: contentFromWire(w.Content), metadata: metadata.Metadata(w.Metadata).Clone()}
}

func loadFromWire(b base, w wireLoad) LoadResult {
	return LoadResult{
		base:               b,
		content:            contentsFromWire(w.Content),
		metadata:           metadata.Metadata(w.Metadata).Clone(),
		domains:            listOf(w.Domains),
		annotations:        metadata.Metadata(w.Annotations).Clone(),
		deleteMetadataKeys: listOf(w.DeleteMetadataKeys),
	}
}

func contentFromWire(w wireContent) content.Content {
	return content.Content{Name: w.Name, MediaType: w.MediaType, Segments: listOf(w.Segments)}
}

func contentsFromWire(ws []wireContent) []content.Content {
	out := make([]content.Content, 0, len(ws))
	for _, w := range ws {
		out = append(out, contentFromWire(w))
	}
	return out
}
