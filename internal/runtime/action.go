package runtime

import (
	"context"
	"encoding/json"

	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/results"
)

// Kind is the role an action plays in a flow. It decides which result
// variants the action may return.
type Kind string

const (
	KindTransform Kind = "TRANSFORM"
	KindLoad      Kind = "LOAD"
	KindDomain    Kind = "DOMAIN"
	KindEnrich    Kind = "ENRICH"
	KindFormat    Kind = "FORMAT"
	KindValidate  Kind = "VALIDATE"
	KindEgress    Kind = "EGRESS"
)

var allowedResults = map[Kind][]results.Type{
	KindTransform: {results.TypeTransform, results.TypeFilter, results.TypeReinject},
	KindLoad:      {results.TypeLoad, results.TypeLoadMany, results.TypeFilter, results.TypeReinject},
	KindDomain:    {results.TypeDomain},
	KindEnrich:    {results.TypeEnrich},
	KindFormat:    {results.TypeFormat, results.TypeFormatMany, results.TypeFilter},
	KindValidate:  {results.TypeValidate, results.TypeFilter},
	KindEgress:    {results.TypeEgress, results.TypeFilter},
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := allowedResults[k]
	return ok
}

// Allows reports whether an action of kind k may return a result of type t.
// Error results are always allowed.
func (k Kind) Allows(t results.Type) bool {
	if t == results.TypeError {
		return true
	}
	for _, allowed := range allowedResults[k] {
		if allowed == t {
			return true
		}
	}
	return false
}

// Descriptor is the static description of an action, published in the plugin
// manifest.
type Descriptor struct {
	// Name is the qualified action name. It doubles as the queue topic the
	// action consumes.
	Name                string
	Kind                Kind
	Description         string
	RequiresDomains     []string
	RequiresEnrichments []string
	// Schema is an optional JSON schema for the action parameters. When set,
	// parameters are validated before the action runs.
	Schema json.RawMessage
}

// Action is implemented by plugin authors. Execute returns exactly one
// result for the event or an error, which is converted into an error result.
type Action interface {
	Descriptor() Descriptor
	Execute(ctx context.Context, ev events.Event) (results.Result, error)
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx context.Context, ev events.Event) (results.Result, error)

type funcAction struct {
	desc Descriptor
	fn   ActionFunc
}

// NewAction builds an Action from a descriptor and a function.
func NewAction(desc Descriptor, fn ActionFunc) Action {
	return &funcAction{desc: desc, fn: fn}
}

func (a *funcAction) Descriptor() Descriptor { return a.desc }

func (a *funcAction) Execute(ctx context.Context, ev events.Event) (results.Result, error) {
	return a.fn(ctx, ev)
}
