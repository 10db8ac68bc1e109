package events

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/drblury/actionflow/internal/runtime/jsoncodec"
)

// ParameterError reports action parameters that do not decode or do not
// satisfy the action's schema.
type ParameterError struct {
	Err error
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid action parameters: %v", e.Err)
}

func (e *ParameterError) Unwrap() error { return e.Err }

// DecodeParams decodes the event parameters into T.
func DecodeParams[T any](ev Event) (T, error) {
	var out T
	raw := ev.Params
	if len(raw) == 0 {
		raw = []byte(`{}`)
	}
	if err := jsoncodec.Unmarshal(raw, &out); err != nil {
		return out, &ParameterError{Err: err}
	}
	return out, nil
}

// CompileSchema compiles a JSON schema document describing action parameters.
func CompileSchema(name string, schema []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	url := "https://actionflow.local/schemas/" + name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("events: add schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("events: compile schema %s: %w", name, err)
	}
	return compiled, nil
}

// ValidateParams checks the event parameters against schema. A nil schema
// accepts anything.
func ValidateParams(schema *jsonschema.Schema, ev Event) error {
	if schema == nil {
		return nil
	}
	raw := ev.Params
	if len(raw) == 0 {
		raw = []byte(`{}`)
	}
	var doc any
	if err := jsoncodec.Unmarshal(raw, &doc); err != nil {
		return &ParameterError{Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		return &ParameterError{Err: err}
	}
	return nil
}
