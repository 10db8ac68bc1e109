package runtime

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	errspkg "github.com/drblury/actionflow/internal/runtime/errors"
	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/queue"
	"github.com/drblury/actionflow/internal/runtime/results"
)

// ConfigurationError reports an action that broke its own contract, such as
// returning a result its kind does not allow.
type ConfigurationError struct {
	Action string
	Kind   Kind
	Result results.Type
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Result == "" {
		return fmt.Sprintf("action %s (%s): %v", e.Action, e.Kind, e.Err)
	}
	return fmt.Sprintf("action %s (%s) returned %s result: %v", e.Action, e.Kind, e.Result, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// PanicError carries a value recovered from a panicking action.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Middlewares wrap the fault boundary, outermost first.
	Middlewares []Middleware
	// Active receives the running executions. A private table is created when
	// nil.
	Active *ActiveExecutions
	Now    func() time.Time
}

// Executor runs actions inside a fault boundary. Every call yields exactly
// one result; faults become error results.
type Executor struct {
	handler ActionHandler
	active  *ActiveExecutions
	now     func() time.Time

	schemaMu sync.Mutex
	schemas  map[string]*jsonschema.Schema
}

// NewExecutor builds an executor with the given middleware chain.
func NewExecutor(opts ExecutorOptions) *Executor {
	x := &Executor{
		active:  opts.Active,
		now:     opts.Now,
		schemas: make(map[string]*jsonschema.Schema),
	}
	if x.active == nil {
		x.active = NewActiveExecutions()
	}
	if x.now == nil {
		x.now = time.Now
	}
	x.handler = chain(x.invoke, opts.Middlewares)
	return x
}

// Active returns the table the executor records running executions in.
func (x *Executor) Active() *ActiveExecutions { return x.active }

// Execute runs a for ev. The returned result is never nil. A non-nil error is
// the fault that was converted into the error result.
func (x *Executor) Execute(ctx context.Context, a Action, ev events.Event) (results.Result, error) {
	if a == nil {
		return faultResult(errspkg.ErrActionRequired, nil), errspkg.ErrActionRequired
	}
	desc := a.Descriptor()

	exec := queue.ActionExecution{
		ClassName: desc.Name,
		Action:    ev.Context.Name,
		Did:       ev.Context.Did,
		StartTime: x.now(),
	}
	x.active.Add(exec)
	defer x.active.Remove(exec)

	r, err := x.handle(ctx, Invocation{Action: desc, Event: ev, impl: a})
	if r == nil {
		if err == nil {
			err = errspkg.ErrNilResult
		}
		r = faultResult(err, nil)
	}
	return r, err
}

// handle runs the middleware chain. Middlewares, hooks and classifiers sit
// outside invoke, so a panic in any of them is converted here.
func (x *Executor) handle(ctx context.Context, inv Invocation) (r results.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			pe := &PanicError{Value: p, Stack: debug.Stack()}
			r, err = faultResult(pe, pe.Stack), pe
		}
	}()
	return x.handler(ctx, inv)
}

// invoke is the innermost handler: it calls the action and converts every
// fault into an error result.
func (x *Executor) invoke(ctx context.Context, inv Invocation) (r results.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			pe := &PanicError{Value: p, Stack: debug.Stack()}
			r, err = faultResult(pe, pe.Stack), pe
		}
	}()

	if inv.impl == nil {
		return faultResult(errspkg.ErrActionRequired, nil), errspkg.ErrActionRequired
	}
	if err := x.validateParams(inv); err != nil {
		return faultResult(err, nil), err
	}

	r, err = inv.impl.Execute(ctx, inv.Event)
	if err != nil {
		return faultResult(err, nil), err
	}
	if r == nil {
		return faultResult(errspkg.ErrNilResult, nil), errspkg.ErrNilResult
	}
	if err := checkResult(inv.Action, r); err != nil {
		return faultResult(err, nil), err
	}
	return r, nil
}

func checkResult(desc Descriptor, r results.Result) error {
	if r.Type() == results.TypeError {
		return nil
	}
	if !desc.Kind.Allows(r.Type()) {
		return &ConfigurationError{Action: desc.Name, Kind: desc.Kind, Result: r.Type(), Err: errspkg.ErrIncompatibleResult}
	}
	if err := results.Validate(r); err != nil {
		return &ConfigurationError{Action: desc.Name, Kind: desc.Kind, Result: r.Type(), Err: err}
	}
	return nil
}

func (x *Executor) validateParams(inv Invocation) error {
	if len(inv.Action.Schema) == 0 {
		return nil
	}
	schema, err := x.schemaFor(inv.Action)
	if err != nil {
		return &ConfigurationError{Action: inv.Action.Name, Kind: inv.Action.Kind, Err: err}
	}
	return events.ValidateParams(schema, inv.Event)
}

func (x *Executor) schemaFor(desc Descriptor) (*jsonschema.Schema, error) {
	x.schemaMu.Lock()
	defer x.schemaMu.Unlock()
	if s, ok := x.schemas[desc.Name]; ok {
		return s, nil
	}
	s, err := events.CompileSchema(desc.Name, desc.Schema)
	if err != nil {
		return nil, err
	}
	x.schemas[desc.Name] = s
	return s, nil
}

// faultResult converts err into the error result reported to the
// orchestrator. The context is the error message followed by a stack trace;
// when stack is nil the current one is used.
func faultResult(err error, stack []byte) results.ErrorResult {
	if stack == nil {
		stack = debug.Stack()
	}
	return results.NewError(FaultCause(err), err.Error()+"\n"+string(stack))
}

// FaultCause returns the error-result cause reported for err.
func FaultCause(err error) string {
	var (
		contentErr    *events.ExpectedContentError
		domainErr     *events.MissingDomainError
		enrichmentErr *events.MissingEnrichmentError
		sourceErr     *events.MissingSourceMetadataError
		metadataErr   *events.MissingMetadataError
		emptyErr      *events.EmptyContentError
	)
	switch {
	case errors.As(err, &contentErr):
		return fmt.Sprintf("Action attempted to look up element %d (index %d) from content list of size %d",
			contentErr.Index+1, contentErr.Index, contentErr.Size)
	case errors.As(err, &domainErr):
		return fmt.Sprintf("Action attempted to access domain %s, which does not exist", domainErr.Name)
	case errors.As(err, &enrichmentErr):
		return fmt.Sprintf("Action attempted to access enrichment %s, which does not exist", enrichmentErr.Name)
	case errors.As(err, &sourceErr):
		return "Missing ingress metadata with key " + sourceErr.Key
	case errors.As(err, &metadataErr):
		return "Missing metadata with key " + metadataErr.Key
	case errors.As(err, &emptyErr):
		return fmt.Sprintf("Received content %s with no segments", emptyErr.Name)
	}
	return fmt.Sprintf("Action execution %s exception", faultKind(err))
}

func faultKind(err error) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		return fmt.Sprintf("%T", pe.Value)
	}
	return fmt.Sprintf("%T", err)
}
