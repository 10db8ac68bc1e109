package runtime

import (
	"fmt"
	"sort"
	"sync"

	errspkg "github.com/drblury/actionflow/internal/runtime/errors"
	"github.com/drblury/actionflow/internal/runtime/events"
)

// Registry holds the actions a plugin hosts, keyed by qualified name.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register validates the action descriptor and adds it. Names must be unique.
func (r *Registry) Register(a Action) error {
	if a == nil {
		return errspkg.ErrActionRequired
	}
	desc := a.Descriptor()
	if desc.Name == "" {
		return errspkg.ErrActionNameRequired
	}
	if !desc.Kind.Valid() {
		return fmt.Errorf("%w %q for action %s", errspkg.ErrUnknownActionKind, desc.Kind, desc.Name)
	}
	if len(desc.Schema) > 0 {
		if _, err := events.CompileSchema(desc.Name, desc.Schema); err != nil {
			return fmt.Errorf("action %s: %w", desc.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[desc.Name]; exists {
		return fmt.Errorf("%w: %s", errspkg.ErrDuplicateAction, desc.Name)
	}
	r.actions[desc.Name] = a
	return nil
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// Actions returns the registered actions ordered by name.
func (r *Registry) Actions() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Action, 0, len(names))
	for _, name := range names {
		out = append(out, r.actions[name])
	}
	return out
}

// Descriptors returns the descriptors of the registered actions ordered by name.
func (r *Registry) Descriptors() []Descriptor {
	actions := r.Actions()
	out := make([]Descriptor, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Descriptor())
	}
	return out
}

// Len is the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

// RegisterAction adds a to the service. Actions must be registered before
// Start.
func RegisterAction(svc *Service, a Action) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	return svc.RegisterAction(a)
}

// RegisterAction adds a to the service registry and starts tracking its stats.
func (s *Service) RegisterAction(a Action) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.started {
		return errspkg.ErrAlreadyStarted
	}
	if err := s.actions.Register(a); err != nil {
		return err
	}

	desc := a.Descriptor()
	info := &ActionInfo{
		Name:  desc.Name,
		Kind:  desc.Kind,
		Topic: desc.Name,
		Stats: newActionStats(desc.Name, s.getResourceTracker()),
	}
	s.infosMu.Lock()
	s.infos = append(s.infos, info)
	s.infosMu.Unlock()
	return nil
}

func (s *Service) statsFor(name string) *ActionStats {
	s.infosMu.RLock()
	defer s.infosMu.RUnlock()
	for _, info := range s.infos {
		if info.Name == name {
			return info.Stats
		}
	}
	return nil
}
