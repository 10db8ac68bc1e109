package runtime

import (
	"sort"
	"sync"

	"github.com/drblury/actionflow/internal/runtime/queue"
)

// ActiveExecutions is the table of in-flight executions, keyed by qualified
// action name. Workers write it; the monitor and the web UI read it.
type ActiveExecutions struct {
	mu    sync.RWMutex
	execs map[string]queue.ActionExecution
}

// NewActiveExecutions creates an empty table.
func NewActiveExecutions() *ActiveExecutions {
	return &ActiveExecutions{execs: make(map[string]queue.ActionExecution)}
}

// Add records exec as running.
func (a *ActiveExecutions) Add(exec queue.ActionExecution) {
	a.mu.Lock()
	a.execs[exec.ClassName] = exec
	a.mu.Unlock()
}

// Remove drops exec if it is still the execution recorded for its action.
func (a *ActiveExecutions) Remove(exec queue.ActionExecution) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.execs[exec.ClassName]; ok && cur.Key() == exec.Key() && cur.StartTime.Equal(exec.StartTime) {
		delete(a.execs, exec.ClassName)
	}
}

// Snapshot returns the running executions ordered by action name.
func (a *ActiveExecutions) Snapshot() []queue.ActionExecution {
	a.mu.RLock()
	out := make([]queue.ActionExecution, 0, len(a.execs))
	for _, exec := range a.execs {
		out = append(out, exec)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ClassName < out[j].ClassName })
	return out
}

// Len is the number of running executions.
func (a *ActiveExecutions) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.execs)
}
