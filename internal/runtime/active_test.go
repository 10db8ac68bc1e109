package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/drblury/actionflow/internal/runtime/queue"
)

func TestActiveExecutionsRemoveIgnoresStaleEntries(t *testing.T) {
	active := NewActiveExecutions()
	start := time.Now()
	first := queue.ActionExecution{ClassName: "org.example.A", Action: "f.a", Did: "did-1", StartTime: start}
	second := queue.ActionExecution{ClassName: "org.example.A", Action: "f.a", Did: "did-2", StartTime: start.Add(time.Second)}

	active.Add(first)
	active.Add(second)
	assert.Equal(t, 1, active.Len(), "one execution per action")

	active.Remove(first)
	assert.Equal(t, []queue.ActionExecution{second}, active.Snapshot())

	active.Remove(second)
	assert.Zero(t, active.Len())
}

func TestActiveExecutionsSnapshotIsSorted(t *testing.T) {
	active := NewActiveExecutions()
	for _, name := range []string{"c", "a", "b"} {
		active.Add(queue.ActionExecution{ClassName: name, Did: name})
	}
	var names []string
	for _, exec := range active.Snapshot() {
		names = append(names, exec.ClassName)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
