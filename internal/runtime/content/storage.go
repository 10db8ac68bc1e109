package content

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	errorspkg "github.com/drblury/actionflow/internal/runtime/errors"
	"github.com/drblury/actionflow/internal/runtime/ids"
)

// DefaultBucket is the bucket content objects are written to.
const DefaultBucket = "storage"

// Storage is the byte store behind Content references.
type Storage interface {
	// Put stores data as a new object owned by did and returns a segment
	// covering all of it.
	Put(ctx context.Context, did string, data []byte) (Segment, error)
	// Get returns the bytes addressed by the segment range.
	Get(ctx context.Context, segment Segment) ([]byte, error)
}

// Save stores data and wraps the resulting segment in a Content.
func Save(ctx context.Context, st Storage, did string, data []byte, name, mediaType string) (Content, error) {
	if st == nil {
		return Content{}, errorspkg.ErrStorageRequired
	}
	seg, err := st.Put(ctx, did, data)
	if err != nil {
		return Content{}, fmt.Errorf("content: save %q: %w", name, err)
	}
	return New(name, mediaType, seg)
}

// Load reads every segment of c in order and concatenates the bytes.
func Load(ctx context.Context, st Storage, c Content) ([]byte, error) {
	if st == nil {
		return nil, errorspkg.ErrStorageRequired
	}
	if len(c.Segments) == 1 {
		return st.Get(ctx, c.Segments[0])
	}
	var buf bytes.Buffer
	buf.Grow(int(c.Size()))
	for _, seg := range c.Segments {
		data, err := st.Get(ctx, seg)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// MissingContentError reports a segment whose object is absent or too short.
type MissingContentError struct {
	Segment Segment
}

func (e *MissingContentError) Error() string {
	return fmt.Sprintf("content: missing object %s for range %d+%d", e.Segment.ObjectName(), e.Segment.Offset, e.Segment.Size)
}

// MemoryStorage keeps objects in process. It backs tests and local runs
// without an object store.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStorage returns an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

func (m *MemoryStorage) Put(_ context.Context, did string, data []byte) (Segment, error) {
	seg := Segment{UUID: ids.NewSegmentID(), Offset: 0, Size: int64(len(data)), Did: did}
	m.mu.Lock()
	m.objects[seg.ObjectName()] = append([]byte(nil), data...)
	m.mu.Unlock()
	return seg, nil
}

func (m *MemoryStorage) Get(_ context.Context, seg Segment) ([]byte, error) {
	m.mu.RLock()
	obj, ok := m.objects[seg.ObjectName()]
	m.mu.RUnlock()
	if !ok || seg.Offset < 0 || seg.Offset+seg.Size > int64(len(obj)) {
		return nil, &MissingContentError{Segment: seg}
	}
	return append([]byte(nil), obj[seg.Offset:seg.Offset+seg.Size]...), nil
}

// Objects returns the number of stored objects.
func (m *MemoryStorage) Objects() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
