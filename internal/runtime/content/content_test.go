package content

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errorspkg "github.com/drblury/actionflow/internal/runtime/errors"
)

func seg(uuid string, offset, size int64) Segment {
	return Segment{UUID: uuid, Offset: offset, Size: size, Did: "did-1"}
}

func TestNewRejectsEmptySegments(t *testing.T) {
	_, err := New("empty", "text/plain")
	assert.ErrorIs(t, err, errorspkg.ErrEmptyContent)
}

func TestSizeIsSumOfSegments(t *testing.T) {
	c, err := New("a", "text/plain", seg("1", 0, 100), seg("2", 10, 50))
	require.NoError(t, err)
	assert.Equal(t, int64(150), c.Size())
}

func TestSliceSingleSegment(t *testing.T) {
	c, err := New("a", "text/plain", seg("1", 0, 100))
	require.NoError(t, err)

	sliced, err := c.Slice(50, 25)
	require.NoError(t, err)
	require.Len(t, sliced.Segments, 1)
	assert.Equal(t, int64(50), sliced.Segments[0].Offset)
	assert.Equal(t, int64(25), sliced.Segments[0].Size)
	assert.Equal(t, "a", sliced.Name)
	// source untouched
	assert.Equal(t, int64(0), c.Segments[0].Offset)
}

func TestSliceAcrossSegments(t *testing.T) {
	c, err := New("a", "text/plain", seg("1", 0, 10), seg("2", 100, 10), seg("3", 0, 10))
	require.NoError(t, err)

	sliced, err := c.SliceAs(5, 20, "b", "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "b", sliced.Name)
	assert.Equal(t, []Segment{seg("1", 5, 5), seg("2", 100, 10), seg("3", 0, 5)}, sliced.Segments)
	assert.Equal(t, int64(20), sliced.Size())
}

func TestSliceSkipsSegmentConsumedByOffset(t *testing.T) {
	c, err := New("a", "text/plain", seg("1", 0, 10), seg("2", 0, 10))
	require.NoError(t, err)

	sliced, err := c.Slice(10, 5)
	require.NoError(t, err)
	assert.Equal(t, []Segment{seg("2", 0, 5)}, sliced.Segments)
}

func TestSliceBounds(t *testing.T) {
	c, err := New("a", "text/plain", seg("1", 0, 100))
	require.NoError(t, err)

	tests := []struct {
		name           string
		offset, length int64
	}{
		{"negative offset", -1, 10},
		{"negative length", 0, -1},
		{"past end", 90, 11},
		{"zero length", 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Slice(tt.offset, tt.length)
			assert.Error(t, err)
		})
	}

	whole, err := c.Slice(0, 100)
	require.NoError(t, err)
	assert.Equal(t, c.Segments, whole.Segments)
}

func TestConcatPreservesOrder(t *testing.T) {
	a, err := New("a", "text/plain", seg("1", 0, 100))
	require.NoError(t, err)
	b, err := New("b", "text/plain", seg("2", 0, 200))
	require.NoError(t, err)

	merged, err := Concat("ab", "text/plain", a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(300), merged.Size())
	assert.Equal(t, []Segment{seg("1", 0, 100), seg("2", 0, 200)}, merged.Segments)

	_, err = Concat("none", "text/plain")
	assert.ErrorIs(t, err, errorspkg.ErrEmptyContent)
}

func TestAppendAndPrepend(t *testing.T) {
	a, _ := New("a", "text/plain", seg("1", 0, 1))
	b, _ := New("b", "text/plain", seg("2", 0, 2))
	c, _ := New("c", "text/plain", seg("3", 0, 3))

	appended := a.Append(b, c)
	assert.Equal(t, "a", appended.Name)
	assert.Equal(t, []Segment{seg("1", 0, 1), seg("2", 0, 2), seg("3", 0, 3)}, appended.Segments)
	assert.Len(t, a.Segments, 1)

	prepended := a.Prepend(b, c)
	assert.Equal(t, []Segment{seg("2", 0, 2), seg("3", 0, 3), seg("1", 0, 1)}, prepended.Segments)
	assert.Equal(t, int64(6), prepended.Size())
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "abc/abcdef/u1", Segment{UUID: "u1", Did: "abcdef"}.ObjectName())
	assert.Equal(t, "ab/ab/u1", Segment{UUID: "u1", Did: "ab"}.ObjectName())
}

func TestMemoryStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()

	first, err := Save(ctx, st, "did-1", []byte("hello "), "first", "text/plain")
	require.NoError(t, err)
	second, err := Save(ctx, st, "did-1", []byte("world"), "second", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Objects())

	joined, err := Concat("joined", "text/plain", first, second)
	require.NoError(t, err)
	data, err := Load(ctx, st, joined)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	part, err := joined.Slice(3, 5)
	require.NoError(t, err)
	data, err = Load(ctx, st, part)
	require.NoError(t, err)
	assert.Equal(t, "lo wo", string(data))
}

func TestMemoryStorageEmptyObjectKeepsSegment(t *testing.T) {
	st := NewMemoryStorage()
	c, err := Save(context.Background(), st, "did-1", nil, "empty", "text/plain")
	require.NoError(t, err)
	require.Len(t, c.Segments, 1)
	assert.Equal(t, int64(0), c.Size())
}

func TestMemoryStorageMissing(t *testing.T) {
	st := NewMemoryStorage()
	_, err := st.Get(context.Background(), seg("nope", 0, 1))
	var missing *MissingContentError
	assert.True(t, errors.As(err, &missing))
}

func TestNilStorage(t *testing.T) {
	_, err := Save(context.Background(), nil, "did", nil, "n", "m")
	assert.ErrorIs(t, err, errorspkg.ErrStorageRequired)
	_, err = Load(context.Background(), nil, Content{})
	assert.ErrorIs(t, err, errorspkg.ErrStorageRequired)
}
