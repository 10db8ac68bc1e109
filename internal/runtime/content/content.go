// Package content models references to stored bytes. A Content never embeds
// data; it lists the storage segments that make it up.
package content

import (
	"fmt"

	errorspkg "github.com/drblury/actionflow/internal/runtime/errors"
)

// Segment is a byte range of one stored object.
type Segment struct {
	UUID   string `json:"uuid"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
	Did    string `json:"did"`
}

// ObjectName is the storage key of the object the segment points into.
func (s Segment) ObjectName() string {
	prefix := s.Did
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return prefix + "/" + s.Did + "/" + s.UUID
}

// Content is a named, media-typed list of segments. The segment list is never
// empty for values built through New.
type Content struct {
	Name      string    `json:"name"`
	MediaType string    `json:"mediaType"`
	Segments  []Segment `json:"segments"`
}

// New builds a Content, rejecting an empty segment list.
func New(name, mediaType string, segments ...Segment) (Content, error) {
	if len(segments) == 0 {
		return Content{}, errorspkg.ErrEmptyContent
	}
	return Content{
		Name:      name,
		MediaType: mediaType,
		Segments:  append([]Segment(nil), segments...),
	}, nil
}

// Size is the sum of all segment sizes.
func (c Content) Size() int64 {
	var total int64
	for _, s := range c.Segments {
		total += s.Size
	}
	return total
}

// Copy returns a Content that does not share its segment slice.
func (c Content) Copy() Content {
	c.Segments = append([]Segment(nil), c.Segments...)
	return c
}

// Slice returns the sub-range [offset, offset+length) keeping name and media type.
func (c Content) Slice(offset, length int64) (Content, error) {
	return c.SliceAs(offset, length, c.Name, c.MediaType)
}

// SliceAs returns the sub-range [offset, offset+length) under a new name and
// media type. The range must be non-empty and lie within Size.
func (c Content) SliceAs(offset, length int64, name, mediaType string) (Content, error) {
	segments, err := c.subSegments(offset, length)
	if err != nil {
		return Content{}, err
	}
	return New(name, mediaType, segments...)
}

func (c Content) subSegments(offset, length int64) ([]Segment, error) {
	if offset < 0 {
		return nil, fmt.Errorf("content: slice offset must not be negative, got %d", offset)
	}
	if length < 0 {
		return nil, fmt.Errorf("content: slice length must not be negative, got %d", length)
	}
	if total := c.Size(); offset+length > total {
		return nil, fmt.Errorf("content: offset + length (%d + %d) exceeds content size %d", offset, length, total)
	}
	if length == 0 {
		return nil, nil
	}

	var out []Segment
	offsetRemaining := offset
	sizeRemaining := length
	for _, seg := range c.Segments {
		if offsetRemaining > 0 {
			if seg.Size <= offsetRemaining {
				offsetRemaining -= seg.Size
				continue
			}
			seg.Offset += offsetRemaining
			seg.Size -= offsetRemaining
			offsetRemaining = 0
		}
		if sizeRemaining < seg.Size {
			seg.Size = sizeRemaining
		}
		sizeRemaining -= seg.Size
		out = append(out, seg)
		if sizeRemaining == 0 {
			break
		}
	}
	return out, nil
}

// Append returns c followed by the segments of others.
func (c Content) Append(others ...Content) Content {
	out := c.Copy()
	for _, o := range others {
		out.Segments = append(out.Segments, o.Segments...)
	}
	return out
}

// Prepend returns the segments of others followed by c.
func (c Content) Prepend(others ...Content) Content {
	var segments []Segment
	for _, o := range others {
		segments = append(segments, o.Segments...)
	}
	c.Segments = append(segments, c.Segments...)
	return c
}

// Concat joins contents in order under a new name and media type.
func Concat(name, mediaType string, contents ...Content) (Content, error) {
	var segments []Segment
	for _, c := range contents {
		segments = append(segments, c.Segments...)
	}
	return New(name, mediaType, segments...)
}
