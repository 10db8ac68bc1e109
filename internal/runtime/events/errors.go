package events

import (
	"fmt"

	errorspkg "github.com/drblury/actionflow/internal/runtime/errors"
)

// ExpectedContentError is returned when an action asks for a content index
// the message does not have.
type ExpectedContentError struct {
	Index int
	Size  int
}

func (e *ExpectedContentError) Error() string {
	return fmt.Sprintf("expected content at index %d but content list has %d entries", e.Index, e.Size)
}

// MissingDomainError is returned when a named domain is absent.
type MissingDomainError struct {
	Name string
}

func (e *MissingDomainError) Error() string {
	return fmt.Sprintf("domain %q is not present", e.Name)
}

// MissingEnrichmentError is returned when a named enrichment is absent.
type MissingEnrichmentError struct {
	Name string
}

func (e *MissingEnrichmentError) Error() string {
	return fmt.Sprintf("enrichment %q is not present", e.Name)
}

// MissingMetadataError is returned when a metadata key is absent.
type MissingMetadataError struct {
	Key string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("metadata key %q is not present", e.Key)
}

// MissingSourceMetadataError is returned when a key is absent from the
// metadata recorded at ingress.
type MissingSourceMetadataError struct {
	Key string
}

func (e *MissingSourceMetadataError) Error() string {
	return fmt.Sprintf("source metadata key %q is not present", e.Key)
}

// EmptyContentError is returned by Decode when a content entry has no
// segments. The decoded event accompanies it.
type EmptyContentError struct {
	Message int
	Index   int
	Name    string
}

func (e *EmptyContentError) Error() string {
	return fmt.Sprintf("message %d content %d (%s): %v", e.Message, e.Index, e.Name, errorspkg.ErrEmptyContent)
}

func (e *EmptyContentError) Unwrap() error { return errorspkg.ErrEmptyContent }
