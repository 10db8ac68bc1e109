package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
// Broker messages carry ULIDs so their ids sort by publish time.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// NewDid returns a random unit-of-work identifier.
func NewDid() string {
	return uuid.NewString()
}

// NewSegmentID returns the identifier of a newly stored content segment.
func NewSegmentID() string {
	return uuid.NewString()
}
