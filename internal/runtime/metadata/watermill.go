package metadata

import (
	"maps"

	"github.com/ThreeDotsLabs/watermill/message"
)

// ToWatermill returns a copy of md as broker message metadata. The result is
// never nil so callers may add keys to it.
func ToWatermill(md Metadata) message.Metadata {
	out := make(message.Metadata, len(md))
	maps.Copy(out, md)
	return out
}

// FromWatermill is the inverse of ToWatermill.
func FromWatermill(md message.Metadata) Metadata {
	out := make(Metadata, len(md))
	maps.Copy(out, md)
	return out
}
