package graph

import (
	"fmt"

	"github.com/spkenv/spfs/encoding"
)

// UnknownObjectError is returned when a digest does not resolve to any
// stored object.
type UnknownObjectError struct {
	Digest encoding.Digest
}

func (e UnknownObjectError) Error() string {
	return fmt.Sprintf("unknown object: %s", e.Digest)
}

// UnknownReferenceError is returned when a human-readable reference (tag
// spec or digest prefix) does not resolve to anything.
type UnknownReferenceError struct {
	Reference string
}

func (e UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown reference: %s", e.Reference)
}

// AmbiguousReferenceError is returned when a digest prefix matches more
// than one stored digest.
type AmbiguousReferenceError struct {
	Reference string
	Matches   []encoding.Digest
}

func (e AmbiguousReferenceError) Error() string {
	return fmt.Sprintf("ambiguous reference %q: %d matches", e.Reference, len(e.Matches))
}
