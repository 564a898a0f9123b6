package graph

import (
	"bufio"
	"io"

	"github.com/spkenv/spfs/encoding"
)

// Blob represents an arbitrary chunk of binary data, usually a file
// (spec.md §3). Its own digest is derived from the kind-tagged encoding of
// this struct, but the payload it references is hashed independently (the
// payload digest is the hash of the raw file bytes, not of this wrapper).
type Blob struct {
	Payload encoding.Digest
	Size    uint64
}

// NewBlob constructs a Blob referencing the given payload digest and size.
func NewBlob(payload encoding.Digest, size uint64) Blob {
	return Blob{Payload: payload, Size: size}
}

func (b Blob) Kind() ObjectKind { return KindBlob }

func (b Blob) ChildObjects() []encoding.Digest {
	// The payload is not itself a graph object (it lives in the payload
	// store, not the object store), so a blob has no object children.
	return nil
}

func (b Blob) Encode(w io.Writer) error {
	if err := encodeHeader(w, KindBlob); err != nil {
		return err
	}
	return b.encodeBody(w)
}

func (b Blob) encodeBody(w io.Writer) error {
	if err := encoding.WriteDigest(w, b.Payload); err != nil {
		return err
	}
	return encoding.WriteUint64(w, b.Size)
}

func decodeBlobBody(br *bufio.Reader) (Blob, error) {
	payload, err := encoding.ReadDigest(br)
	if err != nil {
		return Blob{}, err
	}
	size, err := encoding.ReadUint64(br)
	if err != nil {
		return Blob{}, err
	}
	return Blob{Payload: payload, Size: size}, nil
}

// LegacyDecodeBlob decodes a Blob from a stream that has already had its
// (non-kind-tagged) header consumed by the caller -- the pre-kind-tag wire
// form that some still-unmigrated stores may contain (spec.md §9 OQ1).
func LegacyDecodeBlob(r io.Reader) (Blob, error) {
	return decodeBlobBody(bufio.NewReader(r))
}
