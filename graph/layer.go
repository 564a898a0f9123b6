package graph

import (
	"bufio"
	"io"

	"github.com/spkenv/spfs/encoding"
)

// Layer wraps a manifest digest; it is the unit stacked in a runtime
// (spec.md §3).
type Layer struct {
	Manifest encoding.Digest
}

func NewLayer(manifest encoding.Digest) Layer { return Layer{Manifest: manifest} }

func (l Layer) Kind() ObjectKind { return KindLayer }

func (l Layer) ChildObjects() []encoding.Digest {
	return []encoding.Digest{l.Manifest}
}

func (l Layer) Encode(w io.Writer) error {
	if err := encodeHeader(w, KindLayer); err != nil {
		return err
	}
	return l.encodeBody(w)
}

func (l Layer) encodeBody(w io.Writer) error {
	return encoding.WriteDigest(w, l.Manifest)
}

func decodeLayerBody(br *bufio.Reader) (Layer, error) {
	d, err := encoding.ReadDigest(br)
	if err != nil {
		return Layer{}, err
	}
	return Layer{Manifest: d}, nil
}

// LegacyDecodeLayer decodes a Layer body from a stream whose (non-kind
// tagged) header has already been consumed by the caller.
func LegacyDecodeLayer(r io.Reader) (Layer, error) {
	return decodeLayerBody(bufio.NewReader(r))
}
