package fsstore

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/metrics"
)

// PayloadStore is a streaming, write-once, content-addressed store of
// opaque byte payloads (spec.md §4.2).
type PayloadStore struct {
	shardedStore
}

// NewPayloadStore opens (creating if necessary) a payload store rooted at
// dir.
func NewPayloadStore(dir string) (*PayloadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create payload store: %w", err)
	}
	return &PayloadStore{shardedStore: newShardedStore(dir)}, nil
}

// Write streams src into the store, returning its digest and byte count.
func (p *PayloadStore) Write(src io.Reader) (encoding.Digest, uint64, error) {
	digest, n, deduped, err := p.writeAtomicDeduped(src)
	if err != nil {
		return digest, n, err
	}
	metrics.PayloadWrites.WithLabelValues(strconv.FormatBool(deduped)).Inc()
	return digest, n, nil
}

// Has reports whether a payload with the given digest is stored.
func (p *PayloadStore) Has(d encoding.Digest) (bool, error) {
	return p.has(d)
}

// Open returns a random-access reader for the payload with the given
// digest, plus a filename hint (the shard-relative path) useful for
// hardlinking callers. UnknownObjectError is returned if absent.
func (p *PayloadStore) Open(d encoding.Digest) (*os.File, string, error) {
	path := p.pathFor(d)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", UnknownObjectError{Digest: d}
		}
		return nil, "", err
	}
	return f, path, nil
}

// Remove deletes the payload for the given digest. A missing file is
// success (spec.md §4.2).
func (p *PayloadStore) Remove(d encoding.Digest) error {
	return p.remove(d)
}

// IterDigests calls fn for every payload digest currently stored.
func (p *PayloadStore) IterDigests(fn func(encoding.Digest) error) error {
	return p.walk(fn)
}

// UnknownObjectError is returned when a digest is not present in a store.
type UnknownObjectError struct {
	Digest encoding.Digest
}

func (e UnknownObjectError) Error() string {
	return fmt.Sprintf("unknown object: %s", e.Digest)
}
