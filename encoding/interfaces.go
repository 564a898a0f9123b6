package encoding

import "io"

// Encodable is implemented by anything with a canonical binary form whose
// digest is the identity of the encoded bytes.
type Encodable interface {
	Encode(w io.Writer) error
}

// Decodable is the read-side counterpart of Encodable.
type Decodable interface {
	Decode(r io.Reader) error
}

// Digestible computes the digest of a value's canonical encoding without
// requiring the caller to materialize the bytes themselves.
type Digestible interface {
	Digest() (Digest, error)
}

// DigestOf encodes e into a Hasher and returns the resulting digest. This is
// the "legacy" derivation: digest(body).
func DigestOf(e Encodable) (Digest, error) {
	h := NewHasher()
	if err := e.Encode(h); err != nil {
		return NullDigest, err
	}
	return h.Digest(), nil
}

// DigestOfKindTagged computes digest(kind || body), the preferred
// derivation for newly written objects (spec.md §3, §4.1).
func DigestOfKindTagged(kind byte, e Encodable) (Digest, error) {
	h := NewHasher()
	if _, err := h.Write([]byte{kind}); err != nil {
		return NullDigest, FailedWriteError{Cause: err}
	}
	if err := e.Encode(h); err != nil {
		return NullDigest, err
	}
	return h.Digest(), nil
}
