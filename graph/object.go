// Package graph implements the typed object variants stored in the
// content-addressed object graph (spec.md §3, §4.1): Blob, Tree, Manifest,
// Layer, and Platform. Objects are modeled as a closed sum type dispatched
// by an ObjectKind tag rather than an abstract base class, per spec.md §9.
package graph

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spkenv/spfs/encoding"
)

// ObjectKind identifies the concrete variant of an Object on the wire.
type ObjectKind int

const (
	KindBlob ObjectKind = iota
	KindManifest
	KindLayer
	// KindPlatformV1 is the legacy, digest-of-body-only platform form.
	KindPlatformV1
	// KindPlatformV2 is the kind-tagged platform form, preferred for
	// all newly written platforms.
	KindPlatformV2
	KindTree
)

// headerTags are the on-wire ASCII tags that make up a kind-tagged object's
// header line (spec.md §4.1); the kind byte enters only the digest, never
// the stored bytes.
var headerTags = map[ObjectKind][]byte{
	KindBlob:       []byte("S-BLOB"),
	KindManifest:   []byte("S-MANIFEST"),
	KindLayer:      []byte("S-LAYER"),
	KindPlatformV1: []byte("S-PLATFORM"),
	KindPlatformV2: []byte("S-PLATFORM-V2"),
	KindTree:       []byte("S-TREE"),
}

func (k ObjectKind) String() string {
	if tag, ok := headerTags[k]; ok {
		return string(tag)
	}
	return fmt.Sprintf("ObjectKind(%d)", int(k))
}

// kindByTag inverts headerTags for decode dispatch.
var kindByTag = func() map[string]ObjectKind {
	m := make(map[string]ObjectKind, len(headerTags))
	for k, tag := range headerTags {
		m[string(tag)] = k
	}
	return m
}()

// legacyHeaderTags are the pre-kind-tag header strings still found on disk
// in repositories that predate the kind-tagged wire form (spec.md §4.1, §9
// OQ1). Tree and the V2 platform form never had a legacy representation.
var legacyHeaderTags = map[ObjectKind][]byte{
	KindBlob:       []byte("BLOB"),
	KindManifest:   []byte("MANIFEST"),
	KindLayer:      []byte("LAYER"),
	KindPlatformV1: []byte("PLATFORM"),
}

var legacyKindByTag = func() map[string]ObjectKind {
	m := make(map[string]ObjectKind, len(legacyHeaderTags))
	for k, tag := range legacyHeaderTags {
		m[string(tag)] = k
	}
	return m
}()

// Object is implemented by every stored object variant. It is a closed sum
// type: the kind switch in Decode is the only place new variants are added.
type Object interface {
	// Kind identifies which concrete variant this is.
	Kind() ObjectKind
	// ChildObjects returns the digests of every object this one
	// references directly (spec.md §4.3 iteration, §9 acyclic graphs).
	ChildObjects() []encoding.Digest
	// Encode writes the kind-tagged canonical form: header, then body.
	Encode(w io.Writer) error
	// encodeBody writes just the body, used both for the kind-tagged
	// form and for deriving the legacy digest of some object kinds.
	encodeBody(w io.Writer) error
}

// Digest computes an Object's content digest using the kind-tagged
// derivation (digest of kind-byte || body), the form required for all newly
// written objects (spec.md §3, §4.1, and SPEC_FULL.md §4).
func Digest(o Object) (encoding.Digest, error) {
	h := encoding.NewHasher()
	if _, err := h.Write([]byte{byte(o.Kind())}); err != nil {
		return encoding.NullDigest, encoding.FailedWriteError{Cause: err}
	}
	if err := o.encodeBody(h); err != nil {
		return encoding.NullDigest, err
	}
	return h.Digest(), nil
}

// LegacyDigest computes the pre-kind-tag digest (digest of body only),
// still accepted on read for backward compatibility (spec.md §4.1, §9 OQ1).
// Not every kind had a legacy form; kinds introduced after the kind tag was
// adopted (Tree as a standalone top-level object) return an error.
func LegacyDigest(o Object) (encoding.Digest, error) {
	switch o.Kind() {
	case KindTree:
		return encoding.NullDigest, fmt.Errorf("object kind %s has no legacy encoding", o.Kind())
	}
	h := encoding.NewHasher()
	if err := o.encodeBody(h); err != nil {
		return encoding.NullDigest, err
	}
	return h.Digest(), nil
}

// Decode reads one kind-tagged object from r, dispatching on the header tag.
// Legacy (pre-kind-tag) header tags are rejected here; DecodeAny accepts
// both forms.
func Decode(r io.Reader) (Object, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	tag, err := encoding.PeekHeaderTag(br)
	if err != nil {
		return nil, err
	}
	kind, ok := kindByTag[string(tag)]
	if !ok {
		return nil, encoding.InvalidHeaderError{Got: tag}
	}
	return decodeByKind(br, kind)
}

// DecodeAny reads one object from r, accepting both the kind-tagged form
// (preferred, see Decode) and the legacy pre-kind-tag form (spec.md §9
// OQ1). It reports which form was found so callers can verify the digest
// with the matching derivation (storage.Check) or log the legacy read (the
// object store).
func DecodeAny(r io.Reader) (obj Object, legacy bool, err error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	tag, err := encoding.PeekHeaderTag(br)
	if err != nil {
		return nil, false, err
	}
	if kind, ok := kindByTag[string(tag)]; ok {
		obj, err = decodeByKind(br, kind)
		return obj, false, err
	}
	if kind, ok := legacyKindByTag[string(tag)]; ok {
		obj, err = decodeByKind(br, kind)
		return obj, true, err
	}
	return nil, false, encoding.InvalidHeaderError{Got: tag}
}

func decodeByKind(br *bufio.Reader, kind ObjectKind) (Object, error) {
	switch kind {
	case KindBlob:
		return decodeBlobBody(br)
	case KindTree:
		return decodeTreeBody(br)
	case KindManifest:
		return decodeManifestBody(br)
	case KindLayer:
		return decodeLayerBody(br)
	case KindPlatformV1, KindPlatformV2:
		return decodePlatformBody(br)
	default:
		return nil, fmt.Errorf("unhandled object kind %s", kind)
	}
}

// encodeHeader is a small helper shared by every object's Encode method.
func encodeHeader(w io.Writer, kind ObjectKind) error {
	return encoding.WriteHeader(w, headerTags[kind])
}
