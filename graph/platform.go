package graph

import (
	"bufio"
	"io"

	"github.com/spkenv/spfs/encoding"
)

// Platform is an ordered stack of other layers (or platforms), addressable
// as a single digest (spec.md §3). Stack is kept bottom-up in memory; only
// the wire encoding reverses it for backward compatibility (spec.md §6).
type Platform struct {
	Stack []encoding.Digest
}

// NewPlatform builds a Platform from a bottom-up ordered stack.
func NewPlatform(stack []encoding.Digest) Platform {
	cp := make([]encoding.Digest, len(stack))
	copy(cp, stack)
	return Platform{Stack: cp}
}

func (p Platform) Kind() ObjectKind { return KindPlatformV2 }

func (p Platform) ChildObjects() []encoding.Digest {
	out := make([]encoding.Digest, len(p.Stack))
	copy(out, p.Stack)
	return out
}

func (p Platform) Encode(w io.Writer) error {
	if err := encodeHeader(w, KindPlatformV2); err != nil {
		return err
	}
	return p.encodeBody(w)
}

// encodeBody writes the stack count followed by each digest top-down (the
// reverse of the in-memory bottom-up order), per spec.md §3 and §6.
func (p Platform) encodeBody(w io.Writer) error {
	if err := encoding.WriteUint64(w, uint64(len(p.Stack))); err != nil {
		return err
	}
	for i := len(p.Stack) - 1; i >= 0; i-- {
		if err := encoding.WriteDigest(w, p.Stack[i]); err != nil {
			return err
		}
	}
	return nil
}

func decodePlatformStack(br *bufio.Reader) ([]encoding.Digest, error) {
	count, err := encoding.ReadUint64(br)
	if err != nil {
		return nil, err
	}
	topDown := make([]encoding.Digest, count)
	for i := range topDown {
		d, err := encoding.ReadDigest(br)
		if err != nil {
			return nil, err
		}
		topDown[i] = d
	}
	// reverse to recover bottom-up order
	stack := make([]encoding.Digest, count)
	for i, d := range topDown {
		stack[int(count)-1-i] = d
	}
	return stack, nil
}

func decodePlatformBody(br *bufio.Reader) (Platform, error) {
	stack, err := decodePlatformStack(br)
	if err != nil {
		return Platform{}, err
	}
	return Platform{Stack: stack}, nil
}

// LegacyDecodePlatform decodes a Platform body (the V1, pre-kind-tag wire
// form) from a stream whose header has already been consumed by the caller.
// Its digest derivation is digest(body) with no leading kind byte.
func LegacyDecodePlatform(r io.Reader) (Platform, error) {
	return decodePlatformBody(bufio.NewReader(r))
}
