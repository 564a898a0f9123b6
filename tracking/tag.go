// Package tracking implements the human-readable naming layer over the
// object graph: Tag, TagSpec, and the reference grammar that lets a caller
// address an object by name instead of digest (spec.md §3, §4.4, §4.6).
package tracking

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spkenv/spfs/encoding"
)

// Tag is one entry in a tag spec's append-only history (spec.md §3).
type Tag struct {
	Organization string
	Name         string
	Target       encoding.Digest
	Parent       encoding.Digest
	User         string
	Time         time.Time
}

// Spec returns the org/name TagSpec this tag belongs to.
func (t Tag) Spec() TagSpec {
	return TagSpec{Organization: t.Organization, Name: t.Name}
}

// Encode writes the tag's fields in a fixed, version-free layout. Callers
// that need length-prefixed framing (the on-disk tag stream, spec.md §4.4)
// wrap this with their own size prefix; Encode itself writes only the body.
func (t Tag) Encode(w io.Writer) error {
	if err := encoding.WriteString(w, t.Organization); err != nil {
		return err
	}
	if err := encoding.WriteString(w, t.Name); err != nil {
		return err
	}
	if err := encoding.WriteDigest(w, t.Target); err != nil {
		return err
	}
	if err := encoding.WriteDigest(w, t.Parent); err != nil {
		return err
	}
	if err := encoding.WriteString(w, t.User); err != nil {
		return err
	}
	return encoding.WriteInt64(w, t.Time.UnixNano())
}

// DecodeTag reads one tag's body from br (see Encode).
func DecodeTag(br *bufio.Reader) (Tag, error) {
	org, err := encoding.ReadString(br)
	if err != nil {
		return Tag{}, err
	}
	name, err := encoding.ReadString(br)
	if err != nil {
		return Tag{}, err
	}
	target, err := encoding.ReadDigest(br)
	if err != nil {
		return Tag{}, err
	}
	parent, err := encoding.ReadDigest(br)
	if err != nil {
		return Tag{}, err
	}
	user, err := encoding.ReadString(br)
	if err != nil {
		return Tag{}, err
	}
	nanos, err := encoding.ReadInt64(br)
	if err != nil {
		return Tag{}, err
	}
	return Tag{
		Organization: org,
		Name:         name,
		Target:       target,
		Parent:       parent,
		User:         user,
		Time:         time.Unix(0, nanos).UTC(),
	}, nil
}

// TagSpec identifies a tag's history stream: an optional organization plus
// a required name (spec.md §3, §4.4). It never carries a version; that is
// layered on by TagReference.
type TagSpec struct {
	Organization string
	Name         string
}

var specNamePattern = regexp.MustCompile(`^[^:#/]+(?:/[^:#/]+)*$`)

// ParseTagSpec parses "[<org>/]<name>" with no version suffix.
func ParseTagSpec(s string) (TagSpec, error) {
	if s == "" {
		return TagSpec{}, fmt.Errorf("tag spec must not be empty")
	}
	if strings.ContainsAny(s, ":#") {
		return TagSpec{}, fmt.Errorf("invalid tag spec %q: must not contain ':' or '#'", s)
	}
	if !specNamePattern.MatchString(s) {
		return TagSpec{}, fmt.Errorf("invalid tag spec %q", s)
	}
	idx := strings.LastIndex(s, "/")
	if idx < 0 {
		return TagSpec{Name: s}, nil
	}
	return TagSpec{Organization: s[:idx], Name: s[idx+1:]}, nil
}

// Path returns the spec's on-disk relative path, without the store's root or
// the ".tag" extension (spec.md §6).
func (s TagSpec) Path() string {
	if s.Organization == "" {
		return s.Name
	}
	return s.Organization + "/" + s.Name
}

func (s TagSpec) String() string {
	return s.Path()
}

// TagReference is a TagSpec plus an optional version index, parsed from the
// "[<org>/]<name>[:<version>]" grammar (spec.md §6). Version 0 (the
// default) means the current head.
type TagReference struct {
	Spec    TagSpec
	Version int
}

// ParseTagReference parses a full reference string, including an optional
// ":<version>" suffix.
func ParseTagReference(s string) (TagReference, error) {
	spec := s
	version := 0
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		spec = s[:idx]
		v, err := strconv.Atoi(s[idx+1:])
		if err != nil || v < 0 {
			return TagReference{}, fmt.Errorf("invalid tag version in %q", s)
		}
		version = v
	}
	parsedSpec, err := ParseTagSpec(spec)
	if err != nil {
		return TagReference{}, err
	}
	return TagReference{Spec: parsedSpec, Version: version}, nil
}

func (r TagReference) String() string {
	if r.Version == 0 {
		return r.Spec.String()
	}
	return fmt.Sprintf("%s:%d", r.Spec, r.Version)
}

// TagSpecVersion qualifies a TagSpec with the history index a digest search
// match was found at (spec.md §4.4 find_tags).
type TagSpecVersion struct {
	Spec    TagSpec
	Version int
}

func (v TagSpecVersion) String() string {
	return TagReference{Spec: v.Spec, Version: v.Version}.String()
}
