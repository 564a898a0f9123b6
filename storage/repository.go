// Package storage defines the repository abstraction the rest of the
// system programs against (spec.md §4.5, §6): a capability interface plus a
// URL-scheme dispatcher that resolves to a concrete backend (local
// filesystem, single-file tar archive, or a network RPC peer).
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/internal/dcontext"
	fsstore "github.com/spkenv/spfs/storage/fs"
	"github.com/spkenv/spfs/storage/tar"
	"github.com/spkenv/spfs/tracking"

	"github.com/spkenv/spfs/graph"
)

// Repository is the capability set every backend (local filesystem, tar
// archive, network RPC peer) must provide (spec.md §4.5).
type Repository interface {
	ReadRef(ref string) (graph.Object, error)
	FindAliases(ref string) ([]string, error)

	CommitBlob(src io.Reader) (encoding.Digest, error)
	CommitDir(path string) (*graph.Manifest, error)

	HasObject(d encoding.Digest) (bool, error)
	ReadObject(d encoding.Digest) (graph.Object, error)
	WriteObject(o graph.Object) (encoding.Digest, error)
	IterObjects(fn func(encoding.Digest, graph.Object) error) error

	HasPayload(d encoding.Digest) (bool, error)
	OpenPayload(d encoding.Digest) (io.ReadCloser, error)
	WritePayload(src io.Reader) (encoding.Digest, uint64, error)
	IterPayloadDigests(fn func(encoding.Digest) error) error

	PushTag(spec tracking.TagSpec, target encoding.Digest, user string) (tracking.Tag, error)
	ReadTag(spec tracking.TagSpec) ([]tracking.Tag, error)
	ResolveTag(ref tracking.TagReference) (tracking.Tag, error)
	FindTags(d encoding.Digest) ([]tracking.TagSpecVersion, error)
}

// MissingQueryError is returned when a backend requires a query parameter
// the caller's URL did not supply (spec.md §4.5, §6).
type MissingQueryError struct {
	Scheme string
	Key    string
}

func (e MissingQueryError) Error() string {
	return fmt.Sprintf("%s: repository url is missing required query parameter %q", e.Scheme, e.Key)
}

// InvalidQueryError is returned when a backend recognizes a query
// parameter but rejects its value.
type InvalidQueryError struct {
	Scheme string
	Key    string
	Value  string
}

func (e InvalidQueryError) Error() string {
	return fmt.Sprintf("%s: invalid value %q for query parameter %q", e.Scheme, e.Value, e.Key)
}

// Open dispatches a repository URL to its concrete backend (spec.md §6):
// "file:<path>[?create=1]", "tar:<path>", or "<scheme>://host:port/<name>"
// for a network RPC peer.
func Open(rawURL string) (Repository, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse repository url: %w", err)
	}
	dcontext.GetLogger(dcontext.WithRepository(context.Background(), rawURL)).
		Debugf("opening %s repository", u.Scheme)
	switch u.Scheme {
	case "file":
		return openFile(u)
	case "tar":
		return openTar(u)
	case "":
		return nil, fmt.Errorf("repository url %q has no scheme", rawURL)
	default:
		return openRPC(u)
	}
}

func openFile(u *url.URL) (Repository, error) {
	path := u.Opaque
	if path == "" {
		path = u.Path
	}
	create := false
	if v := u.Query().Get("create"); v != "" {
		create = v == "1" || strings.EqualFold(v, "true")
	}
	return fsstore.Open(path, create)
}

func openTar(u *url.URL) (Repository, error) {
	path := u.Opaque
	if path == "" {
		path = u.Path
	}
	return tar.Open(path)
}

func openRPC(u *url.URL) (Repository, error) {
	if u.Host == "" {
		return nil, MissingQueryError{Scheme: u.Scheme, Key: "host"}
	}
	return nil, fmt.Errorf("%s: network RPC repositories are not implemented by this module", u.Scheme)
}
