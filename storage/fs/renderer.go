package fsstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/graph"
	"github.com/spkenv/spfs/metrics"
)

// renderCompleteMarker is written last, once a render's full tree is in
// place (spec.md §4.6). Its presence is the only witness a render finished.
const renderCompleteMarker = ".spfs-render-complete"

// RenderMode selects how blob entries are materialized into a render
// (spec.md §4.6).
type RenderMode int

const (
	// RenderHardlink links directly from the payload store into the
	// render tree; default when both share a device.
	RenderHardlink RenderMode = iota
	// RenderCopy duplicates payload bytes; used across filesystem
	// boundaries or where hardlinks are disallowed.
	RenderCopy
	// RenderProxy hardlinks payloads into a shared proxy directory first,
	// one proxy file per (payload digest, mode), then hardlinks from there
	// into the render -- required because one payload can appear under many
	// modes. The proxy key does not include uid or gid.
	RenderProxy
)

// Renderer materializes Manifests as directory trees under a digest-keyed
// cache (spec.md §4.6).
type Renderer struct {
	root     string // <root>/renders
	proxyDir string // <root>/renders/.proxy
	payloads *PayloadStore
	mode     RenderMode

	inflight singleflight.Group
}

// NewRenderer opens (creating if necessary) a renderer rooted at dir, using
// payloads to resolve manifest blob and symlink contents.
func NewRenderer(dir string, payloads *PayloadStore, mode RenderMode) (*Renderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create render store: %w", err)
	}
	proxyDir := filepath.Join(dir, ".proxy")
	if err := os.MkdirAll(proxyDir, 0o755); err != nil {
		return nil, fmt.Errorf("create proxy dir: %w", err)
	}
	return &Renderer{root: dir, proxyDir: proxyDir, payloads: payloads, mode: mode}, nil
}

// BuildDigestPath returns the on-disk location a render of digest would
// occupy, whether or not it has been rendered yet.
func (r *Renderer) BuildDigestPath(digest encoding.Digest) string {
	return filepath.Join(r.root, digest.String())
}

// WasRenderCompleted reports whether path holds a fully-materialized render
// (the marker file is present).
func WasRenderCompleted(path string) bool {
	_, err := os.Stat(filepath.Join(path, renderCompleteMarker))
	return err == nil
}

// RenderManifest materializes manifest's tree under this renderer's cache,
// returning the resulting path. Concurrent callers rendering the same
// manifest are deduplicated onto a single render (spec.md §4.6, §5).
func (r *Renderer) RenderManifest(manifest *graph.Manifest) (string, error) {
	digest, err := graph.Digest(manifest)
	if err != nil {
		return "", err
	}
	target := r.BuildDigestPath(digest)

	v, err, _ := r.inflight.Do(digest.String(), func() (interface{}, error) {
		if WasRenderCompleted(target) {
			metrics.RenderCacheResult.WithLabelValues("hit").Inc()
			return target, nil
		}
		metrics.RenderCacheResult.WithLabelValues("miss").Inc()
		started := time.Now()
		defer func() { metrics.RenderDuration.Observe(time.Since(started).Seconds()) }()

		if err := os.RemoveAll(target); err != nil {
			return nil, fmt.Errorf("clear partial render: %w", err)
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return nil, err
		}
		if err := r.renderInto(manifest, target); err != nil {
			os.RemoveAll(target)
			return nil, err
		}
		marker, err := os.Create(filepath.Join(target, renderCompleteMarker))
		if err != nil {
			return nil, err
		}
		if err := marker.Close(); err != nil {
			return nil, err
		}
		return target, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Renderer) renderInto(manifest *graph.Manifest, target string) error {
	return manifest.Walk(func(path string, entry graph.Entry) error {
		dest := filepath.Join(target, filepath.FromSlash(path))
		switch {
		case entry.Kind == graph.EntryMask:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			return renderMaskNode(dest, entry.Mode)
		case entry.IsDir():
			return os.MkdirAll(dest, os.FileMode(entry.Mode&0o7777))
		case entry.IsSymlink():
			return r.renderSymlink(entry, dest)
		default:
			return r.renderBlob(entry, dest)
		}
	})
}

func (r *Renderer) renderSymlink(entry graph.Entry, dest string) error {
	f, _, err := r.payloads.Open(entry.Object)
	if err != nil {
		return fmt.Errorf("open symlink target payload: %w", err)
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.Symlink(string(data), dest)
}

func (r *Renderer) renderBlob(entry graph.Entry, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	switch r.mode {
	case RenderHardlink:
		return r.renderHardlink(entry, dest)
	case RenderProxy:
		return r.renderViaProxy(entry, dest)
	default:
		return r.renderCopy(entry, dest)
	}
}

func (r *Renderer) renderHardlink(entry graph.Entry, dest string) error {
	_, src, err := r.payloads.Open(entry.Object)
	if err != nil {
		return err
	}
	if err := os.Link(src, dest); err != nil {
		if os.IsExist(err) {
			return nil
		}
		if errors.Is(err, syscall.EXDEV) || errors.Is(err, syscall.EPERM) {
			// cross-device, or a filesystem that disallows hardlinks:
			// fall back to copying this one entry rather than failing
			// the whole render.
			return r.renderCopy(entry, dest)
		}
		return err
	}
	return os.Chmod(dest, os.FileMode(entry.Mode&0o7777))
}

func (r *Renderer) renderCopy(entry graph.Entry, dest string) error {
	src, _, err := r.payloads.Open(entry.Object)
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(entry.Mode&0o7777))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dest, os.FileMode(entry.Mode&0o7777))
}

// renderViaProxy hardlinks the payload into a shared per-(digest, mode)
// proxy file (creating it once, de-duplicated across concurrent renders),
// then hardlinks from the proxy into dest (spec.md §4.6).
func (r *Renderer) renderViaProxy(entry graph.Entry, dest string) error {
	proxyKey := fmt.Sprintf("%s-%04o", entry.Object, entry.Mode&0o7777)
	proxyPath := filepath.Join(r.proxyDir, proxyKey)

	if _, err := r.inflight.Do("proxy:"+proxyKey, func() (interface{}, error) {
		if _, err := os.Stat(proxyPath); err == nil {
			return nil, nil
		}
		_, src, err := r.payloads.Open(entry.Object)
		if err != nil {
			return nil, err
		}
		if err := os.Link(src, proxyPath); err != nil {
			if os.IsExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("create proxy link: %w", err)
		}
		return nil, os.Chmod(proxyPath, os.FileMode(entry.Mode&0o7777))
	}); err != nil {
		return err
	}

	if err := os.Link(proxyPath, dest); err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return nil
}
