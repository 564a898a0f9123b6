package storage

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/graph"
	"github.com/spkenv/spfs/internal/dcontext"
	"github.com/spkenv/spfs/tracking"
)

// SyncStats tallies what a Sync call actually copied, for callers that want
// to report progress the way the mark/sweep pass does.
type SyncStats struct {
	ObjectsCopied  int
	PayloadsCopied int
}

// syncer carries the shared, mutex-protected "already copied" sets a single
// Sync call's fan-out needs, mirroring the mark set a mark-and-sweep pass
// keeps while walking a reference graph concurrently.
type syncer struct {
	src, dst Repository

	mu      sync.Mutex
	objects map[encoding.Digest]struct{}
	stats   SyncStats
}

// Sync copies ref's entire object graph — every object and payload it
// transitively references — from src into dst, skipping anything dst
// already has. It does not copy tags; call SyncTag for that.
func Sync(ctx context.Context, src, dst Repository, ref string) (encoding.Digest, SyncStats, error) {
	obj, err := src.ReadRef(ref)
	if err != nil {
		return encoding.NullDigest, SyncStats{}, fmt.Errorf("resolve %s in source: %w", ref, err)
	}
	digest, err := graph.Digest(obj)
	if err != nil {
		return encoding.NullDigest, SyncStats{}, err
	}

	log := dcontext.GetLogger(dcontext.WithDigest(ctx, digest))
	log.Debug("starting sync")

	s := &syncer{src: src, dst: dst, objects: make(map[encoding.Digest]struct{})}
	if err := s.syncObject(ctx, digest, obj); err != nil {
		return encoding.NullDigest, s.stats, err
	}
	log.Infof("sync complete: %d objects, %d payloads copied", s.stats.ObjectsCopied, s.stats.PayloadsCopied)
	return digest, s.stats, nil
}

// SyncTag resolves ref's target object graph exactly like Sync, then pushes
// the same tag name onto dst once the copy has completed.
func SyncTag(ctx context.Context, src, dst Repository, ref tracking.TagReference, user string) (tracking.Tag, SyncStats, error) {
	ctx = dcontext.WithTagSpec(ctx, ref.Spec)
	digest, stats, err := Sync(ctx, src, dst, ref.String())
	if err != nil {
		return tracking.Tag{}, stats, err
	}
	tag, err := dst.PushTag(ref.Spec, digest, user)
	if err != nil {
		dcontext.GetLogger(ctx).WithError(err).Error("failed to push tag after sync")
	}
	return tag, stats, err
}

func (s *syncer) alreadySeen(d encoding.Digest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[d]; ok {
		return true
	}
	s.objects[d] = struct{}{}
	return false
}

func (s *syncer) syncObject(ctx context.Context, digest encoding.Digest, obj graph.Object) error {
	if s.alreadySeen(digest) {
		return nil
	}

	if has, err := s.dst.HasObject(digest); err != nil {
		return err
	} else if !has {
		if _, err := s.dst.WriteObject(obj); err != nil {
			return fmt.Errorf("write object %s: %w", digest, err)
		}
		s.mu.Lock()
		s.stats.ObjectsCopied++
		s.mu.Unlock()
	}

	if blob, ok := obj.(graph.Blob); ok {
		return s.syncPayload(blob.Payload)
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for _, childDigest := range obj.ChildObjects() {
		childDigest := childDigest
		g.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}
			child, err := s.src.ReadObject(childDigest)
			if err != nil {
				return fmt.Errorf("read child object %s: %w", childDigest, err)
			}
			return s.syncObject(groupCtx, childDigest, child)
		})
	}
	return g.Wait()
}

func (s *syncer) syncPayload(digest encoding.Digest) error {
	if digest.IsNull() {
		return nil
	}
	if has, err := s.dst.HasPayload(digest); err != nil {
		return err
	} else if has {
		return nil
	}

	r, err := s.src.OpenPayload(digest)
	if err != nil {
		return fmt.Errorf("open payload %s: %w", digest, err)
	}
	defer r.Close()

	gotDigest, _, err := s.dst.WritePayload(r)
	if err != nil {
		return fmt.Errorf("write payload %s: %w", digest, err)
	}
	if gotDigest != digest {
		return fmt.Errorf("payload %s re-hashed to %s while syncing", digest, gotDigest)
	}
	s.mu.Lock()
	s.stats.PayloadsCopied++
	s.mu.Unlock()
	return nil
}
