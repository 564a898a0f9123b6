package runtime

import (
	"fmt"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/graph"
	fsstore "github.com/spkenv/spfs/storage/fs"
)

// ObjectReader is the subset of storage.Repository overlay resolution needs;
// kept narrow so callers can pass any backend without importing the full
// storage package (avoids an import cycle, since storage does not depend on
// runtime).
type ObjectReader interface {
	ReadObject(digest encoding.Digest) (graph.Object, error)
}

// ResolveStackToLayers expands a bottom-up stack of layer and/or platform
// digests into a flat, bottom-up list of layers: every platform in the
// stack is replaced, recursively, by its own stack, and later occurrences of
// an already-emitted layer are dropped so the result contains each layer
// exactly once (spec.md §4.7 step 1, §8 "Overlay resolution idempotence").
// Grounded on _examples/original_source/crates/spfs/src/resolve.rs's
// resolve_stack_to_layers, with the dedup step spec.md §4.7 names added on
// top (the retrieved source predates it).
func ResolveStackToLayers(repo ObjectReader, stack []encoding.Digest) ([]graph.Layer, error) {
	return resolveStackToLayers(repo, stack, make(map[encoding.Digest]struct{}))
}

// resolveStackToLayers carries the seen-set across the whole recursive
// expansion so a layer referenced both inside a platform and directly in an
// outer stack is only emitted the first time it is reached.
func resolveStackToLayers(repo ObjectReader, stack []encoding.Digest, seen map[encoding.Digest]struct{}) ([]graph.Layer, error) {
	layers := make([]graph.Layer, 0, len(stack))
	for _, digest := range stack {
		obj, err := repo.ReadObject(digest)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", digest, err)
		}
		switch o := obj.(type) {
		case graph.Layer:
			if _, ok := seen[digest]; ok {
				continue
			}
			seen[digest] = struct{}{}
			layers = append(layers, o)
		case graph.Platform:
			sub, err := resolveStackToLayers(repo, o.Stack, seen)
			if err != nil {
				return nil, err
			}
			layers = append(layers, sub...)
		default:
			return nil, fmt.Errorf("object %s is neither a layer nor a platform (kind %s)", digest, obj.Kind())
		}
	}
	return layers, nil
}

// ComputeRuntimeManifest overwrites a flat path->entry map bottom-to-top
// across the given layers' manifests. This is deliberately narrower than a
// full manifest merge (spec.md §4.7 "Non-goals"): it exists only so callers
// can ask "what does the composed runtime think is at this path" for
// mask/edit bookkeeping, NOT to drive the actual file layering, which the
// kernel's overlayfs mount handles once ResolveOverlayDirs has rendered each
// layer to its own directory. Grounded on resolve.rs's
// compute_object_manifest, narrowed per DESIGN.md.
func ComputeRuntimeManifest(repo ObjectReader, layers []graph.Layer) (map[string]graph.Entry, error) {
	flat := make(map[string]graph.Entry)
	for _, layer := range layers {
		obj, err := repo.ReadObject(layer.Manifest)
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", layer.Manifest, err)
		}
		manifest, ok := obj.(*graph.Manifest)
		if !ok {
			return nil, fmt.Errorf("object %s is not a manifest", layer.Manifest)
		}
		if err := manifest.Walk(func(path string, e graph.Entry) error {
			flat[path] = e
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return flat, nil
}

// kernelOverlayLowerLimit is the typical cap on the number of lowerdirs a
// Linux overlayfs mount accepts (spec.md §4.7 step 3).
const kernelOverlayLowerLimit = 32

// ResolveOverlayDirs renders each layer's manifest into the local render
// cache and returns the resulting directory paths, bottom-to-top, for the
// caller to mount (plus a writable upper directory) as overlayfs lower
// directories. If the layer count exceeds kernelOverlayLowerLimit, adjacent
// manifests are unioned into synthetic ones (oldest pair first, upper
// winning conflicts) and re-rendered in their place until the count fits
// (spec.md §4.7 step 3, §8 "Overlay merge"); the synthetic manifests are
// never persisted as objects. Grounded on resolve.rs's resolve_overlay_dirs,
// with the merge step spec.md §4.7 names added on top (the retrieved source
// predates it).
func ResolveOverlayDirs(repo ObjectReader, renderer *fsstore.Renderer, layers []graph.Layer) ([]string, error) {
	manifests := make([]*graph.Manifest, 0, len(layers))
	for _, layer := range layers {
		obj, err := repo.ReadObject(layer.Manifest)
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", layer.Manifest, err)
		}
		manifest, ok := obj.(*graph.Manifest)
		if !ok {
			return nil, fmt.Errorf("object %s is not a manifest", layer.Manifest)
		}
		manifests = append(manifests, manifest)
	}

	for len(manifests) > kernelOverlayLowerLimit {
		merged, err := mergeManifests(manifests[0], manifests[1])
		if err != nil {
			return nil, fmt.Errorf("merge overlay layers to fit under kernel limit: %w", err)
		}
		manifests = append([]*graph.Manifest{merged}, manifests[2:]...)
	}

	dirs := make([]string, 0, len(manifests))
	for _, manifest := range manifests {
		dir, err := renderer.RenderManifest(manifest)
		if err != nil {
			return nil, fmt.Errorf("render overlay layer: %w", err)
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// mergeManifests unions lower and upper into a single synthetic manifest
// that, rendered, is indistinguishable from mounting the two separately:
// upper wins wherever a path isn't a directory on both sides.
func mergeManifests(lower, upper *graph.Manifest) (*graph.Manifest, error) {
	available := make(map[encoding.Digest]*graph.Tree, len(lower.Subtrees)+len(upper.Subtrees))
	for d, t := range lower.Subtrees {
		available[d] = t
	}
	for d, t := range upper.Subtrees {
		available[d] = t
	}

	merged := make(map[encoding.Digest]*graph.Tree)
	root, err := mergeTrees(lower.Root, upper.Root, available, merged)
	if err != nil {
		return nil, err
	}
	return graph.NewManifest(root, merged)
}

// mergeTrees unions two trees entry by entry. A name present on only one
// side is kept as-is. A name that is a directory on both sides is merged
// recursively. Any other collision (file vs file, file vs dir, mask vs
// anything) resolves fully to upper. Every directory entry in the result
// has its subtree closure copied into merged.
func mergeTrees(lower, upper *graph.Tree, available, merged map[encoding.Digest]*graph.Tree) (*graph.Tree, error) {
	byName := make(map[string]graph.Entry, lower.Len()+upper.Len())
	for _, e := range lower.Sorted() {
		byName[e.Name] = e
	}

	for _, ue := range upper.Sorted() {
		le, ok := byName[ue.Name]
		if ok && le.IsDir() && ue.IsDir() {
			lsub, err := lookupTree(le.Object, available)
			if err != nil {
				return nil, err
			}
			usub, err := lookupTree(ue.Object, available)
			if err != nil {
				return nil, err
			}
			mergedSub, err := mergeTrees(lsub, usub, available, merged)
			if err != nil {
				return nil, err
			}
			digest, err := graph.TreeDigest(mergedSub)
			if err != nil {
				return nil, err
			}
			merged[digest] = mergedSub
			byName[ue.Name] = graph.Entry{Name: ue.Name, Kind: graph.EntryTree, Mode: ue.Mode, Object: digest, Size: ue.Size}
			continue
		}
		byName[ue.Name] = ue
	}

	entries := make([]graph.Entry, 0, len(byName))
	for _, e := range byName {
		entries = append(entries, e)
	}
	tree, err := graph.NewTree(entries)
	if err != nil {
		return nil, err
	}
	for _, e := range tree.Sorted() {
		if !e.IsDir() {
			continue
		}
		if _, ok := merged[e.Object]; ok {
			continue
		}
		if err := copyTreeClosure(e.Object, available, merged); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// copyTreeClosure copies digest, and every subtree it transitively
// references, from available into merged. Used for a directory that wins a
// merge collision outright (or is unique to one side) rather than being
// recursively merged, so its descendants are still reachable in the
// synthetic manifest's Subtrees map.
func copyTreeClosure(digest encoding.Digest, available, merged map[encoding.Digest]*graph.Tree) error {
	if _, ok := merged[digest]; ok {
		return nil
	}
	tree, err := lookupTree(digest, available)
	if err != nil {
		return err
	}
	merged[digest] = tree
	for _, e := range tree.Sorted() {
		if e.IsDir() {
			if err := copyTreeClosure(e.Object, available, merged); err != nil {
				return err
			}
		}
	}
	return nil
}

func lookupTree(digest encoding.Digest, available map[encoding.Digest]*graph.Tree) (*graph.Tree, error) {
	tree, ok := available[digest]
	if !ok {
		return nil, fmt.Errorf("manifest missing subtree %s", digest)
	}
	return tree, nil
}
