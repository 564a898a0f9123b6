package dcontext

import "context"

// DetachedContext returns a context that won't be canceled when the parent
// context is canceled. Runtime teardown needs this: Monitor.Run's cleanup
// (persisting runtime status, removing on-disk runtime state) must still run
// to completion even when the context it was passed was itself the thing
// that just got canceled -- a SIGTERM or a caller giving up early (spec.md
// §4.7, "cleanup is always attempted").
//
// The detached context preserves all values from the parent context (logger
// fields, in particular) but removes cancellation/deadline behavior.
func DetachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
