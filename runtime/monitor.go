package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spkenv/spfs/internal/dcontext"
)

// startTokenTimeout bounds how long the monitor waits on stdin for its
// parent's go-ahead before giving up and proceeding anyway. Large
// environments can take many minutes to render, so this is generous
// (spec.md §4.7; grounded on cmd_monitor.rs's 3600s timeout).
const startTokenTimeout = 3600 * time.Second

// pollInterval is how often the monitor checks whether its runtime has
// emptied out (no processes left using its mount namespace).
const pollInterval = 250 * time.Millisecond

// EmptyChecker reports whether a runtime currently has no processes left
// inside its mount namespace. Implementations live alongside the
// namespace-join machinery (mount_linux.go); kept as an interface here so
// Monitor has no platform-specific code of its own.
type EmptyChecker interface {
	IsRuntimeEmpty(rt *Runtime) (bool, error)
}

// Monitor owns exactly one runtime for its lifetime: it waits for every
// process using the runtime to exit, then tears down its on-disk state.
// There is exactly one monitor per runtime (spec.md §4.7).
type Monitor struct {
	Storage *Storage
	Checker EmptyChecker
}

// WaitForStartToken blocks on stdin until the parent process signals it is
// safe to begin monitoring (by writing at least one byte), or until
// startTokenTimeout elapses. Either outcome is logged and non-fatal: the
// monitor proceeds to wait on the runtime regardless, matching
// cmd_monitor.rs's behavior of treating a missing/late token as a warning,
// not an abort condition.
// The read itself cannot be cancelled (os.Stdin.Read has no context
// support), so on timeout or cancellation the background goroutine is left
// to exit whenever the parent eventually writes or closes its end; this
// matches the read always completing in practice, since nothing else holds
// the process open once the caller moves on.
func WaitForStartToken(ctx context.Context, stdin io.Reader) {
	done := make(chan struct{})
	var n int
	var err error
	go func() {
		buf := make([]byte, 64)
		n, err = stdin.Read(buf)
		close(done)
	}()

	log := dcontext.GetLogger(ctx)
	select {
	case <-done:
		if err != nil && err != io.EOF {
			log.WithError(err).Warn("parent process quit before sending a start token")
			return
		}
		if n == 0 {
			log.Warn("parent process quit before sending us anything")
			return
		}
		log.Debugf("received start token from parent process (%d bytes)", n)
	case <-time.After(startTokenTimeout):
		log.Warn("timeout waiting for parent process")
	case <-ctx.Done():
	}
}

// Run waits for rt to empty out or for a termination signal, then marks the
// runtime not-running, persists that, and deletes its storage -- regardless
// of which happened first. Cleanup is always attempted: a failure partway
// through is logged, not fatal (spec.md §4.7, grounded on cmd_monitor.rs's
// unconditional owned.delete() after the select).
func (m *Monitor) Run(ctx context.Context, rt *Runtime) error {
	sigCh := make(chan os.Signal, 3)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	emptyCh := make(chan error, 1)
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { emptyCh <- m.waitForEmpty(waitCtx, rt) }()

	var runErr error
	select {
	case runErr = <-emptyCh:
	case sig := <-sigCh:
		runErr = fmt.Errorf("%s received, cleaning up runtime early", sig)
	}

	// Cleanup must finish even if ctx was the thing that just got canceled
	// (parent shutdown, SIGTERM) -- detach so the logger survives but
	// cancellation does not propagate into the cleanup path.
	cleanupLog := dcontext.GetLogger(dcontext.DetachedContext(ctx))

	rt.Status.Running = false
	if err := rt.Save(); err != nil {
		cleanupLog.WithError(err).Error("failed to persist runtime status before cleanup")
	}
	if err := m.Storage.RemoveRuntime(rt.Name); err != nil {
		cleanupLog.WithError(err).Error("failed to clean up runtime data")
	}
	return runErr
}

func (m *Monitor) waitForEmpty(ctx context.Context, rt *Runtime) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			empty, err := m.Checker.IsRuntimeEmpty(rt)
			if err != nil {
				return err
			}
			if empty {
				return nil
			}
		}
	}
}
