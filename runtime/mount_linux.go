//go:build linux

package runtime

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// linuxMountProvider enters a new mount namespace and stacks an overlayfs
// mount from a runtime's resolved lower directories plus its writable upper
// and work directories (spec.md §4.7). The concrete mount syscall sequence
// in the retrieved reference material lived in a module that was not part
// of the retrieved pack (see DESIGN.md); this is authored directly against
// the documented overlay mount options, following the same
// golang.org/x/sys/unix primitives already used for whiteout nodes in
// storage/fs/mask_linux.go.
type linuxMountProvider struct{}

// NewMountProvider returns the platform's MountProvider.
func NewMountProvider() MountProvider { return linuxMountProvider{} }

// EnterNamespace unshares the mount namespace of the calling process so
// subsequent mounts are private to it and its descendants (spec.md §4.7
// step 3).
func (linuxMountProvider) EnterNamespace() error {
	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("unshare mount namespace: %w", err)
	}
	// Mark the root private first so our overlay mount does not propagate
	// back out to the parent namespace (standard pivot-free container
	// mount-namespace setup).
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("mark mount namespace private: %w", err)
	}
	return nil
}

// MountOverlay stacks lowerDirs (ordered top-to-bottom, the order
// overlayfs's lowerdir option lists them and the order they are passed
// through in; ResolveOverlayDirs returns its directories bottom-to-top, so
// callers reverse that list) at target, using upperDir/workDir for the
// editable layer.
func (linuxMountProvider) MountOverlay(lowerDirs []string, upperDir, workDir, target string) error {
	if len(lowerDirs) == 0 {
		return fmt.Errorf("mount overlay: no lower directories given")
	}
	opts := fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", strings.Join(lowerDirs, ":"), upperDir, workDir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create overlay mount point: %w", err)
	}
	if err := unix.Mount("none", target, "overlay", 0, opts); err != nil {
		return fmt.Errorf("mount overlay at %s: %w", target, err)
	}
	return nil
}

// Unmount tears down a previously-mounted overlay.
func (linuxMountProvider) Unmount(target string) error {
	if err := unix.Unmount(target, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("unmount %s: %w", target, err)
	}
	return nil
}

// EnterNamespaceOf joins the mount namespace of an already-running process
// hosting an active runtime (spec.md §4.7's "edit in place" join path).
func (linuxMountProvider) EnterNamespaceOf(pid int) error {
	nsPath := fmt.Sprintf("/proc/%d/ns/mnt", pid)
	f, err := os.Open(nsPath)
	if err != nil {
		return fmt.Errorf("open namespace handle for pid %d: %w", pid, err)
	}
	defer f.Close()
	if err := unix.Setns(int(f.Fd()), unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("join mount namespace of pid %d: %w", pid, err)
	}
	return nil
}

// LinuxEmptyChecker reports a runtime empty once its owning process is gone.
// The original per-namespace process census lived in the same mount-syscall
// module referenced above, which was not part of the retrieved reference
// material; this narrows "empty" to "the process that created the runtime
// has exited" rather than walking every process's mount namespace, which is
// sufficient for the single-owner-process runtimes this package creates.
type LinuxEmptyChecker struct{}

// IsRuntimeEmpty reports whether rt's owning process is still alive.
func (LinuxEmptyChecker) IsRuntimeEmpty(rt *Runtime) (bool, error) {
	if rt.Status.PID <= 0 {
		return true, nil
	}
	if err := unix.Kill(rt.Status.PID, 0); err != nil {
		if err == unix.ESRCH {
			return true, nil
		}
		return false, fmt.Errorf("check owning process %d: %w", rt.Status.PID, err)
	}
	return false, nil
}
