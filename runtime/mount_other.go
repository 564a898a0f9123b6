//go:build !linux

package runtime

import "fmt"

type otherMountProvider struct{}

// NewMountProvider returns the platform's MountProvider. Overlay mounting
// is a Linux-only kernel feature (spec.md §4.7 Non-goals); every method
// here reports that plainly rather than attempting an emulation.
func NewMountProvider() MountProvider { return otherMountProvider{} }

func (otherMountProvider) EnterNamespace() error {
	return fmt.Errorf("mount namespaces are only supported on linux")
}

func (otherMountProvider) MountOverlay(lowerDirs []string, upperDir, workDir, target string) error {
	return fmt.Errorf("overlay mounts are only supported on linux")
}

func (otherMountProvider) Unmount(target string) error {
	return fmt.Errorf("overlay mounts are only supported on linux")
}

func (otherMountProvider) EnterNamespaceOf(pid int) error {
	return fmt.Errorf("mount namespaces are only supported on linux")
}

// LinuxEmptyChecker's counterpart on other platforms: there is no runtime
// to ever become non-empty, since none can be mounted here.
type LinuxEmptyChecker struct{}

// IsRuntimeEmpty always reports true: without overlay mounts, a runtime has
// no processes using it to begin with.
func (LinuxEmptyChecker) IsRuntimeEmpty(rt *Runtime) (bool, error) {
	return true, nil
}
