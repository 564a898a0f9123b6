package runtime

// MountProvider performs the namespace and mount operations needed to
// bring a runtime's resolved overlay stack into the calling process's
// filesystem view (spec.md §4.7). Implementations are platform-specific
// (mount_linux.go / mount_other.go); this interface lets bootstrap code
// stay platform-agnostic.
type MountProvider interface {
	// EnterNamespace isolates subsequent mounts to this process and its
	// descendants.
	EnterNamespace() error
	// MountOverlay stacks lowerDirs (top-to-bottom order) under upperDir/
	// workDir at target.
	MountOverlay(lowerDirs []string, upperDir, workDir, target string) error
	// Unmount tears down a mount previously established by MountOverlay.
	Unmount(target string) error
	// EnterNamespaceOf joins the mount namespace already set up by another
	// process hosting an active runtime.
	EnterNamespaceOf(pid int) error
}
