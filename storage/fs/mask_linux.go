//go:build linux

package fsstore

import (
	"golang.org/x/sys/unix"
)

// renderMaskNode recreates a whiteout (mask) entry as the character device
// (0,0) the overlay filesystem recognizes as "this path is deleted in
// layers above" (spec.md §4.7 step 7).
func renderMaskNode(dest string, mode uint32) error {
	return unix.Mknod(dest, unix.S_IFCHR|(mode&0o777), 0)
}
