//go:build !linux

package fsstore

import "fmt"

// renderMaskNode is only meaningful under a Linux overlay mount; other
// platforms cannot materialize the whiteout device node.
func renderMaskNode(dest string, mode uint32) error {
	return fmt.Errorf("rendering mask entries is only supported on linux")
}
