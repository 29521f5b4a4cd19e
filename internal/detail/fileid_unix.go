//go:build unix

package detail

import (
	"os"
	"syscall"
)

// fileID returns the inode of fi, or 0 when the platform does not expose it.
func fileID(fi os.FileInfo) uint64 {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Ino)
	}
	return 0
}
