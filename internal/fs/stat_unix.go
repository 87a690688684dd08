//go:build unix

package fs

import (
	"io/fs"
	"syscall"
)

// identityOf extracts the device and inode of a directory so symlink
// cycles can be detected.
func identityOf(info fs.FileInfo) (fileID, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fileID{}, false
	}
	return fileID{dev: uint64(stat.Dev), ino: uint64(stat.Ino)}, true
}
