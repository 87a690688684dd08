//go:build !unix

package fs

import "io/fs"

func identityOf(fs.FileInfo) (fileID, bool) {
	return fileID{}, false
}
