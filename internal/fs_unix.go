//go:build unix

package internal

import (
	iofs "io/fs"
	"syscall"
)

func keyOf(p string, info iofs.FileInfo) fileKey {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return fileKey{dev: uint64(st.Dev), ino: uint64(st.Ino)}
	}
	return pathKey(p)
}
