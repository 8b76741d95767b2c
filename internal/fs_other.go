//go:build !unix

package internal

import iofs "io/fs"

func keyOf(p string, _ iofs.FileInfo) fileKey {
	return pathKey(p)
}
