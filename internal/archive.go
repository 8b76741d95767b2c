package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/sirupsen/logrus"

	"rfgrep/internal/scanner"
)

const maxArchiveFiles = 10000 // zip-bomb protection

var errArchiveLimit = errors.New("archive file limit reached")

var archiveExt = map[string]struct{}{
	".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".xz": {},
	".rar": {}, ".br": {}, ".lz4": {}, ".lz": {}, ".mz": {},
	".sz": {}, ".s2": {}, ".zz": {}, ".zst": {}, ".7z": {},
}

// IsArchive by extension. O(1) map lookup
func IsArchive(p string) bool {
	_, ok := archiveExt[strings.ToLower(filepath.Ext(p))]
	return ok
}

// archive feeds the members of one archive as candidates. Members obey the
// same hidden, ignore, extension and size rules as regular files.
func (w *Walker) archive(ctx context.Context, archivePath string, fn func(scanner.FileCandidate) error) error {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		w.stats.Fail(&FileAccessError{Path: archivePath, Op: "archive", Err: err})
		return nil
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer closer.Close()
	}

	var stop error
	count := 0
	walkErr := iofs.WalkDir(fsys, ".", func(inner string, d iofs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			w.stats.Fail(&FileAccessError{Path: archivePath + "!" + inner, Op: "archive", Err: err})
			return nil
		}
		name := path.Base(inner)
		hidden := inner != "." && strings.HasPrefix(name, ".")
		if inner != "." && ((hidden && !w.cfg.ShowHidden) || w.cfg.ignoredName(name)) {
			if d.IsDir() {
				return iofs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if count >= maxArchiveFiles {
			logrus.Warnf("Archive %s truncated: too many files (>= %d)", archivePath, maxArchiveFiles)
			return errArchiveLimit
		}
		ext := NormalizeExt(path.Ext(name))
		if !w.cfg.allowedExt(ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			w.stats.Fail(&FileAccessError{Path: archivePath + "!" + inner, Op: "stat", Err: err})
			return nil
		}
		count++
		w.stats.FilesVisited.Add(1)
		if !w.cfg.sizeAllowed(info.Size()) || info.Size() > maxMmapThreshold {
			w.stats.Skip(scanner.SkipSize)
			return nil
		}
		if err := fn(scanner.FileCandidate{
			Path:      archivePath,
			InnerPath: inner,
			Size:      info.Size(),
			Extension: ext,
			IsHidden:  hidden,
		}); err != nil {
			stop = err
			return err
		}
		return nil
	})
	switch {
	case stop != nil:
		return stop
	case ctx.Err() != nil:
		return ctx.Err()
	case walkErr != nil && !errors.Is(walkErr, errArchiveLimit):
		w.stats.Fail(&FileAccessError{Path: archivePath, Op: "archive", Err: walkErr})
	}
	return nil
}

// readArchiveMember loads one member fully; members are never memory mapped.
func readArchiveMember(ctx context.Context, c scanner.FileCandidate) ([]byte, error) {
	fsys, err := archives.FileSystem(ctx, c.Path, nil)
	if err != nil {
		return nil, &FileAccessError{Path: c.Path, Op: "archive", Err: err}
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer closer.Close()
	}
	f, err := fsys.Open(c.InnerPath)
	if err != nil {
		return nil, &FileAccessError{Path: c.Path + "!" + c.InnerPath, Op: "open", Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxMmapThreshold))
	if err != nil {
		return nil, &FileAccessError{Path: c.Path + "!" + c.InnerPath, Op: "read", Err: fmt.Errorf("archive member: %w", err)}
	}
	return data, nil
}
