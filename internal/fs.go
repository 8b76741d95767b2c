package internal

import (
	"context"
	"errors"
	iofs "io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"rfgrep/internal/scanner"
)

// fileKey identifies a directory for cycle detection.
type fileKey struct {
	dev, ino uint64
	path     string // used when the platform has no inode numbers
}

func pathKey(p string) fileKey {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		resolved = p
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}
	return fileKey{path: resolved}
}

// Walker produces FileCandidates depth-first in lexical order. Symlinks are
// followed; a directory already on the visited set is skipped silently.
type Walker struct {
	cfg   *Compiled
	stats *ScanStats
}

func NewWalker(cfg *Compiled, stats *ScanStats) *Walker {
	return &Walker{cfg: cfg, stats: stats}
}

// Walk calls fn for each candidate under root. An error from fn, or the
// context's error, stops the walk and is returned. Filesystem errors are
// recorded in the stats and never stop the walk.
func (w *Walker) Walk(ctx context.Context, root string, fn func(scanner.FileCandidate) error) error {
	info, err := os.Stat(root)
	if err != nil {
		w.stats.Fail(&FileAccessError{Path: root, Op: "stat", Err: err})
		return nil
	}
	if !info.IsDir() {
		lst, lerr := os.Lstat(root)
		symlink := lerr == nil && lst.Mode()&iofs.ModeSymlink != 0
		return w.file(ctx, root, info, false, symlink, fn)
	}
	visited := map[fileKey]struct{}{keyOf(root, info): {}}
	return w.dir(ctx, root, 0, visited, fn)
}

// Candidates exposes Walk as a lazy sequence. Each range over it walks anew.
func (w *Walker) Candidates(ctx context.Context, root string) iter.Seq[scanner.FileCandidate] {
	return func(yield func(scanner.FileCandidate) bool) {
		_ = w.Walk(ctx, root, func(c scanner.FileCandidate) error {
			if !yield(c) {
				return errStopWalk
			}
			return nil
		})
	}
}

func (w *Walker) dir(ctx context.Context, dir string, depth int, visited map[fileKey]struct{}, fn func(scanner.FileCandidate) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		// ReadDir may still return the entries read before the failure
		w.stats.Fail(&FileAccessError{Path: dir, Op: "readdir", Err: err})
		logrus.WithFields(logrus.Fields{"dir": dir, "err": err}).Debug("subtree skipped")
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := e.Name()
		hidden := strings.HasPrefix(name, ".")
		if hidden && !w.cfg.ShowHidden {
			continue
		}
		if w.cfg.ignoredName(name) {
			continue
		}

		p := filepath.Join(dir, name)
		symlink := e.Type()&iofs.ModeSymlink != 0
		var info iofs.FileInfo
		if symlink {
			info, err = os.Stat(p)
		} else {
			info, err = e.Info()
		}
		if err != nil {
			if symlink && errors.Is(err, iofs.ErrNotExist) {
				logrus.WithField("link", p).Debug("dangling symlink")
				continue
			}
			w.stats.Fail(&FileAccessError{Path: p, Op: "stat", Err: err})
			continue
		}

		if info.IsDir() {
			if !w.cfg.Recursive {
				continue
			}
			// files inside p would sit at depth+2
			if w.cfg.MaxDepth > 0 && depth+2 > w.cfg.MaxDepth {
				continue
			}
			key := keyOf(p, info)
			if _, seen := visited[key]; seen {
				logrus.WithField("dir", p).Debug("directory already visited, skipping cycle")
				continue
			}
			visited[key] = struct{}{}
			if err := w.dir(ctx, p, depth+1, visited, fn); err != nil {
				return err
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if err := w.file(ctx, p, info, hidden, symlink, fn); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) file(ctx context.Context, p string, info iofs.FileInfo, hidden, symlink bool, fn func(scanner.FileCandidate) error) error {
	if w.cfg.Archives && IsArchive(p) {
		return w.archive(ctx, p, fn)
	}
	ext := NormalizeExt(filepath.Ext(info.Name()))
	if !w.cfg.allowedExt(ext) {
		return nil
	}
	w.stats.FilesVisited.Add(1)
	if !w.cfg.sizeAllowed(info.Size()) {
		w.stats.Skip(scanner.SkipSize)
		logrus.WithFields(logrus.Fields{"file": p, "reason": scanner.SkipSize}).Debug("skip")
		return nil
	}
	return fn(scanner.FileCandidate{
		Path:      p,
		Size:      info.Size(),
		Extension: ext,
		IsHidden:  hidden,
		IsSymlink: symlink,
	})
}
