package internal

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/blevesearch/mmap-go"
	"github.com/sirupsen/logrus"

	"rfgrep/internal/scanner"
)

const (
	// lines between two cancellation checks inside one file
	cancelCheckLines = 4096
	// larger buffers are left to the GC instead of the pool
	maxPooledBuffer = 4 << 20
)

var errMatchLimit = errors.New("match limit reached") // sentinel, never surfaces

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 64<<10)
		return &b
	},
}

// content is one file body, backed by a pooled buffer or a read-only mapping.
type content struct {
	data []byte
	mm   mmap.MMap
	buf  *[]byte
}

func (c *content) release() {
	if c.mm != nil {
		if err := c.mm.Unmap(); err != nil {
			logrus.WithError(err).Debug("unmap")
		}
		c.mm = nil
	}
	if c.buf != nil {
		if cap(*c.buf) <= maxPooledBuffer {
			*c.buf = (*c.buf)[:0]
			bufPool.Put(c.buf)
		}
		c.buf = nil
	}
	c.data = nil
}

// load reads a candidate according to its plan. A failed mapping falls
// back to a buffered read of the same file.
func load(ctx context.Context, c scanner.FileCandidate, plan scanner.AccessPlan) (*content, error) {
	if c.InnerPath != "" {
		data, err := readArchiveMember(ctx, c)
		if err != nil {
			return nil, err
		}
		return &content{data: data}, nil
	}

	f, err := os.Open(c.Path)
	if err != nil {
		return nil, &FileAccessError{Path: c.Path, Op: "open", Err: err}
	}
	defer f.Close()

	if plan.Kind == scanner.PlanMapped {
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err == nil {
			return &content{data: m, mm: m}, nil
		}
		logrus.WithFields(logrus.Fields{"file": c.Path, "err": err}).Debug("mmap failed, reading buffered")
	}

	bp := bufPool.Get().(*[]byte)
	data, err := readInto((*bp)[:0], f, c.Size)
	*bp = data
	if err != nil {
		bufPool.Put(bp)
		return nil, &FileAccessError{Path: c.Path, Op: "read", Err: err}
	}
	return &content{data: data, buf: bp}, nil
}

// readInto appends all of r to buf. size is a hint; the file may have
// changed since it was listed.
func readInto(buf []byte, r io.Reader, size int64) ([]byte, error) {
	if want := int(size) + 1; cap(buf) < want {
		buf = make([]byte, 0, want)
	}
	for {
		n, err := r.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if errors.Is(err, io.EOF) {
			return buf, nil
		}
		if err != nil {
			return buf, err
		}
		if len(buf) == cap(buf) {
			buf = append(buf, 0)[:len(buf)]
		}
	}
}

// searchContent runs the pattern over every line of data and hands each
// match to emit. emit returning false stops the file with errMatchLimit.
// It returns the number of matches emitted.
func searchContent(ctx context.Context, cfg *Compiled, c scanner.FileCandidate, data []byte, emit func(scanner.SearchMatch) bool) (int, error) {
	idx := NewLineIndex(data)
	ex := NewExtractor(idx, cfg.ContextLines, c.Path, c.InnerPath)
	p := cfg.Pattern()
	perFile := cfg.MaxMatchesPerFile

	var ranges []scanner.ByteRange
	found := 0
	for n := 1; n <= idx.Count(); n++ {
		if n%cancelCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return found, err
			}
		}
		line := idx.Line(n)

		if cfg.InvertMatch {
			ranges = p.FindAll(line, 1, ranges[:0])
			if len(ranges) > 0 {
				continue
			}
			if !emit(ex.Extract(n, scanner.ByteRange{Start: 0, End: len(line)}, true)) {
				return found, errMatchLimit
			}
			found++
		} else {
			limit := -1
			if perFile > 0 {
				limit = perFile - found
			}
			ranges = p.FindAll(line, limit, ranges[:0])
			for _, r := range ranges {
				if !emit(ex.Extract(n, r, false)) {
					return found, errMatchLimit
				}
				found++
			}
		}

		if perFile > 0 && found >= perFile {
			break
		}
	}
	return found, nil
}
