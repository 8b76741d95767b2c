package internal

import (
	"bytes"

	"rfgrep/internal/scanner"
)

// LineIndex records line-start offsets of a file's content. It is built by
// one forward scan and reused for every match in that file.
type LineIndex struct {
	data   []byte
	starts []int
}

func NewLineIndex(data []byte) *LineIndex {
	idx := &LineIndex{data: data}
	if len(data) == 0 {
		return idx
	}
	idx.starts = make([]int, 1, min(len(data)/32+1, 1<<16))
	for off := 0; ; {
		i := bytes.IndexByte(data[off:], '\n')
		if i < 0 {
			break
		}
		off += i + 1
		if off >= len(data) {
			break
		}
		idx.starts = append(idx.starts, off)
	}
	return idx
}

// Count is the number of lines; a trailing newline does not open a new line.
func (x *LineIndex) Count() int { return len(x.starts) }

// Line returns line n (1-based) without its "\n" or "\r\n" terminator.
func (x *LineIndex) Line(n int) []byte {
	start := x.starts[n-1]
	end := len(x.data)
	if n < len(x.starts) {
		end = x.starts[n]
	}
	if end > start && x.data[end-1] == '\n' {
		end--
	}
	if end > start && x.data[end-1] == '\r' {
		end--
	}
	return x.data[start:end]
}

// Offset is the byte offset of the start of line n.
func (x *LineIndex) Offset(n int) int { return x.starts[n-1] }

// Extractor turns a line-relative range into a SearchMatch with up to
// contextLines of surrounding lines, clipped at the file edges.
//
// Lines are converted to strings once and shared by every match that needs
// them. win holds a contiguous run of converted lines; Extract must be called
// with non-decreasing line numbers.
type Extractor struct {
	idx          *LineIndex
	contextLines int
	path, inner  string
	win          []scanner.ContextLine
}

func NewExtractor(idx *LineIndex, contextLines int, path, innerPath string) *Extractor {
	return &Extractor{idx: idx, contextLines: contextLines, path: path, inner: innerPath}
}

func (e *Extractor) Extract(line int, r scanner.ByteRange, inverted bool) scanner.SearchMatch {
	from := max(1, line-e.contextLines)
	e.prune(from)

	m := scanner.SearchMatch{
		Path:       e.path,
		InnerPath:  e.inner,
		LineNumber: line,
		Range:      r,
		Offset:     e.idx.Offset(line) + r.Start,
		Inverted:   inverted,
	}
	if from < line {
		m.ContextBefore = e.lines(from, line-1)
	}
	m.Line = e.text(line)
	m.MatchedText = m.Line[r.Start:r.End]
	if to := min(e.idx.Count(), line+e.contextLines); to > line {
		m.ContextAfter = e.lines(line+1, to)
	}
	return m
}

func (e *Extractor) lines(from, to int) []scanner.ContextLine {
	out := make([]scanner.ContextLine, 0, to-from+1)
	for n := from; n <= to; n++ {
		out = append(out, scanner.ContextLine{Number: n, Text: e.text(n)})
	}
	return out
}

// text returns line n as a string, converting it at most once while it
// stays inside the window.
func (e *Extractor) text(n int) string {
	if k := len(e.win); k > 0 {
		first := e.win[0].Number
		if n >= first && n < first+k {
			return e.win[n-first].Text
		}
		if n != first+k {
			e.win = e.win[:0]
		}
	}
	s := string(e.idx.Line(n))
	e.win = append(e.win, scanner.ContextLine{Number: n, Text: s})
	return s
}

// prune drops converted lines before lo.
func (e *Extractor) prune(lo int) {
	i := 0
	for i < len(e.win) && e.win[i].Number < lo {
		i++
	}
	if i > 0 {
		e.win = append(e.win[:0], e.win[i:]...)
	}
}
