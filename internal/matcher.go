package internal

import (
	"bytes"
	"fmt"
	"regexp"
	"sync"
	"unicode"
	"unicode/utf8"

	"rfgrep/internal/scanner"
)

// Pattern finds non-overlapping spans inside a single line, leftmost first.
// A negative limit means unbounded, zero means "find nothing".
// Implementations are immutable after construction and shared by all workers.
type Pattern interface {
	FindAll(line []byte, limit int, dst []scanner.ByteRange) []scanner.ByteRange
	Desc() string // for logs
}

// BoyerMoorePattern is a Horspool variant: only the bad-character table is kept.
type BoyerMoorePattern struct {
	pat   []byte
	shift [256]int
}

func NewBoyerMoorePattern(pat []byte) *BoyerMoorePattern {
	m := len(pat)
	p := &BoyerMoorePattern{pat: append([]byte(nil), pat...)}
	for i := range p.shift {
		p.shift[i] = m
	}
	for k := 0; k < m-1; k++ {
		p.shift[pat[k]] = m - 1 - k
	}
	return p
}

func (p *BoyerMoorePattern) FindAll(line []byte, limit int, dst []scanner.ByteRange) []scanner.ByteRange {
	m := len(p.pat)
	if m == 0 || limit == 0 {
		return dst
	}
	last := p.pat[m-1]
	found := 0
	for i := 0; i+m <= len(line); {
		c := line[i+m-1]
		if c == last && bytes.Equal(line[i:i+m-1], p.pat[:m-1]) {
			dst = append(dst, scanner.ByteRange{Start: i, End: i + m})
			found++
			if limit > 0 && found >= limit {
				break
			}
			i += m
			continue
		}
		i += p.shift[c]
	}
	return dst
}

func (p *BoyerMoorePattern) Desc() string { return "bm:" + string(p.pat) }

// NaivePattern checks every alignment. An empty pattern matches at
// every position 0..len(line), so callers must bound it with limit.
type NaivePattern struct{ pat []byte }

func NewNaivePattern(pat []byte) *NaivePattern {
	return &NaivePattern{pat: append([]byte(nil), pat...)}
}

func (p *NaivePattern) FindAll(line []byte, limit int, dst []scanner.ByteRange) []scanner.ByteRange {
	if limit == 0 {
		return dst
	}
	m := len(p.pat)
	found := 0
	for i := 0; i+m <= len(line); {
		if !bytes.Equal(line[i:i+m], p.pat) {
			i++
			continue
		}
		dst = append(dst, scanner.ByteRange{Start: i, End: i + m})
		found++
		if limit > 0 && found >= limit {
			break
		}
		if m == 0 {
			i++
		} else {
			i += m
		}
	}
	return dst
}

func (p *NaivePattern) Desc() string { return "naive:" + string(p.pat) }

type RegexPattern struct{ re *regexp.Regexp }

func (p *RegexPattern) FindAll(line []byte, limit int, dst []scanner.ByteRange) []scanner.ByteRange {
	if limit == 0 {
		return dst
	}
	for _, loc := range p.re.FindAllIndex(line, limit) {
		dst = append(dst, scanner.ByteRange{Start: loc[0], End: loc[1]})
	}
	return dst
}

func (p *RegexPattern) Desc() string { return "re:" + p.re.String() }

// WordPattern keeps inner spans that do not touch a word-constituent rune.
// A rejected candidate only consumes its first rune, so an overlapping
// whole word later on the line is still found.
type WordPattern struct{ inner Pattern }

func (p *WordPattern) FindAll(line []byte, limit int, dst []scanner.ByteRange) []scanner.ByteRange {
	if limit == 0 {
		return dst
	}
	one := make([]scanner.ByteRange, 0, 1)
	kept := 0
	for off := 0; off <= len(line); {
		one = p.inner.FindAll(line[off:], 1, one[:0])
		if len(one) == 0 {
			break
		}
		r := scanner.ByteRange{Start: one[0].Start + off, End: one[0].End + off}
		if !wordBounded(line, r) {
			off = nextRune(line, r.Start)
			continue
		}
		dst = append(dst, r)
		if kept++; limit > 0 && kept >= limit {
			break
		}
		off = r.End
		if r.End == r.Start {
			off = nextRune(line, r.Start)
		}
	}
	return dst
}

// nextRune is the offset just past the rune starting at i.
func nextRune(line []byte, i int) int {
	if i >= len(line) {
		return i + 1
	}
	_, size := utf8.DecodeRune(line[i:])
	return i + size
}

func (p *WordPattern) Desc() string { return "word:" + p.inner.Desc() }

func wordBounded(line []byte, r scanner.ByteRange) bool {
	if r.Start > 0 {
		if c, _ := utf8.DecodeLastRune(line[:r.Start]); isWordRune(c) {
			return false
		}
	}
	if r.End < len(line) {
		if c, _ := utf8.DecodeRune(line[r.End:]); isWordRune(c) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// FoldPattern lowers ASCII letters of the line before delegating. Byte
// offsets are unchanged, so spans refer to the original line.
type FoldPattern struct{ inner Pattern }

const maxPooledFold = 1 << 20

var foldPool = sync.Pool{New: func() any {
	b := make([]byte, 0, 4096)
	return &b
}}

func (p *FoldPattern) FindAll(line []byte, limit int, dst []scanner.ByteRange) []scanner.ByteRange {
	if limit == 0 {
		return dst
	}
	bp := foldPool.Get().(*[]byte)
	buf := asciiLower((*bp)[:0], line)
	dst = p.inner.FindAll(buf, limit, dst)
	if cap(buf) <= maxPooledFold {
		*bp = buf[:0]
		foldPool.Put(bp)
	}
	return dst
}

func (p *FoldPattern) Desc() string { return "i:" + p.inner.Desc() }

func asciiLower(dst, src []byte) []byte {
	for _, c := range src {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		dst = append(dst, c)
	}
	return dst
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// compilePattern builds the Pattern for one mode. It runs once per Validate.
func compilePattern(mode Mode, pattern string, ignoreCase bool) (Pattern, error) {
	if mode == ModeRegex {
		expr := pattern
		if ignoreCase {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
		}
		return &RegexPattern{re: re}, nil
	}

	var p Pattern
	switch {
	case ignoreCase && !isASCII(pattern):
		// ASCII folding cannot keep offsets for multi-byte case pairs.
		p = &RegexPattern{re: regexp.MustCompile("(?i)" + regexp.QuoteMeta(pattern))}
		if mode == ModeWholeWord {
			p = &WordPattern{inner: p}
		}
		return p, nil
	case ignoreCase:
		pattern = string(asciiLower(nil, []byte(pattern)))
	}

	lit := []byte(pattern)
	if mode == ModeNaive || len(lit) == 0 {
		p = NewNaivePattern(lit)
	} else {
		p = NewBoyerMoorePattern(lit)
	}
	if mode == ModeWholeWord {
		p = &WordPattern{inner: p}
	}
	if ignoreCase {
		p = &FoldPattern{inner: p}
	}
	return p, nil
}
