package internal

import (
	"fmt"
	"path"
	"runtime"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Mode selects the matching algorithm.
type Mode int

const (
	ModeLiteral Mode = iota
	ModeRegex
	ModeWholeWord
	ModeNaive
)

func (m Mode) String() string {
	switch m {
	case ModeLiteral:
		return "literal"
	case ModeRegex:
		return "regex"
	case ModeWholeWord:
		return "word"
	case ModeNaive:
		return "naive"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "literal", "plain", "text":
		return ModeLiteral, nil
	case "regex", "re":
		return ModeRegex, nil
	case "word", "wholeword", "whole-word":
		return ModeWholeWord, nil
	case "naive", "simple":
		return ModeNaive, nil
	}
	return 0, fmt.Errorf("unknown search mode %q", s)
}

// SearchOptions is the search configuration. It is immutable once passed to Validate.
type SearchOptions struct {
	Pattern     string
	Mode        Mode
	IgnoreCase  bool
	InvertMatch bool

	Extensions        []string // allow-list, empty = all
	ExcludeExtensions []string // ignored when Extensions is set
	IgnorePatterns    []string // base-name globs pruned during the walk
	MinSize           int64
	MaxSize           int64 // 0 = unbounded
	Recursive         bool
	MaxDepth          int // 0 = unlimited
	SkipBinary        bool
	ShowHidden        bool
	Archives          bool

	ContextLines      int
	MaxMatchesPerFile int   // 0 = unbounded
	MaxMatchesTotal   int   // 0 = unbounded
	MmapThreshold     int64 // 0 = adaptive
	Workers           int   // 0 = logical CPUs
}

// DefaultOptions mirrors the defaults of the CLI.
func DefaultOptions() SearchOptions {
	return SearchOptions{
		Mode:           ModeLiteral,
		Recursive:      true,
		IgnorePatterns: []string{"node_modules", ".git"},
	}
}

// Compiled is a validated configuration plus everything derived from it.
// It is shared read-only by every worker of a scan.
type Compiled struct {
	SearchOptions

	pattern Pattern
	allow   map[string]struct{}
	deny    map[string]struct{}
	workers int
}

func (c *Compiled) Pattern() Pattern { return c.pattern }
func (c *Compiled) Workers() int     { return c.workers }

// Validate checks invariants and compiles the pattern. All problems are
// reported together; a non-nil error means no scan may start.
func Validate(o SearchOptions) (*Compiled, error) {
	var result *multierror.Error
	fail := func(field string, err error) {
		result = multierror.Append(result, &ConfigError{Field: field, Err: err})
	}

	if o.Mode < ModeLiteral || o.Mode > ModeNaive {
		fail("mode", fmt.Errorf("unknown mode %d", int(o.Mode)))
	}
	if o.MinSize < 0 {
		fail("min-size", fmt.Errorf("%w: %d is negative", ErrInvalidBounds, o.MinSize))
	}
	if o.MaxSize < 0 {
		fail("max-size", fmt.Errorf("%w: %d is negative", ErrInvalidBounds, o.MaxSize))
	}
	if o.MaxSize > 0 && o.MinSize > o.MaxSize {
		fail("min-size", fmt.Errorf("%w: min %d > max %d", ErrInvalidBounds, o.MinSize, o.MaxSize))
	}
	for _, f := range []struct {
		name string
		v    int
	}{
		{"context", o.ContextLines},
		{"max-per-file", o.MaxMatchesPerFile},
		{"max-count", o.MaxMatchesTotal},
		{"depth", o.MaxDepth},
		{"threads", o.Workers},
	} {
		if f.v < 0 {
			fail(f.name, fmt.Errorf("%w: %d is negative", ErrInvalidBounds, f.v))
		}
	}
	if o.MmapThreshold < 0 {
		fail("mmap-threshold", fmt.Errorf("%w: %d is negative", ErrInvalidBounds, o.MmapThreshold))
	}

	allow, err := extSet(o.Extensions)
	if err != nil {
		fail("ext", err)
	}
	deny, err := extSet(o.ExcludeExtensions)
	if err != nil {
		fail("exclude-ext", err)
	}
	for _, g := range o.IgnorePatterns {
		if _, err := path.Match(g, ""); err != nil {
			fail("ignore", fmt.Errorf("%w %q: %v", ErrInvalidPattern, g, err))
		}
	}

	var p Pattern
	if o.Mode >= ModeLiteral && o.Mode <= ModeNaive {
		if p, err = cachedPattern(o.Mode, o.Pattern, o.IgnoreCase); err != nil {
			fail("pattern", err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	c := &Compiled{SearchOptions: o, pattern: p, allow: allow, deny: deny, workers: o.Workers}
	if c.workers <= 0 {
		c.workers = runtime.GOMAXPROCS(0)
	}
	return c, nil
}

// NormalizeExt turns ".TXT", "txt" and " Txt " into "txt".
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func extSet(list []string) (map[string]struct{}, error) {
	if len(list) == 0 {
		return nil, nil
	}
	m := make(map[string]struct{}, len(list))
	for _, raw := range list {
		ext := NormalizeExt(raw)
		if ext == "" || strings.ContainsAny(ext, `/\*?[]. `) {
			return nil, fmt.Errorf("%w %q", ErrInvalidExt, raw)
		}
		m[ext] = struct{}{}
	}
	return m, nil
}

func (c *Compiled) allowedExt(ext string) bool {
	if len(c.allow) > 0 {
		_, ok := c.allow[ext]
		return ok
	}
	if c.deny == nil {
		return true
	}
	_, blocked := c.deny[ext]
	return !blocked
}

func (c *Compiled) ignoredName(name string) bool {
	for _, g := range c.IgnorePatterns {
		if ok, _ := path.Match(g, name); ok {
			return true
		}
	}
	return false
}

func (c *Compiled) sizeAllowed(size int64) bool {
	if size < c.MinSize {
		return false
	}
	return c.MaxSize == 0 || size <= c.MaxSize
}
