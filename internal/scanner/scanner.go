package scanner

import (
	"context"
	"fmt"
	"time"
)

// FileCandidate is a filesystem entry that survived walker filtering.
type FileCandidate struct {
	Path      string
	InnerPath string // archive member, empty for regular files
	Size      int64
	Extension string // lowercase, without the leading dot
	IsHidden  bool
	IsSymlink bool
}

// DisplayPath joins an archive member onto its archive path.
func (c FileCandidate) DisplayPath() string {
	if c.InnerPath == "" {
		return c.Path
	}
	return c.Path + "!" + c.InnerPath
}

// PlanKind selects how a candidate is read.
type PlanKind int

const (
	PlanSkip PlanKind = iota
	PlanBuffered
	PlanMapped
)

func (k PlanKind) String() string {
	switch k {
	case PlanSkip:
		return "skip"
	case PlanBuffered:
		return "buffered"
	case PlanMapped:
		return "mmap"
	}
	return fmt.Sprintf("plan(%d)", int(k))
}

// SkipReason says why a candidate produced no search.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipBinary
	SkipEmpty
	SkipSize
	SkipPermission
	SkipIO
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipBinary:
		return "binary"
	case SkipEmpty:
		return "empty"
	case SkipSize:
		return "size"
	case SkipPermission:
		return "permission"
	case SkipIO:
		return "io"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// AccessPlan is recomputed per scan and never persisted.
type AccessPlan struct {
	Kind   PlanKind
	Reason SkipReason // set only when Kind == PlanSkip
}

func Skip(r SkipReason) AccessPlan { return AccessPlan{Kind: PlanSkip, Reason: r} }

// ByteRange is a half-open [Start, End) range within one line.
type ByteRange struct {
	Start int
	End   int
}

func (r ByteRange) Len() int { return r.End - r.Start }

// ContextLine is one line of surrounding context.
type ContextLine struct {
	Number int
	Text   string
}

// SearchMatch is owned by the consumer once emitted and never mutated.
type SearchMatch struct {
	Path          string
	InnerPath     string
	LineNumber    int
	Range         ByteRange
	Offset        int // of Range.Start within the file or archive member
	MatchedText   string
	Line          string
	ContextBefore []ContextLine
	ContextAfter  []ContextLine
	// Inverted marks the synthetic record emitted for a non-matching line.
	Inverted bool
}

// DisplayPath joins archive members onto their archive path.
func (m SearchMatch) DisplayPath() string {
	if m.InnerPath == "" {
		return m.Path
	}
	return m.Path + "!" + m.InnerPath
}

// SkipCounts breaks ScanReport skips down by reason.
type SkipCounts struct {
	Binary     int64
	Empty      int64
	Size       int64
	Permission int64
	IO         int64
}

func (s SkipCounts) Total() int64 {
	return s.Binary + s.Empty + s.Size + s.Permission + s.IO
}

// FileFailure is a recorded, non-fatal per-file error.
type FileFailure struct {
	Path string
	Op   string
	Err  string
}

// ScanReport is finalized once when a scan completes.
type ScanReport struct {
	FilesVisited  int64
	FilesSearched int64
	Skipped       SkipCounts
	Ambiguous     int64
	TotalMatches  int64
	BytesScanned  int64
	Elapsed       time.Duration
	Truncated     bool // the global match cap was reached
	Cancelled     bool // the context ended before the walk finished
	Failures      []FileFailure
}

// Scanner is the entry point used by the CLI and other collaborators.
type Scanner interface {
	Scan(ctx context.Context, root string, onMatch func(SearchMatch)) (ScanReport, error)
}
