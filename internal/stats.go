package internal

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"rfgrep/internal/scanner"
)

const maxRecordedFailures = 1000

// ScanStats accumulates the report of one scan. Counters are atomic and
// commutative; only the bounded failure list takes a lock.
type ScanStats struct {
	start time.Time

	FilesVisited  atomic.Int64
	FilesSearched atomic.Int64
	Matches       atomic.Int64
	Ambiguous     atomic.Int64
	Bytes         atomic.Int64

	skipped   [scanner.SkipIO + 1]atomic.Int64
	truncated atomic.Bool

	mu       sync.Mutex
	failures []scanner.FileFailure
}

// Progress is a periodic snapshot handed to the progress sink.
type Progress struct {
	FilesVisited  int64
	FilesSearched int64
	FilesSkipped  int64
	Matches       int64
	Bytes         int64
	Elapsed       time.Duration
}

func (s *ScanStats) Start() {
	s.start = time.Now()
}

func (s *ScanStats) Elapsed() time.Duration {
	return time.Since(s.start)
}

func (s *ScanStats) Skip(r scanner.SkipReason) {
	if r > scanner.SkipNone && int(r) < len(s.skipped) {
		s.skipped[r].Add(1)
	}
}

// Fail records a non-fatal error and counts it as a permission or I/O skip.
func (s *ScanStats) Fail(err error) {
	if isPermission(err) {
		s.Skip(scanner.SkipPermission)
	} else {
		s.Skip(scanner.SkipIO)
	}

	f := scanner.FileFailure{Err: err.Error()}
	var fae *FileAccessError
	if errors.As(err, &fae) {
		f.Path, f.Op, f.Err = fae.Path, fae.Op, fae.Err.Error()
	}
	s.mu.Lock()
	if len(s.failures) < maxRecordedFailures {
		s.failures = append(s.failures, f)
	}
	s.mu.Unlock()
}

func (s *ScanStats) skips() scanner.SkipCounts {
	return scanner.SkipCounts{
		Binary:     s.skipped[scanner.SkipBinary].Load(),
		Empty:      s.skipped[scanner.SkipEmpty].Load(),
		Size:       s.skipped[scanner.SkipSize].Load(),
		Permission: s.skipped[scanner.SkipPermission].Load(),
		IO:         s.skipped[scanner.SkipIO].Load(),
	}
}

func (s *ScanStats) Snapshot() Progress {
	return Progress{
		FilesVisited:  s.FilesVisited.Load(),
		FilesSearched: s.FilesSearched.Load(),
		FilesSkipped:  s.skips().Total(),
		Matches:       s.Matches.Load(),
		Bytes:         s.Bytes.Load(),
		Elapsed:       s.Elapsed(),
	}
}

// Report finalizes the counters. Call it once all workers have returned.
func (s *ScanStats) Report() scanner.ScanReport {
	s.mu.Lock()
	failures := append([]scanner.FileFailure(nil), s.failures...)
	s.mu.Unlock()
	return scanner.ScanReport{
		FilesVisited:  s.FilesVisited.Load(),
		FilesSearched: s.FilesSearched.Load(),
		Skipped:       s.skips(),
		Ambiguous:     s.Ambiguous.Load(),
		TotalMatches:  s.Matches.Load(),
		BytesScanned:  s.Bytes.Load(),
		Elapsed:       s.Elapsed(),
		Truncated:     s.truncated.Load(),
		Failures:      failures,
	}
}
