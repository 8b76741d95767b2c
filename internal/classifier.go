package internal

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"rfgrep/internal/scanner"
)

const (
	probeSize = 8 << 10

	binaryRatio    = 0.30
	ambiguousRatio = 0.10

	minMmapThreshold = 1 << 20
	maxMmapThreshold = 1 << 30
	// share of available memory that buffered reads may hold across all workers
	availableShare = 4
	// used when the provider cannot answer
	fallbackAvailable = 8 << 30
)

// Classification is the result of probing the head of a file.
type Classification int

const (
	ClassText Classification = iota
	ClassAmbiguous
	ClassBinary
)

func (c Classification) String() string {
	switch c {
	case ClassText:
		return "text"
	case ClassAmbiguous:
		return "ambiguous"
	case ClassBinary:
		return "binary"
	}
	return "unknown"
}

// ClassifyProbe looks at up to the first 8 KiB of content.
func ClassifyProbe(probe []byte) Classification {
	if len(probe) > probeSize {
		probe = probe[:probeSize]
	}
	if len(probe) == 0 {
		return ClassText
	}
	if bytes.IndexByte(probe, 0) >= 0 {
		return ClassBinary
	}
	ctrl := 0
	for _, c := range probe {
		if isControl(c) {
			ctrl++
		}
	}
	ratio := float64(ctrl) / float64(len(probe))
	switch {
	case ratio > binaryRatio:
		return ClassBinary
	case ratio > ambiguousRatio:
		return ClassAmbiguous
	}
	return ClassText
}

func isControl(c byte) bool {
	if c == 0x7f {
		return true
	}
	if c >= 0x20 {
		return false
	}
	switch c {
	case '\t', '\n', '\v', '\f', '\r', 0x1b:
		return false
	}
	return true
}

// MemoryProvider reports memory available to the process. Tests inject fakes.
type MemoryProvider interface {
	AvailableMemory() (uint64, error)
}

// MemoryFunc adapts a plain function to MemoryProvider.
type MemoryFunc func() (uint64, error)

func (f MemoryFunc) AvailableMemory() (uint64, error) { return f() }

// AdaptiveThreshold returns the size above which files are memory mapped:
// a share of available memory split across workers, clamped to [1 MiB, 1 GiB].
func AdaptiveThreshold(p MemoryProvider, workers int) int64 {
	avail, err := p.AvailableMemory()
	if err != nil || avail == 0 {
		logrus.WithError(err).Debug("available memory unknown, using fallback")
		avail = fallbackAvailable
	}
	if workers < 1 {
		workers = 1
	}
	t := avail / availableShare / uint64(workers)
	switch {
	case t < minMmapThreshold:
		return minMmapThreshold
	case t > maxMmapThreshold:
		return maxMmapThreshold
	}
	return int64(t)
}

// Classifier picks an AccessPlan per candidate. The threshold is fixed
// for the lifetime of one scan.
type Classifier struct {
	skipBinary bool
	threshold  int64
}

func NewClassifier(skipBinary bool, threshold int64) *Classifier {
	return &Classifier{skipBinary: skipBinary, threshold: threshold}
}

func (cl *Classifier) Threshold() int64 { return cl.threshold }

// Plan probes the candidate on disk. The returned error is a
// *FileAccessError and the plan is then a skip.
func (cl *Classifier) Plan(c scanner.FileCandidate) (scanner.AccessPlan, Classification, error) {
	if c.Size == 0 {
		return scanner.Skip(scanner.SkipEmpty), ClassText, nil
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return skipFor(err), ClassText, &FileAccessError{Path: c.Path, Op: "open", Err: err}
	}
	defer f.Close()

	var probe [probeSize]byte
	n, err := io.ReadFull(f, probe[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return skipFor(err), ClassText, &FileAccessError{Path: c.Path, Op: "read", Err: err}
	}
	plan, class := cl.PlanProbe(c.Size, probe[:n])
	return plan, class, nil
}

// PlanProbe decides from the size and an already read probe.
func (cl *Classifier) PlanProbe(size int64, probe []byte) (scanner.AccessPlan, Classification) {
	if size == 0 {
		return scanner.Skip(scanner.SkipEmpty), ClassText
	}
	class := ClassifyProbe(probe)
	if class == ClassBinary && cl.skipBinary {
		return scanner.Skip(scanner.SkipBinary), class
	}
	if size > cl.threshold {
		return scanner.AccessPlan{Kind: scanner.PlanMapped}, class
	}
	return scanner.AccessPlan{Kind: scanner.PlanBuffered}, class
}

func skipFor(err error) scanner.AccessPlan {
	if isPermission(err) {
		return scanner.Skip(scanner.SkipPermission)
	}
	return scanner.Skip(scanner.SkipIO)
}
