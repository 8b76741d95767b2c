package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"rfgrep/internal/scanner"
)

const defaultStatsInterval = 500 * time.Millisecond

var _ scanner.Scanner = (*FileScanner)(nil)

// FileScanner fans candidates from one walker out to a bounded worker pool.
// It holds no per-scan state, so one value may run any number of scans.
type FileScanner struct {
	cfg      *Compiled
	memory   MemoryProvider
	progress func(Progress)
	interval time.Duration
}

type ScannerOption func(*FileScanner)

// WithProgress calls fn with a snapshot every interval and once at the end.
// fn runs on the dispatcher goroutine and must not block.
func WithProgress(fn func(Progress), interval time.Duration) ScannerOption {
	return func(s *FileScanner) {
		s.progress = fn
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithMemoryProvider(p MemoryProvider) ScannerOption {
	return func(s *FileScanner) { s.memory = p }
}

func NewFileScanner(cfg *Compiled, opts ...ScannerOption) *FileScanner {
	s := &FileScanner{cfg: cfg, memory: SystemMemory(), interval: defaultStatsInterval}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Stream is a running scan. Matches arrive in no particular order.
type Stream struct {
	matches chan scanner.SearchMatch
	done    chan struct{}
	report  scanner.ScanReport
	err     error
}

// Matches is closed once every worker has finished.
func (s *Stream) Matches() <-chan scanner.SearchMatch { return s.matches }

// Wait discards any matches not yet received and returns the final report.
func (s *Stream) Wait() (scanner.ScanReport, error) {
	for range s.matches {
	}
	<-s.done
	return s.report, s.err
}

// Start launches a scan of root. The consumer must drain Matches or call Wait,
// otherwise workers block on the full channel until ctx is done.
func (fs *FileScanner) Start(ctx context.Context, root string) *Stream {
	s := &Stream{
		matches: make(chan scanner.SearchMatch, fs.cfg.Workers()*16),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.matches)
		s.report, s.err = fs.run(ctx, root, func(m scanner.SearchMatch) bool {
			select {
			case s.matches <- m:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return s
}

// Scan runs to completion, calling onMatch sequentially on the caller's goroutine.
func (fs *FileScanner) Scan(ctx context.Context, root string, onMatch func(scanner.SearchMatch)) (scanner.ScanReport, error) {
	st := fs.Start(ctx, root)
	for m := range st.Matches() {
		if onMatch != nil {
			onMatch(m)
		}
	}
	return st.Wait()
}

// run is the pipeline: walker -> bounded channel -> dispatcher -> ants pool.
// The only error it returns is a pool failure; everything else lands in the report.
func (fs *FileScanner) run(ctx context.Context, root string, emit func(scanner.SearchMatch) bool) (scanner.ScanReport, error) {
	cfg := fs.cfg
	stats := &ScanStats{}
	stats.Start()

	threshold := cfg.MmapThreshold
	if threshold == 0 {
		threshold = AdaptiveThreshold(fs.memory, cfg.Workers())
	}
	cl := NewClassifier(cfg.SkipBinary, threshold)
	walker := NewWalker(cfg, stats)

	logrus.WithFields(logrus.Fields{
		"root":    root,
		"pattern": cfg.Pattern().Desc(),
		"workers": cfg.Workers(),
		"mmap":    threshold,
	}).Debug("scan started")

	g, gctx := errgroup.WithContext(ctx)

	var (
		stop     atomic.Bool
		reserved atomic.Int64
	)
	// reserve a slot under the global cap before emitting, so the stream
	// never carries more than MaxMatchesTotal matches
	tryEmit := func(m scanner.SearchMatch) bool {
		if stop.Load() {
			return false
		}
		if limit := int64(cfg.MaxMatchesTotal); limit > 0 && reserved.Add(1) > limit {
			stop.Store(true)
			stats.truncated.Store(true)
			return false
		}
		if !emit(m) {
			return false
		}
		stats.Matches.Add(1)
		return true
	}

	process := func(c scanner.FileCandidate) {
		if stop.Load() || gctx.Err() != nil {
			return
		}
		body, ok := fs.open(gctx, cl, stats, c)
		if !ok {
			return
		}
		defer body.release()

		stats.FilesSearched.Add(1)
		stats.Bytes.Add(int64(len(body.data)))
		if _, err := searchContent(gctx, cfg, c, body.data, tryEmit); err != nil && !errors.Is(err, errMatchLimit) {
			logrus.WithFields(logrus.Fields{"file": c.Path, "err": err}).Debug("search interrupted")
		}
	}

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(cfg.Workers(), func(i interface{}) {
		defer wg.Done()
		process(i.(scanner.FileCandidate))
	})
	if err != nil {
		return stats.Report(), fmt.Errorf("pool: %w", err)
	}
	defer pool.Release()

	candidates := make(chan scanner.FileCandidate, cfg.Workers()*4)

	// walker
	g.Go(func() error {
		defer close(candidates)
		err := walker.Walk(gctx, root, func(c scanner.FileCandidate) error {
			if stop.Load() {
				return errStopWalk
			}
			select {
			case candidates <- c:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		if errors.Is(err, errStopWalk) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})

	// dispatcher
	g.Go(func() error {
		ticker := time.NewTicker(fs.interval)
		defer ticker.Stop()
		defer wg.Wait()

		for {
			select {
			case c, ok := <-candidates:
				if !ok {
					return nil
				}
				wg.Add(1)
				if err := pool.Invoke(c); err != nil {
					wg.Done()
					logrus.WithError(err).Error("submit task")
					return fmt.Errorf("pool: %w", err)
				}
			case <-ticker.C:
				p := stats.Snapshot()
				logrus.Debugf("Stats: visited=%d searched=%d skipped=%d matches=%d",
					p.FilesVisited, p.FilesSearched, p.FilesSkipped, p.Matches)
				if fs.progress != nil {
					fs.progress(p)
				}
			}
		}
	})

	err = g.Wait()
	if fs.progress != nil {
		fs.progress(stats.Snapshot())
	}

	report := stats.Report()
	report.Cancelled = ctx.Err() != nil
	logrus.WithFields(logrus.Fields{
		"searched":  report.FilesSearched,
		"matches":   report.TotalMatches,
		"truncated": report.Truncated,
		"cancelled": report.Cancelled,
		"elapsed":   report.Elapsed,
	}).Debug("scan finished")
	return report, err
}

// open plans and loads one candidate. Skips and failures are recorded
// in stats and reported as !ok.
func (fs *FileScanner) open(ctx context.Context, cl *Classifier, stats *ScanStats, c scanner.FileCandidate) (*content, bool) {
	if c.InnerPath != "" {
		// archive members are read before classification
		body, err := load(ctx, c, scanner.AccessPlan{Kind: scanner.PlanBuffered})
		if err != nil {
			stats.Fail(err)
			return nil, false
		}
		plan, class := cl.PlanProbe(int64(len(body.data)), body.data[:min(len(body.data), probeSize)])
		if !fs.admit(stats, c, plan, class) {
			body.release()
			return nil, false
		}
		return body, true
	}

	plan, class, err := cl.Plan(c)
	if err != nil {
		stats.Fail(err)
		logrus.WithFields(logrus.Fields{"file": c.Path, "err": err}).Debug("skip")
		return nil, false
	}
	if !fs.admit(stats, c, plan, class) {
		return nil, false
	}
	body, err := load(ctx, c, plan)
	if err != nil {
		stats.Fail(err)
		return nil, false
	}
	return body, true
}

func (fs *FileScanner) admit(stats *ScanStats, c scanner.FileCandidate, plan scanner.AccessPlan, class Classification) bool {
	if plan.Kind == scanner.PlanSkip {
		stats.Skip(plan.Reason)
		logrus.WithFields(logrus.Fields{"file": c.DisplayPath(), "reason": plan.Reason}).Debug("skip")
		return false
	}
	if class == ClassAmbiguous {
		stats.Ambiguous.Add(1)
	}
	return true
}
