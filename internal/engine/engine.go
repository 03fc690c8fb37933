// Package engine runs the importer over input splits with a pool of workers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"dotaloader/internal/importer"
	"dotaloader/internal/storage"

	"golang.org/x/sync/errgroup"
)

// Policy decides what a failed record does to the run
type Policy string

const (
	// PolicySkip counts the failure and moves on to the next line
	PolicySkip Policy = "skip"
	// PolicyFailFast aborts the run on the first failure
	PolicyFailFast Policy = "fail-fast"
)

// ParsePolicy validates a policy name
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicySkip, PolicyFailFast:
		return p, nil
	case "":
		return PolicySkip, nil
	}
	return "", fmt.Errorf("unknown failure policy %q (want %q or %q)", s, PolicySkip, PolicyFailFast)
}

// ErrTooManyFailures aborts a skip-policy run once MaxFailures is exceeded
var ErrTooManyFailures = errors.New("too many failed records")

// Producer processes one input line. *importer.Importer implements it.
type Producer interface {
	Produce(ctx context.Context, pos importer.Position, line []byte, tc importer.TableContext) error
}

// Run states reported in snapshots
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateAborted   = "aborted"
	StateCanceled  = "canceled"
)

// Config controls an Engine
type Config struct {
	Workers     int
	Policy      Policy
	MaxFailures int64 // 0 means unlimited under PolicySkip
	QueueSize   int
	ArchiveDir  string // processed splits are gzipped here when set
	Logger      *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		Policy:    PolicySkip,
		QueueSize: 256,
	}
}

// Snapshot is a point-in-time view of a run
type Snapshot struct {
	RunID        string        `json:"run_id"`
	State        string        `json:"state"`
	Splits       int64         `json:"splits"`
	SplitsDone   int64         `json:"splits_done"`
	LinesRead    int64         `json:"lines_read"`
	Imported     int64         `json:"imported"`
	Failed       int64         `json:"failed"`
	StartedAt    time.Time     `json:"started_at"`
	Elapsed      time.Duration `json:"elapsed_ns"`
	FirstFailure string        `json:"first_failure,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Engine feeds lines from splits to a Producer.
// One Engine runs at most one import at a time.
type Engine struct {
	cfg      Config
	runID    string
	producer Producer
	table    importer.TableContext
	logger   *slog.Logger

	splits     atomic.Int64
	splitsDone atomic.Int64
	linesRead  atomic.Int64
	imported   atomic.Int64
	failed     atomic.Int64

	mu           sync.Mutex
	state        string
	startedAt    time.Time
	finishedAt   time.Time
	firstFailure string
	runErr       error
}

// New creates an Engine writing to table through producer
func New(runID string, producer Producer, table importer.TableContext, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 64
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicySkip
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		cfg:      cfg,
		runID:    runID,
		producer: producer,
		table:    table,
		logger:   logger.With("component", "engine", "run_id", runID),
		state:    StateIdle,
	}
}

// Run imports every line of splits and blocks until done.
// The returned snapshot is final; the error is non-nil when the run aborted
// or ctx was canceled.
func (e *Engine) Run(ctx context.Context, splits []string) (Snapshot, error) {
	e.mu.Lock()
	e.state = StateRunning
	e.startedAt = time.Now()
	e.mu.Unlock()
	e.splits.Store(int64(len(splits)))

	e.logger.Info("Import started", "splits", len(splits), "workers", e.cfg.Workers, "policy", e.cfg.Policy)

	g, gctx := errgroup.WithContext(ctx)
	lines := make(chan Line, e.cfg.QueueSize)

	g.Go(func() error {
		defer close(lines)
		for _, split := range splits {
			err := readSplit(gctx, split, func(l Line) error {
				e.linesRead.Add(1)
				select {
				case lines <- l:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
			if err != nil {
				return err
			}
			e.splitsDone.Add(1)
			e.logger.Debug("Split read", "split", split)
		}
		return nil
	})

	for i := 0; i < e.cfg.Workers; i++ {
		g.Go(func() error {
			for l := range lines {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := e.process(gctx, l); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil && e.cfg.ArchiveDir != "" {
		Archive(splits, e.cfg.ArchiveDir, e.logger)
	}
	e.finish(ctx, err)

	snap := e.Snapshot()
	e.logger.Info("Import finished",
		"state", snap.State,
		"lines", snap.LinesRead,
		"imported", snap.Imported,
		"failed", snap.Failed,
		"elapsed", snap.Elapsed.Round(time.Millisecond),
	)
	return snap, err
}

func (e *Engine) process(ctx context.Context, l Line) error {
	if err := e.producer.Produce(ctx, l.Pos, l.Data, e.table); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n := e.failed.Add(1)
		if n == 1 {
			e.mu.Lock()
			e.firstFailure = fmt.Sprintf("%s: %v", l.Pos, err)
			e.mu.Unlock()
		}

		switch {
		case e.cfg.Policy == PolicyFailFast:
			return fmt.Errorf("record %s: %w", l.Pos, err)
		case e.cfg.MaxFailures > 0 && n > e.cfg.MaxFailures:
			return fmt.Errorf("%w: %d failed, limit %d", ErrTooManyFailures, n, e.cfg.MaxFailures)
		}
		return nil
	}

	e.imported.Add(1)
	return nil
}

func (e *Engine) finish(ctx context.Context, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.finishedAt = time.Now()
	e.runErr = err
	switch {
	case err == nil:
		e.state = StateCompleted
	case ctx.Err() != nil:
		e.state = StateCanceled
	default:
		e.state = StateAborted
	}
}

// Snapshot returns the current progress. Safe to call while Run is in progress.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		RunID:        e.runID,
		State:        e.state,
		Splits:       e.splits.Load(),
		SplitsDone:   e.splitsDone.Load(),
		LinesRead:    e.linesRead.Load(),
		Imported:     e.imported.Load(),
		Failed:       e.failed.Load(),
		StartedAt:    e.startedAt,
		FirstFailure: e.firstFailure,
	}
	switch {
	case e.startedAt.IsZero():
	case e.finishedAt.IsZero():
		snap.Elapsed = time.Since(e.startedAt)
	default:
		snap.Elapsed = e.finishedAt.Sub(e.startedAt)
	}
	if e.runErr != nil {
		snap.Error = e.runErr.Error()
	}
	return snap
}

// Archive gzips each split into coldDir. Failures are logged and skipped.
func Archive(splits []string, coldDir string, logger *slog.Logger) int {
	archived := 0
	for _, split := range splits {
		if _, err := storage.CompressToCold(split, coldDir); err != nil {
			logger.Warn("Failed to archive split", "split", filepath.Base(split), "error", err)
			continue
		}
		archived++
	}
	logger.Info("Archived splits", "count", archived, "dir", coldDir)
	return archived
}
