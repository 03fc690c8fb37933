// Package collector walks the match sequence and writes raw match lines for the importer.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"dotaloader/internal/steam"

	"github.com/bits-and-blooms/bloom/v3"
)

// MatchSource returns matches in sequence order. *steam.Client implements it.
type MatchSource interface {
	GetMatchHistoryBySequenceNum(ctx context.Context, seq int64, count int) ([]steam.RawMatch, error)
}

// LineWriter receives one raw line per match. *storage.FileRotator implements it.
type LineWriter interface {
	WriteRaw(data []byte) error
	RecordComplete() error
}

// Config controls a Walker
type Config struct {
	BatchSize       int           // matches per request
	MaxBatches      int           // 0 runs until ctx is canceled
	IdleWait        time.Duration // pause when the sequence is caught up
	ExpectedMatches uint          // bloom filter sizing
	Logger          *slog.Logger
}

// DefaultConfig returns the walker defaults
func DefaultConfig() Config {
	return Config{
		BatchSize:       steam.MaxMatchesPerRequest,
		IdleWait:        30 * time.Second,
		ExpectedMatches: 5_000_000,
	}
}

// Stats summarizes a walk
type Stats struct {
	Batches    int64
	Written    int64
	Duplicates int64
	NextSeq    int64
	Elapsed    time.Duration
}

// Walker pages through GetMatchHistoryBySequenceNum, skipping matches it has
// already written, and hands each new match to a LineWriter.
type Walker struct {
	source MatchSource
	out    LineWriter
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	visited *bloom.BloomFilter
	nextSeq int64

	batches    atomic.Int64
	written    atomic.Int64
	duplicates atomic.Int64
	startTime  time.Time
}

// NewWalker creates a walker starting at startSeq
func NewWalker(source MatchSource, out LineWriter, startSeq int64, cfg Config) *Walker {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = def.IdleWait
	}
	if cfg.ExpectedMatches == 0 {
		cfg.ExpectedMatches = def.ExpectedMatches
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Walker{
		source:  source,
		out:     out,
		cfg:     cfg,
		logger:  logger.With("component", "collector"),
		visited: bloom.NewWithEstimates(cfg.ExpectedMatches, 0.001),
		nextSeq: startSeq,
	}
}

// RunBatch fetches one page and writes its unseen matches.
// It returns the number of matches written.
func (w *Walker) RunBatch(ctx context.Context) (int, error) {
	if w.startTime.IsZero() {
		w.startTime = time.Now()
	}

	w.mu.Lock()
	seq := w.nextSeq
	w.mu.Unlock()

	matches, err := w.source.GetMatchHistoryBySequenceNum(ctx, seq, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch from seq %d: %w", seq, err)
	}
	w.batches.Add(1)

	written := 0
	next := seq
	for _, m := range matches {
		if m.MatchSeqNum >= next {
			next = m.MatchSeqNum + 1
		}
		if m.MatchSeqNum < seq {
			continue
		}
		if w.seen(m.MatchID) {
			w.duplicates.Add(1)
			continue
		}

		if err := w.out.WriteRaw(m.Raw); err != nil {
			return written, fmt.Errorf("write match %d: %w", m.MatchID, err)
		}
		if err := w.out.RecordComplete(); err != nil {
			return written, fmt.Errorf("complete match %d: %w", m.MatchID, err)
		}
		w.written.Add(1)
		written++
	}

	w.mu.Lock()
	w.nextSeq = next
	w.mu.Unlock()

	w.logger.Debug("Batch complete", "from_seq", seq, "next_seq", next, "received", len(matches), "written", written)
	return written, nil
}

// seen reports whether id was already written and marks it
func (w *Walker) seen(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visited.TestOrAddString(strconv.FormatInt(id, 10))
}

// Run calls RunBatch until MaxBatches is reached or ctx is canceled.
// A rejected API key stops the walk; other errors are logged and retried
// after IdleWait.
func (w *Walker) Run(ctx context.Context) error {
	defer w.logSummary()

	for n := 0; w.cfg.MaxBatches == 0 || n < w.cfg.MaxBatches; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		written, err := w.RunBatch(ctx)
		switch {
		case errors.Is(err, steam.ErrAPIKeyInvalid):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			w.logger.Warn("Batch failed, retrying", "error", err, "wait", w.cfg.IdleWait)
		case written > 0:
			continue
		}

		select {
		case <-time.After(w.cfg.IdleWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// NextSeq returns the sequence number the next batch starts at
func (w *Walker) NextSeq() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextSeq
}

// Stats returns progress counters
func (w *Walker) Stats() Stats {
	s := Stats{
		Batches:    w.batches.Load(),
		Written:    w.written.Load(),
		Duplicates: w.duplicates.Load(),
		NextSeq:    w.NextSeq(),
	}
	if !w.startTime.IsZero() {
		s.Elapsed = time.Since(w.startTime)
	}
	return s
}

// Reset clears the dedup filter and counters, keeping the sequence position
func (w *Walker) Reset() {
	w.mu.Lock()
	w.visited = bloom.NewWithEstimates(w.cfg.ExpectedMatches, 0.001)
	w.mu.Unlock()

	w.batches.Store(0)
	w.written.Store(0)
	w.duplicates.Store(0)
	w.startTime = time.Time{}
}

func (w *Walker) logSummary() {
	s := w.Stats()
	attrs := []any{
		"batches", s.Batches,
		"written", s.Written,
		"duplicates", s.Duplicates,
		"next_seq", s.NextSeq,
		"elapsed", formatDuration(s.Elapsed),
	}
	if s.Written > 0 && s.Elapsed > 0 {
		attrs = append(attrs, "matches_per_min", fmt.Sprintf("%.1f", float64(s.Written)/s.Elapsed.Minutes()))
	}
	w.logger.Info("Collector stopped", attrs...)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%02dm%02ds", hours, mins, secs)
}
