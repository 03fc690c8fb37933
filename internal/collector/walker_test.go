package collector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dotaloader/internal/dota/dotatest"
	"dotaloader/internal/extract"
	"dotaloader/internal/steam"
	"dotaloader/internal/storage"
)

// fakeSource serves matches from a fixed sequence
type fakeSource struct {
	mu      sync.Mutex
	matches []steam.RawMatch
	calls   []int64
	err     error
}

func (f *fakeSource) GetMatchHistoryBySequenceNum(ctx context.Context, seq int64, count int) ([]steam.RawMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, seq)
	if f.err != nil {
		return nil, f.err
	}

	var out []steam.RawMatch
	for _, m := range f.matches {
		if m.MatchSeqNum >= seq && len(out) < count {
			out = append(out, m)
		}
	}
	return out, nil
}

func rawMatch(id, seq int64) steam.RawMatch {
	doc := dotatest.Match()
	doc["match_id"] = id
	doc["match_seq_num"] = seq
	return steam.RawMatch{MatchID: id, MatchSeqNum: seq, Raw: dotatest.Line(doc)}
}

// memWriter collects written lines
type memWriter struct {
	lines     []string
	completes int
	fail      error
}

func (m *memWriter) WriteRaw(data []byte) error {
	if m.fail != nil {
		return m.fail
	}
	m.lines = append(m.lines, string(data))
	return nil
}

func (m *memWriter) RecordComplete() error {
	m.completes++
	return nil
}

func testConfig() Config {
	return Config{
		BatchSize:       2,
		IdleWait:        time.Millisecond,
		ExpectedMatches: 1000,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRunBatch_AdvancesSequence(t *testing.T) {
	src := &fakeSource{matches: []steam.RawMatch{rawMatch(10, 100), rawMatch(11, 101), rawMatch(12, 105)}}
	out := &memWriter{}
	w := NewWalker(src, out, 100, testConfig())

	n, err := w.RunBatch(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("First batch: n=%d err=%v", n, err)
	}
	if w.NextSeq() != 102 {
		t.Errorf("Expected next seq 102, got %d", w.NextSeq())
	}

	n, err = w.RunBatch(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("Second batch: n=%d err=%v", n, err)
	}
	if w.NextSeq() != 106 {
		t.Errorf("Expected next seq 106, got %d", w.NextSeq())
	}

	n, err = w.RunBatch(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("Caught-up batch: n=%d err=%v", n, err)
	}
	if w.NextSeq() != 106 {
		t.Errorf("Expected next seq to stay 106, got %d", w.NextSeq())
	}

	if len(out.lines) != 3 || out.completes != 3 {
		t.Errorf("Expected 3 lines and completes, got %d/%d", len(out.lines), out.completes)
	}
	stats := w.Stats()
	if stats.Batches != 3 || stats.Written != 3 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestRunBatch_Deduplicates(t *testing.T) {
	// The same match can show up again under a later sequence number
	src := &fakeSource{matches: []steam.RawMatch{rawMatch(10, 100), rawMatch(11, 101), rawMatch(10, 102)}}
	out := &memWriter{}
	w := NewWalker(src, out, 100, testConfig())

	for i := 0; i < 2; i++ {
		if _, err := w.RunBatch(context.Background()); err != nil {
			t.Fatalf("RunBatch failed: %v", err)
		}
	}

	if len(out.lines) != 2 {
		t.Errorf("Expected 2 unique matches written, got %d", len(out.lines))
	}
	if got := w.Stats().Duplicates; got != 1 {
		t.Errorf("Expected 1 duplicate, got %d", got)
	}

	w.Reset()
	if got := w.Stats(); got.Written != 0 || got.Duplicates != 0 || got.NextSeq != 103 {
		t.Errorf("Unexpected stats after reset %+v", got)
	}
}

func TestRunBatch_WriteError(t *testing.T) {
	src := &fakeSource{matches: []steam.RawMatch{rawMatch(10, 100)}}
	w := NewWalker(src, &memWriter{fail: errors.New("disk full")}, 100, testConfig())

	if _, err := w.RunBatch(context.Background()); err == nil {
		t.Fatal("Expected write error")
	}
	if w.NextSeq() != 100 {
		t.Errorf("Expected sequence not to advance on failure, got %d", w.NextSeq())
	}
}

func TestRun_MaxBatches(t *testing.T) {
	var matches []steam.RawMatch
	for i := int64(0); i < 10; i++ {
		matches = append(matches, rawMatch(1000+i, 500+i))
	}
	src := &fakeSource{matches: matches}
	out := &memWriter{}

	cfg := testConfig()
	cfg.MaxBatches = 3
	w := NewWalker(src, out, 500, cfg)

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(src.calls) != 3 {
		t.Errorf("Expected 3 requests, got %d", len(src.calls))
	}
	if len(out.lines) != 6 {
		t.Errorf("Expected 6 matches, got %d", len(out.lines))
	}
}

func TestRun_StopsOnInvalidKey(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("GetMatchHistoryBySequenceNum: %w", steam.ErrAPIKeyInvalid)}
	w := NewWalker(src, &memWriter{}, 1, testConfig())

	if err := w.Run(context.Background()); !errors.Is(err, steam.ErrAPIKeyInvalid) {
		t.Errorf("Expected ErrAPIKeyInvalid, got %v", err)
	}
	if len(src.calls) != 1 {
		t.Errorf("Expected no retries, got %d calls", len(src.calls))
	}
}

func TestRun_RetriesTransientErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("connection reset")}
	cfg := testConfig()
	cfg.MaxBatches = 3
	w := NewWalker(src, &memWriter{}, 1, cfg)

	if err := w.Run(context.Background()); err != nil {
		t.Errorf("Expected transient errors to be retried, got %v", err)
	}
	if len(src.calls) != 3 {
		t.Errorf("Expected 3 attempts, got %d", len(src.calls))
	}
}

func TestRun_Canceled(t *testing.T) {
	src := &fakeSource{}
	cfg := testConfig()
	cfg.IdleWait = time.Hour
	w := NewWalker(src, &memWriter{}, 1, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestWalker_WritesImportableLines(t *testing.T) {
	dir := t.TempDir()
	rotator, err := storage.NewFileRotator(dir, storage.RotatorOptions{Logger: testConfig().Logger})
	if err != nil {
		t.Fatalf("NewFileRotator failed: %v", err)
	}

	src := &fakeSource{matches: []steam.RawMatch{rawMatch(10, 100), rawMatch(11, 101)}}
	w := NewWalker(src, rotator, 100, testConfig())
	if _, err := w.RunBatch(context.Background()); err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if err := rotator.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "warm", "*.jsonl"))
	if len(files) != 1 {
		t.Fatalf("Expected one warm file, got %v", files)
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var ids []int64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		m, err := extract.ParseMatch(sc.Bytes())
		if err != nil {
			t.Fatalf("Collected line does not parse: %v", err)
		}
		ids = append(ids, m.MatchID)
	}
	if len(ids) != 2 || ids[0] != 10 || ids[1] != 11 {
		t.Errorf("Expected matches [10 11], got %v", ids)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
		{3723 * time.Second, "1h02m03s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
}
