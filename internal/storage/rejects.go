package storage

import (
	"context"
	"time"

	"dotaloader/internal/importer"
)

// Reject is one line the importer could not store
type Reject struct {
	RunID   string    `json:"run_id"`
	Split   string    `json:"split"`
	Offset  int64     `json:"offset"`
	MatchID *int64    `json:"match_id,omitempty"`
	Error   string    `json:"error"`
	Line    string    `json:"line"`
	At      time.Time `json:"at"`
}

// RejectFile records failed lines so they can be inspected or replayed.
// It implements importer.Hook.
type RejectFile struct {
	runID   string
	rotator *FileRotator
	now     func() time.Time
}

// NewRejectFile creates a RejectFile writing under baseDir/{hot,warm}
func NewRejectFile(baseDir, runID string, opts RotatorOptions) (*RejectFile, error) {
	if opts.Prefix == "" {
		opts.Prefix = "rejects"
	}
	r, err := NewFileRotator(baseDir, opts)
	if err != nil {
		return nil, err
	}
	return &RejectFile{runID: runID, rotator: r, now: time.Now}, nil
}

func (f *RejectFile) Record(ctx context.Context, fail importer.Failure) error {
	rej := Reject{
		RunID:  f.runID,
		Split:  fail.Pos.Split,
		Offset: fail.Pos.Offset,
		Error:  fail.Err.Error(),
		Line:   string(fail.Line),
		At:     f.now().UTC(),
	}
	if id, ok := fail.MatchID(); ok {
		rej.MatchID = &id
	}

	return f.rotator.WriteRecord(rej)
}

// Close flushes pending rejects into warm storage
func (f *RejectFile) Close() error {
	return f.rotator.Close()
}
