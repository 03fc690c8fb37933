package importer

import (
	"context"
	"fmt"
	"log/slog"

	"dotaloader/internal/extract"
)

// Position locates a line within its input split
type Position struct {
	Split  string
	Offset int64
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.Split, p.Offset)
}

// Failure describes one line that could not be imported
type Failure struct {
	Pos  Position
	Line []byte
	Err  error
}

// MatchID returns the match id of the failed line when it can be read
func (f Failure) MatchID() (int64, bool) {
	return extract.PeekMatchID(f.Line)
}

// Hook records a failure somewhere other than the log (a reject file, a
// counter). Hooks are best effort: their errors and panics are logged at
// debug level and never replace the failure being recorded.
type Hook interface {
	Record(ctx context.Context, f Failure) error
}

// HookFunc adapts a function to Hook
type HookFunc func(ctx context.Context, f Failure) error

func (fn HookFunc) Record(ctx context.Context, f Failure) error {
	return fn(ctx, f)
}

func (imp *Importer) record(ctx context.Context, f Failure) {
	safely(imp.logger, "log failure", func() error {
		attrs := []any{
			"pos", f.Pos.String(),
			"error", f.Err.Error(),
			"line", string(f.Line),
		}
		if id, ok := f.MatchID(); ok {
			attrs = append(attrs, "match_id", id)
		}
		imp.logger.ErrorContext(ctx, "Failed to import line", attrs...)
		return nil
	})

	for _, h := range imp.hooks {
		safely(imp.logger, "diagnostic hook", func() error {
			return h.Record(ctx, f)
		})
	}
}

// safely runs fn, downgrading any error or panic to a debug log line
func safely(logger *slog.Logger, what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("Error recording import failure", "step", what, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		logger.Debug("Error recording import failure", "step", what, "error", err)
	}
}
