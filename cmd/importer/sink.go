package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"dotaloader/internal/config"
	"dotaloader/internal/db"
	"dotaloader/internal/importer"
	"dotaloader/internal/storage"
)

// openSink returns the write-context for cfg.Sink and a func releasing it
func openSink(ctx context.Context, cfg config.Config, logger *slog.Logger) (importer.TableContext, func(), error) {
	switch cfg.Sink {
	case config.SinkMemory:
		return storage.NewMemoryTable(), func() {}, nil

	case config.SinkFile:
		cells, err := storage.NewCellFile(cfg.Dir("cells"), storage.RotatorOptions{Logger: logger})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cell files: %w", err)
		}
		return cells, func() {
			if err := cells.Close(); err != nil {
				logger.Error("Failed to close cell file", "error", err)
			}
		}, nil

	case config.SinkPostgres:
		pg, err := db.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.CreateTables(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil

	case config.SinkSQLite:
		path := cfg.SQLiteFile()
		logger.Info("Opening SQLite sink", "path", filepath.Clean(path))
		return openSQL(ctx, func() (*db.SQLTable, error) { return db.OpenSQLite(ctx, path) }, logger)

	case config.SinkTurso:
		return openSQL(ctx, func() (*db.SQLTable, error) { return db.OpenTurso(ctx, cfg.TursoURL, cfg.TursoAuthToken) }, logger)
	}
	return nil, nil, fmt.Errorf("unknown sink %q", cfg.Sink)
}

func openSQL(ctx context.Context, open func() (*db.SQLTable, error), logger *slog.Logger) (importer.TableContext, func(), error) {
	t, err := open()
	if err != nil {
		return nil, nil, err
	}
	if err := t.CreateTables(ctx); err != nil {
		t.Close()
		return nil, nil, err
	}
	return t, func() {
		if err := t.Close(); err != nil {
			logger.Error("Failed to close database", "driver", t.Driver(), "error", err)
		}
	}, nil
}
