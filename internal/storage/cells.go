package storage

import (
	"context"
	"fmt"

	"dotaloader/internal/importer"
)

// CellFile is a write-context that appends cells as JSONL through a FileRotator.
// All cells of one match land in the same file.
type CellFile struct {
	rotator *FileRotator
}

// NewCellFile creates a CellFile writing under baseDir/{hot,warm}
func NewCellFile(baseDir string, opts RotatorOptions) (*CellFile, error) {
	if opts.Prefix == "" {
		opts.Prefix = "cells"
	}
	r, err := NewFileRotator(baseDir, opts)
	if err != nil {
		return nil, err
	}
	return &CellFile{rotator: r}, nil
}

func (f *CellFile) EntityID(key string) importer.EntityID {
	return importer.EntityID(key)
}

func (f *CellFile) Put(ctx context.Context, eid importer.EntityID, family, qualifier string, version int64, value any) error {
	return f.rotator.WriteLine(importer.Cell{Entity: eid, Family: family, Qualifier: qualifier, Version: version, Value: value})
}

// PutCells writes every cell as one record
func (f *CellFile) PutCells(ctx context.Context, cells []importer.Cell) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lines := make([]any, len(cells))
	for i, c := range cells {
		lines[i] = c
	}
	if err := f.rotator.WriteRecord(lines...); err != nil {
		return fmt.Errorf("failed to write %d cells: %w", len(cells), err)
	}
	return nil
}

// Close flushes the current file into warm storage
func (f *CellFile) Close() error {
	return f.rotator.Close()
}
