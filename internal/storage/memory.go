// Package storage holds the file-backed and in-memory write-contexts.
package storage

import (
	"context"
	"sort"
	"sync"

	"dotaloader/internal/importer"
)

type column struct {
	family    string
	qualifier string
}

// MemoryTable is a versioned in-memory table. Every version of every cell is
// kept; a put at an existing version replaces that version.
type MemoryTable struct {
	mu   sync.RWMutex
	rows map[importer.EntityID]map[column][]importer.Cell // versions newest first
	puts int
}

// NewMemoryTable creates an empty table
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{rows: make(map[importer.EntityID]map[column][]importer.Cell)}
}

func (t *MemoryTable) EntityID(key string) importer.EntityID {
	return importer.EntityID(key)
}

func (t *MemoryTable) Put(ctx context.Context, eid importer.EntityID, family, qualifier string, version int64, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.put(importer.Cell{Entity: eid, Family: family, Qualifier: qualifier, Version: version, Value: value})
	return nil
}

// PutCells stores all cells under one lock so readers never see half a record
func (t *MemoryTable) PutCells(ctx context.Context, cells []importer.Cell) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range cells {
		t.put(c)
	}
	return nil
}

func (t *MemoryTable) put(c importer.Cell) {
	t.puts++
	row, ok := t.rows[c.Entity]
	if !ok {
		row = make(map[column][]importer.Cell)
		t.rows[c.Entity] = row
	}

	col := column{c.Family, c.Qualifier}
	versions := row[col]
	i := sort.Search(len(versions), func(i int) bool { return versions[i].Version <= c.Version })
	if i < len(versions) && versions[i].Version == c.Version {
		versions[i] = c
		return
	}
	versions = append(versions, importer.Cell{})
	copy(versions[i+1:], versions[i:])
	versions[i] = c
	row[col] = versions
}

// Get returns the newest version of a cell
func (t *MemoryTable) Get(eid importer.EntityID, family, qualifier string) (importer.Cell, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	versions := t.rows[eid][column{family, qualifier}]
	if len(versions) == 0 {
		return importer.Cell{}, false
	}
	return versions[0], true
}

// Versions returns every version of a cell, newest first
func (t *MemoryTable) Versions(eid importer.EntityID, family, qualifier string) []importer.Cell {
	t.mu.RLock()
	defer t.mu.RUnlock()

	versions := t.rows[eid][column{family, qualifier}]
	out := make([]importer.Cell, len(versions))
	copy(out, versions)
	return out
}

// Entities returns the stored entity ids in sorted order
func (t *MemoryTable) Entities() []importer.EntityID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]importer.EntityID, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Puts returns the number of cell writes received
func (t *MemoryTable) Puts() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.puts
}
