package importer

import (
	"context"
	"fmt"
)

// EntityID identifies one stored entity. Every match is one entity.
type EntityID string

// Cell is one versioned column write
type Cell struct {
	Entity    EntityID `json:"entity_id"`
	Family    string   `json:"family"`
	Qualifier string   `json:"qualifier"`
	Version   int64    `json:"version"`
	Value     any      `json:"value"`
}

func (c Cell) String() string {
	return fmt.Sprintf("%s %s:%s@%d", c.Entity, c.Family, c.Qualifier, c.Version)
}

// TableContext is the write side of a versioned table.
// Implementations must be safe for concurrent use.
type TableContext interface {
	EntityID(key string) EntityID
	Put(ctx context.Context, eid EntityID, family, qualifier string, version int64, value any) error
}

// BatchPutter is implemented by table contexts that can submit all cells of a
// record at once (for example in a single transaction).
type BatchPutter interface {
	PutCells(ctx context.Context, cells []Cell) error
}
