package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dotaloader/internal/importer"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// SQLTable is a write-context over database/sql, used for a local SQLite
// file or a Turso database.
type SQLTable struct {
	db     *sql.DB
	driver string
}

// OpenSQLite opens (or creates) a SQLite database file
func OpenSQLite(ctx context.Context, path string) (*SQLTable, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	return &SQLTable{db: db, driver: "sqlite"}, nil
}

// OpenTurso connects to a Turso database
func OpenTurso(ctx context.Context, url, authToken string) (*SQLTable, error) {
	if url == "" {
		return nil, fmt.Errorf("Turso URL not configured (set TURSO_DATABASE_URL)")
	}
	connStr := url
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Turso: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping Turso: %w", err)
	}

	return &SQLTable{db: db, driver: "libsql"}, nil
}

// Close closes the connection
func (t *SQLTable) Close() error {
	return t.db.Close()
}

// Driver returns the database/sql driver name in use
func (t *SQLTable) Driver() string {
	return t.driver
}

// CreateTables creates match_cells if it does not exist
func (t *SQLTable) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS match_cells (
			entity_id TEXT NOT NULL,
			family TEXT NOT NULL,
			qualifier TEXT NOT NULL,
			version INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (entity_id, family, qualifier, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_cells_qualifier ON match_cells(family, qualifier)`,
	}

	for _, query := range queries {
		if _, err := t.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

const sqlUpsertCell = `INSERT INTO match_cells (entity_id, family, qualifier, version, value) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (entity_id, family, qualifier, version) DO UPDATE SET value = excluded.value`

func (t *SQLTable) EntityID(key string) importer.EntityID {
	return importer.EntityID(key)
}

func (t *SQLTable) Put(ctx context.Context, eid importer.EntityID, family, qualifier string, version int64, value any) error {
	encoded, err := encodeValue(value)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx, sqlUpsertCell, string(eid), family, qualifier, version, encoded)
	return err
}

// PutCells writes all cells of a record in one transaction
func (t *SQLTable) PutCells(ctx context.Context, cells []importer.Cell) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, sqlUpsertCell)
	if err != nil {
		tx.Rollback()
		return err
	}

	for _, c := range cells {
		encoded, err := encodeValue(c.Value)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("%s: %w", c, err)
		}
		if _, err := stmt.ExecContext(ctx, string(c.Entity), c.Family, c.Qualifier, c.Version, encoded); err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
	}

	stmt.Close()
	return tx.Commit()
}

// Get returns the newest version of a cell
func (t *SQLTable) Get(ctx context.Context, eid importer.EntityID, family, qualifier string) (Stored, bool, error) {
	var (
		s     Stored
		value string
	)
	err := t.db.QueryRowContext(ctx,
		`SELECT version, value FROM match_cells WHERE entity_id = ? AND family = ? AND qualifier = ? ORDER BY version DESC LIMIT 1`,
		string(eid), family, qualifier).Scan(&s.Version, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return Stored{}, false, nil
	}
	if err != nil {
		return Stored{}, false, err
	}
	s.Value = []byte(value)
	return s, true, nil
}

// CountEntities returns the number of distinct stored entities
func (t *SQLTable) CountEntities(ctx context.Context) (int, error) {
	var count int
	err := t.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT entity_id) FROM match_cells`).Scan(&count)
	return count, err
}
