package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projects (
    position INTEGER PRIMARY KEY,
    project_id INTEGER,
    slug TEXT,
    created_at TEXT,
    has_details INTEGER NOT NULL DEFAULT 0,
    payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_project_id ON projects(project_id);
CREATE INDEX IF NOT EXISTS idx_projects_slug ON projects(slug);

CREATE TABLE IF NOT EXISTS snapshot_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    updated_at TIMESTAMP NOT NULL,
    total INTEGER NOT NULL
);
`

// SQLiteProjectRepository mirrors the merged project list into SQLite.
type SQLiteProjectRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteProjectRepository opens (and if needed creates) the database.
func NewSQLiteProjectRepository(dataSourceName string) (*SQLiteProjectRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and writes serialised.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &SQLiteProjectRepository{db: db, now: time.Now}, nil
}

// Close closes the database.
func (r *SQLiteProjectRepository) Close() error {
	return r.db.Close()
}

// Save replaces the stored snapshot with merged, keeping its order.
func (r *SQLiteProjectRepository) Save(ctx context.Context, merged []domain.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM projects`); err != nil {
		return fmt.Errorf("clear projects: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO projects (position, project_id, slug, created_at, has_details, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range merged {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode project %d: %w", i, err)
		}

		var projectID sql.NullInt64
		if id, ok := p.ID(); ok {
			projectID = sql.NullInt64{Int64: id, Valid: true}
		}
		var slug, createdAt sql.NullString
		if s, ok := p.Slug(); ok {
			slug = sql.NullString{String: s, Valid: true}
		}
		if c, ok := p.CreatedAt(); ok {
			createdAt = sql.NullString{String: c, Valid: true}
		}
		_, hasDetails := p[domain.FieldDetails]

		if _, err := stmt.ExecContext(ctx, i, projectID, slug, createdAt, hasDetails, string(payload)); err != nil {
			return fmt.Errorf("insert project %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshot_meta (id, updated_at, total) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at, total = excluded.total
	`, r.now().UTC(), len(merged)); err != nil {
		return fmt.Errorf("update snapshot meta: %w", err)
	}

	return tx.Commit()
}

// List returns the stored snapshot in its original order.
func (r *SQLiteProjectRepository) List(ctx context.Context) (Snapshot, error) {
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM snapshot_meta WHERE id = 1`).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrSnapshotUnavailable
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot meta: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT payload FROM projects ORDER BY position`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := []domain.Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return Snapshot{}, fmt.Errorf("scan project: %w", err)
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return Snapshot{}, err
		}
		projects = append(projects, rec)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	return Snapshot{Source: "sqlite", LastUpdated: updatedAt, Projects: projects}, nil
}

// Get returns the first stored project with the given id.
func (r *SQLiteProjectRepository) Get(ctx context.Context, id int64) (domain.Record, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `
		SELECT payload FROM projects WHERE project_id = ? ORDER BY position LIMIT 1
	`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return decodeRecord(payload)
}

func decodeRecord(payload string) (domain.Record, error) {
	v, err := domain.DecodeValue([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	rec, ok := domain.AsRecord(v)
	if !ok {
		return nil, fmt.Errorf("decode project: not an object")
	}
	return rec, nil
}
