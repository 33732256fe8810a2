package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/dosecert/internal/models"
	"github.com/garnizeh/dosecert/pkg/repository"
)

// UpsertSchema stores doc under version, replacing any previous document.
func (r *SQLiteRepo) UpsertSchema(ctx context.Context, version, description, doc string) error {
	ts := now()
	_, err := r.conn.Exec(ctx, `INSERT INTO json_schemas (version, description, schema_json, created, updated) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET description=excluded.description, schema_json=excluded.schema_json, updated=excluded.updated`,
		version, description, doc, ts, ts)
	if err != nil {
		return fmt.Errorf("upsert schema %s: %w: %w", version, repository.ErrStorage, err)
	}
	return nil
}

// GetSchema returns nil, nil for an unknown version.
func (r *SQLiteRepo) GetSchema(ctx context.Context, version string) (*models.Schema, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, version, description, schema_json, created, updated FROM json_schemas WHERE version = ?`, version)
	s, err := scanSchema(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schema %s: %w: %w", version, repository.ErrStorage, err)
	}
	return s, nil
}

func (r *SQLiteRepo) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, version, description, schema_json, created, updated FROM json_schemas ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w: %w", repository.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.Schema
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schema: %w: %w", repository.ErrStorage, err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w: %w", repository.ErrStorage, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchema(sc scanner) (*models.Schema, error) {
	var (
		s                models.Schema
		desc             sql.NullString
		created, updated int64
	)
	if err := sc.Scan(&s.ID, &s.Version, &desc, &s.Document, &created, &updated); err != nil {
		return nil, err
	}
	s.Description = desc.String
	s.Created = fromMillis(created)
	s.Updated = fromMillis(updated)
	return &s, nil
}
