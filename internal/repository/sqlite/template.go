package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/dosecert/internal/models"
	"github.com/garnizeh/dosecert/pkg/repository"
)

// UpsertTemplate stores t keyed by (name, version). Empty SchemaVersion and
// Metadata are stored as NULL.
func (r *SQLiteRepo) UpsertTemplate(ctx context.Context, t models.Template) error {
	if t.Name == "" || t.Version == "" {
		return fmt.Errorf("template name and version are required")
	}
	ts := now()
	_, err := r.conn.Exec(ctx, `INSERT INTO prompt_templates (name, version, template_text, schema_version, metadata, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, version) DO UPDATE SET template_text=excluded.template_text, schema_version=excluded.schema_version, metadata=excluded.metadata, updated=excluded.updated`,
		t.Name, t.Version, t.Text, nullable(t.SchemaVersion), nullable(t.Metadata), ts, ts)
	if err != nil {
		return fmt.Errorf("upsert template %s:%s: %w: %w", t.Name, t.Version, repository.ErrStorage, err)
	}
	return nil
}

// GetTemplate returns nil, nil when no such template exists.
func (r *SQLiteRepo) GetTemplate(ctx context.Context, name, version string) (*models.Template, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, version, template_text, schema_version, metadata, created, updated FROM prompt_templates WHERE name = ? AND version = ?`, name, version)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get template %s:%s: %w: %w", name, version, repository.ErrStorage, err)
	}
	return t, nil
}

func (r *SQLiteRepo) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, name, version, template_text, schema_version, metadata, created, updated FROM prompt_templates ORDER BY name, version`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w: %w", repository.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w: %w", repository.ErrStorage, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w: %w", repository.ErrStorage, err)
	}
	return out, nil
}

func scanTemplate(sc scanner) (*models.Template, error) {
	var (
		t                models.Template
		schemaVer, meta  sql.NullString
		created, updated int64
	)
	if err := sc.Scan(&t.ID, &t.Name, &t.Version, &t.Text, &schemaVer, &meta, &created, &updated); err != nil {
		return nil, err
	}
	t.SchemaVersion = schemaVer.String
	t.Metadata = meta.String
	t.Created = fromMillis(created)
	t.Updated = fromMillis(updated)
	return &t, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
