package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/garnizeh/dosecert/pkg/models"
	"github.com/garnizeh/dosecert/pkg/repository"
)

// SaveProject upserts a snapshot inside one transaction so readers never see
// a half-written record.
func (r *SQLiteRepo) SaveProject(ctx context.Context, snap *models.ProjectSnapshot) (*models.ProjectSnapshot, error) {
	if snap == nil {
		return nil, fmt.Errorf("project is nil")
	}

	dataJSON, err := json.Marshal(snap.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal project data: %w", err)
	}
	imagesJSON, err := json.Marshal(snap.Images)
	if err != nil {
		return nil, fmt.Errorf("marshal project images: %w", err)
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save project: %w: %w", repository.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	out := *snap
	ts := now()
	created := ts

	var prevCreated, prevUpdated int64
	found := false
	if out.ID != "" {
		row := tx.QueryRowContext(ctx, `SELECT created, updated FROM projects WHERE id = ?`, out.ID)
		switch err := row.Scan(&prevCreated, &prevUpdated); {
		case err == nil:
			found = true
		case errors.Is(err, sql.ErrNoRows):
		default:
			return nil, fmt.Errorf("query existing project: %w: %w", repository.ErrStorage, err)
		}
	}

	if found {
		created = prevCreated
		// updated must move forward even when the clock has not
		if ts <= prevUpdated {
			ts = prevUpdated + 1
		}
	} else {
		out.ID = uuid.NewString()
	}

	q := `INSERT INTO projects (id, name, client_name, site_name, created, updated, data_json, images_json) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, client_name=excluded.client_name, site_name=excluded.site_name, updated=excluded.updated, data_json=excluded.data_json, images_json=excluded.images_json`
	if _, err := tx.ExecContext(ctx, q, out.ID, out.Name, out.ClientName, out.SiteName, created, ts, string(dataJSON), string(imagesJSON)); err != nil {
		return nil, fmt.Errorf("upsert project: %w: %w", repository.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit project: %w: %w", repository.ErrStorage, err)
	}

	out.CreatedAt = fromMillis(created)
	out.UpdatedAt = fromMillis(ts)

	r.logger.Info("project saved",
		"id", out.ID,
		"created", !found,
		"images", humanize.Bytes(uint64(len(imagesJSON))),
	)

	return &out, nil
}

// GetProject returns nil, nil when the project does not exist.
func (r *SQLiteRepo) GetProject(ctx context.Context, id string) (*models.ProjectSnapshot, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, client_name, site_name, created, updated, data_json, images_json FROM projects WHERE id = ?`, id)

	var (
		p                    models.ProjectSnapshot
		created, updated     int64
		dataJSON, imagesJSON string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.ClientName, &p.SiteName, &created, &updated, &dataJSON, &imagesJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get project: %w: %w", repository.ErrStorage, err)
	}

	if err := json.Unmarshal([]byte(dataJSON), &p.Data); err != nil {
		return nil, fmt.Errorf("decode project %s data: %w: %w", id, repository.ErrStorage, err)
	}
	if err := json.Unmarshal([]byte(imagesJSON), &p.Images); err != nil {
		return nil, fmt.Errorf("decode project %s images: %w: %w", id, repository.ErrStorage, err)
	}
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)

	return &p, nil
}

// ListProjectSummaries returns summaries, most recently updated first. The
// images column is only measured, never read.
func (r *SQLiteRepo) ListProjectSummaries(ctx context.Context) ([]models.ProjectSummary, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, name, client_name, site_name, created, updated, length(images_json) FROM projects ORDER BY updated DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w: %w", repository.ErrStorage, err)
	}
	defer rows.Close()

	out := []models.ProjectSummary{}
	for rows.Next() {
		var s models.ProjectSummary
		var created, updated int64
		if err := rows.Scan(&s.ID, &s.Name, &s.ClientName, &s.SiteName, &created, &updated, &s.ImagesBytes); err != nil {
			return nil, fmt.Errorf("scan project summary: %w: %w", repository.ErrStorage, err)
		}
		s.CreatedAt = fromMillis(created)
		s.UpdatedAt = fromMillis(updated)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w: %w", repository.ErrStorage, err)
	}

	return out, nil
}

func (r *SQLiteRepo) DeleteProject(ctx context.Context, id string) error {
	res, err := r.conn.Exec(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w: %w", repository.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project: %w: %w", repository.ErrStorage, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
