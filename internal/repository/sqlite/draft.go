package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/dosecert/pkg/models"
	"github.com/garnizeh/dosecert/pkg/repository"
)

// draftKey names the single draft slot.
const draftKey = "current"

// PutDraft overwrites the draft slot.
func (r *SQLiteRepo) PutDraft(ctx context.Context, d *models.DraftSlot) error {
	if d == nil {
		return fmt.Errorf("draft is nil")
	}
	dataJSON, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("marshal draft data: %w", err)
	}
	imagesJSON, err := json.Marshal(d.Images)
	if err != nil {
		return fmt.Errorf("marshal draft images: %w", err)
	}

	ts := d.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = r.conn.Exec(ctx, `INSERT INTO draft_slot (slot, saved, data_json, images_json) VALUES (?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET saved=excluded.saved, data_json=excluded.data_json, images_json=excluded.images_json`,
		draftKey, ts.UTC().UnixMilli(), string(dataJSON), string(imagesJSON))
	if err != nil {
		return fmt.Errorf("put draft: %w: %w", repository.ErrStorage, err)
	}
	return nil
}

// GetDraft returns nil, nil when there is no draft. Undecodable content is
// reported as an error so callers can decide to discard it.
func (r *SQLiteRepo) GetDraft(ctx context.Context) (*models.DraftSlot, error) {
	row := r.conn.QueryRow(ctx, `SELECT saved, data_json, images_json FROM draft_slot WHERE slot = ?`, draftKey)
	var (
		saved                int64
		dataJSON, imagesJSON string
	)
	if err := row.Scan(&saved, &dataJSON, &imagesJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get draft: %w: %w", repository.ErrStorage, err)
	}

	d := &models.DraftSlot{Timestamp: fromMillis(saved)}
	if err := json.Unmarshal([]byte(dataJSON), &d.Data); err != nil {
		return nil, fmt.Errorf("decode draft data: %w", err)
	}
	if err := json.Unmarshal([]byte(imagesJSON), &d.Images); err != nil {
		return nil, fmt.Errorf("decode draft images: %w", err)
	}
	return d, nil
}

// DraftTimestamp reads only the slot metadata.
func (r *SQLiteRepo) DraftTimestamp(ctx context.Context) (*time.Time, error) {
	var saved int64
	if err := r.conn.QueryRow(ctx, `SELECT saved FROM draft_slot WHERE slot = ?`, draftKey).Scan(&saved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("draft timestamp: %w: %w", repository.ErrStorage, err)
	}
	ts := fromMillis(saved)
	return &ts, nil
}

func (r *SQLiteRepo) DeleteDraft(ctx context.Context) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM draft_slot WHERE slot = ?`, draftKey); err != nil {
		return fmt.Errorf("delete draft: %w: %w", repository.ErrStorage, err)
	}
	return nil
}
