// Package drafts keeps the single crash-recovery draft of the working copy.
// Writes never fail the caller: a lost draft is logged and otherwise ignored.
package drafts

import (
	"context"
	"log/slog"
	"time"

	"github.com/garnizeh/dosecert/internal/codec"
	"github.com/garnizeh/dosecert/pkg/models"
	"github.com/garnizeh/dosecert/pkg/repository"
)

type Drafts struct {
	repo   repository.DraftRepo
	logger *slog.Logger
}

func New(repo repository.DraftRepo, logger *slog.Logger) *Drafts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Drafts{repo: repo, logger: logger}
}

// SaveDraft overwrites the slot with job and set.
func (d *Drafts) SaveDraft(ctx context.Context, job *models.JobRecord, set *models.AttachmentSet) {
	if job == nil {
		return
	}
	slot := &models.DraftSlot{
		Timestamp: time.Now().UTC(),
		Data:      *job,
		Images:    codec.EncodeSet(set),
	}
	if err := d.repo.PutDraft(ctx, slot); err != nil {
		d.logger.Warn("save draft", "err", err)
		return
	}
	d.logger.Debug("draft saved", "client", job.ClientName, "site", job.SiteName)
}

// LoadDraft returns the stored draft, or nils when there is none or it
// cannot be decoded.
func (d *Drafts) LoadDraft(ctx context.Context) (*models.JobRecord, *models.AttachmentSet) {
	slot, err := d.repo.GetDraft(ctx)
	if err != nil {
		d.logger.Warn("load draft", "err", err)
		return nil, nil
	}
	if slot == nil {
		return nil, nil
	}
	set, err := codec.DecodeSet(slot.Images)
	if err != nil {
		d.logger.Warn("discarding malformed draft", "err", err)
		return nil, nil
	}
	job := slot.Data
	if job.TestPoints == nil {
		job.TestPoints = []models.TestPoint{}
	}
	if job.Tanks == nil {
		job.Tanks = []models.Tank{}
	}
	set.TankPhotos = models.SyncTankPhotos(job.Tanks, set.TankPhotos)
	return &job, set
}

func (d *Drafts) HasDraft(ctx context.Context) bool {
	return d.DraftTimestamp(ctx) != nil
}

// DraftTimestamp reads the slot metadata only.
func (d *Drafts) DraftTimestamp(ctx context.Context) *time.Time {
	ts, err := d.repo.DraftTimestamp(ctx)
	if err != nil {
		d.logger.Warn("draft timestamp", "err", err)
		return nil
	}
	return ts
}

func (d *Drafts) ClearDraft(ctx context.Context) {
	if err := d.repo.DeleteDraft(ctx); err != nil {
		d.logger.Warn("clear draft", "err", err)
	}
}
