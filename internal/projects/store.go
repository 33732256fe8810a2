// Package projects stores named job snapshots and holds the working copy
// the user is editing.
package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/garnizeh/dosecert/internal/codec"
	"github.com/garnizeh/dosecert/internal/dosing"
	"github.com/garnizeh/dosecert/pkg/models"
	"github.com/garnizeh/dosecert/pkg/repository"
)

// Store converts between the working-copy types and stored snapshots.
type Store struct {
	repo   repository.ProjectRepo
	logger *slog.Logger
}

func NewStore(repo repository.ProjectRepo, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{repo: repo, logger: logger}
}

// Save upserts job and set. An existingID that is empty or unknown yields a
// new project; the effective id is returned either way. The stored amount
// is always derived from the volume, target and strength.
func (s *Store) Save(ctx context.Context, job *models.JobRecord, set *models.AttachmentSet, existingID string) (string, error) {
	if job == nil {
		return "", errors.New("save project: job is nil")
	}
	data := job.Clone()
	dosing.RecalculateAmount(data)
	snap := &models.ProjectSnapshot{
		ID:         existingID,
		Name:       job.ProjectName(),
		ClientName: job.ClientName,
		SiteName:   job.SiteName,
		Data:       *data,
		Images:     codec.EncodeSet(set),
	}
	saved, err := s.repo.SaveProject(ctx, snap)
	if err != nil {
		return "", fmt.Errorf("save project: %w", err)
	}
	return saved.ID, nil
}

// Get returns nil, nil when id is unknown.
func (s *Store) Get(ctx context.Context, id string) (*models.ProjectSnapshot, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *Store) ListSummaries(ctx context.Context) ([]models.ProjectSummary, error) {
	list, err := s.repo.ListProjectSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return list, nil
}

// Load returns the job and its decoded attachments. Unknown ids yield
// repository.ErrNotFound and undecodable attachments codec.ErrMalformed.
func (s *Store) Load(ctx context.Context, id string) (*models.JobRecord, *models.AttachmentSet, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, fmt.Errorf("load project %s: %w", id, repository.ErrNotFound)
	}
	job, set, err := Unpack(p.Data, p.Images)
	if err != nil {
		return nil, nil, fmt.Errorf("load project %s: %w", id, err)
	}
	s.logger.Info("project loaded",
		"id", id,
		"test_points", len(job.TestPoints),
		"tanks", len(job.Tanks),
		"evidence", len(set.EvidencePhotos),
		"attachments", humanize.Bytes(attachmentBytes(set)),
	)
	return job, set, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

// Unpack decodes stored job data and images into working-copy form.
func Unpack(data models.JobRecord, images models.SerializedImages) (*models.JobRecord, *models.AttachmentSet, error) {
	set, err := codec.DecodeSet(images)
	if err != nil {
		return nil, nil, err
	}
	job := data.Clone()
	set.TankPhotos = models.SyncTankPhotos(job.Tanks, set.TankPhotos)
	return job, set, nil
}

func attachmentBytes(set *models.AttachmentSet) uint64 {
	var n int
	for _, a := range []*models.Attachment{set.Logo, set.Header, set.Footer, set.Certificate, set.CoverPhoto, set.LabResults, set.DosingSetup, set.InitialChemical} {
		if a != nil {
			n += len(a.Data)
		}
	}
	for _, e := range set.EvidencePhotos {
		if e.File != nil {
			n += len(e.File.Data)
		}
	}
	for _, tp := range set.TankPhotos {
		if tp.Before != nil {
			n += len(tp.Before.Data)
		}
		if tp.After != nil {
			n += len(tp.After.Data)
		}
	}
	return uint64(n)
}
