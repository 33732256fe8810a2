package projects

import (
	"context"
	"errors"
	"sync"

	"github.com/garnizeh/dosecert/internal/dosing"
	"github.com/garnizeh/dosecert/internal/drafts"
	"github.com/garnizeh/dosecert/pkg/models"
)

var (
	// ErrSaveInProgress is returned when an explicit save is already running
	// for the working copy.
	ErrSaveInProgress = errors.New("save already in progress")
	// ErrNoDraft is returned by Recover when there is nothing to recover.
	ErrNoDraft = errors.New("no draft to recover")
)

// Session is the working copy: the job being edited, its attachments and the
// id of the project it was last saved as.
type Session struct {
	store  *Store
	drafts *drafts.Drafts

	saving sync.Mutex

	mu        sync.Mutex
	job       *models.JobRecord
	set       *models.AttachmentSet
	projectID string
	// gen changes whenever the working copy is swapped for another one
	gen uint64
}

var _ drafts.Source = (*Session)(nil)

func NewSession(store *Store, d *drafts.Drafts) *Session {
	return &Session{
		store:  store,
		drafts: d,
		job:    models.NewJobRecord(),
		set:    (*models.AttachmentSet)(nil).Clone(),
	}
}

// Snapshot returns copies of the working job and attachments.
func (s *Session) Snapshot() (*models.JobRecord, *models.AttachmentSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job.Clone(), s.set.Clone()
}

func (s *Session) ProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}

// Update applies fn to the working copy and then refreshes the derived
// dosage amount and tank photo slots.
func (s *Session) Update(fn func(*models.JobRecord, *models.AttachmentSet)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.job, s.set)
	normalize(s.job, s.set)
}

// Replace swaps in job and set as a new, unsaved project and clears the
// draft.
func (s *Session) Replace(ctx context.Context, job *models.JobRecord, set *models.AttachmentSet) {
	s.swap(job, set, "")
	s.drafts.ClearDraft(ctx)
}

// Save stores the working copy under its project id and clears the draft.
// A second Save while one is running fails with ErrSaveInProgress.
func (s *Session) Save(ctx context.Context) (string, error) {
	if !s.saving.TryLock() {
		return "", ErrSaveInProgress
	}
	defer s.saving.Unlock()

	s.mu.Lock()
	job, set, existing, gen := s.job.Clone(), s.set.Clone(), s.projectID, s.gen
	s.mu.Unlock()

	id, err := s.store.Save(ctx, job, set, existing)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	// the copy may have been swapped while saving; keep the new one's identity
	if s.gen == gen {
		s.projectID = id
	}
	s.mu.Unlock()

	s.drafts.ClearDraft(ctx)
	return id, nil
}

// Reset starts a fresh job and clears the draft.
func (s *Session) Reset(ctx context.Context) {
	s.swap(models.NewJobRecord(), nil, "")
	s.drafts.ClearDraft(ctx)
}

// Open loads a stored project into the working copy. On failure the current
// working copy is left untouched.
func (s *Session) Open(ctx context.Context, id string) error {
	job, set, err := s.store.Load(ctx, id)
	if err != nil {
		return err
	}
	s.swap(job, set, id)
	s.drafts.ClearDraft(ctx)
	return nil
}

// Recover replaces the working copy with the draft, if one can be loaded.
func (s *Session) Recover(ctx context.Context) error {
	job, set := s.drafts.LoadDraft(ctx)
	if job == nil {
		return ErrNoDraft
	}
	s.swap(job, set, "")
	s.drafts.ClearDraft(ctx)
	return nil
}

func (s *Session) swap(job *models.JobRecord, set *models.AttachmentSet, id string) {
	job = job.Clone()
	set = set.Clone()
	normalize(job, set)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.job, s.set, s.projectID = job, set, id
	s.gen++
}

func normalize(job *models.JobRecord, set *models.AttachmentSet) {
	if job.TestPoints == nil {
		job.TestPoints = []models.TestPoint{}
	}
	if job.Tanks == nil {
		job.Tanks = []models.Tank{}
	}
	if set.EvidencePhotos == nil {
		set.EvidencePhotos = []models.EvidencePhoto{}
	}
	models.EnsureTankIDs(job.Tanks)
	dosing.RecalculateAmount(job)
	set.TankPhotos = models.SyncTankPhotos(job.Tanks, set.TankPhotos)
}
