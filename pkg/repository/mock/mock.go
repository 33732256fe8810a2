package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/dosecert/pkg/models"
	"github.com/garnizeh/dosecert/pkg/repository"
)

// Projects is an in-memory repository.ProjectRepo. Setting Err makes every
// call fail with it.
type Projects struct {
	mu    sync.Mutex
	items map[string]models.ProjectSnapshot
	Err   error
	Saves int
}

var _ repository.ProjectRepo = (*Projects)(nil)

func NewProjects() *Projects {
	return &Projects{items: map[string]models.ProjectSnapshot{}}
}

func (m *Projects) SaveProject(ctx context.Context, snap *models.ProjectSnapshot) (*models.ProjectSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := *snap
	ts := time.Now().UTC()
	if prev, ok := m.items[out.ID]; ok && out.ID != "" {
		out.CreatedAt = prev.CreatedAt
		if !ts.After(prev.UpdatedAt) {
			ts = prev.UpdatedAt.Add(time.Millisecond)
		}
	} else {
		out.ID = uuid.NewString()
		out.CreatedAt = ts
	}
	out.UpdatedAt = ts
	m.items[out.ID] = out
	m.Saves++
	return &out, nil
}

func (m *Projects) GetProject(ctx context.Context, id string) (*models.ProjectSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Projects) ListProjectSummaries(ctx context.Context) ([]models.ProjectSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.ProjectSummary, 0, len(m.items))
	for _, p := range m.items {
		out = append(out, models.ProjectSummary{
			ID: p.ID, Name: p.Name, ClientName: p.ClientName, SiteName: p.SiteName,
			CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *Projects) DeleteProject(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// Drafts is an in-memory repository.DraftRepo.
type Drafts struct {
	mu   sync.Mutex
	slot *models.DraftSlot
	Err  error
	Puts int
}

var _ repository.DraftRepo = (*Drafts)(nil)

func (m *Drafts) PutDraft(ctx context.Context, d *models.DraftSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := *d
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now().UTC()
	}
	m.slot = &cp
	m.Puts++
	return nil
}

func (m *Drafts) GetDraft(ctx context.Context) (*models.DraftSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.slot == nil {
		return nil, nil
	}
	cp := *m.slot
	return &cp, nil
}

func (m *Drafts) DraftTimestamp(ctx context.Context) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.slot == nil {
		return nil, nil
	}
	ts := m.slot.Timestamp
	return &ts, nil
}

func (m *Drafts) DeleteDraft(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.slot = nil
	return nil
}

// PutCount reports how many drafts were written.
func (m *Drafts) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Puts
}
