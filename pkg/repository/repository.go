package repository

import (
	"context"
	"errors"
	"time"

	"github.com/garnizeh/dosecert/internal/models"
	pub "github.com/garnizeh/dosecert/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.

var (
	// ErrStorage marks failures of the underlying store (I/O, quota, corruption).
	ErrStorage = errors.New("storage failure")
	// ErrNotFound is returned by operations that require an existing record.
	ErrNotFound = errors.New("not found")
)

type ProjectRepo interface {
	// SaveProject upserts snap. When snap.ID names an existing project its
	// creation time is kept; otherwise a new id is minted. The stored
	// snapshot (id and timestamps filled in) is returned.
	SaveProject(ctx context.Context, snap *pub.ProjectSnapshot) (*pub.ProjectSnapshot, error)
	GetProject(ctx context.Context, id string) (*pub.ProjectSnapshot, error)
	ListProjectSummaries(ctx context.Context) ([]pub.ProjectSummary, error)
	DeleteProject(ctx context.Context, id string) error
}

type DraftRepo interface {
	PutDraft(ctx context.Context, d *pub.DraftSlot) error
	GetDraft(ctx context.Context) (*pub.DraftSlot, error)
	DraftTimestamp(ctx context.Context) (*time.Time, error)
	DeleteDraft(ctx context.Context) error
}

type SchemaRepo interface {
	UpsertSchema(ctx context.Context, version, description, doc string) error
	GetSchema(ctx context.Context, version string) (*models.Schema, error)
	ListSchemas(ctx context.Context) ([]models.Schema, error)
}

type TemplateRepo interface {
	UpsertTemplate(ctx context.Context, t models.Template) error
	GetTemplate(ctx context.Context, name, version string) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
}
