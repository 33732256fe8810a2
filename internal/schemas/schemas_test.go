package schemas_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	dbfs "github.com/garnizeh/dosecert/db"
	dbpkg "github.com/garnizeh/dosecert/internal/db"
	"github.com/garnizeh/dosecert/internal/models"
	"github.com/garnizeh/dosecert/internal/repository/sqlite"
	"github.com/garnizeh/dosecert/internal/schemas"
	"github.com/garnizeh/dosecert/pkg/repository"
)

// fakeSchemaRepo is a small in-memory repository.SchemaRepo.
type fakeSchemaRepo struct {
	schemas map[string]models.Schema
	err     error
}

func (f *fakeSchemaRepo) UpsertSchema(ctx context.Context, version, description, doc string) error {
	f.schemas[version] = models.Schema{Version: version, Description: description, Document: doc}
	return nil
}

func (f *fakeSchemaRepo) GetSchema(ctx context.Context, version string) (*models.Schema, error) {
	if s, ok := f.schemas[version]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeSchemaRepo) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Schema, 0, len(f.schemas))
	for _, s := range f.schemas {
		out = append(out, s)
	}
	return out, nil
}

var _ repository.SchemaRepo = (*fakeSchemaRepo)(nil)

func TestLoader_ValidateAgainstFakeRepo(t *testing.T) {
	ctx := context.Background()
	fr := &fakeSchemaRepo{schemas: map[string]models.Schema{}}
	_ = fr.UpsertSchema(ctx, "v1", "v1 schema", `{"type":"object","required":["version"],"properties":{"version":{"type":"string"}}}`)

	l, err := schemas.NewLoader(ctx, fr)
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	if s, ok := l.Get("v1"); !ok || s == nil {
		t.Fatalf("expected schema in cache for v1")
	}

	if err := l.Validate(ctx, "v1", []byte(`{"version":"v1"}`)); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}

	err = l.Validate(ctx, "v1", []byte(`{"version":1}`))
	var ve *schemas.ValidationError
	if !errors.As(err, &ve) || len(ve.Problems) == 0 {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if err := l.Validate(ctx, "v9", []byte(`{}`)); !errors.Is(err, schemas.ErrUnknownSchema) {
		t.Fatalf("expected ErrUnknownSchema, got %v", err)
	}
	if err := l.Validate(ctx, "v1", []byte(`{not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestLoader_ReloadFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	fr := &fakeSchemaRepo{schemas: map[string]models.Schema{}}
	_ = fr.UpsertSchema(ctx, "v1", "", `{"type":"object"}`)
	l, err := schemas.NewLoader(ctx, fr)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	fr.err = errors.New("disk gone")
	if err := l.Reload(ctx); err == nil {
		t.Fatalf("expected reload error")
	}
	if _, ok := l.Get("v1"); !ok {
		t.Fatalf("cache should survive a failed reload")
	}

	if _, err := schemas.NewLoader(ctx, fr); err == nil {
		t.Fatalf("expected NewLoader to surface repository errors")
	}
}

func TestLoader_SeededSchemas(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, filepath.Join(t.TempDir(), "schemas.db"), nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer d.Close()
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	l, err := schemas.NewLoader(ctx, sqlite.New(d, nil))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	if err := l.Validate(ctx, schemas.NarrativeV1, []byte(`{"scopeOfWorks":"Chlorinate","comments":"ok"}`)); err != nil {
		t.Fatalf("valid narrative rejected: %v", err)
	}
	if err := l.Validate(ctx, schemas.NarrativeV1, []byte(`{"scopeOfWorks":"","comments":"ok"}`)); err == nil {
		t.Fatalf("empty scope of works should be rejected")
	}
	if _, ok := l.Get(schemas.ProjectFileV1); !ok {
		t.Fatalf("project file schema not loaded")
	}
}
