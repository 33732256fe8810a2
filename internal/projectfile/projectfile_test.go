package projectfile_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dbfs "github.com/garnizeh/dosecert/db"
	"github.com/garnizeh/dosecert/internal/codec"
	dbpkg "github.com/garnizeh/dosecert/internal/db"
	"github.com/garnizeh/dosecert/internal/projectfile"
	"github.com/garnizeh/dosecert/internal/repository/sqlite"
	"github.com/garnizeh/dosecert/internal/schemas"
	"github.com/garnizeh/dosecert/pkg/models"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func newImporter(t *testing.T) *projectfile.Importer {
	t.Helper()
	ctx := context.Background()
	d, err := dbpkg.New(ctx, filepath.Join(t.TempDir(), "pf.db"), nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	l, err := schemas.NewLoader(ctx, sqlite.New(d, nil))
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	return projectfile.NewImporter(l)
}

func sample() (*models.JobRecord, *models.AttachmentSet) {
	job := models.NewJobRecord()
	job.ClientName = "Acme"
	job.SiteName = "Depot 4"
	job.Comments = "All good"
	tank := job.AddTank("Break tank", "2000")
	set := &models.AttachmentSet{
		Certificate: &models.Attachment{MIMEType: "application/pdf", Data: []byte("%PDF-1.4 fake")},
		TankPhotos:  []models.TankPhotos{{TankID: tank, Before: &models.Attachment{MIMEType: "image/png", Data: pngBytes}}},
		EvidencePhotos: []models.EvidencePhoto{
			{ID: "e1", Caption: "Outlet", File: &models.Attachment{MIMEType: "image/png", Data: pngBytes}},
		},
	}
	return job, set
}

func TestExportImportRoundTrip(t *testing.T) {
	job, set := sample()
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	b, err := projectfile.Export(job, set, now)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var f projectfile.File
	if err := json.Unmarshal(b, &f); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if f.Version != "1.0" || f.Timestamp != "2024-03-01T09:30:00Z" {
		t.Fatalf("unexpected header: %q %q", f.Version, f.Timestamp)
	}

	gotJob, gotSet, err := newImporter(t).Import(context.Background(), b)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if gotJob.ClientName != "Acme" || gotJob.Comments != "All good" || len(gotJob.Tanks) != 1 {
		t.Fatalf("job mismatch: %#v", gotJob)
	}
	if gotSet.Certificate == nil || !bytes.Equal(gotSet.Certificate.Data, set.Certificate.Data) {
		t.Fatalf("certificate mismatch")
	}
	if len(gotSet.TankPhotos) != 1 || !bytes.Equal(gotSet.TankPhotos[0].Before.Data, pngBytes) {
		t.Fatalf("tank photo mismatch")
	}
	if len(gotSet.EvidencePhotos) != 1 || gotSet.EvidencePhotos[0].Caption != "Outlet" {
		t.Fatalf("evidence mismatch")
	}
}

func TestImportRejectsInvalidFiles(t *testing.T) {
	imp := newImporter(t)
	cases := map[string]string{
		"not json":          `hello`,
		"missing data":      `{"version":"1.0","images":{}}`,
		"missing images":    `{"version":"1.0","data":{}}`,
		"null images":       `{"version":"1.0","data":{},"images":null}`,
		"schema violation":  `{"version":"1.0","data":{"jobType":"Boiler"},"images":{}}`,
		"bad attachment":    `{"version":"1.0","data":{},"images":{"logo":"not-a-data-uri"}}`,
		"array at top":      `[1,2,3]`,
		"wrong images type": `{"version":"1.0","data":{},"images":"x"}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			job, set, err := imp.Import(context.Background(), []byte(doc))
			if !errors.Is(err, projectfile.ErrInvalidFile) {
				t.Fatalf("expected ErrInvalidFile, got %v", err)
			}
			if job != nil || set != nil {
				t.Fatalf("partial result returned")
			}
		})
	}

	_, _, err := imp.Import(context.Background(), []byte(`{"version":"1.0","data":{},"images":{"logo":"nope"}}`))
	if !errors.Is(err, codec.ErrMalformed) {
		t.Fatalf("expected attachment error to be wrapped, got %v", err)
	}
}

func TestImportWithoutValidatorDefaultsJobType(t *testing.T) {
	job, _, err := projectfile.NewImporter(nil).Import(context.Background(), []byte(`{"data":{"clientName":"X"},"images":{}}`))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if job.JobType != models.JobTypePipework || job.Tanks == nil {
		t.Fatalf("unexpected job: %#v", job)
	}
}

func TestFileName(t *testing.T) {
	job, _ := sample()
	got := projectfile.FileName(job, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if got != "Acme-Depot-4-2024-03-01.json" {
		t.Fatalf("unexpected name %q", got)
	}
	if !strings.HasPrefix(projectfile.FileName(models.NewJobRecord(), time.Now()), "Untitled-Project-") {
		t.Fatalf("untitled job name")
	}
}
