package drafts_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garnizeh/dosecert/internal/drafts"
	"github.com/garnizeh/dosecert/pkg/models"
	"github.com/garnizeh/dosecert/pkg/repository/mock"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func identifiedJob() *models.JobRecord {
	j := models.NewJobRecord()
	j.ClientName = "Acme"
	return j
}

func TestDraftRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := &mock.Drafts{}
	d := drafts.New(repo, nil)

	if d.HasDraft(ctx) {
		t.Fatalf("expected no draft initially")
	}
	if job, set := d.LoadDraft(ctx); job != nil || set != nil {
		t.Fatalf("expected nothing to load")
	}

	job := identifiedJob()
	tankID := job.AddTank("Loft tank", "200")
	set := &models.AttachmentSet{
		Logo:       &models.Attachment{Name: "logo.png", MIMEType: "image/png", Data: pngBytes},
		TankPhotos: []models.TankPhotos{{TankID: tankID, After: &models.Attachment{Name: "after.png", MIMEType: "image/png", Data: pngBytes}}},
	}
	d.SaveDraft(ctx, job, set)

	if !d.HasDraft(ctx) || d.DraftTimestamp(ctx) == nil {
		t.Fatalf("expected draft to exist")
	}
	gotJob, gotSet := d.LoadDraft(ctx)
	if gotJob == nil || gotSet == nil {
		t.Fatalf("expected draft to load")
	}
	if gotJob.ClientName != "Acme" || len(gotJob.Tanks) != 1 {
		t.Fatalf("unexpected job: %#v", gotJob)
	}
	if gotSet.Logo == nil || !bytes.Equal(gotSet.Logo.Data, pngBytes) {
		t.Fatalf("logo not restored")
	}
	if len(gotSet.TankPhotos) != 1 || gotSet.TankPhotos[0].After == nil {
		t.Fatalf("tank photos not restored: %#v", gotSet.TankPhotos)
	}
}

func TestClearDraftIdempotent(t *testing.T) {
	ctx := context.Background()
	d := drafts.New(&mock.Drafts{}, nil)
	d.SaveDraft(ctx, identifiedJob(), nil)

	d.ClearDraft(ctx)
	if d.HasDraft(ctx) {
		t.Fatalf("draft should be gone after first clear")
	}
	d.ClearDraft(ctx)
	if d.HasDraft(ctx) {
		t.Fatalf("draft should be gone after second clear")
	}
}

func TestMalformedDraftTreatedAsNone(t *testing.T) {
	ctx := context.Background()
	repo := &mock.Drafts{}
	if err := repo.PutDraft(ctx, &models.DraftSlot{Data: *identifiedJob(), Images: models.SerializedImages{Logo: "garbage"}}); err != nil {
		t.Fatalf("PutDraft: %v", err)
	}

	d := drafts.New(repo, nil)
	if job, set := d.LoadDraft(ctx); job != nil || set != nil {
		t.Fatalf("malformed draft must load as none")
	}
}

func TestStorageFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	repo := &mock.Drafts{Err: errors.New("quota exceeded")}
	d := drafts.New(repo, nil)

	d.SaveDraft(ctx, identifiedJob(), nil)
	d.ClearDraft(ctx)
	if d.HasDraft(ctx) {
		t.Fatalf("failing store reports no draft")
	}
	if job, _ := d.LoadDraft(ctx); job != nil {
		t.Fatalf("failing store loads nothing")
	}
}

type fakeSource struct {
	mu  sync.Mutex
	job *models.JobRecord
}

func (f *fakeSource) Snapshot() (*models.JobRecord, *models.AttachmentSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.job
	return &cp, &models.AttachmentSet{}
}

func TestAutosaverTickSkipsAnonymousJobs(t *testing.T) {
	ctx := context.Background()
	repo := &mock.Drafts{}
	src := &fakeSource{job: models.NewJobRecord()}
	a := drafts.NewAutosaver(drafts.New(repo, nil), src, time.Hour, nil)

	if a.Tick(ctx) {
		t.Fatalf("job without client or site must not be autosaved")
	}
	if repo.PutCount() != 0 {
		t.Fatalf("unexpected draft write")
	}

	src.job.SiteName = "Depot"
	if !a.Tick(ctx) || repo.PutCount() != 1 {
		t.Fatalf("expected one draft write")
	}
}

func TestAutosaverRunsOnTimer(t *testing.T) {
	repo := &mock.Drafts{}
	a := drafts.NewAutosaver(drafts.New(repo, nil), &fakeSource{job: identifiedJob()}, 10*time.Millisecond, nil)

	a.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for repo.PutCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	a.Stop()
	a.Stop()

	if repo.PutCount() < 2 {
		t.Fatalf("expected repeated autosaves, got %d", repo.PutCount())
	}
}

func TestAutosaverStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := drafts.NewAutosaver(drafts.New(&mock.Drafts{}, nil), &fakeSource{job: identifiedJob()}, time.Hour, nil)
	a.Start(ctx)
	cancel()
	a.Stop()
}
