package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	dbfs "github.com/garnizeh/dosecert/db"
	"github.com/garnizeh/dosecert/internal/ai"
	"github.com/garnizeh/dosecert/internal/config"
	dbpkg "github.com/garnizeh/dosecert/internal/db"
	"github.com/garnizeh/dosecert/internal/jobs"
	"github.com/garnizeh/dosecert/internal/projects"
	"github.com/garnizeh/dosecert/internal/repository/sqlite"
	"github.com/garnizeh/dosecert/internal/schemas"
	"github.com/garnizeh/dosecert/pkg/models"
	"github.com/garnizeh/dosecert/pkg/ollama"
	"github.com/garnizeh/dosecert/pkg/repository/mock"
)

// fakeGenerator returns a canned answer and records the prompt.
type fakeGenerator struct {
	out    string
	err    error
	prompt string
	json   bool
}

func (f *fakeGenerator) Generate(ctx context.Context, model, prompt string, jsonFormat bool) (ollama.GenerateResult, error) {
	f.prompt = prompt
	f.json = jsonFormat
	if f.err != nil {
		return ollama.GenerateResult{}, f.err
	}
	return ollama.GenerateResult{Text: f.out, Model: model}, nil
}

func newEngine(t *testing.T, gen ai.Generator) *ai.Engine {
	t.Helper()
	ctx := context.Background()
	d, err := dbpkg.New(ctx, filepath.Join(t.TempDir(), "ai.db"), nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := sqlite.New(d, nil)
	loader, err := schemas.NewLoader(ctx, repo)
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	e, err := ai.NewEngine(ctx, gen, config.EngineConfig{Model: "llama3"}, repo, loader)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func highPHJob() *models.JobRecord {
	j := models.NewJobRecord()
	j.ClientName = "Acme"
	j.SiteName = "Depot"
	j.IncomingMainsPh = "8.1"
	j.AddTank("Loft tank", "450")
	return j
}

func TestGenerateNarrative(t *testing.T) {
	gen := &fakeGenerator{out: "Sure:\n```json\n{\"scopeOfWorks\":\" Chlorinated the system. \",\"comments\":\"No issues\"}\n```"}
	e := newEngine(t, gen)

	n, err := e.GenerateNarrative(context.Background(), highPHJob())
	if err != nil {
		t.Fatalf("GenerateNarrative: %v", err)
	}
	if n.ScopeOfWorks != "Chlorinated the system." || n.Comments != "No issues" {
		t.Fatalf("unexpected narrative: %#v", n)
	}
	if !gen.json {
		t.Fatalf("expected JSON output to be requested")
	}
	for _, want := range []string{"Client: Acme", "Loft tank", "2.50 Hours"} {
		if !strings.Contains(gen.prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, gen.prompt)
		}
	}
}

func TestGenerateNarrative_Failures(t *testing.T) {
	cases := map[string]*fakeGenerator{
		"collaborator down": {err: errors.New("connection refused")},
		"no json":           {out: "I cannot help with that"},
		"schema violation":  {out: `{"scopeOfWorks":"","comments":"x"}`},
		"missing field":     {out: `{"scopeOfWorks":"x"}`},
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEngine(t, gen)
			if n, err := e.GenerateNarrative(context.Background(), highPHJob()); err == nil {
				t.Fatalf("expected error, got %#v", n)
			}
		})
	}
}

func TestNewEngine_InlineTemplateAndMissingTemplate(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{out: `{"scopeOfWorks":"a","comments":"b"}`}

	cfg := config.EngineConfig{Model: "m", Template: config.PromptTemplate{Template: "Job for {{.Job.ClientName}}"}}
	e, err := ai.NewEngine(ctx, gen, cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine inline: %v", err)
	}
	if _, err := e.GenerateNarrative(ctx, highPHJob()); err != nil {
		t.Fatalf("GenerateNarrative: %v", err)
	}
	if gen.prompt != "Job for Acme" {
		t.Fatalf("unexpected prompt %q", gen.prompt)
	}

	if _, err := ai.NewEngine(ctx, gen, config.EngineConfig{Model: "m"}, nil, nil); err == nil {
		t.Fatalf("expected error without template source")
	}
	if _, err := ai.NewEngine(ctx, nil, cfg, nil, nil); err == nil {
		t.Fatalf("expected error without generator")
	}
}

func TestParseNarrative(t *testing.T) {
	if _, err := ai.ParseNarrative("  "); err == nil {
		t.Fatalf("expected error for empty output")
	}
	if _, err := ai.ParseNarrative("{broken"); err == nil {
		t.Fatalf("expected error for broken json")
	}
	n, err := ai.ParseNarrative(`prefix {"scopeOfWorks":"s","comments":"c"} suffix`)
	if err != nil || n.ScopeOfWorks != "s" || n.Comments != "c" {
		t.Fatalf("unexpected parse: %#v %v", n, err)
	}
}

func TestFillKeepsUserText(t *testing.T) {
	j := models.NewJobRecord()
	j.Comments = "typed by hand"
	if !ai.Fill(j, &ai.Narrative{ScopeOfWorks: "generated", Comments: "generated"}) {
		t.Fatalf("expected a change")
	}
	if j.ScopeOfWorks != "generated" || j.Comments != "typed by hand" {
		t.Fatalf("unexpected fill: %#v", j)
	}
	if ai.Fill(j, &ai.Narrative{ScopeOfWorks: "again"}) {
		t.Fatalf("nothing left to fill")
	}
}

type fakeNarrator struct {
	n   *ai.Narrative
	err error
}

func (f *fakeNarrator) GenerateNarrative(ctx context.Context, job *models.JobRecord) (*ai.Narrative, error) {
	return f.n, f.err
}

func TestNarrativeHandler(t *testing.T) {
	ctx := context.Background()
	store := projects.NewStore(mock.NewProjects(), nil)
	id, err := store.Save(ctx, highPHJob(), nil, "")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	payload, _ := json.Marshal(ai.NarrativePayload{ProjectID: id})

	h := ai.NarrativeHandler(&fakeNarrator{n: &ai.Narrative{ScopeOfWorks: "Scope", Comments: "Notes"}}, store)
	if err := h(ctx, &jobs.Job{ID: 1, Payload: payload}); err != nil {
		t.Fatalf("handler: %v", err)
	}
	job, _, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if job.ScopeOfWorks != "Scope" || job.Comments != "Notes" {
		t.Fatalf("narrative not stored: %#v", job)
	}

	failing := ai.NarrativeHandler(&fakeNarrator{err: errors.New("down")}, store)
	if err := failing(ctx, &jobs.Job{Payload: payload}); err == nil {
		t.Fatalf("collaborator failure should be retried")
	}

	gone, _ := json.Marshal(ai.NarrativePayload{ProjectID: "deleted"})
	if err := h(ctx, &jobs.Job{Payload: gone}); err != nil {
		t.Fatalf("missing project should be skipped, got %v", err)
	}
	if err := h(ctx, &jobs.Job{Payload: []byte(`{}`)}); err == nil {
		t.Fatalf("expected error for empty project id")
	}
}
