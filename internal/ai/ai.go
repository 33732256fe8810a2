// Package ai drafts the narrative sections of a certificate with a local
// language model. Everything else in the report is deterministic; callers
// must keep working when this package fails.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/dosecert/internal/config"
	"github.com/garnizeh/dosecert/internal/dosing"
	"github.com/garnizeh/dosecert/pkg/models"
	"github.com/garnizeh/dosecert/pkg/ollama"
	"github.com/garnizeh/dosecert/pkg/repository"
)

// TemplateName is the prompt template used for narratives.
const TemplateName = "narrative"

var logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// SetLogger sets the logger used by internal/ai. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Narrative is the generated free text for a job.
type Narrative struct {
	ScopeOfWorks string `json:"scopeOfWorks"`
	Comments     string `json:"comments"`
}

// Generator is the subset of the Ollama client the engine needs.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, jsonFormat bool) (ollama.GenerateResult, error)
}

// Validator checks a document against a named JSON schema.
type Validator interface {
	Validate(ctx context.Context, version string, doc []byte) error
}

type Engine struct {
	gen       Generator
	validator Validator
	cfg       config.EngineConfig
	schema    string
}

// NewEngine resolves the prompt template. An inline template in cfg wins;
// otherwise it is loaded from tr by name and cfg.Template.Version.
func NewEngine(ctx context.Context, gen Generator, cfg config.EngineConfig, tr repository.TemplateRepo, v Validator) (*Engine, error) {
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.Template.Version == "" {
		cfg.Template.Version = "v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	schema := ""
	if cfg.Template.SchemaVersion != nil {
		schema = *cfg.Template.SchemaVersion
	}

	if cfg.Template.Template == "" {
		if tr == nil {
			return nil, errors.New("template repo is required")
		}
		tpl, err := tr.GetTemplate(ctx, TemplateName, cfg.Template.Version)
		if err != nil {
			return nil, fmt.Errorf("load template: %w", err)
		}
		if tpl == nil || tpl.Text == "" {
			return nil, fmt.Errorf("template %s:%s not found", TemplateName, cfg.Template.Version)
		}
		cfg.Template.Template = tpl.Text
		if schema == "" {
			schema = tpl.SchemaVersion
		}
	}

	return &Engine{gen: gen, validator: v, cfg: cfg, schema: schema}, nil
}

// GenerateNarrative asks the model for a scope of works and comments for job.
func (e *Engine) GenerateNarrative(ctx context.Context, job *models.JobRecord) (*Narrative, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	data := map[string]any{
		"Job":    job,
		"Advice": dosing.Advise(job.Disinfectant, job.IncomingMainsPh),
	}
	prompt, err := ollama.RenderTemplate(e.cfg.Template.Template, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	ctxReq, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out, err := e.gen.Generate(ctxReq, e.cfg.Model, prompt, true)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	j := extractJSON(out.Text)
	if j == "" {
		logger.Warn("narrative without json", "raw", out.Text)
		return nil, errors.New("no JSON object found in response")
	}
	if e.validator != nil && e.schema != "" {
		if err := e.validator.Validate(ctxReq, e.schema, []byte(j)); err != nil {
			logger.Warn("narrative failed validation", "schema", e.schema, "err", err)
			return nil, fmt.Errorf("response does not match schema: %w", err)
		}
	}

	n, err := ParseNarrative(j)
	if err != nil {
		return nil, err
	}
	logger.Info("narrative generated", "model", out.Model, "latency_ms", out.Latency.Milliseconds())
	return n, nil
}

// ParseNarrative extracts and decodes a narrative from arbitrary model output.
func ParseNarrative(s string) (*Narrative, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("empty response")
	}
	j := extractJSON(s)
	if j == "" {
		return nil, errors.New("no JSON object found in response")
	}
	var n Narrative
	if err := json.Unmarshal([]byte(j), &n); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	n.ScopeOfWorks = strings.TrimSpace(n.ScopeOfWorks)
	n.Comments = strings.TrimSpace(n.Comments)
	return &n, nil
}

// extractJSON returns the substring from the first '{' to the last '}' in the
// input, which copes with models wrapping their answer in prose or fences.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}
