package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/dosecert/internal/models"
	"github.com/garnizeh/dosecert/pkg/repository"
)

// SchemaReloader refreshes compiled schemas after a change.
type SchemaReloader interface {
	Reload(ctx context.Context) error
}

// AdminHandler manages the JSON schemas and prompt templates stored in the
// database.
type AdminHandler struct {
	schemaRepo   repository.SchemaRepo
	templateRepo repository.TemplateRepo
	loader       SchemaReloader
}

func NewAdminHandler(sr repository.SchemaRepo, tr repository.TemplateRepo, l SchemaReloader) *AdminHandler {
	return &AdminHandler{schemaRepo: sr, templateRepo: tr, loader: l}
}

func (h *AdminHandler) ReloadSchemas(w http.ResponseWriter, r *http.Request) {
	if err := h.loader.Reload(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	rows, err := h.schemaRepo.ListSchemas(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, rows, http.StatusOK)
}

type schemaPayload struct {
	Description string          `json:"description,omitempty"`
	SchemaJSON  json.RawMessage `json:"schema_json"`
}

// PutSchema stores the schema under the version in the path after checking
// that it compiles, then reloads the cache.
func (h *AdminHandler) PutSchema(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]
	var p schemaPayload
	if err := decodeJSON(w, r, &p); err != nil {
		if errors.Is(err, io.EOF) {
			err = errBadRequest("request body required")
		}
		writeError(w, r, err)
		return
	}
	if len(p.SchemaJSON) == 0 {
		writeError(w, r, errBadRequest("schema_json required"))
		return
	}
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(p.SchemaJSON, rs); err != nil {
		writeError(w, r, errBadRequest("invalid schema json: %v", err))
		return
	}

	if err := h.schemaRepo.UpsertSchema(r.Context(), version, p.Description, string(p.SchemaJSON)); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.loader.Reload(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	rows, err := h.templateRepo.ListTemplates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, rows, http.StatusOK)
}

type templatePayload struct {
	Text          string `json:"template_text"`
	SchemaVersion string `json:"schema_version,omitempty"`
	Metadata      string `json:"metadata,omitempty"`
}

// PutTemplate stores a prompt template, enforcing a size limit. Engines pick
// up changes on restart.
func (h *AdminHandler) PutTemplate(w http.ResponseWriter, r *http.Request) {
	const maxSize = 64 * 1024
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSize+1))
	if err != nil {
		writeError(w, r, errBadRequest("read body failed"))
		return
	}
	if len(body) > maxSize {
		writeError(w, r, errBadRequest("template too large"))
		return
	}

	var p templatePayload
	if err := json.Unmarshal(body, &p); err != nil {
		writeError(w, r, errBadRequest("invalid json"))
		return
	}
	if p.Text == "" {
		writeError(w, r, errBadRequest("template_text required"))
		return
	}

	vars := mux.Vars(r)
	t := models.Template{Name: vars["name"], Version: vars["version"], Text: p.Text, SchemaVersion: p.SchemaVersion, Metadata: p.Metadata}
	if err := h.templateRepo.UpsertTemplate(r.Context(), t); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
