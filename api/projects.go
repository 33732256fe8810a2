package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/garnizeh/dosecert/internal/ai"
	"github.com/garnizeh/dosecert/internal/drafts"
	"github.com/garnizeh/dosecert/internal/projectfile"
	"github.com/garnizeh/dosecert/internal/projects"
	"github.com/garnizeh/dosecert/internal/report"
	"github.com/garnizeh/dosecert/pkg/models"
	"github.com/garnizeh/dosecert/pkg/repository"
)

// JobQueue enqueues background work.
type JobQueue interface {
	Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error)
}

// Narrative jobs run ahead of default-priority work and give up after a few
// tries; the narrative is optional.
const (
	narrativePriority    = 50
	narrativeMaxAttempts = 3
)

type ProjectsHandler struct {
	store    *projects.Store
	session  *projects.Session
	drafts   *drafts.Drafts
	importer *projectfile.Importer
	queue    JobQueue
	now      func() time.Time
}

func NewProjectsHandler(store *projects.Store, session *projects.Session, d *drafts.Drafts, importer *projectfile.Importer, queue JobQueue) *ProjectsHandler {
	return &ProjectsHandler{store: store, session: session, drafts: d, importer: importer, queue: queue, now: time.Now}
}

type saveProjectRequest struct {
	ID     string                   `json:"id"`
	Data   *models.JobRecord        `json:"data"`
	Images *models.SerializedImages `json:"images"`
}

type idResponse struct {
	ID string `json:"id"`
}

func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListSummaries(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, rows, http.StatusOK)
}

// Save upserts a project from a client-held job and clears the draft. An
// unknown id creates a new project.
func (h *ProjectsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errBadRequest("request body required")
		}
		writeError(w, r, err)
		return
	}
	if req.Data == nil {
		writeError(w, r, errBadRequest("data is required"))
		return
	}
	var images models.SerializedImages
	if req.Images != nil {
		images = *req.Images
	}
	job, set, err := projects.Unpack(*req.Data, images)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.store.Save(r.Context(), job, set, req.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.drafts.ClearDraft(r.Context())
	status := http.StatusCreated
	if id == req.ID {
		status = http.StatusOK
	}
	writeJSON(w, idResponse{ID: id}, status)
}

func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, r, fmt.Errorf("project %s: %w", id, repository.ErrNotFound))
		return
	}
	writeJSON(w, p, http.StatusOK)
}

func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// File downloads a stored project as a portable project file.
func (h *ProjectsHandler) File(w http.ResponseWriter, r *http.Request) {
	job, set, err := h.store.Load(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := h.now()
	b, err := projectfile.Export(job, set, now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", projectfile.FileName(job, now)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// Import loads a project file into the working copy as a new, unsaved
// project. The draft is cleared.
func (h *ProjectsHandler) Import(w http.ResponseWriter, r *http.Request) {
	b, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	job, set, err := h.importer.Import(r.Context(), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.session.Replace(r.Context(), job, set)
	writeJSON(w, viewOf(h.session), http.StatusOK)
}

// Workbook renders a stored project as an xlsx download.
func (h *ProjectsHandler) Workbook(w http.ResponseWriter, r *http.Request) {
	job, set, err := h.store.Load(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := report.Workbook(job, set)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := strings.TrimSuffix(projectfile.FileName(job, h.now()), ".json") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

type jobAccepted struct {
	JobID int64 `json:"jobId"`
}

// Narrative queues background narrative generation for a stored project.
func (h *ProjectsHandler) Narrative(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeJSON(w, errorBody{Error: "narrative generation is not configured"}, http.StatusServiceUnavailable)
		return
	}
	id := mux.Vars(r)["id"]
	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, r, fmt.Errorf("project %s: %w", id, repository.ErrNotFound))
		return
	}
	jobID, err := h.queue.Enqueue(r.Context(), ai.JobTypeNarrative, ai.NarrativePayload{ProjectID: id}, narrativePriority, narrativeMaxAttempts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, jobAccepted{JobID: jobID}, http.StatusAccepted)
}
