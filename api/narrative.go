package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/dosecert/internal/ai"
	"github.com/garnizeh/dosecert/internal/jobs"
	"github.com/garnizeh/dosecert/internal/projects"
	"github.com/garnizeh/dosecert/pkg/models"
)

// JobStore reads background job state.
type JobStore interface {
	Get(ctx context.Context, id int64) (*jobs.Job, error)
	DeadLetters(ctx context.Context) ([]jobs.DeadLetter, error)
}

type NarrativeHandler struct {
	narrator ai.Narrator
	session  *projects.Session
	jobs     JobStore
}

func NewNarrativeHandler(n ai.Narrator, s *projects.Session, js JobStore) *NarrativeHandler {
	return &NarrativeHandler{narrator: n, session: s, jobs: js}
}

type narrativeRequest struct {
	Data *models.JobRecord `json:"data"`
	// Apply fills the working copy's empty narrative fields.
	Apply bool `json:"apply"`
}

type narrativeResponse struct {
	ai.Narrative
	Error string `json:"error,omitempty"`
}

// Generate drafts a narrative synchronously. When the model is unavailable
// it answers 503 with empty fields so clients can carry on without it.
func (h *NarrativeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req narrativeRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, err)
		return
	}
	job := req.Data
	if job == nil {
		job, _ = h.session.Snapshot()
	}
	if h.narrator == nil {
		writeJSON(w, narrativeResponse{Error: "narrative generation is not configured"}, http.StatusServiceUnavailable)
		return
	}

	n, err := h.narrator.GenerateNarrative(r.Context(), job)
	if err != nil {
		logger.Warn("narrative unavailable", slog.Any("err", err))
		writeJSON(w, narrativeResponse{Error: "narrative generation unavailable"}, http.StatusServiceUnavailable)
		return
	}
	if req.Apply {
		h.session.Update(func(cur *models.JobRecord, _ *models.AttachmentSet) {
			ai.Fill(cur, n)
		})
	}
	writeJSON(w, narrativeResponse{Narrative: *n}, http.StatusOK)
}

func (h *NarrativeHandler) Job(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, r, errBadRequest("invalid job id"))
		return
	}
	j, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if j == nil {
		// finished jobs that failed are moved out of the queue
		writeJSON(w, errorBody{Error: fmt.Sprintf("job %d not found", id)}, http.StatusNotFound)
		return
	}
	writeJSON(w, j, http.StatusOK)
}

func (h *NarrativeHandler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	rows, err := h.jobs.DeadLetters(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []jobs.DeadLetter{}
	}
	writeJSON(w, rows, http.StatusOK)
}
