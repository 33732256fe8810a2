package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/garnizeh/dosecert/internal/codec"
	"github.com/garnizeh/dosecert/internal/dosing"
	"github.com/garnizeh/dosecert/internal/drafts"
	"github.com/garnizeh/dosecert/internal/projects"
	"github.com/garnizeh/dosecert/pkg/models"
)

// SessionHandler exposes the single working copy and its draft slot.
type SessionHandler struct {
	session *projects.Session
	drafts  *drafts.Drafts
}

func NewSessionHandler(s *projects.Session, d *drafts.Drafts) *SessionHandler {
	return &SessionHandler{session: s, drafts: d}
}

type sessionView struct {
	ProjectID string                  `json:"projectId"`
	Data      *models.JobRecord       `json:"data"`
	Images    models.SerializedImages `json:"images"`
	Advice    dosing.Advice           `json:"advice"`
}

func viewOf(s *projects.Session) sessionView {
	job, set := s.Snapshot()
	return sessionView{
		ProjectID: s.ProjectID(),
		Data:      job,
		Images:    codec.EncodeSet(set),
		Advice:    dosing.Advise(job.Disinfectant, job.IncomingMainsPh),
	}
}

type updateRequest struct {
	Data   *models.JobRecord        `json:"data"`
	Images *models.SerializedImages `json:"images"`
	// ApplyAdvice replaces the contact time with the pH recommendation.
	ApplyAdvice bool `json:"applyAdvice"`
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, viewOf(h.session), http.StatusOK)
}

// Update replaces the working job and, when given, its attachments. The
// dosage amount and tank photo slots are recomputed.
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errBadRequest("request body required")
		}
		writeError(w, r, err)
		return
	}

	var (
		job *models.JobRecord
		set *models.AttachmentSet
	)
	if req.Data != nil {
		job = req.Data.Clone()
	}
	if req.Images != nil {
		var err error
		if set, err = codec.DecodeSet(*req.Images); err != nil {
			writeError(w, r, err)
			return
		}
	}

	h.session.Update(func(cur *models.JobRecord, curSet *models.AttachmentSet) {
		if job != nil {
			*cur = *job
		}
		if set != nil {
			*curSet = *set
		}
		if req.ApplyAdvice {
			dosing.ApplyAdvice(cur)
		}
	})
	writeJSON(w, viewOf(h.session), http.StatusOK)
}

func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	id, err := h.session.Save(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, idResponse{ID: id}, http.StatusOK)
}

func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.session.Reset(r.Context())
	writeJSON(w, viewOf(h.session), http.StatusOK)
}

func (h *SessionHandler) Recover(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Recover(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, viewOf(h.session), http.StatusOK)
}

func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Open(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, viewOf(h.session), http.StatusOK)
}

type draftStatus struct {
	Exists    bool       `json:"exists"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// DraftStatus reports whether a recoverable draft exists without loading it.
func (h *SessionHandler) DraftStatus(w http.ResponseWriter, r *http.Request) {
	ts := h.drafts.DraftTimestamp(r.Context())
	writeJSON(w, draftStatus{Exists: ts != nil, Timestamp: ts}, http.StatusOK)
}

func (h *SessionHandler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	h.drafts.ClearDraft(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
