package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/garnizeh/dosecert/internal/projects"
	"github.com/garnizeh/dosecert/internal/share"
	"github.com/garnizeh/dosecert/pkg/models"
)

type ShareHandler struct {
	codec   *share.Codec
	session *projects.Session
}

func NewShareHandler(c *share.Codec, s *projects.Session) *ShareHandler {
	return &ShareHandler{codec: c, session: s}
}

type shareRequest struct {
	PageURL string            `json:"pageUrl"`
	Data    *models.JobRecord `json:"data"`
}

type shareResponse struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// Encode builds a share link for the given job, or for the working copy when
// no job is sent.
func (h *ShareHandler) Encode(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, err)
		return
	}
	if req.PageURL == "" {
		writeError(w, r, errBadRequest("pageUrl is required"))
		return
	}
	job := req.Data
	if job == nil {
		job, _ = h.session.Snapshot()
	}
	token, err := h.codec.Encode(job)
	if err != nil {
		writeError(w, r, err)
		return
	}
	link, err := h.codec.Link(req.PageURL, job)
	if err != nil {
		writeError(w, r, errBadRequest("invalid pageUrl: %v", err))
		return
	}
	writeJSON(w, shareResponse{URL: link, Token: token}, http.StatusOK)
}

type decodeRequest struct {
	URL string `json:"url"`
}

type decodeResponse struct {
	Data *models.JobRecord `json:"data"`
	// URL is the page address with the share parameter removed.
	URL string `json:"url"`
}

// Decode opens a share link: the decoded job becomes the working copy as a
// new, unsaved project. A link that does not decode leaves the working copy
// alone.
func (h *ShareHandler) Decode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errBadRequest("request body required")
		}
		writeError(w, r, err)
		return
	}
	job := h.codec.Decode(req.URL)
	if job == nil {
		writeError(w, r, share.ErrInvalidToken)
		return
	}
	h.session.Replace(r.Context(), job, nil)
	writeJSON(w, decodeResponse{Data: job, URL: share.StripShareParam(req.URL)}, http.StatusOK)
}
