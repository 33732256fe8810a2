package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/garnizeh/dosecert/internal/codec"
	"github.com/garnizeh/dosecert/internal/projectfile"
	"github.com/garnizeh/dosecert/internal/projects"
	"github.com/garnizeh/dosecert/internal/schemas"
	"github.com/garnizeh/dosecert/internal/share"
	"github.com/garnizeh/dosecert/pkg/repository"
)

// maxBody caps request bodies. Project files carry every attachment inline,
// so this is generous.
const maxBody = 64 << 20

// badRequest marks client input errors.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func errBadRequest(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var br *badRequest
	var ve *schemas.ValidationError
	switch {
	// checked first: an invalid file may also carry a schema ValidationError
	case errors.Is(err, projectfile.ErrInvalidFile), errors.Is(err, codec.ErrMalformed), errors.Is(err, share.ErrInvalidToken):
		return http.StatusUnprocessableEntity
	case errors.As(err, &br), errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, projects.ErrNoDraft):
		return http.StatusNotFound
	case errors.Is(err, projects.ErrSaveInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
		msg = "internal error"
	}
	writeJSON(w, errorBody{Error: msg}, status)
}

// decodeJSON reads a JSON body into v. An empty body is reported as io.EOF
// so callers can treat it as optional.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return errBadRequest("invalid json: %v", err)
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		return nil, errBadRequest("read body: %v", err)
	}
	return b, nil
}
