// Package projectfile reads and writes the portable project file used for
// explicit export and import.
package projectfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/garnizeh/dosecert/internal/codec"
	"github.com/garnizeh/dosecert/internal/projects"
	"github.com/garnizeh/dosecert/internal/schemas"
	"github.com/garnizeh/dosecert/pkg/models"
)

// Version is written into every exported file.
const Version = "1.0"

var ErrInvalidFile = errors.New("invalid or corrupted project file")

type File struct {
	Version   string                  `json:"version"`
	Timestamp string                  `json:"timestamp"`
	Data      models.JobRecord        `json:"data"`
	Images    models.SerializedImages `json:"images"`
}

// Validator checks a document against a named JSON schema.
type Validator interface {
	Validate(ctx context.Context, version string, doc []byte) error
}

// Export renders job and set as an indented project file.
func Export(job *models.JobRecord, set *models.AttachmentSet, now time.Time) ([]byte, error) {
	if job == nil {
		return nil, errors.New("export: job is nil")
	}
	f := File{
		Version:   Version,
		Timestamp: now.UTC().Format(time.RFC3339),
		Data:      *job.Clone(),
		Images:    codec.EncodeSet(set),
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return b, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._]+`)

// FileName suggests a download name such as "Acme-Depot-2024-03-01.json".
func FileName(job *models.JobRecord, now time.Time) string {
	base := strings.Trim(unsafeName.ReplaceAllString(job.ProjectName(), "-"), "-")
	if base == "" {
		base = "project"
	}
	return base + "-" + now.UTC().Format("2006-01-02") + ".json"
}

type Importer struct {
	validator Validator
}

// NewImporter returns an Importer. A nil validator skips schema checks.
func NewImporter(v Validator) *Importer {
	return &Importer{validator: v}
}

// Import parses a project file. Either both the job and its attachments are
// returned or an error wrapping ErrInvalidFile.
func (i *Importer) Import(ctx context.Context, b []byte) (*models.JobRecord, *models.AttachmentSet, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	for _, key := range []string{"data", "images"} {
		raw, ok := top[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, nil, fmt.Errorf("%w: missing %q", ErrInvalidFile, key)
		}
	}

	if i.validator != nil {
		if err := i.validator.Validate(ctx, schemas.ProjectFileV1, b); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	job, set, err := projects.Unpack(f.Data, f.Images)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if job.JobType == "" {
		job.JobType = models.JobTypePipework
	}
	return job, set, nil
}
