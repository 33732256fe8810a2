// Package schemas compiles the stored JSON schemas and validates documents
// against them.
package schemas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/dosecert/pkg/repository"
)

// Versions seeded by the migrations.
const (
	ProjectFileV1 = "project-file/v1"
	NarrativeV1   = "narrative/v1"
)

var ErrUnknownSchema = errors.New("unknown schema version")

// ValidationError lists every schema violation found in a document.
type ValidationError struct {
	Version  string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("document does not match %s: %s", e.Version, strings.Join(e.Problems, "; "))
}

// Loader loads and caches compiled JSON schemas from the repository.
type Loader struct {
	repo  repository.SchemaRepo
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

func NewLoader(ctx context.Context, r repository.SchemaRepo) (*Loader, error) {
	l := &Loader{
		repo:  r,
		cache: make(map[string]*jsonschema.Schema),
	}
	if err := l.Reload(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Get returns the compiled schema for version.
func (l *Loader) Get(version string) (*jsonschema.Schema, bool) {
	l.mu.RLock()
	s, ok := l.cache[version]
	l.mu.RUnlock()
	return s, ok
}

// Reload replaces the cache with every schema in the repository. The old
// cache is kept if any schema fails to compile.
func (l *Loader) Reload(ctx context.Context) error {
	rows, err := l.repo.ListSchemas(ctx)
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	next := make(map[string]*jsonschema.Schema, len(rows))
	for _, r := range rows {
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal([]byte(r.Document), rs); err != nil {
			return fmt.Errorf("compile schema %s: %w", r.Version, err)
		}
		next[r.Version] = rs
	}

	l.mu.Lock()
	l.cache = next
	l.mu.Unlock()
	return nil
}

// Validate checks doc against the schema stored under version. Violations
// are reported as *ValidationError.
func (l *Loader) Validate(ctx context.Context, version string, doc []byte) error {
	s, ok := l.Get(version)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, version)
	}
	keyErrs, err := s.ValidateBytes(ctx, doc)
	if err != nil {
		return fmt.Errorf("validate against %s: %w", version, err)
	}
	if len(keyErrs) == 0 {
		return nil
	}
	ve := &ValidationError{Version: version}
	for _, ke := range keyErrs {
		if ke.PropertyPath != "" {
			ve.Problems = append(ve.Problems, ke.PropertyPath+": "+ke.Message)
			continue
		}
		ve.Problems = append(ve.Problems, ke.Message)
	}
	return ve
}
