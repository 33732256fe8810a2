package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garnizeh/dosecert/internal/jobs"
	"github.com/garnizeh/dosecert/internal/projects"
	"github.com/garnizeh/dosecert/pkg/models"
	"github.com/garnizeh/dosecert/pkg/repository"
)

// JobTypeNarrative is the background job that fills a stored project's
// narrative.
const JobTypeNarrative = "narrative.generate"

// NarrativePayload is the job payload for JobTypeNarrative.
type NarrativePayload struct {
	ProjectID string `json:"project_id"`
}

// Narrator produces a narrative for a job.
type Narrator interface {
	GenerateNarrative(ctx context.Context, job *models.JobRecord) (*Narrative, error)
}

// Fill copies n into the empty narrative fields of job and reports whether
// anything changed. Text the user already wrote is never replaced.
func Fill(job *models.JobRecord, n *Narrative) bool {
	changed := false
	if job.ScopeOfWorks == "" && n.ScopeOfWorks != "" {
		job.ScopeOfWorks = n.ScopeOfWorks
		changed = true
	}
	if job.Comments == "" && n.Comments != "" {
		job.Comments = n.Comments
		changed = true
	}
	return changed
}

// NarrativeHandler returns the job handler for JobTypeNarrative. A project
// deleted before the job runs is skipped.
func NarrativeHandler(n Narrator, store *projects.Store) jobs.Handler {
	return func(ctx context.Context, j *jobs.Job) error {
		var pl NarrativePayload
		if err := json.Unmarshal(j.Payload, &pl); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if pl.ProjectID == "" {
			return errors.New("payload has no project id")
		}

		job, set, err := store.Load(ctx, pl.ProjectID)
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info("narrative skipped, project gone", "project_id", pl.ProjectID)
			return nil
		}
		if err != nil {
			return err
		}

		narrative, err := n.GenerateNarrative(ctx, job)
		if err != nil {
			return err
		}
		if !Fill(job, narrative) {
			logger.Info("narrative already present", "project_id", pl.ProjectID)
			return nil
		}
		if _, err := store.Save(ctx, job, set, pl.ProjectID); err != nil {
			return fmt.Errorf("save narrative: %w", err)
		}
		logger.Info("narrative stored", "project_id", pl.ProjectID, "job_id", j.ID)
		return nil
	}
}
