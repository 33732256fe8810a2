package drafts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/dosecert/pkg/models"
)

// DefaultInterval is the autosave period used when none is configured.
const DefaultInterval = 30 * time.Second

// Source yields a copy of the current working state.
type Source interface {
	Snapshot() (*models.JobRecord, *models.AttachmentSet)
}

// Autosaver periodically writes a Source into the draft slot. Jobs without a
// client or site name are skipped.
type Autosaver struct {
	drafts   *Drafts
	source   Source
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

func NewAutosaver(d *Drafts, src Source, interval time.Duration, logger *slog.Logger) *Autosaver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Autosaver{drafts: d, source: src, interval: interval, logger: logger, stop: make(chan struct{})}
}

// Start launches the ticker goroutine.
func (a *Autosaver) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.run(ctx)
}

// Stop signals the ticker to stop and waits for it. Safe to call twice.
func (a *Autosaver) Stop() {
	a.once.Do(func() { close(a.stop) })
	a.wg.Wait()
}

func (a *Autosaver) run(ctx context.Context) {
	defer a.wg.Done()
	t := time.NewTicker(a.interval)
	defer t.Stop()
	for {
		select {
		case <-a.stop:
			a.logger.Info("autosave stopping")
			return
		case <-ctx.Done():
			a.logger.Info("context canceled, autosave exiting")
			return
		case <-t.C:
			a.Tick(ctx)
		}
	}
}

// Tick performs one autosave pass. It reports whether a draft was written.
func (a *Autosaver) Tick(ctx context.Context) bool {
	job, set := a.source.Snapshot()
	if !job.HasIdentity() {
		return false
	}
	a.drafts.SaveDraft(ctx, job, set)
	return true
}
