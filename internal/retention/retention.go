// Package retention periodically prunes old objects from the local media store.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes objects older than cutoff.
type Pruner interface {
	Prune(ctx context.Context, bucket string, cutoff time.Time) (int, error)
}

// Job runs a Pruner on a cron schedule.
type Job struct {
	cron      *cron.Cron
	pruner    Pruner
	bucket    string
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// New schedules pruning of bucket. schedule uses the standard five-field
// cron syntax or descriptors such as "@daily".
func New(log *slog.Logger, pruner Pruner, bucket string, retention time.Duration, schedule string) (*Job, error) {
	if log == nil {
		log = slog.Default()
	}
	if pruner == nil {
		return nil, errors.New("pruner is required")
	}
	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	j := &Job{
		cron:      cron.New(),
		pruner:    pruner,
		bucket:    bucket,
		retention: retention,
		now:       time.Now,
		logger:    log.With(slog.String("service", "retention")),
	}
	if _, err := j.cron.AddFunc(strings.TrimSpace(schedule), j.run); err != nil {
		return nil, fmt.Errorf("parse prune schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins the schedule in the background.
func (j *Job) Start() {
	j.cron.Start()
}

// Stop stops the schedule and waits for a running prune until ctx is done.
func (j *Job) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce prunes immediately.
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.retention)
	removed, err := j.pruner.Prune(ctx, j.bucket, cutoff)
	if err != nil {
		return removed, fmt.Errorf("prune %s: %w", j.bucket, err)
	}
	return removed, nil
}

func (j *Job) run() {
	removed, err := j.RunOnce(context.Background())
	if err != nil {
		j.logger.Warn("media prune failed", slog.Int("removed", removed), slog.Any("error", err))
		return
	}
	j.logger.Info("media pruned", slog.String("bucket", j.bucket), slog.Int("removed", removed))
}
