package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/finbook/finbook/internal/jobs"
	"github.com/finbook/finbook/internal/statements"
)

// StaleStatementsJob sweeps statements stuck in PARSING longer than the
// configured cutoff and fails them so the upload can be retried.
type StaleStatementsJob struct {
	Service *statements.Service
	After   time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStaleStatementsJob initialises the stale statement supervisor.
func NewStaleStatementsJob(service *statements.Service, after time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *StaleStatementsJob {
	return &StaleStatementsJob{Service: service, After: after, Logger: logger, Metrics: metrics}
}

// Handle executes the sweep.
func (j *StaleStatementsJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("stale statements: handler not configured")
	}

	tracker := j.metrics().Track(TaskStatementsStale)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	stuck, err := j.Service.ListStuckParsing(ctx, j.After)
	if err != nil {
		resultErr = err
		return resultErr
	}
	failed := 0
	for _, stmt := range stuck {
		if err := j.Service.MarkFailed(ctx, stmt.ID, "parsing timed out"); err != nil {
			j.Logger.Warn("fail stale statement",
				slog.Int64("statement_id", stmt.ID),
				slog.Any("error", err))
			continue
		}
		failed++
	}
	if failed > 0 {
		j.Logger.Info("stale statements swept", slog.Int("failed", failed))
	}
	return nil
}

func (j *StaleStatementsJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return nil
}
