package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/finbook/finbook/internal/jobs"
	"github.com/finbook/finbook/internal/platform/cache"
	"github.com/finbook/finbook/internal/recon"
	"github.com/finbook/finbook/internal/shared"
)

// reconLockTTL bounds how long a crashed run can hold an owner lock.
const reconLockTTL = 5 * time.Minute

// ReconRunJob executes a matching run for a single owner. Runs against the
// same owner are serialised through a Redis lock; a held lock requeues the
// task instead of running concurrently.
type ReconRunJob struct {
	Matcher *recon.Matcher
	Redis   *redis.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReconRunJob initialises the matching run handler.
func NewReconRunJob(matcher *recon.Matcher, redisClient *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconRunJob {
	return &ReconRunJob{Matcher: matcher, Redis: redisClient, Logger: logger, Metrics: metrics}
}

// Handle executes the matching run.
func (j *ReconRunJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Matcher == nil {
		return errors.New("recon run: handler not configured")
	}
	var payload ReconRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OwnerID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReconRun)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	// Every log line of one execution shares the run id, so retries and
	// overlapping owners stay distinguishable.
	logger := j.Logger.With(
		slog.String("run_id", uuid.NewString()),
		slog.Int64("owner_id", payload.OwnerID))

	lockKey := shared.OwnerLockKey(payload.OwnerID)
	if j.Redis != nil {
		ok, err := cache.AcquireLock(ctx, j.Redis, lockKey, reconLockTTL)
		if err != nil {
			resultErr = err
			return resultErr
		}
		if !ok {
			resultErr = fmt.Errorf("recon run: owner %d locked, retrying", payload.OwnerID)
			return resultErr
		}
		defer func() {
			if err := cache.ReleaseLock(ctx, j.Redis, lockKey); err != nil {
				logger.Warn("release owner lock", slog.Any("error", err))
			}
		}()
	}

	matches, err := j.Matcher.ExecuteMatching(ctx, payload.OwnerID, payload.StatementID)
	if err != nil {
		logger.Error("matching run failed", slog.Any("error", err))
		resultErr = err
		return resultErr
	}
	logger.Info("matching run finished", slog.Int("matches", len(matches)))
	return nil
}

func (j *ReconRunJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return nil
}
