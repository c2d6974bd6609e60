package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/finbook/finbook/internal/checks"
	jobmetrics "github.com/finbook/finbook/internal/jobs"
)

// scanParallelism caps how many owners are scanned at once.
const scanParallelism = 4

// ChecksScanJob runs the duplicate, transfer and anomaly detectors for a
// set of owners. Owners are independent, so they are scanned concurrently.
type ChecksScanJob struct {
	Pool    *pgxpool.Pool
	Service *checks.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewChecksScanJob initialises the detector sweep handler.
func NewChecksScanJob(pool *pgxpool.Pool, service *checks.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ChecksScanJob {
	return &ChecksScanJob{Pool: pool, Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the detector sweep.
func (j *ChecksScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("checks scan: handler not configured")
	}
	var payload ChecksScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskChecksScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	owners := payload.OwnerIDs
	if len(owners) == 0 {
		var err error
		owners, err = j.listOwners(ctx)
		if err != nil {
			resultErr = err
			return resultErr
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(scanParallelism)
	for _, ownerID := range owners {
		ownerID := ownerID
		group.Go(func() error {
			return j.scanOwner(gctx, ownerID, payload.StatementID)
		})
	}
	resultErr = group.Wait()
	return resultErr
}

func (j *ChecksScanJob) scanOwner(ctx context.Context, ownerID int64, statementID *int64) error {
	type scan struct {
		checkType checks.CheckType
		run       func(context.Context, int64, *int64) (checks.ScanResult, error)
	}
	scans := []scan{
		{checks.CheckTypeDuplicate, j.Service.RunDuplicateScan},
		{checks.CheckTypeTransferPair, j.Service.RunTransferScan},
		{checks.CheckTypeAnomaly, j.Service.RunAnomalyScan},
	}
	for _, s := range scans {
		result, err := s.run(ctx, ownerID, statementID)
		if err != nil {
			return err
		}
		j.metrics().AddFindings(string(s.checkType), ownerID, result.Created)
	}
	j.Logger.Info("owner scanned", slog.Int64("owner_id", ownerID))
	return nil
}

func (j *ChecksScanJob) listOwners(ctx context.Context) ([]int64, error) {
	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT owner_id FROM bank_statement_transactions ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

func (j *ChecksScanJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return nil
}
