package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/fleetpay/fleetpay/internal/jobs"
	"github.com/fleetpay/fleetpay/internal/payroll"
)

// IntegrityVerifier re-checks persisted calculations.
type IntegrityVerifier interface {
	VerifyIntegrity(ctx context.Context, since time.Time) ([]payroll.IntegrityIssue, error)
}

// PayrollIntegrityJob scans recent calculations and reports inconsistencies.
type PayrollIntegrityJob struct {
	Verifier IntegrityVerifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewPayrollIntegrityJob initialises the integrity scan handler.
func NewPayrollIntegrityJob(verifier IntegrityVerifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *PayrollIntegrityJob {
	return &PayrollIntegrityJob{
		Verifier: verifier,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity scan. Issues are reported, not returned as
// errors, so the task is not retried for data findings.
func (j *PayrollIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Verifier == nil {
		return errors.New("payroll integrity: handler not configured")
	}
	var payload PayrollIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Lookback <= 0 {
		payload.Lookback = DefaultIntegrityLookback
	}

	start := j.now()
	tracker := j.Metrics.Track(TaskPayrollIntegrityScan)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.Duration("lookback", payload.Lookback))
	logger.Info("starting payroll integrity scan")

	issues, err := j.Verifier.VerifyIntegrity(ctx, start.Add(-payload.Lookback))
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	counts := make(map[string]int)
	for _, issue := range issues {
		logger.Warn("payroll integrity issue",
			slog.String("kind", issue.Kind),
			slog.String("calculation_id", issue.CalculationID.String()),
			slog.String("trip_id", issue.TripID.String()),
			slog.String("sailor_id", issue.SailorID.String()),
			slog.String("detail", issue.Detail),
		)
		counts[issue.Kind]++
	}
	for kind, n := range counts {
		j.Metrics.AddIntegrityIssues(kind, n)
	}

	logger.Info("completed payroll integrity scan",
		slog.Int("issues", len(issues)),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return nil
}

func (j *PayrollIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *PayrollIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
