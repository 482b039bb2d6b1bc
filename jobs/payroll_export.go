package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/fleetpay/fleetpay/internal/jobs"
	"github.com/fleetpay/fleetpay/internal/payroll"
)

// CalculationReader loads a calculation with its current balances.
type CalculationReader interface {
	GetCalculation(ctx context.Context, id uuid.UUID) (payroll.CalculationView, error)
}

// WorkbookSaver writes a calculation workbook to disk.
type WorkbookSaver interface {
	Save(path string, view payroll.CalculationView) error
}

var _ payroll.ExportEnqueuer = (*Client)(nil)

// PayrollExportJob renders calculation workbooks into a directory.
type PayrollExportJob struct {
	Reader   CalculationReader
	Exporter WorkbookSaver
	Dir      string
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewPayrollExportJob initialises the export handler.
func NewPayrollExportJob(reader CalculationReader, exporter WorkbookSaver, dir string, logger *slog.Logger, metrics *jobmetrics.Metrics) *PayrollExportJob {
	return &PayrollExportJob{Reader: reader, Exporter: exporter, Dir: dir, Logger: logger, Metrics: metrics}
}

// Handle executes the export for one calculation.
func (j *PayrollExportJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reader == nil || j.Exporter == nil {
		return errors.New("payroll export: handler not configured")
	}
	var payload PayrollExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.CalculationID == uuid.Nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskPayrollExport)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.String("calculation_id", payload.CalculationID.String()))

	view, err := j.Reader.GetCalculation(ctx, payload.CalculationID)
	if err != nil {
		if errors.Is(err, payroll.ErrNotFound) {
			logger.Warn("export skipped, calculation missing")
			return fmt.Errorf("payroll export: %w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("payroll export: load calculation: %w", err)
	}
	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		return fmt.Errorf("payroll export: create dir: %w", err)
	}
	path := filepath.Join(j.Dir, payroll.FileName(view))
	if err := j.Exporter.Save(path, view); err != nil {
		logger.Error("export failed", slog.Any("error", err))
		return fmt.Errorf("payroll export: save workbook: %w", err)
	}
	logger.Info("payroll workbook exported", slog.String("path", path))
	return nil
}

func (j *PayrollExportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
