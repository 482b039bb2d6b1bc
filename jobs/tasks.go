package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPayrollExport renders a calculation workbook to the export directory.
	TaskPayrollExport = "payroll:export"
	// TaskPayrollIntegrityScan re-checks recent calculations for consistency.
	TaskPayrollIntegrityScan = "payroll:integrity-scan"
)

// DefaultIntegrityLookback bounds the integrity scan when the payload omits it.
const DefaultIntegrityLookback = 30 * 24 * time.Hour

// PayrollExportPayload identifies the calculation to export.
type PayrollExportPayload struct {
	CalculationID uuid.UUID `json:"calculation_id"`
}

// PayrollIntegrityPayload carries scheduling metadata for the integrity scan.
type PayrollIntegrityPayload struct {
	Lookback     time.Duration `json:"lookback"`
	ScheduledFor time.Time     `json:"scheduled_for,omitempty"`
}

// NewPayrollExportTask constructs an Asynq task for exporting a calculation.
func NewPayrollExportTask(calculationID uuid.UUID) (*asynq.Task, error) {
	body, err := json.Marshal(PayrollExportPayload{CalculationID: calculationID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayrollExport, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewPayrollIntegrityTask constructs an Asynq task for the integrity scan.
func NewPayrollIntegrityTask(lookback time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(PayrollIntegrityPayload{Lookback: lookback})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayrollIntegrityScan, body, asynq.Queue(QueueDefault)), nil
}

// TaskIdempotencyCleanup purges expired idempotency keys.
const TaskIdempotencyCleanup = "idempotency:cleanup"

// NewIdempotencyCleanupTask constructs an Asynq task for key cleanup.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}
