package payroll

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fleetpay/fleetpay/internal/fleet"
	"github.com/fleetpay/fleetpay/internal/platform/httpx"
	"github.com/fleetpay/fleetpay/internal/shared"
)

// ErrorMappings translates payroll errors into HTTP problems.
var ErrorMappings = []httpx.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: fleet.ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: ErrNoShareBasis, Status: http.StatusUnprocessableEntity, Title: "No Share Basis"},
	{Err: ErrNoTripsSelected, Status: http.StatusBadRequest, Title: "No Trips Selected"},
	{Err: ErrTripNotEligible, Status: http.StatusConflict, Title: "Trip Not Eligible"},
	{Err: ErrTimeout, Status: http.StatusGatewayTimeout, Title: "Timeout"},
	{Err: ErrAggregation, Status: http.StatusBadGateway, Title: "Aggregation Failed"},
	{Err: ErrConcurrentSettlement, Status: http.StatusConflict, Title: "Concurrent Settlement"},
	{Err: ErrComputationInProgress, Status: http.StatusConflict, Title: "Computation In Progress"},
	{Err: ErrPaymentInProgress, Status: http.StatusConflict, Title: "Payment In Progress"},
	{Err: ErrCommit, Status: http.StatusInternalServerError, Title: "Commit Failed"},
	{Err: ErrPaymentExceedsBalance, Status: http.StatusUnprocessableEntity, Title: "Payment Exceeds Balance"},
	{Err: ErrInvalidAmount, Status: http.StatusBadRequest, Title: "Invalid Amount"},
	{Err: ErrDuplicatePayment, Status: http.StatusConflict, Title: "Duplicate Payment"},
	{Err: ErrTripNotSettled, Status: http.StatusConflict, Title: "Trip Not Settled"},
}

// ExportEnqueuer schedules asynchronous workbook exports.
type ExportEnqueuer interface {
	EnqueuePayrollExport(ctx context.Context, calculationID uuid.UUID) (string, error)
}

// Handler exposes payroll operations over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	exporter *Exporter
	enqueuer ExportEnqueuer
	validate *validator.Validate
}

// NewHandler builds a Handler. enqueuer may be nil when no worker queue is
// configured; the export POST route then answers 503.
func NewHandler(logger *slog.Logger, service *Service, exporter *Exporter, enqueuer ExportEnqueuer) *Handler {
	return &Handler{logger: logger, service: service, exporter: exporter, enqueuer: enqueuer, validate: validator.New()}
}

// MountRoutes registers payroll routes on the root router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/boats/{boatID}/payroll", func(r chi.Router) {
		r.Get("/eligible-trips", h.eligibleTrips)
		r.Get("/calculations", h.listCalculations)
		r.Post("/calculations", h.calculate)
		r.Post("/reopen", h.reopen)
	})
	r.Route("/payroll/calculations/{calculationID}", func(r chi.Router) {
		r.Get("/", h.getCalculation)
		r.Post("/payments", h.recordPayment)
		r.Get("/export", h.downloadExport)
		r.Post("/export", h.enqueueExport)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	level := slog.LevelInfo
	if status, _, _ := httpx.Classify(err, ErrorMappings...); status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	httpx.RespondError(w, err, ErrorMappings...)
}

func (h *Handler) eligibleTrips(w http.ResponseWriter, r *http.Request) {
	boatID, ok := h.param(w, r, "boatID")
	if !ok {
		return
	}
	trips, err := h.service.EligibleTrips(r.Context(), boatID)
	if err != nil {
		h.fail(w, r, "list eligible trips failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": trips})
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	boatID, ok := h.param(w, r, "boatID")
	if !ok {
		return
	}
	var in CalculateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if len(in.TripIDs) == 0 {
		h.fail(w, r, "calculate payroll rejected", ErrNoTripsSelected)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in.BoatID = boatID
	rec, err := h.service.Calculate(r.Context(), in)
	if err != nil {
		h.fail(w, r, "calculate payroll failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) listCalculations(w http.ResponseWriter, r *http.Request) {
	boatID, ok := h.param(w, r, "boatID")
	if !ok {
		return
	}
	page, limit := shared.PageFromQuery(r.URL.Query())
	records, pagination, err := h.service.ListCalculations(r.Context(), boatID, page, limit)
	if err != nil {
		h.fail(w, r, "list calculations failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": records, "pagination": pagination})
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	boatID, ok := h.param(w, r, "boatID")
	if !ok {
		return
	}
	var in ReopenInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.BoatID = boatID
	if err := h.service.Reopen(r.Context(), in); err != nil {
		h.fail(w, r, "reopen trips failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getCalculation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "calculationID")
	if !ok {
		return
	}
	view, err := h.service.GetCalculation(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get calculation failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "calculationID")
	if !ok {
		return
	}
	var in RecordPaymentInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	in.CalculationID = id
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		in.IdempotencyKey = key
	}
	payment, balance, err := h.service.RecordPayment(r.Context(), in)
	if err != nil {
		h.fail(w, r, "record payment failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"payment": payment, "balance": balance})
}

func (h *Handler) downloadExport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "calculationID")
	if !ok {
		return
	}
	view, err := h.service.GetCalculation(r.Context(), id)
	if err != nil {
		h.fail(w, r, "export calculation failed", err)
		return
	}
	var buf bytes.Buffer
	if err := h.exporter.Write(&buf, view); err != nil {
		h.fail(w, r, "render workbook failed", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+FileName(view)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) enqueueExport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "calculationID")
	if !ok {
		return
	}
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "export queue not configured")
		return
	}
	if _, err := h.service.repo.GetCalculation(r.Context(), id); err != nil {
		h.fail(w, r, "export calculation failed", err)
		return
	}
	taskID, err := h.enqueuer.EnqueuePayrollExport(r.Context(), id)
	if err != nil {
		h.fail(w, r, "enqueue export failed", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "calculation_id": id.String()})
}

func (h *Handler) param(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := httpx.UUIDParam(r, name)
	if err != nil {
		httpx.RespondError(w, err)
		return uuid.Nil, false
	}
	return id, true
}
