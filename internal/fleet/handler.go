package fleet

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/fleetpay/internal/platform/httpx"
	"github.com/fleetpay/fleetpay/internal/shared"
)

// ErrorMappings translates fleet errors into HTTP problems.
var ErrorMappings = []httpx.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: ErrDuplicate, Status: http.StatusConflict, Title: "Duplicate"},
	{Err: ErrBoatRequired, Status: http.StatusBadRequest, Title: "Boat Required"},
	{Err: ErrNegativeShare, Status: http.StatusBadRequest, Title: "Invalid Share"},
	{Err: ErrInvalidAmount, Status: http.StatusBadRequest, Title: "Invalid Amount"},
	{Err: ErrInvalidTransition, Status: http.StatusConflict, Title: "Invalid Transition"},
	{Err: ErrReturnBeforeDeparture, Status: http.StatusBadRequest, Title: "Invalid Return"},
	{Err: ErrTripSettled, Status: http.StatusConflict, Title: "Trip Settled"},
	{Err: ErrAdvanceSettled, Status: http.StatusConflict, Title: "Advance Settled"},
	{Err: ErrInvalidStatus, Status: http.StatusBadRequest, Title: "Invalid Status"},
	{Err: ErrSailorNotOnBoat, Status: http.StatusBadRequest, Title: "Sailor Not On Boat"},
}

// Handler exposes the fleet registry over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers fleet routes on the root router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/boats", func(r chi.Router) {
		r.Get("/", h.listBoats)
		r.Post("/", h.createBoat)
		r.Route("/{boatID}", func(r chi.Router) {
			r.Get("/", h.getBoat)
			r.Patch("/status", h.updateBoatStatus)
			r.Get("/sailors", h.listSailors)
			r.Post("/sailors", h.createSailor)
			r.Get("/trips", h.listTrips)
			r.Post("/trips", h.createTrip)
		})
	})
	r.Route("/sailors/{sailorID}", func(r chi.Router) {
		r.Patch("/share", h.updateShare)
		r.Patch("/status", h.updateSailorStatus)
		r.Get("/advances", h.listAdvances)
		r.Post("/advances", h.createAdvance)
	})
	r.Route("/trips/{tripID}", func(r chi.Router) {
		r.Get("/", h.getTrip)
		r.Post("/complete", h.completeTrip)
		r.Post("/cancel", h.cancelTrip)
		r.Get("/invoices", h.listInvoices)
		r.Post("/invoices", h.createInvoice)
		r.Get("/expenses", h.listExpenses)
		r.Post("/expenses", h.createExpense)
		r.Get("/attendance", h.listAttendance)
		r.Put("/attendance", h.recordAttendance)
	})
	r.Route("/invoices/{invoiceID}", func(r chi.Router) {
		r.Put("/", h.updateInvoice)
		r.Delete("/", h.deleteInvoice)
	})
	r.Route("/expenses/{expenseID}", func(r chi.Router) {
		r.Put("/", h.updateExpense)
		r.Delete("/", h.deleteExpense)
	})
	r.Route("/advances/{advanceID}", func(r chi.Router) {
		r.Put("/", h.updateAdvance)
		r.Delete("/", h.deleteAdvance)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if status, _, _ := httpx.Classify(err, ErrorMappings...); status >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, err, ErrorMappings...)
}

func (h *Handler) listBoats(w http.ResponseWriter, r *http.Request) {
	page, limit := shared.PageFromQuery(r.URL.Query())
	boats, err := h.service.ListBoats(r.Context(), limit, (page-1)*limit)
	if err != nil {
		h.fail(w, r, "list boats failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": boats, "page": page, "limit": limit})
}

func (h *Handler) createBoat(w http.ResponseWriter, r *http.Request) {
	var in CreateBoatInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	boat, err := h.service.CreateBoat(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create boat failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, boat)
}

func (h *Handler) getBoat(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "boatID")
	if !ok {
		return
	}
	boat, err := h.service.GetBoat(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get boat failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, boat)
}

func (h *Handler) listSailors(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "boatID")
	if !ok {
		return
	}
	sailors, err := h.service.ListSailors(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list sailors failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": sailors})
}

func (h *Handler) createSailor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "boatID")
	if !ok {
		return
	}
	var in CreateSailorInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	in.BoatID = id
	sailor, err := h.service.CreateSailor(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create sailor failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sailor)
}

func (h *Handler) updateBoatStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "boatID")
	if !ok {
		return
	}
	var in UpdateBoatStatusInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	boat, err := h.service.UpdateBoatStatus(r.Context(), id, in.Status)
	if err != nil {
		h.fail(w, r, "update boat status failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, boat)
}

func (h *Handler) updateSailorStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "sailorID")
	if !ok {
		return
	}
	var in UpdateSailorStatusInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	sailor, err := h.service.UpdateSailorStatus(r.Context(), id, in.Status)
	if err != nil {
		h.fail(w, r, "update sailor status failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sailor)
}

type updateShareRequest struct {
	Share decimal.Decimal `json:"share"`
}

func (h *Handler) updateShare(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "sailorID")
	if !ok {
		return
	}
	var req updateShareRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sailor, err := h.service.UpdateShare(r.Context(), id, req.Share)
	if err != nil {
		h.fail(w, r, "update share failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sailor)
}

func (h *Handler) listTrips(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "boatID")
	if !ok {
		return
	}
	trips, err := h.service.ListTrips(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list trips failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": trips})
}

func (h *Handler) createTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "boatID")
	if !ok {
		return
	}
	var in CreateTripInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	in.BoatID = id
	trip, err := h.service.CreateTrip(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create trip failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, trip)
}

func (h *Handler) getTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "tripID")
	if !ok {
		return
	}
	trip, err := h.service.GetTrip(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get trip failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, trip)
}

func (h *Handler) completeTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "tripID")
	if !ok {
		return
	}
	var in CompleteTripInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	trip, err := h.service.CompleteTrip(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, "complete trip failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, trip)
}

func (h *Handler) cancelTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "tripID")
	if !ok {
		return
	}
	trip, err := h.service.CancelTrip(r.Context(), id)
	if err != nil {
		h.fail(w, r, "cancel trip failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, trip)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "tripID")
	if !ok {
		return
	}
	invoices, err := h.service.ListInvoices(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list invoices failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": invoices})
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "tripID")
	if !ok {
		return
	}
	var in CreateInvoiceInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	in.TripID = id
	inv, err := h.service.CreateInvoice(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create invoice failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "tripID")
	if !ok {
		return
	}
	expenses, err := h.service.ListExpenses(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list expenses failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": expenses})
}

func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "tripID")
	if !ok {
		return
	}
	var in CreateExpenseInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	in.TripID = id
	exp, err := h.service.CreateExpense(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create expense failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, exp)
}

func (h *Handler) listAdvances(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "sailorID")
	if !ok {
		return
	}
	advances, err := h.service.ListAdvances(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list advances failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": advances})
}

func (h *Handler) createAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "sailorID")
	if !ok {
		return
	}
	var in CreateAdvanceInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	in.SailorID = id
	adv, err := h.service.CreateAdvance(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create advance failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, adv)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "invoiceID")
	if !ok {
		return
	}
	var in UpdateInvoiceInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	inv, err := h.service.UpdateInvoice(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, "update invoice failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "invoiceID")
	if !ok {
		return
	}
	if err := h.service.DeleteInvoice(r.Context(), id); err != nil {
		h.fail(w, r, "delete invoice failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "expenseID")
	if !ok {
		return
	}
	var in UpdateExpenseInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	exp, err := h.service.UpdateExpense(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, "update expense failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, exp)
}

func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "expenseID")
	if !ok {
		return
	}
	if err := h.service.DeleteExpense(r.Context(), id); err != nil {
		h.fail(w, r, "delete expense failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "advanceID")
	if !ok {
		return
	}
	var in UpdateAdvanceInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	adv, err := h.service.UpdateAdvance(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, "update advance failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, adv)
}

func (h *Handler) deleteAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "advanceID")
	if !ok {
		return
	}
	if err := h.service.DeleteAdvance(r.Context(), id); err != nil {
		h.fail(w, r, "delete advance failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "tripID")
	if !ok {
		return
	}
	rows, err := h.service.ListAttendance(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list attendance failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (h *Handler) recordAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.param(w, r, "tripID")
	if !ok {
		return
	}
	var in RecordAttendanceInput
	if !httpx.DecodeAndValidate(w, r, h.validate, &in) {
		return
	}
	att, err := h.service.RecordAttendance(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, "record attendance failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, att)
}

func (h *Handler) param(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := httpx.UUIDParam(r, name)
	if err != nil {
		httpx.RespondError(w, err)
		return uuid.Nil, false
	}
	return id, true
}

