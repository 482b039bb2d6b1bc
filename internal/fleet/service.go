package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RepositoryPort defines data access methods for the fleet registry.
type RepositoryPort interface {
	InsertBoat(ctx context.Context, boat Boat) error
	GetBoat(ctx context.Context, id uuid.UUID) (Boat, error)
	ListBoats(ctx context.Context, limit, offset int) ([]Boat, error)
	UpdateBoatStatus(ctx context.Context, id uuid.UUID, status BoatStatus, at time.Time) error

	InsertSailor(ctx context.Context, sailor Sailor) error
	GetSailor(ctx context.Context, id uuid.UUID) (Sailor, error)
	ListSailorsByBoat(ctx context.Context, boatID uuid.UUID) ([]Sailor, error)
	UpdateSailorShare(ctx context.Context, id uuid.UUID, share decimal.Decimal, at time.Time) error
	UpdateSailorStatus(ctx context.Context, id uuid.UUID, status SailorStatus, at time.Time) error
	SailorSettledThrough(ctx context.Context, sailorID uuid.UUID) (time.Time, error)

	InsertTrip(ctx context.Context, trip Trip) error
	GetTrip(ctx context.Context, id uuid.UUID) (Trip, error)
	ListTripsByBoat(ctx context.Context, boatID uuid.UUID) ([]Trip, error)
	UpdateTripStatus(ctx context.Context, id uuid.UUID, from, to TripStatus, returnAt *time.Time, at time.Time) error

	InsertInvoice(ctx context.Context, inv SalesInvoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (SalesInvoice, error)
	UpdateInvoice(ctx context.Context, inv SalesInvoice) error
	DeleteInvoice(ctx context.Context, id uuid.UUID) error
	ListInvoicesByTrip(ctx context.Context, tripID uuid.UUID) ([]SalesInvoice, error)

	InsertExpense(ctx context.Context, exp Expense) error
	GetExpense(ctx context.Context, id uuid.UUID) (Expense, error)
	UpdateExpense(ctx context.Context, exp Expense) error
	DeleteExpense(ctx context.Context, id uuid.UUID) error
	ListExpensesByTrip(ctx context.Context, tripID uuid.UUID) ([]Expense, error)

	InsertAdvance(ctx context.Context, adv Advance) error
	GetAdvance(ctx context.Context, id uuid.UUID) (Advance, error)
	UpdateAdvance(ctx context.Context, adv Advance) error
	DeleteAdvance(ctx context.Context, id uuid.UUID) error
	ListAdvancesBySailor(ctx context.Context, sailorID uuid.UUID) ([]Advance, error)

	UpsertAttendance(ctx context.Context, a Attendance) (Attendance, error)
	ListAttendanceByTrip(ctx context.Context, tripID uuid.UUID) ([]Attendance, error)
}

// Service handles fleet registry business rules.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateBoat registers a boat in ACTIVE status.
func (s *Service) CreateBoat(ctx context.Context, in CreateBoatInput) (Boat, error) {
	now := s.now().UTC()
	boat := Boat{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(in.Name),
		Registration: strings.TrimSpace(in.Registration),
		HomePort:     strings.TrimSpace(in.HomePort),
		CrewCapacity: in.CrewCapacity,
		Status:       BoatStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.InsertBoat(ctx, boat); err != nil {
		return Boat{}, fmt.Errorf("fleet: insert boat: %w", err)
	}
	return boat, nil
}

func (s *Service) GetBoat(ctx context.Context, id uuid.UUID) (Boat, error) {
	return s.repo.GetBoat(ctx, id)
}

func (s *Service) ListBoats(ctx context.Context, limit, offset int) ([]Boat, error) {
	return s.repo.ListBoats(ctx, limit, offset)
}

// UpdateBoatStatus changes a boat's availability.
func (s *Service) UpdateBoatStatus(ctx context.Context, boatID uuid.UUID, status BoatStatus) (Boat, error) {
	if !status.Valid() {
		return Boat{}, ErrInvalidStatus
	}
	boat, err := s.repo.GetBoat(ctx, boatID)
	if err != nil {
		return Boat{}, err
	}
	now := s.now().UTC()
	if err := s.repo.UpdateBoatStatus(ctx, boatID, status, now); err != nil {
		return Boat{}, fmt.Errorf("fleet: update boat status: %w", err)
	}
	s.logger.Info("boat status changed", slog.String("boat_id", boatID.String()), slog.String("from", string(boat.Status)), slog.String("to", string(status)))
	boat.Status = status
	boat.UpdatedAt = now
	return boat, nil
}

// CreateSailor adds an ACTIVE crew member to an existing boat.
func (s *Service) CreateSailor(ctx context.Context, in CreateSailorInput) (Sailor, error) {
	if err := in.Validate(); err != nil {
		return Sailor{}, err
	}
	if _, err := s.repo.GetBoat(ctx, in.BoatID); err != nil {
		return Sailor{}, err
	}
	now := s.now().UTC()
	sailor := Sailor{
		ID:        uuid.New(),
		BoatID:    in.BoatID,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      in.Role,
		Share:     in.Share,
		Status:    SailorStatusActive,
		HiredAt:   in.HiredAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertSailor(ctx, sailor); err != nil {
		return Sailor{}, fmt.Errorf("fleet: insert sailor: %w", err)
	}
	return sailor, nil
}

func (s *Service) ListSailors(ctx context.Context, boatID uuid.UUID) ([]Sailor, error) {
	return s.repo.ListSailorsByBoat(ctx, boatID)
}

// UpdateShare changes a sailor's apportionment weight. Past calculation
// records keep the share they were computed with.
func (s *Service) UpdateShare(ctx context.Context, sailorID uuid.UUID, share decimal.Decimal) (Sailor, error) {
	if share.IsNegative() {
		return Sailor{}, ErrNegativeShare
	}
	sailor, err := s.repo.GetSailor(ctx, sailorID)
	if err != nil {
		return Sailor{}, err
	}
	now := s.now().UTC()
	if err := s.repo.UpdateSailorShare(ctx, sailorID, share, now); err != nil {
		return Sailor{}, fmt.Errorf("fleet: update share: %w", err)
	}
	sailor.Share = share
	sailor.UpdatedAt = now
	return sailor, nil
}

// UpdateSailorStatus moves a sailor between ACTIVE, LEAVE and INACTIVE.
// Existing calculation records keep the crew they were computed with.
func (s *Service) UpdateSailorStatus(ctx context.Context, sailorID uuid.UUID, status SailorStatus) (Sailor, error) {
	if !status.Valid() {
		return Sailor{}, ErrInvalidStatus
	}
	sailor, err := s.repo.GetSailor(ctx, sailorID)
	if err != nil {
		return Sailor{}, err
	}
	now := s.now().UTC()
	if err := s.repo.UpdateSailorStatus(ctx, sailorID, status, now); err != nil {
		return Sailor{}, fmt.Errorf("fleet: update sailor status: %w", err)
	}
	s.logger.Info("sailor status changed", slog.String("sailor_id", sailorID.String()), slog.String("from", string(sailor.Status)), slog.String("to", string(status)))
	sailor.Status = status
	sailor.UpdatedAt = now
	return sailor, nil
}

// CreateTrip opens an IN_PROGRESS trip for a boat.
func (s *Service) CreateTrip(ctx context.Context, in CreateTripInput) (Trip, error) {
	if in.BoatID == uuid.Nil {
		return Trip{}, ErrBoatRequired
	}
	if _, err := s.repo.GetBoat(ctx, in.BoatID); err != nil {
		return Trip{}, err
	}
	now := s.now().UTC()
	trip := Trip{
		ID:          uuid.New(),
		BoatID:      in.BoatID,
		DepartureAt: in.DepartureAt.UTC(),
		Destination: strings.TrimSpace(in.Destination),
		Status:      TripStatusInProgress,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertTrip(ctx, trip); err != nil {
		return Trip{}, fmt.Errorf("fleet: insert trip: %w", err)
	}
	return trip, nil
}

func (s *Service) GetTrip(ctx context.Context, id uuid.UUID) (Trip, error) {
	return s.repo.GetTrip(ctx, id)
}

func (s *Service) ListTrips(ctx context.Context, boatID uuid.UUID) ([]Trip, error) {
	return s.repo.ListTripsByBoat(ctx, boatID)
}

// CompleteTrip records the return and makes the trip payroll-eligible.
func (s *Service) CompleteTrip(ctx context.Context, tripID uuid.UUID, in CompleteTripInput) (Trip, error) {
	trip, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		return Trip{}, err
	}
	if trip.Status != TripStatusInProgress {
		return Trip{}, ErrInvalidTransition
	}
	returnAt := in.ReturnAt.UTC()
	if returnAt.Before(trip.DepartureAt) {
		return Trip{}, ErrReturnBeforeDeparture
	}
	now := s.now().UTC()
	if err := s.repo.UpdateTripStatus(ctx, tripID, TripStatusInProgress, TripStatusCompleted, &returnAt, now); err != nil {
		return Trip{}, err
	}
	trip.Status = TripStatusCompleted
	trip.ReturnAt = &returnAt
	trip.UpdatedAt = now
	return trip, nil
}

// CancelTrip withdraws a trip still at sea.
func (s *Service) CancelTrip(ctx context.Context, tripID uuid.UUID) (Trip, error) {
	trip, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		return Trip{}, err
	}
	if trip.Settled {
		return Trip{}, ErrTripSettled
	}
	if trip.Status != TripStatusInProgress {
		return Trip{}, ErrInvalidTransition
	}
	now := s.now().UTC()
	if err := s.repo.UpdateTripStatus(ctx, tripID, TripStatusInProgress, TripStatusCancelled, trip.ReturnAt, now); err != nil {
		return Trip{}, err
	}
	s.logger.Info("trip cancelled", slog.String("trip_id", tripID.String()))
	trip.Status = TripStatusCancelled
	trip.UpdatedAt = now
	return trip, nil
}

// CreateInvoice books a sale. Settled trips are frozen.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (SalesInvoice, error) {
	if !in.Amount.IsPositive() {
		return SalesInvoice{}, ErrInvalidAmount
	}
	if err := s.ensureOpenTrip(ctx, in.TripID); err != nil {
		return SalesInvoice{}, err
	}
	inv := SalesInvoice{
		ID:        uuid.New(),
		TripID:    in.TripID,
		Number:    strings.TrimSpace(in.Number),
		Client:    strings.TrimSpace(in.Client),
		Amount:    in.Amount,
		SoldAt:    in.SoldAt.UTC(),
		Details:   in.Details,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertInvoice(ctx, inv); err != nil {
		return SalesInvoice{}, fmt.Errorf("fleet: insert invoice: %w", err)
	}
	return inv, nil
}

func (s *Service) ListInvoices(ctx context.Context, tripID uuid.UUID) ([]SalesInvoice, error) {
	return s.repo.ListInvoicesByTrip(ctx, tripID)
}

// UpdateInvoice rewrites a sale while its trip is unsettled.
func (s *Service) UpdateInvoice(ctx context.Context, invoiceID uuid.UUID, in UpdateInvoiceInput) (SalesInvoice, error) {
	if !in.Amount.IsPositive() {
		return SalesInvoice{}, ErrInvalidAmount
	}
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return SalesInvoice{}, err
	}
	if err := s.ensureOpenTrip(ctx, inv.TripID); err != nil {
		return SalesInvoice{}, err
	}
	inv.Number = strings.TrimSpace(in.Number)
	inv.Client = strings.TrimSpace(in.Client)
	inv.Amount = in.Amount
	inv.SoldAt = in.SoldAt.UTC()
	inv.Details = in.Details
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return SalesInvoice{}, fmt.Errorf("fleet: update invoice: %w", err)
	}
	return inv, nil
}

// DeleteInvoice removes a sale while its trip is unsettled.
func (s *Service) DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if err := s.ensureOpenTrip(ctx, inv.TripID); err != nil {
		return err
	}
	if err := s.repo.DeleteInvoice(ctx, invoiceID); err != nil {
		return fmt.Errorf("fleet: delete invoice: %w", err)
	}
	return nil
}

// CreateExpense books a cost. Settled trips are frozen.
func (s *Service) CreateExpense(ctx context.Context, in CreateExpenseInput) (Expense, error) {
	if !in.Amount.IsPositive() {
		return Expense{}, ErrInvalidAmount
	}
	if err := s.ensureOpenTrip(ctx, in.TripID); err != nil {
		return Expense{}, err
	}
	exp := Expense{
		ID:          uuid.New(),
		TripID:      in.TripID,
		Category:    in.Category,
		Amount:      in.Amount,
		SpentAt:     in.SpentAt.UTC(),
		Description: in.Description,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.InsertExpense(ctx, exp); err != nil {
		return Expense{}, fmt.Errorf("fleet: insert expense: %w", err)
	}
	return exp, nil
}

func (s *Service) ListExpenses(ctx context.Context, tripID uuid.UUID) ([]Expense, error) {
	return s.repo.ListExpensesByTrip(ctx, tripID)
}

// UpdateExpense rewrites a cost while its trip is unsettled.
func (s *Service) UpdateExpense(ctx context.Context, expenseID uuid.UUID, in UpdateExpenseInput) (Expense, error) {
	if !in.Amount.IsPositive() {
		return Expense{}, ErrInvalidAmount
	}
	exp, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return Expense{}, err
	}
	if err := s.ensureOpenTrip(ctx, exp.TripID); err != nil {
		return Expense{}, err
	}
	exp.Category = in.Category
	exp.Amount = in.Amount
	exp.SpentAt = in.SpentAt.UTC()
	exp.Description = in.Description
	if err := s.repo.UpdateExpense(ctx, exp); err != nil {
		return Expense{}, fmt.Errorf("fleet: update expense: %w", err)
	}
	return exp, nil
}

// DeleteExpense removes a cost while its trip is unsettled.
func (s *Service) DeleteExpense(ctx context.Context, expenseID uuid.UUID) error {
	exp, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if err := s.ensureOpenTrip(ctx, exp.TripID); err != nil {
		return err
	}
	if err := s.repo.DeleteExpense(ctx, expenseID); err != nil {
		return fmt.Errorf("fleet: delete expense: %w", err)
	}
	return nil
}

// CreateAdvance records money paid to a sailor before settlement.
func (s *Service) CreateAdvance(ctx context.Context, in CreateAdvanceInput) (Advance, error) {
	if !in.Amount.IsPositive() {
		return Advance{}, ErrInvalidAmount
	}
	sailor, err := s.repo.GetSailor(ctx, in.SailorID)
	if err != nil {
		return Advance{}, err
	}
	adv := Advance{
		ID:          uuid.New(),
		SailorID:    sailor.ID,
		BoatID:      sailor.BoatID,
		Amount:      in.Amount,
		GivenAt:     in.GivenAt.UTC(),
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.InsertAdvance(ctx, adv); err != nil {
		return Advance{}, fmt.Errorf("fleet: insert advance: %w", err)
	}
	return adv, nil
}

func (s *Service) ListAdvances(ctx context.Context, sailorID uuid.UUID) ([]Advance, error) {
	return s.repo.ListAdvancesBySailor(ctx, sailorID)
}

// UpdateAdvance rewrites an advance that no computation has netted yet. The
// new date must also fall after the sailor's latest computation.
func (s *Service) UpdateAdvance(ctx context.Context, advanceID uuid.UUID, in UpdateAdvanceInput) (Advance, error) {
	if !in.Amount.IsPositive() {
		return Advance{}, ErrInvalidAmount
	}
	adv, err := s.repo.GetAdvance(ctx, advanceID)
	if err != nil {
		return Advance{}, err
	}
	through, err := s.repo.SailorSettledThrough(ctx, adv.SailorID)
	if err != nil {
		return Advance{}, fmt.Errorf("fleet: sailor settlement: %w", err)
	}
	givenAt := in.GivenAt.UTC()
	if !adv.GivenAt.After(through) || !givenAt.After(through) {
		return Advance{}, ErrAdvanceSettled
	}
	adv.Amount = in.Amount
	adv.GivenAt = givenAt
	adv.Description = strings.TrimSpace(in.Description)
	if err := s.repo.UpdateAdvance(ctx, adv); err != nil {
		return Advance{}, fmt.Errorf("fleet: update advance: %w", err)
	}
	return adv, nil
}

// DeleteAdvance removes an advance that no computation has netted yet.
func (s *Service) DeleteAdvance(ctx context.Context, advanceID uuid.UUID) error {
	adv, err := s.repo.GetAdvance(ctx, advanceID)
	if err != nil {
		return err
	}
	through, err := s.repo.SailorSettledThrough(ctx, adv.SailorID)
	if err != nil {
		return fmt.Errorf("fleet: sailor settlement: %w", err)
	}
	if !adv.GivenAt.After(through) {
		return ErrAdvanceSettled
	}
	if err := s.repo.DeleteAdvance(ctx, advanceID); err != nil {
		return fmt.Errorf("fleet: delete advance: %w", err)
	}
	return nil
}

// RecordAttendance sets whether a sailor of the trip's boat was aboard.
func (s *Service) RecordAttendance(ctx context.Context, tripID uuid.UUID, in RecordAttendanceInput) (Attendance, error) {
	trip, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		return Attendance{}, err
	}
	if trip.Settled {
		return Attendance{}, ErrTripSettled
	}
	sailor, err := s.repo.GetSailor(ctx, in.SailorID)
	if err != nil {
		return Attendance{}, err
	}
	if sailor.BoatID != trip.BoatID {
		return Attendance{}, ErrSailorNotOnBoat
	}
	now := s.now().UTC()
	att, err := s.repo.UpsertAttendance(ctx, Attendance{
		ID:           uuid.New(),
		TripID:       tripID,
		SailorID:     sailor.ID,
		Present:      in.Present,
		Observations: strings.TrimSpace(in.Observations),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Attendance{}, fmt.Errorf("fleet: record attendance: %w", err)
	}
	return att, nil
}

func (s *Service) ListAttendance(ctx context.Context, tripID uuid.UUID) ([]Attendance, error) {
	return s.repo.ListAttendanceByTrip(ctx, tripID)
}

func (s *Service) ensureOpenTrip(ctx context.Context, tripID uuid.UUID) error {
	trip, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if trip.Settled {
		return ErrTripSettled
	}
	return nil
}
