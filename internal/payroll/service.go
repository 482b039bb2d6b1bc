package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fleetpay/fleetpay/internal/fleet"
	"github.com/fleetpay/fleetpay/internal/money"
	"github.com/fleetpay/fleetpay/internal/platform/cache"
	"github.com/fleetpay/fleetpay/internal/shared"
)

const (
	// DefaultTimeout bounds a full computation.
	DefaultTimeout = 30 * time.Second
	// DefaultLockTTL bounds how long a boat stays locked by a crashed run.
	DefaultLockTTL = time.Minute

	paymentIdempotencyModule = "payroll.payment"
	historyParallelism       = 4
)

// ErrPaymentInProgress indicates another payment to the same sailor holds its lock.
var ErrPaymentInProgress = errors.New("payroll: payment in progress for sailor")

// RepositoryPort defines data access for the payroll pipeline.
type RepositoryPort interface {
	LedgerReader

	GetTrips(ctx context.Context, ids []uuid.UUID) ([]fleet.Trip, error)
	ListEligibleTrips(ctx context.Context, boatID uuid.UUID) ([]fleet.Trip, error)
	ListActiveCrew(ctx context.Context, boatID uuid.UUID) ([]fleet.Sailor, error)
	ListAdvancesBySailor(ctx context.Context, sailorID uuid.UUID) ([]fleet.Advance, error)
	LastComputedAt(ctx context.Context, sailorID uuid.UUID) (time.Time, error)

	ListPaymentsBySailor(ctx context.Context, sailorID uuid.UUID) ([]Payment, error)
	ListPaymentsByCalculation(ctx context.Context, calculationID uuid.UUID) ([]Payment, error)
	InsertPayment(ctx context.Context, p Payment) error

	CommitCalculation(ctx context.Context, rec CalculationRecord) error
	ReopenTrips(ctx context.Context, boatID uuid.UUID, tripIDs []uuid.UUID) error
	GetCalculation(ctx context.Context, id uuid.UUID) (CalculationRecord, error)
	ListCalculations(ctx context.Context, boatID uuid.UUID, limit, offset int) ([]CalculationRecord, int, error)
	ListCalculationsSince(ctx context.Context, since time.Time) ([]CalculationRecord, error)
}

// Locker hands out advisory locks.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// IdempotencyGuard records processed request keys.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Settings tune the computation.
type Settings struct {
	NightlyRate money.Money
	Timeout     time.Duration
	LockTTL     time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.NightlyRate.IsZero() {
		s.NightlyRate = DefaultNightlyRate
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.LockTTL <= 0 {
		s.LockTTL = DefaultLockTTL
	}
	return s
}

// Service orchestrates payroll computations and settlement.
type Service struct {
	repo       RepositoryPort
	aggregator *Aggregator
	settings   Settings
	logger     *slog.Logger
	locker     Locker
	idem       IdempotencyGuard
	audit      AuditPort
	metrics    *Metrics
	now        func() time.Time
}

// NewService builds a payroll Service.
func NewService(repo RepositoryPort, settings Settings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		aggregator: NewAggregator(repo),
		settings:   settings.withDefaults(),
		logger:     logger,
		locker:     cache.NewLocker(nil),
		now:        time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLocker installs the cross-process lock provider.
func (s *Service) WithLocker(l Locker) {
	if l != nil {
		s.locker = l
	}
}

// WithIdempotency installs the payment idempotency store.
func (s *Service) WithIdempotency(g IdempotencyGuard) { s.idem = g }

// WithAudit installs the audit trail writer.
func (s *Service) WithAudit(a AuditPort) { s.audit = a }

// WithMetrics installs payroll counters.
func (s *Service) WithMetrics(m *Metrics) { s.metrics = m }

// Settings returns the effective settings.
func (s *Service) Settings() Settings { return s.settings }

// EligibleTrips lists the boat's completed, unsettled trips.
func (s *Service) EligibleTrips(ctx context.Context, boatID uuid.UUID) ([]fleet.Trip, error) {
	return s.repo.ListEligibleTrips(ctx, boatID)
}

// Calculate runs the full pipeline for the selected trips and commits the
// resulting record, marking the trips settled.
func (s *Service) Calculate(ctx context.Context, in CalculateInput) (CalculationRecord, error) {
	ids := uniqueIDs(in.TripIDs)
	if len(ids) == 0 {
		s.metrics.observeCalculation("rejected")
		return CalculationRecord{}, ErrNoTripsSelected
	}

	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	rec, err := s.calculate(ctx, in.BoatID, ids)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		s.metrics.observeCalculation(outcomeFor(err))
		return CalculationRecord{}, err
	}
	s.metrics.observeCalculation("committed")
	return rec, nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCommit):
		return "commit_failed"
	case errors.Is(err, ErrConcurrentSettlement), errors.Is(err, ErrComputationInProgress):
		return "conflict"
	case errors.Is(err, ErrAggregation):
		return "read_failed"
	default:
		return "rejected"
	}
}

func (s *Service) calculate(ctx context.Context, boatID uuid.UUID, ids []uuid.UUID) (CalculationRecord, error) {
	release, err := s.locker.Acquire(ctx, shared.PayrollLockKey(boatID), s.settings.LockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return CalculationRecord{}, ErrComputationInProgress
		}
		return CalculationRecord{}, fmt.Errorf("payroll: acquire boat lock: %w", err)
	}
	defer s.releaseLock(ctx, release, shared.PayrollLockKey(boatID))

	trips, err := s.repo.GetTrips(ctx, ids)
	if err != nil {
		return CalculationRecord{}, fmt.Errorf("%w: load trips: %w", ErrAggregation, err)
	}
	if err := checkEligible(boatID, ids, trips); err != nil {
		return CalculationRecord{}, err
	}

	crew, err := s.repo.ListActiveCrew(ctx, boatID)
	if err != nil {
		return CalculationRecord{}, fmt.Errorf("%w: load crew: %w", ErrAggregation, err)
	}

	ledger, err := s.aggregator.Aggregate(ctx, ids)
	if err != nil {
		return CalculationRecord{}, err
	}

	split, err := Split(SplitInput{
		Revenue:     ledger.RevenueTotal,
		Expense:     ledger.ExpenseTotal,
		TotalNights: TotalNights(trips),
		NightlyRate: s.settings.NightlyRate,
		Crew:        crew,
	})
	if err != nil {
		return CalculationRecord{}, err
	}

	asOf := s.now().UTC()
	histories, err := s.loadHistories(ctx, split.Members)
	if err != nil {
		return CalculationRecord{}, err
	}

	rec := CalculationRecord{
		ID:             uuid.New(),
		BoatID:         boatID,
		TripIDs:        ids,
		ComputedAt:     asOf,
		RevenueTotal:   ledger.RevenueTotal,
		ExpenseTotal:   ledger.ExpenseTotal,
		NetProfit:      split.NetProfit,
		OwnerPart:      split.OwnerPart,
		CrewPart:       split.CrewPart,
		TotalNights:    split.TotalNights,
		CrewCount:      split.CrewCount,
		NightlyRate:    split.NightlyRate,
		NightDeduction: split.NightDeduction,
		Apportionable:  split.Apportionable,
		Warnings:       split.Warnings,
		Members:        make([]MemberDetail, len(split.Members)),
	}
	for i, m := range split.Members {
		rec.Members[i] = Settle(m, histories[i], asOf, ids)
	}

	if err := ctx.Err(); err != nil {
		return CalculationRecord{}, err
	}
	if err := s.commit(context.WithoutCancel(ctx), rec); err != nil {
		return CalculationRecord{}, err
	}
	for _, w := range rec.Warnings {
		s.logger.Warn("payroll warning", slog.String("calculation_id", rec.ID.String()), slog.String("warning", w))
	}
	s.logger.Info("payroll committed",
		slog.String("calculation_id", rec.ID.String()),
		slog.String("boat_id", boatID.String()),
		slog.Int("trips", len(ids)),
		slog.String("net_profit", rec.NetProfit.String()),
	)
	return rec, nil
}

func checkEligible(boatID uuid.UUID, ids []uuid.UUID, trips []fleet.Trip) error {
	byID := make(map[uuid.UUID]fleet.Trip, len(trips))
	for _, t := range trips {
		byID[t.ID] = t
	}
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: trip %s not found", ErrTripNotEligible, id)
		}
		if t.BoatID != boatID {
			return fmt.Errorf("%w: trip %s belongs to another boat", ErrTripNotEligible, id)
		}
		if !t.Eligible() {
			return fmt.Errorf("%w: trip %s is %s (settled=%t)", ErrTripNotEligible, id, t.Status, t.Settled)
		}
	}
	return nil
}

func (s *Service) loadHistories(ctx context.Context, members []MemberShare) ([]MemberHistory, error) {
	out := make([]MemberHistory, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyParallelism)
	for i, m := range members {
		g.Go(func() error {
			id := m.Sailor.ID
			last, err := s.repo.LastComputedAt(gctx, id)
			if err != nil {
				return fmt.Errorf("%w: sailor %s last computation: %w", ErrAggregation, id, err)
			}
			advances, err := s.repo.ListAdvancesBySailor(gctx, id)
			if err != nil {
				return fmt.Errorf("%w: sailor %s advances: %w", ErrAggregation, id, err)
			}
			payments, err := s.repo.ListPaymentsBySailor(gctx, id)
			if err != nil {
				return fmt.Errorf("%w: sailor %s payments: %w", ErrAggregation, id, err)
			}
			out[i] = MemberHistory{LastComputedAt: last, Advances: advances, Payments: payments}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) commit(ctx context.Context, rec CalculationRecord) error {
	err := s.repo.CommitCalculation(ctx, rec)
	if err == nil {
		s.record(ctx, shared.AuditLog{
			Action:   "payroll.calculated",
			Entity:   "calculation",
			EntityID: rec.ID.String(),
			Meta:     map[string]any{"boat_id": rec.BoatID.String(), "trip_ids": idStrings(rec.TripIDs)},
		})
		return nil
	}
	if errors.Is(err, ErrConcurrentSettlement) {
		s.logger.Warn("payroll commit lost race",
			slog.String("calculation_id", rec.ID.String()),
			slog.String("boat_id", rec.BoatID.String()),
			slog.Any("error", err))
		return err
	}

	var cerr *CommitError
	if !errors.As(err, &cerr) {
		cerr = &CommitError{CalculationID: rec.ID, Stage: "commit", Err: err}
	}
	s.metrics.observeCommitFailure(cerr.Stage)
	s.logger.Error("payroll commit failed; reconcile manually",
		slog.String("calculation_id", rec.ID.String()),
		slog.String("boat_id", rec.BoatID.String()),
		slog.String("stage", cerr.Stage),
		slog.Any("trip_ids", idStrings(rec.TripIDs)),
		slog.Any("error", cerr.Err))
	s.record(ctx, shared.AuditLog{
		Action:   "payroll.commit_failed",
		Entity:   "calculation",
		EntityID: rec.ID.String(),
		Meta:     map[string]any{"stage": cerr.Stage, "error": cerr.Err.Error(), "trip_ids": idStrings(rec.TripIDs)},
	})
	return cerr
}

// Reopen returns settled trips of a boat to the eligible pool. Existing
// calculation records are left untouched.
func (s *Service) Reopen(ctx context.Context, in ReopenInput) error {
	ids := uniqueIDs(in.TripIDs)
	if len(ids) == 0 {
		return ErrNoTripsSelected
	}
	release, err := s.locker.Acquire(ctx, shared.PayrollLockKey(in.BoatID), s.settings.LockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return ErrComputationInProgress
		}
		return fmt.Errorf("payroll: acquire boat lock: %w", err)
	}
	defer s.releaseLock(ctx, release, shared.PayrollLockKey(in.BoatID))

	if err := s.repo.ReopenTrips(context.WithoutCancel(ctx), in.BoatID, ids); err != nil {
		return err
	}
	s.logger.Info("trips reopened", slog.String("boat_id", in.BoatID.String()), slog.Any("trip_ids", idStrings(ids)))
	s.record(ctx, shared.AuditLog{
		Action:   "payroll.reopened",
		Entity:   "boat",
		EntityID: in.BoatID.String(),
		Meta:     map[string]any{"trip_ids": idStrings(ids)},
	})
	return nil
}

// GetCalculation returns a record with the members' balances as of now.
func (s *Service) GetCalculation(ctx context.Context, id uuid.UUID) (CalculationView, error) {
	rec, err := s.repo.GetCalculation(ctx, id)
	if err != nil {
		return CalculationView{}, err
	}
	view := CalculationView{CalculationRecord: rec, Balances: make([]MemberBalance, len(rec.Members))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyParallelism)
	g.Go(func() error {
		payments, err := s.repo.ListPaymentsByCalculation(gctx, id)
		if err != nil {
			return fmt.Errorf("payroll: list payments: %w", err)
		}
		view.Payments = payments
		return nil
	})
	for i, m := range rec.Members {
		g.Go(func() error {
			payments, err := s.repo.ListPaymentsBySailor(gctx, m.SailorID)
			if err != nil {
				return fmt.Errorf("payroll: sailor %s payments: %w", m.SailorID, err)
			}
			paid, balance := CurrentBalance(m, payments, rec.TripIDs)
			view.Balances[i] = MemberBalance{MemberDetail: m, PaidTotal: paid, CurrentBalance: balance}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CalculationView{}, err
	}
	if view.Payments == nil {
		view.Payments = []Payment{}
	}
	return view, nil
}

// ListCalculations returns a boat's records, newest first.
func (s *Service) ListCalculations(ctx context.Context, boatID uuid.UUID, page, perPage int) ([]CalculationRecord, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	records, total, err := s.repo.ListCalculations(ctx, boatID, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return records, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// RecordPayment appends a payment to a member's settlement after checking it
// against the current balance due.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (Payment, MemberBalance, error) {
	if !in.Amount.IsPositive() {
		return Payment{}, MemberBalance{}, ErrInvalidAmount
	}
	rec, err := s.repo.GetCalculation(ctx, in.CalculationID)
	if err != nil {
		return Payment{}, MemberBalance{}, err
	}
	member, ok := rec.Member(in.SailorID)
	if !ok {
		return Payment{}, MemberBalance{}, ErrMemberNotInCalculation
	}

	// Balances span every calculation sharing a trip with this one, so
	// payments serialise on the sailor rather than the record.
	lockKey := shared.PaymentLockKey(in.SailorID)
	release, err := s.locker.Acquire(ctx, lockKey, s.settings.LockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return Payment{}, MemberBalance{}, ErrPaymentInProgress
		}
		return Payment{}, MemberBalance{}, fmt.Errorf("payroll: acquire payment lock: %w", err)
	}
	defer s.releaseLock(ctx, release, lockKey)

	payments, err := s.repo.ListPaymentsBySailor(ctx, in.SailorID)
	if err != nil {
		return Payment{}, MemberBalance{}, fmt.Errorf("payroll: list payments: %w", err)
	}
	paid, balance := CurrentBalance(member, payments, rec.TripIDs)
	if err := ValidatePayment(in.Amount, balance); err != nil {
		return Payment{}, MemberBalance{}, fmt.Errorf("%w: amount %s, balance %s", err, in.Amount, balance)
	}

	now := s.now().UTC()
	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	writeCtx := context.WithoutCancel(ctx)
	if s.idem != nil {
		if err := s.idem.CheckAndInsert(writeCtx, key, paymentIdempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Payment{}, MemberBalance{}, ErrDuplicatePayment
			}
			return Payment{}, MemberBalance{}, fmt.Errorf("payroll: idempotency: %w", err)
		}
	}

	paidAt := in.PaidAt.UTC()
	if in.PaidAt.IsZero() {
		paidAt = now
	}
	p := Payment{
		ID:             uuid.New(),
		CalculationID:  rec.ID,
		SailorID:       in.SailorID,
		Amount:         in.Amount,
		PaidAt:         paidAt,
		TripIDs:        rec.TripIDs,
		Description:    in.Description,
		IdempotencyKey: key,
		CreatedAt:      now,
	}
	if err := s.repo.InsertPayment(writeCtx, p); err != nil {
		if s.idem != nil {
			if derr := s.idem.Delete(writeCtx, key); derr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
			}
		}
		if errors.Is(err, ErrDuplicatePayment) {
			return Payment{}, MemberBalance{}, err
		}
		return Payment{}, MemberBalance{}, fmt.Errorf("payroll: insert payment: %w", err)
	}

	s.metrics.observePayment()
	s.record(writeCtx, shared.AuditLog{
		Action:   "payroll.payment_recorded",
		Entity:   "calculation",
		EntityID: rec.ID.String(),
		Meta:     map[string]any{"sailor_id": in.SailorID.String(), "amount": in.Amount.String(), "payment_id": p.ID.String()},
	})
	return p, MemberBalance{
		MemberDetail:   member,
		PaidTotal:      paid.Add(in.Amount),
		CurrentBalance: balance.Sub(in.Amount),
	}, nil
}

func (s *Service) releaseLock(ctx context.Context, release func(context.Context) error, key string) {
	if err := release(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("release lock", slog.String("key", key), slog.Any("error", err))
	}
}

// VerifyIntegrity checks records computed since the given time for internal
// consistency, trips no longer settled and overpaid members.
func (s *Service) VerifyIntegrity(ctx context.Context, since time.Time) ([]IntegrityIssue, error) {
	records, err := s.repo.ListCalculationsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("payroll: list calculations: %w", err)
	}
	var issues []IntegrityIssue
	for _, rec := range records {
		issues = append(issues, checkRecordSums(rec)...)

		trips, err := s.repo.GetTrips(ctx, rec.TripIDs)
		if err != nil {
			return nil, fmt.Errorf("payroll: load trips for %s: %w", rec.ID, err)
		}
		for _, t := range trips {
			if !t.Settled {
				issues = append(issues, IntegrityIssue{
					CalculationID: rec.ID,
					TripID:        t.ID,
					Kind:          "trip_unsettled",
					Detail:        fmt.Sprintf("trip is %s and not settled", t.Status),
				})
			}
		}

		payments, err := s.repo.ListPaymentsByCalculation(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("payroll: list payments for %s: %w", rec.ID, err)
		}
		paid := make(map[uuid.UUID]money.Money)
		for _, p := range payments {
			paid[p.SailorID] = paid[p.SailorID].Add(p.Amount)
		}
		for _, m := range rec.Members {
			if paid[m.SailorID] > m.BalanceDue {
				issues = append(issues, IntegrityIssue{
					CalculationID: rec.ID,
					SailorID:      m.SailorID,
					Kind:          "overpaid",
					Detail:        fmt.Sprintf("paid %s against balance %s", paid[m.SailorID], m.BalanceDue),
				})
			}
		}
	}
	return issues, nil
}

func checkRecordSums(rec CalculationRecord) []IntegrityIssue {
	var issues []IntegrityIssue
	if rec.OwnerPart.Add(rec.CrewPart) != rec.NetProfit {
		issues = append(issues, IntegrityIssue{CalculationID: rec.ID, Kind: "split_mismatch",
			Detail: fmt.Sprintf("owner %s + crew %s != net %s", rec.OwnerPart, rec.CrewPart, rec.NetProfit)})
	}
	gross := money.Zero
	for _, m := range rec.Members {
		gross = gross.Add(m.GrossShare)
	}
	if len(rec.Members) > 0 && gross != rec.Apportionable {
		issues = append(issues, IntegrityIssue{CalculationID: rec.ID, Kind: "apportion_mismatch",
			Detail: fmt.Sprintf("gross shares %s != apportionable %s", gross, rec.Apportionable)})
	}
	return issues
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	log.At = s.now().UTC()
	if log.Actor == "" {
		log.Actor = shared.ActorFromContext(ctx)
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
	}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
