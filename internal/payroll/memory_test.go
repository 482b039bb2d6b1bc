package payroll

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetpay/fleetpay/internal/fleet"
	"github.com/fleetpay/fleetpay/internal/shared"
)

type memoryPayrollRepo struct {
	mu           sync.Mutex
	trips        map[uuid.UUID]fleet.Trip
	sailors      []fleet.Sailor
	invoices     map[uuid.UUID][]fleet.SalesInvoice
	expenses     map[uuid.UUID][]fleet.Expense
	advances     map[uuid.UUID][]fleet.Advance
	payments     []Payment
	calculations []CalculationRecord

	readErr      error
	readDelay    time.Duration
	commitErr    error
	commits      int
	beforeCommit func()
}

func newMemoryPayrollRepo() *memoryPayrollRepo {
	return &memoryPayrollRepo{
		trips:    make(map[uuid.UUID]fleet.Trip),
		invoices: make(map[uuid.UUID][]fleet.SalesInvoice),
		expenses: make(map[uuid.UUID][]fleet.Expense),
		advances: make(map[uuid.UUID][]fleet.Advance),
	}
}

func (r *memoryPayrollRepo) read(ctx context.Context) error {
	if r.readDelay > 0 {
		select {
		case <-time.After(r.readDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.readErr
}

func (r *memoryPayrollRepo) ListInvoicesByTrip(ctx context.Context, tripID uuid.UUID) ([]fleet.SalesInvoice, error) {
	if err := r.read(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fleet.SalesInvoice(nil), r.invoices[tripID]...), nil
}

func (r *memoryPayrollRepo) ListExpensesByTrip(ctx context.Context, tripID uuid.UUID) ([]fleet.Expense, error) {
	if err := r.read(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fleet.Expense(nil), r.expenses[tripID]...), nil
}

func (r *memoryPayrollRepo) GetTrips(ctx context.Context, ids []uuid.UUID) ([]fleet.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []fleet.Trip
	for _, id := range ids {
		if t, ok := r.trips[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memoryPayrollRepo) ListEligibleTrips(ctx context.Context, boatID uuid.UUID) ([]fleet.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []fleet.Trip{}
	for _, t := range r.trips {
		if t.BoatID == boatID && t.Eligible() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureAt.Before(out[j].DepartureAt) })
	return out, nil
}

func (r *memoryPayrollRepo) ListActiveCrew(ctx context.Context, boatID uuid.UUID) ([]fleet.Sailor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []fleet.Sailor
	for _, s := range r.sailors {
		if s.BoatID == boatID && s.Status == fleet.SailorStatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryPayrollRepo) ListAdvancesBySailor(ctx context.Context, sailorID uuid.UUID) ([]fleet.Advance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fleet.Advance(nil), r.advances[sailorID]...), nil
}

func (r *memoryPayrollRepo) LastComputedAt(ctx context.Context, sailorID uuid.UUID) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last time.Time
	for _, rec := range r.calculations {
		if _, ok := rec.Member(sailorID); ok && rec.ComputedAt.After(last) {
			last = rec.ComputedAt
		}
	}
	return last, nil
}

func (r *memoryPayrollRepo) ListPaymentsBySailor(ctx context.Context, sailorID uuid.UUID) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Payment{}
	for _, p := range r.payments {
		if p.SailorID == sailorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryPayrollRepo) ListPaymentsByCalculation(ctx context.Context, calculationID uuid.UUID) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Payment{}
	for _, p := range r.payments {
		if p.CalculationID == calculationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryPayrollRepo) InsertPayment(ctx context.Context, p Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments {
		if existing.IdempotencyKey == p.IdempotencyKey {
			return ErrDuplicatePayment
		}
	}
	r.payments = append(r.payments, p)
	return nil
}

func (r *memoryPayrollRepo) CommitCalculation(ctx context.Context, rec CalculationRecord) error {
	if r.beforeCommit != nil {
		r.beforeCommit()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commitErr != nil {
		var cerr *CommitError
		if errors.As(r.commitErr, &cerr) {
			return r.commitErr
		}
		return &CommitError{CalculationID: rec.ID, Stage: StageInsertMembers, Err: r.commitErr}
	}
	for _, id := range rec.TripIDs {
		t := r.trips[id]
		if t.Settled || t.Status != fleet.TripStatusCompleted {
			return ErrConcurrentSettlement
		}
	}
	for _, id := range rec.TripIDs {
		t := r.trips[id]
		t.Settled = true
		r.trips[id] = t
	}
	r.calculations = append(r.calculations, rec)
	r.commits++
	return nil
}

func (r *memoryPayrollRepo) ReopenTrips(ctx context.Context, boatID uuid.UUID, tripIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range tripIDs {
		t, ok := r.trips[id]
		if !ok || t.BoatID != boatID || !t.Settled {
			return ErrTripNotSettled
		}
	}
	for _, id := range tripIDs {
		t := r.trips[id]
		t.Settled = false
		r.trips[id] = t
	}
	return nil
}

func (r *memoryPayrollRepo) GetCalculation(ctx context.Context, id uuid.UUID) (CalculationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.calculations {
		if rec.ID == id {
			return rec, nil
		}
	}
	return CalculationRecord{}, ErrNotFound
}

func (r *memoryPayrollRepo) ListCalculations(ctx context.Context, boatID uuid.UUID, limit, offset int) ([]CalculationRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CalculationRecord
	for i := len(r.calculations) - 1; i >= 0; i-- {
		if r.calculations[i].BoatID == boatID {
			out = append(out, r.calculations[i])
		}
	}
	total := len(out)
	if offset >= len(out) {
		return []CalculationRecord{}, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *memoryPayrollRepo) ListCalculationsSince(ctx context.Context, since time.Time) ([]CalculationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CalculationRecord
	for _, rec := range r.calculations {
		if !rec.ComputedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]struct{})
	}
	if _, ok := m.keys[module+":"+key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+":"+key] = struct{}{}
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, paymentIdempotencyModule+":"+key)
	return nil
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
	actors  []string
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, log.Action)
	a.actors = append(a.actors, log.Actor)
	return nil
}
