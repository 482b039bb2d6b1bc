package payroll

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/fleetpay/internal/fleet"
	"github.com/fleetpay/fleetpay/internal/money"
)

// OwnerSharePercent is the owner's cut of net profit; the crew receives the rest.
const OwnerSharePercent = 50

// DefaultNightlyRate is the allowance per sailor per night at sea.
var DefaultNightlyRate = money.FromUnits(5)

var ownerShareRatio = decimal.New(OwnerSharePercent, -2)

// Ledger aggregates sales and costs over a set of trips.
type Ledger struct {
	RevenueTotal money.Money          `json:"revenue_total"`
	ExpenseTotal money.Money          `json:"expense_total"`
	Invoices     []fleet.SalesInvoice `json:"invoices"`
	Expenses     []fleet.Expense      `json:"expenses"`
}

// NetProfit is revenue minus expenses. It may be negative.
func (l Ledger) NetProfit() money.Money {
	return l.RevenueTotal.Sub(l.ExpenseTotal)
}

// MemberShare is one crew member's portion before settlement netting.
type MemberShare struct {
	Sailor     fleet.Sailor
	GrossShare money.Money
	NightBonus money.Money
}

// SplitResult is the outcome of the profit split.
type SplitResult struct {
	NetProfit      money.Money
	OwnerPart      money.Money
	CrewPart       money.Money
	TotalNights    int
	CrewCount      int
	NightlyRate    money.Money
	NightDeduction money.Money
	Apportionable  money.Money
	Members        []MemberShare
	Warnings       []string
}

// MemberDetail is the per-sailor line of a calculation record, frozen at
// computation time.
type MemberDetail struct {
	SailorID       uuid.UUID        `json:"sailor_id"`
	Name           string           `json:"name"`
	Role           fleet.SailorRole `json:"role"`
	Share          decimal.Decimal  `json:"share"`
	GrossShare     money.Money      `json:"gross_share"`
	NightBonus     money.Money      `json:"night_bonus"`
	AdvancesNetted money.Money      `json:"advances_netted"`
	PaymentsNetted money.Money      `json:"payments_netted"`
	BalanceDue     money.Money      `json:"balance_due"`
}

// Entitlement is what the member earned from the record before any payment.
func (m MemberDetail) Entitlement() money.Money {
	return m.GrossShare.Add(m.NightBonus).Sub(m.AdvancesNetted)
}

// CalculationRecord is the immutable snapshot of one payroll run.
type CalculationRecord struct {
	ID             uuid.UUID      `json:"id"`
	BoatID         uuid.UUID      `json:"boat_id"`
	TripIDs        []uuid.UUID    `json:"trip_ids"`
	ComputedAt     time.Time      `json:"computed_at"`
	RevenueTotal   money.Money    `json:"revenue_total"`
	ExpenseTotal   money.Money    `json:"expense_total"`
	NetProfit      money.Money    `json:"net_profit"`
	OwnerPart      money.Money    `json:"owner_part"`
	CrewPart       money.Money    `json:"crew_part"`
	TotalNights    int            `json:"total_nights"`
	CrewCount      int            `json:"crew_count"`
	NightlyRate    money.Money    `json:"nightly_rate"`
	NightDeduction money.Money    `json:"night_deduction"`
	Apportionable  money.Money    `json:"apportionable"`
	Warnings       []string       `json:"warnings,omitempty"`
	Members        []MemberDetail `json:"members"`
}

// Member returns the detail line for sailorID.
func (r CalculationRecord) Member(sailorID uuid.UUID) (MemberDetail, bool) {
	for _, m := range r.Members {
		if m.SailorID == sailorID {
			return m, true
		}
	}
	return MemberDetail{}, false
}

// Payment is an append-only settlement entry against a calculation.
type Payment struct {
	ID             uuid.UUID   `json:"id"`
	CalculationID  uuid.UUID   `json:"calculation_id"`
	SailorID       uuid.UUID   `json:"sailor_id"`
	Amount         money.Money `json:"amount"`
	PaidAt         time.Time   `json:"paid_at"`
	TripIDs        []uuid.UUID `json:"trip_ids"`
	Description    string      `json:"description,omitempty"`
	IdempotencyKey string      `json:"idempotency_key"`
	CreatedAt      time.Time   `json:"created_at"`
}

// MemberBalance pairs a frozen member line with its balance as of now.
type MemberBalance struct {
	MemberDetail
	PaidTotal      money.Money `json:"paid_total"`
	CurrentBalance money.Money `json:"current_balance"`
}

// CalculationView is a record enriched with live settlement state.
type CalculationView struct {
	CalculationRecord
	Balances []MemberBalance `json:"balances"`
	Payments []Payment       `json:"payments"`
}

// CalculateInput selects the trips of one boat to settle.
type CalculateInput struct {
	BoatID  uuid.UUID   `json:"-"`
	TripIDs []uuid.UUID `json:"trip_ids" validate:"required,min=1,dive,required"`
}

// ReopenInput lists settled trips to return to the eligible pool.
type ReopenInput struct {
	BoatID  uuid.UUID   `json:"-"`
	TripIDs []uuid.UUID `json:"trip_ids" validate:"required,min=1,dive,required"`
}

// RecordPaymentInput pays part or all of a member's balance.
type RecordPaymentInput struct {
	CalculationID  uuid.UUID   `json:"-"`
	SailorID       uuid.UUID   `json:"sailor_id" validate:"required"`
	Amount         money.Money `json:"amount"`
	PaidAt         time.Time   `json:"paid_at"`
	Description    string      `json:"description" validate:"max=500"`
	IdempotencyKey string      `json:"idempotency_key" validate:"max=120"`
}

// IntegrityIssue describes an inconsistency found by the settlement scan.
type IntegrityIssue struct {
	CalculationID uuid.UUID `json:"calculation_id"`
	TripID        uuid.UUID `json:"trip_id,omitempty"`
	SailorID      uuid.UUID `json:"sailor_id,omitempty"`
	Kind          string    `json:"kind"`
	Detail        string    `json:"detail"`
}

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("payroll: not found")
	// ErrNoShareBasis rejects a computation when active crew shares sum to zero.
	ErrNoShareBasis = errors.New("payroll: active crew shares sum to zero")
	// ErrNoTripsSelected rejects an empty trip selection.
	ErrNoTripsSelected = errors.New("payroll: no trips selected")
	// ErrTripNotEligible rejects trips that are not completed and unsettled for the boat.
	ErrTripNotEligible = errors.New("payroll: trip not eligible")
	// ErrAggregation indicates a read failed while gathering inputs.
	ErrAggregation = errors.New("payroll: aggregation failed")
	// ErrCommit indicates the write phase failed.
	ErrCommit = errors.New("payroll: commit failed")
	// ErrConcurrentSettlement indicates a trip was settled by another run first.
	ErrConcurrentSettlement = errors.New("payroll: trip settled concurrently")
	// ErrComputationInProgress indicates another computation holds the boat lock.
	ErrComputationInProgress = errors.New("payroll: computation in progress for boat")
	// ErrPaymentExceedsBalance rejects payments above the member's balance due.
	ErrPaymentExceedsBalance = errors.New("payroll: payment exceeds balance due")
	// ErrInvalidAmount rejects non-positive payments.
	ErrInvalidAmount = errors.New("payroll: amount must be positive")
	// ErrDuplicatePayment rejects a reused idempotency key.
	ErrDuplicatePayment = errors.New("payroll: duplicate payment")
	// ErrTripNotSettled rejects reopening a trip that is not settled.
	ErrTripNotSettled = errors.New("payroll: trip not settled")
	// ErrTimeout indicates the computation exceeded its deadline.
	ErrTimeout = errors.New("payroll: computation timed out")
	// ErrMemberNotInCalculation rejects payments for sailors outside the record.
	ErrMemberNotInCalculation = fmt.Errorf("%w: sailor not in calculation", ErrNotFound)
)

// CommitError reports which write stage failed. It matches ErrCommit.
type CommitError struct {
	CalculationID uuid.UUID
	Stage         string
	Err           error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("payroll: commit %s (stage %s): %v", e.CalculationID, e.Stage, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCommit) match any CommitError.
func (e *CommitError) Is(target error) bool { return target == ErrCommit }
