package fleet

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/fleetpay/internal/money"
)

// BoatStatus enumerates boat availability.
type BoatStatus string

const (
	BoatStatusActive      BoatStatus = "ACTIVE"
	BoatStatusMaintenance BoatStatus = "MAINTENANCE"
	BoatStatusInactive    BoatStatus = "INACTIVE"
)

// Valid reports whether the status is a known boat status.
func (s BoatStatus) Valid() bool {
	switch s {
	case BoatStatusActive, BoatStatusMaintenance, BoatStatusInactive:
		return true
	}
	return false
}

// SailorRole is the sailor's function aboard.
type SailorRole string

const (
	RoleCaptain  SailorRole = "CAPTAIN"
	RoleSecond   SailorRole = "SECOND"
	RoleMechanic SailorRole = "MECHANIC"
	RoleDeckhand SailorRole = "DECKHAND"
)

// SailorStatus enumerates crew availability.
type SailorStatus string

const (
	SailorStatusActive   SailorStatus = "ACTIVE"
	SailorStatusLeave    SailorStatus = "LEAVE"
	SailorStatusInactive SailorStatus = "INACTIVE"
)

// Valid reports whether the status is a known sailor status.
func (s SailorStatus) Valid() bool {
	switch s {
	case SailorStatusActive, SailorStatusLeave, SailorStatusInactive:
		return true
	}
	return false
}

// TripStatus captures the lifecycle of a trip at sea.
type TripStatus string

const (
	TripStatusInProgress TripStatus = "IN_PROGRESS"
	TripStatusCompleted  TripStatus = "COMPLETED"
	TripStatusCancelled  TripStatus = "CANCELLED"
)

// ExpenseCategory classifies trip costs.
type ExpenseCategory string

const (
	ExpenseFuel         ExpenseCategory = "FUEL"
	ExpenseIce          ExpenseCategory = "ICE"
	ExpenseMaintenance  ExpenseCategory = "MAINTENANCE"
	ExpenseCrewTax      ExpenseCategory = "CREW_TAX"
	ExpenseCrewBonus    ExpenseCategory = "CREW_BONUS"
	ExpenseFood         ExpenseCategory = "FOOD"
	ExpenseSafetySystem ExpenseCategory = "SAFETY_SYSTEM"
	ExpenseMisc         ExpenseCategory = "MISC"
)

// Boat is a vessel of the fleet.
type Boat struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Registration string     `json:"registration"`
	HomePort     string     `json:"home_port,omitempty"`
	CrewCapacity int        `json:"crew_capacity"`
	Status       BoatStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Sailor is a crew member attached to exactly one boat.
type Sailor struct {
	ID        uuid.UUID       `json:"id"`
	BoatID    uuid.UUID       `json:"boat_id"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Role      SailorRole      `json:"role"`
	Share     decimal.Decimal `json:"share"`
	Status    SailorStatus    `json:"status"`
	HiredAt   *time.Time      `json:"hired_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// FullName renders "First Last".
func (s Sailor) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Trip is a single voyage.
type Trip struct {
	ID          uuid.UUID  `json:"id"`
	BoatID      uuid.UUID  `json:"boat_id"`
	DepartureAt time.Time  `json:"departure_at"`
	ReturnAt    *time.Time `json:"return_at,omitempty"`
	Destination string     `json:"destination"`
	Status      TripStatus `json:"status"`
	Settled     bool       `json:"settled"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Eligible reports whether the trip can enter a payroll computation.
func (t Trip) Eligible() bool {
	return t.Status == TripStatusCompleted && !t.Settled
}

// SalesInvoice records fish sold at the end of a trip.
type SalesInvoice struct {
	ID        uuid.UUID   `json:"id"`
	TripID    uuid.UUID   `json:"trip_id"`
	Number    string      `json:"number"`
	Client    string      `json:"client"`
	Amount    money.Money `json:"amount"`
	SoldAt    time.Time   `json:"sold_at"`
	Details   string      `json:"details,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Expense is a cost booked against a trip.
type Expense struct {
	ID          uuid.UUID       `json:"id"`
	TripID      uuid.UUID       `json:"trip_id"`
	Category    ExpenseCategory `json:"category"`
	Amount      money.Money     `json:"amount"`
	SpentAt     time.Time       `json:"spent_at"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Advance is money handed to a sailor ahead of settlement.
type Advance struct {
	ID          uuid.UUID   `json:"id"`
	SailorID    uuid.UUID   `json:"sailor_id"`
	BoatID      uuid.UUID   `json:"boat_id"`
	Amount      money.Money `json:"amount"`
	GivenAt     time.Time   `json:"given_at"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Attendance marks whether a sailor was aboard for a trip. It is kept for the
// crew log and does not change the payroll split.
type Attendance struct {
	ID           uuid.UUID `json:"id"`
	TripID       uuid.UUID `json:"trip_id"`
	SailorID     uuid.UUID `json:"sailor_id"`
	Present      bool      `json:"present"`
	Observations string    `json:"observations,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateBoatInput captures a new boat.
type CreateBoatInput struct {
	Name         string `json:"name" validate:"required,max=120"`
	Registration string `json:"registration" validate:"required,max=40"`
	HomePort     string `json:"home_port" validate:"max=120"`
	CrewCapacity int    `json:"crew_capacity" validate:"gte=0,lte=200"`
}

// CreateSailorInput captures a new crew member.
type CreateSailorInput struct {
	BoatID    uuid.UUID       `json:"-"`
	FirstName string          `json:"first_name" validate:"required,max=80"`
	LastName  string          `json:"last_name" validate:"required,max=80"`
	Role      SailorRole      `json:"role" validate:"required,oneof=CAPTAIN SECOND MECHANIC DECKHAND"`
	Share     decimal.Decimal `json:"share"`
	HiredAt   *time.Time      `json:"hired_at"`
}

// Validate checks rules the struct tags cannot express.
func (in CreateSailorInput) Validate() error {
	if in.BoatID == uuid.Nil {
		return ErrBoatRequired
	}
	if in.Share.IsNegative() {
		return ErrNegativeShare
	}
	return nil
}

// CreateTripInput opens a trip.
type CreateTripInput struct {
	BoatID      uuid.UUID `json:"-"`
	DepartureAt time.Time `json:"departure_at" validate:"required"`
	Destination string    `json:"destination" validate:"required,max=120"`
	Notes       string    `json:"notes" validate:"max=500"`
}

// CompleteTripInput closes a trip on its return.
type CompleteTripInput struct {
	ReturnAt time.Time `json:"return_at" validate:"required"`
}

// CreateInvoiceInput books a sale against a trip.
type CreateInvoiceInput struct {
	TripID  uuid.UUID   `json:"-"`
	Number  string      `json:"number" validate:"required,max=40"`
	Client  string      `json:"client" validate:"required,max=120"`
	Amount  money.Money `json:"amount"`
	SoldAt  time.Time   `json:"sold_at" validate:"required"`
	Details string      `json:"details" validate:"max=1000"`
}

// CreateExpenseInput books a cost against a trip.
type CreateExpenseInput struct {
	TripID      uuid.UUID       `json:"-"`
	Category    ExpenseCategory `json:"category" validate:"required,oneof=FUEL ICE MAINTENANCE CREW_TAX CREW_BONUS FOOD SAFETY_SYSTEM MISC"`
	Amount      money.Money     `json:"amount"`
	SpentAt     time.Time       `json:"spent_at" validate:"required"`
	Description string          `json:"description" validate:"max=500"`
}

// CreateAdvanceInput records an advance paid to a sailor.
type CreateAdvanceInput struct {
	SailorID    uuid.UUID   `json:"-"`
	Amount      money.Money `json:"amount"`
	GivenAt     time.Time   `json:"given_at" validate:"required"`
	Description string      `json:"description" validate:"max=500"`
}

// UpdateBoatStatusInput changes a boat's availability.
type UpdateBoatStatusInput struct {
	Status BoatStatus `json:"status" validate:"required,oneof=ACTIVE MAINTENANCE INACTIVE"`
}

// UpdateSailorStatusInput changes a sailor's availability. Only ACTIVE sailors
// enter new computations.
type UpdateSailorStatusInput struct {
	Status SailorStatus `json:"status" validate:"required,oneof=ACTIVE LEAVE INACTIVE"`
}

// UpdateInvoiceInput replaces the editable fields of an invoice.
type UpdateInvoiceInput struct {
	Number  string      `json:"number" validate:"required,max=40"`
	Client  string      `json:"client" validate:"required,max=120"`
	Amount  money.Money `json:"amount"`
	SoldAt  time.Time   `json:"sold_at" validate:"required"`
	Details string      `json:"details" validate:"max=1000"`
}

// UpdateExpenseInput replaces the editable fields of an expense.
type UpdateExpenseInput struct {
	Category    ExpenseCategory `json:"category" validate:"required,oneof=FUEL ICE MAINTENANCE CREW_TAX CREW_BONUS FOOD SAFETY_SYSTEM MISC"`
	Amount      money.Money     `json:"amount"`
	SpentAt     time.Time       `json:"spent_at" validate:"required"`
	Description string          `json:"description" validate:"max=500"`
}

// UpdateAdvanceInput replaces the editable fields of an advance.
type UpdateAdvanceInput struct {
	Amount      money.Money `json:"amount"`
	GivenAt     time.Time   `json:"given_at" validate:"required"`
	Description string      `json:"description" validate:"max=500"`
}

// RecordAttendanceInput sets a sailor's presence on a trip.
type RecordAttendanceInput struct {
	SailorID     uuid.UUID `json:"sailor_id" validate:"required"`
	Present      bool      `json:"present"`
	Observations string    `json:"observations" validate:"max=500"`
}

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("fleet: not found")
	// ErrBoatRequired indicates a missing boat reference.
	ErrBoatRequired = errors.New("fleet: boat id required")
	// ErrNegativeShare rejects negative share weights.
	ErrNegativeShare = errors.New("fleet: share must not be negative")
	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("fleet: amount must be positive")
	// ErrInvalidTransition rejects trip status changes outside the lifecycle.
	ErrInvalidTransition = errors.New("fleet: invalid trip status transition")
	// ErrReturnBeforeDeparture rejects a return earlier than the departure.
	ErrReturnBeforeDeparture = errors.New("fleet: return precedes departure")
	// ErrTripSettled rejects bookings against a trip already folded into payroll.
	ErrTripSettled = errors.New("fleet: trip already settled")
	// ErrAdvanceSettled rejects changes to an advance already netted by payroll.
	ErrAdvanceSettled = errors.New("fleet: advance already netted")
	// ErrInvalidStatus rejects unknown boat or sailor statuses.
	ErrInvalidStatus = errors.New("fleet: invalid status")
	// ErrSailorNotOnBoat rejects attendance for a sailor of another boat.
	ErrSailorNotOnBoat = errors.New("fleet: sailor does not belong to the trip's boat")
)
