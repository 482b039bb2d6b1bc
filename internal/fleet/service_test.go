package fleet

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fleetpay/fleetpay/internal/money"
)

type memoryFleetRepo struct {
	boats      map[uuid.UUID]Boat
	sailors    map[uuid.UUID]Sailor
	trips      map[uuid.UUID]Trip
	invoices   map[uuid.UUID][]SalesInvoice
	expenses   map[uuid.UUID][]Expense
	advances   map[uuid.UUID][]Advance
	settled    map[uuid.UUID]time.Time
	attendance map[[2]uuid.UUID]Attendance
}

func newMemoryFleetRepo() *memoryFleetRepo {
	return &memoryFleetRepo{
		boats:      make(map[uuid.UUID]Boat),
		sailors:    make(map[uuid.UUID]Sailor),
		trips:      make(map[uuid.UUID]Trip),
		invoices:   make(map[uuid.UUID][]SalesInvoice),
		expenses:   make(map[uuid.UUID][]Expense),
		advances:   make(map[uuid.UUID][]Advance),
		settled:    make(map[uuid.UUID]time.Time),
		attendance: make(map[[2]uuid.UUID]Attendance),
	}
}

func (r *memoryFleetRepo) InsertBoat(ctx context.Context, b Boat) error {
	for _, existing := range r.boats {
		if existing.Registration == b.Registration {
			return ErrDuplicate
		}
	}
	r.boats[b.ID] = b
	return nil
}

func (r *memoryFleetRepo) GetBoat(ctx context.Context, id uuid.UUID) (Boat, error) {
	b, ok := r.boats[id]
	if !ok {
		return Boat{}, ErrNotFound
	}
	return b, nil
}

func (r *memoryFleetRepo) ListBoats(ctx context.Context, limit, offset int) ([]Boat, error) {
	out := make([]Boat, 0, len(r.boats))
	for _, b := range r.boats {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryFleetRepo) UpdateBoatStatus(ctx context.Context, id uuid.UUID, status BoatStatus, at time.Time) error {
	b, ok := r.boats[id]
	if !ok {
		return ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = at
	r.boats[id] = b
	return nil
}

func (r *memoryFleetRepo) InsertSailor(ctx context.Context, s Sailor) error {
	r.sailors[s.ID] = s
	return nil
}

func (r *memoryFleetRepo) GetSailor(ctx context.Context, id uuid.UUID) (Sailor, error) {
	s, ok := r.sailors[id]
	if !ok {
		return Sailor{}, ErrNotFound
	}
	return s, nil
}

func (r *memoryFleetRepo) ListSailorsByBoat(ctx context.Context, boatID uuid.UUID) ([]Sailor, error) {
	var out []Sailor
	for _, s := range r.sailors {
		if s.BoatID == boatID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryFleetRepo) UpdateSailorShare(ctx context.Context, id uuid.UUID, share decimal.Decimal, at time.Time) error {
	s, ok := r.sailors[id]
	if !ok {
		return ErrNotFound
	}
	s.Share = share
	s.UpdatedAt = at
	r.sailors[id] = s
	return nil
}

func (r *memoryFleetRepo) UpdateSailorStatus(ctx context.Context, id uuid.UUID, status SailorStatus, at time.Time) error {
	s, ok := r.sailors[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = at
	r.sailors[id] = s
	return nil
}

func (r *memoryFleetRepo) SailorSettledThrough(ctx context.Context, sailorID uuid.UUID) (time.Time, error) {
	return r.settled[sailorID], nil
}

func (r *memoryFleetRepo) InsertTrip(ctx context.Context, t Trip) error {
	r.trips[t.ID] = t
	return nil
}

func (r *memoryFleetRepo) GetTrip(ctx context.Context, id uuid.UUID) (Trip, error) {
	t, ok := r.trips[id]
	if !ok {
		return Trip{}, ErrNotFound
	}
	return t, nil
}

func (r *memoryFleetRepo) ListTripsByBoat(ctx context.Context, boatID uuid.UUID) ([]Trip, error) {
	var out []Trip
	for _, t := range r.trips {
		if t.BoatID == boatID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memoryFleetRepo) UpdateTripStatus(ctx context.Context, id uuid.UUID, from, to TripStatus, returnAt *time.Time, at time.Time) error {
	t, ok := r.trips[id]
	if !ok || t.Status != from || t.Settled {
		return ErrInvalidTransition
	}
	t.Status = to
	t.ReturnAt = returnAt
	t.UpdatedAt = at
	r.trips[id] = t
	return nil
}

func (r *memoryFleetRepo) InsertInvoice(ctx context.Context, inv SalesInvoice) error {
	r.invoices[inv.TripID] = append(r.invoices[inv.TripID], inv)
	return nil
}

func (r *memoryFleetRepo) GetInvoice(ctx context.Context, id uuid.UUID) (SalesInvoice, error) {
	for _, list := range r.invoices {
		for _, inv := range list {
			if inv.ID == id {
				return inv, nil
			}
		}
	}
	return SalesInvoice{}, ErrNotFound
}

func (r *memoryFleetRepo) UpdateInvoice(ctx context.Context, inv SalesInvoice) error {
	list := r.invoices[inv.TripID]
	for i := range list {
		if list[i].ID == inv.ID {
			list[i] = inv
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryFleetRepo) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	for tripID, list := range r.invoices {
		for i := range list {
			if list[i].ID == id {
				r.invoices[tripID] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return ErrNotFound
}

func (r *memoryFleetRepo) ListInvoicesByTrip(ctx context.Context, tripID uuid.UUID) ([]SalesInvoice, error) {
	return append([]SalesInvoice(nil), r.invoices[tripID]...), nil
}

func (r *memoryFleetRepo) InsertExpense(ctx context.Context, e Expense) error {
	r.expenses[e.TripID] = append(r.expenses[e.TripID], e)
	return nil
}

func (r *memoryFleetRepo) GetExpense(ctx context.Context, id uuid.UUID) (Expense, error) {
	for _, list := range r.expenses {
		for _, e := range list {
			if e.ID == id {
				return e, nil
			}
		}
	}
	return Expense{}, ErrNotFound
}

func (r *memoryFleetRepo) UpdateExpense(ctx context.Context, e Expense) error {
	list := r.expenses[e.TripID]
	for i := range list {
		if list[i].ID == e.ID {
			list[i] = e
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryFleetRepo) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	for tripID, list := range r.expenses {
		for i := range list {
			if list[i].ID == id {
				r.expenses[tripID] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return ErrNotFound
}

func (r *memoryFleetRepo) ListExpensesByTrip(ctx context.Context, tripID uuid.UUID) ([]Expense, error) {
	return append([]Expense(nil), r.expenses[tripID]...), nil
}

func (r *memoryFleetRepo) InsertAdvance(ctx context.Context, a Advance) error {
	r.advances[a.SailorID] = append(r.advances[a.SailorID], a)
	return nil
}

func (r *memoryFleetRepo) GetAdvance(ctx context.Context, id uuid.UUID) (Advance, error) {
	for _, list := range r.advances {
		for _, a := range list {
			if a.ID == id {
				return a, nil
			}
		}
	}
	return Advance{}, ErrNotFound
}

func (r *memoryFleetRepo) UpdateAdvance(ctx context.Context, a Advance) error {
	list := r.advances[a.SailorID]
	for i := range list {
		if list[i].ID == a.ID {
			list[i] = a
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryFleetRepo) DeleteAdvance(ctx context.Context, id uuid.UUID) error {
	for sailorID, list := range r.advances {
		for i := range list {
			if list[i].ID == id {
				r.advances[sailorID] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return ErrNotFound
}

func (r *memoryFleetRepo) ListAdvancesBySailor(ctx context.Context, sailorID uuid.UUID) ([]Advance, error) {
	return append([]Advance(nil), r.advances[sailorID]...), nil
}

func (r *memoryFleetRepo) UpsertAttendance(ctx context.Context, a Attendance) (Attendance, error) {
	key := [2]uuid.UUID{a.TripID, a.SailorID}
	if existing, ok := r.attendance[key]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	}
	r.attendance[key] = a
	return a, nil
}

func (r *memoryFleetRepo) ListAttendanceByTrip(ctx context.Context, tripID uuid.UUID) ([]Attendance, error) {
	var out []Attendance
	for key, a := range r.attendance {
		if key[0] == tripID {
			out = append(out, a)
		}
	}
	return out, nil
}

var fixedNow = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memoryFleetRepo) {
	t.Helper()
	repo := newMemoryFleetRepo()
	svc := NewService(repo, nil)
	svc.WithNow(func() time.Time { return fixedNow })
	return svc, repo
}

func TestCreateSailorRequiresExistingBoatAndPositiveShare(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateSailor(ctx, CreateSailorInput{BoatID: uuid.New(), FirstName: "Ali", LastName: "Ben", Role: RoleDeckhand, Share: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrNotFound)

	boat, err := svc.CreateBoat(ctx, CreateBoatInput{Name: "Amel", Registration: "SF-101"})
	require.NoError(t, err)
	require.Equal(t, BoatStatusActive, boat.Status)

	_, err = svc.CreateSailor(ctx, CreateSailorInput{BoatID: boat.ID, FirstName: "Ali", LastName: "Ben", Role: RoleDeckhand, Share: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ErrNegativeShare)

	sailor, err := svc.CreateSailor(ctx, CreateSailorInput{BoatID: boat.ID, FirstName: " Ali ", LastName: "Ben", Role: RoleCaptain, Share: decimal.RequireFromString("2.5")})
	require.NoError(t, err)
	require.Equal(t, "Ali Ben", sailor.FullName())
	require.Equal(t, SailorStatusActive, sailor.Status)
}

func TestUpdateShareRejectsNegative(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	boat, err := svc.CreateBoat(ctx, CreateBoatInput{Name: "Amel", Registration: "SF-101"})
	require.NoError(t, err)
	sailor, err := svc.CreateSailor(ctx, CreateSailorInput{BoatID: boat.ID, FirstName: "Ali", LastName: "Ben", Role: RoleDeckhand, Share: decimal.NewFromInt(1)})
	require.NoError(t, err)

	_, err = svc.UpdateShare(ctx, sailor.ID, decimal.NewFromInt(-2))
	require.ErrorIs(t, err, ErrNegativeShare)

	updated, err := svc.UpdateShare(ctx, sailor.ID, decimal.NewFromInt(3))
	require.NoError(t, err)
	require.True(t, updated.Share.Equal(decimal.NewFromInt(3)))
	require.True(t, repo.sailors[sailor.ID].Share.Equal(decimal.NewFromInt(3)))
}

func TestTripLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	boat, err := svc.CreateBoat(ctx, CreateBoatInput{Name: "Amel", Registration: "SF-101"})
	require.NoError(t, err)

	departure := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	trip, err := svc.CreateTrip(ctx, CreateTripInput{BoatID: boat.ID, DepartureAt: departure, Destination: "Kerkennah"})
	require.NoError(t, err)
	require.Equal(t, TripStatusInProgress, trip.Status)
	require.False(t, trip.Eligible())

	_, err = svc.CompleteTrip(ctx, trip.ID, CompleteTripInput{ReturnAt: departure.Add(-time.Hour)})
	require.ErrorIs(t, err, ErrReturnBeforeDeparture)

	completed, err := svc.CompleteTrip(ctx, trip.ID, CompleteTripInput{ReturnAt: departure.Add(72 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, TripStatusCompleted, completed.Status)
	require.True(t, completed.Eligible())

	_, err = svc.CompleteTrip(ctx, trip.ID, CompleteTripInput{ReturnAt: departure.Add(80 * time.Hour)})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.CancelTrip(ctx, trip.ID)
	require.ErrorIs(t, err, ErrInvalidTransition, "a completed trip stays completed")

	atSea, err := svc.CreateTrip(ctx, CreateTripInput{BoatID: boat.ID, DepartureAt: departure, Destination: "Zarzis"})
	require.NoError(t, err)
	cancelled, err := svc.CancelTrip(ctx, atSea.ID)
	require.NoError(t, err)
	require.Equal(t, TripStatusCancelled, cancelled.Status)
	require.False(t, cancelled.Eligible())

	_, err = svc.CancelTrip(ctx, atSea.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBookingsRejectedOnSettledTrip(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	tripID := uuid.New()
	repo.trips[tripID] = Trip{ID: tripID, BoatID: uuid.New(), Status: TripStatusCompleted, Settled: true}

	_, err := svc.CreateInvoice(ctx, CreateInvoiceInput{TripID: tripID, Number: "F-1", Client: "Marché", Amount: money.MustParse("100"), SoldAt: fixedNow})
	require.ErrorIs(t, err, ErrTripSettled)

	_, err = svc.CreateExpense(ctx, CreateExpenseInput{TripID: tripID, Category: ExpenseFuel, Amount: money.MustParse("10"), SpentAt: fixedNow})
	require.ErrorIs(t, err, ErrTripSettled)

	_, err = svc.CancelTrip(ctx, tripID)
	require.ErrorIs(t, err, ErrTripSettled)
}

func TestBookingsRequirePositiveAmounts(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	tripID := uuid.New()
	repo.trips[tripID] = Trip{ID: tripID, BoatID: uuid.New(), Status: TripStatusCompleted}

	_, err := svc.CreateInvoice(ctx, CreateInvoiceInput{TripID: tripID, Number: "F-1", Client: "Marché", Amount: money.Zero, SoldAt: fixedNow})
	require.ErrorIs(t, err, ErrInvalidAmount)

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{TripID: tripID, Number: "F-1", Client: "Marché", Amount: money.MustParse("3000"), SoldAt: fixedNow})
	require.NoError(t, err)
	require.Equal(t, int64(300000), inv.Amount.Minor())

	_, err = svc.CreateExpense(ctx, CreateExpenseInput{TripID: tripID, Category: ExpenseIce, Amount: money.MustParse("-5"), SpentAt: fixedNow})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreateAdvanceInheritsSailorBoat(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	boat, err := svc.CreateBoat(ctx, CreateBoatInput{Name: "Amel", Registration: "SF-101"})
	require.NoError(t, err)
	sailor, err := svc.CreateSailor(ctx, CreateSailorInput{BoatID: boat.ID, FirstName: "Ali", LastName: "Ben", Role: RoleDeckhand, Share: decimal.NewFromInt(1)})
	require.NoError(t, err)

	adv, err := svc.CreateAdvance(ctx, CreateAdvanceInput{SailorID: sailor.ID, Amount: money.MustParse("50"), GivenAt: fixedNow})
	require.NoError(t, err)
	require.Equal(t, boat.ID, adv.BoatID)

	list, err := svc.ListAdvances(ctx, sailor.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestStatusUpdates(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	boat, err := svc.CreateBoat(ctx, CreateBoatInput{Name: "Amel", Registration: "SF-101"})
	require.NoError(t, err)
	sailor, err := svc.CreateSailor(ctx, CreateSailorInput{BoatID: boat.ID, FirstName: "Ali", LastName: "Ben", Role: RoleDeckhand, Share: decimal.NewFromInt(1)})
	require.NoError(t, err)

	updatedBoat, err := svc.UpdateBoatStatus(ctx, boat.ID, BoatStatusMaintenance)
	require.NoError(t, err)
	require.Equal(t, BoatStatusMaintenance, updatedBoat.Status)
	require.Equal(t, BoatStatusMaintenance, repo.boats[boat.ID].Status)

	_, err = svc.UpdateBoatStatus(ctx, boat.ID, BoatStatus("SUNK"))
	require.ErrorIs(t, err, ErrInvalidStatus)
	_, err = svc.UpdateBoatStatus(ctx, uuid.New(), BoatStatusActive)
	require.ErrorIs(t, err, ErrNotFound)

	onLeave, err := svc.UpdateSailorStatus(ctx, sailor.ID, SailorStatusLeave)
	require.NoError(t, err)
	require.Equal(t, SailorStatusLeave, onLeave.Status)
	require.Equal(t, SailorStatusLeave, repo.sailors[sailor.ID].Status)

	_, err = svc.UpdateSailorStatus(ctx, sailor.ID, SailorStatus(""))
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestLedgerEditsFollowTripSettlement(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	tripID := uuid.New()
	repo.trips[tripID] = Trip{ID: tripID, BoatID: uuid.New(), Status: TripStatusCompleted}

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{TripID: tripID, Number: "F-1", Client: "Marché", Amount: money.MustParse("100"), SoldAt: fixedNow})
	require.NoError(t, err)
	exp, err := svc.CreateExpense(ctx, CreateExpenseInput{TripID: tripID, Category: ExpenseFuel, Amount: money.MustParse("40"), SpentAt: fixedNow})
	require.NoError(t, err)

	edited, err := svc.UpdateInvoice(ctx, inv.ID, UpdateInvoiceInput{Number: "F-1b", Client: " Criée ", Amount: money.MustParse("120"), SoldAt: fixedNow})
	require.NoError(t, err)
	require.Equal(t, "Criée", edited.Client)
	require.Equal(t, tripID, edited.TripID)
	invoices, err := svc.ListInvoices(ctx, tripID)
	require.NoError(t, err)
	require.Equal(t, money.MustParse("120"), invoices[0].Amount)

	_, err = svc.UpdateInvoice(ctx, inv.ID, UpdateInvoiceInput{Number: "F-1", Client: "Marché", Amount: money.Zero, SoldAt: fixedNow})
	require.ErrorIs(t, err, ErrInvalidAmount)

	editedExp, err := svc.UpdateExpense(ctx, exp.ID, UpdateExpenseInput{Category: ExpenseIce, Amount: money.MustParse("35"), SpentAt: fixedNow})
	require.NoError(t, err)
	require.Equal(t, ExpenseIce, editedExp.Category)

	trip := repo.trips[tripID]
	trip.Settled = true
	repo.trips[tripID] = trip

	_, err = svc.UpdateInvoice(ctx, inv.ID, UpdateInvoiceInput{Number: "F-1", Client: "Marché", Amount: money.MustParse("1"), SoldAt: fixedNow})
	require.ErrorIs(t, err, ErrTripSettled)
	require.ErrorIs(t, svc.DeleteInvoice(ctx, inv.ID), ErrTripSettled)
	_, err = svc.UpdateExpense(ctx, exp.ID, UpdateExpenseInput{Category: ExpenseFuel, Amount: money.MustParse("1"), SpentAt: fixedNow})
	require.ErrorIs(t, err, ErrTripSettled)
	require.ErrorIs(t, svc.DeleteExpense(ctx, exp.ID), ErrTripSettled)

	trip.Settled = false
	repo.trips[tripID] = trip
	require.NoError(t, svc.DeleteInvoice(ctx, inv.ID))
	require.NoError(t, svc.DeleteExpense(ctx, exp.ID))
	require.ErrorIs(t, svc.DeleteInvoice(ctx, inv.ID), ErrNotFound)

	expenses, err := svc.ListExpenses(ctx, tripID)
	require.NoError(t, err)
	require.Empty(t, expenses)
}

func TestAdvanceEditsStopOnceNetted(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	boat, err := svc.CreateBoat(ctx, CreateBoatInput{Name: "Amel", Registration: "SF-101"})
	require.NoError(t, err)
	sailor, err := svc.CreateSailor(ctx, CreateSailorInput{BoatID: boat.ID, FirstName: "Ali", LastName: "Ben", Role: RoleDeckhand, Share: decimal.NewFromInt(1)})
	require.NoError(t, err)

	early, err := svc.CreateAdvance(ctx, CreateAdvanceInput{SailorID: sailor.ID, Amount: money.MustParse("50"), GivenAt: fixedNow.Add(-72 * time.Hour)})
	require.NoError(t, err)
	late, err := svc.CreateAdvance(ctx, CreateAdvanceInput{SailorID: sailor.ID, Amount: money.MustParse("20"), GivenAt: fixedNow})
	require.NoError(t, err)

	repo.settled[sailor.ID] = fixedNow.Add(-24 * time.Hour)

	_, err = svc.UpdateAdvance(ctx, early.ID, UpdateAdvanceInput{Amount: money.MustParse("60"), GivenAt: fixedNow})
	require.ErrorIs(t, err, ErrAdvanceSettled)
	require.ErrorIs(t, svc.DeleteAdvance(ctx, early.ID), ErrAdvanceSettled)

	_, err = svc.UpdateAdvance(ctx, late.ID, UpdateAdvanceInput{Amount: money.MustParse("25"), GivenAt: fixedNow.Add(-48 * time.Hour)})
	require.ErrorIs(t, err, ErrAdvanceSettled, "moving an advance into a settled window is rejected")

	updated, err := svc.UpdateAdvance(ctx, late.ID, UpdateAdvanceInput{Amount: money.MustParse("25"), GivenAt: fixedNow.Add(time.Hour), Description: " fuel money "})
	require.NoError(t, err)
	require.Equal(t, money.MustParse("25"), updated.Amount)
	require.Equal(t, "fuel money", updated.Description)

	require.NoError(t, svc.DeleteAdvance(ctx, late.ID))
	list, err := svc.ListAdvances(ctx, sailor.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, early.ID, list[0].ID)
}

func TestRecordAttendance(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	boat, err := svc.CreateBoat(ctx, CreateBoatInput{Name: "Amel", Registration: "SF-101"})
	require.NoError(t, err)
	other, err := svc.CreateBoat(ctx, CreateBoatInput{Name: "Yasmine", Registration: "SF-202"})
	require.NoError(t, err)
	sailor, err := svc.CreateSailor(ctx, CreateSailorInput{BoatID: boat.ID, FirstName: "Ali", LastName: "Ben", Role: RoleDeckhand, Share: decimal.NewFromInt(1)})
	require.NoError(t, err)
	stranger, err := svc.CreateSailor(ctx, CreateSailorInput{BoatID: other.ID, FirstName: "Omar", LastName: "Sassi", Role: RoleDeckhand, Share: decimal.NewFromInt(1)})
	require.NoError(t, err)
	trip, err := svc.CreateTrip(ctx, CreateTripInput{BoatID: boat.ID, DepartureAt: fixedNow, Destination: "Kerkennah"})
	require.NoError(t, err)

	first, err := svc.RecordAttendance(ctx, trip.ID, RecordAttendanceInput{SailorID: sailor.ID, Present: true})
	require.NoError(t, err)
	second, err := svc.RecordAttendance(ctx, trip.ID, RecordAttendanceInput{SailorID: sailor.ID, Present: false, Observations: " sick ashore "})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "sick ashore", second.Observations)

	rows, err := svc.ListAttendance(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.False(t, rows[0].Present)

	_, err = svc.RecordAttendance(ctx, trip.ID, RecordAttendanceInput{SailorID: stranger.ID, Present: true})
	require.ErrorIs(t, err, ErrSailorNotOnBoat)

	settled := repo.trips[trip.ID]
	settled.Settled = true
	repo.trips[trip.ID] = settled
	_, err = svc.RecordAttendance(ctx, trip.ID, RecordAttendanceInput{SailorID: sailor.ID, Present: true})
	require.ErrorIs(t, err, ErrTripSettled)
}

func mustUUID(t *testing.T, raw string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(raw)
	require.NoError(t, err)
	return id
}
