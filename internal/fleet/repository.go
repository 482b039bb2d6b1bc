package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/fleetpay/internal/platform/db"
)

// ErrDuplicate indicates a unique constraint hit (registration, invoice number).
var ErrDuplicate = errors.New("fleet: duplicate entry")

// Repository provides PostgreSQL backed persistence for the fleet registry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func mapWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func mapReadErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- Boats ---

func (r *Repository) InsertBoat(ctx context.Context, b Boat) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO boats (id, name, registration, home_port, crew_capacity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.Name, b.Registration, b.HomePort, b.CrewCapacity, b.Status, b.CreatedAt, b.UpdatedAt)
	return mapWriteErr("insert boat", err)
}

const boatColumns = `id, name, registration, home_port, crew_capacity, status, created_at, updated_at`

func scanBoat(row pgx.Row) (Boat, error) {
	var b Boat
	err := row.Scan(&b.ID, &b.Name, &b.Registration, &b.HomePort, &b.CrewCapacity, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *Repository) GetBoat(ctx context.Context, id uuid.UUID) (Boat, error) {
	b, err := scanBoat(r.pool.QueryRow(ctx, `SELECT `+boatColumns+` FROM boats WHERE id = $1`, id))
	if err != nil {
		return Boat{}, mapReadErr(err)
	}
	return b, nil
}

func (r *Repository) ListBoats(ctx context.Context, limit, offset int) ([]Boat, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+boatColumns+` FROM boats ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Boat
	for rows.Next() {
		b, err := scanBoat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateBoatStatus(ctx context.Context, id uuid.UUID, status BoatStatus, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE boats SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Sailors ---

func (r *Repository) InsertSailor(ctx context.Context, s Sailor) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sailors (id, boat_id, first_name, last_name, role, share, status, hired_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10)`,
		s.ID, s.BoatID, s.FirstName, s.LastName, s.Role, s.Share.String(), s.Status, s.HiredAt, s.CreatedAt, s.UpdatedAt)
	return mapWriteErr("insert sailor", err)
}

const sailorColumns = `id, boat_id, first_name, last_name, role, share::text, status, hired_at, created_at, updated_at`

func scanSailor(row pgx.Row) (Sailor, error) {
	var s Sailor
	var share string
	if err := row.Scan(&s.ID, &s.BoatID, &s.FirstName, &s.LastName, &s.Role, &share, &s.Status, &s.HiredAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Sailor{}, err
	}
	parsed, err := decimal.NewFromString(share)
	if err != nil {
		return Sailor{}, fmt.Errorf("fleet: sailor %s share: %w", s.ID, err)
	}
	s.Share = parsed
	return s, nil
}

func (r *Repository) GetSailor(ctx context.Context, id uuid.UUID) (Sailor, error) {
	s, err := scanSailor(r.pool.QueryRow(ctx, `SELECT `+sailorColumns+` FROM sailors WHERE id = $1`, id))
	if err != nil {
		return Sailor{}, mapReadErr(err)
	}
	return s, nil
}

func (r *Repository) ListSailorsByBoat(ctx context.Context, boatID uuid.UUID) ([]Sailor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sailorColumns+` FROM sailors WHERE boat_id = $1 ORDER BY last_name, first_name, id`, boatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sailor
	for rows.Next() {
		s, err := scanSailor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateSailorShare(ctx context.Context, id uuid.UUID, share decimal.Decimal, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sailors SET share = $2::numeric, updated_at = $3 WHERE id = $1`, id, share.String(), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateSailorStatus(ctx context.Context, id uuid.UUID, status SailorStatus, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sailors SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SailorSettledThrough returns the latest computation time that included the
// sailor, or the zero time when none did. Advances up to that instant are netted.
func (r *Repository) SailorSettledThrough(ctx context.Context, sailorID uuid.UUID) (time.Time, error) {
	var last *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MAX(c.computed_at)
		FROM calculations c
		JOIN calculation_members m ON m.calculation_id = c.id
		WHERE m.sailor_id = $1`, sailorID).Scan(&last)
	if err != nil {
		return time.Time{}, err
	}
	if last == nil {
		return time.Time{}, nil
	}
	return last.UTC(), nil
}

// --- Trips ---

func (r *Repository) InsertTrip(ctx context.Context, t Trip) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trips (id, boat_id, departure_at, return_at, destination, status, settled, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.BoatID, t.DepartureAt, t.ReturnAt, t.Destination, t.Status, t.Settled, t.Notes, t.CreatedAt, t.UpdatedAt)
	return mapWriteErr("insert trip", err)
}

// TripColumns is shared with the payroll repository which reads the same table.
const TripColumns = `id, boat_id, departure_at, return_at, destination, status, settled, notes, created_at, updated_at`

// ScanTrip scans a row selected with TripColumns.
func ScanTrip(row pgx.Row) (Trip, error) {
	var t Trip
	err := row.Scan(&t.ID, &t.BoatID, &t.DepartureAt, &t.ReturnAt, &t.Destination, &t.Status, &t.Settled, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *Repository) GetTrip(ctx context.Context, id uuid.UUID) (Trip, error) {
	t, err := ScanTrip(r.pool.QueryRow(ctx, `SELECT `+TripColumns+` FROM trips WHERE id = $1`, id))
	if err != nil {
		return Trip{}, mapReadErr(err)
	}
	return t, nil
}

func (r *Repository) ListTripsByBoat(ctx context.Context, boatID uuid.UUID) ([]Trip, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+TripColumns+` FROM trips WHERE boat_id = $1 ORDER BY departure_at DESC, id`, boatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Trip
	for rows.Next() {
		t, err := ScanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTripStatus moves a trip from one status to another; the row must still
// be in the from status and unsettled.
func (r *Repository) UpdateTripStatus(ctx context.Context, id uuid.UUID, from, to TripStatus, returnAt *time.Time, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE trips SET status = $3, return_at = $4, updated_at = $5
		WHERE id = $1 AND status = $2 AND settled = false`,
		id, from, to, returnAt, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// --- Sales invoices ---

func (r *Repository) InsertInvoice(ctx context.Context, inv SalesInvoice) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sales_invoices (id, trip_id, number, client, amount_minor, sold_at, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		inv.ID, inv.TripID, inv.Number, inv.Client, inv.Amount, inv.SoldAt, inv.Details, inv.CreatedAt)
	return mapWriteErr("insert invoice", err)
}

const invoiceColumns = `id, trip_id, number, client, amount_minor, sold_at, details, created_at`

func scanInvoice(row pgx.Row) (SalesInvoice, error) {
	var inv SalesInvoice
	err := row.Scan(&inv.ID, &inv.TripID, &inv.Number, &inv.Client, &inv.Amount, &inv.SoldAt, &inv.Details, &inv.CreatedAt)
	return inv, err
}

func (r *Repository) GetInvoice(ctx context.Context, id uuid.UUID) (SalesInvoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE id = $1`, id))
	if err != nil {
		return SalesInvoice{}, mapReadErr(err)
	}
	return inv, nil
}

// unsettledTrip guards ledger edits against a concurrent payroll commit.
const unsettledTrip = `EXISTS (SELECT 1 FROM trips t WHERE t.id = trip_id AND t.settled = false)`

func (r *Repository) UpdateInvoice(ctx context.Context, inv SalesInvoice) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sales_invoices SET number = $2, client = $3, amount_minor = $4, sold_at = $5, details = $6
		WHERE id = $1 AND `+unsettledTrip,
		inv.ID, inv.Number, inv.Client, inv.Amount, inv.SoldAt, inv.Details)
	if err != nil {
		return mapWriteErr("update invoice", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTripSettled
	}
	return nil
}

func (r *Repository) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sales_invoices WHERE id = $1 AND `+unsettledTrip, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTripSettled
	}
	return nil
}

func (r *Repository) ListInvoicesByTrip(ctx context.Context, tripID uuid.UUID) ([]SalesInvoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE trip_id = $1 ORDER BY sold_at, id`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SalesInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// --- Expenses ---

func (r *Repository) InsertExpense(ctx context.Context, e Expense) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO expenses (id, trip_id, category, amount_minor, spent_at, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.TripID, e.Category, e.Amount, e.SpentAt, e.Description, e.CreatedAt)
	return mapWriteErr("insert expense", err)
}

const expenseColumns = `id, trip_id, category, amount_minor, spent_at, description, created_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.TripID, &e.Category, &e.Amount, &e.SpentAt, &e.Description, &e.CreatedAt)
	return e, err
}

func (r *Repository) GetExpense(ctx context.Context, id uuid.UUID) (Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
	if err != nil {
		return Expense{}, mapReadErr(err)
	}
	return e, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, e Expense) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE expenses SET category = $2, amount_minor = $3, spent_at = $4, description = $5
		WHERE id = $1 AND `+unsettledTrip,
		e.ID, e.Category, e.Amount, e.SpentAt, e.Description)
	if err != nil {
		return mapWriteErr("update expense", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTripSettled
	}
	return nil
}

func (r *Repository) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND `+unsettledTrip, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTripSettled
	}
	return nil
}

func (r *Repository) ListExpensesByTrip(ctx context.Context, tripID uuid.UUID) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE trip_id = $1 ORDER BY spent_at, id`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Advances ---

func (r *Repository) InsertAdvance(ctx context.Context, a Advance) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO advances (id, sailor_id, boat_id, amount_minor, given_at, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.SailorID, a.BoatID, a.Amount, a.GivenAt, a.Description, a.CreatedAt)
	return mapWriteErr("insert advance", err)
}

const advanceColumns = `id, sailor_id, boat_id, amount_minor, given_at, description, created_at`

func scanAdvance(row pgx.Row) (Advance, error) {
	var a Advance
	err := row.Scan(&a.ID, &a.SailorID, &a.BoatID, &a.Amount, &a.GivenAt, &a.Description, &a.CreatedAt)
	return a, err
}

func (r *Repository) GetAdvance(ctx context.Context, id uuid.UUID) (Advance, error) {
	a, err := scanAdvance(r.pool.QueryRow(ctx, `SELECT `+advanceColumns+` FROM advances WHERE id = $1`, id))
	if err != nil {
		return Advance{}, mapReadErr(err)
	}
	return a, nil
}

// unnettedAdvance matches advances given after the sailor's latest computation.
const unnettedAdvance = `given_at > COALESCE((
		SELECT MAX(c.computed_at) FROM calculations c
		JOIN calculation_members m ON m.calculation_id = c.id
		WHERE m.sailor_id = advances.sailor_id), '-infinity'::timestamptz)`

func (r *Repository) UpdateAdvance(ctx context.Context, a Advance) error {
	// The guard is evaluated against the stored given_at before the SET applies.
	tag, err := r.pool.Exec(ctx, `
		UPDATE advances SET amount_minor = $2, given_at = $3, description = $4
		WHERE id = $1 AND `+unnettedAdvance,
		a.ID, a.Amount, a.GivenAt, a.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAdvanceSettled
	}
	return nil
}

func (r *Repository) DeleteAdvance(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM advances WHERE id = $1 AND `+unnettedAdvance, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAdvanceSettled
	}
	return nil
}

func (r *Repository) ListAdvancesBySailor(ctx context.Context, sailorID uuid.UUID) ([]Advance, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+advanceColumns+` FROM advances WHERE sailor_id = $1 ORDER BY given_at, id`, sailorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Advance
	for rows.Next() {
		a, err := scanAdvance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Attendance ---

// UpsertAttendance stores one row per (trip, sailor), overwriting presence and
// observations on repeat calls.
func (r *Repository) UpsertAttendance(ctx context.Context, a Attendance) (Attendance, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO trip_attendance (id, trip_id, sailor_id, present, observations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (trip_id, sailor_id) DO UPDATE
		SET present = EXCLUDED.present, observations = EXCLUDED.observations, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`,
		a.ID, a.TripID, a.SailorID, a.Present, a.Observations, a.CreatedAt, a.UpdatedAt).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return Attendance{}, mapWriteErr("upsert attendance", err)
	}
	return a, nil
}

func (r *Repository) ListAttendanceByTrip(ctx context.Context, tripID uuid.UUID) ([]Attendance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.trip_id, a.sailor_id, a.present, a.observations, a.created_at, a.updated_at
		FROM trip_attendance a
		JOIN sailors s ON s.id = a.sailor_id
		WHERE a.trip_id = $1
		ORDER BY s.last_name, s.first_name, s.id`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attendance
	for rows.Next() {
		var a Attendance
		if err := rows.Scan(&a.ID, &a.TripID, &a.SailorID, &a.Present, &a.Observations, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
