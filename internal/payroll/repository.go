package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/fleetpay/internal/fleet"
	"github.com/fleetpay/fleetpay/internal/platform/db"
)

// Repository persists calculation records and payments. Ledger, crew and
// advance reads are delegated to the fleet repository.
type Repository struct {
	*fleet.Repository
	pool *pgxpool.Pool
}

// NewRepository constructs a payroll repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Repository: fleet.NewRepository(pool), pool: pool}
}

// Commit stages reported by CommitError.
const (
	StageInsertRecord  = "insert_record"
	StageInsertMembers = "insert_members"
	StageSettleTrips   = "settle_trips"
	StageCommit        = "commit"
)

func (r *Repository) GetTrips(ctx context.Context, ids []uuid.UUID) ([]fleet.Trip, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+fleet.TripColumns+` FROM trips WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []fleet.Trip
	for rows.Next() {
		t, err := fleet.ScanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) ListEligibleTrips(ctx context.Context, boatID uuid.UUID) ([]fleet.Trip, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+fleet.TripColumns+` FROM trips
		WHERE boat_id = $1 AND status = $2 AND settled = false
		ORDER BY departure_at, id`, boatID, fleet.TripStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []fleet.Trip{}
	for rows.Next() {
		t, err := fleet.ScanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) ListActiveCrew(ctx context.Context, boatID uuid.UUID) ([]fleet.Sailor, error) {
	sailors, err := r.Repository.ListSailorsByBoat(ctx, boatID)
	if err != nil {
		return nil, err
	}
	active := sailors[:0]
	for _, s := range sailors {
		if s.Status == fleet.SailorStatusActive {
			active = append(active, s)
		}
	}
	return active, nil
}

func (r *Repository) LastComputedAt(ctx context.Context, sailorID uuid.UUID) (time.Time, error) {
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

// --- Payments ---

const paymentColumns = `id, calculation_id, sailor_id, amount_minor, paid_at, trip_ids, description, idempotency_key, created_at`

func scanPayments(rows pgx.Rows) ([]Payment, error) {
	defer rows.Close()
	out := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.CalculationID, &p.SailorID, &p.Amount, &p.PaidAt, &p.TripIDs, &p.Description, &p.IdempotencyKey, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) ListPaymentsBySailor(ctx context.Context, sailorID uuid.UUID) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE sailor_id = $1 ORDER BY paid_at, id`, sailorID)
	if err != nil {
		return nil, err
	}
	return scanPayments(rows)
}

func (r *Repository) ListPaymentsByCalculation(ctx context.Context, calculationID uuid.UUID) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE calculation_id = $1 ORDER BY paid_at, id`, calculationID)
	if err != nil {
		return nil, err
	}
	return scanPayments(rows)
}

func (r *Repository) InsertPayment(ctx context.Context, p Payment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.CalculationID, p.SailorID, p.Amount, p.PaidAt, p.TripIDs, p.Description, p.IdempotencyKey, p.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicatePayment
		}
		return err
	}
	return nil
}

// --- Calculation records ---

// CommitCalculation stores the record and its member lines and flips every
// trip to settled in one transaction. A trip that is no longer completed and
// unsettled rolls the whole transaction back.
func (r *Repository) CommitCalculation(ctx context.Context, rec CalculationRecord) error {
	stage := StageInsertRecord
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO calculations (id, boat_id, trip_ids, computed_at, revenue_minor, expense_minor,
				net_profit_minor, owner_part_minor, crew_part_minor, total_nights, crew_count,
				nightly_rate_minor, night_deduction_minor, apportionable_minor, warnings)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			rec.ID, rec.BoatID, rec.TripIDs, rec.ComputedAt, rec.RevenueTotal, rec.ExpenseTotal,
			rec.NetProfit, rec.OwnerPart, rec.CrewPart, rec.TotalNights, rec.CrewCount,
			rec.NightlyRate, rec.NightDeduction, rec.Apportionable, nonNilStrings(rec.Warnings)); err != nil {
			return err
		}

		stage = StageInsertMembers
		batch := &pgx.Batch{}
		for i, m := range rec.Members {
			batch.Queue(`
				INSERT INTO calculation_members (calculation_id, position, sailor_id, name, role, share,
					gross_share_minor, night_bonus_minor, advances_minor, payments_minor, balance_minor)
				VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11)`,
				rec.ID, i, m.SailorID, m.Name, m.Role, m.Share.String(),
				m.GrossShare, m.NightBonus, m.AdvancesNetted, m.PaymentsNetted, m.BalanceDue)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		stage = StageSettleTrips
		tag, err := tx.Exec(ctx, `
			UPDATE trips SET settled = true, updated_at = $3
			WHERE id = ANY($1) AND settled = false AND status = $2`,
			rec.TripIDs, fleet.TripStatusCompleted, rec.ComputedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != int64(len(rec.TripIDs)) {
			return fmt.Errorf("%w: %d of %d trips still eligible", ErrConcurrentSettlement, tag.RowsAffected(), len(rec.TripIDs))
		}
		stage = StageCommit
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConcurrentSettlement) {
		return err
	}
	return &CommitError{CalculationID: rec.ID, Stage: stage, Err: err}
}

// ReopenTrips clears the settled flag on trips of boatID. Every trip must be
// settled and belong to the boat or nothing changes.
func (r *Repository) ReopenTrips(ctx context.Context, boatID uuid.UUID, tripIDs []uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE trips SET settled = false, updated_at = NOW()
			WHERE id = ANY($1) AND boat_id = $2 AND settled = true`, tripIDs, boatID)
		if err != nil {
			return fmt.Errorf("payroll: reopen trips: %w", err)
		}
		if tag.RowsAffected() != int64(len(tripIDs)) {
			return fmt.Errorf("%w: %d of %d trips settled for boat", ErrTripNotSettled, tag.RowsAffected(), len(tripIDs))
		}
		return nil
	})
}

const calculationColumns = `id, boat_id, trip_ids, computed_at, revenue_minor, expense_minor,
	net_profit_minor, owner_part_minor, crew_part_minor, total_nights, crew_count,
	nightly_rate_minor, night_deduction_minor, apportionable_minor, warnings`

func scanCalculation(row pgx.Row) (CalculationRecord, error) {
	var rec CalculationRecord
	err := row.Scan(&rec.ID, &rec.BoatID, &rec.TripIDs, &rec.ComputedAt, &rec.RevenueTotal, &rec.ExpenseTotal,
		&rec.NetProfit, &rec.OwnerPart, &rec.CrewPart, &rec.TotalNights, &rec.CrewCount,
		&rec.NightlyRate, &rec.NightDeduction, &rec.Apportionable, &rec.Warnings)
	return rec, err
}

func (r *Repository) GetCalculation(ctx context.Context, id uuid.UUID) (CalculationRecord, error) {
	rec, err := scanCalculation(r.pool.QueryRow(ctx, `SELECT `+calculationColumns+` FROM calculations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CalculationRecord{}, ErrNotFound
		}
		return CalculationRecord{}, err
	}
	records := []CalculationRecord{rec}
	if err := r.attachMembers(ctx, records); err != nil {
		return CalculationRecord{}, err
	}
	return records[0], nil
}

func (r *Repository) ListCalculations(ctx context.Context, boatID uuid.UUID, limit, offset int) ([]CalculationRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM calculations WHERE boat_id = $1`, boatID).Scan(&total); err != nil {
		return nil, 0, err
	}
	records, err := r.queryCalculations(ctx, `
		SELECT `+calculationColumns+` FROM calculations
		WHERE boat_id = $1 ORDER BY computed_at DESC, id LIMIT $2 OFFSET $3`, boatID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *Repository) ListCalculationsSince(ctx context.Context, since time.Time) ([]CalculationRecord, error) {
	return r.queryCalculations(ctx, `
		SELECT `+calculationColumns+` FROM calculations
		WHERE computed_at >= $1 ORDER BY computed_at, id`, since)
}

func (r *Repository) queryCalculations(ctx context.Context, sql string, args ...any) ([]CalculationRecord, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	records := []CalculationRecord{}
	for rows.Next() {
		rec, err := scanCalculation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachMembers(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Repository) attachMembers(ctx context.Context, records []CalculationRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(records))
	index := make(map[uuid.UUID]int, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		index[rec.ID] = i
	}
	rows, err := r.pool.Query(ctx, `
		SELECT calculation_id, sailor_id, name, role, share::text, gross_share_minor, night_bonus_minor,
			advances_minor, payments_minor, balance_minor
		FROM calculation_members
		WHERE calculation_id = ANY($1)
		ORDER BY calculation_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			calcID uuid.UUID
			share  string
			m      MemberDetail
		)
		if err := rows.Scan(&calcID, &m.SailorID, &m.Name, &m.Role, &share, &m.GrossShare, &m.NightBonus,
			&m.AdvancesNetted, &m.PaymentsNetted, &m.BalanceDue); err != nil {
			return err
		}
		if m.Share, err = decimal.NewFromString(share); err != nil {
			return fmt.Errorf("payroll: member %s share: %w", m.SailorID, err)
		}
		i := index[calcID]
		records[i].Members = append(records[i].Members, m)
	}
	return rows.Err()
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
