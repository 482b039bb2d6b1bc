package payroll

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fleetpay/fleetpay/internal/fleet"
)

// aggregateParallelism bounds concurrent per-trip reads.
const aggregateParallelism = 8

// LedgerReader loads the sales and costs booked against a trip.
type LedgerReader interface {
	ListInvoicesByTrip(ctx context.Context, tripID uuid.UUID) ([]fleet.SalesInvoice, error)
	ListExpensesByTrip(ctx context.Context, tripID uuid.UUID) ([]fleet.Expense, error)
}

// Aggregator totals revenue and expenses across trips.
type Aggregator struct {
	reader LedgerReader
}

// NewAggregator builds an Aggregator over reader.
func NewAggregator(reader LedgerReader) *Aggregator {
	return &Aggregator{reader: reader}
}

type tripLedger struct {
	invoices []fleet.SalesInvoice
	expenses []fleet.Expense
}

// Aggregate reads every trip concurrently and returns the combined ledger.
// Any failed read fails the whole aggregation with ErrAggregation.
func (a *Aggregator) Aggregate(ctx context.Context, tripIDs []uuid.UUID) (Ledger, error) {
	ids := uniqueIDs(tripIDs)
	if len(ids) == 0 {
		return Ledger{}, ErrNoTripsSelected
	}

	parts := make([]tripLedger, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(aggregateParallelism)
	for i, id := range ids {
		g.Go(func() error {
			invoices, err := a.reader.ListInvoicesByTrip(gctx, id)
			if err != nil {
				return fmt.Errorf("%w: trip %s invoices: %w", ErrAggregation, id, err)
			}
			expenses, err := a.reader.ListExpensesByTrip(gctx, id)
			if err != nil {
				return fmt.Errorf("%w: trip %s expenses: %w", ErrAggregation, id, err)
			}
			parts[i] = tripLedger{invoices: invoices, expenses: expenses}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Ledger{}, err
	}

	var ledger Ledger
	for _, p := range parts {
		for _, inv := range p.invoices {
			ledger.RevenueTotal = ledger.RevenueTotal.Add(inv.Amount)
		}
		for _, exp := range p.expenses {
			ledger.ExpenseTotal = ledger.ExpenseTotal.Add(exp.Amount)
		}
		ledger.Invoices = append(ledger.Invoices, p.invoices...)
		ledger.Expenses = append(ledger.Expenses, p.expenses...)
	}
	sort.Slice(ledger.Invoices, func(i, j int) bool {
		a, b := ledger.Invoices[i], ledger.Invoices[j]
		if !a.SoldAt.Equal(b.SoldAt) {
			return a.SoldAt.Before(b.SoldAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	sort.Slice(ledger.Expenses, func(i, j int) bool {
		a, b := ledger.Expenses[i], ledger.Expenses[j]
		if !a.SpentAt.Equal(b.SpentAt) {
			return a.SpentAt.Before(b.SpentAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	if ledger.Invoices == nil {
		ledger.Invoices = []fleet.SalesInvoice{}
	}
	if ledger.Expenses == nil {
		ledger.Expenses = []fleet.Expense{}
	}
	return ledger, nil
}

// uniqueIDs drops duplicates and nil ids, keeping first-seen order.
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
