package payroll

import (
	"time"

	"github.com/fleetpay/fleetpay/internal/fleet"
	"github.com/fleetpay/fleetpay/internal/money"
)

const night = 24 * time.Hour

// NightsFor counts the nights a trip spent at sea: the absolute span between
// departure and return, rounded up to whole days. A trip with no return
// counts zero.
func NightsFor(trip fleet.Trip) int {
	if trip.ReturnAt == nil {
		return 0
	}
	span := trip.ReturnAt.Sub(trip.DepartureAt)
	if span < 0 {
		span = -span
	}
	nights := int(span / night)
	if span%night != 0 {
		nights++
	}
	return nights
}

// TotalNights sums NightsFor over trips.
func TotalNights(trips []fleet.Trip) int {
	total := 0
	for _, t := range trips {
		total += NightsFor(t)
	}
	return total
}

// NightAllowance is totalNights × crewCount × rate.
func NightAllowance(totalNights, crewCount int, rate money.Money) money.Money {
	return rate.Times(int64(totalNights) * int64(crewCount))
}
