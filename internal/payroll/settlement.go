package payroll

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetpay/fleetpay/internal/fleet"
	"github.com/fleetpay/fleetpay/internal/money"
)

// MemberHistory is the settlement state of a sailor before a new computation.
type MemberHistory struct {
	// LastComputedAt is the latest computation including the sailor; zero if none.
	LastComputedAt time.Time
	Advances       []fleet.Advance
	Payments       []Payment
}

// OutstandingAdvances sums advances given after the last computation and not
// after asOf.
func OutstandingAdvances(advances []fleet.Advance, lastComputedAt, asOf time.Time) money.Money {
	total := money.Zero
	for _, a := range advances {
		if !a.GivenAt.After(lastComputedAt) || a.GivenAt.After(asOf) {
			continue
		}
		total = total.Add(a.Amount)
	}
	return total
}

// PaymentsInScope sums payments whose trip ids intersect scope.
func PaymentsInScope(payments []Payment, scope []uuid.UUID) money.Money {
	in := make(map[uuid.UUID]struct{}, len(scope))
	for _, id := range scope {
		in[id] = struct{}{}
	}
	total := money.Zero
	for _, p := range payments {
		for _, id := range p.TripIDs {
			if _, ok := in[id]; ok {
				total = total.Add(p.Amount)
				break
			}
		}
	}
	return total
}

// Settle nets a member's gross share and night bonus against outstanding
// advances and payments already made on the same trips.
func Settle(member MemberShare, history MemberHistory, asOf time.Time, scope []uuid.UUID) MemberDetail {
	advances := OutstandingAdvances(history.Advances, history.LastComputedAt, asOf)
	paid := PaymentsInScope(history.Payments, scope)
	return MemberDetail{
		SailorID:       member.Sailor.ID,
		Name:           member.Sailor.FullName(),
		Role:           member.Sailor.Role,
		Share:          member.Sailor.Share,
		GrossShare:     member.GrossShare,
		NightBonus:     member.NightBonus,
		AdvancesNetted: advances,
		PaymentsNetted: paid,
		BalanceDue:     member.GrossShare.Add(member.NightBonus).Sub(advances).Sub(paid),
	}
}

// CurrentBalance is the member's entitlement less every payment on the
// record's trips, including those recorded after the snapshot.
func CurrentBalance(detail MemberDetail, payments []Payment, scope []uuid.UUID) (paid, balance money.Money) {
	paid = PaymentsInScope(payments, scope)
	return paid, detail.Entitlement().Sub(paid)
}

// ValidatePayment checks amount against the current balance.
func ValidatePayment(amount, balance money.Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount > balance {
		return ErrPaymentExceedsBalance
	}
	return nil
}
