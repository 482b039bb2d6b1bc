package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fleetpay/fleetpay/internal/fleet"
	"github.com/fleetpay/fleetpay/internal/money"
)

// SplitInput carries everything the profit split needs.
type SplitInput struct {
	Revenue     money.Money
	Expense     money.Money
	TotalNights int
	NightlyRate money.Money
	Crew        []fleet.Sailor
}

// Split divides net profit between owner and crew, deducts the crew night
// allowance and apportions the remainder by share weight. The gross shares
// always add up to the apportionable amount.
func Split(in SplitInput) (SplitResult, error) {
	weights := make([]decimal.Decimal, len(in.Crew))
	sumShares := decimal.Zero
	for i, s := range in.Crew {
		weights[i] = s.Share
		sumShares = sumShares.Add(s.Share)
	}
	if !sumShares.IsPositive() {
		return SplitResult{}, ErrNoShareBasis
	}

	net := in.Revenue.Sub(in.Expense)
	owner := net.MulRatio(ownerShareRatio)
	crewPart := net.Sub(owner)
	deduction := NightAllowance(in.TotalNights, len(in.Crew), in.NightlyRate)
	apportionable := crewPart.Sub(deduction)

	gross, err := money.Allocate(apportionable, weights)
	if err != nil {
		return SplitResult{}, fmt.Errorf("payroll: apportion: %w", err)
	}
	bonus := in.NightlyRate.Times(int64(in.TotalNights))

	res := SplitResult{
		NetProfit:      net,
		OwnerPart:      owner,
		CrewPart:       crewPart,
		TotalNights:    in.TotalNights,
		CrewCount:      len(in.Crew),
		NightlyRate:    in.NightlyRate,
		NightDeduction: deduction,
		Apportionable:  apportionable,
		Members:        make([]MemberShare, len(in.Crew)),
	}
	for i, s := range in.Crew {
		res.Members[i] = MemberShare{Sailor: s, GrossShare: gross[i], NightBonus: bonus}
	}

	if net.IsNegative() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("net profit is negative (%s)", net))
	}
	if apportionable.IsNegative() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("crew part %s does not cover night allowance %s", crewPart, deduction))
	}
	for _, s := range in.Crew {
		if s.Share.IsZero() {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s has a zero share", s.FullName()))
		}
	}
	return res, nil
}
