// Package money holds currency amounts as integer minor units.
//
// Amounts use the two-decimal convention of the fleet's books (1 DT = 100
// minor units). Arithmetic on Money is exact; the only rounding points are
// FromDecimal and Allocate, both of which go through shopspring/decimal.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places carried by Money.
const Scale = 2

// Money is an amount in minor units.
type Money int64

// Zero is the zero amount.
const Zero Money = 0

var (
	// ErrPrecision is returned when an input carries more than Scale decimals.
	ErrPrecision = errors.New("money: too many decimal places")
	// ErrNoWeights is returned by Allocate when the weights sum to zero.
	ErrNoWeights = errors.New("money: weights must sum to a positive value")
	// ErrNegativeWeight is returned by Allocate for a negative weight.
	ErrNegativeWeight = errors.New("money: negative weight")
)

// FromMinor wraps a minor-unit count.
func FromMinor(minor int64) Money { return Money(minor) }

// FromUnits converts whole currency units.
func FromUnits(units int64) Money { return Money(units * 100) }

// Parse reads a decimal string such as "1133.33".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return fromExactDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal rounds d half away from zero to the minor unit.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(Scale).Round(0).IntPart())
}

func fromExactDecimal(d decimal.Decimal) (Money, error) {
	shifted := d.Shift(Scale)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s", ErrPrecision, d.String())
	}
	return Money(shifted.IntPart()), nil
}

// Minor returns the raw minor-unit count.
func (m Money) Minor() int64 { return int64(m) }

// Decimal returns m in currency units.
func (m Money) Decimal() decimal.Decimal { return decimal.New(int64(m), -Scale) }

// Float64 returns m in currency units; for display and metrics only.
func (m Money) Float64() float64 { return m.Decimal().InexactFloat64() }

func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }
func (m Money) Neg() Money        { return -m }

// Times multiplies by an integer count (nights, sailors).
func (m Money) Times(n int64) Money { return m * Money(n) }

// MulRatio multiplies by r and rounds to the minor unit.
func (m Money) MulRatio(r decimal.Decimal) Money {
	return FromDecimal(m.Decimal().Mul(r))
}

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsNegative() bool { return m < 0 }
func (m Money) IsPositive() bool { return m > 0 }

// String formats m with exactly Scale decimals.
func (m Money) String() string { return m.Decimal().StringFixed(Scale) }

// MarshalJSON writes m as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	raw := string(data)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Decode lets envconfig populate Money fields.
func (m *Money) Decode(value string) error {
	parsed, err := Parse(value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Sum adds amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}

// Allocate splits total across weights proportionally. Each part is floored
// to the minor unit and the leftover units go to the largest remainders, so
// the parts always add up to total. A negative total is allocated by
// magnitude and negated.
func Allocate(total Money, weights []decimal.Decimal) ([]Money, error) {
	sumW := decimal.Zero
	for _, w := range weights {
		if w.IsNegative() {
			return nil, ErrNegativeWeight
		}
		sumW = sumW.Add(w)
	}
	if !sumW.IsPositive() {
		return nil, ErrNoWeights
	}

	sign := int64(1)
	magnitude := int64(total)
	if magnitude < 0 {
		sign, magnitude = -1, -magnitude
	}
	whole := decimal.NewFromInt(magnitude)

	type share struct {
		idx int
		rem decimal.Decimal
	}
	parts := make([]Money, len(weights))
	candidates := make([]share, 0, len(weights))
	var allocated int64
	for i, w := range weights {
		if w.IsZero() {
			continue
		}
		exact := whole.Mul(w).Div(sumW)
		floor := exact.Floor()
		parts[i] = Money(floor.IntPart())
		allocated += floor.IntPart()
		candidates = append(candidates, share{idx: i, rem: exact.Sub(floor)})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].rem.GreaterThan(candidates[b].rem)
	})
	for left := magnitude - allocated; left > 0; left-- {
		c := candidates[int(left-1)%len(candidates)]
		parts[c.idx]++
	}
	if sign < 0 {
		for i := range parts {
			parts[i] = -parts[i]
		}
	}
	return parts, nil
}
