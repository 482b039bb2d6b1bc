package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weights(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestParseAndString(t *testing.T) {
	m, err := Parse("1133.33")
	require.NoError(t, err)
	assert.Equal(t, Money(113333), m)
	assert.Equal(t, "1133.33", m.String())
	assert.Equal(t, "-0.50", MustParse("-0.5").String())
	assert.Equal(t, "5.00", FromUnits(5).String())

	_, err = Parse("1.005")
	require.ErrorIs(t, err, ErrPrecision)
	_, err = Parse("abc")
	require.Error(t, err)
}

func TestJSONRoundTripAcceptsStringsAndNumbers(t *testing.T) {
	var payload struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12.5,"b":"7.25"}`), &payload))
	assert.Equal(t, Money(1250), payload.A)
	assert.Equal(t, Money(725), payload.B)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":12.50,"b":7.25}`, string(raw))
}

func TestMulRatioRoundsHalfAwayFromZero(t *testing.T) {
	half := decimal.RequireFromString("0.5")
	assert.Equal(t, Money(175000), FromUnits(3500).MulRatio(half))
	assert.Equal(t, Money(1), Money(1).MulRatio(half))
	assert.Equal(t, Money(-1), Money(-1).MulRatio(half))
}

func TestAllocateConservesTotal(t *testing.T) {
	parts, err := Allocate(FromUnits(1700), weights(2, 1))
	require.NoError(t, err)
	assert.Equal(t, []Money{113333, 56667}, parts)
	assert.Equal(t, FromUnits(1700), Sum(parts...))

	cases := []struct {
		total   Money
		weights []float64
	}{
		{total: 100, weights: []float64{1, 1, 1}},
		{total: 1, weights: []float64{1, 1, 1}},
		{total: 99999, weights: []float64{1.5, 1.0, 1.2}},
		{total: -100, weights: []float64{1, 1, 1}},
		{total: 12345, weights: []float64{0, 3, 0, 7}},
	}
	for _, tc := range cases {
		parts, err := Allocate(tc.total, weights(tc.weights...))
		require.NoError(t, err)
		assert.Equal(t, tc.total, Sum(parts...), "weights %v", tc.weights)
		for i, w := range tc.weights {
			if w == 0 {
				assert.True(t, parts[i].IsZero(), "zero weight must receive nothing")
			}
		}
	}
}

func TestAllocateNegativeMirrorsPositive(t *testing.T) {
	pos, err := Allocate(FromUnits(1700), weights(2, 1))
	require.NoError(t, err)
	neg, err := Allocate(FromUnits(-1700), weights(2, 1))
	require.NoError(t, err)
	for i := range pos {
		assert.Equal(t, pos[i].Neg(), neg[i])
	}
}

func TestAllocateRejectsEmptyBasis(t *testing.T) {
	_, err := Allocate(100, weights(0, 0))
	require.ErrorIs(t, err, ErrNoWeights)
	_, err = Allocate(100, nil)
	require.ErrorIs(t, err, ErrNoWeights)
	_, err = Allocate(100, weights(1, -1))
	require.ErrorIs(t, err, ErrNegativeWeight)
}

func TestDecodeForEnvconfig(t *testing.T) {
	var m Money
	require.NoError(t, m.Decode("5"))
	assert.Equal(t, FromUnits(5), m)
}
