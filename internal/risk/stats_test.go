package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defiquant/yre/internal/types"
)

func seriesFrom(values ...float64) []types.PricePoint {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]types.PricePoint, len(values))
	for i, v := range values {
		points[i] = types.PricePoint{Date: start.AddDate(0, 0, i), Value: v}
	}
	return points
}

func TestCalculateVolatility_ConstantSeriesIsZero(t *testing.T) {
	vol, err := CalculateVolatility(seriesFrom(10, 10, 10, 10), 365)
	require.NoError(t, err)
	assert.InDelta(t, 0, vol, 1e-12)
}

func TestCalculateVolatility_SortsOutOfOrderPoints(t *testing.T) {
	ordered := seriesFrom(10, 11, 9, 12)
	shuffled := []types.PricePoint{ordered[2], ordered[0], ordered[3], ordered[1]}

	volOrdered, err := CalculateVolatility(ordered, 365)
	require.NoError(t, err)
	volShuffled, err := CalculateVolatility(shuffled, 365)
	require.NoError(t, err)
	assert.InDelta(t, volOrdered, volShuffled, 1e-12)
	assert.Greater(t, volOrdered, 0.0)
}

func TestCalculateVolatility_InsufficientData(t *testing.T) {
	_, err := CalculateVolatility(seriesFrom(10), 365)
	assert.ErrorIs(t, err, ErrInsufficientDataVolatility)
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	sample := []float64{1, 2, 3, 4, 5}

	p50, err := Percentile(sample, 50)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, p50, 1e-12)

	p25, err := Percentile(sample, 25)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, p25, 1e-12)

	p10, err := Percentile(sample, 10)
	require.NoError(t, err)
	assert.InDelta(t, 1.4, p10, 1e-12)
}

func TestValueAtRisk_PicksLossTail(t *testing.T) {
	// 5th percentile of 20 evenly spread returns.
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = float64(i-10) / 100 // -0.10 .. 0.09
	}
	v, err := ValueAtRisk(returns, 95)
	require.NoError(t, err)
	assert.Less(t, v, 0.0)
	assert.InDelta(t, -0.0905, v, 1e-12)
}

func TestConditionalValueAtRisk_AtOrBelowVaR(t *testing.T) {
	returns := []float64{-0.10, -0.05, -0.02, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06, 0.07}
	v, err := ValueAtRisk(returns, 95)
	require.NoError(t, err)
	cvar, err := ConditionalValueAtRisk(returns, 95)
	require.NoError(t, err)
	assert.LessOrEqual(t, cvar, v)
}

func TestMaxDrawdown_PeakToTrough(t *testing.T) {
	// Peak 120 to trough 90: 25% drawdown, later recovery ignored.
	dd, err := MaxDrawdown([]float64{100, 120, 90, 110, 115})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, dd, 1e-12)
}

func TestMaxDrawdown_MonotoneRiseIsZero(t *testing.T) {
	dd, err := MaxDrawdown([]float64{100, 101, 102, 105})
	require.NoError(t, err)
	assert.Equal(t, 0.0, dd)
}

func TestSharpeRatio_ZeroDispersionSentinel(t *testing.T) {
	sharpe, err := SharpeRatio([]float64{0.01, 0.01, 0.01}, 0, 365)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sharpe)
}

func TestSharpeRatio_PositiveDrift(t *testing.T) {
	sharpe, err := SharpeRatio([]float64{0.01, 0.02, 0.015, 0.012, 0.018}, 0, 365)
	require.NoError(t, err)
	assert.Greater(t, sharpe, 0.0)
}

func TestSortinoRatio_NoDownsideSentinel(t *testing.T) {
	// All gains: +Inf with positive mean excess.
	sortino, err := SortinoRatio([]float64{0.01, 0.02, 0.03}, 0, 365)
	require.NoError(t, err)
	assert.True(t, math.IsInf(sortino, 1))

	// All zeros: no downside, no drift either.
	sortino, err = SortinoRatio([]float64{0, 0, 0}, 0, 365)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sortino)
}

func TestSortinoRatio_PenalizesOnlyDownside(t *testing.T) {
	mixed := []float64{0.02, -0.01, 0.03, -0.02, 0.01}
	sortino, err := SortinoRatio(mixed, 0, 365)
	require.NoError(t, err)
	sharpe, err := SharpeRatio(mixed, 0, 365)
	require.NoError(t, err)
	// Downside deviation over a mixed sample is smaller than total deviation.
	assert.Greater(t, sortino, sharpe)
}

func TestCalculateReturnStats_Bundle(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.03, -0.01, 0.02, 0.005, -0.015, 0.025}
	stats, err := CalculateReturnStats(returns, 0, 365)
	require.NoError(t, err)
	assert.Greater(t, stats.StdDev, 0.0)
	assert.Less(t, stats.ValueAtRisk95, 0.0)
	assert.LessOrEqual(t, stats.CVaR95, stats.ValueAtRisk95)
}

func TestCalculateReturnStats_EmptySample(t *testing.T) {
	_, err := CalculateReturnStats(nil, 0, 365)
	assert.ErrorIs(t, err, types.ErrInsufficientData)
}
