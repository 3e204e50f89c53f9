package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defiquant/yre/internal/types"
)

func syntheticParams(seed int64) SyntheticParams {
	return SyntheticParams{
		AssetID:     "pool-synth",
		StartDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:        365,
		MeanAPY:     12,
		Reversion:   0.1,
		DailyVolAPY: 1.5,
		Seed:        seed,
	}
}

func TestGenerateSyntheticSeries_SeedDeterminism(t *testing.T) {
	first, err := GenerateSyntheticSeries(syntheticParams(7))
	require.NoError(t, err)
	second, err := GenerateSyntheticSeries(syntheticParams(7))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	different, err := GenerateSyntheticSeries(syntheticParams(8))
	require.NoError(t, err)
	assert.NotEqual(t, first.Points, different.Points)
}

func TestGenerateSyntheticSeries_NeverNegative(t *testing.T) {
	params := syntheticParams(3)
	params.MeanAPY = 0.5
	params.DailyVolAPY = 5 // shocks dwarf the level

	series, err := GenerateSyntheticSeries(params)
	require.NoError(t, err)
	for _, point := range series.Points {
		assert.GreaterOrEqual(t, point.Value, 0.0)
	}
}

func TestGenerateSyntheticSeries_GapsExerciseForwardFill(t *testing.T) {
	params := syntheticParams(11)
	params.GapProbability = 0.2

	series, err := GenerateSyntheticSeries(params)
	require.NoError(t, err)
	assert.Less(t, len(series.Points), params.Days)
	assert.Greater(t, len(series.Points), params.Days/2)

	// A single-asset calendar only contains the days the series has, so the
	// gappy series still replays without recorded gaps.
	sim, err := New(Config{
		InitialCapital: 10000,
		Allocations:    map[string]float64{"pool-synth": 10000},
		Series:         map[string]types.PriceSeries{"pool-synth": series},
		Frequency:      types.RebalanceMonthly,
		CostRate:       0.001,
	})
	require.NoError(t, err)
	result, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.DataGaps)
}

func TestGenerateSyntheticSeries_Validation(t *testing.T) {
	params := syntheticParams(1)
	params.Days = 0
	_, err := GenerateSyntheticSeries(params)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	params = syntheticParams(1)
	params.Reversion = 0
	_, err = GenerateSyntheticSeries(params)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	params = syntheticParams(1)
	params.GapProbability = 1
	_, err = GenerateSyntheticSeries(params)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}
