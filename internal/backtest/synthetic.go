/*

This file contains the synthetic series generator used for scenario testing
when no historical data is loaded. Generation is fully determined by the seed
so runs built on synthetic data stay reproducible.

*/

package backtest

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/defiquant/yre/internal/types"
)

// SyntheticParams describes one generated APY series. Values are annual
// percentages sampled daily; the process mean-reverts toward MeanAPY.
type SyntheticParams struct {
	AssetID        string
	StartDate      time.Time
	Days           int
	MeanAPY        float64 // long-run level, percentage
	Reversion      float64 // daily pull toward the mean, in (0,1]
	DailyVolAPY    float64 // stdev of the daily shock, percentage points
	GapProbability float64 // chance a day is dropped from the series
	Seed           int64
}

// GenerateSyntheticSeries produces a mean-reverting daily APY series. The
// series starts at the long-run mean and never goes below zero. Days dropped
// by GapProbability are simply absent, which exercises the simulator's
// forward-fill path.
func GenerateSyntheticSeries(params SyntheticParams) (types.PriceSeries, error) {
	if params.Days <= 0 {
		return types.PriceSeries{}, errors.Join(types.ErrInvalidInput, errors.New("days must be positive"))
	}
	if params.Reversion <= 0 || params.Reversion > 1 {
		return types.PriceSeries{}, errors.Join(types.ErrInvalidInput, errors.New("reversion must be in (0,1]"))
	}
	if params.DailyVolAPY < 0 || params.GapProbability < 0 || params.GapProbability >= 1 {
		return types.PriceSeries{}, errors.Join(types.ErrInvalidInput, errors.New("volatility must be non-negative and gap probability in [0,1)"))
	}

	rng := rand.New(rand.NewSource(params.Seed))
	start := params.StartDate.Truncate(24 * time.Hour)

	points := make([]types.PricePoint, 0, params.Days)
	level := params.MeanAPY
	for day := 0; day < params.Days; day++ {
		level += params.Reversion*(params.MeanAPY-level) + rng.NormFloat64()*params.DailyVolAPY
		level = math.Max(level, 0)

		if rng.Float64() < params.GapProbability {
			continue
		}
		points = append(points, types.PricePoint{
			Date:  start.AddDate(0, 0, day),
			Value: level,
		})
	}

	return types.PriceSeries{AssetID: params.AssetID, Points: points}, nil
}
