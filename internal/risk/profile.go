/*

This file assembles the per-snapshot RiskProfile for a position from the
solvency, hedge, and distribution metrics, and applies the coarse risk
banding.

*/

package risk

import (
	"errors"
	"math"

	"github.com/defiquant/yre/internal/logger"
	"github.com/defiquant/yre/internal/types"
)

var profileLogger = logger.GetForComponent("risk_profile")

// Risk banding thresholds. HIGH means liquidation is a live concern on the
// horizon; MEDIUM means the position needs watching.
const (
	highHealthFactorBar   = 1.2
	mediumHealthFactorBar = 1.6
	highPDBar             = 0.05
	mediumPDBar           = 0.01
)

// ProfileInputs carries everything needed to derive one RiskProfile snapshot.
type ProfileInputs struct {
	CollateralQty    float64
	CollateralPrice  float64
	DebtQty          float64
	DebtPrice        float64
	LiqThreshold     float64
	StakedExposure   float64   // USD staked leg
	ShortExposure    float64   // USD perp short leg, 0 for unhedged strategies
	AnnualVolatility float64   // collateral volatility for the PD model
	PDHorizonDays    float64   // horizon for probability of default
	DailyReturns     []float64 // position return history, decimal per day
}

// BuildProfile derives a full RiskProfile from one position snapshot.
func BuildProfile(in ProfileInputs) (types.RiskProfile, error) {
	hf, err := CalculateHealthFactor(in.CollateralQty, in.CollateralPrice, in.DebtQty, in.DebtPrice, in.LiqThreshold)
	if err != nil {
		return types.RiskProfile{}, errors.Join(errors.New("health factor calculation failed"), err)
	}

	liqPrice, err := CalculateLiquidationPrice(in.CollateralQty, in.DebtQty, in.DebtPrice, in.LiqThreshold)
	if err != nil {
		return types.RiskProfile{}, errors.Join(errors.New("liquidation price calculation failed"), err)
	}

	distancePct := 100.0
	if in.CollateralPrice > 0 && !math.IsInf(liqPrice, 0) {
		distancePct = (in.CollateralPrice - liqPrice) / in.CollateralPrice * 100
	}

	exposure, err := CalculateDeltaExposure(in.StakedExposure, in.ShortExposure)
	if err != nil {
		return types.RiskProfile{}, errors.Join(errors.New("delta exposure calculation failed"), err)
	}

	pd, err := CalculateProbabilityOfDefault(hf, in.AnnualVolatility, in.PDHorizonDays)
	if err != nil {
		return types.RiskProfile{}, errors.Join(errors.New("probability of default calculation failed"), err)
	}

	profile := types.RiskProfile{
		HealthFactor:             hf,
		LiquidationPrice:         liqPrice,
		DistanceToLiquidationPct: distancePct,
		HedgeRatio:               exposure.HedgeRatio,
		ProbabilityOfDefault:     pd,
	}

	// Distribution metrics only when a return history exists; a fresh position
	// has no sample yet and keeps zero values.
	if len(in.DailyReturns) > 0 {
		stats, err := CalculateReturnStats(in.DailyReturns, 0, 365)
		if err != nil {
			return types.RiskProfile{}, errors.Join(errors.New("return stats calculation failed"), err)
		}
		profile.ValueAtRisk1d = stats.ValueAtRisk95 * 100
		profile.ValueAtRisk7d = stats.ValueAtRisk95 * math.Sqrt(7) * 100
		profile.SharpeRatio = stats.SharpeRatio
		profile.SortinoRatio = stats.SortinoRatio
	}

	profile.RiskLevel = classify(hf, pd)

	profileLogger.Debug().
		Float64("healthFactor", hf).
		Float64("liquidationPrice", liqPrice).
		Float64("hedgeRatio", exposure.HedgeRatio).
		Float64("probabilityOfDefault", pd).
		Str("riskLevel", string(profile.RiskLevel)).
		Msg("Risk profile assembled")

	return profile, nil
}

func classify(healthFactor, probabilityOfDefault float64) types.RiskLevel {
	switch {
	case healthFactor < highHealthFactorBar || probabilityOfDefault > highPDBar:
		return types.RiskHigh
	case healthFactor < mediumHealthFactorBar || probabilityOfDefault > mediumPDBar:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}
