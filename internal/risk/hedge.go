/*

This file contains the hedge-quality metrics for delta-neutral positions:
net delta exposure, perp liquidation risk banding, and the hedge rebalance
trigger.

*/

package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/defiquant/yre/internal/logger"
	"github.com/defiquant/yre/internal/types"
)

var hedgeLogger = logger.GetForComponent("hedge_monitor")

// PerfectHedgeTolerance is the |hedge_ratio - 1| band inside which a position
// counts as fully hedged.
const PerfectHedgeTolerance = 0.01

// DefaultHedgeDriftThreshold is the drift beyond which a rebalance is flagged.
const DefaultHedgeDriftThreshold = 0.05

// DeltaExposure describes how well a short hedge covers a staked exposure.
type DeltaExposure struct {
	NetDelta        float64 `json:"net_delta"`   // staked - short
	HedgeRatio      float64 `json:"hedge_ratio"` // short / staked
	PerfectlyHedged bool    `json:"perfectly_hedged"`
}

// PerpLiquidationRisk describes the liquidation exposure of a short perp leg.
type PerpLiquidationRisk struct {
	UnrealizedPnL    float64         `json:"unrealized_pnl"`
	MarginRatio      float64         `json:"margin_ratio"`
	LiquidationPrice float64         `json:"liquidation_price"`
	DistancePct      float64         `json:"distance_pct"` // percentage, x100
	Level            types.RiskLevel `json:"level"`
}

// HedgeRebalance is the output of the drift check.
type HedgeRebalance struct {
	NeedsRebalance bool    `json:"needs_rebalance"`
	HedgeRatio     float64 `json:"hedge_ratio"`
	Adjustment     float64 `json:"adjustment"` // staked - short; positive means the short must grow
}

// CalculateDeltaExposure computes net delta and hedge ratio for a staked
// exposure covered by a perp short, both in the same units.
// Sentinels: a flat book (both zero) has ratio 1; a naked short against zero
// staked exposure has ratio +Inf.
func CalculateDeltaExposure(staked, short float64) (DeltaExposure, error) {
	for name, v := range map[string]float64{"staked": staked, "short": short} {
		if err := checkFinite(name, v); err != nil {
			return DeltaExposure{}, err
		}
	}
	if staked < 0 || short < 0 {
		return DeltaExposure{}, errors.Join(types.ErrInvalidInput, errors.New("exposures cannot be negative"))
	}

	ratio := 1.0
	switch {
	case staked == 0 && short == 0:
		// flat book, nothing to hedge
	case staked == 0:
		ratio = math.Inf(1)
	default:
		ratio = short / staked
	}

	return DeltaExposure{
		NetDelta:        staked - short,
		HedgeRatio:      ratio,
		PerfectlyHedged: math.Abs(ratio-1) < PerfectHedgeTolerance,
	}, nil
}

// CalculatePerpLiquidationRisk evaluates the short perp leg of a hedge:
//
//	pnl               = size * (entry - mark)
//	margin_ratio      = (margin + pnl) / (size * mark)
//	liquidation_price = entry + margin/size - maintenance_ratio * mark
//
// Risk bands on the distance between mark and liquidation price:
// HIGH below 10%, MEDIUM below 20%, LOW otherwise.
func CalculatePerpLiquidationRisk(size, entry, mark, margin, maintenanceRatio float64) (PerpLiquidationRisk, error) {
	for name, v := range map[string]float64{
		"size": size, "entry": entry, "mark": mark,
		"margin": margin, "maintenanceRatio": maintenanceRatio,
	} {
		if err := checkFinite(name, v); err != nil {
			return PerpLiquidationRisk{}, err
		}
	}
	if size <= 0 {
		return PerpLiquidationRisk{}, errors.Join(types.ErrInvalidInput, errors.New("position size must be positive"))
	}
	if entry <= 0 || mark <= 0 {
		return PerpLiquidationRisk{}, errors.Join(types.ErrInvalidInput, errors.New("prices must be positive"))
	}
	if margin < 0 {
		return PerpLiquidationRisk{}, errors.Join(types.ErrInvalidInput, errors.New("margin cannot be negative"))
	}
	if maintenanceRatio < 0 || maintenanceRatio >= 1 {
		return PerpLiquidationRisk{}, errors.Join(types.ErrInvalidInput, fmt.Errorf("maintenance ratio must be in [0,1), got %f", maintenanceRatio))
	}

	pnl := size * (entry - mark)
	marginRatio := (margin + pnl) / (size * mark)
	liquidationPrice := entry + margin/size - maintenanceRatio*mark
	distancePct := math.Abs(liquidationPrice-mark) / mark * 100

	level := types.RiskLow
	switch {
	case distancePct < 10:
		level = types.RiskHigh
	case distancePct < 20:
		level = types.RiskMedium
	}

	hedgeLogger.Debug().
		Float64("unrealizedPnL", pnl).
		Float64("marginRatio", marginRatio).
		Float64("liquidationPrice", liquidationPrice).
		Float64("distancePct", distancePct).
		Str("level", string(level)).
		Msg("Perp liquidation risk evaluated")

	return PerpLiquidationRisk{
		UnrealizedPnL:    pnl,
		MarginRatio:      marginRatio,
		LiquidationPrice: liquidationPrice,
		DistancePct:      distancePct,
		Level:            level,
	}, nil
}

// CheckHedgeRebalance flags a rebalance when the hedge ratio drifts more than
// threshold away from 1. The adjustment is the short-size change (in exposure
// units) that restores a perfect hedge.
func CheckHedgeRebalance(staked, short, threshold float64) (HedgeRebalance, error) {
	if err := checkFinite("threshold", threshold); err != nil {
		return HedgeRebalance{}, err
	}
	if threshold <= 0 {
		return HedgeRebalance{}, errors.Join(types.ErrInvalidInput, errors.New("threshold must be positive"))
	}

	exposure, err := CalculateDeltaExposure(staked, short)
	if err != nil {
		return HedgeRebalance{}, err
	}

	needs := !math.IsInf(exposure.HedgeRatio, 0) && math.Abs(exposure.HedgeRatio-1) > threshold
	if math.IsInf(exposure.HedgeRatio, 1) {
		// naked short, always rebalance
		needs = true
	}

	return HedgeRebalance{
		NeedsRebalance: needs,
		HedgeRatio:     exposure.HedgeRatio,
		Adjustment:     staked - short,
	}, nil
}
