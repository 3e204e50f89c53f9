/*

This file contains the solvency metrics for collateralized positions: health
factor, the liquidation price that round-trips with it, and the log-normal
barrier model for probability of default.

*/

package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/defiquant/yre/internal/logger"
	"github.com/defiquant/yre/internal/types"
)

var solvencyLogger = logger.GetForComponent("solvency")

func checkFinite(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.Join(types.ErrInvalidInput, fmt.Errorf("%s is not finite: %f", name, value))
	}
	return nil
}

// CalculateHealthFactor computes the solvency ratio of a collateralized
// position:
//
//	HF = collateral_value * liq_threshold / debt_value
//
// Sentinel: +Inf when the debt value is zero. A position is liquidatable
// when HF < 1.
func CalculateHealthFactor(collateralQty, collateralPrice, debtQty, debtPrice, liqThreshold float64) (float64, error) {
	for name, v := range map[string]float64{
		"collateralQty": collateralQty, "collateralPrice": collateralPrice,
		"debtQty": debtQty, "debtPrice": debtPrice, "liqThreshold": liqThreshold,
	} {
		if err := checkFinite(name, v); err != nil {
			return 0, err
		}
	}
	if collateralQty < 0 || collateralPrice < 0 || debtQty < 0 || debtPrice < 0 {
		return 0, errors.Join(types.ErrInvalidInput, errors.New("quantities and prices cannot be negative"))
	}
	if liqThreshold <= 0 || liqThreshold > 1 {
		return 0, errors.Join(types.ErrInvalidInput, fmt.Errorf("liquidation threshold must be in (0,1], got %f", liqThreshold))
	}

	debtValue := debtQty * debtPrice
	if debtValue == 0 {
		return math.Inf(1), nil
	}

	hf := collateralQty * collateralPrice * liqThreshold / debtValue

	solvencyLogger.Debug().
		Float64("collateralValue", collateralQty*collateralPrice).
		Float64("debtValue", debtValue).
		Float64("liqThreshold", liqThreshold).
		Float64("healthFactor", hf).
		Msg("Health factor calculated")

	return hf, nil
}

// IsLiquidatable reports whether a health factor is below the liquidation bar.
func IsLiquidatable(healthFactor float64) bool {
	return healthFactor < 1.0
}

// CalculateLiquidationPrice solves for the collateral price at which the
// health factor equals exactly 1:
//
//	p* = debt_qty * debt_price / (collateral_qty * liq_threshold)
//
// Round-trips with CalculateHealthFactor. Sentinels: 0 when there is no debt
// (the position can never be liquidated), +Inf when there is debt but no
// collateral.
func CalculateLiquidationPrice(collateralQty, debtQty, debtPrice, liqThreshold float64) (float64, error) {
	for name, v := range map[string]float64{
		"collateralQty": collateralQty, "debtQty": debtQty,
		"debtPrice": debtPrice, "liqThreshold": liqThreshold,
	} {
		if err := checkFinite(name, v); err != nil {
			return 0, err
		}
	}
	if collateralQty < 0 || debtQty < 0 || debtPrice < 0 {
		return 0, errors.Join(types.ErrInvalidInput, errors.New("quantities and prices cannot be negative"))
	}
	if liqThreshold <= 0 || liqThreshold > 1 {
		return 0, errors.Join(types.ErrInvalidInput, fmt.Errorf("liquidation threshold must be in (0,1], got %f", liqThreshold))
	}

	if debtQty*debtPrice == 0 {
		return 0, nil
	}
	if collateralQty == 0 {
		return math.Inf(1), nil
	}
	return debtQty * debtPrice / (collateralQty * liqThreshold), nil
}

// CalculateProbabilityOfDefault estimates the probability that the health
// factor crosses the liquidation barrier within the horizon, under a
// log-normal model of collateral value:
//
//	d  = ln(HF) / (sigma * sqrt(horizon/365))
//	PD = Phi(-d)
//
// Sentinels: HF <= 0 means already insolvent (PD = 1); HF >= 100 is treated
// as risk-free (PD = 0).
func CalculateProbabilityOfDefault(healthFactor, annualVolatility, horizonDays float64) (float64, error) {
	for name, v := range map[string]float64{"annualVolatility": annualVolatility, "horizonDays": horizonDays} {
		if err := checkFinite(name, v); err != nil {
			return 0, err
		}
	}
	if math.IsNaN(healthFactor) {
		return 0, errors.Join(types.ErrInvalidInput, errors.New("health factor is NaN"))
	}
	if annualVolatility <= 0 {
		return 0, errors.Join(types.ErrInvalidInput, errors.New("annual volatility must be positive"))
	}
	if horizonDays <= 0 {
		return 0, errors.Join(types.ErrInvalidInput, errors.New("horizon must be positive"))
	}

	if healthFactor <= 0 {
		return 1, nil
	}
	if healthFactor >= 100 {
		return 0, nil
	}

	d := math.Log(healthFactor) / (annualVolatility * math.Sqrt(horizonDays/365.0))
	pd := normalCDF(-d)

	solvencyLogger.Debug().
		Float64("healthFactor", healthFactor).
		Float64("annualVolatility", annualVolatility).
		Float64("horizonDays", horizonDays).
		Float64("distanceToBarrier", d).
		Float64("probabilityOfDefault", pd).
		Msg("Probability of default calculated")

	return pd, nil
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
