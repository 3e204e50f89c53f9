/*

This file contains the leverage model for collateral-looping strategies:
geometric leverage from loop count and collateral factor, looping APR, marginal
per-loop economics, and the optimal loop scan. No hidden state between calls.

*/

package leverage

import (
	"errors"
	"fmt"
	"math"

	"github.com/defiquant/yre/internal/logger"
	"github.com/defiquant/yre/internal/types"
)

var leverageLogger = logger.GetForComponent("leverage_model")

// MinMarginalBenefit is the APR improvement below which an extra loop is not
// worth its execution cost.
const MinMarginalBenefit = 0.001

// LoopCurvePoint is one entry of the per-loop APR curve.
type LoopCurvePoint struct {
	Loops    int     `json:"loops"`
	Leverage float64 `json:"leverage"`
	APR      float64 `json:"apr"`
}

// OptimalLoopsResult is the output of the loop scan.
type OptimalLoopsResult struct {
	BestLoops       int              `json:"best_loops"`
	BestLeverage    float64          `json:"best_leverage"`
	BestAPR         float64          `json:"best_apr"`
	CeilingLeverage float64          `json:"ceiling_leverage"` // theoretical limit 1/(1-c)
	Curve           []LoopCurvePoint `json:"curve"`
}

func validateCollateralFactor(c float64) error {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return errors.Join(types.ErrInvalidInput, errors.New("collateral factor is not finite"))
	}
	if c < 0 {
		return errors.Join(types.ErrInvalidInput, errors.New("collateral factor cannot be negative"))
	}
	// c >= 1 would imply unbounded leverage; rejected rather than returning +Inf.
	if c >= 1 {
		return errors.Join(types.ErrInvalidInput, fmt.Errorf("collateral factor must be below 1, got %f", c))
	}
	return nil
}

// LeverageFromLoops computes the geometric leverage reached after n borrow and
// redeposit loops at collateral factor c:
//
//	L = sum_{i=0}^{n} c^i = (1 - c^(n+1)) / (1 - c)
//
// Non-decreasing in n and converging to 1/(1-c).
func LeverageFromLoops(c float64, n int) (float64, error) {
	if err := validateCollateralFactor(c); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.Join(types.ErrInvalidInput, errors.New("loop count cannot be negative"))
	}

	if c == 0 {
		return 1, nil
	}
	return (1 - math.Pow(c, float64(n+1))) / (1 - c), nil
}

// LoopingAPR computes the net APR of a looped position at explicit leverage L:
//
//	apr = y*L - rb*(L-1)
//
// where y is the staking yield and rb the borrow rate, both decimals.
func LoopingAPR(y, rb, L float64) (float64, error) {
	for _, v := range []float64{y, rb, L} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, errors.Join(types.ErrInvalidInput, errors.New("looping APR inputs must be finite"))
		}
	}
	if L < 1 {
		return 0, errors.Join(types.ErrInvalidInput, fmt.Errorf("leverage must be at least 1, got %f", L))
	}
	return y*L - rb*(L-1), nil
}

// LoopingAPRFromLoops is the (collateral factor, loop count) entry path:
// leverage is derived from the loop geometry first. Exactly one of the two
// paths applies to a given call site.
func LoopingAPRFromLoops(y, rb, c float64, n int) (float64, error) {
	L, err := LeverageFromLoops(c, n)
	if err != nil {
		return 0, err
	}
	return LoopingAPR(y, rb, L)
}

// MarginalBenefit is the APR gained by taking loop n+1 over stopping at n.
func MarginalBenefit(y, rb, c float64, n int) (float64, error) {
	current, err := LoopingAPRFromLoops(y, rb, c, n)
	if err != nil {
		return 0, err
	}
	next, err := LoopingAPRFromLoops(y, rb, c, n+1)
	if err != nil {
		return 0, err
	}
	return next - current, nil
}

// WorthExtraLoop reports whether taking loop n+1 is economically justified:
// the marginal borrow must be profitable (y*c > rb) and the APR improvement
// must clear MinMarginalBenefit.
func WorthExtraLoop(y, rb, c float64, n int) (bool, error) {
	benefit, err := MarginalBenefit(y, rb, c, n)
	if err != nil {
		return false, err
	}
	return y*c > rb && benefit > MinMarginalBenefit, nil
}

// OptimalLoops scans loop counts 0..maxLoops and returns the APR-maximizing
// configuration along with the theoretical ceiling leverage and the full
// per-loop curve.
func OptimalLoops(y, rb, c float64, maxLoops int) (OptimalLoopsResult, error) {
	if err := validateCollateralFactor(c); err != nil {
		return OptimalLoopsResult{}, err
	}
	if maxLoops < 0 {
		return OptimalLoopsResult{}, errors.Join(types.ErrInvalidInput, errors.New("maxLoops cannot be negative"))
	}

	result := OptimalLoopsResult{
		CeilingLeverage: 1 / (1 - c),
		Curve:           make([]LoopCurvePoint, 0, maxLoops+1),
	}

	bestAPR := math.Inf(-1)
	for n := 0; n <= maxLoops; n++ {
		L, err := LeverageFromLoops(c, n)
		if err != nil {
			return OptimalLoopsResult{}, err
		}
		apr, err := LoopingAPR(y, rb, L)
		if err != nil {
			return OptimalLoopsResult{}, err
		}
		result.Curve = append(result.Curve, LoopCurvePoint{Loops: n, Leverage: L, APR: apr})
		if apr > bestAPR {
			bestAPR = apr
			result.BestLoops = n
			result.BestLeverage = L
			result.BestAPR = apr
		}
	}

	leverageLogger.Debug().
		Float64("stakingYield", y).
		Float64("borrowRate", rb).
		Float64("collateralFactor", c).
		Int("bestLoops", result.BestLoops).
		Float64("bestAPR", result.BestAPR).
		Float64("ceilingLeverage", result.CeilingLeverage).
		Msg("Optimal loop scan completed")

	return result, nil
}

// BreakevenBorrowRate is the borrow rate at which the looped APR equals zero:
//
//	rb* = y*L / (L-1)
//
// Sentinel: +Inf for L <= 1 (an unlevered position never pays borrow interest).
func BreakevenBorrowRate(y, L float64) (float64, error) {
	for _, v := range []float64{y, L} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, errors.Join(types.ErrInvalidInput, errors.New("breakeven borrow rate inputs must be finite"))
		}
	}
	if L < 1 {
		return 0, errors.Join(types.ErrInvalidInput, fmt.Errorf("leverage must be at least 1, got %f", L))
	}
	if L == 1 {
		return math.Inf(1), nil
	}
	return y * L / (L - 1), nil
}
