/*

This file contains the yield component calculator. It decomposes one position's
expected return into additive components: staking yield, perp funding, trading
fees, gas, slippage, and basis decay. All functions are pure; singular cases
return documented sentinels instead of errors, malformed inputs fail immediately.

*/

package yield

import (
	"errors"
	"fmt"
	"math"

	"github.com/defiquant/yre/internal/logger"
	"github.com/defiquant/yre/internal/types"
)

var yieldLogger = logger.GetForComponent("yield_calculator")

// Slippage model caps. The per-rebalance slippage rate is the size ratio scaled
// by the venue factor, clamped at the venue cap.
const (
	ammSlippageFactor       = 0.5
	ammSlippageCap          = 0.05
	orderBookSlippageFactor = 0.2
	orderBookSlippageCap    = 0.02
)

// StakingYield is the staking-income component in quote currency.
type StakingYield struct {
	AnnualUSD  float64 `json:"annual_usd"`
	MonthlyUSD float64 `json:"monthly_usd"`
	DailyUSD   float64 `json:"daily_usd"`
	APR        float64 `json:"apr"` // decimal
}

// FundingComponent is the annualized perp funding income or cost.
// Sign convention: a positive 8h rate on a short position is income.
type FundingComponent struct {
	AnnualUSD float64 `json:"annual_usd"`
	APR       float64 `json:"apr"` // decimal, signed
	Income    bool    `json:"income"`
}

// TradingFees is the annualized fee drag.
type TradingFees struct {
	AnnualUSD float64 `json:"annual_usd"`
	APR       float64 `json:"apr"` // decimal
}

// GasCosts is the annualized gas drag.
type GasCosts struct {
	AnnualUSD float64 `json:"annual_usd"`
	APR       float64 `json:"apr"` // decimal; 0 when position value is 0 (documented sentinel)
}

// SlippageCosts is the annualized slippage drag on the rebalanced fraction.
type SlippageCosts struct {
	AnnualUSD        float64 `json:"annual_usd"`
	APR              float64 `json:"apr"`                // decimal
	PerRebalanceRate float64 `json:"per_rebalance_rate"` // decimal rate applied per rebalance
}

// BasisCost is the expected cost of closing the basis position.
// Always a cost regardless of basis sign.
type BasisCost struct {
	ExpectedBasisAtClose float64 `json:"expected_basis_at_close"` // signed price fraction
	AnnualUSD            float64 `json:"annual_usd"`
	APR                  float64 `json:"apr"` // decimal, >= 0
}

// Breakdown is the full additive decomposition of a position's expected return.
type Breakdown struct {
	Staking  StakingYield     `json:"staking"`
	Funding  FundingComponent `json:"funding"`
	Fees     TradingFees      `json:"fees"`
	Gas      GasCosts         `json:"gas"`
	Slippage SlippageCosts    `json:"slippage"`
	Basis    BasisCost        `json:"basis"`
	NetAPR   float64          `json:"net_apr"` // decimal
}

// Assumptions carries the fee/gas/slippage cost model for a position. The
// driver derives these from StrategyParameters; callers may override any field.
type Assumptions struct {
	EntryFeeRate       float64
	ExitFeeRate        float64
	RebalanceFeeRate   float64
	RebalancesPerYear  float64
	EntryGasUSD        float64
	ExitGasUSD         float64
	RebalanceGasUSD    float64
	RebalancedFraction float64 // share of the position traded per rebalance
	FundingPeriodsYear float64 // 8h periods per year
	BasisMonthlyDecay  float64 // geometric monthly decay toward expiry
	Venue              types.VenueKind
}

// DefaultAssumptions returns the baseline cost model.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		EntryFeeRate:       0.0005,
		ExitFeeRate:        0.0005,
		RebalanceFeeRate:   0.0005,
		RebalancesPerYear:  12,
		EntryGasUSD:        5,
		ExitGasUSD:         5,
		RebalanceGasUSD:    3,
		RebalancedFraction: 0.10,
		FundingPeriodsYear: 1095, // 3 per day * 365
		BasisMonthlyDecay:  0.10,
		Venue:              types.VenueAMM,
	}
}

func checkFinite(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.Join(types.ErrInvalidInput, fmt.Errorf("%s is not finite: %f", name, value))
	}
	return nil
}

// CalculateStakingYield computes staking income for a token amount at the
// given APR and spot price.
// Inputs:
//   - amount: staked token quantity.
//   - apr: annual staking rate as a decimal (0.15 for 15%).
//   - priceUSD: token spot price.
//
// Output: annual/monthly/daily yield in USD plus the APR carried through.
func CalculateStakingYield(amount, apr, priceUSD float64) (StakingYield, error) {
	for name, v := range map[string]float64{"amount": amount, "apr": apr, "priceUSD": priceUSD} {
		if err := checkFinite(name, v); err != nil {
			return StakingYield{}, err
		}
	}
	if amount < 0 {
		return StakingYield{}, errors.Join(types.ErrInvalidInput, errors.New("amount cannot be negative"))
	}
	if priceUSD < 0 {
		return StakingYield{}, errors.Join(types.ErrInvalidInput, errors.New("price cannot be negative"))
	}

	positionValue := amount * priceUSD
	annual := positionValue * apr

	yieldLogger.Debug().
		Float64("amount", amount).
		Float64("apr", apr).
		Float64("priceUSD", priceUSD).
		Float64("annualUSD", annual).
		Msg("Staking yield calculated")

	return StakingYield{
		AnnualUSD:  annual,
		MonthlyUSD: annual / 12,
		DailyUSD:   annual / 365,
		APR:        apr,
	}, nil
}

// CalculateFundingComponent annualizes perp funding for a short hedge.
// Inputs:
//   - notional: perp position size in tokens.
//   - priceUSD: mark price.
//   - fundingRate8h: latest 8h funding rate as a decimal.
//   - periodsPerYear: funding periods per year (1095 for 8h funding).
//
// A positive 8h rate on a short position is income.
func CalculateFundingComponent(notional, priceUSD, fundingRate8h, periodsPerYear float64) (FundingComponent, error) {
	for name, v := range map[string]float64{
		"notional": notional, "priceUSD": priceUSD,
		"fundingRate8h": fundingRate8h, "periodsPerYear": periodsPerYear,
	} {
		if err := checkFinite(name, v); err != nil {
			return FundingComponent{}, err
		}
	}
	if notional < 0 {
		return FundingComponent{}, errors.Join(types.ErrInvalidInput, errors.New("notional cannot be negative"))
	}
	if priceUSD < 0 {
		return FundingComponent{}, errors.Join(types.ErrInvalidInput, errors.New("price cannot be negative"))
	}
	if periodsPerYear <= 0 {
		return FundingComponent{}, errors.Join(types.ErrInvalidInput, errors.New("periodsPerYear must be positive"))
	}

	apr := fundingRate8h * periodsPerYear
	annualUSD := notional * priceUSD * apr

	yieldLogger.Debug().
		Float64("fundingRate8h", fundingRate8h).
		Float64("periodsPerYear", periodsPerYear).
		Float64("fundingAPR", apr).
		Float64("annualUSD", annualUSD).
		Msg("Funding component calculated")

	return FundingComponent{AnnualUSD: annualUSD, APR: apr, Income: apr > 0}, nil
}

// CalculateTradingFees annualizes entry/exit/rebalance fee drag. Entry and exit
// fees count once per year of holding; each rebalance costs twice the rebalance
// rate (a sell leg and a buy leg).
func CalculateTradingFees(positionValue, entryRate, exitRate, rebalanceRate, rebalancesPerYear float64) (TradingFees, error) {
	for name, v := range map[string]float64{
		"positionValue": positionValue, "entryRate": entryRate, "exitRate": exitRate,
		"rebalanceRate": rebalanceRate, "rebalancesPerYear": rebalancesPerYear,
	} {
		if err := checkFinite(name, v); err != nil {
			return TradingFees{}, err
		}
	}
	if positionValue < 0 {
		return TradingFees{}, errors.Join(types.ErrInvalidInput, errors.New("position value cannot be negative"))
	}
	if entryRate < 0 || exitRate < 0 || rebalanceRate < 0 {
		return TradingFees{}, errors.Join(types.ErrInvalidInput, errors.New("fee rates cannot be negative"))
	}
	if rebalancesPerYear < 0 {
		return TradingFees{}, errors.Join(types.ErrInvalidInput, errors.New("rebalancesPerYear cannot be negative"))
	}

	apr := entryRate + exitRate + 2*rebalanceRate*rebalancesPerYear
	return TradingFees{AnnualUSD: positionValue * apr, APR: apr}, nil
}

// CalculateGasCosts annualizes gas drag. Entry/exit gas is amortized over the
// holding period (scaled by 365/holdingDays); rebalance gas recurs.
// Sentinel: positionValue == 0 yields APR 0 (the USD cost is still reported).
func CalculateGasCosts(entryGasUSD, exitGasUSD, rebalanceGasUSD, rebalancesPerYear float64, holdingDays int, positionValue float64) (GasCosts, error) {
	for name, v := range map[string]float64{
		"entryGasUSD": entryGasUSD, "exitGasUSD": exitGasUSD, "rebalanceGasUSD": rebalanceGasUSD,
		"rebalancesPerYear": rebalancesPerYear, "positionValue": positionValue,
	} {
		if err := checkFinite(name, v); err != nil {
			return GasCosts{}, err
		}
	}
	if entryGasUSD < 0 || exitGasUSD < 0 || rebalanceGasUSD < 0 {
		return GasCosts{}, errors.Join(types.ErrInvalidInput, errors.New("gas costs cannot be negative"))
	}
	if rebalancesPerYear < 0 {
		return GasCosts{}, errors.Join(types.ErrInvalidInput, errors.New("rebalancesPerYear cannot be negative"))
	}
	if holdingDays <= 0 {
		return GasCosts{}, errors.Join(types.ErrInvalidInput, errors.New("holdingDays must be positive"))
	}
	if positionValue < 0 {
		return GasCosts{}, errors.Join(types.ErrInvalidInput, errors.New("position value cannot be negative"))
	}

	annualUSD := (entryGasUSD+exitGasUSD)*(365.0/float64(holdingDays)) + rebalanceGasUSD*rebalancesPerYear

	apr := 0.0
	if positionValue > 0 {
		apr = annualUSD / positionValue
	}
	return GasCosts{AnnualUSD: annualUSD, APR: apr}, nil
}

// CalculateSlippageCosts annualizes slippage on the rebalanced fraction of the
// position. The per-rebalance rate depends on the venue: AMM slippage is
// min(sizeRatio*0.5, 5%), order-book slippage is min(sizeRatio*0.2, 2%).
// Sentinel: venueLiquidity == 0 clamps the rate at the venue cap.
func CalculateSlippageCosts(positionValue, venueLiquidity, rebalancesPerYear float64, venue types.VenueKind, rebalancedFraction float64) (SlippageCosts, error) {
	for name, v := range map[string]float64{
		"positionValue": positionValue, "venueLiquidity": venueLiquidity,
		"rebalancesPerYear": rebalancesPerYear, "rebalancedFraction": rebalancedFraction,
	} {
		if err := checkFinite(name, v); err != nil {
			return SlippageCosts{}, err
		}
	}
	if positionValue < 0 || venueLiquidity < 0 {
		return SlippageCosts{}, errors.Join(types.ErrInvalidInput, errors.New("position value and venue liquidity cannot be negative"))
	}
	if rebalancesPerYear < 0 {
		return SlippageCosts{}, errors.Join(types.ErrInvalidInput, errors.New("rebalancesPerYear cannot be negative"))
	}
	if rebalancedFraction < 0 || rebalancedFraction > 1 {
		return SlippageCosts{}, errors.Join(types.ErrInvalidInput, errors.New("rebalancedFraction must be in [0,1]"))
	}

	factor, venueCap := ammSlippageFactor, ammSlippageCap
	if venue == types.VenueOrderBook {
		factor, venueCap = orderBookSlippageFactor, orderBookSlippageCap
	}

	rate := venueCap
	if venueLiquidity > 0 {
		rate = math.Min((positionValue/venueLiquidity)*factor, venueCap)
	}

	apr := rebalancedFraction * rate * rebalancesPerYear
	return SlippageCosts{
		AnnualUSD:        positionValue * apr,
		APR:              apr,
		PerRebalanceRate: rate,
	}, nil
}

// CalculateBasisCost estimates the cost of the derivative/spot basis at close.
// The current basis (a signed price fraction) decays geometrically by
// monthlyDecay per 30-day month over the holding period; the residual is
// always treated as a cost via its absolute value, then annualized.
func CalculateBasisCost(currentBasis, notionalUSD float64, holdingDays int, monthlyDecay float64) (BasisCost, error) {
	for name, v := range map[string]float64{
		"currentBasis": currentBasis, "notionalUSD": notionalUSD, "monthlyDecay": monthlyDecay,
	} {
		if err := checkFinite(name, v); err != nil {
			return BasisCost{}, err
		}
	}
	if notionalUSD < 0 {
		return BasisCost{}, errors.Join(types.ErrInvalidInput, errors.New("notional cannot be negative"))
	}
	if holdingDays <= 0 {
		return BasisCost{}, errors.Join(types.ErrInvalidInput, errors.New("holdingDays must be positive"))
	}
	if monthlyDecay < 0 || monthlyDecay > 1 {
		return BasisCost{}, errors.Join(types.ErrInvalidInput, errors.New("monthlyDecay must be in [0,1]"))
	}

	months := float64(holdingDays) / 30.0
	expected := currentBasis * math.Pow(1-monthlyDecay, months)
	costUSD := math.Abs(expected) * notionalUSD
	apr := math.Abs(expected) * (365.0 / float64(holdingDays))

	yieldLogger.Debug().
		Float64("currentBasis", currentBasis).
		Float64("expectedBasisAtClose", expected).
		Float64("annualizedCostAPR", apr).
		Msg("Basis cost calculated")

	return BasisCost{
		ExpectedBasisAtClose: expected,
		AnnualUSD:            costUSD * (365.0 / float64(holdingDays)),
		APR:                  apr,
	}, nil
}

// Compose sums the components into the net decomposition:
//
//	net = staking + funding - fees - gas - slippage - |basis|
//
// The basis component is always a drag regardless of its sign.
func Compose(staking StakingYield, funding FundingComponent, fees TradingFees, gas GasCosts, slippage SlippageCosts, basis BasisCost) (Breakdown, error) {
	net := staking.APR + funding.APR - fees.APR - gas.APR - slippage.APR - math.Abs(basis.APR)
	if math.IsNaN(net) || math.IsInf(net, 0) {
		return Breakdown{}, errors.New("net APR calculation resulted in non-finite value")
	}

	yieldLogger.Debug().
		Float64("stakingAPR", staking.APR).
		Float64("fundingAPR", funding.APR).
		Float64("feeAPR", fees.APR).
		Float64("gasAPR", gas.APR).
		Float64("slippageAPR", slippage.APR).
		Float64("basisAPR", basis.APR).
		Float64("netAPR", net).
		Msg("Yield decomposition composed")

	return Breakdown{
		Staking:  staking,
		Funding:  funding,
		Fees:     fees,
		Gas:      gas,
		Slippage: slippage,
		Basis:    basis,
		NetAPR:   net,
	}, nil
}

// BreakevenFundingRate solves net APR = 0 for the 8h funding rate, holding
// every other component fixed. Feeding the result back into
// CalculateFundingComponent yields a net APR of zero.
func BreakevenFundingRate(stakingAPR, feeAPR, gasAPR, slippageAPR, basisAPR, periodsPerYear float64) (float64, error) {
	for name, v := range map[string]float64{
		"stakingAPR": stakingAPR, "feeAPR": feeAPR, "gasAPR": gasAPR,
		"slippageAPR": slippageAPR, "basisAPR": basisAPR, "periodsPerYear": periodsPerYear,
	} {
		if err := checkFinite(name, v); err != nil {
			return 0, err
		}
	}
	if periodsPerYear <= 0 {
		return 0, errors.Join(types.ErrInvalidInput, errors.New("periodsPerYear must be positive"))
	}

	requiredAPR := feeAPR + gasAPR + slippageAPR + math.Abs(basisAPR) - stakingAPR
	return requiredAPR / periodsPerYear, nil
}
