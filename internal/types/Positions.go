/*

This file contains the types for strategy positions, which carry all the state
needed to decompose yield and assess risk for a single deployed strategy.

*/

package types

import "time"

// StrategyCategory classifies how a position earns its yield.
type StrategyCategory string

const (
	CategoryStakingOnly  StrategyCategory = "STAKING_ONLY"  // plain liquid staking
	CategoryDeltaNeutral StrategyCategory = "DELTA_NEUTRAL" // staking + perp short hedge
	CategoryLooping      StrategyCategory = "LOOPING"       // collateral-looped staking
)

// RiskLevel is the coarse banding reported on a RiskProfile.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// StrategyPosition is one deployed strategy. Created when an AllocationPlan
// executes, mutated on each rebalance/yield-accrual tick, closed on full unwind.
type StrategyPosition struct {
	ID               string           `json:"id"`
	Category         StrategyCategory `json:"category"`
	PrincipalUSD     float64          `json:"principal_usd"`      // capital committed at entry
	Leverage         float64          `json:"leverage"`           // 1.0 for unlevered positions
	CollateralFactor float64          `json:"collateral_factor"`  // per-loop re-borrowable fraction, [0,1)
	EntryPrice       float64          `json:"entry_price"`        // underlying asset price at entry
	CurrentPrice     float64          `json:"current_price"`      // latest mark
	MarginUSD        float64          `json:"margin_usd"`         // margin posted on the perp leg, 0 if none
	FundingRate8h    float64          `json:"funding_rate_8h"`    // latest 8h funding rate (decimal)
	BorrowRate       float64          `json:"borrow_rate"`        // annual borrow rate on looped debt (decimal)
	StakingAPR       float64          `json:"staking_apr"`        // base staking APR (decimal)
	OpenedAt         time.Time        `json:"opened_at"`
	HoldingDays      int              `json:"holding_days"`
}

// RiskProfile is the per-snapshot risk view of a position. Derived, not
// persisted independently.
type RiskProfile struct {
	HealthFactor             float64   `json:"health_factor"`
	LiquidationPrice         float64   `json:"liquidation_price"`
	DistanceToLiquidationPct float64   `json:"distance_to_liquidation_pct"` // percentage, x100
	HedgeRatio               float64   `json:"hedge_ratio"`
	ProbabilityOfDefault     float64   `json:"probability_of_default"`
	ValueAtRisk1d            float64   `json:"value_at_risk_1d"` // percentage, x100
	ValueAtRisk7d            float64   `json:"value_at_risk_7d"` // percentage, x100
	SharpeRatio              float64   `json:"sharpe_ratio"`
	SortinoRatio             float64   `json:"sortino_ratio"`
	RiskLevel                RiskLevel `json:"risk_level"`
}
