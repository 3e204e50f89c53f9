/*

This file contains the default strategy parameters for the engine.

These parameters are designed for allocating significant capital across
leveraged and hedged yield strategies. Each value balances risk management
against return optimization.

*/

package config

import (
	"github.com/defiquant/yre/internal/types"
)

// DefaultStrategyParameters provides a baseline parameter set for the engine.
// These values are used if no active parameters are found in the database
// during initialization.
//
// IMPORTANT: These defaults are calibrated for meaningful capital (>$100k).
// They prioritize capital preservation over aggressive yield chasing.
var DefaultStrategyParameters = types.StrategyParameters{
	// --- Allocation Constraints ---
	RiskTolerance: types.RiskMedium, // Accept IL risk up to the 60 band.
	// Rationale: LOW filters out most leveraged LP opportunities entirely;
	// HIGH admits pools where impermanent loss regularly erases the yield edge.

	MaxSingleAllocationFraction: 0.35, // Allocate at most 35% to a single candidate.
	// Rationale: If one venue suffers an exploit or a major IL event, losses
	// are contained to about a third of the book.

	MinTicketSize: 100, // Skip allocations below $100.
	// Rationale: Entry gas and fees on a sub-$100 ticket consume a material
	// share of the first year's yield.

	CapacityFraction: 0.5, // Consume at most half a venue's remaining capacity.
	// Rationale: Filling a venue's entire headroom moves its rates against us
	// and leaves no room to exit without slippage.

	MinCapacityUSD: 1000, // Ignore venues that cannot absorb $1k.
	// Rationale: Anything smaller cannot hold a meaningful position.

	TopK: 5, // Greedy pass considers the top 5 ranked candidates.
	// Rationale: Enough for diversification without spraying dust positions.

	// --- Rebalancing Policy ---
	RebalanceFrequency: types.RebalanceWeekly,
	// Rationale: Daily rebalancing burns cost for little tracking benefit on
	// yield strategies; monthly lets drift compound too far.

	RebalanceThreshold: 0.05, // Rebalance when a weight drifts 5 points from target.
	// Rationale: Below 5% the cost of the trade exceeds the tracking gain.

	RebalanceCostRate: 0.001, // Charge 10 bps per leg on the amount moved.

	StopLossThreshold: 0.15, // Flag when cumulative loss exceeds 15%.
	// Rationale: A 15% drawdown on a yield book signals a broken assumption,
	// not noise. The flag is advisory; the operator decides whether to unwind.

	HedgeDriftThreshold: 0.05, // Flag hedge ratios outside [0.95, 1.05].

	// --- Yield Decomposition Assumptions ---
	EntryFeeRate:       0.003, // 30 bps to open a position.
	ExitFeeRate:        0.003, // 30 bps to close.
	RebalanceFeeRate:   0.001, // 10 bps per side per rebalance.
	RebalancesPerYear:  52,    // Matches the weekly cadence above.
	EntryGasUSD:        5,
	ExitGasUSD:         5,
	RebalanceGasUSD:    3,
	RebalancedFraction: 0.10, // Typically ~10% of the position trades per rebalance.
	FundingPeriodsYear: 1095, // Three 8-hour funding periods per day.
	BasisMonthlyDecay:  0.10, // Basis bleeds ~10% per month toward expiry.

	// --- Risk Model ---
	AnnualVolatility: 0.60, // Default collateral volatility for the PD model.
	// Rationale: Mid-cap DeFi collateral runs 50-80% annualized; 60% is the
	// conservative center when no asset-specific estimate is loaded.

	PDHorizonDays: 7, // Probability-of-default horizon matches the rebalance cadence.
}
