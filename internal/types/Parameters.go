/*

This file contains the tunable parameters for the engine: optimizer constraints,
rebalancing policy, and the fee/gas/slippage assumptions fed into the yield
decomposition. Different sets can exist for different capital sizes or market
regimes; the active set is versioned in the database.

*/

package types

// StrategyParameters holds all tunable weights, thresholds, and cost
// assumptions used by the optimizer and the backtest simulator. Plain
// parameters only - nothing in the core reads the environment.
type StrategyParameters struct {
	// --- Allocation Constraints ---
	RiskTolerance               RiskLevel `json:"risk_tolerance"`                 // IL-risk filter band: LOW/MEDIUM/HIGH.
	MaxSingleAllocationFraction float64   `json:"max_single_allocation_fraction"` // Hard cap on one candidate as a fraction of total capital.
	MinTicketSize               float64   `json:"min_ticket_size"`                // Allocations below this USD amount are skipped entirely.
	CapacityFraction            float64   `json:"capacity_fraction"`              // Fraction of a venue's remaining capacity the engine will consume.
	MinCapacityUSD              float64   `json:"min_capacity_usd"`               // Candidates with less absorbable capacity are filtered out.
	TopK                        int       `json:"top_k"`                          // Number of top-ranked candidates the greedy pass considers.

	// --- Rebalancing Policy ---
	RebalanceFrequency  RebalanceFrequency `json:"rebalance_frequency"`  // Calendar cadence for forced rebalances.
	RebalanceThreshold  float64            `json:"rebalance_threshold"`  // Per-asset weight drift (decimal) that triggers a rebalance.
	RebalanceCostRate   float64            `json:"rebalance_cost_rate"`  // Cost charged per leg as a fraction of the amount moved.
	StopLossThreshold   float64            `json:"stop_loss_threshold"`  // Cumulative loss (decimal) that raises the stop-loss flag.
	HedgeDriftThreshold float64            `json:"hedge_drift_threshold"` // |hedge_ratio - 1| beyond which a hedge rebalance is flagged.

	// --- Yield Decomposition Assumptions ---
	EntryFeeRate       float64 `json:"entry_fee_rate"`       // One-time entry fee as a fraction of position value.
	ExitFeeRate        float64 `json:"exit_fee_rate"`        // One-time exit fee as a fraction of position value.
	RebalanceFeeRate   float64 `json:"rebalance_fee_rate"`   // Per-rebalance fee rate; charged twice per rebalance (buy+sell).
	RebalancesPerYear  float64 `json:"rebalances_per_year"`  // Expected rebalance count used to annualize recurring costs.
	EntryGasUSD        float64 `json:"entry_gas_usd"`        // Gas for opening the position.
	ExitGasUSD         float64 `json:"exit_gas_usd"`         // Gas for closing the position.
	RebalanceGasUSD    float64 `json:"rebalance_gas_usd"`    // Gas per rebalance.
	RebalancedFraction float64 `json:"rebalanced_fraction"`  // Share of the position that actually trades on a rebalance.
	FundingPeriodsYear float64 `json:"funding_periods_year"` // 8h funding periods per year (3 * 365 = 1095).
	BasisMonthlyDecay  float64 `json:"basis_monthly_decay"`  // Geometric monthly decay applied to the basis toward expiry.

	// --- Risk Model ---
	AnnualVolatility float64 `json:"annual_volatility"` // Default collateral volatility for the default-probability model.
	PDHorizonDays    float64 `json:"pd_horizon_days"`   // Horizon for probability-of-default.
}
