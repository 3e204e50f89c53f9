/*

This file contains the types for backtest runs and their results. A run is
created per optimizer validation and never mutated after completion.

Percentage convention: every field documented as a percentage is x100
(total_return 12.5 means +12.5%). Ratios (sharpe, sortino, calmar, beta,
profit factor) are unitless.

*/

package types

import "time"

// RunStatus tracks the simulator state machine.
type RunStatus string

const (
	RunInitialized   RunStatus = "INITIALIZED"
	RunAccruingYield RunStatus = "ACCRUING_YIELD"
	RunRebalanceCheck RunStatus = "REBALANCE_CHECK"
	RunRebalancing   RunStatus = "REBALANCING"
	RunCompleted     RunStatus = "COMPLETED"
)

// RebalanceFrequency is the calendar rebalance cadence.
type RebalanceFrequency string

const (
	RebalanceDaily   RebalanceFrequency = "DAILY"
	RebalanceWeekly  RebalanceFrequency = "WEEKLY"
	RebalanceMonthly RebalanceFrequency = "MONTHLY"
)

// DailyRecord is one simulated day.
type DailyRecord struct {
	Date          time.Time          `json:"date"`
	TotalValue    float64            `json:"total_value"`
	Weights       map[string]float64 `json:"weights"`      // per-asset fraction of total value, cash under "CASH"
	DailyReturn   float64            `json:"daily_return"` // decimal day-over-day return
	Rebalanced    bool               `json:"rebalanced"`
	StopLossFlag  bool               `json:"stop_loss_flag"`  // cumulative loss beyond threshold; caller decides
	LargeLossFlag bool               `json:"large_loss_flag"` // daily return below -10%
}

// BacktestResult holds realized performance statistics for one completed run.
type BacktestResult struct {
	RunID            string        `json:"run_id"`
	PlanID           string        `json:"plan_id,omitempty"`
	StartDate        time.Time     `json:"start_date"`
	EndDate          time.Time     `json:"end_date"`
	TradingDays      int           `json:"trading_days"`
	InitialCapital   float64       `json:"initial_capital"`
	FinalValue       float64       `json:"final_value"`
	TotalReturn      float64       `json:"total_return"`      // percentage, x100
	AnnualizedReturn float64       `json:"annualized_return"` // percentage, x100
	Volatility       float64       `json:"volatility"`        // annualized stdev, percentage, x100
	SharpeRatio      float64       `json:"sharpe_ratio"`
	SortinoRatio     float64       `json:"sortino_ratio"`
	MaxDrawdown      float64       `json:"max_drawdown"` // percentage, x100, positive number
	CalmarRatio      float64       `json:"calmar_ratio"`
	WinRate          float64       `json:"win_rate"` // percentage, x100
	ProfitFactor     float64       `json:"profit_factor"`
	ValueAtRisk95    float64       `json:"value_at_risk_95"` // daily, percentage, x100 (negative = loss)
	CVaR95           float64       `json:"cvar_95"`          // daily, percentage, x100
	Alpha            float64       `json:"alpha"`            // annualized vs benchmark, percentage, x100
	Beta             float64       `json:"beta"`
	TotalCostUSD     float64       `json:"total_cost_usd"` // transaction + gas cost charged
	StopLossDays     int           `json:"stop_loss_days"`
	LargeLossDays    int           `json:"large_loss_days"`
	DataGaps         []DataGap     `json:"data_gaps,omitempty"`
	Daily            []DailyRecord `json:"daily,omitempty"`
}
