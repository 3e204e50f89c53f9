/*

This file contains the shared error taxonomy for the engine.

The split matters: ErrInvalidInput is raised at the boundary for out-of-domain
parameters and is never coerced into a fabricated number. Mathematically singular
cases (zero denominators) do NOT error - each calculator documents a sentinel
return (0 or +Inf) for them. Missing data points during a backtest are recorded
as DataGap metadata, never surfaced as errors. An optimizer run that filters out
every candidate is a normal outcome carried as a plan reason code.

*/

package types

import "errors"

// ErrInvalidInput marks malformed or out-of-domain parameters: negative amounts,
// collateral factors >= 1, non-positive periods, empty series. Callers should
// join it with a specific message via errors.Join.
var ErrInvalidInput = errors.New("invalid input")

// ErrInsufficientData marks series too short to compute the requested statistic.
var ErrInsufficientData = errors.New("insufficient data points")

// PlanReason explains why an AllocationPlan is empty (or not).
type PlanReason string

const (
	// ReasonOK is set on any plan that committed at least one allocation.
	ReasonOK PlanReason = "OK"
	// ReasonNoOpportunities is set when the candidate set was empty.
	ReasonNoOpportunities PlanReason = "NO_OPPORTUNITIES"
	// ReasonAllFiltered is set when every candidate was removed by the
	// capacity or IL-risk filters.
	ReasonAllFiltered PlanReason = "ALL_FILTERED"
	// ReasonBelowMinTicket is set when candidates survived filtering but every
	// computed allocation fell below the minimum ticket size.
	ReasonBelowMinTicket PlanReason = "BELOW_MIN_TICKET"
)

// DataGap records a missing data point that was resolved by forward-filling.
// Non-fatal; accumulated in BacktestResult metadata.
type DataGap struct {
	AssetID string `json:"asset_id"`
	Date    string `json:"date"` // YYYY-MM-DD
}
