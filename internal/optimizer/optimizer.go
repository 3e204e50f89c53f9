/*

This file contains the capital-allocation optimizer. It ranks candidate
opportunities by risk-adjusted yield and allocates greedily under explicit
constraints. The greedy rule is a deliberate audit-friendly simplification of
mean-variance optimization: each allocation traces to one candidate's own
metrics. A covariance-aware mode lives in covariance.go.

*/

package optimizer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/defiquant/yre/internal/logger"
	"github.com/defiquant/yre/internal/types"
)

var optimizerLogger = logger.GetForComponent("portfolio_optimizer")

var (
	ErrInvalidConstraints = errors.New("invalid allocation constraints")
	ErrInvalidCapital     = errors.New("total capital must be positive")
)

// IL-risk filter bands keyed to risk tolerance.
const (
	lowToleranceILCap    = 40.0
	mediumToleranceILCap = 60.0
)

// Constraints parameterizes one optimizer run. A single struct replaces the
// per-call caps that tend to drift apart across ad hoc allocation functions.
type Constraints struct {
	MaxSingleAllocationFraction float64 `json:"max_single_allocation_fraction"`
	MinTicketSize               float64 `json:"min_ticket_size"`
	CapacityFraction            float64 `json:"capacity_fraction"`
	MinCapacityUSD              float64 `json:"min_capacity_usd"`
	TopK                        int     `json:"top_k"`
}

// DefaultConstraints returns the baseline constraint set.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxSingleAllocationFraction: 0.35,
		MinTicketSize:               100,
		CapacityFraction:            0.5,
		MinCapacityUSD:              1000,
		TopK:                        5,
	}
}

// Validate rejects constraint sets the greedy pass cannot operate under.
func (c Constraints) Validate() error {
	if math.IsNaN(c.MaxSingleAllocationFraction) || c.MaxSingleAllocationFraction <= 0 || c.MaxSingleAllocationFraction > 1 {
		return errors.Join(ErrInvalidConstraints, fmt.Errorf("max single allocation fraction must be in (0,1], got %f", c.MaxSingleAllocationFraction))
	}
	if math.IsNaN(c.MinTicketSize) || c.MinTicketSize < 0 {
		return errors.Join(ErrInvalidConstraints, errors.New("min ticket size cannot be negative"))
	}
	if math.IsNaN(c.CapacityFraction) || c.CapacityFraction <= 0 || c.CapacityFraction > 1 {
		return errors.Join(ErrInvalidConstraints, fmt.Errorf("capacity fraction must be in (0,1], got %f", c.CapacityFraction))
	}
	if c.MinCapacityUSD < 0 {
		return errors.Join(ErrInvalidConstraints, errors.New("min capacity cannot be negative"))
	}
	if c.TopK <= 0 {
		return errors.Join(ErrInvalidConstraints, errors.New("top K must be positive"))
	}
	return nil
}

type scoredCandidate struct {
	candidate types.CandidateOpportunity
	score     float64 // risk-adjusted APY, percentage
}

// RiskAdjustedAPY scores one candidate. When a full yield decomposition is
// attached its net APR wins; otherwise the base APY is discounted by the
// IL-risk hint:
//
//	score = apy * (1 - il_risk/100)
func RiskAdjustedAPY(candidate types.CandidateOpportunity) float64 {
	if candidate.NetAPR != nil {
		return *candidate.NetAPR * 100 // decimal -> percentage
	}
	return candidate.BaseAPY * (1 - candidate.ILRisk/100)
}

// Optimize produces an AllocationPlan for the candidate set. Deterministic
// given identical inputs; score ties break on candidate ID. Empty or fully
// filtered candidate sets return an explicit empty plan with a reason code,
// never an error.
func Optimize(candidates []types.CandidateOpportunity, totalCapital float64, riskTolerance types.RiskLevel, constraints Constraints) (types.AllocationPlan, error) {
	if math.IsNaN(totalCapital) || math.IsInf(totalCapital, 0) || totalCapital <= 0 {
		return types.AllocationPlan{}, errors.Join(types.ErrInvalidInput, ErrInvalidCapital)
	}
	if err := constraints.Validate(); err != nil {
		return types.AllocationPlan{}, errors.Join(types.ErrInvalidInput, err)
	}

	plan := types.AllocationPlan{
		PlanID:        uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		TotalCapital:  totalCapital,
		Allocations:   make(map[string]float64),
		RiskTolerance: riskTolerance,
	}

	if len(candidates) == 0 {
		plan.Reason = types.ReasonNoOpportunities
		optimizerLogger.Info().Msg("No candidates supplied, returning empty plan")
		return plan, nil
	}

	for i, candidate := range candidates {
		if err := validateCandidate(i, candidate); err != nil {
			return types.AllocationPlan{}, err
		}
	}

	// Filter by capacity and the IL-risk band for the tolerance.
	ilCap := math.Inf(1)
	switch riskTolerance {
	case types.RiskLow:
		ilCap = lowToleranceILCap
	case types.RiskMedium:
		ilCap = mediumToleranceILCap
	}

	eligible := make([]scoredCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.CapacityUSD < constraints.MinCapacityUSD {
			optimizerLogger.Debug().
				Str("candidate", candidate.ID).
				Float64("capacity", candidate.CapacityUSD).
				Msg("Candidate filtered: below minimum capacity")
			continue
		}
		if candidate.ILRisk > ilCap {
			optimizerLogger.Debug().
				Str("candidate", candidate.ID).
				Float64("ilRisk", candidate.ILRisk).
				Float64("ilCap", ilCap).
				Msg("Candidate filtered: IL risk above tolerance band")
			continue
		}
		eligible = append(eligible, scoredCandidate{candidate: candidate, score: RiskAdjustedAPY(candidate)})
	}

	if len(eligible) == 0 {
		plan.Reason = types.ReasonAllFiltered
		optimizerLogger.Info().
			Int("candidates", len(candidates)).
			Str("riskTolerance", string(riskTolerance)).
			Msg("All candidates filtered, returning empty plan")
		return plan, nil
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].score != eligible[j].score {
			return eligible[i].score > eligible[j].score
		}
		return eligible[i].candidate.ID < eligible[j].candidate.ID
	})

	// Greedy allocation over the top K.
	remaining := totalCapital
	considered := 0
	for _, sc := range eligible {
		if considered >= constraints.TopK || remaining <= 0 {
			break
		}
		considered++

		weight := math.Min(constraints.MaxSingleAllocationFraction, sc.score/100)
		if weight <= 0 {
			optimizerLogger.Debug().
				Str("candidate", sc.candidate.ID).
				Float64("score", sc.score).
				Msg("Candidate skipped: non-positive risk-adjusted yield")
			continue
		}

		amount := math.Min(remaining*weight, sc.candidate.CapacityUSD*constraints.CapacityFraction)
		amount = math.Min(amount, remaining*constraints.MaxSingleAllocationFraction)

		if amount < constraints.MinTicketSize {
			optimizerLogger.Debug().
				Str("candidate", sc.candidate.ID).
				Float64("amount", amount).
				Float64("minTicket", constraints.MinTicketSize).
				Msg("Candidate skipped: allocation below minimum ticket")
			continue
		}

		plan.Allocations[sc.candidate.ID] = amount
		remaining -= amount

		optimizerLogger.Debug().
			Str("candidate", sc.candidate.ID).
			Float64("score", sc.score).
			Float64("amount", amount).
			Float64("remaining", remaining).
			Msg("Allocation committed")
	}

	if len(plan.Allocations) == 0 {
		plan.Reason = types.ReasonBelowMinTicket
	} else {
		plan.Reason = types.ReasonOK
	}
	plan.TotalAlloc = plan.Allocated()

	optimizerLogger.Info().
		Str("planID", plan.PlanID).
		Int("eligible", len(eligible)).
		Int("allocated", len(plan.Allocations)).
		Float64("totalAllocated", plan.TotalAlloc).
		Float64("totalCapital", totalCapital).
		Str("reason", string(plan.Reason)).
		Msg("Allocation plan produced")

	return plan, nil
}

func validateCandidate(index int, candidate types.CandidateOpportunity) error {
	if candidate.ID == "" {
		return errors.Join(types.ErrInvalidInput, fmt.Errorf("candidate %d has empty ID", index))
	}
	for name, v := range map[string]float64{
		"base APY": candidate.BaseAPY, "TVL": candidate.TvlUSD,
		"capacity": candidate.CapacityUSD, "IL risk": candidate.ILRisk,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Join(types.ErrInvalidInput, fmt.Errorf("candidate %s: %s is not finite", candidate.ID, name))
		}
	}
	if candidate.TvlUSD < 0 || candidate.CapacityUSD < 0 {
		return errors.Join(types.ErrInvalidInput, fmt.Errorf("candidate %s: TVL and capacity cannot be negative", candidate.ID))
	}
	if candidate.ILRisk < 0 || candidate.ILRisk > 100 {
		return errors.Join(types.ErrInvalidInput, fmt.Errorf("candidate %s: IL risk must be in [0,100]", candidate.ID))
	}
	return nil
}
