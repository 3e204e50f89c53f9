/*

This file contains the optional covariance-aware allocation mode: minimum
variance weights from the inverse covariance matrix of candidate return
series, clamped long-only and renormalized, then passed through the same
capacity and ticket caps as the greedy mode.

*/

package optimizer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/defiquant/yre/internal/types"
)

var (
	ErrSingularCovariance = errors.New("covariance matrix is singular")
	ErrSeriesMismatch     = errors.New("return series missing or too short for candidate")
)

// OptimizeCovariance weights the eligible candidates by the row sums of the
// inverse covariance matrix (w = Sigma^-1 * 1), clamps negative weights to
// zero, renormalizes, and then applies the capacity/ticket constraints.
// Requires an aligned daily return series of at least 2 points per candidate.
func OptimizeCovariance(candidates []types.CandidateOpportunity, returnSeries map[string][]float64, totalCapital float64, constraints Constraints) (types.AllocationPlan, error) {
	if math.IsNaN(totalCapital) || math.IsInf(totalCapital, 0) || totalCapital <= 0 {
		return types.AllocationPlan{}, errors.Join(types.ErrInvalidInput, ErrInvalidCapital)
	}
	if err := constraints.Validate(); err != nil {
		return types.AllocationPlan{}, errors.Join(types.ErrInvalidInput, err)
	}

	plan := types.AllocationPlan{
		PlanID:       uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		TotalCapital: totalCapital,
		Allocations:  make(map[string]float64),
	}
	if len(candidates) == 0 {
		plan.Reason = types.ReasonNoOpportunities
		return plan, nil
	}

	// Align series to the shortest common length; deterministic candidate order.
	ordered := make([]types.CandidateOpportunity, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	minLen := math.MaxInt
	for _, candidate := range ordered {
		series, ok := returnSeries[candidate.ID]
		if !ok || len(series) < 2 {
			return types.AllocationPlan{}, errors.Join(types.ErrInvalidInput, ErrSeriesMismatch,
				fmt.Errorf("candidate %s", candidate.ID))
		}
		if len(series) < minLen {
			minLen = len(series)
		}
	}

	n := len(ordered)
	aligned := make([][]float64, n)
	for i, candidate := range ordered {
		series := returnSeries[candidate.ID]
		aligned[i] = series[len(series)-minLen:]
	}

	cov := covarianceMatrix(aligned)
	inverse, err := invertMatrix(cov)
	if err != nil {
		return types.AllocationPlan{}, err
	}

	// w = Sigma^-1 * 1, long-only, renormalized.
	weights := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			weights[i] += inverse[i][j]
		}
		if weights[i] < 0 {
			weights[i] = 0
		}
		total += weights[i]
	}
	if total <= 0 {
		return types.AllocationPlan{}, ErrSingularCovariance
	}
	for i := range weights {
		weights[i] /= total
	}

	for i, candidate := range ordered {
		amount := totalCapital * weights[i]
		amount = math.Min(amount, candidate.CapacityUSD*constraints.CapacityFraction)
		amount = math.Min(amount, totalCapital*constraints.MaxSingleAllocationFraction)
		if amount < constraints.MinTicketSize {
			continue
		}
		plan.Allocations[candidate.ID] = amount
	}

	if len(plan.Allocations) == 0 {
		plan.Reason = types.ReasonBelowMinTicket
	} else {
		plan.Reason = types.ReasonOK
	}
	plan.TotalAlloc = plan.Allocated()
	return plan, nil
}

// covarianceMatrix computes the population covariance of aligned return rows.
func covarianceMatrix(series [][]float64) [][]float64 {
	n := len(series)
	length := len(series[0])

	means := make([]float64, n)
	for i, row := range series {
		means[i] = mean(row)
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
		for j := 0; j <= i; j++ {
			sum := 0.0
			for k := 0; k < length; k++ {
				sum += (series[i][k] - means[i]) * (series[j][k] - means[j])
			}
			cov[i][j] = sum / float64(length)
			cov[j][i] = cov[i][j]
		}
	}
	return cov
}

// invertMatrix inverts a square matrix via Gauss-Jordan elimination with
// partial pivoting.
func invertMatrix(m [][]float64) ([][]float64, error) {
	n := len(m)

	// Build [m | I].
	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], m[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(aug[row][col]) > math.Abs(aug[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-12 {
			return nil, ErrSingularCovariance
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		scale := aug[col][col]
		for j := 0; j < 2*n; j++ {
			aug[col][j] /= scale
		}
		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := aug[row][col]
			for j := 0; j < 2*n; j++ {
				aug[row][j] -= factor * aug[col][j]
			}
		}
	}

	inverse := make([][]float64, n)
	for i := range inverse {
		inverse[i] = aug[i][n:]
	}
	return inverse, nil
}

func mean(sample []float64) float64 {
	sum := 0.0
	for _, v := range sample {
		sum += v
	}
	return sum / float64(len(sample))
}
