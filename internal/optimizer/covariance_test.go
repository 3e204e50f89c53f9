package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defiquant/yre/internal/types"
)

func TestOptimizeCovariance_FavorsLowVarianceSeries(t *testing.T) {
	candidates := []types.CandidateOpportunity{
		candidate("pool-calm", 10, 1_000_000, 0),
		candidate("pool-wild", 10, 1_000_000, 0),
	}
	series := map[string][]float64{
		"pool-calm": {0.001, -0.001, 0.002, -0.002, 0.001, -0.001, 0.002, -0.002},
		"pool-wild": {0.05, -0.06, 0.07, -0.05, 0.06, -0.07, 0.05, -0.06},
	}

	constraints := testConstraints()
	constraints.MaxSingleAllocationFraction = 1.0

	plan, err := OptimizeCovariance(candidates, series, 10000, constraints)
	require.NoError(t, err)
	assert.Greater(t, plan.Allocations["pool-calm"], plan.Allocations["pool-wild"])
}

func TestOptimizeCovariance_CapsStillApply(t *testing.T) {
	candidates := []types.CandidateOpportunity{
		candidate("pool-a", 10, 1_000_000, 0),
		candidate("pool-b", 10, 1_000_000, 0),
	}
	series := map[string][]float64{
		"pool-a": {0.001, -0.002, 0.003, -0.001, 0.002},
		"pool-b": {0.03, -0.02, 0.01, -0.03, 0.02},
	}

	plan, err := OptimizeCovariance(candidates, series, 10000, testConstraints())
	require.NoError(t, err)
	for id, amount := range plan.Allocations {
		assert.LessOrEqual(t, amount, 10000*testConstraints().MaxSingleAllocationFraction+1e-9,
			"allocation for %s exceeds the single-candidate cap", id)
	}
}

func TestOptimizeCovariance_MissingSeriesIsError(t *testing.T) {
	candidates := []types.CandidateOpportunity{candidate("pool-a", 10, 1_000_000, 0)}
	_, err := OptimizeCovariance(candidates, map[string][]float64{}, 10000, testConstraints())
	assert.ErrorIs(t, err, ErrSeriesMismatch)
}

func TestOptimizeCovariance_SingularMatrixRejected(t *testing.T) {
	candidates := []types.CandidateOpportunity{
		candidate("pool-a", 10, 1_000_000, 0),
		candidate("pool-b", 10, 1_000_000, 0),
	}
	// Perfectly correlated series make the covariance matrix singular.
	series := map[string][]float64{
		"pool-a": {0.01, -0.02, 0.03, -0.01},
		"pool-b": {0.01, -0.02, 0.03, -0.01},
	}
	_, err := OptimizeCovariance(candidates, series, 10000, testConstraints())
	assert.ErrorIs(t, err, ErrSingularCovariance)
}

func TestOptimizeCovariance_EmptyCandidates(t *testing.T) {
	plan, err := OptimizeCovariance(nil, nil, 10000, testConstraints())
	require.NoError(t, err)
	assert.Equal(t, types.ReasonNoOpportunities, plan.Reason)
}
