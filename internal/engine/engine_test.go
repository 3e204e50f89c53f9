package engine

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defiquant/yre/internal/oracle"
	"github.com/defiquant/yre/internal/types"
)

// mockCandidateSource implements datafetcher.CandidateSource for testing.
type mockCandidateSource struct {
	candidates []types.CandidateOpportunity
	err        error
}

func (m mockCandidateSource) GetCandidates() ([]types.CandidateOpportunity, error) {
	return m.candidates, m.err
}

// mockSeriesSource implements datafetcher.PriceSeriesSource for testing.
type mockSeriesSource struct {
	series map[string]types.PriceSeries
	err    error
}

func (m mockSeriesSource) GetSeries(assetIDs []string) (map[string]types.PriceSeries, error) {
	return m.series, m.err
}

func testParams() *types.StrategyParameters {
	return &types.StrategyParameters{
		RiskTolerance:               types.RiskMedium,
		MaxSingleAllocationFraction: 0.35,
		MinTicketSize:               100,
		CapacityFraction:            0.5,
		MinCapacityUSD:              1000,
		TopK:                        5,
		RebalanceFrequency:          types.RebalanceWeekly,
		RebalanceThreshold:          0.05,
		RebalanceCostRate:           0.001,
		StopLossThreshold:           0.15,
		HedgeDriftThreshold:         0.05,
		EntryFeeRate:                0.003,
		ExitFeeRate:                 0.003,
		RebalanceFeeRate:            0.001,
		RebalancesPerYear:           52,
		EntryGasUSD:                 5,
		ExitGasUSD:                  5,
		RebalanceGasUSD:             3,
		RebalancedFraction:          0.10,
		FundingPeriodsYear:          1095,
		BasisMonthlyDecay:           0.10,
		AnnualVolatility:            0.6,
		PDHorizonDays:               7,
	}
}

func testSeries(assetID string, days int, apy float64) types.PriceSeries {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]types.PricePoint, days)
	for i := range points {
		points[i] = types.PricePoint{Date: start.AddDate(0, 0, i), Value: apy}
	}
	return types.PriceSeries{AssetID: assetID, Points: points}
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{
		CandidateSource: mockCandidateSource{candidates: []types.CandidateOpportunity{
			{ID: "pool-a", BaseAPY: 22, TvlUSD: 5_000_000, CapacityUSD: 500_000, Venue: types.VenueAMM, ILRisk: 30},
			{ID: "pool-b", BaseAPY: 14, TvlUSD: 9_000_000, CapacityUSD: 800_000, Venue: types.VenueOrderBook, ILRisk: 10},
		}},
		SeriesSource: mockSeriesSource{series: map[string]types.PriceSeries{
			"pool-a": testSeries("pool-a", 60, 22),
			"pool-b": testSeries("pool-b", 60, 14),
		}},
		Oracle: oracle.NewStatic(map[string]sdkmath.LegacyDec{
			"atom": sdkmath.LegacyMustNewDecFromStr("9.25"),
		}),
		Params:          testParams(),
		TotalCapitalUSD: 100_000,
		Persist:         false,
	})
	require.NoError(t, err)
	return e
}

func TestRunCycle_ProducesPlanAndBacktest(t *testing.T) {
	e := testEngine(t)

	outcome, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.CycleNumber)
	assert.False(t, outcome.Plan.IsEmpty())
	assert.Equal(t, types.ReasonOK, outcome.Plan.Reason)
	assert.LessOrEqual(t, outcome.Plan.TotalAlloc, 100_000.0)

	require.NotNil(t, outcome.Backtest)
	assert.Equal(t, outcome.Plan.PlanID, outcome.Backtest.PlanID)
	assert.Equal(t, 60, outcome.Backtest.TradingDays)
	assert.Greater(t, outcome.Backtest.TotalReturn, 0.0)
}

func TestRunCycle_CandidatesGetDecomposedNetAPR(t *testing.T) {
	e := testEngine(t)

	outcome, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	// Net APR scoring survives cost drag and still ranks pool-a first.
	assert.Greater(t, outcome.Plan.Allocations["pool-a"], outcome.Plan.Allocations["pool-b"])
}

func TestRunCycle_CycleNumberAdvancesWithoutPersistence(t *testing.T) {
	e := testEngine(t)

	first, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	second, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.CycleNumber+1, second.CycleNumber)
}

func TestRunCycle_SourceFailurePropagates(t *testing.T) {
	e := testEngine(t)
	e.candidates = mockCandidateSource{err: assert.AnError}

	_, err := e.RunCycle(context.Background())
	assert.Error(t, err)
}

func TestRunCycle_EmptyUniverseYieldsReasonedPlan(t *testing.T) {
	e := testEngine(t)
	e.candidates = mockCandidateSource{candidates: []types.CandidateOpportunity{}}

	outcome, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Plan.IsEmpty())
	assert.Equal(t, types.ReasonNoOpportunities, outcome.Plan.Reason)
	assert.Nil(t, outcome.Backtest)
}

func TestAssessPosition_MarksToOraclePrice(t *testing.T) {
	e := testEngine(t)

	position := types.StrategyPosition{
		ID:               "pos-1",
		Category:         types.CategoryLooping,
		PrincipalUSD:     10_000,
		Leverage:         3.0,
		CollateralFactor: 0.8,
		EntryPrice:       10,
		StakingAPR:       0.15,
		BorrowRate:       0.08,
	}

	profile, err := e.AssessPosition("atom", position, nil)
	require.NoError(t, err)

	// Collateral 30k at 80% threshold against 20k debt: HF = 1.2.
	assert.InDelta(t, 1.2, profile.HealthFactor, 1e-9)
	assert.Greater(t, profile.ProbabilityOfDefault, 0.0)
}

func TestAssessPosition_UnknownAssetFails(t *testing.T) {
	e := testEngine(t)
	_, err := e.AssessPosition("doge", types.StrategyPosition{PrincipalUSD: 1000, Leverage: 1}, nil)
	assert.Error(t, err)
}

func TestNew_ValidatesDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{
		CandidateSource: mockCandidateSource{},
		SeriesSource:    mockSeriesSource{},
		Oracle:          oracle.NewStatic(nil),
		Params:          testParams(),
		TotalCapitalUSD: 0,
	})
	assert.Error(t, err)
}
