/*

This file contains the core engine: the orchestrator that runs one analysis
cycle end to end. A cycle pulls the candidate universe, decomposes each
candidate's yield into its cost components, produces an allocation plan under
the active constraints, validates the plan with a historical backtest, and
persists the plan and the result.

The engine is analysis-only. It never touches a venue; execution of a produced
plan is an operator decision.

*/

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/defiquant/yre/internal/backtest"
	"github.com/defiquant/yre/internal/datafetcher"
	"github.com/defiquant/yre/internal/logger"
	"github.com/defiquant/yre/internal/optimizer"
	"github.com/defiquant/yre/internal/oracle"
	"github.com/defiquant/yre/internal/risk"
	"github.com/defiquant/yre/internal/state"
	"github.com/defiquant/yre/internal/types"
	"github.com/defiquant/yre/internal/utils"
	"github.com/defiquant/yre/internal/yield"
)

const (
	// Export constants for use in main.go
	DEFAULT_CONFIG_NAME    = "default_yield_strategy"
	DEFAULT_CONFIG_VERSION = 1
)

// Engine holds one configured instance with all its dependencies.
type Engine struct {
	logger     zerolog.Logger
	candidates datafetcher.CandidateSource
	series     datafetcher.PriceSeriesSource
	oracle     oracle.PriceOracle
	params     *types.StrategyParameters
	paramsID   int64

	totalCapital float64
	persist      bool // false in offline/analysis mode: no database writes

	cycleCount int
}

// Config holds the configuration for creating a new Engine instance.
type Config struct {
	CandidateSource datafetcher.CandidateSource
	SeriesSource    datafetcher.PriceSeriesSource
	Oracle          oracle.PriceOracle
	Params          *types.StrategyParameters
	ParamsID        int64
	TotalCapitalUSD float64
	Persist         bool
}

// New creates an Engine instance with dependency injection.
func New(cfg Config) (*Engine, error) {
	if err := validateEngineConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	e := &Engine{
		logger:       logger.GetForComponent("engine_core"),
		candidates:   cfg.CandidateSource,
		series:       cfg.SeriesSource,
		oracle:       cfg.Oracle,
		params:       cfg.Params,
		paramsID:     cfg.ParamsID,
		totalCapital: cfg.TotalCapitalUSD,
		persist:      cfg.Persist,
	}

	e.logger.Info().
		Float64("totalCapital", e.totalCapital).
		Bool("persist", e.persist).
		Msg("Engine instance created")

	return e, nil
}

func validateEngineConfig(cfg Config) error {
	if cfg.CandidateSource == nil {
		return fmt.Errorf("candidate source cannot be nil")
	}
	if cfg.SeriesSource == nil {
		return fmt.Errorf("series source cannot be nil")
	}
	if cfg.Oracle == nil {
		return fmt.Errorf("price oracle cannot be nil")
	}
	if cfg.Params == nil {
		return fmt.Errorf("strategy parameters cannot be nil")
	}
	if cfg.TotalCapitalUSD <= 0 {
		return fmt.Errorf("total capital must be positive")
	}
	return nil
}

// CycleOutcome bundles everything one cycle produced.
type CycleOutcome struct {
	CycleNumber int
	Plan        types.AllocationPlan
	Backtest    *types.BacktestResult // nil when the plan was empty
}

// RunLoop starts the main engine loop with the specified interval.
func (e *Engine) RunLoop(ctx context.Context, interval time.Duration) {
	e.logger.Info().Dur("interval", interval).Msg("Starting engine main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.runLoggedCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Engine loop stopped due to context cancellation")
			return
		case <-ticker.C:
			e.runLoggedCycle(ctx)
		}
	}
}

func (e *Engine) runLoggedCycle(ctx context.Context) {
	if _, err := e.RunCycle(ctx); err != nil {
		e.logger.Error().Err(err).Int("cycle", e.cycleCount).Msg("Engine cycle failed")
	}
}

// RunCycle executes one full analysis cycle.
func (e *Engine) RunCycle(ctx context.Context) (*CycleOutcome, error) {
	cycleNumber, err := e.nextCycleNumber()
	if err != nil {
		return nil, err
	}
	e.logger.Info().Int("cycle", cycleNumber).Msg("Starting engine cycle")

	// Phase 1: candidate universe.
	candidates, err := e.candidates.GetCandidates()
	if err != nil {
		return nil, fmt.Errorf("candidate retrieval failed: %w", err)
	}

	// Phase 2: yield decomposition. Each candidate gets a full cost-adjusted
	// net APR; a candidate whose decomposition fails keeps only its base APY
	// hint and competes at a discount rather than aborting the cycle.
	for i := range candidates {
		breakdown, err := e.decompose(candidates[i])
		if err != nil {
			e.logger.Warn().Err(err).
				Str("candidate", candidates[i].ID).
				Msg("Yield decomposition failed, candidate falls back to base APY scoring")
			continue
		}
		net := breakdown.NetAPR
		candidates[i].NetAPR = &net
	}

	// Phase 3: allocation.
	constraints := optimizer.Constraints{
		MaxSingleAllocationFraction: e.params.MaxSingleAllocationFraction,
		MinTicketSize:               e.params.MinTicketSize,
		CapacityFraction:            e.params.CapacityFraction,
		MinCapacityUSD:              e.params.MinCapacityUSD,
		TopK:                        e.params.TopK,
	}
	plan, err := optimizer.Optimize(candidates, e.totalCapital, e.params.RiskTolerance, constraints)
	if err != nil {
		return nil, fmt.Errorf("optimization failed: %w", err)
	}

	outcome := &CycleOutcome{CycleNumber: cycleNumber, Plan: plan}

	// Phase 4: backtest validation of a non-empty plan.
	if !plan.IsEmpty() {
		result, err := e.validatePlan(ctx, plan)
		if err != nil {
			e.logger.Warn().Err(err).
				Str("planID", plan.PlanID).
				Msg("Backtest validation failed, plan published without historical validation")
		} else {
			outcome.Backtest = result
		}
	}

	// Phase 5: persistence.
	if e.persist {
		if err := state.SaveAllocationPlan(plan, cycleNumber, e.paramsID); err != nil {
			return nil, fmt.Errorf("failed to persist allocation plan: %w", err)
		}
		if outcome.Backtest != nil {
			if err := state.SaveBacktestResult(*outcome.Backtest); err != nil {
				return nil, fmt.Errorf("failed to persist backtest result: %w", err)
			}
		}
	}

	e.logger.Info().
		Int("cycle", cycleNumber).
		Str("planID", plan.PlanID).
		Int("allocations", len(plan.Allocations)).
		Float64("totalAllocated", plan.TotalAlloc).
		Str("reason", string(plan.Reason)).
		Msg("Engine cycle completed")

	e.cycleCount = cycleNumber
	return outcome, nil
}

// decompose runs the full yield decomposition for one candidate at a probe
// ticket size of the maximum single allocation.
func (e *Engine) decompose(candidate types.CandidateOpportunity) (yield.Breakdown, error) {
	probeUSD := e.totalCapital * e.params.MaxSingleAllocationFraction

	// USD-denominated probe: quantity of 1-dollar units at price 1.
	staking, err := yield.CalculateStakingYield(probeUSD, candidate.BaseAPY/100, 1)
	if err != nil {
		return yield.Breakdown{}, err
	}

	// File-sourced candidates carry no perp leg; funding and basis enter the
	// decomposition as zero-valued components.
	funding, err := yield.CalculateFundingComponent(0, 1, 0, e.params.FundingPeriodsYear)
	if err != nil {
		return yield.Breakdown{}, err
	}

	fees, err := yield.CalculateTradingFees(probeUSD,
		e.params.EntryFeeRate, e.params.ExitFeeRate,
		e.params.RebalanceFeeRate, e.params.RebalancesPerYear)
	if err != nil {
		return yield.Breakdown{}, err
	}

	gas, err := yield.CalculateGasCosts(
		e.params.EntryGasUSD, e.params.ExitGasUSD, e.params.RebalanceGasUSD,
		e.params.RebalancesPerYear, 365, probeUSD)
	if err != nil {
		return yield.Breakdown{}, err
	}

	slippage, err := yield.CalculateSlippageCosts(probeUSD, candidate.TvlUSD,
		e.params.RebalancesPerYear, candidate.Venue, e.params.RebalancedFraction)
	if err != nil {
		return yield.Breakdown{}, err
	}

	basis, err := yield.CalculateBasisCost(0, probeUSD, 365, e.params.BasisMonthlyDecay)
	if err != nil {
		return yield.Breakdown{}, err
	}

	return yield.Compose(staking, funding, fees, gas, slippage, basis)
}

// validatePlan replays the proposed allocations against historical series.
func (e *Engine) validatePlan(ctx context.Context, plan types.AllocationPlan) (*types.BacktestResult, error) {
	assetIDs := make([]string, 0, len(plan.Allocations))
	for assetID := range plan.Allocations {
		assetIDs = append(assetIDs, assetID)
	}

	series, err := e.series.GetSeries(assetIDs)
	if err != nil {
		return nil, fmt.Errorf("series retrieval failed: %w", err)
	}

	sim, err := backtest.New(backtest.Config{
		PlanID:            plan.PlanID,
		InitialCapital:    plan.TotalCapital,
		Allocations:       plan.Allocations,
		Series:            series,
		Frequency:         e.params.RebalanceFrequency,
		DriftThreshold:    e.params.RebalanceThreshold,
		CostRate:          e.params.RebalanceCostRate,
		StopLossThreshold: e.params.StopLossThreshold,
	})
	if err != nil {
		return nil, err
	}

	result, err := sim.Run(ctx)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AssessPosition builds the risk profile for one deployed position, marking
// it to the oracle price first.
func (e *Engine) AssessPosition(assetID string, position types.StrategyPosition, dailyReturns []float64) (types.RiskProfile, error) {
	priceDec, err := e.oracle.GetPrice(assetID)
	if err != nil {
		return types.RiskProfile{}, fmt.Errorf("oracle price lookup failed for %s: %w", assetID, err)
	}
	price, err := utils.DecToFloat64(priceDec)
	if err != nil {
		return types.RiskProfile{}, fmt.Errorf("oracle price conversion failed for %s: %w", assetID, err)
	}
	position.CurrentPrice = price

	collateralValue := position.PrincipalUSD * position.Leverage
	debtValue := position.PrincipalUSD * (position.Leverage - 1)

	// Liquidation threshold follows from the collateral factor for looped
	// positions; unlevered positions carry no debt and the threshold is moot.
	liqThreshold := position.CollateralFactor
	if liqThreshold == 0 {
		liqThreshold = 1
	}

	shortExposure := 0.0
	if position.Category == types.CategoryDeltaNeutral {
		shortExposure = position.PrincipalUSD
	}

	return risk.BuildProfile(risk.ProfileInputs{
		CollateralQty:    collateralValue / price,
		CollateralPrice:  price,
		DebtQty:          debtValue,
		DebtPrice:        1,
		LiqThreshold:     liqThreshold,
		StakedExposure:   collateralValue,
		ShortExposure:    shortExposure,
		AnnualVolatility: e.params.AnnualVolatility,
		PDHorizonDays:    e.params.PDHorizonDays,
		DailyReturns:     dailyReturns,
	})
}

func (e *Engine) nextCycleNumber() (int, error) {
	if !e.persist {
		return e.cycleCount + 1, nil
	}
	cycle, err := state.IncrementCycleNumber()
	if err != nil {
		return 0, fmt.Errorf("failed to increment cycle counter: %w", err)
	}
	return cycle, nil
}
