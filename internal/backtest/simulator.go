/*

This file contains the backtest simulator. It replays an allocation plan
against per-asset daily APY series, one day at a time:

	INITIALIZED -> (ACCRUING_YIELD -> REBALANCE_CHECK -> [REBALANCING])* -> COMPLETED

The simulator is deterministic given a fixed config and series; any stochastic
input comes from the seeded synthetic generator. Long runs honor context
cancellation at daily-step boundaries. Missing data points are forward-filled
and recorded as data gaps, never errors.

*/

package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/defiquant/yre/internal/logger"
	"github.com/defiquant/yre/internal/types"
)

var (
	ErrNoTradableDays = errors.New("no tradable days in the requested window")
	ErrMissingSeries  = errors.New("no price series for allocated asset")
)

// LargeLossBar flags any single day worse than -10%.
const LargeLossBar = -0.10

// CashKey is the reserved weight key for unallocated capital.
const CashKey = "CASH"

// Config describes one backtest run. All fields are plain parameters; nothing
// reads the environment.
type Config struct {
	RunID             string
	PlanID            string
	InitialCapital    float64
	Allocations       map[string]float64            // target USD per asset, from an AllocationPlan
	Series            map[string]types.PriceSeries  // daily APY series (annual %, sampled daily) per allocated asset
	Benchmark         []float64                     // optional aligned daily benchmark returns, decimal
	Frequency         types.RebalanceFrequency
	DriftThreshold    float64 // per-asset weight drift (decimal) triggering a rebalance
	CostRate          float64 // per-leg cost as a fraction of the amount moved
	StopLossThreshold float64 // cumulative loss (decimal) raising the stop-loss flag
	KeepDailyRecords  bool
}

// Simulator replays one configured run. Create with New, execute with Run.
type Simulator struct {
	cfg     Config
	logger  zerolog.Logger
	status  types.RunStatus
	targets map[string]float64 // target weights incl. cash
	assets  []string           // allocated asset IDs, sorted; fixes iteration order
}

// New validates the config and prepares a simulator in INITIALIZED state.
func New(cfg Config) (*Simulator, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	// Maps iterate in random order; a fixed asset order keeps gap records and
	// float summation reproducible across runs.
	assets := make([]string, 0, len(cfg.Allocations))
	for asset := range cfg.Allocations {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	targets := make(map[string]float64, len(cfg.Allocations)+1)
	allocated := 0.0
	for _, asset := range assets {
		targets[asset] = cfg.Allocations[asset] / cfg.InitialCapital
		allocated += cfg.Allocations[asset]
	}
	targets[CashKey] = 1 - allocated/cfg.InitialCapital

	return &Simulator{
		cfg:     cfg,
		logger:  logger.GetForComponent("backtest_simulator").With().Str("runID", cfg.RunID).Logger(),
		status:  types.RunInitialized,
		targets: targets,
		assets:  assets,
	}, nil
}

// Status exposes the state machine position, mainly for progress reporting.
func (s *Simulator) Status() types.RunStatus {
	return s.status
}

func validateConfig(cfg Config) error {
	if math.IsNaN(cfg.InitialCapital) || cfg.InitialCapital <= 0 {
		return errors.Join(types.ErrInvalidInput, errors.New("initial capital must be positive"))
	}
	if len(cfg.Allocations) == 0 {
		return errors.Join(types.ErrInvalidInput, errors.New("allocation plan is empty"))
	}
	allocated := 0.0
	for asset, amount := range cfg.Allocations {
		if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
			return errors.Join(types.ErrInvalidInput, fmt.Errorf("allocation for %s is invalid: %f", asset, amount))
		}
		allocated += amount
		series, ok := cfg.Series[asset]
		if !ok || len(series.Points) == 0 {
			return errors.Join(types.ErrInvalidInput, ErrMissingSeries, fmt.Errorf("asset %s", asset))
		}
	}
	if allocated > cfg.InitialCapital*(1+1e-9) {
		return errors.Join(types.ErrInvalidInput,
			fmt.Errorf("allocations (%.2f) exceed initial capital (%.2f)", allocated, cfg.InitialCapital))
	}
	switch cfg.Frequency {
	case types.RebalanceDaily, types.RebalanceWeekly, types.RebalanceMonthly:
	default:
		return errors.Join(types.ErrInvalidInput, fmt.Errorf("unknown rebalance frequency %q", cfg.Frequency))
	}
	if cfg.DriftThreshold < 0 || cfg.CostRate < 0 || cfg.StopLossThreshold < 0 {
		return errors.Join(types.ErrInvalidInput, errors.New("thresholds and cost rate cannot be negative"))
	}
	return nil
}

// Run executes the simulation to completion (or cancellation) and returns the
// immutable result. A run with zero tradable days fails before producing any
// result.
func (s *Simulator) Run(ctx context.Context) (types.BacktestResult, error) {
	calendar, lookup := s.buildCalendar()
	if len(calendar) == 0 {
		return types.BacktestResult{}, errors.Join(types.ErrInvalidInput, ErrNoTradableDays)
	}

	amounts := make(map[string]float64, len(s.cfg.Allocations))
	for asset, amount := range s.cfg.Allocations {
		amounts[asset] = amount
	}
	cash := s.cfg.InitialCapital * s.targets[CashKey]

	lastKnownAPY := make(map[string]float64, len(amounts))
	var gaps []types.DataGap
	var daily []types.DailyRecord
	dailyReturns := make([]float64, 0, len(calendar))
	values := make([]float64, 0, len(calendar))

	totalCost := 0.0
	stopLossDays, largeLossDays := 0, 0
	previousValue := s.cfg.InitialCapital
	lastRebalance := calendar[0]

	s.logger.Info().
		Int("tradableDays", len(calendar)).
		Float64("initialCapital", s.cfg.InitialCapital).
		Str("frequency", string(s.cfg.Frequency)).
		Msg("Backtest starting")

	for dayIndex, date := range calendar {
		// Cooperative cancellation at the daily-step boundary.
		select {
		case <-ctx.Done():
			return types.BacktestResult{}, ctx.Err()
		default:
		}

		// --- Accrue yield ---
		s.status = types.RunAccruingYield
		for _, asset := range s.assets {
			apy, ok := lookup[asset][date]
			if !ok {
				if known, seen := lastKnownAPY[asset]; seen {
					apy = known
				} else {
					apy = 0
				}
				gaps = append(gaps, types.DataGap{AssetID: asset, Date: date.Format("2006-01-02")})
			} else {
				lastKnownAPY[asset] = apy
			}
			amounts[asset] *= 1 + apy/100/365
		}

		// --- Rebalance check ---
		s.status = types.RunRebalanceCheck
		totalValue := cash + s.sumValues(amounts)
		rebalanced := false
		if dayIndex > 0 && s.shouldRebalance(date, lastRebalance, totalValue, amounts) {
			s.status = types.RunRebalancing
			cost := s.rebalance(totalValue, amounts, &cash)
			totalCost += cost
			totalValue = cash + s.sumValues(amounts)
			lastRebalance = date
			rebalanced = true
		}

		// --- Daily bookkeeping and risk flags ---
		dailyReturn := 0.0
		if previousValue > 0 {
			dailyReturn = (totalValue - previousValue) / previousValue
		}
		totalReturn := (totalValue - s.cfg.InitialCapital) / s.cfg.InitialCapital

		stopLoss := s.cfg.StopLossThreshold > 0 && totalReturn < -s.cfg.StopLossThreshold
		largeLoss := dailyReturn < LargeLossBar
		if stopLoss {
			stopLossDays++
			// Flag only; the caller decides whether to unwind.
			s.logger.Warn().
				Time("date", date).
				Float64("totalReturn", totalReturn).
				Msg("Stop-loss threshold breached")
		}
		if largeLoss {
			largeLossDays++
		}

		dailyReturns = append(dailyReturns, dailyReturn)
		values = append(values, totalValue)
		if s.cfg.KeepDailyRecords {
			daily = append(daily, types.DailyRecord{
				Date:          date,
				TotalValue:    totalValue,
				Weights:       s.currentWeights(totalValue, amounts, cash),
				DailyReturn:   dailyReturn,
				Rebalanced:    rebalanced,
				StopLossFlag:  stopLoss,
				LargeLossFlag: largeLoss,
			})
		}
		previousValue = totalValue
	}

	s.status = types.RunCompleted

	result, err := s.buildResult(calendar, values, dailyReturns, totalCost, stopLossDays, largeLossDays, gaps, daily)
	if err != nil {
		return types.BacktestResult{}, err
	}

	s.logger.Info().
		Float64("finalValue", result.FinalValue).
		Float64("totalReturn", result.TotalReturn).
		Float64("sharpe", result.SharpeRatio).
		Float64("maxDrawdown", result.MaxDrawdown).
		Int("dataGaps", len(gaps)).
		Msg("Backtest completed")

	return result, nil
}

// buildCalendar produces the sorted union of dates across all allocated
// assets plus a per-asset date -> APY lookup.
func (s *Simulator) buildCalendar() ([]time.Time, map[string]map[time.Time]float64) {
	lookup := make(map[string]map[time.Time]float64, len(s.cfg.Allocations))
	dateSet := make(map[time.Time]struct{})

	for asset := range s.cfg.Allocations {
		series := s.cfg.Series[asset]
		byDate := make(map[time.Time]float64, len(series.Points))
		for _, point := range series.Points {
			day := point.Date.Truncate(24 * time.Hour)
			byDate[day] = point.Value
			dateSet[day] = struct{}{}
		}
		lookup[asset] = byDate
	}

	calendar := make([]time.Time, 0, len(dateSet))
	for date := range dateSet {
		calendar = append(calendar, date)
	}
	sort.Slice(calendar, func(i, j int) bool { return calendar[i].Before(calendar[j]) })
	return calendar, lookup
}

func (s *Simulator) shouldRebalance(date, lastRebalance time.Time, totalValue float64, amounts map[string]float64) bool {
	switch s.cfg.Frequency {
	case types.RebalanceDaily:
		return true
	case types.RebalanceWeekly:
		if date.Sub(lastRebalance) >= 7*24*time.Hour {
			return true
		}
	case types.RebalanceMonthly:
		if date.Sub(lastRebalance) >= 30*24*time.Hour {
			return true
		}
	}

	if s.cfg.DriftThreshold <= 0 || totalValue <= 0 {
		return false
	}
	for asset, amount := range amounts {
		if math.Abs(amount/totalValue-s.targets[asset]) > s.cfg.DriftThreshold {
			return true
		}
	}
	return false
}

// rebalance moves every asset back to its target dollar amount at current
// total value and charges |moved| * cost rate per leg, paid from cash.
func (s *Simulator) rebalance(totalValue float64, amounts map[string]float64, cash *float64) float64 {
	cost := 0.0
	for _, asset := range s.assets {
		target := totalValue * s.targets[asset]
		moved := math.Abs(target - amounts[asset])
		cost += moved * s.cfg.CostRate
		amounts[asset] = target
	}
	*cash = totalValue*s.targets[CashKey] - cost
	return cost
}

func (s *Simulator) currentWeights(totalValue float64, amounts map[string]float64, cash float64) map[string]float64 {
	weights := make(map[string]float64, len(amounts)+1)
	if totalValue <= 0 {
		return weights
	}
	for asset, amount := range amounts {
		weights[asset] = amount / totalValue
	}
	weights[CashKey] = cash / totalValue
	return weights
}

func (s *Simulator) sumValues(amounts map[string]float64) float64 {
	total := 0.0
	for _, asset := range s.assets {
		total += amounts[asset]
	}
	return total
}
