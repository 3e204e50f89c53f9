/*

This file assembles the BacktestResult from the raw daily path produced by the
simulator: return statistics, drawdown, tail risk, and the regression against
an optional benchmark series.

*/

package backtest

import (
	"math"
	"time"

	"github.com/defiquant/yre/internal/risk"
	"github.com/defiquant/yre/internal/types"
)

// TradingDaysPerYear is the annualization convention for return statistics.
// Yield accrual itself runs on calendar days; the distribution metrics follow
// the trading-day convention so they compare against market benchmarks.
const TradingDaysPerYear = 252

func (s *Simulator) buildResult(calendar []time.Time, values, dailyReturns []float64, totalCost float64, stopLossDays, largeLossDays int, gaps []types.DataGap, daily []types.DailyRecord) (types.BacktestResult, error) {
	finalValue := values[len(values)-1]
	totalReturn := (finalValue - s.cfg.InitialCapital) / s.cfg.InitialCapital

	days := calendar[len(calendar)-1].Sub(calendar[0]).Hours()/24 + 1
	annualized := 0.0
	if days > 0 && finalValue > 0 {
		annualized = math.Pow(finalValue/s.cfg.InitialCapital, 365/days) - 1
	}

	stats, err := risk.CalculateReturnStats(dailyReturns, 0, TradingDaysPerYear)
	if err != nil {
		return types.BacktestResult{}, err
	}

	maxDrawdown, err := risk.MaxDrawdown(values)
	if err != nil {
		return types.BacktestResult{}, err
	}

	calmar := 0.0
	switch {
	case maxDrawdown > 0:
		calmar = annualized / maxDrawdown
	case annualized > 0:
		calmar = math.Inf(1)
	}

	alpha, beta := regressAgainstBenchmark(dailyReturns, s.cfg.Benchmark)

	return types.BacktestResult{
		RunID:            s.cfg.RunID,
		PlanID:           s.cfg.PlanID,
		StartDate:        calendar[0],
		EndDate:          calendar[len(calendar)-1],
		TradingDays:      len(calendar),
		InitialCapital:   s.cfg.InitialCapital,
		FinalValue:       finalValue,
		TotalReturn:      totalReturn * 100,
		AnnualizedReturn: annualized * 100,
		Volatility:       stats.StdDev * math.Sqrt(TradingDaysPerYear) * 100,
		SharpeRatio:      stats.SharpeRatio,
		SortinoRatio:     stats.SortinoRatio,
		MaxDrawdown:      maxDrawdown * 100,
		CalmarRatio:      calmar,
		WinRate:          winRate(dailyReturns) * 100,
		ProfitFactor:     profitFactor(values),
		ValueAtRisk95:    stats.ValueAtRisk95 * 100,
		CVaR95:           stats.CVaR95 * 100,
		Alpha:            alpha * TradingDaysPerYear * 100,
		Beta:             beta,
		TotalCostUSD:     totalCost,
		StopLossDays:     stopLossDays,
		LargeLossDays:    largeLossDays,
		DataGaps:         gaps,
		Daily:            daily,
	}, nil
}

// regressAgainstBenchmark runs OLS of portfolio returns on benchmark returns
// over their common prefix. Without a benchmark (or with a flat one) both
// coefficients are zero. Alpha is the per-day intercept.
func regressAgainstBenchmark(returns, benchmark []float64) (alpha, beta float64) {
	n := len(returns)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n < 2 {
		return 0, 0
	}

	r := returns[:n]
	b := benchmark[:n]

	meanR, meanB := mean(r), mean(b)
	covRB, varB := 0.0, 0.0
	for i := 0; i < n; i++ {
		covRB += (r[i] - meanR) * (b[i] - meanB)
		varB += (b[i] - meanB) * (b[i] - meanB)
	}
	if varB == 0 {
		return 0, 0
	}

	beta = covRB / varB
	alpha = meanR - beta*meanB
	return alpha, beta
}

func winRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

// profitFactor is the ratio of summed dollar gains to summed dollar losses on
// the daily value path. Sentinel: +Inf with gains and no losses, 0 otherwise.
func profitFactor(values []float64) float64 {
	gains, losses := 0.0, 0.0
	for i := 1; i < len(values); i++ {
		pnl := values[i] - values[i-1]
		if pnl > 0 {
			gains += pnl
		} else {
			losses -= pnl
		}
	}
	if losses == 0 {
		if gains > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return gains / losses
}

func mean(sample []float64) float64 {
	sum := 0.0
	for _, v := range sample {
		sum += v
	}
	return sum / float64(len(sample))
}
