// ./internal/state/backtest_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/defiquant/yre/internal/types"
)

// SaveBacktestResult persists one completed run. Daily records are not stored;
// they are reproducible from the inputs and a completed run is never mutated.
func SaveBacktestResult(result types.BacktestResult) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	var gapsJSON []byte
	if len(result.DataGaps) > 0 {
		var err error
		gapsJSON, err = json.Marshal(result.DataGaps)
		if err != nil {
			return fmt.Errorf("failed to marshal data gaps: %w", err)
		}
	}

	var planID interface{}
	if result.PlanID != "" {
		planID = result.PlanID
	}

	stmt := `
        INSERT INTO backtest_results (
            run_id, plan_id, start_date, end_date, trading_days,
            initial_capital, final_value, total_return, annualized_return,
            volatility, sharpe_ratio, sortino_ratio, max_drawdown, calmar_ratio,
            win_rate, profit_factor, value_at_risk_95, cvar_95, alpha, beta,
            total_cost_usd, stop_loss_days, large_loss_days, data_gaps
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8, $9,
            $10, $11, $12, $13, $14,
            $15, $16, $17, $18, $19, $20,
            $21, $22, $23, $24
        );`

	_, err := DB.Exec(stmt,
		result.RunID, planID, result.StartDate, result.EndDate, result.TradingDays,
		result.InitialCapital, result.FinalValue, result.TotalReturn, result.AnnualizedReturn,
		result.Volatility, result.SharpeRatio, nullableRatio(result.SortinoRatio),
		result.MaxDrawdown, nullableRatio(result.CalmarRatio),
		result.WinRate, nullableRatio(result.ProfitFactor),
		result.ValueAtRisk95, result.CVaR95, result.Alpha, result.Beta,
		result.TotalCostUSD, result.StopLossDays, result.LargeLossDays, gapsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert backtest result: %w", err)
	}

	log.Info().
		Str("run_id", result.RunID).
		Float64("total_return", result.TotalReturn).
		Float64("sharpe", result.SharpeRatio).
		Msg("Saved backtest result")
	return nil
}

// LoadBacktestResult retrieves one run by ID.
func LoadBacktestResult(runID string) (*types.BacktestResult, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT run_id, COALESCE(plan_id::text, ''), start_date, end_date, trading_days,
               initial_capital, final_value, total_return, annualized_return,
               volatility, sharpe_ratio, COALESCE(sortino_ratio, 0), max_drawdown, COALESCE(calmar_ratio, 0),
               win_rate, COALESCE(profit_factor, 0), value_at_risk_95, cvar_95, alpha, beta,
               total_cost_usd, stop_loss_days, large_loss_days, data_gaps
        FROM backtest_results
        WHERE run_id = $1;`

	result := &types.BacktestResult{}
	var gapsJSON []byte
	row := DB.QueryRow(query, runID)
	err := row.Scan(
		&result.RunID, &result.PlanID, &result.StartDate, &result.EndDate, &result.TradingDays,
		&result.InitialCapital, &result.FinalValue, &result.TotalReturn, &result.AnnualizedReturn,
		&result.Volatility, &result.SharpeRatio, &result.SortinoRatio, &result.MaxDrawdown, &result.CalmarRatio,
		&result.WinRate, &result.ProfitFactor, &result.ValueAtRisk95, &result.CVaR95, &result.Alpha, &result.Beta,
		&result.TotalCostUSD, &result.StopLossDays, &result.LargeLossDays, &gapsJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no backtest result found with ID '%s'", runID)
		}
		return nil, fmt.Errorf("failed to scan backtest result '%s': %w", runID, err)
	}

	if len(gapsJSON) > 0 {
		if err := json.Unmarshal(gapsJSON, &result.DataGaps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal data gaps for run '%s': %w", runID, err)
		}
	}
	return result, nil
}

// LoadRecentBacktestResults returns the most recent completed runs, newest
// first, without their data gaps.
func LoadRecentBacktestResults(limit int) ([]types.BacktestResult, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
        SELECT run_id, COALESCE(plan_id::text, ''), start_date, end_date, trading_days,
               initial_capital, final_value, total_return, annualized_return,
               volatility, sharpe_ratio, max_drawdown, win_rate,
               value_at_risk_95, cvar_95, alpha, beta, total_cost_usd
        FROM backtest_results
        ORDER BY created_at DESC
        LIMIT $1;`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent backtest results: %w", err)
	}
	defer rows.Close()

	var results []types.BacktestResult
	for rows.Next() {
		var r types.BacktestResult
		if err := rows.Scan(
			&r.RunID, &r.PlanID, &r.StartDate, &r.EndDate, &r.TradingDays,
			&r.InitialCapital, &r.FinalValue, &r.TotalReturn, &r.AnnualizedReturn,
			&r.Volatility, &r.SharpeRatio, &r.MaxDrawdown, &r.WinRate,
			&r.ValueAtRisk95, &r.CVaR95, &r.Alpha, &r.Beta, &r.TotalCostUSD,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backtest result row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backtest result rows: %w", err)
	}
	return results, nil
}

// nullableRatio maps non-finite ratio sentinels (+Inf with no downside days,
// for example) to SQL NULL, since DECIMAL cannot hold them.
func nullableRatio(v float64) interface{} {
	if v != v || v > 1e15 || v < -1e15 {
		return nil
	}
	return v
}
