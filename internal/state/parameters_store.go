// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/defiquant/yre/internal/types"
)

// SaveStrategyParameters saves a new version of strategy parameters. When
// makeActive is true the previous active set for the config is deactivated in
// the same transaction, so exactly one set stays active per config name.
func SaveStrategyParameters(params types.StrategyParameters, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE strategy_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
        INSERT INTO strategy_parameters (
            version, config_name, is_active, activated_at, created_at,
            risk_tolerance, max_single_allocation_fraction, min_ticket_size,
            capacity_fraction, min_capacity_usd, top_k,
            rebalance_frequency, rebalance_threshold, rebalance_cost_rate,
            stop_loss_threshold, hedge_drift_threshold,
            entry_fee_rate, exit_fee_rate, rebalance_fee_rate, rebalances_per_year,
            entry_gas_usd, exit_gas_usd, rebalance_gas_usd, rebalanced_fraction,
            funding_periods_year, basis_monthly_decay,
            annual_volatility, pd_horizon_days
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            $9, $10, $11,
            $12, $13, $14,
            $15, $16,
            $17, $18, $19, $20,
            $21, $22, $23, $24,
            $25, $26,
            $27, $28
        ) RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		params.RiskTolerance, params.MaxSingleAllocationFraction, params.MinTicketSize,
		params.CapacityFraction, params.MinCapacityUSD, params.TopK,
		params.RebalanceFrequency, params.RebalanceThreshold, params.RebalanceCostRate,
		params.StopLossThreshold, params.HedgeDriftThreshold,
		params.EntryFeeRate, params.ExitFeeRate, params.RebalanceFeeRate, params.RebalancesPerYear,
		params.EntryGasUSD, params.ExitGasUSD, params.RebalanceGasUSD, params.RebalancedFraction,
		params.FundingPeriodsYear, params.BasisMonthlyDecay,
		params.AnnualVolatility, params.PDHorizonDays,
	).Scan(&paramsID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert strategy parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved strategy parameters")
	return paramsID, nil
}

// LoadActiveStrategyParameters loads the currently active strategy parameters
// for a config name.
func LoadActiveStrategyParameters(configName string) (*types.StrategyParameters, int64, error) {
	if DB == nil {
		return nil, 0, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            params_id,
            risk_tolerance, max_single_allocation_fraction, min_ticket_size,
            capacity_fraction, min_capacity_usd, top_k,
            rebalance_frequency, rebalance_threshold, rebalance_cost_rate,
            stop_loss_threshold, hedge_drift_threshold,
            entry_fee_rate, exit_fee_rate, rebalance_fee_rate, rebalances_per_year,
            entry_gas_usd, exit_gas_usd, rebalance_gas_usd, rebalanced_fraction,
            funding_periods_year, basis_monthly_decay,
            annual_volatility, pd_horizon_days
        FROM strategy_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	p := &types.StrategyParameters{}
	var paramsID int64
	row := DB.QueryRow(query, configName)
	err := row.Scan(
		&paramsID,
		&p.RiskTolerance, &p.MaxSingleAllocationFraction, &p.MinTicketSize,
		&p.CapacityFraction, &p.MinCapacityUSD, &p.TopK,
		&p.RebalanceFrequency, &p.RebalanceThreshold, &p.RebalanceCostRate,
		&p.StopLossThreshold, &p.HedgeDriftThreshold,
		&p.EntryFeeRate, &p.ExitFeeRate, &p.RebalanceFeeRate, &p.RebalancesPerYear,
		&p.EntryGasUSD, &p.ExitGasUSD, &p.RebalanceGasUSD, &p.RebalancedFraction,
		&p.FundingPeriodsYear, &p.BasisMonthlyDecay,
		&p.AnnualVolatility, &p.PDHorizonDays,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, fmt.Errorf("no active strategy parameters found for config '%s'", configName)
		}
		return nil, 0, fmt.Errorf("failed to scan active strategy parameters for config '%s': %w", configName, err)
	}

	log.Debug().Str("config", configName).Int64("params_id", paramsID).Msg("Loaded active strategy parameters")
	return p, paramsID, nil
}

// NextParameterVersion returns the next unused version number for a config.
func NextParameterVersion(configName string) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `SELECT COALESCE(MAX(version), 0) + 1 FROM strategy_parameters WHERE config_name = $1;`

	var next int
	if err := DB.QueryRow(query, configName).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to determine next parameter version for '%s': %w", configName, err)
	}
	return next, nil
}
