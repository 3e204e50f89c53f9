// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS strategy_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			risk_tolerance VARCHAR(10) NOT NULL,
			max_single_allocation_fraction DECIMAL(10, 8) NOT NULL,
			min_ticket_size DECIMAL(20, 8) NOT NULL,
			capacity_fraction DECIMAL(10, 8) NOT NULL,
			min_capacity_usd DECIMAL(20, 8) NOT NULL,
			top_k INTEGER NOT NULL,
			rebalance_frequency VARCHAR(10) NOT NULL,
			rebalance_threshold DECIMAL(10, 8) NOT NULL,
			rebalance_cost_rate DECIMAL(10, 8) NOT NULL,
			stop_loss_threshold DECIMAL(10, 8) NOT NULL,
			hedge_drift_threshold DECIMAL(10, 8) NOT NULL,
			entry_fee_rate DECIMAL(10, 8) NOT NULL,
			exit_fee_rate DECIMAL(10, 8) NOT NULL,
			rebalance_fee_rate DECIMAL(10, 8) NOT NULL,
			rebalances_per_year DECIMAL(10, 4) NOT NULL,
			entry_gas_usd DECIMAL(20, 8) NOT NULL,
			exit_gas_usd DECIMAL(20, 8) NOT NULL,
			rebalance_gas_usd DECIMAL(20, 8) NOT NULL,
			rebalanced_fraction DECIMAL(10, 8) NOT NULL,
			funding_periods_year DECIMAL(10, 4) NOT NULL,
			basis_monthly_decay DECIMAL(10, 8) NOT NULL,
			annual_volatility DECIMAL(10, 8) NOT NULL,
			pd_horizon_days DECIMAL(10, 4) NOT NULL,
			CONSTRAINT uq_strategy_parameters_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_strategy_parameters_config_active_timestamp ON strategy_parameters(config_name, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS allocation_plans (
			plan_id UUID PRIMARY KEY,
			cycle_number INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			params_id INTEGER REFERENCES strategy_parameters(params_id),
			total_capital DECIMAL(20, 8) NOT NULL,
			total_allocated DECIMAL(20, 8) NOT NULL,
			risk_tolerance VARCHAR(10) NOT NULL,
			reason VARCHAR(50) NOT NULL,
			allocations JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_allocation_plans_created ON allocation_plans(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_allocation_plans_cycle ON allocation_plans(cycle_number DESC);

		CREATE TABLE IF NOT EXISTS backtest_results (
			run_id UUID PRIMARY KEY,
			plan_id UUID REFERENCES allocation_plans(plan_id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			trading_days INTEGER NOT NULL,
			initial_capital DECIMAL(20, 8) NOT NULL,
			final_value DECIMAL(20, 8) NOT NULL,
			total_return DECIMAL(12, 6) NOT NULL,
			annualized_return DECIMAL(12, 6) NOT NULL,
			volatility DECIMAL(12, 6) NOT NULL,
			sharpe_ratio DECIMAL(12, 6) NOT NULL,
			sortino_ratio DECIMAL(12, 6),
			max_drawdown DECIMAL(12, 6) NOT NULL,
			calmar_ratio DECIMAL(12, 6),
			win_rate DECIMAL(12, 6) NOT NULL,
			profit_factor DECIMAL(12, 6),
			value_at_risk_95 DECIMAL(12, 6) NOT NULL,
			cvar_95 DECIMAL(12, 6) NOT NULL,
			alpha DECIMAL(12, 6) NOT NULL,
			beta DECIMAL(12, 6) NOT NULL,
			total_cost_usd DECIMAL(20, 8) NOT NULL,
			stop_loss_days INTEGER NOT NULL,
			large_loss_days INTEGER NOT NULL,
			data_gaps JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_backtest_results_created ON backtest_results(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_backtest_results_plan ON backtest_results(plan_id);

		-- Cycle counter table for persistent global cycle tracking
		CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO cycle_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
