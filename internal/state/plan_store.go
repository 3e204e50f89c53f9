// ./internal/state/plan_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/defiquant/yre/internal/types"
)

// SaveAllocationPlan persists one produced plan, tied to the cycle and the
// parameter set that produced it.
func SaveAllocationPlan(plan types.AllocationPlan, cycleNumber int, paramsID int64) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	allocationsJSON, err := json.Marshal(plan.Allocations)
	if err != nil {
		return fmt.Errorf("failed to marshal allocations: %w", err)
	}

	stmt := `
        INSERT INTO allocation_plans (
            plan_id, cycle_number, created_at, params_id,
            total_capital, total_allocated, risk_tolerance, reason, allocations
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err = DB.Exec(stmt,
		plan.PlanID, cycleNumber, plan.CreatedAt, paramsID,
		plan.TotalCapital, plan.TotalAlloc, plan.RiskTolerance, plan.Reason, allocationsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation plan: %w", err)
	}

	log.Info().
		Str("plan_id", plan.PlanID).
		Int("cycle", cycleNumber).
		Float64("total_allocated", plan.TotalAlloc).
		Str("reason", string(plan.Reason)).
		Msg("Saved allocation plan")
	return nil
}

// LoadAllocationPlan retrieves one plan by ID.
func LoadAllocationPlan(planID string) (*types.AllocationPlan, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT plan_id, created_at, total_capital, total_allocated, risk_tolerance, reason, allocations
        FROM allocation_plans
        WHERE plan_id = $1;`

	plan := &types.AllocationPlan{}
	var allocationsJSON []byte
	row := DB.QueryRow(query, planID)
	err := row.Scan(&plan.PlanID, &plan.CreatedAt, &plan.TotalCapital, &plan.TotalAlloc,
		&plan.RiskTolerance, &plan.Reason, &allocationsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no allocation plan found with ID '%s'", planID)
		}
		return nil, fmt.Errorf("failed to scan allocation plan '%s': %w", planID, err)
	}

	if err := json.Unmarshal(allocationsJSON, &plan.Allocations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allocations for plan '%s': %w", planID, err)
	}
	return plan, nil
}

// LoadRecentPlans returns the most recent plans, newest first.
func LoadRecentPlans(limit int) ([]types.AllocationPlan, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
        SELECT plan_id, created_at, total_capital, total_allocated, risk_tolerance, reason, allocations
        FROM allocation_plans
        ORDER BY created_at DESC
        LIMIT $1;`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent plans: %w", err)
	}
	defer rows.Close()

	var plans []types.AllocationPlan
	for rows.Next() {
		var plan types.AllocationPlan
		var allocationsJSON []byte
		if err := rows.Scan(&plan.PlanID, &plan.CreatedAt, &plan.TotalCapital, &plan.TotalAlloc,
			&plan.RiskTolerance, &plan.Reason, &allocationsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		if err := json.Unmarshal(allocationsJSON, &plan.Allocations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allocations for plan '%s': %w", plan.PlanID, err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plan rows: %w", err)
	}
	return plans, nil
}
