/*

This file contains the types for capital-allocation plans produced by the
optimizer. A plan is a plain record: the execution collaborator translates it
into transactions, the core never does.

*/

package types

import "time"

// AllocationPlan maps candidate IDs to allocated USD amounts.
//
// Invariants (enforced by the optimizer, asserted in tests):
//   - sum(Allocations) <= TotalCapital
//   - each allocation <= TotalCapital * MaxSingleAllocationFraction
//   - each allocation is either absent or >= MinTicketSize
type AllocationPlan struct {
	PlanID        string             `json:"plan_id"`
	CreatedAt     time.Time          `json:"created_at"`
	TotalCapital  float64            `json:"total_capital"`
	Allocations   map[string]float64 `json:"allocations"`
	TotalAlloc    float64            `json:"total_allocated"`
	Reason        PlanReason         `json:"reason"`
	RiskTolerance RiskLevel          `json:"risk_tolerance"`
}

// Allocated reports the committed total. Zero for infeasible plans.
func (p AllocationPlan) Allocated() float64 {
	total := 0.0
	for _, amount := range p.Allocations {
		total += amount
	}
	return total
}

// IsEmpty reports whether the plan commits no capital.
func (p AllocationPlan) IsEmpty() bool {
	return len(p.Allocations) == 0
}
