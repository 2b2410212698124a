// Package assign distributes deals over merchant accounts with a fixed,
// reproducible rule and writes the result back one deal at a time.
package assign

import (
	"errors"

	"dealops/internal/store"
)

// UnassignedEvery leaves every twentieth deal, starting with the first,
// without an account.
const UnassignedEvery = 20

var ErrNoAccountsAvailable = errors.New("no accounts available")

// Assignment is the staged write for one deal. Both pointers are nil for an
// unassigned deal.
type Assignment struct {
	DealID         string
	Position       int
	AccountID      *string
	AccountOwnerID *string
}

func (a Assignment) Unassigned() bool {
	return a.AccountID == nil
}

// Plan covers every input deal exactly once, in input order.
type Plan struct {
	Assignments []Assignment
}

func (p Plan) Unassigned() int {
	n := 0
	for _, a := range p.Assignments {
		if a.Unassigned() {
			n++
		}
	}
	return n
}

func (p Plan) Assigned() int {
	return len(p.Assignments) - p.Unassigned()
}

// BuildPlan assigns the deal at position i to accounts[i % len(accounts)] and
// copies that account's owner, except when i % UnassignedEvery == 0. Callers
// supply both slices in a stable order; the same inputs always give the same
// plan.
func BuildPlan(accounts []store.Account, deals []store.Deal) (Plan, error) {
	if len(accounts) == 0 {
		return Plan{}, ErrNoAccountsAvailable
	}

	plan := Plan{Assignments: make([]Assignment, 0, len(deals))}
	for i, deal := range deals {
		a := Assignment{DealID: deal.ID, Position: i}
		if i%UnassignedEvery != 0 {
			account := accounts[i%len(accounts)]
			a.AccountID = store.StringPtr(account.ID)
			if account.AccountOwnerID != nil {
				a.AccountOwnerID = store.StringPtr(*account.AccountOwnerID)
			}
		}
		plan.Assignments = append(plan.Assignments, a)
	}
	return plan, nil
}
