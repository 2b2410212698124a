// Package seed writes synthetic fixture rows. Every id carries the synthetic
// prefix of its collection so purge can remove them again.
package seed

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealops/internal/batch"
	"dealops/internal/logging"
	"dealops/internal/store"
)

var (
	categories = []string{"food & drink", "health & beauty", "things to do", "retail", "travel"}
	divisions  = []string{"north", "south", "east", "west"}
	stages     = []string{"draft", "review", "live", "closed"}
	roles      = []string{"account executive", "account manager"}
)

type dataStore interface {
	InsertEmployee(context.Context, store.Employee) (bool, error)
	InsertAccount(context.Context, store.Account) (bool, error)
	InsertDeal(context.Context, store.Deal) (bool, error)
}

type Options struct {
	Employees int
	Accounts  int
	Deals     int
}

// Summary holds one result per collection.
type Summary struct {
	Employees batch.Result
	Accounts  batch.Result
	Deals     batch.Result
}

// Total folds the per-collection results into one.
func (s Summary) Total() batch.Result {
	var total batch.Result
	total.Merge(s.Employees)
	total.Merge(s.Accounts)
	total.Merge(s.Deals)
	return total
}

func (s Summary) Lines() []string {
	return []string{
		fmt.Sprintf("%s: %s", store.CollectionEmployees, s.Employees),
		fmt.Sprintf("%s: %s", store.CollectionAccounts, s.Accounts),
		fmt.Sprintf("%s: %s", store.CollectionDeals, s.Deals),
	}
}

type Seeder struct {
	store    dataStore
	logger   *zap.Logger
	throttle *batch.Throttle
	newID    func() string
}

func New(s dataStore, logger *zap.Logger, throttle *batch.Throttle) *Seeder {
	return &Seeder{
		store:    s,
		logger:   logging.OrNop(logger).Named("seed"),
		throttle: throttle,
		newID:    uuid.NewString,
	}
}

// Run inserts employees, then accounts owned round-robin by those employees,
// then deals without an account. Deals are linked by a later assign run.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var summary Summary

	employees := make([]string, 0, opts.Employees)
	for i := 0; i < opts.Employees; i++ {
		e := store.Employee{
			ID:     store.SyntheticEmployeePrefix + s.newID(),
			Name:   fmt.Sprintf("Test Owner %d", i+1),
			Status: store.EmployeeActive,
			Role:   roles[i%len(roles)],
		}
		if err := s.insert(ctx, e.ID, &summary.Employees, func() (bool, error) { return s.store.InsertEmployee(ctx, e) }); err != nil {
			return summary, err
		}
		employees = append(employees, e.ID)
	}

	for i := 0; i < opts.Accounts; i++ {
		a := store.Account{
			ID:   store.SyntheticAccountPrefix + s.newID(),
			Name: fmt.Sprintf("Test Merchant %d", i+1),
		}
		if len(employees) > 0 {
			a.AccountOwnerID = store.StringPtr(employees[i%len(employees)])
		}
		if err := s.insert(ctx, a.ID, &summary.Accounts, func() (bool, error) { return s.store.InsertAccount(ctx, a) }); err != nil {
			return summary, err
		}
	}

	for i := 0; i < opts.Deals; i++ {
		d := store.Deal{
			ID:           store.SyntheticDealPrefix + s.newID(),
			Title:        fmt.Sprintf("Test Deal %d", i+1),
			MerchantName: fmt.Sprintf("Test Merchant %d", i%max(opts.Accounts, 1)+1),
			Category:     categories[i%len(categories)],
			Division:     divisions[i%len(divisions)],
			Stage:        stages[i%len(stages)],
		}
		if err := s.insert(ctx, d.ID, &summary.Deals, func() (bool, error) { return s.store.InsertDeal(ctx, d) }); err != nil {
			return summary, err
		}
	}

	s.logger.Info("seeded",
		zap.Stringer("employees", summary.Employees),
		zap.Stringer("accounts", summary.Accounts),
		zap.Stringer("deals", summary.Deals))
	return summary, nil
}

// insert runs one insert and records its outcome. Only cancellation stops the
// run.
func (s *Seeder) insert(ctx context.Context, id string, result *batch.Result, do func() (bool, error)) error {
	if err := s.throttle.Wait(ctx); err != nil {
		return fmt.Errorf("seed stopped at %s: %w", id, err)
	}
	inserted, err := do()
	switch {
	case err != nil:
		s.logger.Warn("insert fixture", zap.String("id", id), zap.Error(err))
		result.AddFailure(id, err)
	case inserted:
		result.AddUpdated()
	default:
		result.AddSkipped()
	}
	return nil
}
