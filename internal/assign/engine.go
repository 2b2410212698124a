package assign

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dealops/internal/batch"
	"dealops/internal/logging"
	"dealops/internal/store"
)

const defaultPageSize = 1000

type dataStore interface {
	ListAccounts(context.Context, store.ListOptions) ([]store.Account, error)
	ListDeals(context.Context, store.ListOptions) ([]store.Deal, error)
	UpdateDeal(context.Context, string, store.DealUpdate) error
}

type Options struct {
	PageSize int
	Throttle *batch.Throttle
}

type Engine struct {
	store    dataStore
	logger   *zap.Logger
	pageSize int
	throttle *batch.Throttle
}

// Summary describes one run. Result counts the apply phase only.
type Summary struct {
	Accounts   int
	Deals      int
	Assigned   int
	Unassigned int
	Result     batch.Result
}

func New(s dataStore, logger *zap.Logger, opts Options) *Engine {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Engine{
		store:    s,
		logger:   logging.OrNop(logger).Named("assign"),
		pageSize: pageSize,
		throttle: opts.Throttle,
	}
}

// Run loads accounts and deals ordered by id, builds the plan and applies it.
// Failing to load either input aborts before any write; individual write
// failures are counted and the run carries on.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	accounts, err := store.ListAll(ctx, e.pageSize, store.Filter{}, e.store.ListAccounts, store.AccountID)
	if err != nil {
		return Summary{}, fmt.Errorf("load accounts: %w", err)
	}
	deals, err := store.ListAll(ctx, e.pageSize, store.Filter{}, e.store.ListDeals, store.DealID)
	if err != nil {
		return Summary{}, fmt.Errorf("load deals: %w", err)
	}
	e.logger.Info("loaded inputs", zap.Int("accounts", len(accounts)), zap.Int("deals", len(deals)))

	plan, err := BuildPlan(accounts, deals)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Accounts:   len(accounts),
		Deals:      len(deals),
		Assigned:   plan.Assigned(),
		Unassigned: plan.Unassigned(),
	}
	e.logger.Info("plan built", zap.Int("assigned", summary.Assigned), zap.Int("unassigned", summary.Unassigned))

	summary.Result, err = e.Apply(ctx, plan, deals)
	return summary, err
}

// Apply writes each assignment whose target differs from the stored deal.
// current holds the deals the plan was built from.
func (e *Engine) Apply(ctx context.Context, plan Plan, current []store.Deal) (batch.Result, error) {
	stored := make(map[string]store.Deal, len(current))
	for _, d := range current {
		stored[d.ID] = d
	}

	var result batch.Result
	for i, a := range plan.Assignments {
		if i > 0 && i%e.pageSize == 0 {
			e.logger.Info("progress", zap.Int("processed", i), zap.Int("total", len(plan.Assignments)), zap.Stringer("result", result))
		}
		if d, ok := stored[a.DealID]; ok && store.EqualPtr(d.AccountID, a.AccountID) && store.EqualPtr(d.AccountOwnerID, a.AccountOwnerID) {
			result.AddSkipped()
			continue
		}
		if err := e.throttle.Wait(ctx); err != nil {
			return result, fmt.Errorf("apply assignments: %w", err)
		}

		update := store.DealUpdate{AccountID: a.AccountID, AccountOwnerID: a.AccountOwnerID}
		if err := e.store.UpdateDeal(ctx, a.DealID, update); err != nil {
			e.logger.Warn("update failed", zap.String("deal_id", a.DealID), zap.Error(err))
			result.AddFailure(a.DealID, err)
			continue
		}
		result.AddUpdated()
	}
	return result, nil
}
