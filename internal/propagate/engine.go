// Package propagate copies each account's owner onto the deals that reference
// it, so deals.account_owner_id always mirrors merchant_accounts.
package propagate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dealops/internal/batch"
	"dealops/internal/checkpoint"
	"dealops/internal/logging"
	"dealops/internal/search"
	"dealops/internal/store"
)

// Job names the checkpoint used by propagation runs. The lock is the shared
// checkpoint.ReconcileLock.
const Job = "propagate"

const (
	defaultPageSize = 1000
	defaultLockTTL  = 15 * time.Minute
)

// ErrNoAccounts aborts a run when the account table is empty.
var ErrNoAccounts = errors.New("no merchant accounts to propagate from")

type dataStore interface {
	ListAccounts(context.Context, store.ListOptions) ([]store.Account, error)
	ListDeals(context.Context, store.ListOptions) ([]store.Deal, error)
	UpdateDeal(context.Context, string, store.DealUpdate) error
	Count(context.Context, store.Collection, store.Filter) (int, error)
}

type Options struct {
	PageSize    int
	Throttle    *batch.Throttle
	Checkpoints checkpoint.Store
	LockTTL     time.Duration
	Indexer     search.Indexer
}

type Engine struct {
	store       dataStore
	logger      *zap.Logger
	pageSize    int
	throttle    *batch.Throttle
	checkpoints checkpoint.Store
	lockTTL     time.Duration
	indexer     search.Indexer
}

// Summary describes one run.
type Summary struct {
	Accounts  int
	Pages     int
	ResumedAt string
	Result    batch.Result
	// Cleared counts owners removed from deals without an account.
	Cleared  int
	Coverage float64
}

func New(s dataStore, logger *zap.Logger, opts Options) *Engine {
	e := &Engine{
		store:       s,
		logger:      logging.OrNop(logger).Named("propagate"),
		pageSize:    opts.PageSize,
		throttle:    opts.Throttle,
		checkpoints: opts.Checkpoints,
		lockTTL:     opts.LockTTL,
		indexer:     opts.Indexer,
	}
	if e.pageSize <= 0 {
		e.pageSize = defaultPageSize
	}
	if e.lockTTL <= 0 {
		e.lockTTL = defaultLockTTL
	}
	if e.checkpoints == nil {
		e.checkpoints = checkpoint.NewMemory()
	}
	return e
}

// Run propagates owners from accounts to deals. Only prerequisite failures
// (lock, account load, deal page reads) return an error; write failures are
// recorded in the summary.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	release, err := e.checkpoints.Acquire(ctx, checkpoint.ReconcileLock, e.lockTTL)
	if err != nil {
		return summary, fmt.Errorf("acquire %s lock: %w", checkpoint.ReconcileLock, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("release lock", zap.Error(err))
		}
	}()

	owners, err := e.loadOwners(ctx)
	if err != nil {
		return summary, err
	}
	summary.Accounts = len(owners)
	e.logger.Info("loaded accounts", zap.Int("accounts", len(owners)))

	after, err := e.checkpoints.Load(ctx, Job)
	if err != nil {
		return summary, fmt.Errorf("load checkpoint: %w", err)
	}
	if after != "" {
		summary.ResumedAt = after
		e.logger.Info("resuming from checkpoint", zap.String("after_id", after))
	}

	// The checkpoint never moves past a failed row, so a resumed run retries
	// it. Once a row has failed the checkpoint stays pinned for the rest of
	// the run while reading continues.
	linked := store.Filter{NotNull: []string{"account_id"}}
	pinned := false
	for {
		page, err := e.store.ListDeals(ctx, store.ListOptions{Filter: linked, AfterID: after, Limit: e.pageSize})
		if err != nil {
			return summary, fmt.Errorf("list deals after %q: %w", after, err)
		}
		if len(page) == 0 {
			break
		}
		summary.Pages++

		failedBefore := len(summary.Result.Failures)
		changed, err := e.applyPage(ctx, page, &summary.Result, func(d store.Deal) *string {
			return owners[*d.AccountID]
		})
		e.index(ctx, changed)
		if err != nil {
			return summary, err
		}

		if !pinned {
			safe := page[len(page)-1].ID
			if len(summary.Result.Failures) > failedBefore {
				pinned = true
				safe = lastBefore(page, summary.Result.Failures[failedBefore].ID, after)
				e.logger.Info("checkpoint pinned before failed deal",
					zap.String("deal_id", summary.Result.Failures[failedBefore].ID),
					zap.String("after_id", safe))
			}
			if safe != "" {
				if err := e.checkpoints.Save(ctx, Job, safe); err != nil {
					e.logger.Warn("save checkpoint", zap.String("after_id", safe), zap.Error(err))
				}
			}
		}
		after = page[len(page)-1].ID
		e.logger.Info("page done",
			zap.Int("page", summary.Pages),
			zap.String("last_id", after),
			zap.Stringer("result", summary.Result))

		if len(page) < e.pageSize {
			break
		}
	}

	cleared, err := e.clearUnlinked(ctx, &summary.Result)
	summary.Cleared = cleared
	if err != nil {
		return summary, err
	}

	if err := e.checkpoints.Clear(ctx, Job); err != nil {
		e.logger.Warn("clear checkpoint", zap.Error(err))
	}

	summary.Coverage, err = Coverage(ctx, e.store)
	if err != nil {
		e.logger.Warn("compute coverage", zap.Error(err))
	}
	return summary, nil
}

// lastBefore returns the id preceding failedID in page, or prev when the
// failure is the first row.
func lastBefore(page []store.Deal, failedID, prev string) string {
	for i, d := range page {
		if d.ID == failedID {
			if i == 0 {
				return prev
			}
			return page[i-1].ID
		}
	}
	return prev
}

func (e *Engine) loadOwners(ctx context.Context) (map[string]*string, error) {
	accounts, err := store.ListAll(ctx, e.pageSize, store.Filter{}, e.store.ListAccounts, store.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	owners := make(map[string]*string, len(accounts))
	for _, a := range accounts {
		owners[a.ID] = a.AccountOwnerID
	}
	return owners, nil
}

// clearUnlinked removes owners from deals that reference no account. Rows
// leave the filter as they are fixed, so failed rows are stepped over by id.
func (e *Engine) clearUnlinked(ctx context.Context, result *batch.Result) (int, error) {
	filter := store.Filter{IsNull: []string{"account_id"}, NotNull: []string{"account_owner_id"}}
	before := result.Updated
	after := ""
	for {
		page, err := e.store.ListDeals(ctx, store.ListOptions{Filter: filter, AfterID: after, Limit: e.pageSize})
		if err != nil {
			return result.Updated - before, fmt.Errorf("list unlinked deals: %w", err)
		}
		if len(page) == 0 {
			break
		}
		changed, err := e.applyPage(ctx, page, result, func(store.Deal) *string { return nil })
		e.index(ctx, changed)
		if err != nil {
			return result.Updated - before, err
		}
		after = page[len(page)-1].ID
		if len(page) < e.pageSize {
			break
		}
	}
	cleared := result.Updated - before
	if cleared > 0 {
		e.logger.Info("cleared owners on unlinked deals", zap.Int("deals", cleared))
	}
	return cleared, nil
}

// applyPage writes the expected owner for every deal in page that differs
// from it and returns the deals that were changed.
func (e *Engine) applyPage(ctx context.Context, page []store.Deal, result *batch.Result, expected func(store.Deal) *string) ([]store.Deal, error) {
	var changed []store.Deal
	for _, d := range page {
		want := expected(d)
		if store.EqualPtr(d.AccountOwnerID, want) {
			result.AddSkipped()
			continue
		}
		if err := e.throttle.Wait(ctx); err != nil {
			return changed, fmt.Errorf("propagate stopped at %s: %w", d.ID, err)
		}
		if err := e.store.UpdateDeal(ctx, d.ID, store.DealUpdate{AccountOwnerID: want, OwnerOnly: true}); err != nil {
			e.logger.Warn("update deal owner", zap.String("deal_id", d.ID), zap.Error(err))
			result.AddFailure(d.ID, err)
			continue
		}
		result.AddUpdated()
		d.AccountOwnerID = want
		changed = append(changed, d)
	}
	return changed, nil
}

func (e *Engine) index(ctx context.Context, deals []store.Deal) {
	if e.indexer == nil || len(deals) == 0 {
		return
	}
	records := make([]search.DealRecord, 0, len(deals))
	for _, d := range deals {
		records = append(records, search.NewDealRecord(d))
	}
	if err := e.indexer.IndexDeals(ctx, records); err != nil {
		e.logger.Warn("index deals", zap.Int("deals", len(records)), zap.Error(err))
	}
}

// Coverage returns the share of deals that carry an owner, 0 when there are
// no deals.
func Coverage(ctx context.Context, s interface {
	Count(context.Context, store.Collection, store.Filter) (int, error)
}) (float64, error) {
	total, err := s.Count(ctx, store.CollectionDeals, store.Filter{})
	if err != nil {
		return 0, fmt.Errorf("count deals: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	owned, err := s.Count(ctx, store.CollectionDeals, store.Filter{NotNull: []string{"account_owner_id"}})
	if err != nil {
		return 0, fmt.Errorf("count owned deals: %w", err)
	}
	return float64(owned) / float64(total), nil
}
