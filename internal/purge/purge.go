// Package purge deletes seeded fixture rows by their reserved id prefixes and
// leaves imported rows alone.
package purge

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"dealops/internal/logging"
	"dealops/internal/store"
)

type dataStore interface {
	ListDeals(context.Context, store.ListOptions) ([]store.Deal, error)
	DeleteWhere(context.Context, store.Collection, store.Filter) (int64, error)
	Count(context.Context, store.Collection, store.Filter) (int, error)
}

// indexRemover drops purged deals from the search index.
type indexRemover interface {
	DeleteDeal(id string) error
}

// Outcome is the result of purging one collection.
type Outcome struct {
	Collection store.Collection
	Deleted    int64
	DeleteErr  error
	Remaining  int
	CountErr   error
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	out := struct {
		Collection  store.Collection `json:"collection"`
		Deleted     int64            `json:"deleted"`
		DeleteError string           `json:"delete_error,omitempty"`
		Remaining   int              `json:"remaining"`
		CountError  string           `json:"count_error,omitempty"`
	}{Collection: o.Collection, Deleted: o.Deleted, Remaining: o.Remaining}
	if o.DeleteErr != nil {
		out.DeleteError = o.DeleteErr.Error()
	}
	if o.CountErr != nil {
		out.CountError = o.CountErr.Error()
	}
	return json.Marshal(out)
}

type Report struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Failed reports whether any delete or count failed.
func (r Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.DeleteErr != nil || o.CountErr != nil {
			return true
		}
	}
	return false
}

func (r Report) Lines() []string {
	lines := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		line := fmt.Sprintf("%s: deleted %d", o.Collection, o.Deleted)
		if o.DeleteErr != nil {
			line = fmt.Sprintf("%s: delete failed: %v", o.Collection, o.DeleteErr)
		}
		if o.CountErr != nil {
			line += fmt.Sprintf(", count failed: %v", o.CountErr)
		} else {
			line += fmt.Sprintf(", %d remaining", o.Remaining)
		}
		lines = append(lines, line)
	}
	return lines
}

type Purger struct {
	store    dataStore
	logger   *zap.Logger
	index    indexRemover
	pageSize int
}

func New(s dataStore, logger *zap.Logger) *Purger {
	return &Purger{store: s, logger: logging.OrNop(logger).Named("purge"), pageSize: 1000}
}

// WithIndex makes the purger remove synthetic deals from the search index
// before they are deleted.
func (p *Purger) WithIndex(index indexRemover) *Purger {
	p.index = index
	return p
}

// Run deletes synthetic rows from deals, accounts and employees in that order,
// then counts what is left in each collection. A failure on one collection
// does not stop the others.
func (p *Purger) Run(ctx context.Context) Report {
	var report Report
	for _, c := range store.Collections {
		o := Outcome{Collection: c}
		filter := store.Filter{IDPrefix: store.SyntheticPrefix(c)}

		if c == store.CollectionDeals {
			p.unindex(ctx, filter)
		}

		deleted, err := p.store.DeleteWhere(ctx, c, filter)
		if err != nil {
			o.DeleteErr = err
			p.logger.Error("delete synthetic rows", zap.String("collection", string(c)), zap.Error(err))
		} else {
			o.Deleted = deleted
			p.logger.Info("deleted synthetic rows", zap.String("collection", string(c)), zap.Int64("rows", deleted))
		}
		report.Outcomes = append(report.Outcomes, o)
	}

	for i := range report.Outcomes {
		o := &report.Outcomes[i]
		remaining, err := p.store.Count(ctx, o.Collection, store.Filter{})
		if err != nil {
			o.CountErr = err
			p.logger.Warn("count rows", zap.String("collection", string(o.Collection)), zap.Error(err))
			continue
		}
		o.Remaining = remaining
	}
	return report
}

func (p *Purger) unindex(ctx context.Context, filter store.Filter) {
	if p.index == nil {
		return
	}
	deals, err := store.ListAll(ctx, p.pageSize, filter, p.store.ListDeals, store.DealID)
	if err != nil {
		p.logger.Warn("list synthetic deals for index removal", zap.Error(err))
		return
	}
	for _, d := range deals {
		if err := p.index.DeleteDeal(d.ID); err != nil {
			p.logger.Warn("remove deal from index", zap.String("deal_id", d.ID), zap.Error(err))
			continue
		}
	}
}
