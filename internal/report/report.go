// Package report derives the operational counts shown after a run: deals per
// owner, division, category and stage, plus the dashboard aggregate.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"dealops/internal/logging"
	"dealops/internal/store"
)

// UnassignedLabel names the bucket of deals without an owner.
const UnassignedLabel = "unassigned"

const defaultDashboardRPC = "get_dashboard_stats"

type dataStore interface {
	Count(context.Context, store.Collection, store.Filter) (int, error)
	GroupCounts(context.Context, store.Collection, string) ([]store.GroupCount, error)
	ListEmployees(context.Context, store.ListOptions) ([]store.Employee, error)
	RPC(context.Context, string, map[string]any) (json.RawMessage, error)
}

// Bucket is one labelled count.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Dashboard is the result of the dashboard aggregation function.
type Dashboard struct {
	TotalDeals  int            `json:"total_deals"`
	ByDivision  map[string]int `json:"by_division"`
	ByCategory  map[string]int `json:"by_category"`
	ByStage     map[string]int `json:"by_stage"`
	LastUpdated *time.Time     `json:"last_updated"`
}

type Report struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Totals      map[store.Collection]int `json:"totals"`
	Coverage    float64                  `json:"coverage"`
	ByOwner     []Bucket                 `json:"by_owner"`
	ByDivision  []Bucket                 `json:"by_division"`
	ByCategory  []Bucket                 `json:"by_category"`
	ByStage     []Bucket                 `json:"by_stage"`
	Dashboard   *Dashboard               `json:"dashboard,omitempty"`
	Errors      []string                 `json:"errors,omitempty"`
}

type Builder struct {
	store    dataStore
	logger   *zap.Logger
	rpcName  string
	pageSize int
	now      func() time.Time
}

func New(s dataStore, logger *zap.Logger, dashboardRPC string) *Builder {
	if dashboardRPC == "" {
		dashboardRPC = defaultDashboardRPC
	}
	return &Builder{
		store:    s,
		logger:   logging.OrNop(logger).Named("report"),
		rpcName:  dashboardRPC,
		pageSize: 1000,
		now:      time.Now,
	}
}

// Build gathers every section. A section whose read fails is left empty and
// the failure is noted in Errors.
func (b *Builder) Build(ctx context.Context) Report {
	r := Report{
		GeneratedAt: b.now().UTC(),
		Totals:      map[store.Collection]int{},
	}
	fail := func(section string, err error) {
		b.logger.Warn("report section failed", zap.String("section", section), zap.Error(err))
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", section, err))
	}

	for _, c := range store.Collections {
		n, err := b.store.Count(ctx, c, store.Filter{})
		if err != nil {
			fail("total "+string(c), err)
			continue
		}
		r.Totals[c] = n
	}

	if owners, err := b.byOwner(ctx); err != nil {
		fail("by owner", err)
	} else {
		r.ByOwner = owners
		r.Coverage = coverage(owners)
	}

	for _, section := range []struct {
		column string
		dest   *[]Bucket
	}{
		{"division", &r.ByDivision},
		{"category", &r.ByCategory},
		{"stage", &r.ByStage},
	} {
		groups, err := b.store.GroupCounts(ctx, store.CollectionDeals, section.column)
		if err != nil {
			fail("by "+section.column, err)
			continue
		}
		*section.dest = buckets(groups, func(key string) string { return key })
	}

	dashboard, err := b.dashboard(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		b.logger.Info("dashboard function not installed", zap.String("function", b.rpcName))
	case err != nil:
		b.logger.Warn("dashboard stats unavailable", zap.Error(err))
	default:
		r.Dashboard = dashboard
	}
	return r
}

func (b *Builder) byOwner(ctx context.Context) ([]Bucket, error) {
	groups, err := b.store.GroupCounts(ctx, store.CollectionDeals, "account_owner_id")
	if err != nil {
		return nil, err
	}
	employees, err := store.ListAll(ctx, b.pageSize, store.Filter{}, b.store.ListEmployees, func(e store.Employee) string { return e.ID })
	if err != nil {
		return nil, fmt.Errorf("resolve owner names: %w", err)
	}
	names := make(map[string]string, len(employees))
	for _, e := range employees {
		if e.Name != "" {
			names[e.ID] = e.Name
		}
	}
	return buckets(groups, func(id string) string {
		if name, ok := names[id]; ok {
			return name
		}
		return id
	}), nil
}

func (b *Builder) dashboard(ctx context.Context) (*Dashboard, error) {
	raw, err := b.store.RPC(ctx, b.rpcName, nil)
	if err != nil {
		return nil, err
	}
	var d Dashboard
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.rpcName, err)
	}
	return &d, nil
}

func buckets(groups []store.GroupCount, label func(string) string) []Bucket {
	out := make([]Bucket, 0, len(groups))
	for _, g := range groups {
		switch {
		case g.Key == nil:
			out = append(out, Bucket{Label: UnassignedLabel, Count: g.Count})
		case *g.Key == "":
			out = append(out, Bucket{Label: "(blank)", Count: g.Count})
		default:
			out = append(out, Bucket{Label: label(*g.Key), Count: g.Count})
		}
	}
	return out
}

func coverage(owners []Bucket) float64 {
	total, unowned := 0, 0
	for _, b := range owners {
		total += b.Count
		if b.Label == UnassignedLabel {
			unowned += b.Count
		}
	}
	if total == 0 {
		return 0
	}
	return float64(total-unowned) / float64(total)
}

// Lines renders the report for the console.
func (r Report) Lines() []string {
	var lines []string
	totals := make([]string, 0, len(store.Collections))
	for _, c := range store.Collections {
		if n, ok := r.Totals[c]; ok {
			totals = append(totals, fmt.Sprintf("%s=%d", c, n))
		}
	}
	lines = append(lines, "totals: "+strings.Join(totals, " "))
	lines = append(lines, fmt.Sprintf("owner coverage: %.1f%%", r.Coverage*100))

	section := func(title string, items []Bucket) {
		if len(items) == 0 {
			return
		}
		lines = append(lines, title+":")
		for _, b := range items {
			lines = append(lines, fmt.Sprintf("  %-30s %d", b.Label, b.Count))
		}
	}
	section("deals by owner", r.ByOwner)
	section("deals by division", r.ByDivision)
	section("deals by category", r.ByCategory)
	section("deals by stage", r.ByStage)

	if d := r.Dashboard; d != nil {
		updated := "never"
		if d.LastUpdated != nil {
			updated = d.LastUpdated.UTC().Format(time.RFC3339)
		}
		lines = append(lines, fmt.Sprintf("dashboard: %d deals, last updated %s", d.TotalDeals, updated))
		for _, group := range []struct {
			name   string
			counts map[string]int
		}{
			{"division", d.ByDivision},
			{"category", d.ByCategory},
			{"stage", d.ByStage},
		} {
			counts := group.counts
			if len(counts) == 0 {
				continue
			}
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
			}
			lines = append(lines, fmt.Sprintf("  by %s: %s", group.name, strings.Join(parts, " ")))
		}
	}
	for _, e := range r.Errors {
		lines = append(lines, "error: "+e)
	}
	return lines
}
