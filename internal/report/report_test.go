package report

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dealops/internal/store"
)

func fixture() *store.MemoryStore {
	m := store.NewMemoryStore()
	m.PutEmployee(store.Employee{ID: "crm_e1", Name: "Ada Lovelace", Status: store.EmployeeActive})
	m.PutEmployee(store.Employee{ID: "crm_e2", Name: "Grace Hopper", Status: store.EmployeeInactive})
	m.PutAccount(store.Account{ID: "crm_a1", AccountOwnerID: store.StringPtr("crm_e1")})
	deals := []store.Deal{
		{ID: "crm_d1", Division: "west", Category: "food", Stage: "live", AccountOwnerID: store.StringPtr("crm_e1")},
		{ID: "crm_d2", Division: "west", Category: "food", Stage: "live", AccountOwnerID: store.StringPtr("crm_e1")},
		{ID: "crm_d3", Division: "east", Category: "spa", Stage: "draft", AccountOwnerID: store.StringPtr("crm_e2")},
		{ID: "crm_d4", Division: "east", Category: "food", Stage: "live", AccountOwnerID: store.StringPtr("crm_ghost")},
		{ID: "crm_d5", Division: "west", Category: "", Stage: "live"},
	}
	for _, d := range deals {
		m.PutDeal(d)
	}
	return m
}

func TestBuildCountsDeals(t *testing.T) {
	m := fixture()
	m.RPCResults = map[string]json.RawMessage{
		"get_dashboard_stats": json.RawMessage(`{"total_deals":5,"by_division":{"west":3,"east":2},"by_category":{"food":3},"by_stage":{"live":4,"draft":1},"last_updated":"2026-03-01T10:00:00+00:00"}`),
	}
	b := New(m, zaptest.NewLogger(t), "")
	b.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }

	r := b.Build(context.Background())
	assert.Empty(t, r.Errors)
	assert.Equal(t, map[store.Collection]int{
		store.CollectionDeals:     5,
		store.CollectionAccounts:  1,
		store.CollectionEmployees: 2,
	}, r.Totals)

	assert.Equal(t, []Bucket{
		{Label: "Ada Lovelace", Count: 2},
		{Label: "Grace Hopper", Count: 1},
		{Label: "crm_ghost", Count: 1},
		{Label: UnassignedLabel, Count: 1},
	}, r.ByOwner)
	assert.InDelta(t, 0.8, r.Coverage, 1e-9)

	assert.Equal(t, []Bucket{{Label: "west", Count: 3}, {Label: "east", Count: 2}}, r.ByDivision)
	assert.Equal(t, []Bucket{{Label: "food", Count: 3}, {Label: "(blank)", Count: 1}, {Label: "spa", Count: 1}}, r.ByCategory)

	require.NotNil(t, r.Dashboard)
	assert.Equal(t, 5, r.Dashboard.TotalDeals)
	assert.Equal(t, 2, r.Dashboard.ByDivision["east"])
	require.NotNil(t, r.Dashboard.LastUpdated)
	assert.Equal(t, 10, r.Dashboard.LastUpdated.UTC().Hour())

	text := strings.Join(r.Lines(), "\n")
	assert.Contains(t, text, "totals: deals=5 merchant_accounts=1 employees=2")
	assert.Contains(t, text, "owner coverage: 80.0%")
	assert.Contains(t, text, "dashboard: 5 deals, last updated 2026-03-01T10:00:00Z")
	assert.Contains(t, text, "  by division: east=2 west=3")
}

func TestBuildWithoutDashboardFunction(t *testing.T) {
	r := New(fixture(), nil, "").Build(context.Background())
	assert.Nil(t, r.Dashboard)
	assert.Empty(t, r.Errors)
	assert.NotContains(t, strings.Join(r.Lines(), "\n"), "dashboard:")
}

func TestBuildSkipsFailedSections(t *testing.T) {
	m := fixture()
	m.FailList = func(c store.Collection, _ store.Filter) error {
		if c == store.CollectionEmployees {
			return errors.New("permission denied")
		}
		return nil
	}

	r := New(m, nil, "").Build(context.Background())
	assert.Len(t, r.Errors, 2)
	assert.Nil(t, r.ByOwner)
	assert.Zero(t, r.Coverage)
	assert.NotEmpty(t, r.ByStage)
	_, ok := r.Totals[store.CollectionEmployees]
	assert.False(t, ok)
}

func TestCoverageWithoutDeals(t *testing.T) {
	r := New(store.NewMemoryStore(), nil, "").Build(context.Background())
	assert.Zero(t, r.Coverage)
	assert.Empty(t, r.ByOwner)
}
