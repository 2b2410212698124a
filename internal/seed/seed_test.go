package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dealops/internal/purge"
	"dealops/internal/store"
)

func TestRunSeedsSyntheticRows(t *testing.T) {
	m := store.NewMemoryStore()
	m.PutDeal(store.Deal{ID: "crm_d1", Title: "Imported"})

	summary, err := New(m, zaptest.NewLogger(t), nil).Run(context.Background(), Options{Employees: 3, Accounts: 7, Deals: 25})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Employees.Updated)
	assert.Equal(t, 7, summary.Accounts.Updated)
	assert.Equal(t, 25, summary.Deals.Updated)
	assert.Equal(t, 35, summary.Total().Updated)

	accounts, err := m.ListAccounts(context.Background(), store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, accounts, 7)
	owners := map[string]int{}
	for _, a := range accounts {
		assert.Equal(t, store.ProvenanceSynthetic, a.Provenance())
		require.NotNil(t, a.AccountOwnerID)
		assert.True(t, strings.HasPrefix(*a.AccountOwnerID, store.SyntheticEmployeePrefix))
		owners[*a.AccountOwnerID]++
	}
	assert.Len(t, owners, 3)

	deals, err := m.ListDeals(context.Background(), store.ListOptions{Filter: store.Filter{IDPrefix: store.SyntheticDealPrefix}})
	require.NoError(t, err)
	require.Len(t, deals, 25)
	for _, d := range deals {
		assert.Nil(t, d.AccountID)
		assert.NotEmpty(t, d.Category)
	}
}

func TestRunSkipsExistingIDs(t *testing.T) {
	m := store.NewMemoryStore()
	s := New(m, nil, nil)
	n := 0
	s.newID = func() string {
		n++
		// every deal id repeats once
		return fmt.Sprintf("%d", (n+1)/2)
	}

	summary, err := s.Run(context.Background(), Options{Employees: 0, Accounts: 0, Deals: 4})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Deals.Updated)
	assert.Equal(t, 2, summary.Deals.Skipped)
}

func TestSeededRowsArePurgeable(t *testing.T) {
	m := store.NewMemoryStore()
	m.PutEmployee(store.Employee{ID: "crm_e1", Name: "Ada"})
	_, err := New(m, nil, nil).Run(context.Background(), Options{Employees: 2, Accounts: 4, Deals: 10})
	require.NoError(t, err)

	report := purge.New(m, nil).Run(context.Background())
	assert.False(t, report.Failed())
	assert.Equal(t, int64(10), report.Outcomes[0].Deleted)
	assert.Equal(t, 0, report.Outcomes[1].Remaining)
	assert.Equal(t, 1, report.Outcomes[2].Remaining)
}

func TestSummaryTotalCoversEveryCollection(t *testing.T) {
	var summary Summary
	summary.Employees.AddFailure("test_emp_1", errors.New("duplicate"))
	summary.Accounts.AddSkipped()
	summary.Deals.AddUpdated()
	summary.Deals.AddUpdated()

	total := summary.Total()
	assert.Equal(t, 2, total.Updated)
	assert.Equal(t, 1, total.Skipped)
	assert.Equal(t, 1, total.Failed)
	assert.Equal(t, []string{"test_emp_1"}, total.FailedIDs())
}
