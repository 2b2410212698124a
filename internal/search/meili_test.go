package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dealops/internal/store"
)

const taskJSON = `{"taskUid":1,"indexUid":"dealops_deals","status":"enqueued","type":"documentAdditionOrUpdate","enqueuedAt":"2026-01-01T00:00:00Z"}`

type fakeMeili struct {
	mu        sync.Mutex
	documents []map[string]any
	deleted   []string
}

func (f *fakeMeili) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/health":
			_, _ = io.WriteString(w, `{"status":"available"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/indexes/dealops_deals/documents":
			var docs []map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&docs))
			f.mu.Lock()
			f.documents = append(f.documents, docs...)
			f.mu.Unlock()
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, taskJSON)
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/indexes/dealops_deals/documents/"):
			f.mu.Lock()
			f.deleted = append(f.deleted, strings.TrimPrefix(r.URL.Path, "/indexes/dealops_deals/documents/"))
			f.mu.Unlock()
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, taskJSON)
		default:
			// index creation and settings updates
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, taskJSON)
		}
	})
}

func TestNewDealRecord(t *testing.T) {
	rec := NewDealRecord(store.Deal{
		ID:             "test_deal_1",
		Title:          "Spa day",
		AccountID:      store.StringPtr("test_acct_1"),
		AccountOwnerID: nil,
	})
	assert.Equal(t, "test_deal_1", rec.ID)
	assert.Equal(t, "synthetic", rec.Provenance)
	assert.Nil(t, rec.AccountOwnerID)

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"test_deal_1","title":"Spa day","accountId":"test_acct_1","accountOwnerId":null,"provenance":"synthetic"}`, string(raw))
}

func TestMeiliIndexDeals(t *testing.T) {
	fake := &fakeMeili{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	m := NewMeili(srv.URL, "key", zaptest.NewLogger(t))
	defer m.Close()
	require.True(t, m.Healthy())

	err := m.IndexDeals(context.Background(), []DealRecord{
		{ID: "crm_d1", AccountID: store.StringPtr("crm_a1"), AccountOwnerID: store.StringPtr("O1"), Provenance: "external"},
		{ID: "crm_d2", Provenance: "external"},
	})
	require.NoError(t, err)
	require.NoError(t, m.DeleteDeal("crm_d9"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.documents, 2)
	assert.Equal(t, "crm_d1", fake.documents[0]["id"])
	assert.Equal(t, "O1", fake.documents[0]["accountOwnerId"])
	assert.Nil(t, fake.documents[1]["accountOwnerId"])
	assert.Equal(t, []string{"crm_d9"}, fake.deleted)
}

func TestMeiliUnavailableSkipsIndexing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewMeili(srv.URL, "", nil)
	defer m.Close()

	assert.False(t, m.Healthy())
	assert.NoError(t, m.IndexDeals(context.Background(), nil))
	assert.Error(t, m.IndexDeals(context.Background(), []DealRecord{{ID: "crm_d1"}}))
}
