package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealops/internal/batch"
)

func TestObserveResult(t *testing.T) {
	m := New()
	var r batch.Result
	r.AddUpdated()
	r.AddUpdated()
	r.AddSkipped()
	r.AddFailure("crm_d1", errors.New("boom"))

	m.ObserveResult("propagate", r)
	m.ObserveResult("propagate", r)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.RowsTotal.WithLabelValues("propagate", "updated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsTotal.WithLabelValues("propagate", "skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsTotal.WithLabelValues("propagate", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RowsTotal.WithLabelValues("assign", "updated")))
}

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveRun("assign", time.Now().Add(-time.Second), errors.New("aborted"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastSuccess.WithLabelValues("assign")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.RunDuration.WithLabelValues("assign")), 1.0)

	m.ObserveRun("assign", time.Now(), nil)
	assert.Greater(t, testutil.ToFloat64(m.LastSuccess.WithLabelValues("assign")), 0.0)
}

func TestPush(t *testing.T) {
	var (
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.OwnerCoverage.Set(0.95)
	require.NoError(t, m.Push(context.Background(), srv.URL, "propagate"))

	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/dealops/command/propagate", path)
	assert.NotEmpty(t, body)
}

func TestPushWithoutGateway(t *testing.T) {
	assert.NoError(t, New().Push(context.Background(), "", "assign"))
}

func TestPushReportsGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	assert.Error(t, New().Push(context.Background(), srv.URL, "assign"))
}
