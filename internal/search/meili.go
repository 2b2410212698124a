package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"dealops/internal/logging"
)

const idxDeals = "dealops_deals"

// Meili implements Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the deal index.
// An unreachable server is logged and retried in the background; indexing is
// skipped until it recovers.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logging.OrNop(logger).Named("search"),
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxDeals,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("create index (may already exist)", zap.String("index", idxDeals), zap.Error(err))
	}

	index := m.client.Index(idxDeals)
	filterable := []interface{}{"accountId", "accountOwnerId", "provenance"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("update filterable attrs", zap.String("index", idxDeals), zap.Error(err))
	}
	searchable := []string{"title"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attrs", zap.String("index", idxDeals), zap.Error(err))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexDeals adds or replaces deal records. Records are enqueued; the call does
// not wait for Meilisearch to process the task.
func (m *Meili) IndexDeals(ctx context.Context, deals []DealRecord) error {
	if len(deals) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.healthy.Load() {
		return fmt.Errorf("index deals: meilisearch unhealthy")
	}
	if _, err := m.client.Index(idxDeals).AddDocuments(deals, nil); err != nil {
		m.healthy.Store(false)
		return fmt.Errorf("index deals: %w", err)
	}
	return nil
}

// DeleteDeal removes one deal from the index.
func (m *Meili) DeleteDeal(id string) error {
	if _, err := m.client.Index(idxDeals).DeleteDocument(id, nil); err != nil {
		return fmt.Errorf("delete deal %s from index: %w", id, err)
	}
	return nil
}
