// Package search mirrors deal ownership into a Meilisearch index so owners and
// accounts can be looked up without touching the primary store.
package search

import (
	"context"

	"dealops/internal/store"
)

// DealRecord is the data we index for a deal.
type DealRecord struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	AccountID      *string `json:"accountId"`
	AccountOwnerID *string `json:"accountOwnerId"`
	Provenance     string  `json:"provenance"`
}

// NewDealRecord converts a stored deal into its index representation.
func NewDealRecord(d store.Deal) DealRecord {
	return DealRecord{
		ID:             d.ID,
		Title:          d.Title,
		AccountID:      d.AccountID,
		AccountOwnerID: d.AccountOwnerID,
		Provenance:     d.Provenance().String(),
	}
}

// Indexer can push deal ownership into a search index.
type Indexer interface {
	IndexDeals(ctx context.Context, deals []DealRecord) error
}
