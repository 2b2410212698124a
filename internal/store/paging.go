package store

import (
	"context"
	"fmt"
)

// ListAll walks a collection page by page using keyset pagination on id and
// returns every row that matches filter, ordered by id.
func ListAll[T any](ctx context.Context, pageSize int, filter Filter, list func(context.Context, ListOptions) ([]T, error), id func(T) string) ([]T, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("list all: page size must be positive, got %d", pageSize)
	}
	var (
		items []T
		after string
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := list(ctx, ListOptions{Filter: filter, AfterID: after, Limit: pageSize})
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		if len(page) < pageSize {
			return items, nil
		}
		after = id(page[len(page)-1])
	}
}

func DealID(d Deal) string       { return d.ID }
func AccountID(a Account) string { return a.ID }
