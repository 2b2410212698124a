package store

import (
	"fmt"
	"slices"
)

var collectionColumns = map[Collection][]string{
	CollectionDeals: {
		"id", "title", "merchant_name", "category", "division", "stage",
		"account_id", "account_owner_id", "created_at", "updated_at",
	},
	CollectionAccounts:  {"id", "name", "account_owner_id", "created_at"},
	CollectionEmployees: {"id", "name", "status", "role", "created_at"},
}

// groupableColumns are the text columns reporting may bucket by.
var groupableColumns = map[Collection][]string{
	CollectionDeals:     {"account_id", "account_owner_id", "category", "division", "stage"},
	CollectionAccounts:  {"account_owner_id"},
	CollectionEmployees: {"status", "role"},
}

// Columns returns the selectable columns of c in table order.
func Columns(c Collection) ([]string, error) {
	cols, ok := collectionColumns[c]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", c)
	}
	return cols, nil
}

func checkColumn(c Collection, column string) error {
	cols, err := Columns(c)
	if err != nil {
		return err
	}
	if !slices.Contains(cols, column) {
		return fmt.Errorf("unknown column %s.%s", c, column)
	}
	return nil
}

func checkGroupColumn(c Collection, column string) error {
	if !slices.Contains(groupableColumns[c], column) {
		return fmt.Errorf("column %s.%s cannot be grouped", c, column)
	}
	return nil
}

func checkFilter(c Collection, f Filter) error {
	for _, column := range f.IsNull {
		if err := checkColumn(c, column); err != nil {
			return err
		}
	}
	for _, column := range f.NotNull {
		if err := checkColumn(c, column); err != nil {
			return err
		}
	}
	return nil
}
