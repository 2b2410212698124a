package store

import "errors"

// ErrNotFound is returned by point reads and single-row writes that match no row.
var ErrNotFound = errors.New("not found")
