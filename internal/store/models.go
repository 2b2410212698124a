package store

import "time"

const (
	EmployeeActive   = "active"
	EmployeeInactive = "inactive"
)

type Deal struct {
	ID             string    `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	MerchantName   string    `db:"merchant_name" json:"merchant_name"`
	Category       string    `db:"category" json:"category"`
	Division       string    `db:"division" json:"division"`
	Stage          string    `db:"stage" json:"stage"`
	AccountID      *string   `db:"account_id" json:"account_id"`
	AccountOwnerID *string   `db:"account_owner_id" json:"account_owner_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (d Deal) Provenance() Provenance {
	return Classify(CollectionDeals, d.ID)
}

type Account struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	AccountOwnerID *string   `db:"account_owner_id" json:"account_owner_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

func (a Account) Provenance() Provenance {
	return Classify(CollectionAccounts, a.ID)
}

type Employee struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Status    string    `db:"status" json:"status"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (e Employee) Provenance() Provenance {
	return Classify(CollectionEmployees, e.ID)
}

// DealUpdate carries the only deal fields the pipeline writes.
// account_owner_id is always written, account_id unless OwnerOnly. A nil
// pointer clears the column.
type DealUpdate struct {
	AccountID      *string
	AccountOwnerID *string
	// OwnerOnly leaves account_id untouched.
	OwnerOnly bool
}

// Filter narrows a collection. The zero value matches every row.
type Filter struct {
	IDPrefix string
	IsNull   []string
	NotNull  []string
}

func (f Filter) Empty() bool {
	return f.IDPrefix == "" && len(f.IsNull) == 0 && len(f.NotNull) == 0
}

// ListOptions pages through a collection ordered by id. AfterID selects keyset
// pagination; Offset is only honoured when AfterID is empty.
type ListOptions struct {
	Filter  Filter
	AfterID string
	Offset  int
	Limit   int
}

// GroupCount is one bucket of a grouped count. Key is nil for NULL values.
type GroupCount struct {
	Key   *string `db:"key" json:"key"`
	Count int     `db:"count" json:"count"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// EqualPtr compares two nullable strings by value.
func EqualPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Deref returns the value of p or fallback when p is nil.
func Deref(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
