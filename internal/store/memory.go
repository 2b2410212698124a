package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process implementation of the PostgresStore surface.
// It backs tests and dry runs. Failure hooks let callers simulate sporadic
// write and read errors.
type MemoryStore struct {
	mu        sync.Mutex
	deals     map[string]Deal
	accounts  map[string]Account
	employees map[string]Employee

	// FailUpdate, when set, is consulted before every UpdateDeal.
	FailUpdate func(id string) error
	// FailDelete, when set, is consulted before every DeleteWhere.
	FailDelete func(c Collection) error
	// FailList, when set, is consulted before every list, count and point read.
	FailList func(c Collection, f Filter) error
	// RPCResults maps function names to canned results.
	RPCResults map[string]json.RawMessage

	updates int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deals:      map[string]Deal{},
		accounts:   map[string]Account{},
		employees:  map[string]Employee{},
		RPCResults: map[string]json.RawMessage{},
	}
}

// Updates reports how many UpdateDeal calls changed a row.
func (m *MemoryStore) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

// PutDeal inserts or replaces a deal.
func (m *MemoryStore) PutDeal(d Deal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals[d.ID] = cloneDeal(d)
}

func (m *MemoryStore) PutAccount(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.AccountOwnerID = clonePtr(a.AccountOwnerID)
	m.accounts[a.ID] = a
}

func (m *MemoryStore) PutEmployee(e Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
}

// Deal returns a copy of the stored deal.
func (m *MemoryStore) Deal(id string) (Deal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	return cloneDeal(d), ok
}

func (m *MemoryStore) Employee(id string) (Employee, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	return e, ok
}

func (m *MemoryStore) ListDeals(_ context.Context, opts ListOptions) ([]Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, err := m.page(CollectionDeals, opts)
	if err != nil {
		return nil, err
	}
	items := make([]Deal, 0, len(ids))
	for _, id := range ids {
		items = append(items, cloneDeal(m.deals[id]))
	}
	return items, nil
}

func (m *MemoryStore) ListAccounts(_ context.Context, opts ListOptions) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, err := m.page(CollectionAccounts, opts)
	if err != nil {
		return nil, err
	}
	items := make([]Account, 0, len(ids))
	for _, id := range ids {
		a := m.accounts[id]
		a.AccountOwnerID = clonePtr(a.AccountOwnerID)
		items = append(items, a)
	}
	return items, nil
}

func (m *MemoryStore) ListEmployees(_ context.Context, opts ListOptions) ([]Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, err := m.page(CollectionEmployees, opts)
	if err != nil {
		return nil, err
	}
	items := make([]Employee, 0, len(ids))
	for _, id := range ids {
		items = append(items, m.employees[id])
	}
	return items, nil
}

func (m *MemoryStore) Count(_ context.Context, c Collection, f Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, err := m.matching(c, f)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (m *MemoryStore) GetAccount(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readHook(CollectionAccounts, Filter{}); err != nil {
		return Account{}, err
	}
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("get %s %s: %w", CollectionAccounts, id, ErrNotFound)
	}
	a.AccountOwnerID = clonePtr(a.AccountOwnerID)
	return a, nil
}

func (m *MemoryStore) GetEmployee(_ context.Context, id string) (Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readHook(CollectionEmployees, Filter{}); err != nil {
		return Employee{}, err
	}
	e, ok := m.employees[id]
	if !ok {
		return Employee{}, fmt.Errorf("get %s %s: %w", CollectionEmployees, id, ErrNotFound)
	}
	return e, nil
}

func (m *MemoryStore) UpdateDeal(_ context.Context, id string, update DealUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpdate != nil {
		if err := m.FailUpdate(id); err != nil {
			return fmt.Errorf("update deal %s: %w", id, err)
		}
	}
	d, ok := m.deals[id]
	if !ok {
		return fmt.Errorf("update deal %s: %w", id, ErrNotFound)
	}
	d.AccountOwnerID = clonePtr(update.AccountOwnerID)
	if !update.OwnerOnly {
		d.AccountID = clonePtr(update.AccountID)
	}
	d.UpdatedAt = time.Now().UTC()
	m.deals[id] = d
	m.updates++
	return nil
}

func (m *MemoryStore) DeleteWhere(_ context.Context, c Collection, f Filter) (int64, error) {
	if f.Empty() {
		return 0, fmt.Errorf("delete %s: refusing to delete without a filter", c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		if err := m.FailDelete(c); err != nil {
			return 0, fmt.Errorf("delete %s: %w", c, err)
		}
	}
	ids, err := m.matching(c, f)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		switch c {
		case CollectionDeals:
			delete(m.deals, id)
		case CollectionAccounts:
			delete(m.accounts, id)
		case CollectionEmployees:
			delete(m.employees, id)
		}
	}
	return int64(len(ids)), nil
}

func (m *MemoryStore) SetEmployeeStatus(_ context.Context, id, status string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	if !ok {
		return 0, nil
	}
	e.Status = status
	m.employees[id] = e
	return 1, nil
}

func (m *MemoryStore) GroupCounts(_ context.Context, c Collection, column string) ([]GroupCount, error) {
	if err := checkGroupColumn(c, column); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readHook(c, Filter{}); err != nil {
		return nil, err
	}

	counts := map[string]int{}
	nulls := 0
	for _, id := range m.ids(c) {
		value := m.field(c, id, column)
		if value == nil {
			nulls++
			continue
		}
		counts[*value]++
	}

	items := make([]GroupCount, 0, len(counts)+1)
	for key, count := range counts {
		items = append(items, GroupCount{Key: StringPtr(key), Count: count})
	}
	if nulls > 0 {
		items = append(items, GroupCount{Count: nulls})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		if items[i].Key == nil || items[j].Key == nil {
			return items[j].Key == nil && items[i].Key != nil
		}
		return *items[i].Key < *items[j].Key
	})
	return items, nil
}

func (m *MemoryStore) RPC(_ context.Context, name string, _ map[string]any) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.RPCResults[name]
	if !ok {
		return nil, fmt.Errorf("rpc %s: %w", name, ErrNotFound)
	}
	return raw, nil
}

func (m *MemoryStore) InsertEmployee(_ context.Context, item Employee) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[item.ID]; ok {
		return false, nil
	}
	m.employees[item.ID] = item
	return true, nil
}

func (m *MemoryStore) InsertAccount(_ context.Context, item Account) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[item.ID]; ok {
		return false, nil
	}
	item.AccountOwnerID = clonePtr(item.AccountOwnerID)
	m.accounts[item.ID] = item
	return true, nil
}

func (m *MemoryStore) InsertDeal(_ context.Context, item Deal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deals[item.ID]; ok {
		return false, nil
	}
	m.deals[item.ID] = cloneDeal(item)
	return true, nil
}

func (m *MemoryStore) page(c Collection, opts ListOptions) ([]string, error) {
	ids, err := m.matching(c, opts.Filter)
	if err != nil {
		return nil, err
	}
	if opts.AfterID != "" {
		start := sort.SearchStrings(ids, opts.AfterID)
		if start < len(ids) && ids[start] == opts.AfterID {
			start++
		}
		ids = ids[start:]
	} else if opts.Offset > 0 {
		if opts.Offset >= len(ids) {
			return nil, nil
		}
		ids = ids[opts.Offset:]
	}
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}
	return ids, nil
}

// matching returns the sorted ids of c that satisfy f. Callers hold mu.
func (m *MemoryStore) matching(c Collection, f Filter) ([]string, error) {
	if err := checkFilter(c, f); err != nil {
		return nil, err
	}
	if err := m.readHook(c, f); err != nil {
		return nil, err
	}
	out := make([]string, 0)
	for _, id := range m.ids(c) {
		if f.IDPrefix != "" && !strings.HasPrefix(id, f.IDPrefix) {
			continue
		}
		if !m.nullsMatch(c, id, f) {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (m *MemoryStore) readHook(c Collection, f Filter) error {
	if m.FailList == nil {
		return nil
	}
	if err := m.FailList(c, f); err != nil {
		return fmt.Errorf("read %s: %w", c, err)
	}
	return nil
}

func (m *MemoryStore) nullsMatch(c Collection, id string, f Filter) bool {
	for _, column := range f.IsNull {
		if m.field(c, id, column) != nil {
			return false
		}
	}
	for _, column := range f.NotNull {
		if m.field(c, id, column) == nil {
			return false
		}
	}
	return true
}

func (m *MemoryStore) ids(c Collection) []string {
	var ids []string
	switch c {
	case CollectionDeals:
		for id := range m.deals {
			ids = append(ids, id)
		}
	case CollectionAccounts:
		for id := range m.accounts {
			ids = append(ids, id)
		}
	case CollectionEmployees:
		for id := range m.employees {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// field returns the text value of column, nil for NULL. Timestamps are never
// NULL and report as non-nil.
func (m *MemoryStore) field(c Collection, id, column string) *string {
	switch c {
	case CollectionDeals:
		d := m.deals[id]
		switch column {
		case "account_id":
			return d.AccountID
		case "account_owner_id":
			return d.AccountOwnerID
		case "title":
			return &d.Title
		case "merchant_name":
			return &d.MerchantName
		case "category":
			return &d.Category
		case "division":
			return &d.Division
		case "stage":
			return &d.Stage
		}
	case CollectionAccounts:
		a := m.accounts[id]
		switch column {
		case "account_owner_id":
			return a.AccountOwnerID
		case "name":
			return &a.Name
		}
	case CollectionEmployees:
		e := m.employees[id]
		switch column {
		case "name":
			return &e.Name
		case "status":
			return &e.Status
		case "role":
			return &e.Role
		}
	}
	return StringPtr(id)
}

func cloneDeal(d Deal) Deal {
	d.AccountID = clonePtr(d.AccountID)
	d.AccountOwnerID = clonePtr(d.AccountOwnerID)
	return d
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
