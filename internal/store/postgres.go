package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// undefinedFunction is the Postgres SQLSTATE for calling a missing function.
const undefinedFunction = "42883"

var rpcIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "pgx")}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db.DB
}

func (s *PostgresStore) ListDeals(ctx context.Context, opts ListOptions) ([]Deal, error) {
	query, args, err := listQuery(CollectionDeals, opts)
	if err != nil {
		return nil, err
	}
	items := make([]Deal, 0)
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context, opts ListOptions) ([]Account, error) {
	query, args, err := listQuery(CollectionAccounts, opts)
	if err != nil {
		return nil, err
	}
	items := make([]Account, 0)
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListEmployees(ctx context.Context, opts ListOptions) ([]Employee, error) {
	query, args, err := listQuery(CollectionEmployees, opts)
	if err != nil {
		return nil, err
	}
	items := make([]Employee, 0)
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Count(ctx context.Context, c Collection, f Filter) (int, error) {
	if err := checkFilter(c, f); err != nil {
		return 0, err
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)").From(string(c))
	if where := filterExprs(f, sb.Var); len(where) > 0 {
		sb.Where(where...)
	}

	query, args := sb.Build()
	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", c, err)
	}
	return count, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (Account, error) {
	var item Account
	if err := s.getByID(ctx, CollectionAccounts, id, &item); err != nil {
		return Account{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetEmployee(ctx context.Context, id string) (Employee, error) {
	var item Employee
	if err := s.getByID(ctx, CollectionEmployees, id, &item); err != nil {
		return Employee{}, err
	}
	return item, nil
}

func (s *PostgresStore) getByID(ctx context.Context, c Collection, id string, dest any) error {
	cols, err := Columns(c)
	if err != nil {
		return err
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(cols...).From(string(c))
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	err = s.db.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("get %s %s: %w", c, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s %s: %w", c, id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateDeal(ctx context.Context, id string, update DealUpdate) error {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(string(CollectionDeals))
	assignments := []string{ub.Assign("account_owner_id", nullable(update.AccountOwnerID))}
	if !update.OwnerOnly {
		assignments = append(assignments, ub.Assign("account_id", nullable(update.AccountID)))
	}
	assignments = append(assignments, "updated_at = NOW()")
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update deal %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update deal %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("update deal %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteWhere(ctx context.Context, c Collection, f Filter) (int64, error) {
	if f.Empty() {
		return 0, fmt.Errorf("delete %s: refusing to delete without a filter", c)
	}
	if err := checkFilter(c, f); err != nil {
		return 0, err
	}
	dlb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	dlb.DeleteFrom(string(c))
	dlb.Where(filterExprs(f, dlb.Var)...)

	query, args := dlb.Build()
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c, err)
	}
	return rows, nil
}

func (s *PostgresStore) SetEmployeeStatus(ctx context.Context, id, status string) (int64, error) {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(string(CollectionEmployees))
	ub.Set(ub.Assign("status", status))
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("set employee status %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set employee status %s: %w", id, err)
	}
	return rows, nil
}

func (s *PostgresStore) GroupCounts(ctx context.Context, c Collection, column string) ([]GroupCount, error) {
	if err := checkGroupColumn(c, column); err != nil {
		return nil, err
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(column+" AS key", "COUNT(*) AS count").From(string(c))
	sb.GroupBy(column)
	sb.OrderBy("count DESC", "key ASC")

	query, args := sb.Build()
	items := make([]GroupCount, 0)
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("group %s by %s: %w", c, column, err)
	}
	return items, nil
}

// RPC calls the SQL function name with named arguments and returns its result
// as JSON. A function that does not exist yields ErrNotFound.
func (s *PostgresStore) RPC(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if !rpcIdentifier.MatchString(name) {
		return nil, fmt.Errorf("rpc: invalid function name %q", name)
	}
	keys := make([]string, 0, len(args))
	for key := range args {
		if !rpcIdentifier.MatchString(key) {
			return nil, fmt.Errorf("rpc %s: invalid argument name %q", name, key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	params := make([]string, 0, len(keys))
	values := make([]any, 0, len(keys))
	for i, key := range keys {
		params = append(params, fmt.Sprintf("%s => $%d", key, i+1))
		values = append(values, args[key])
	}
	query := fmt.Sprintf("SELECT to_jsonb(%s(%s))", name, strings.Join(params, ", "))

	var raw []byte
	if err := s.db.QueryRowContext(ctx, query, values...).Scan(&raw); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedFunction {
			return nil, fmt.Errorf("rpc %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("rpc %s: %w", name, err)
	}
	return json.RawMessage(raw), nil
}

func (s *PostgresStore) InsertEmployee(ctx context.Context, item Employee) (bool, error) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(string(CollectionEmployees))
	ib.Cols("id", "name", "status", "role")
	ib.Values(item.ID, item.Name, item.Status, item.Role)
	ib.SQL("ON CONFLICT (id) DO NOTHING")
	return s.insert(ctx, ib, "employee", item.ID)
}

func (s *PostgresStore) InsertAccount(ctx context.Context, item Account) (bool, error) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(string(CollectionAccounts))
	ib.Cols("id", "name", "account_owner_id")
	ib.Values(item.ID, item.Name, nullable(item.AccountOwnerID))
	ib.SQL("ON CONFLICT (id) DO NOTHING")
	return s.insert(ctx, ib, "account", item.ID)
}

func (s *PostgresStore) InsertDeal(ctx context.Context, item Deal) (bool, error) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(string(CollectionDeals))
	ib.Cols("id", "title", "merchant_name", "category", "division", "stage", "account_id", "account_owner_id")
	ib.Values(item.ID, item.Title, item.MerchantName, item.Category, item.Division, item.Stage,
		nullable(item.AccountID), nullable(item.AccountOwnerID))
	ib.SQL("ON CONFLICT (id) DO NOTHING")
	return s.insert(ctx, ib, "deal", item.ID)
}

func (s *PostgresStore) insert(ctx context.Context, ib *sqlbuilder.InsertBuilder, kind, id string) (bool, error) {
	query, args := ib.Build()
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert %s %s: %w", kind, id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert %s %s: %w", kind, id, err)
	}
	return rows > 0, nil
}

func listQuery(c Collection, opts ListOptions) (string, []any, error) {
	cols, err := Columns(c)
	if err != nil {
		return "", nil, err
	}
	if err := checkFilter(c, opts.Filter); err != nil {
		return "", nil, err
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(cols...).From(string(c))
	where := filterExprs(opts.Filter, sb.Var)
	if opts.AfterID != "" {
		where = append(where, sb.GreaterThan("id", opts.AfterID))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("id").Asc()
	if opts.Limit > 0 {
		sb.Limit(opts.Limit)
	}
	if opts.AfterID == "" && opts.Offset > 0 {
		sb.Offset(opts.Offset)
	}

	query, args := sb.Build()
	return query, args, nil
}

// filterExprs renders f as SQL conditions. Column names must already be
// checked. Prefixes use starts_with since '_' is a LIKE wildcard.
func filterExprs(f Filter, bind func(any) string) []string {
	where := make([]string, 0, 1+len(f.IsNull)+len(f.NotNull))
	if f.IDPrefix != "" {
		where = append(where, fmt.Sprintf("starts_with(id, %s)", bind(f.IDPrefix)))
	}
	for _, column := range f.IsNull {
		where = append(where, column+" IS NULL")
	}
	for _, column := range f.NotNull {
		where = append(where, column+" IS NOT NULL")
	}
	return where
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
