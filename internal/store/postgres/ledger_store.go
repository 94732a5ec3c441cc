package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// checkViolation is the SQLSTATE of a failed CHECK constraint. Every amount
// column is bounded to the unsigned 64-bit range.
const checkViolation = "23514"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LedgerStore implements domain.LedgerStore using PostgreSQL. Inside WithTx
// every read takes a row lock (SELECT ... FOR UPDATE); callers lock pools
// before options and options before entries.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// WithTx runs fn in one database transaction, committing only when fn
// returns nil.
func (s *LedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{q: tx})
	})
}

// GetPool returns the pool at addr.
func (s *LedgerStore) GetPool(ctx context.Context, addr domain.Address) (domain.Pool, error) {
	return getPool(ctx, s.pool, addr, false)
}

// GetOption returns the option at addr.
func (s *LedgerStore) GetOption(ctx context.Context, addr domain.Address) (domain.PoolOption, error) {
	return getOption(ctx, s.pool, addr, false)
}

// GetEntry returns the entry at addr.
func (s *LedgerStore) GetEntry(ctx context.Context, addr domain.Address) (domain.Entry, error) {
	return getEntry(ctx, s.pool, addr, false)
}

// Balance returns the custody balance of account. Unknown accounts hold 0.
func (s *LedgerStore) Balance(ctx context.Context, account domain.Address) (uint64, error) {
	return balance(ctx, s.pool, account, false)
}

// ListOptions returns the options of pool ordered by creation time.
func (s *LedgerStore) ListOptions(ctx context.Context, pool domain.Address) ([]domain.PoolOption, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+optionColumns+` FROM pool_options WHERE pool = $1 ORDER BY created_at, address`,
		pool.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list options of %s: %w", pool, err)
	}
	return collect(rows, scanOption)
}

// ListEntries returns entries placed on option, oldest first.
func (s *LedgerStore) ListEntries(ctx context.Context, option domain.Address, opts domain.ListOpts) ([]domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE option = $1`
	query, args := appendListOpts(query, []any{option.String()}, "created_at", "created_at, address", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list entries of %s: %w", option, err)
	}
	return collect(rows, scanEntry)
}

// ListResolvedPools returns pools with a declared winner, least recently
// updated first.
func (s *LedgerStore) ListResolvedPools(ctx context.Context, opts domain.ListOpts) ([]domain.Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE winning_option IS NOT NULL`
	query, args := appendListOpts(query, nil, "updated_at", "updated_at, address", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved pools: %w", err)
	}
	return collect(rows, scanPool)
}

// ledgerTx implements domain.LedgerTx on one pgx transaction.
type ledgerTx struct {
	q querier
}

func (t *ledgerTx) GetPool(ctx context.Context, addr domain.Address) (domain.Pool, error) {
	return getPool(ctx, t.q, addr, true)
}

func (t *ledgerTx) CreatePool(ctx context.Context, p domain.Pool) error {
	tag, err := t.q.Exec(ctx, `
		INSERT INTO pools (address, title, image_url, description, is_paused, winning_option, value, paid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10)
		ON CONFLICT (address) DO NOTHING`,
		p.Address.String(), p.Title, p.ImageURL, p.Description, p.IsPaused, optionalAddress(p.WinningOption),
		formatUnits(p.Value), formatUnits(p.Paid), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create pool %s: %w", p.Address, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: pool %s: %w", p.Address, domain.ErrAlreadyExists)
	}
	return nil
}

func (t *ledgerTx) UpdatePool(ctx context.Context, p domain.Pool) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE pools SET is_paused = $2, winning_option = $3, value = $4::numeric, paid = $5::numeric, updated_at = $6
		WHERE address = $1`,
		p.Address.String(), p.IsPaused, optionalAddress(p.WinningOption),
		formatUnits(p.Value), formatUnits(p.Paid), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update pool %s: %w", p.Address, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: pool %s: %w", p.Address, domain.ErrNotFound)
	}
	return nil
}

func (t *ledgerTx) GetOption(ctx context.Context, addr domain.Address) (domain.PoolOption, error) {
	return getOption(ctx, t.q, addr, true)
}

func (t *ledgerTx) CreateOption(ctx context.Context, o domain.PoolOption) error {
	tag, err := t.q.Exec(ctx, `
		INSERT INTO pool_options (address, pool, title, value, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (address) DO NOTHING`,
		o.Address.String(), o.Pool.String(), o.Title, formatUnits(o.Value), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create option %s: %w", o.Address, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: option %s: %w", o.Address, domain.ErrAlreadyExists)
	}
	return nil
}

func (t *ledgerTx) UpdateOption(ctx context.Context, o domain.PoolOption) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE pool_options SET value = $2::numeric WHERE address = $1`,
		o.Address.String(), formatUnits(o.Value),
	)
	if err != nil {
		return fmt.Errorf("postgres: update option %s: %w", o.Address, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: option %s: %w", o.Address, domain.ErrNotFound)
	}
	return nil
}

func (t *ledgerTx) GetEntry(ctx context.Context, addr domain.Address) (domain.Entry, error) {
	return getEntry(ctx, t.q, addr, true)
}

func (t *ledgerTx) CreateEntry(ctx context.Context, e domain.Entry) error {
	tag, err := t.q.Exec(ctx, `
		INSERT INTO entries (address, option, participant, value, is_claimed, is_closed, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
		ON CONFLICT (address) DO NOTHING`,
		e.Address.String(), e.Option.String(), e.Participant.String(), formatUnits(e.Value),
		e.IsClaimed, e.IsClosed, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create entry %s: %w", e.Address, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: entry %s: %w", e.Address, domain.ErrAlreadyExists)
	}
	return nil
}

func (t *ledgerTx) UpdateEntry(ctx context.Context, e domain.Entry) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE entries SET value = $2::numeric, is_claimed = $3, is_closed = $4, updated_at = $5
		WHERE address = $1`,
		e.Address.String(), formatUnits(e.Value), e.IsClaimed, e.IsClosed, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update entry %s: %w", e.Address, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: entry %s: %w", e.Address, domain.ErrNotFound)
	}
	return nil
}

func (t *ledgerTx) Balance(ctx context.Context, account domain.Address) (uint64, error) {
	return balance(ctx, t.q, account, true)
}

// Transfer debits from and credits to. The two balance rows are touched in
// address order so concurrent transfers cannot deadlock.
func (t *ledgerTx) Transfer(ctx context.Context, from, to domain.Address, amount uint64) error {
	if from == to {
		have, err := t.Balance(ctx, from)
		if err != nil {
			return err
		}
		if have < amount {
			return fmt.Errorf("postgres: transfer %d from %s: %w", amount, from, domain.ErrInsufficientFunds)
		}
		return nil
	}

	steps := []struct {
		account domain.Address
		apply   func() error
	}{
		{from, func() error { return t.debit(ctx, from, amount) }},
		{to, func() error { return t.Credit(ctx, to, amount) }},
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].account.String() < steps[j].account.String() })
	for _, step := range steps {
		if err := step.apply(); err != nil {
			return err
		}
	}
	return nil
}

func (t *ledgerTx) debit(ctx context.Context, from domain.Address, amount uint64) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE balances SET amount = amount - $2::numeric WHERE account = $1 AND amount >= $2::numeric`,
		from.String(), formatUnits(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", from, mapError(err))
	}
	if tag.RowsAffected() == 0 && amount > 0 {
		return fmt.Errorf("postgres: debit %d from %s: %w", amount, from, domain.ErrInsufficientFunds)
	}
	return nil
}

func (t *ledgerTx) Credit(ctx context.Context, to domain.Address, amount uint64) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO balances (account, amount) VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET amount = balances.amount + EXCLUDED.amount`,
		to.String(), formatUnits(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: credit %s: %w", to, mapError(err))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row helpers
// ---------------------------------------------------------------------------

const (
	poolColumns   = `address, title, image_url, description, is_paused, winning_option, value::text, paid::text, created_at, updated_at`
	optionColumns = `address, pool, title, value::text, created_at`
	entryColumns  = `address, option, participant, value::text, is_claimed, is_closed, created_at, updated_at`
)

func lockClause(lock bool) string {
	if lock {
		return ` FOR UPDATE`
	}
	return ``
}

func getPool(ctx context.Context, q querier, addr domain.Address, lock bool) (domain.Pool, error) {
	row := q.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE address = $1`+lockClause(lock), addr.String())
	p, err := scanPool(row)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: get pool %s: %w", addr, mapError(err))
	}
	return p, nil
}

func getOption(ctx context.Context, q querier, addr domain.Address, lock bool) (domain.PoolOption, error) {
	row := q.QueryRow(ctx, `SELECT `+optionColumns+` FROM pool_options WHERE address = $1`+lockClause(lock), addr.String())
	o, err := scanOption(row)
	if err != nil {
		return domain.PoolOption{}, fmt.Errorf("postgres: get option %s: %w", addr, mapError(err))
	}
	return o, nil
}

func getEntry(ctx context.Context, q querier, addr domain.Address, lock bool) (domain.Entry, error) {
	row := q.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries WHERE address = $1`+lockClause(lock), addr.String())
	e, err := scanEntry(row)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("postgres: get entry %s: %w", addr, mapError(err))
	}
	return e, nil
}

func balance(ctx context.Context, q querier, account domain.Address, lock bool) (uint64, error) {
	var amount string
	err := q.QueryRow(ctx, `SELECT amount::text FROM balances WHERE account = $1`+lockClause(lock), account.String()).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: balance %s: %w", account, err)
	}
	return parseUnits(amount)
}

func scanPool(row pgx.Row) (domain.Pool, error) {
	var (
		p                domain.Pool
		addr, value      string
		paid             string
		winning          *string
		created, updated time.Time
	)
	if err := row.Scan(&addr, &p.Title, &p.ImageURL, &p.Description, &p.IsPaused, &winning, &value, &paid, &created, &updated); err != nil {
		return domain.Pool{}, err
	}

	var err error
	if p.Address, err = domain.ParseAddress(addr); err != nil {
		return domain.Pool{}, err
	}
	if winning != nil {
		w, err := domain.ParseAddress(*winning)
		if err != nil {
			return domain.Pool{}, err
		}
		p.WinningOption = &w
	}
	if p.Value, err = parseUnits(value); err != nil {
		return domain.Pool{}, err
	}
	if p.Paid, err = parseUnits(paid); err != nil {
		return domain.Pool{}, err
	}
	p.CreatedAt, p.UpdatedAt = created.UTC(), updated.UTC()
	return p, nil
}

func scanOption(row pgx.Row) (domain.PoolOption, error) {
	var (
		o                 domain.PoolOption
		addr, pool, value string
	)
	if err := row.Scan(&addr, &pool, &o.Title, &value, &o.CreatedAt); err != nil {
		return domain.PoolOption{}, err
	}

	var err error
	if o.Address, err = domain.ParseAddress(addr); err != nil {
		return domain.PoolOption{}, err
	}
	if o.Pool, err = domain.ParseAddress(pool); err != nil {
		return domain.PoolOption{}, err
	}
	if o.Value, err = parseUnits(value); err != nil {
		return domain.PoolOption{}, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}

func scanEntry(row pgx.Row) (domain.Entry, error) {
	var (
		e                         domain.Entry
		addr, option, participant string
		value                     string
	)
	if err := row.Scan(&addr, &option, &participant, &value, &e.IsClaimed, &e.IsClosed, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return domain.Entry{}, err
	}

	var err error
	if e.Address, err = domain.ParseAddress(addr); err != nil {
		return domain.Entry{}, err
	}
	if e.Option, err = domain.ParseAddress(option); err != nil {
		return domain.Entry{}, err
	}
	if e.Participant, err = domain.ParseAddress(participant); err != nil {
		return domain.Entry{}, err
	}
	if e.Value, err = parseUnits(value); err != nil {
		return domain.Entry{}, err
	}
	e.CreatedAt, e.UpdatedAt = e.CreatedAt.UTC(), e.UpdatedAt.UTC()
	return e, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}
	return out, nil
}

// appendListOpts adds the time range, ordering and pagination of opts to a
// query whose WHERE clause is already open.
func appendListOpts(query string, args []any, timeColumn, orderBy string, opts domain.ListOpts) (string, []any) {
	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND %s >= $%d", timeColumn, len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND %s <= $%d", timeColumn, len(args))
	}
	query += " ORDER BY " + orderBy
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func optionalAddress(a *domain.Address) *string {
	if a == nil {
		return nil
	}
	s := a.String()
	return &s
}

func formatUnits(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUnits(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("postgres: parse amount %q: %w", s, err)
	}
	return v, nil
}

// mapError translates driver errors into domain errors.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrArithmeticOverflow)
	}
	return err
}
