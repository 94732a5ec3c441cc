// Package memory implements the ledger store in process memory. It backs the
// service tests and single-node development runs without PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/settlement"
)

// LedgerStore implements domain.LedgerStore. Writers are serialized; each
// transaction stages its writes and applies them only when fn succeeds.
type LedgerStore struct {
	mu       sync.RWMutex
	pools    map[domain.Address]domain.Pool
	options  map[domain.Address]domain.PoolOption
	entries  map[domain.Address]domain.Entry
	balances map[domain.Address]uint64
}

// NewLedgerStore returns an empty store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		pools:    make(map[domain.Address]domain.Pool),
		options:  make(map[domain.Address]domain.PoolOption),
		entries:  make(map[domain.Address]domain.Entry),
		balances: make(map[domain.Address]uint64),
	}
}

// WithTx runs fn under the store-wide write lock. Nested calls deadlock.
func (s *LedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &ledgerTx{
		store:    s,
		pools:    make(map[domain.Address]domain.Pool),
		options:  make(map[domain.Address]domain.PoolOption),
		entries:  make(map[domain.Address]domain.Entry),
		balances: make(map[domain.Address]uint64),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for k, v := range tx.pools {
		s.pools[k] = v
	}
	for k, v := range tx.options {
		s.options[k] = v
	}
	for k, v := range tx.entries {
		s.entries[k] = v
	}
	for k, v := range tx.balances {
		if v == 0 {
			delete(s.balances, k)
			continue
		}
		s.balances[k] = v
	}
	return nil
}

// GetPool returns the committed pool at addr.
func (s *LedgerStore) GetPool(_ context.Context, addr domain.Address) (domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[addr]
	if !ok {
		return domain.Pool{}, fmt.Errorf("memory: pool %s: %w", addr, domain.ErrNotFound)
	}
	return clonePool(p), nil
}

// GetOption returns the committed option at addr.
func (s *LedgerStore) GetOption(_ context.Context, addr domain.Address) (domain.PoolOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.options[addr]
	if !ok {
		return domain.PoolOption{}, fmt.Errorf("memory: option %s: %w", addr, domain.ErrNotFound)
	}
	return o, nil
}

// GetEntry returns the committed entry at addr.
func (s *LedgerStore) GetEntry(_ context.Context, addr domain.Address) (domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[addr]
	if !ok {
		return domain.Entry{}, fmt.Errorf("memory: entry %s: %w", addr, domain.ErrNotFound)
	}
	return e, nil
}

// Balance returns the committed balance of account. Unknown accounts hold 0.
func (s *LedgerStore) Balance(_ context.Context, account domain.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account], nil
}

// ListOptions returns the options of pool ordered by creation time.
func (s *LedgerStore) ListOptions(_ context.Context, pool domain.Address) ([]domain.PoolOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PoolOption
	for _, o := range s.options {
		if o.Pool == pool {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Address.String() < out[j].Address.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListEntries returns the entries of option ordered by creation time.
func (s *LedgerStore) ListEntries(_ context.Context, option domain.Address, opts domain.ListOpts) ([]domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Entry
	for _, e := range s.entries {
		if e.Option != option {
			continue
		}
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Address.String() < out[j].Address.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return paginate(out, opts), nil
}

// ListResolvedPools returns pools with a declared winner, oldest update first.
func (s *LedgerStore) ListResolvedPools(_ context.Context, opts domain.ListOpts) ([]domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Pool
	for _, p := range s.pools {
		if p.WinningOption == nil {
			continue
		}
		if opts.Since != nil && p.UpdatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && p.UpdatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, clonePool(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return paginate(out, opts), nil
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}

func clonePool(p domain.Pool) domain.Pool {
	if p.WinningOption != nil {
		p.WinningOption = domain.AddrPtr(*p.WinningOption)
	}
	return p
}

// ledgerTx overlays staged writes on the committed maps. The store lock is
// held for its whole life.
type ledgerTx struct {
	store    *LedgerStore
	pools    map[domain.Address]domain.Pool
	options  map[domain.Address]domain.PoolOption
	entries  map[domain.Address]domain.Entry
	balances map[domain.Address]uint64
}

func (t *ledgerTx) lookupPool(addr domain.Address) (domain.Pool, bool) {
	if p, ok := t.pools[addr]; ok {
		return clonePool(p), true
	}
	p, ok := t.store.pools[addr]
	return clonePool(p), ok
}

func (t *ledgerTx) lookupOption(addr domain.Address) (domain.PoolOption, bool) {
	if o, ok := t.options[addr]; ok {
		return o, true
	}
	o, ok := t.store.options[addr]
	return o, ok
}

func (t *ledgerTx) lookupEntry(addr domain.Address) (domain.Entry, bool) {
	if e, ok := t.entries[addr]; ok {
		return e, true
	}
	e, ok := t.store.entries[addr]
	return e, ok
}

func (t *ledgerTx) GetPool(_ context.Context, addr domain.Address) (domain.Pool, error) {
	p, ok := t.lookupPool(addr)
	if !ok {
		return domain.Pool{}, fmt.Errorf("memory: pool %s: %w", addr, domain.ErrNotFound)
	}
	return p, nil
}

func (t *ledgerTx) CreatePool(_ context.Context, p domain.Pool) error {
	if _, ok := t.lookupPool(p.Address); ok {
		return fmt.Errorf("memory: pool %s: %w", p.Address, domain.ErrAlreadyExists)
	}
	t.pools[p.Address] = clonePool(p)
	return nil
}

func (t *ledgerTx) UpdatePool(_ context.Context, p domain.Pool) error {
	if _, ok := t.lookupPool(p.Address); !ok {
		return fmt.Errorf("memory: pool %s: %w", p.Address, domain.ErrNotFound)
	}
	t.pools[p.Address] = clonePool(p)
	return nil
}

func (t *ledgerTx) GetOption(_ context.Context, addr domain.Address) (domain.PoolOption, error) {
	o, ok := t.lookupOption(addr)
	if !ok {
		return domain.PoolOption{}, fmt.Errorf("memory: option %s: %w", addr, domain.ErrNotFound)
	}
	return o, nil
}

func (t *ledgerTx) CreateOption(_ context.Context, o domain.PoolOption) error {
	if _, ok := t.lookupOption(o.Address); ok {
		return fmt.Errorf("memory: option %s: %w", o.Address, domain.ErrAlreadyExists)
	}
	t.options[o.Address] = o
	return nil
}

func (t *ledgerTx) UpdateOption(_ context.Context, o domain.PoolOption) error {
	if _, ok := t.lookupOption(o.Address); !ok {
		return fmt.Errorf("memory: option %s: %w", o.Address, domain.ErrNotFound)
	}
	t.options[o.Address] = o
	return nil
}

func (t *ledgerTx) GetEntry(_ context.Context, addr domain.Address) (domain.Entry, error) {
	e, ok := t.lookupEntry(addr)
	if !ok {
		return domain.Entry{}, fmt.Errorf("memory: entry %s: %w", addr, domain.ErrNotFound)
	}
	return e, nil
}

func (t *ledgerTx) CreateEntry(_ context.Context, e domain.Entry) error {
	if _, ok := t.lookupEntry(e.Address); ok {
		return fmt.Errorf("memory: entry %s: %w", e.Address, domain.ErrAlreadyExists)
	}
	t.entries[e.Address] = e
	return nil
}

func (t *ledgerTx) UpdateEntry(_ context.Context, e domain.Entry) error {
	if _, ok := t.lookupEntry(e.Address); !ok {
		return fmt.Errorf("memory: entry %s: %w", e.Address, domain.ErrNotFound)
	}
	t.entries[e.Address] = e
	return nil
}

func (t *ledgerTx) balance(account domain.Address) uint64 {
	if b, ok := t.balances[account]; ok {
		return b
	}
	return t.store.balances[account]
}

func (t *ledgerTx) Balance(_ context.Context, account domain.Address) (uint64, error) {
	return t.balance(account), nil
}

func (t *ledgerTx) Transfer(_ context.Context, from, to domain.Address, amount uint64) error {
	have := t.balance(from)
	if have < amount {
		return fmt.Errorf("memory: transfer %d from %s (balance %d): %w", amount, from, have, domain.ErrInsufficientFunds)
	}
	if from == to {
		return nil
	}
	credited, err := settlement.Add(t.balance(to), amount)
	if err != nil {
		return fmt.Errorf("memory: transfer to %s: %w", to, err)
	}
	t.balances[from] = have - amount
	t.balances[to] = credited
	return nil
}

func (t *ledgerTx) Credit(_ context.Context, to domain.Address, amount uint64) error {
	credited, err := settlement.Add(t.balance(to), amount)
	if err != nil {
		return fmt.Errorf("memory: credit %s: %w", to, err)
	}
	t.balances[to] = credited
	return nil
}
