package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Custody moves native value units between accounts. Implementations live
// inside a ledger transaction so value movement commits or rolls back with
// the record mutations of the same operation.
type Custody interface {
	Balance(ctx context.Context, account Address) (uint64, error)
	Transfer(ctx context.Context, from, to Address, amount uint64) error
	Credit(ctx context.Context, to Address, amount uint64) error
}

// LedgerTx is the exclusive view of the ledger held for one operation. Reads
// through a LedgerTx lock the record until the transaction ends. Create*
// fails with ErrAlreadyExists when the address is occupied; Get* and Update*
// fail with ErrNotFound when it is not.
type LedgerTx interface {
	Custody

	GetPool(ctx context.Context, addr Address) (Pool, error)
	CreatePool(ctx context.Context, p Pool) error
	UpdatePool(ctx context.Context, p Pool) error

	GetOption(ctx context.Context, addr Address) (PoolOption, error)
	CreateOption(ctx context.Context, o PoolOption) error
	UpdateOption(ctx context.Context, o PoolOption) error

	GetEntry(ctx context.Context, addr Address) (Entry, error)
	CreateEntry(ctx context.Context, e Entry) error
	UpdateEntry(ctx context.Context, e Entry) error
}

// LedgerStore persists pools, options, entries and balances.
type LedgerStore interface {
	// WithTx runs fn with exclusive access to the records it touches. When
	// fn returns an error nothing fn did is observable.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error

	GetPool(ctx context.Context, addr Address) (Pool, error)
	GetOption(ctx context.Context, addr Address) (PoolOption, error)
	GetEntry(ctx context.Context, addr Address) (Entry, error)
	Balance(ctx context.Context, account Address) (uint64, error)

	ListOptions(ctx context.Context, pool Address) ([]PoolOption, error)
	ListEntries(ctx context.Context, option Address, opts ListOpts) ([]Entry, error)
	ListResolvedPools(ctx context.Context, opts ListOpts) ([]Pool, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
