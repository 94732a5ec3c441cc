// Package service implements the ledger operations on top of the store,
// cache and event interfaces of the domain package.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Degen-Markets/degen-markets-solana/internal/crypto"
	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/settlement"
)

// PoolConfig holds the ledger policy knobs.
type PoolConfig struct {
	Admin               domain.Address
	AllowWinnerOverride bool
	FaucetEnabled       bool
	MaxTextLen          int
}

// PoolService runs every pool operation as one ledger transaction and
// publishes its event once the transaction has committed.
type PoolService struct {
	ledger   domain.LedgerStore
	deriver  *crypto.Deriver
	cache    domain.PoolCache
	events   domain.EventPublisher
	archiver domain.SettlementArchiver
	cfg      PoolConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewPoolService creates a PoolService with its required dependencies.
func NewPoolService(
	ledger domain.LedgerStore,
	deriver *crypto.Deriver,
	cfg PoolConfig,
	logger *slog.Logger,
) *PoolService {
	if cfg.MaxTextLen <= 0 || cfg.MaxTextLen > domain.MaxPoolTextLen {
		cfg.MaxTextLen = domain.MaxPoolTextLen
	}
	return &PoolService{
		ledger:  ledger,
		deriver: deriver,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithCache attaches a read-through pool cache.
func (s *PoolService) WithCache(cache domain.PoolCache) *PoolService {
	s.cache = cache
	return s
}

// WithEvents attaches the publisher committed events are sent to.
func (s *PoolService) WithEvents(events domain.EventPublisher) *PoolService {
	s.events = events
	return s
}

// WithArchiver attaches the cold-storage archiver used by ArchivePool.
func (s *PoolService) WithArchiver(archiver domain.SettlementArchiver) *PoolService {
	s.archiver = archiver
	return s
}

// Deriver exposes the address deriver for read-only helpers.
func (s *PoolService) Deriver() *crypto.Deriver {
	return s.deriver
}

// Admin returns the configured administrator address.
func (s *PoolService) Admin() domain.Address {
	return s.cfg.Admin
}

func (s *PoolService) requireAdmin(signer domain.Address) error {
	if signer != s.cfg.Admin {
		return fmt.Errorf("pool_service: signer %s is not the admin: %w", signer, domain.ErrUnauthorized)
	}
	return nil
}

// CreatePool records a new pool at the address derived from titleDigest.
func (s *PoolService) CreatePool(ctx context.Context, signer domain.Address, title string, titleDigest domain.Digest, imageURL, description string) (domain.Pool, error) {
	if err := s.requireAdmin(signer); err != nil {
		return domain.Pool{}, err
	}
	if len(imageURL) > s.cfg.MaxTextLen {
		return domain.Pool{}, fmt.Errorf("pool_service: image url is %d bytes: %w", len(imageURL), domain.ErrImageURLTooLong)
	}
	if len(description) > s.cfg.MaxTextLen {
		return domain.Pool{}, fmt.Errorf("pool_service: description is %d bytes: %w", len(description), domain.ErrDescriptionTooLong)
	}
	if err := crypto.VerifyPoolTitle(title, titleDigest); err != nil {
		return domain.Pool{}, err
	}

	addr, err := s.deriver.PoolAddress(titleDigest)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("pool_service: %w", err)
	}

	now := s.now()
	pool := domain.Pool{
		Address:     addr,
		Title:       title,
		ImageURL:    imageURL,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.ledger.WithTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		return tx.CreatePool(ctx, pool)
	})
	if err != nil {
		return domain.Pool{}, fmt.Errorf("pool_service: create pool %q: %w", title, err)
	}

	s.logger.InfoContext(ctx, "pool_service: pool created",
		slog.String("pool", addr.String()),
		slog.String("title", title),
	)
	s.publish(ctx, domain.Event{
		Type:        domain.EventPoolCreated,
		Pool:        domain.AddrPtr(addr),
		Title:       title,
		ImageURL:    imageURL,
		Description: description,
	})
	return pool, nil
}

// SetPaused pauses or resumes a pool. A resolved pool stays paused.
func (s *PoolService) SetPaused(ctx context.Context, signer, poolAddr domain.Address, paused bool) (domain.Pool, error) {
	if err := s.requireAdmin(signer); err != nil {
		return domain.Pool{}, err
	}

	var pool domain.Pool
	err := s.ledger.WithTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		pool, err = tx.GetPool(ctx, poolAddr)
		if err != nil {
			return err
		}
		if !paused && pool.State() == domain.PoolStateResolved {
			return fmt.Errorf("resume resolved pool: %w", domain.ErrPoolStateIncompatible)
		}
		pool.IsPaused = paused
		pool.UpdatedAt = s.now()
		return tx.UpdatePool(ctx, pool)
	})
	if err != nil {
		return domain.Pool{}, fmt.Errorf("pool_service: set paused %s: %w", poolAddr, err)
	}

	s.invalidate(ctx, poolAddr)
	s.logger.InfoContext(ctx, "pool_service: pool status changed",
		slog.String("pool", poolAddr.String()),
		slog.Bool("paused", paused),
	)
	s.publish(ctx, domain.Event{
		Type:     domain.EventPoolStatusChanged,
		Pool:     domain.AddrPtr(poolAddr),
		IsPaused: &paused,
	})
	return pool, nil
}

// SetWinningOption declares the winning option of a paused pool.
func (s *PoolService) SetWinningOption(ctx context.Context, signer, poolAddr, optionAddr domain.Address) (domain.Pool, error) {
	if err := s.requireAdmin(signer); err != nil {
		return domain.Pool{}, err
	}

	var pool domain.Pool
	err := s.ledger.WithTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		pool, err = tx.GetPool(ctx, poolAddr)
		if err != nil {
			return err
		}
		if !pool.CanResolve() {
			return fmt.Errorf("pool is %s: %w", pool.State(), domain.ErrPoolStateIncompatible)
		}
		if pool.WinningOption != nil && !s.cfg.AllowWinnerOverride {
			return fmt.Errorf("winner is %s: %w", pool.WinningOption, domain.ErrWinnerAlreadyDeclared)
		}
		option, err := tx.GetOption(ctx, optionAddr)
		if err != nil {
			return err
		}
		if option.Pool != poolAddr {
			return fmt.Errorf("option %s: %w", optionAddr, domain.ErrOptionPoolMismatch)
		}
		pool.WinningOption = domain.AddrPtr(optionAddr)
		pool.UpdatedAt = s.now()
		return tx.UpdatePool(ctx, pool)
	})
	if err != nil {
		return domain.Pool{}, fmt.Errorf("pool_service: set winner %s: %w", poolAddr, err)
	}

	s.invalidate(ctx, poolAddr)
	s.logger.InfoContext(ctx, "pool_service: winner set",
		slog.String("pool", poolAddr.String()),
		slog.String("option", optionAddr.String()),
	)
	s.publish(ctx, domain.Event{
		Type:   domain.EventWinnerSet,
		Pool:   domain.AddrPtr(poolAddr),
		Option: domain.AddrPtr(optionAddr),
	})
	return pool, nil
}

// CreateOption adds an option to a pool that has not been resolved.
func (s *PoolService) CreateOption(ctx context.Context, signer, poolAddr domain.Address, title string, digest domain.Digest) (domain.PoolOption, error) {
	if err := s.requireAdmin(signer); err != nil {
		return domain.PoolOption{}, err
	}
	if err := crypto.VerifyOptionTitle(poolAddr, title, digest); err != nil {
		return domain.PoolOption{}, err
	}
	addr, err := s.deriver.OptionAddress(digest)
	if err != nil {
		return domain.PoolOption{}, fmt.Errorf("pool_service: %w", err)
	}

	option := domain.PoolOption{
		Address:   addr,
		Pool:      poolAddr,
		Title:     title,
		CreatedAt: s.now(),
	}
	err = s.ledger.WithTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		pool, err := tx.GetPool(ctx, poolAddr)
		if err != nil {
			return err
		}
		if pool.State() == domain.PoolStateResolved {
			return fmt.Errorf("pool is resolved: %w", domain.ErrPoolStateIncompatible)
		}
		return tx.CreateOption(ctx, option)
	})
	if err != nil {
		return domain.PoolOption{}, fmt.Errorf("pool_service: create option %q: %w", title, err)
	}

	s.logger.InfoContext(ctx, "pool_service: option created",
		slog.String("pool", poolAddr.String()),
		slog.String("option", addr.String()),
		slog.String("title", title),
	)
	s.publish(ctx, domain.Event{
		Type:   domain.EventOptionCreated,
		Pool:   domain.AddrPtr(poolAddr),
		Option: domain.AddrPtr(addr),
		Title:  title,
	})
	return option, nil
}

// EnterPool wagers amount from participant on option. The entry lives at
// Derive(option, participant) and accumulates repeated wagers.
func (s *PoolService) EnterPool(ctx context.Context, participant, optionAddr domain.Address, amount uint64) (domain.Entry, error) {
	if amount == 0 {
		return domain.Entry{}, fmt.Errorf("pool_service: enter with zero amount: %w", domain.ErrInvalidAmount)
	}
	entryAddr, err := s.deriver.Derive(optionAddr, participant)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("pool_service: %w", err)
	}

	// The owning pool never changes, so it is read outside the transaction
	// to keep the lock order pool, option, entry.
	known, err := s.ledger.GetOption(ctx, optionAddr)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("pool_service: enter option %s: %w", optionAddr, err)
	}

	var entry domain.Entry
	var pool domain.Pool
	err = s.ledger.WithTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		pool, err = tx.GetPool(ctx, known.Pool)
		if err != nil {
			return err
		}
		if !pool.CanEnter() {
			return fmt.Errorf("pool is %s: %w", pool.State(), domain.ErrPoolStateIncompatible)
		}
		option, err := tx.GetOption(ctx, optionAddr)
		if err != nil {
			return err
		}

		now := s.now()
		entry, err = tx.GetEntry(ctx, entryAddr)
		isNew := errors.Is(err, domain.ErrNotFound)
		switch {
		case isNew:
			entry = domain.Entry{
				Address:     entryAddr,
				Option:      optionAddr,
				Participant: participant,
				CreatedAt:   now,
			}
		case err != nil:
			return err
		}

		if entry.Value, err = settlement.Add(entry.Value, amount); err != nil {
			return err
		}
		if option.Value, err = settlement.Add(option.Value, amount); err != nil {
			return err
		}
		if pool.Value, err = settlement.Add(pool.Value, amount); err != nil {
			return err
		}
		entry.UpdatedAt = now
		pool.UpdatedAt = now

		if err := tx.UpdatePool(ctx, pool); err != nil {
			return err
		}
		if err := tx.UpdateOption(ctx, option); err != nil {
			return err
		}
		if isNew {
			err = tx.CreateEntry(ctx, entry)
		} else {
			err = tx.UpdateEntry(ctx, entry)
		}
		if err != nil {
			return err
		}
		return tx.Transfer(ctx, participant, pool.Address, amount)
	})
	if err != nil {
		return domain.Entry{}, fmt.Errorf("pool_service: enter pool via %s: %w", optionAddr, err)
	}

	s.invalidate(ctx, pool.Address)
	s.logger.InfoContext(ctx, "pool_service: pool entered",
		slog.String("pool", pool.Address.String()),
		slog.String("option", optionAddr.String()),
		slog.String("entry", entryAddr.String()),
		slog.Uint64("amount", amount),
	)
	s.publish(ctx, domain.Event{
		Type:    domain.EventPoolEntered,
		Pool:    domain.AddrPtr(pool.Address),
		Option:  domain.AddrPtr(optionAddr),
		Entry:   domain.AddrPtr(entryAddr),
		Account: domain.AddrPtr(participant),
		Amount:  amount,
	})
	return entry, nil
}

// ClaimWin pays a winning entry its share of the pool. It succeeds at most
// once per entry.
func (s *PoolService) ClaimWin(ctx context.Context, participant, poolAddr, optionAddr, entryAddr domain.Address) (uint64, error) {
	var amount uint64
	err := s.ledger.WithTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		pool, err := tx.GetPool(ctx, poolAddr)
		if err != nil {
			return err
		}
		option, err := tx.GetOption(ctx, optionAddr)
		if err != nil {
			return err
		}
		if option.Pool != poolAddr {
			return fmt.Errorf("option %s: %w", optionAddr, domain.ErrOptionPoolMismatch)
		}
		entry, err := tx.GetEntry(ctx, entryAddr)
		if err != nil {
			return err
		}

		amount, err = settlement.Claim(pool, option, entry, participant, s.deriver)
		if err != nil {
			return err
		}

		now := s.now()
		entry.IsClaimed = true
		entry.UpdatedAt = now
		if pool.Paid, err = settlement.Add(pool.Paid, amount); err != nil {
			return err
		}
		pool.UpdatedAt = now

		if err := tx.UpdatePool(ctx, pool); err != nil {
			return err
		}
		if err := tx.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		return tx.Transfer(ctx, poolAddr, participant, amount)
	})
	if err != nil {
		return 0, fmt.Errorf("pool_service: claim %s: %w", entryAddr, err)
	}

	s.invalidate(ctx, poolAddr)
	s.logger.InfoContext(ctx, "pool_service: win claimed",
		slog.String("pool", poolAddr.String()),
		slog.String("entry", entryAddr.String()),
		slog.Uint64("amount", amount),
	)
	s.publish(ctx, domain.Event{
		Type:    domain.EventWinClaimed,
		Pool:    domain.AddrPtr(poolAddr),
		Option:  domain.AddrPtr(optionAddr),
		Entry:   domain.AddrPtr(entryAddr),
		Account: domain.AddrPtr(participant),
		Amount:  amount,
	})
	return amount, nil
}

// FundPool spreads amount evenly over options of an open pool. Each option
// receives amount/len(options); any remainder stays with the funder. It
// returns the amount credited per option.
func (s *PoolService) FundPool(ctx context.Context, signer, poolAddr domain.Address, amount uint64, options []domain.Address) (uint64, error) {
	if err := s.requireAdmin(signer); err != nil {
		return 0, err
	}
	if len(options) == 0 {
		return 0, fmt.Errorf("pool_service: fund %s: %w", poolAddr, domain.ErrNoPoolOptions)
	}
	seen := make(map[domain.Address]struct{}, len(options))
	for _, o := range options {
		if _, dup := seen[o]; dup {
			return 0, fmt.Errorf("pool_service: option %s listed twice: %w", o, domain.ErrInvalidPoolOption)
		}
		seen[o] = struct{}{}
	}
	per := amount / uint64(len(options))
	if per == 0 {
		return 0, fmt.Errorf("pool_service: fund %d over %d options: %w", amount, len(options), domain.ErrInvalidAmount)
	}
	total := per * uint64(len(options))

	err := s.ledger.WithTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		pool, err := tx.GetPool(ctx, poolAddr)
		if err != nil {
			return err
		}
		if !pool.CanEnter() {
			return fmt.Errorf("pool is %s: %w", pool.State(), domain.ErrPoolStateIncompatible)
		}
		for _, addr := range options {
			option, err := tx.GetOption(ctx, addr)
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("option %s: %w", addr, domain.ErrInvalidPoolOption)
			}
			if err != nil {
				return err
			}
			if option.Pool != poolAddr {
				return fmt.Errorf("option %s: %w", addr, domain.ErrInvalidPoolOption)
			}
			if option.Value, err = settlement.Add(option.Value, per); err != nil {
				return err
			}
			if err := tx.UpdateOption(ctx, option); err != nil {
				return err
			}
		}
		if pool.Value, err = settlement.Add(pool.Value, total); err != nil {
			return err
		}
		pool.UpdatedAt = s.now()
		if err := tx.UpdatePool(ctx, pool); err != nil {
			return err
		}
		return tx.Transfer(ctx, signer, poolAddr, total)
	})
	if err != nil {
		return 0, fmt.Errorf("pool_service: fund %s: %w", poolAddr, err)
	}

	s.invalidate(ctx, poolAddr)
	s.logger.InfoContext(ctx, "pool_service: pool funded",
		slog.String("pool", poolAddr.String()),
		slog.Int("options", len(options)),
		slog.Uint64("per_option", per),
	)
	s.publish(ctx, domain.Event{
		Type:    domain.EventPoolFunded,
		Pool:    domain.AddrPtr(poolAddr),
		Account: domain.AddrPtr(signer),
		Amount:  total,
	})
	return per, nil
}

// CloseEntry retires the signer's entry in a resolved pool. The record is
// kept, so the derived address stays occupied and the pool totals are
// unchanged, but a closed entry can no longer be claimed.
func (s *PoolService) CloseEntry(ctx context.Context, signer, poolAddr, optionAddr, entryAddr domain.Address) (domain.Entry, error) {
	if err := s.deriver.VerifyEntry(optionAddr, signer, entryAddr); err != nil {
		return domain.Entry{}, fmt.Errorf("pool_service: close %s: %w", entryAddr, err)
	}

	var entry domain.Entry
	err := s.ledger.WithTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		pool, err := tx.GetPool(ctx, poolAddr)
		if err != nil {
			return err
		}
		if pool.State() != domain.PoolStateResolved {
			return fmt.Errorf("pool is %s: %w", pool.State(), domain.ErrPoolStateIncompatible)
		}
		option, err := tx.GetOption(ctx, optionAddr)
		if err != nil {
			return err
		}
		if option.Pool != poolAddr {
			return fmt.Errorf("option %s: %w", optionAddr, domain.ErrOptionPoolMismatch)
		}
		entry, err = tx.GetEntry(ctx, entryAddr)
		if err != nil {
			return err
		}
		if entry.IsClosed {
			return domain.ErrEntryClosed
		}
		entry.IsClosed = true
		entry.UpdatedAt = s.now()
		return tx.UpdateEntry(ctx, entry)
	})
	if err != nil {
		return domain.Entry{}, fmt.Errorf("pool_service: close %s: %w", entryAddr, err)
	}

	s.logger.InfoContext(ctx, "pool_service: entry closed",
		slog.String("pool", poolAddr.String()),
		slog.String("entry", entryAddr.String()),
	)
	s.publish(ctx, domain.Event{
		Type:    domain.EventEntryClosed,
		Pool:    domain.AddrPtr(poolAddr),
		Option:  domain.AddrPtr(optionAddr),
		Entry:   domain.AddrPtr(entryAddr),
		Account: domain.AddrPtr(signer),
	})
	return entry, nil
}

// Transfer moves native value from the signer to another account.
func (s *PoolService) Transfer(ctx context.Context, signer, to domain.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("pool_service: transfer zero: %w", domain.ErrInvalidAmount)
	}
	err := s.ledger.WithTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		return tx.Transfer(ctx, signer, to, amount)
	})
	if err != nil {
		return fmt.Errorf("pool_service: transfer to %s: %w", to, err)
	}

	s.logger.InfoContext(ctx, "pool_service: transferred",
		slog.String("from", signer.String()),
		slog.String("to", to.String()),
		slog.Uint64("amount", amount),
	)
	s.publish(ctx, domain.Event{
		Type:        domain.EventTransferred,
		Account:     domain.AddrPtr(signer),
		Counterpart: domain.AddrPtr(to),
		Amount:      amount,
	})
	return nil
}

// Faucet mints amount into an account. It is only available when the
// faucet is enabled in configuration.
func (s *PoolService) Faucet(ctx context.Context, signer, to domain.Address, amount uint64) error {
	if !s.cfg.FaucetEnabled {
		return fmt.Errorf("pool_service: %w", domain.ErrFaucetDisabled)
	}
	if err := s.requireAdmin(signer); err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("pool_service: faucet zero: %w", domain.ErrInvalidAmount)
	}
	err := s.ledger.WithTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		return tx.Credit(ctx, to, amount)
	})
	if err != nil {
		return fmt.Errorf("pool_service: faucet to %s: %w", to, err)
	}

	s.logger.InfoContext(ctx, "pool_service: faucet",
		slog.String("to", to.String()),
		slog.Uint64("amount", amount),
	)
	s.publish(ctx, domain.Event{
		Type:    domain.EventFaucet,
		Account: domain.AddrPtr(to),
		Amount:  amount,
	})
	return nil
}

// GetPool retrieves a pool, checking the cache first and falling back to
// the ledger on a miss.
func (s *PoolService) GetPool(ctx context.Context, addr domain.Address) (domain.Pool, error) {
	if s.cache != nil {
		if p, err := s.cache.Get(ctx, addr); err == nil {
			return p, nil
		}
	}

	p, err := s.ledger.GetPool(ctx, addr)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("pool_service: get pool %s: %w", addr, err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, p); cacheErr != nil {
			s.logger.WarnContext(ctx, "pool_service: cache set failed",
				slog.String("pool", addr.String()),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return p, nil
}

// GetOption returns one option.
func (s *PoolService) GetOption(ctx context.Context, addr domain.Address) (domain.PoolOption, error) {
	o, err := s.ledger.GetOption(ctx, addr)
	if err != nil {
		return domain.PoolOption{}, fmt.Errorf("pool_service: get option %s: %w", addr, err)
	}
	return o, nil
}

// ListOptions returns the options of an existing pool.
func (s *PoolService) ListOptions(ctx context.Context, poolAddr domain.Address) ([]domain.PoolOption, error) {
	if _, err := s.ledger.GetPool(ctx, poolAddr); err != nil {
		return nil, fmt.Errorf("pool_service: list options %s: %w", poolAddr, err)
	}
	options, err := s.ledger.ListOptions(ctx, poolAddr)
	if err != nil {
		return nil, fmt.Errorf("pool_service: list options %s: %w", poolAddr, err)
	}
	return options, nil
}

// ListEntries returns a page of the entries placed on an option.
func (s *PoolService) ListEntries(ctx context.Context, optionAddr domain.Address, opts domain.ListOpts) ([]domain.Entry, error) {
	entries, err := s.ledger.ListEntries(ctx, optionAddr, opts)
	if err != nil {
		return nil, fmt.Errorf("pool_service: list entries %s: %w", optionAddr, err)
	}
	return entries, nil
}

// GetEntry returns one entry.
func (s *PoolService) GetEntry(ctx context.Context, addr domain.Address) (domain.Entry, error) {
	e, err := s.ledger.GetEntry(ctx, addr)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("pool_service: get entry %s: %w", addr, err)
	}
	return e, nil
}

// Balance returns the custody balance of an account.
func (s *PoolService) Balance(ctx context.Context, account domain.Address) (uint64, error) {
	b, err := s.ledger.Balance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("pool_service: balance %s: %w", account, err)
	}
	return b, nil
}

// DeriveEntry returns the entry address of participant under option.
func (s *PoolService) DeriveEntry(option, participant domain.Address) (domain.Address, error) {
	return s.deriver.Derive(option, participant)
}

// Settlement previews the payouts of a pool without changing anything.
func (s *PoolService) Settlement(ctx context.Context, poolAddr domain.Address) (domain.SettlementReport, error) {
	report, _, err := s.settlement(ctx, poolAddr)
	return report, err
}

func (s *PoolService) settlement(ctx context.Context, poolAddr domain.Address) (domain.SettlementReport, []domain.Entry, error) {
	pool, err := s.ledger.GetPool(ctx, poolAddr)
	if err != nil {
		return domain.SettlementReport{}, nil, fmt.Errorf("pool_service: settlement %s: %w", poolAddr, err)
	}
	options, err := s.ledger.ListOptions(ctx, poolAddr)
	if err != nil {
		return domain.SettlementReport{}, nil, fmt.Errorf("pool_service: settlement %s: %w", poolAddr, err)
	}

	var entries []domain.Entry
	for _, o := range options {
		page, err := s.ledger.ListEntries(ctx, o.Address, domain.ListOpts{})
		if err != nil {
			return domain.SettlementReport{}, nil, fmt.Errorf("pool_service: settlement %s: %w", poolAddr, err)
		}
		entries = append(entries, page...)
	}

	report, err := settlement.Preview(pool, options, entries)
	if err != nil {
		return domain.SettlementReport{}, nil, fmt.Errorf("pool_service: settlement %s: %w", poolAddr, err)
	}
	return report, entries, nil
}

// ArchivePool writes the settlement record of a resolved pool to cold
// storage and returns the summary path.
func (s *PoolService) ArchivePool(ctx context.Context, poolAddr domain.Address) (string, error) {
	if s.archiver == nil {
		return "", errors.New("pool_service: archive storage not configured")
	}
	report, entries, err := s.settlement(ctx, poolAddr)
	if err != nil {
		return "", err
	}
	if report.Pool.State() != domain.PoolStateResolved {
		return "", fmt.Errorf("pool_service: archive %s: pool is %s: %w", poolAddr, report.Pool.State(), domain.ErrPoolStateIncompatible)
	}

	path, err := s.archiver.ArchivePool(ctx, report, entries)
	if err != nil {
		return "", fmt.Errorf("pool_service: archive %s: %w", poolAddr, err)
	}

	s.logger.InfoContext(ctx, "pool_service: pool archived",
		slog.String("pool", poolAddr.String()),
		slog.String("path", path),
		slog.Int("entries", len(entries)),
	)
	s.publish(ctx, domain.Event{
		Type:   domain.EventPoolArchived,
		Pool:   domain.AddrPtr(poolAddr),
		Amount: report.Total,
		Path:   path,
	})
	return path, nil
}

func (s *PoolService) invalidate(ctx context.Context, addr domain.Address) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, addr); err != nil {
		s.logger.WarnContext(ctx, "pool_service: cache invalidate failed",
			slog.String("pool", addr.String()),
			slog.String("error", err.Error()),
		)
	}
}

// publish stamps ev and hands it to the event publisher. The operation has
// already committed, so failures are only logged.
func (s *PoolService) publish(ctx context.Context, ev domain.Event) {
	if s.events == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.At = s.now()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "pool_service: publish event failed",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}
