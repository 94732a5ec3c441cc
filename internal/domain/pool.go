package domain

import "time"

// MaxPoolTextLen bounds the pool image URL and description, in bytes.
const MaxPoolTextLen = 200

// PoolState is the lifecycle stage of a pool. It is derived from the stored
// IsPaused flag and the winning option, never stored on its own.
type PoolState string

const (
	PoolStateOpen     PoolState = "open"
	PoolStatePaused   PoolState = "paused"
	PoolStateResolved PoolState = "resolved"
)

// Pool is a wagering event. Value counts every unit ever deposited into the
// pool and is never decremented; Paid counts every unit withdrawn by claims.
type Pool struct {
	Address       Address   `json:"address"`
	Title         string    `json:"title"`
	ImageURL      string    `json:"image_url"`
	Description   string    `json:"description"`
	IsPaused      bool      `json:"is_paused"`
	WinningOption *Address  `json:"winning_option,omitempty"`
	Value         uint64    `json:"value"`
	Paid          uint64    `json:"paid"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// State reports the lifecycle stage.
func (p Pool) State() PoolState {
	switch {
	case p.WinningOption != nil:
		return PoolStateResolved
	case p.IsPaused:
		return PoolStatePaused
	default:
		return PoolStateOpen
	}
}

// CanEnter reports whether entries and funding are accepted.
func (p Pool) CanEnter() bool {
	return p.State() == PoolStateOpen
}

// CanResolve reports whether a winning option may be declared.
func (p Pool) CanResolve() bool {
	return p.IsPaused
}

// CanClaim reports whether a winner has been declared.
func (p Pool) CanClaim() bool {
	return p.WinningOption != nil
}

// IsWinner reports whether option is the declared winning option.
func (p Pool) IsWinner(option Address) bool {
	return p.WinningOption != nil && *p.WinningOption == option
}

// Unclaimed is the part of Value not yet paid out: pending winnings plus dust.
func (p Pool) Unclaimed() uint64 {
	if p.Paid > p.Value {
		return 0
	}
	return p.Value - p.Paid
}

// PoolOption is one outcome of a pool.
type PoolOption struct {
	Address   Address   `json:"address"`
	Pool      Address   `json:"pool"`
	Title     string    `json:"title"`
	Value     uint64    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is one participant's cumulative wager on one option. Its address is
// Derive(Option, Participant); Participant is kept for listing only and is
// never trusted for authentication.
type Entry struct {
	Address     Address   `json:"address"`
	Option      Address   `json:"option"`
	Participant Address   `json:"participant"`
	Value       uint64    `json:"value"`
	IsClaimed   bool      `json:"is_claimed"`
	IsClosed    bool      `json:"is_closed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
