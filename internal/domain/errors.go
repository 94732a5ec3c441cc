package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")

	ErrContentMismatch    = errors.New("content does not match digest")
	ErrImageURLTooLong    = errors.New("image url too long")
	ErrDescriptionTooLong = errors.New("description too long")

	ErrPoolStateIncompatible = errors.New("pool state incompatible")
	ErrWinnerAlreadyDeclared = errors.New("winning option already declared")

	ErrIdentityMismatch    = errors.New("entry not derived from option and participant")
	ErrOptionPoolMismatch  = errors.New("option does not belong to pool")
	ErrEntryAlreadyClaimed = errors.New("entry already claimed")
	ErrEntryClosed         = errors.New("entry closed")
	ErrLosingOption        = errors.New("entry did not win")

	ErrDivisionByZero     = errors.New("division by zero")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNoPoolOptions     = errors.New("no pool options supplied")
	ErrInvalidPoolOption = errors.New("invalid pool option")
	ErrFaucetDisabled    = errors.New("faucet disabled")
)

// ErrorKind groups errors into the categories callers act on.
type ErrorKind string

const (
	KindContentIntegrity     ErrorKind = "content_integrity"
	KindStateIncompatibility ErrorKind = "state_incompatibility"
	KindAuthorization        ErrorKind = "authorization"
	KindDoubleAction         ErrorKind = "double_action"
	KindOutcomeMismatch      ErrorKind = "outcome_mismatch"
	KindArithmetic           ErrorKind = "arithmetic"
	KindCustody              ErrorKind = "custody"
	KindInvalidInput         ErrorKind = "invalid_input"
	KindNotFound             ErrorKind = "not_found"
	KindConflict             ErrorKind = "conflict"
	KindInternal             ErrorKind = "internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrContentMismatch, KindContentIntegrity},
	{ErrImageURLTooLong, KindContentIntegrity},
	{ErrDescriptionTooLong, KindContentIntegrity},
	{ErrPoolStateIncompatible, KindStateIncompatibility},
	{ErrWinnerAlreadyDeclared, KindStateIncompatibility},
	{ErrEntryClosed, KindStateIncompatibility},
	{ErrFaucetDisabled, KindStateIncompatibility},
	{ErrIdentityMismatch, KindAuthorization},
	{ErrUnauthorized, KindAuthorization},
	{ErrEntryAlreadyClaimed, KindDoubleAction},
	{ErrLosingOption, KindOutcomeMismatch},
	{ErrDivisionByZero, KindArithmetic},
	{ErrArithmeticOverflow, KindArithmetic},
	{ErrInsufficientFunds, KindCustody},
	{ErrInvalidAmount, KindInvalidInput},
	{ErrNoPoolOptions, KindInvalidInput},
	{ErrInvalidPoolOption, KindInvalidInput},
	{ErrOptionPoolMismatch, KindInvalidInput},
	{ErrNotFound, KindNotFound},
	{ErrAlreadyExists, KindConflict},
	{ErrLockHeld, KindConflict},
	{ErrRateLimited, KindConflict},
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
