package ledger

import "errors"

// Precondition failures. These are reported immediately with no state
// change and are never retried.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrRateMissing         = errors.New("exchange rate missing")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrRequestNotPending   = errors.New("request not found or already processed")
	ErrInvalidAction       = errors.New("invalid action")
)
