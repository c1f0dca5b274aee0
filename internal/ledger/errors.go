package ledger

import "errors"

// Rejection reasons surfaced to the request layer. Every rejection is
// side-effect free: no mutation precedes the error.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")

	// ErrConflict means the operation kept losing lock races after
	// retries. It is transient; the caller may try again.
	ErrConflict = errors.New("transaction conflict")
)
