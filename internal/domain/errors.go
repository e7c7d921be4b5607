package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidInput covers validation failures rejected before any persistence.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict covers state conflicts: double approval, relinking a linked
	// sync record, completing a non-deposited batch, replayed completion.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientFunds is raised both at withdrawal creation and again at
	// final-approval time so two concurrent requests cannot overdraw a wallet.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrGateway signals a failed or timed-out external gateway call. The
	// initiating record stays in its prior state and the call may be retried.
	ErrGateway = errors.New("gateway request failed")
	// ErrReconciliationMismatch is returned when a manual link targets a
	// payment whose amount is outside the configured tolerance.
	ErrReconciliationMismatch = errors.New("reconciliation amount mismatch")
	// ErrLedgerInvariant means a wallet failed balance == deposits - withdrawals.
	ErrLedgerInvariant = errors.New("wallet ledger invariant violated")

	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWalletInactive     = errors.New("wallet inactive")
)
