package models

import "errors"

// Domain errors. Handlers map these to HTTP status codes with errors.Is;
// services wrap them with context via fmt.Errorf("...: %w", err).
var (
	ErrInvalidInput              = errors.New("invalid input")
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrSignerUnavailable         = errors.New("no authorized signer attached")
	ErrEscrowNotFound            = errors.New("escrow account not found")
	ErrMilestoneAlreadyApproved  = errors.New("milestone already approved")
	ErrMilestoneNotApproved      = errors.New("milestone not approved")
	ErrMilestoneAlreadyClaimed   = errors.New("milestone already claimed")
	ErrCannotCancelAfterApproval = errors.New("cannot cancel after milestone approval")
	ErrAccessDenied              = errors.New("access denied")
	ErrLedgerUnreachable         = errors.New("ledger unreachable")
)
