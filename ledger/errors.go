package ledger

import "errors"

// Typed failures of the ledger operations. All are terminal: the ledger never
// retries, and no failure leaves a partial mutation behind. Callers match
// with errors.Is and decide externally whether a condition is permanent.
var (
	ErrAlreadyInitialized  = errors.New("campaign already initialized")
	ErrNotInitialized      = errors.New("campaign not initialized")
	ErrInvalidWindow       = errors.New("campaign start time must precede end time")
	ErrInvalidPool         = errors.New("total pool amount must be positive")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrUnauthorized        = errors.New("invoker is not authorized for this operation")
	ErrScoreOutOfRange     = errors.New("contribution score is out of range")
	ErrCampaignExpired     = errors.New("campaign deadline has passed")
	ErrFinalized           = errors.New("campaign is finalized")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNoTotalScore        = errors.New("campaign has no total score to divide by")
	ErrAlreadyClaimed      = errors.New("reward already claimed")
	ErrAmountMismatch      = errors.New("claim amount does not match recorded reward share")
	ErrNotScored           = errors.New("reward share has not been computed")
	ErrContributorNotFound = errors.New("contributor not found")
)
