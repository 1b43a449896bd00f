package ledger

import "context"

// Store persists campaign state keyed by derived address. Implementations
// must make every InCampaign call an atomic, serialized transaction against
// one campaign: a failing mutation fn leaves no trace, and two concurrent
// calls for the same campaign never interleave. Operations on different
// campaigns are independent and must not share locks.
type Store interface {
	// CreateCampaign atomically inserts a campaign config, its empty vault,
	// and the first contributor record. Fails with ErrAlreadyInitialized if
	// the campaign key is taken.
	CreateCampaign(ctx context.Context, c *Campaign, v *Vault, first *Contributor) error

	// InCampaign runs fn inside a transaction scoped to one campaign. The
	// campaign and vault exposed through the Tx are mutable; changes are
	// persisted only if fn returns nil. Fails with ErrNotInitialized if no
	// campaign exists under key. Errors from fn are returned unchanged
	// (wrapped at most).
	InCampaign(ctx context.Context, campaignKey string, fn func(ctx context.Context, tx Tx) error) error

	// GetCampaign returns a read-only snapshot, or ErrNotInitialized.
	GetCampaign(ctx context.Context, campaignKey string) (*Campaign, error)

	// GetVault returns a read-only snapshot, or ErrNotInitialized.
	GetVault(ctx context.Context, campaignKey string) (*Vault, error)

	// GetContributor returns a read-only snapshot, or ErrContributorNotFound.
	GetContributor(ctx context.Context, campaignKey, contributorKey string) (*Contributor, error)
}

// Tx is the mutable view of one campaign inside a store transaction.
type Tx interface {
	// Campaign returns the campaign record; mutations are persisted on
	// commit.
	Campaign() *Campaign

	// Vault returns the campaign's vault; mutations are persisted on commit.
	Vault() *Vault

	// Contributor loads a contributor record by derived key, or returns
	// ErrContributorNotFound.
	Contributor(ctx context.Context, key string) (*Contributor, error)

	// PutContributor stages a contributor insert or update for commit.
	PutContributor(c *Contributor)

	// PutReceipt stages a transfer receipt for commit.
	PutReceipt(r *Receipt)
}
