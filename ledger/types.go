package ledger

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// MaxScore is the upper bound of a single contribution score.
const MaxScore = 100

// Campaign is the per-campaign config record. It is created once by
// InitializeCampaign and mutated only through ledger operations.
type Campaign struct {
	Key              string
	Seed             uint64
	CampaignID       uint8
	Sponsor          solana.PublicKey
	Depositor        solana.PublicKey // optional designated depositor; zero means none
	TotalPoolAmount  uint64
	StartTime        int64 // unix seconds
	EndTime          int64 // unix seconds
	TotalScore       uint64
	NoOfContributors uint32
	Finalized        bool
	CreatedAt        int64
}

// Contributor is the per-(campaign, contributor) record, created at first
// interaction and never deleted.
type Contributor struct {
	Key         string
	CampaignKey string
	Identity    solana.PublicKey
	Score       uint64
	RewardShare uint64
	// Scored tracks that a reward computation event occurred. It is distinct
	// from RewardShare > 0 so a legitimately zero share is still claimable.
	Scored    bool
	Claimed   bool
	CreatedAt int64
}

// Vault is the custodial balance for one campaign. Balance only increases
// via Deposit and only decreases via ClaimReward; TotalDeposited tracks the
// cumulative inflow so sum(claimed) + Balance == TotalDeposited holds.
type Vault struct {
	Key            string
	CampaignKey    string
	Balance        uint64
	TotalDeposited uint64
}

// Receipt records a completed reward transfer out of a vault.
type Receipt struct {
	ID          uuid.UUID
	CampaignKey string
	Contributor solana.PublicKey
	Amount      uint64
	ClaimedAt   time.Time
}
