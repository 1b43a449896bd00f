// Package ledger implements the campaign escrow and proportional-distribution
// state machine. Each operation is an atomic transaction against exactly one
// campaign: validation always precedes mutation, authorization is checked
// before any state is touched, and a failing operation leaves every record
// exactly as it found it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/fairplaylabs/fairplay/ledger/keys"
)

type Config struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Store   Store
	Deriver *keys.Deriver
	Funding FundingSource
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Deriver == nil {
		cfg.Deriver = keys.NewDeriver(keys.DefaultProgramID)
	}
	if cfg.Funding == nil {
		cfg.Funding = UnboundedFunding{}
	}
	return nil
}

// Ledger owns all campaign state mutation. There is no other write path.
type Ledger struct {
	log     *slog.Logger
	clock   clockwork.Clock
	store   Store
	deriver *keys.Deriver
	funding FundingSource
}

func New(cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{
		log:     cfg.Logger,
		clock:   cfg.Clock,
		store:   cfg.Store,
		deriver: cfg.Deriver,
		funding: cfg.Funding,
	}, nil
}

// InitializeParams are the creation-time inputs of a campaign. Everything
// here is fixed at creation; only TotalScore, NoOfContributors and Finalized
// evolve afterwards.
type InitializeParams struct {
	Seed             uint64
	CampaignID       uint8
	TotalPoolAmount  uint64
	StartTime        int64
	EndTime          int64
	Authority        solana.PublicKey
	Depositor        solana.PublicKey // optional
	FirstContributor solana.PublicKey
}

// InitializeCampaign creates the campaign config, its empty escrow vault, and
// the first contributor record with score zero.
func (l *Ledger) InitializeCampaign(ctx context.Context, p InitializeParams) (*Campaign, error) {
	if p.StartTime >= p.EndTime {
		return nil, ErrInvalidWindow
	}
	if p.TotalPoolAmount == 0 {
		return nil, ErrInvalidPool
	}
	if p.Authority.IsZero() {
		return nil, fmt.Errorf("authority is required")
	}
	if p.FirstContributor.IsZero() {
		return nil, fmt.Errorf("first contributor is required")
	}

	campaignKey, err := l.deriver.Campaign(p.Seed)
	if err != nil {
		return nil, err
	}
	vaultKey, err := l.deriver.Vault(p.Seed)
	if err != nil {
		return nil, err
	}
	contributorKey, err := l.deriver.Contributor(p.Seed, p.FirstContributor)
	if err != nil {
		return nil, err
	}

	now := l.clock.Now().Unix()
	campaign := &Campaign{
		Key:              campaignKey,
		Seed:             p.Seed,
		CampaignID:       p.CampaignID,
		Sponsor:          p.Authority,
		Depositor:        p.Depositor,
		TotalPoolAmount:  p.TotalPoolAmount,
		StartTime:        p.StartTime,
		EndTime:          p.EndTime,
		NoOfContributors: 1,
		CreatedAt:        now,
	}
	vault := &Vault{
		Key:         vaultKey,
		CampaignKey: campaignKey,
	}
	first := &Contributor{
		Key:         contributorKey,
		CampaignKey: campaignKey,
		Identity:    p.FirstContributor,
		CreatedAt:   now,
	}

	if err := l.store.CreateCampaign(ctx, campaign, vault, first); err != nil {
		return nil, err
	}

	l.log.Info("ledger: campaign initialized",
		"seed", p.Seed, "campaign", campaignKey, "pool", p.TotalPoolAmount, "sponsor", p.Authority.String())
	return campaign, nil
}

// Deposit moves amount from the depositor's funding source into the campaign
// vault. Cumulative deposits are not capped at the configured pool; any
// excess sits unclaimable in the vault.
func (l *Ledger) Deposit(ctx context.Context, seed uint64, amount uint64, depositor solana.PublicKey) (uint64, error) {
	campaignKey, err := l.deriver.Campaign(seed)
	if err != nil {
		return 0, err
	}

	var newBalance uint64
	debited := false
	err = l.store.InCampaign(ctx, campaignKey, func(ctx context.Context, tx Tx) error {
		if err := authorize(OpDeposit, depositor, tx.Campaign(), nil); err != nil {
			return err
		}
		if amount == 0 {
			return ErrInvalidAmount
		}
		if err := l.funding.Debit(ctx, depositor, amount); err != nil {
			return err
		}
		debited = true

		v := tx.Vault()
		v.Balance += amount
		v.TotalDeposited += amount
		newBalance = v.Balance
		return nil
	})
	if err != nil {
		if debited {
			// The store transaction did not commit; return the debited funds.
			if cerr := l.funding.Credit(ctx, depositor, amount); cerr != nil {
				l.log.Error("ledger: failed to refund depositor after aborted deposit",
					"seed", seed, "depositor", depositor.String(), "amount", amount, "error", cerr)
			}
		}
		return 0, err
	}

	l.log.Info("ledger: deposit accepted", "seed", seed, "amount", amount, "balance", newBalance)
	return newBalance, nil
}

// AssignScore records a contribution score for a contributor, creating the
// record on first contact. Re-scoring applies the delta to the campaign's
// running total so totalScore always equals the sum of all scores.
func (l *Ledger) AssignScore(ctx context.Context, seed uint64, identity solana.PublicKey, score uint64, invoker solana.PublicKey) (uint64, error) {
	campaignKey, err := l.deriver.Campaign(seed)
	if err != nil {
		return 0, err
	}
	contributorKey, err := l.deriver.Contributor(seed, identity)
	if err != nil {
		return 0, err
	}

	var totalScore uint64
	err = l.store.InCampaign(ctx, campaignKey, func(ctx context.Context, tx Tx) error {
		c := tx.Campaign()
		if err := authorize(OpAssignScore, invoker, c, nil); err != nil {
			return err
		}
		if c.Finalized {
			return ErrFinalized
		}
		if l.clock.Now().Unix() > c.EndTime {
			return ErrCampaignExpired
		}
		if score > MaxScore {
			return ErrScoreOutOfRange
		}

		contrib, err := tx.Contributor(ctx, contributorKey)
		switch {
		case errors.Is(err, ErrContributorNotFound):
			contrib = &Contributor{
				Key:         contributorKey,
				CampaignKey: c.Key,
				Identity:    identity,
				Score:       score,
				CreatedAt:   l.clock.Now().Unix(),
			}
			c.NoOfContributors++
			c.TotalScore += score
		case err != nil:
			return err
		default:
			c.TotalScore = c.TotalScore - contrib.Score + score
			contrib.Score = score
			// A superseded score invalidates any share computed from it.
			contrib.RewardShare = 0
			contrib.Scored = false
		}

		tx.PutContributor(contrib)
		totalScore = c.TotalScore
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.log.Info("ledger: score assigned",
		"seed", seed, "contributor", identity.String(), "score", score, "total_score", totalScore)
	return totalScore, nil
}

// ComputeRewardShare converts a contributor's score into the proportional
// amount owed and records it. Recomputation is allowed until the record is
// claimed; a claimed record is frozen and the call fails rather than
// silently recomputing.
func (l *Ledger) ComputeRewardShare(ctx context.Context, seed uint64, identity solana.PublicKey, invoker solana.PublicKey) (uint64, error) {
	campaignKey, err := l.deriver.Campaign(seed)
	if err != nil {
		return 0, err
	}
	contributorKey, err := l.deriver.Contributor(seed, identity)
	if err != nil {
		return 0, err
	}

	var share uint64
	err = l.store.InCampaign(ctx, campaignKey, func(ctx context.Context, tx Tx) error {
		c := tx.Campaign()
		if err := authorize(OpComputeRewardShare, invoker, c, nil); err != nil {
			return err
		}

		contrib, err := tx.Contributor(ctx, contributorKey)
		if err != nil {
			return err
		}
		if contrib.Claimed {
			return ErrAlreadyClaimed
		}

		share, err = proportionalShare(contrib.Score, c.TotalPoolAmount, c.TotalScore)
		if err != nil {
			return err
		}

		contrib.RewardShare = share
		contrib.Scored = true
		tx.PutContributor(contrib)
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.log.Info("ledger: reward share computed",
		"seed", seed, "contributor", identity.String(), "share", share)
	return share, nil
}

// ClaimReward transfers a computed share out of the vault to its contributor.
// The caller must pass the exact recorded share; a mismatch fails rather than
// substituting the stored value, which catches stale clients.
func (l *Ledger) ClaimReward(ctx context.Context, seed uint64, identity solana.PublicKey, amount uint64, invoker solana.PublicKey) (*Receipt, error) {
	campaignKey, err := l.deriver.Campaign(seed)
	if err != nil {
		return nil, err
	}
	contributorKey, err := l.deriver.Contributor(seed, identity)
	if err != nil {
		return nil, err
	}

	var receipt *Receipt
	credited := false
	err = l.store.InCampaign(ctx, campaignKey, func(ctx context.Context, tx Tx) error {
		contrib, err := tx.Contributor(ctx, contributorKey)
		if err != nil {
			return err
		}
		if err := authorize(OpClaimReward, invoker, tx.Campaign(), contrib); err != nil {
			return err
		}
		if !contrib.Scored {
			return ErrNotScored
		}
		if contrib.Claimed {
			return ErrAlreadyClaimed
		}
		if amount != contrib.RewardShare {
			return ErrAmountMismatch
		}

		v := tx.Vault()
		if v.Balance < amount {
			return ErrInsufficientFunds
		}

		if err := l.funding.Credit(ctx, identity, amount); err != nil {
			return err
		}
		credited = true

		v.Balance -= amount
		contrib.Claimed = true
		tx.PutContributor(contrib)

		receipt = &Receipt{
			ID:          uuid.New(),
			CampaignKey: tx.Campaign().Key,
			Contributor: identity,
			Amount:      amount,
			ClaimedAt:   l.clock.Now(),
		}
		tx.PutReceipt(receipt)
		return nil
	})
	if err != nil {
		if credited {
			// The store transaction did not commit; claw the transfer back.
			if derr := l.funding.Debit(ctx, identity, amount); derr != nil {
				l.log.Error("ledger: failed to reverse payout after aborted claim",
					"seed", seed, "contributor", identity.String(), "amount", amount, "error", derr)
			}
		}
		return nil, err
	}

	l.log.Info("ledger: reward claimed",
		"seed", seed, "contributor", identity.String(), "amount", amount, "receipt", receipt.ID.String())
	return receipt, nil
}

// Finalize irreversibly closes score assignment for a campaign.
func (l *Ledger) Finalize(ctx context.Context, seed uint64, invoker solana.PublicKey) error {
	campaignKey, err := l.deriver.Campaign(seed)
	if err != nil {
		return err
	}

	err = l.store.InCampaign(ctx, campaignKey, func(ctx context.Context, tx Tx) error {
		c := tx.Campaign()
		if err := authorize(OpFinalize, invoker, c, nil); err != nil {
			return err
		}
		c.Finalized = true
		return nil
	})
	if err != nil {
		return err
	}

	l.log.Info("ledger: campaign finalized", "seed", seed)
	return nil
}

// Campaign returns a read-only snapshot of a campaign config.
func (l *Ledger) Campaign(ctx context.Context, seed uint64) (*Campaign, error) {
	campaignKey, err := l.deriver.Campaign(seed)
	if err != nil {
		return nil, err
	}
	return l.store.GetCampaign(ctx, campaignKey)
}

// Vault returns a read-only snapshot of a campaign's escrow vault.
func (l *Ledger) Vault(ctx context.Context, seed uint64) (*Vault, error) {
	campaignKey, err := l.deriver.Campaign(seed)
	if err != nil {
		return nil, err
	}
	return l.store.GetVault(ctx, campaignKey)
}

// Contributor returns a read-only snapshot of a contributor record.
func (l *Ledger) Contributor(ctx context.Context, seed uint64, identity solana.PublicKey) (*Contributor, error) {
	campaignKey, err := l.deriver.Campaign(seed)
	if err != nil {
		return nil, err
	}
	contributorKey, err := l.deriver.Contributor(seed, identity)
	if err != nil {
		return nil, err
	}
	return l.store.GetContributor(ctx, campaignKey, contributorKey)
}
