// Package pgstore is the PostgreSQL ledger store. Per-campaign serialization
// comes from locking the campaign row with SELECT ... FOR UPDATE inside a
// transaction; a failing mutation rolls the transaction back, so typed ledger
// failures never leave partial state behind.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairplaylabs/fairplay/ledger"
)

// PostgreSQL unique_violation.
const pgUniqueViolation = "23505"

type Config struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pool == nil {
		return errors.New("postgres pool is required")
	}
	return nil
}

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{log: cfg.Logger, pool: cfg.Pool}, nil
}

func (s *Store) CreateCampaign(ctx context.Context, c *ledger.Campaign, v *ledger.Vault, first *ledger.Contributor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO campaigns (key, seed, campaign_id, sponsor, depositor, total_pool_amount,
			start_time, end_time, total_score, no_of_contributors, finalized, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.Key, int64(c.Seed), int16(c.CampaignID), c.Sponsor.String(), depositorString(c.Depositor),
		int64(c.TotalPoolAmount), c.StartTime, c.EndTime, int64(c.TotalScore),
		int32(c.NoOfContributors), c.Finalized, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrAlreadyInitialized
		}
		return fmt.Errorf("failed to insert campaign: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO vaults (key, campaign_key, balance, total_deposited)
		VALUES ($1, $2, $3, $4)`,
		v.Key, v.CampaignKey, int64(v.Balance), int64(v.TotalDeposited))
	if err != nil {
		return fmt.Errorf("failed to insert vault: %w", err)
	}

	if err := insertContributor(ctx, tx, first); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit campaign creation: %w", err)
	}
	s.log.Debug("pgstore: campaign created", "campaign", c.Key)
	return nil
}

func (s *Store) InCampaign(ctx context.Context, campaignKey string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer pgTx.Rollback(ctx) //nolint:errcheck // no-op after commit

	// Lock the campaign row: one writer at a time per campaign, different
	// campaigns never contend.
	campaign, err := scanCampaign(pgTx.QueryRow(ctx, `
		SELECT key, seed, campaign_id, sponsor, depositor, total_pool_amount,
			start_time, end_time, total_score, no_of_contributors, finalized, created_at
		FROM campaigns WHERE key = $1 FOR UPDATE`, campaignKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.ErrNotInitialized
		}
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	vault, err := scanVault(pgTx.QueryRow(ctx, `
		SELECT key, campaign_key, balance, total_deposited
		FROM vaults WHERE campaign_key = $1 FOR UPDATE`, campaignKey))
	if err != nil {
		return fmt.Errorf("failed to load vault: %w", err)
	}

	tx := &storeTx{
		pgTx:     pgTx,
		campaign: campaign,
		vault:    vault,
		dirty:    make(map[string]*ledger.Contributor),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.flush(ctx); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit campaign transaction: %w", err)
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, campaignKey string) (*ledger.Campaign, error) {
	campaign, err := scanCampaign(s.pool.QueryRow(ctx, `
		SELECT key, seed, campaign_id, sponsor, depositor, total_pool_amount,
			start_time, end_time, total_score, no_of_contributors, finalized, created_at
		FROM campaigns WHERE key = $1`, campaignKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	return campaign, nil
}

func (s *Store) GetVault(ctx context.Context, campaignKey string) (*ledger.Vault, error) {
	vault, err := scanVault(s.pool.QueryRow(ctx, `
		SELECT key, campaign_key, balance, total_deposited
		FROM vaults WHERE campaign_key = $1`, campaignKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to load vault: %w", err)
	}
	return vault, nil
}

func (s *Store) GetContributor(ctx context.Context, campaignKey, contributorKey string) (*ledger.Contributor, error) {
	contrib, err := scanContributor(s.pool.QueryRow(ctx, `
		SELECT key, campaign_key, identity, score, reward_share, scored, claimed, created_at
		FROM contributors WHERE key = $1 AND campaign_key = $2`, contributorKey, campaignKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrContributorNotFound
		}
		return nil, fmt.Errorf("failed to load contributor: %w", err)
	}
	return contrib, nil
}

type storeTx struct {
	pgTx     pgx.Tx
	campaign *ledger.Campaign
	vault    *ledger.Vault
	dirty    map[string]*ledger.Contributor
	receipts []*ledger.Receipt
}

func (tx *storeTx) Campaign() *ledger.Campaign { return tx.campaign }
func (tx *storeTx) Vault() *ledger.Vault       { return tx.vault }

func (tx *storeTx) Contributor(ctx context.Context, key string) (*ledger.Contributor, error) {
	if contrib, ok := tx.dirty[key]; ok {
		return contrib, nil
	}
	contrib, err := scanContributor(tx.pgTx.QueryRow(ctx, `
		SELECT key, campaign_key, identity, score, reward_share, scored, claimed, created_at
		FROM contributors WHERE key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrContributorNotFound
		}
		return nil, fmt.Errorf("failed to load contributor: %w", err)
	}
	return contrib, nil
}

func (tx *storeTx) PutContributor(c *ledger.Contributor) {
	tx.dirty[c.Key] = c
}

func (tx *storeTx) PutReceipt(r *ledger.Receipt) {
	tx.receipts = append(tx.receipts, r)
}

// flush writes the campaign, vault, staged contributors and receipts back to
// the still-open transaction.
func (tx *storeTx) flush(ctx context.Context) error {
	c := tx.campaign
	_, err := tx.pgTx.Exec(ctx, `
		UPDATE campaigns SET total_score = $2, no_of_contributors = $3, finalized = $4
		WHERE key = $1`,
		c.Key, int64(c.TotalScore), int32(c.NoOfContributors), c.Finalized)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	v := tx.vault
	_, err = tx.pgTx.Exec(ctx, `
		UPDATE vaults SET balance = $2, total_deposited = $3 WHERE key = $1`,
		v.Key, int64(v.Balance), int64(v.TotalDeposited))
	if err != nil {
		return fmt.Errorf("failed to update vault: %w", err)
	}

	for _, contrib := range tx.dirty {
		_, err = tx.pgTx.Exec(ctx, `
			INSERT INTO contributors (key, campaign_key, identity, score, reward_share, scored, claimed, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (key) DO UPDATE
			SET score = EXCLUDED.score, reward_share = EXCLUDED.reward_share,
				scored = EXCLUDED.scored, claimed = EXCLUDED.claimed`,
			contrib.Key, contrib.CampaignKey, contrib.Identity.String(), int64(contrib.Score),
			int64(contrib.RewardShare), contrib.Scored, contrib.Claimed, contrib.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert contributor: %w", err)
		}
	}

	for _, r := range tx.receipts {
		_, err = tx.pgTx.Exec(ctx, `
			INSERT INTO claims (id, campaign_key, contributor_identity, amount, claimed_at)
			VALUES ($1, $2, $3, $4, $5)`,
			r.ID, r.CampaignKey, r.Contributor.String(), int64(r.Amount), r.ClaimedAt)
		if err != nil {
			return fmt.Errorf("failed to insert claim receipt: %w", err)
		}
	}
	return nil
}

func insertContributor(ctx context.Context, tx pgx.Tx, c *ledger.Contributor) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO contributors (key, campaign_key, identity, score, reward_share, scored, claimed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.Key, c.CampaignKey, c.Identity.String(), int64(c.Score),
		int64(c.RewardShare), c.Scored, c.Claimed, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contributor: %w", err)
	}
	return nil
}

func scanCampaign(row pgx.Row) (*ledger.Campaign, error) {
	var (
		c                ledger.Campaign
		seed             int64
		campaignID       int16
		sponsor          string
		depositor        string
		pool             int64
		totalScore       int64
		noOfContributors int32
	)
	err := row.Scan(&c.Key, &seed, &campaignID, &sponsor, &depositor, &pool,
		&c.StartTime, &c.EndTime, &totalScore, &noOfContributors, &c.Finalized, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Seed = uint64(seed)
	c.CampaignID = uint8(campaignID)
	c.TotalPoolAmount = uint64(pool)
	c.TotalScore = uint64(totalScore)
	c.NoOfContributors = uint32(noOfContributors)
	if c.Sponsor, err = solana.PublicKeyFromBase58(sponsor); err != nil {
		return nil, fmt.Errorf("failed to parse sponsor key: %w", err)
	}
	if depositor != "" {
		if c.Depositor, err = solana.PublicKeyFromBase58(depositor); err != nil {
			return nil, fmt.Errorf("failed to parse depositor key: %w", err)
		}
	}
	return &c, nil
}

func scanVault(row pgx.Row) (*ledger.Vault, error) {
	var (
		v              ledger.Vault
		balance        int64
		totalDeposited int64
	)
	if err := row.Scan(&v.Key, &v.CampaignKey, &balance, &totalDeposited); err != nil {
		return nil, err
	}
	v.Balance = uint64(balance)
	v.TotalDeposited = uint64(totalDeposited)
	return &v, nil
}

func scanContributor(row pgx.Row) (*ledger.Contributor, error) {
	var (
		c        ledger.Contributor
		identity string
		score    int64
		share    int64
	)
	err := row.Scan(&c.Key, &c.CampaignKey, &identity, &score, &share, &c.Scored, &c.Claimed, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Score = uint64(score)
	c.RewardShare = uint64(share)
	if c.Identity, err = solana.PublicKeyFromBase58(identity); err != nil {
		return nil, fmt.Errorf("failed to parse contributor identity: %w", err)
	}
	return &c, nil
}

func depositorString(k solana.PublicKey) string {
	if k.IsZero() {
		return ""
	}
	return k.String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
