// Package memstore is the in-memory ledger store: a map keyed by derived
// address with process lifetime. Each campaign carries its own lock, so
// writers within a campaign are serialized while different campaigns stay
// fully independent. Mutations run against copies and are written back only
// on success, so a failing operation leaves no trace.
package memstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fairplaylabs/fairplay/ledger"
)

type Config struct {
	Logger *slog.Logger
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

type Store struct {
	log *slog.Logger

	mu        sync.RWMutex
	campaigns map[string]*campaignState
}

// campaignState bundles everything owned by one campaign under one lock.
type campaignState struct {
	mu           sync.Mutex
	campaign     ledger.Campaign
	vault        ledger.Vault
	contributors map[string]ledger.Contributor
	receipts     []ledger.Receipt
}

func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		log:       cfg.Logger,
		campaigns: make(map[string]*campaignState),
	}, nil
}

func (s *Store) CreateCampaign(ctx context.Context, c *ledger.Campaign, v *ledger.Vault, first *ledger.Contributor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[c.Key]; exists {
		return ledger.ErrAlreadyInitialized
	}
	s.campaigns[c.Key] = &campaignState{
		campaign:     *c,
		vault:        *v,
		contributors: map[string]ledger.Contributor{first.Key: *first},
	}
	s.log.Debug("memstore: campaign created", "campaign", c.Key)
	return nil
}

func (s *Store) InCampaign(ctx context.Context, campaignKey string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	state, err := s.state(campaignKey)
	if err != nil {
		return err
	}

	// Single writer at a time per campaign; the lock spans the whole
	// read-modify-write so concurrent operations never interleave.
	state.mu.Lock()
	defer state.mu.Unlock()

	tx := &memTx{
		campaign: state.campaign,
		vault:    state.vault,
		state:    state,
		dirty:    make(map[string]ledger.Contributor),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	// Commit: write back the copies.
	state.campaign = tx.campaign
	state.vault = tx.vault
	for key, contrib := range tx.dirty {
		state.contributors[key] = contrib
	}
	state.receipts = append(state.receipts, tx.receipts...)
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, campaignKey string) (*ledger.Campaign, error) {
	state, err := s.state(campaignKey)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	c := state.campaign
	return &c, nil
}

func (s *Store) GetVault(ctx context.Context, campaignKey string) (*ledger.Vault, error) {
	state, err := s.state(campaignKey)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	v := state.vault
	return &v, nil
}

func (s *Store) GetContributor(ctx context.Context, campaignKey, contributorKey string) (*ledger.Contributor, error) {
	state, err := s.state(campaignKey)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	contrib, ok := state.contributors[contributorKey]
	if !ok {
		return nil, ledger.ErrContributorNotFound
	}
	return &contrib, nil
}

// Receipts returns all recorded transfer receipts for a campaign.
func (s *Store) Receipts(ctx context.Context, campaignKey string) ([]ledger.Receipt, error) {
	state, err := s.state(campaignKey)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	out := make([]ledger.Receipt, len(state.receipts))
	copy(out, state.receipts)
	return out, nil
}

func (s *Store) state(campaignKey string) (*campaignState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.campaigns[campaignKey]
	if !ok {
		return nil, ledger.ErrNotInitialized
	}
	return state, nil
}

type memTx struct {
	campaign ledger.Campaign
	vault    ledger.Vault
	state    *campaignState
	dirty    map[string]ledger.Contributor
	receipts []ledger.Receipt
}

func (tx *memTx) Campaign() *ledger.Campaign { return &tx.campaign }
func (tx *memTx) Vault() *ledger.Vault       { return &tx.vault }

func (tx *memTx) Contributor(ctx context.Context, key string) (*ledger.Contributor, error) {
	if contrib, ok := tx.dirty[key]; ok {
		return &contrib, nil
	}
	contrib, ok := tx.state.contributors[key]
	if !ok {
		return nil, ledger.ErrContributorNotFound
	}
	c := contrib
	return &c, nil
}

func (tx *memTx) PutContributor(c *ledger.Contributor) {
	tx.dirty[c.Key] = *c
}

func (tx *memTx) PutReceipt(r *ledger.Receipt) {
	tx.receipts = append(tx.receipts, *r)
}
