// Package scorefeed is the boundary to the external contribution classifier.
// The classifier inspects pull requests and emits a classification per
// contributor; this package maps classifications to raw scores and feeds them
// into the ledger. Polling GitHub and judging contribution quality happen
// entirely outside the core.
package scorefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/fairplaylabs/fairplay/ledger"
)

// Classification is the quality bucket assigned by the external classifier.
type Classification string

const (
	ClassificationMerged             Classification = "merged"
	ClassificationUnmergedWithIssues Classification = "unmerged_with_issues"
	ClassificationSpam               Classification = "spam"
)

// Score maps a classification to its raw contribution score. Unknown
// classifications score zero, same as spam.
func (c Classification) Score() uint64 {
	switch c {
	case ClassificationMerged:
		return 100
	case ClassificationUnmergedWithIssues:
		return 20
	default:
		return 0
	}
}

// Contribution is one classified contribution event.
type Contribution struct {
	Contributor    solana.PublicKey
	Classification Classification
}

// Source supplies classified contributions for one campaign.
type Source interface {
	Contributions(ctx context.Context) ([]Contribution, error)
}

// StaticSource is a Source over a fixed slice, for tests and manual feeds.
type StaticSource []Contribution

func (s StaticSource) Contributions(ctx context.Context) ([]Contribution, error) {
	return s, nil
}

type FeederConfig struct {
	Logger *slog.Logger
	Ledger *ledger.Ledger
	Source Source
}

func (cfg *FeederConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	if cfg.Source == nil {
		return errors.New("source is required")
	}
	return nil
}

// Feeder drains a Source and assigns the resulting scores on behalf of the
// sponsor authority.
type Feeder struct {
	log    *slog.Logger
	ledger *ledger.Ledger
	source Source
}

func NewFeeder(cfg FeederConfig) (*Feeder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Feeder{log: cfg.Logger, ledger: cfg.Ledger, source: cfg.Source}, nil
}

// Apply assigns a score for every contribution the source currently holds.
// It stops at the first ledger failure; contributions already applied stay
// applied (each assignment is its own atomic operation).
func (f *Feeder) Apply(ctx context.Context, seed uint64, invoker solana.PublicKey) error {
	contributions, err := f.source.Contributions(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch contributions: %w", err)
	}

	for _, contribution := range contributions {
		score := contribution.Classification.Score()
		if _, err := f.ledger.AssignScore(ctx, seed, contribution.Contributor, score, invoker); err != nil {
			return fmt.Errorf("failed to assign score for %s: %w", contribution.Contributor, err)
		}
		f.log.Debug("scorefeed: score applied",
			"seed", seed, "contributor", contribution.Contributor.String(),
			"classification", string(contribution.Classification), "score", score)
	}
	return nil
}
