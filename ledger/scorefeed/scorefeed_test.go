package scorefeed_test

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/fairplaylabs/fairplay/ledger"
	"github.com/fairplaylabs/fairplay/ledger/memstore"
	"github.com/fairplaylabs/fairplay/ledger/scorefeed"
	fptesting "github.com/fairplaylabs/fairplay/utils/pkg/testing"
)

func TestFairplay_Scorefeed_ClassificationScore(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(100), scorefeed.ClassificationMerged.Score())
	require.Equal(t, uint64(20), scorefeed.ClassificationUnmergedWithIssues.Score())
	require.Equal(t, uint64(0), scorefeed.ClassificationSpam.Score())
	require.Equal(t, uint64(0), scorefeed.Classification("something_else").Score())
}

func TestFairplay_Scorefeed_Apply(t *testing.T) {
	t.Parallel()

	newLedger := func(t *testing.T, sponsor, first solana.PublicKey) *ledger.Ledger {
		t.Helper()
		log := fptesting.NewLogger()
		store, err := memstore.New(memstore.Config{Logger: log})
		require.NoError(t, err)

		clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
		ldg, err := ledger.New(ledger.Config{Logger: log, Clock: clock, Store: store})
		require.NoError(t, err)

		now := clock.Now().Unix()
		_, err = ldg.InitializeCampaign(context.Background(), ledger.InitializeParams{
			Seed:             1,
			TotalPoolAmount:  1000,
			StartTime:        now - 3600,
			EndTime:          now + 86400,
			Authority:        sponsor,
			FirstContributor: first,
		})
		require.NoError(t, err)
		return ldg
	}

	t.Run("assigns classified scores on behalf of the sponsor", func(t *testing.T) {
		t.Parallel()

		sponsor := solana.NewWallet().PublicKey()
		alice := solana.NewWallet().PublicKey()
		bob := solana.NewWallet().PublicKey()
		ldg := newLedger(t, sponsor, alice)

		feeder, err := scorefeed.NewFeeder(scorefeed.FeederConfig{
			Logger: fptesting.NewLogger(),
			Ledger: ldg,
			Source: scorefeed.StaticSource{
				{Contributor: alice, Classification: scorefeed.ClassificationMerged},
				{Contributor: bob, Classification: scorefeed.ClassificationUnmergedWithIssues},
			},
		})
		require.NoError(t, err)

		require.NoError(t, feeder.Apply(context.Background(), 1, sponsor))

		c, err := ldg.Campaign(context.Background(), 1)
		require.NoError(t, err)
		require.Equal(t, uint64(120), c.TotalScore)

		contrib, err := ldg.Contributor(context.Background(), 1, alice)
		require.NoError(t, err)
		require.Equal(t, uint64(100), contrib.Score)
	})

	t.Run("stops at the first ledger failure", func(t *testing.T) {
		t.Parallel()

		sponsor := solana.NewWallet().PublicKey()
		alice := solana.NewWallet().PublicKey()
		bob := solana.NewWallet().PublicKey()
		ldg := newLedger(t, sponsor, alice)

		feeder, err := scorefeed.NewFeeder(scorefeed.FeederConfig{
			Logger: fptesting.NewLogger(),
			Ledger: ldg,
			Source: scorefeed.StaticSource{
				{Contributor: alice, Classification: scorefeed.ClassificationMerged},
				{Contributor: bob, Classification: scorefeed.ClassificationMerged},
			},
		})
		require.NoError(t, err)

		// A non-sponsor invoker fails on the first contribution.
		err = feeder.Apply(context.Background(), 1, alice)
		require.ErrorIs(t, err, ledger.ErrUnauthorized)

		c, err := ldg.Campaign(context.Background(), 1)
		require.NoError(t, err)
		require.Zero(t, c.TotalScore)
	})
}
