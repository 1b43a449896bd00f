package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFairplay_Ledger_ProportionalShare(t *testing.T) {
	t.Parallel()

	t.Run("splits the pool proportionally", func(t *testing.T) {
		t.Parallel()

		share, err := proportionalShare(100, 1000, 160)
		require.NoError(t, err)
		require.Equal(t, uint64(625), share)

		share, err = proportionalShare(60, 1000, 160)
		require.NoError(t, err)
		require.Equal(t, uint64(375), share)
	})

	t.Run("rounds down and leaves dust in the vault", func(t *testing.T) {
		t.Parallel()

		// Three equal scores over a pool of 1000 floor to 333 each.
		var paid uint64
		for range 3 {
			share, err := proportionalShare(50, 1000, 150)
			require.NoError(t, err)
			require.Equal(t, uint64(333), share)
			paid += share
		}
		require.Equal(t, uint64(999), paid)
	})

	t.Run("zero score yields zero share", func(t *testing.T) {
		t.Parallel()

		share, err := proportionalShare(0, 1000, 100)
		require.NoError(t, err)
		require.Zero(t, share)
	})

	t.Run("full score and sole contributor takes the whole pool", func(t *testing.T) {
		t.Parallel()

		share, err := proportionalShare(100, 1000, 100)
		require.NoError(t, err)
		require.Equal(t, uint64(1000), share)
	})

	t.Run("zero total score fails", func(t *testing.T) {
		t.Parallel()

		_, err := proportionalShare(50, 1000, 0)
		require.ErrorIs(t, err, ErrNoTotalScore)
	})

	t.Run("score above the maximum fails", func(t *testing.T) {
		t.Parallel()

		_, err := proportionalShare(MaxScore+1, 1000, 200)
		require.ErrorIs(t, err, ErrScoreOutOfRange)
	})

	t.Run("large pools do not overflow", func(t *testing.T) {
		t.Parallel()

		// score*pool overflows uint64; the 128-bit intermediate keeps the
		// result exact.
		pool := uint64(math.MaxUint64 / 2)
		share, err := proportionalShare(100, pool, 200)
		require.NoError(t, err)
		require.Equal(t, pool/2, share)
	})
}
