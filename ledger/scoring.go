package ledger

import (
	"fmt"
	"math/bits"
)

// proportionalShare computes floor(score * pool / totalScore) with a 128-bit
// intermediate product. Multiplying before dividing preserves precision;
// truncation means the sum of all shares may fall short of the pool by
// rounding dust, which stays in the vault and is never claimable.
func proportionalShare(score, pool, totalScore uint64) (uint64, error) {
	if totalScore == 0 {
		return 0, ErrNoTotalScore
	}
	if score > MaxScore {
		return 0, ErrScoreOutOfRange
	}

	hi, lo := bits.Mul64(score, pool)
	// The quotient fits in 64 bits whenever totalScore >= score, which the
	// ledger guarantees because totalScore includes this contributor's score.
	if hi >= totalScore {
		return 0, fmt.Errorf("reward share overflows uint64: score=%d pool=%d total=%d", score, pool, totalScore)
	}
	quo, _ := bits.Div64(hi, lo, totalScore)
	return quo, nil
}
