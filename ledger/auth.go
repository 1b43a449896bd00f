package ledger

import "github.com/gagliardetto/solana-go"

// Operation names the ledger operations for authorization and metrics.
type Operation string

const (
	OpInitializeCampaign Operation = "initialize_campaign"
	OpDeposit            Operation = "deposit"
	OpAssignScore        Operation = "assign_score"
	OpComputeRewardShare Operation = "compute_reward_share"
	OpClaimReward        Operation = "claim_reward"
	OpFinalize           Operation = "finalize"
)

// authorize is the capability check run before any mutation. It is read-only;
// callers abort entirely on failure. The required principal per operation is
// a static table:
//
//	AssignScore, ComputeRewardShare, Finalize  -> sponsor authority
//	Deposit                                    -> sponsor or designated depositor
//	ClaimReward                                -> the contributor identity itself
//
// Signature/credential validation is assumed to have happened upstream; the
// invoker identity passed here is trusted.
func authorize(op Operation, invoker solana.PublicKey, c *Campaign, target *Contributor) error {
	switch op {
	case OpAssignScore, OpComputeRewardShare, OpFinalize:
		if !invoker.Equals(c.Sponsor) {
			return ErrUnauthorized
		}
	case OpDeposit:
		if invoker.Equals(c.Sponsor) {
			return nil
		}
		if !c.Depositor.IsZero() && invoker.Equals(c.Depositor) {
			return nil
		}
		return ErrUnauthorized
	case OpClaimReward:
		if target == nil || !invoker.Equals(target.Identity) {
			return ErrUnauthorized
		}
	default:
		return ErrUnauthorized
	}
	return nil
}
