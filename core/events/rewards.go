package events

import "math/big"

const (
	// TypeRewardSettled is emitted once per affiliate whenever a settlement
	// commits, on either distribution path.
	TypeRewardSettled = "rewards.settled"
	// TypeRewardBatchDistributed summarises a completed push-path batch.
	TypeRewardBatchDistributed = "rewards.batch_distributed"
	// TypeRewardTransferFailed marks a settlement whose ledger commit
	// succeeded but whose asset transfer did not.
	TypeRewardTransferFailed = "rewards.transfer_failed"
	// TypeRewardEmergencyWithdrawal records an authority withdrawal that
	// bypassed per-epoch bookkeeping.
	TypeRewardEmergencyWithdrawal = "rewards.emergency_withdrawal"
	// TypeRewardGatewayUpdated records an asset gateway replacement.
	TypeRewardGatewayUpdated = "rewards.gateway_updated"
)

// RewardSettled captures a committed settlement for a single affiliate.
type RewardSettled struct {
	Affiliate [20]byte
	Amount    *big.Int
	Epoch     uint64
	Path      string
	Ref       string
}

func (RewardSettled) EventType() string { return TypeRewardSettled }

// RewardBatchDistributed summarises a push-path batch after every entry has
// been committed.
type RewardBatchDistributed struct {
	Epoch   uint64
	Entries int
	Total   *big.Int
	Ref     string
}

func (RewardBatchDistributed) EventType() string { return TypeRewardBatchDistributed }

// RewardTransferFailed flags an affiliate whose payout is stranded: the claim
// record is committed but the gateway rejected the transfer.
type RewardTransferFailed struct {
	Affiliate [20]byte
	Amount    *big.Int
	Epoch     uint64
	Path      string
	Ref       string
	Reason    string
}

func (RewardTransferFailed) EventType() string { return TypeRewardTransferFailed }

// RewardEmergencyWithdrawal records the privileged escape hatch. It is emitted
// precisely because the operation violates the normal settlement invariants.
type RewardEmergencyWithdrawal struct {
	Authority [20]byte
	Amount    *big.Int
	Ref       string
}

func (RewardEmergencyWithdrawal) EventType() string { return TypeRewardEmergencyWithdrawal }

// RewardGatewayUpdated records an administrative swap of the asset gateway
// handle.
type RewardGatewayUpdated struct {
	Authority [20]byte
}

func (RewardGatewayUpdated) EventType() string { return TypeRewardGatewayUpdated }
