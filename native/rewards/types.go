package rewards

import (
	"math/big"
	"time"
)

// SettlementPath identifies which distribution path committed a settlement.
type SettlementPath string

const (
	// PathDistribution marks the operator-driven push path.
	PathDistribution SettlementPath = "distribution"
	// PathClaim marks the affiliate-driven pull path.
	PathClaim SettlementPath = "claim"
)

// DistributionEntry is a single (affiliate, amount) pair inside a push batch.
type DistributionEntry struct {
	Affiliate [20]byte
	Amount    *big.Int
}

// SettlementRecord is the persisted state for a settled (affiliate, epoch)
// pair. Once written it is immutable.
type SettlementRecord struct {
	Affiliate [20]byte
	Epoch     uint64
	Amount    *big.Int
	Path      SettlementPath
	Ref       string
	SettledAt time.Time
}

// Clone creates a deep copy so callers cannot mutate ledger state.
func (r *SettlementRecord) Clone() *SettlementRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Amount != nil {
		out.Amount = new(big.Int).Set(r.Amount)
	}
	return &out
}

// BatchReceipt summarises a successful push-path distribution.
type BatchReceipt struct {
	Epoch   uint64
	Entries int
	Total   *big.Int
	Ref     string
}

// ClaimReceipt summarises a successful pull-path claim.
type ClaimReceipt struct {
	Affiliate [20]byte
	Epoch     uint64
	Amount    *big.Int
	Ref       string
}

func copyBigInt(value *big.Int) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(value)
}

func isZeroAddress(addr [20]byte) bool {
	for _, b := range addr {
		if b != 0 {
			return false
		}
	}
	return true
}
