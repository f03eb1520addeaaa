package rewards

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"rewardledger/storage"
)

const (
	claimKeyFormat = "rewards/claims/%020d/%s"
	totalKeyFormat = "rewards/totals/%s"
	globalTotalKey = "rewards/totals/global"
)

// Ledger is the authoritative record of which (affiliate, epoch) pairs have
// been settled, together with per-affiliate and global running totals. Its
// RecordSettlement primitive is the serialization point both distribution
// paths funnel through.
type Ledger struct {
	db storage.Database
	mu sync.RWMutex
}

// NewLedger constructs a ledger backed by the supplied key-value store.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

type storedSettlement struct {
	Affiliate []byte
	Epoch     uint64
	Amount    []byte
	Path      string
	Ref       string
	SettledAt uint64
}

func claimKey(affiliate [20]byte, epoch uint64) []byte {
	return []byte(fmt.Sprintf(claimKeyFormat, epoch, hex.EncodeToString(affiliate[:])))
}

func totalKey(affiliate [20]byte) []byte {
	return []byte(fmt.Sprintf(totalKeyFormat, hex.EncodeToString(affiliate[:])))
}

// HasClaimed reports whether the pair has been settled. Reads never block
// writers beyond the ledger's read lock.
func (l *Ledger) HasClaimed(affiliate [20]byte, epoch uint64) (bool, error) {
	if l == nil || l.db == nil {
		return false, errors.New("rewards: ledger not initialised")
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.db.Has(claimKey(affiliate, epoch))
}

// Get retrieves the settlement record for a pair if present.
func (l *Ledger) Get(affiliate [20]byte, epoch uint64) (*SettlementRecord, bool, error) {
	if l == nil || l.db == nil {
		return nil, false, errors.New("rewards: ledger not initialised")
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getLocked(affiliate, epoch)
}

func (l *Ledger) getLocked(affiliate [20]byte, epoch uint64) (*SettlementRecord, bool, error) {
	key := claimKey(affiliate, epoch)
	present, err := l.db.Has(key)
	if err != nil {
		return nil, false, err
	}
	if !present {
		return nil, false, nil
	}
	data, err := l.db.Get(key)
	if err != nil {
		return nil, false, err
	}
	var stored storedSettlement
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, err
	}
	record := &SettlementRecord{
		Epoch:     stored.Epoch,
		Path:      SettlementPath(stored.Path),
		Ref:       stored.Ref,
		SettledAt: time.Unix(int64(stored.SettledAt), 0).UTC(),
	}
	copy(record.Affiliate[:], stored.Affiliate)
	if len(stored.Amount) == 0 {
		record.Amount = big.NewInt(0)
	} else {
		record.Amount = new(big.Int).SetBytes(stored.Amount)
	}
	return record, true, nil
}

// AffiliateTotal returns the cumulative settled amount for an affiliate.
func (l *Ledger) AffiliateTotal(affiliate [20]byte) (*big.Int, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("rewards: ledger not initialised")
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.readTotal(totalKey(affiliate))
}

// GlobalTotal returns the cumulative settled amount across all affiliates.
func (l *Ledger) GlobalTotal() (*big.Int, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("rewards: ledger not initialised")
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.readTotal([]byte(globalTotalKey))
}

func (l *Ledger) readTotal(key []byte) (*big.Int, error) {
	present, err := l.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !present {
		return big.NewInt(0), nil
	}
	data, err := l.db.Get(key)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(data), nil
}

func (l *Ledger) writeTotal(key []byte, value *big.Int) error {
	return l.db.Put(key, value.Bytes())
}

// RecordSettlement transitions the pair from unclaimed to claimed and
// increments both totals. It fails with ErrAlreadyClaimed when the pair is
// settled; no intermediate state is observable to any other operation.
func (l *Ledger) RecordSettlement(affiliate [20]byte, epoch uint64, amount *big.Int, path SettlementPath, ref string, at time.Time) error {
	if l == nil || l.db == nil {
		return errors.New("rewards: ledger not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	claimed, err := l.db.Has(claimKey(affiliate, epoch))
	if err != nil {
		return err
	}
	if claimed {
		return ErrAlreadyClaimed
	}
	return l.applyLocked(affiliate, epoch, amount, path, ref, at)
}

// RecordBatch settles every entry of a push batch or none of them. Every pair
// is validated, including duplicates inside the batch itself, before the
// first write.
func (l *Ledger) RecordBatch(epoch uint64, entries []DistributionEntry, ref string, at time.Time) error {
	if l == nil || l.db == nil {
		return errors.New("rewards: ledger not initialised")
	}
	if len(entries) == 0 {
		return ErrInvalidBatch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[[20]byte]struct{}, len(entries))
	for _, entry := range entries {
		if entry.Amount == nil || entry.Amount.Sign() <= 0 {
			return ErrInvalidBatch
		}
		if _, dup := seen[entry.Affiliate]; dup {
			return fmt.Errorf("%w: duplicate affiliate %s", ErrInvalidBatch, hex.EncodeToString(entry.Affiliate[:]))
		}
		seen[entry.Affiliate] = struct{}{}
		claimed, err := l.db.Has(claimKey(entry.Affiliate, epoch))
		if err != nil {
			return err
		}
		if claimed {
			return fmt.Errorf("%w: affiliate %s epoch %d", ErrAlreadyClaimed, hex.EncodeToString(entry.Affiliate[:]), epoch)
		}
	}
	for _, entry := range entries {
		if err := l.applyLocked(entry.Affiliate, epoch, entry.Amount, PathDistribution, ref, at); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) applyLocked(affiliate [20]byte, epoch uint64, amount *big.Int, path SettlementPath, ref string, at time.Time) error {
	encoded, err := rlp.EncodeToBytes(storedSettlement{
		Affiliate: append([]byte(nil), affiliate[:]...),
		Epoch:     epoch,
		Amount:    amount.Bytes(),
		Path:      string(path),
		Ref:       ref,
		SettledAt: uint64(at.UTC().Unix()),
	})
	if err != nil {
		return err
	}
	if err := l.db.Put(claimKey(affiliate, epoch), encoded); err != nil {
		return err
	}
	affiliateTotal, err := l.readTotal(totalKey(affiliate))
	if err != nil {
		return err
	}
	if err := l.writeTotal(totalKey(affiliate), new(big.Int).Add(affiliateTotal, amount)); err != nil {
		return err
	}
	globalTotal, err := l.readTotal([]byte(globalTotalKey))
	if err != nil {
		return err
	}
	return l.writeTotal([]byte(globalTotalKey), new(big.Int).Add(globalTotal, amount))
}
