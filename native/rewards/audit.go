package rewards

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"rewardledger/storage"
)

const (
	auditSeqKey          = "rewards/audit/seq"
	auditEntryKeyFormat  = "rewards/audit/%020d"
	defaultAuditPageSize = 200
)

// AuditRecord is one append-only line of the settlement journal. Emergency
// withdrawals are recorded here precisely because they bypass the normal
// bookkeeping.
type AuditRecord struct {
	Seq        uint64
	Affiliate  [20]byte
	Amount     *big.Int
	Epoch      uint64
	Path       SettlementPath
	Ref        string
	Emergency  bool
	Stranded   bool
	RecordedAt time.Time
}

type storedAuditRecord struct {
	Seq        uint64
	Affiliate  []byte
	Amount     []byte
	Epoch      uint64
	Path       string
	Ref        string
	Emergency  bool
	Stranded   bool
	RecordedAt uint64
}

// Journal persists the externally observable settlement history.
type Journal struct {
	db storage.Database
	mu sync.Mutex
}

// NewJournal constructs a journal backed by the supplied key-value store.
func NewJournal(db storage.Database) *Journal {
	return &Journal{db: db}
}

// Append writes the record with the next sequence number and returns it.
func (j *Journal) Append(record AuditRecord) (uint64, error) {
	if j == nil || j.db == nil {
		return 0, errors.New("rewards: journal not initialised")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	head, err := j.headLocked()
	if err != nil {
		return 0, err
	}
	seq := head + 1
	record.Seq = seq
	encoded, err := rlp.EncodeToBytes(storedAuditRecord{
		Seq:        record.Seq,
		Affiliate:  append([]byte(nil), record.Affiliate[:]...),
		Amount:     copyBigInt(record.Amount).Bytes(),
		Epoch:      record.Epoch,
		Path:       string(record.Path),
		Ref:        record.Ref,
		Emergency:  record.Emergency,
		Stranded:   record.Stranded,
		RecordedAt: uint64(record.RecordedAt.UTC().Unix()),
	})
	if err != nil {
		return 0, err
	}
	if err := j.db.Put([]byte(fmt.Sprintf(auditEntryKeyFormat, seq)), encoded); err != nil {
		return 0, err
	}
	if err := j.db.Put([]byte(auditSeqKey), new(big.Int).SetUint64(seq).Bytes()); err != nil {
		return 0, err
	}
	return seq, nil
}

// List returns up to limit records starting at fromSeq (1-based; 0 starts at
// the beginning) together with the cursor for the next page, or 0 when the
// journal is exhausted.
func (j *Journal) List(fromSeq uint64, limit int) ([]*AuditRecord, uint64, error) {
	if j == nil || j.db == nil {
		return nil, 0, errors.New("rewards: journal not initialised")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	head, err := j.headLocked()
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = defaultAuditPageSize
	}
	if fromSeq == 0 {
		fromSeq = 1
	}
	records := make([]*AuditRecord, 0, limit)
	seq := fromSeq
	for ; seq <= head && len(records) < limit; seq++ {
		data, err := j.db.Get([]byte(fmt.Sprintf(auditEntryKeyFormat, seq)))
		if err != nil {
			return nil, 0, err
		}
		var stored storedAuditRecord
		if err := rlp.DecodeBytes(data, &stored); err != nil {
			return nil, 0, err
		}
		record := &AuditRecord{
			Seq:        stored.Seq,
			Epoch:      stored.Epoch,
			Path:       SettlementPath(stored.Path),
			Ref:        stored.Ref,
			Emergency:  stored.Emergency,
			Stranded:   stored.Stranded,
			RecordedAt: time.Unix(int64(stored.RecordedAt), 0).UTC(),
		}
		copy(record.Affiliate[:], stored.Affiliate)
		if len(stored.Amount) == 0 {
			record.Amount = big.NewInt(0)
		} else {
			record.Amount = new(big.Int).SetBytes(stored.Amount)
		}
		records = append(records, record)
	}
	next := uint64(0)
	if seq <= head {
		next = seq
	}
	return records, next, nil
}

func (j *Journal) headLocked() (uint64, error) {
	present, err := j.db.Has([]byte(auditSeqKey))
	if err != nil {
		return 0, err
	}
	if !present {
		return 0, nil
	}
	data, err := j.db.Get([]byte(auditSeqKey))
	if err != nil {
		return 0, err
	}
	return new(big.Int).SetBytes(data).Uint64(), nil
}
