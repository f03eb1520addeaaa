package rewards

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"rewardledger/storage"
)

func testAddr(b byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = b
	}
	return addr
}

func TestRecordSettlementOnce(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	addr := testAddr(0x01)
	now := time.Unix(1700000000, 0)

	claimed, err := ledger.HasClaimed(addr, 5)
	if err != nil {
		t.Fatalf("has claimed: %v", err)
	}
	if claimed {
		t.Fatalf("pair should start unclaimed")
	}

	if err := ledger.RecordSettlement(addr, 5, big.NewInt(100), PathClaim, "ref-1", now); err != nil {
		t.Fatalf("record: %v", err)
	}
	claimed, _ = ledger.HasClaimed(addr, 5)
	if !claimed {
		t.Fatalf("pair should be claimed after settlement")
	}

	err = ledger.RecordSettlement(addr, 5, big.NewInt(100), PathClaim, "ref-2", now)
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}

	total, _ := ledger.AffiliateTotal(addr)
	if total.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("affiliate total = %s, want 100", total)
	}
}

func TestTotalsStayConsistent(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	now := time.Unix(1700000000, 0)
	addrs := [][20]byte{testAddr(0x01), testAddr(0x02), testAddr(0x03)}
	amounts := []int64{50, 70, 30}
	for i, addr := range addrs {
		if err := ledger.RecordSettlement(addr, uint64(i), big.NewInt(amounts[i]), PathDistribution, "ref", now); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	sum := big.NewInt(0)
	for _, addr := range addrs {
		total, err := ledger.AffiliateTotal(addr)
		if err != nil {
			t.Fatalf("affiliate total: %v", err)
		}
		sum.Add(sum, total)
	}
	global, err := ledger.GlobalTotal()
	if err != nil {
		t.Fatalf("global total: %v", err)
	}
	if global.Cmp(sum) != 0 {
		t.Fatalf("global total %s != sum of affiliate totals %s", global, sum)
	}
}

func TestRecordBatchAllOrNothing(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	now := time.Unix(1700000000, 0)
	x := testAddr(0x0a)
	y := testAddr(0x0b)

	if err := ledger.RecordSettlement(y, 1, big.NewInt(10), PathClaim, "seed", now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	globalBefore, _ := ledger.GlobalTotal()

	entries := []DistributionEntry{
		{Affiliate: x, Amount: big.NewInt(50)},
		{Affiliate: y, Amount: big.NewInt(70)},
	}
	err := ledger.RecordBatch(1, entries, "batch", now)
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	if claimed, _ := ledger.HasClaimed(x, 1); claimed {
		t.Fatalf("x must stay unclaimed after aborted batch")
	}
	globalAfter, _ := ledger.GlobalTotal()
	if globalBefore.Cmp(globalAfter) != 0 {
		t.Fatalf("totals changed by aborted batch: %s -> %s", globalBefore, globalAfter)
	}
}

func TestRecordBatchRejectsDuplicates(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	now := time.Unix(1700000000, 0)
	x := testAddr(0x0c)
	entries := []DistributionEntry{
		{Affiliate: x, Amount: big.NewInt(5)},
		{Affiliate: x, Amount: big.NewInt(7)},
	}
	err := ledger.RecordBatch(2, entries, "batch", now)
	if !errors.Is(err, ErrInvalidBatch) {
		t.Fatalf("expected ErrInvalidBatch, got %v", err)
	}
	if claimed, _ := ledger.HasClaimed(x, 2); claimed {
		t.Fatalf("duplicate batch must not settle anything")
	}
}

type faultyReadDB struct {
	*storage.MemDB
	readErr error
}

func (db *faultyReadDB) Get(key []byte) ([]byte, error) {
	if db.readErr != nil {
		return nil, db.readErr
	}
	return db.MemDB.Get(key)
}

func TestTotalsSurfaceReadFailures(t *testing.T) {
	db := &faultyReadDB{MemDB: storage.NewMemDB()}
	ledger := NewLedger(db)
	addr := testAddr(0x0e)
	now := time.Unix(1700000000, 0)
	if err := ledger.RecordSettlement(addr, 4, big.NewInt(60), PathClaim, "ref", now); err != nil {
		t.Fatalf("record: %v", err)
	}

	db.readErr = errors.New("disk read failed")

	// A failing store must not masquerade as a zero total or an absent record.
	if _, err := ledger.AffiliateTotal(addr); !errors.Is(err, db.readErr) {
		t.Fatalf("affiliate total error = %v, want propagated read failure", err)
	}
	if _, err := ledger.GlobalTotal(); !errors.Is(err, db.readErr) {
		t.Fatalf("global total error = %v, want propagated read failure", err)
	}
	if _, _, err := ledger.Get(addr, 4); !errors.Is(err, db.readErr) {
		t.Fatalf("get error = %v, want propagated read failure", err)
	}

	db.readErr = nil
	total, err := ledger.AffiliateTotal(addr)
	if err != nil {
		t.Fatalf("affiliate total after recovery: %v", err)
	}
	if total.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("affiliate total = %s, want 60", total)
	}
}

func TestGetReturnsImmutableRecord(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	addr := testAddr(0x0d)
	now := time.Unix(1700000000, 0)
	if err := ledger.RecordSettlement(addr, 9, big.NewInt(42), PathDistribution, "ref-x", now); err != nil {
		t.Fatalf("record: %v", err)
	}
	record, ok, err := ledger.Get(addr, 9)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if record.Path != PathDistribution || record.Ref != "ref-x" {
		t.Fatalf("unexpected record %+v", record)
	}
	record.Amount.SetInt64(0)
	again, _, _ := ledger.Get(addr, 9)
	if again.Amount.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("ledger state mutated through returned record")
	}
}
