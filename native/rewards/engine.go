package rewards

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"rewardledger/core/events"
)

// Engine wires the settlement business logic with the ledger, the asset
// gateway, the authorization verifier, and the event/audit surfaces. A single
// mutex serializes every mutating operation so the balance check and the
// ledger commit are linearizable with respect to each other.
type Engine struct {
	mu        sync.Mutex
	ledger    *Ledger
	gateway   TokenGateway
	verifier  Verifier
	journal   *Journal
	emitter   events.Emitter
	metrics   *Metrics
	authority [20]byte
	nowFn     func() time.Time
}

// NewEngine creates a settlement engine with a no-op emitter. Callers
// configure collaborators through the setters before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		metrics: NewMetrics(),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetLedger configures the claim registry backing the engine.
func (e *Engine) SetLedger(ledger *Ledger) { e.ledger = ledger }

// SetGateway configures the asset gateway used to move value.
func (e *Engine) SetGateway(gateway TokenGateway) { e.gateway = gateway }

// SetVerifier configures the claim authorization verifier.
func (e *Engine) SetVerifier(verifier Verifier) { e.verifier = verifier }

// SetJournal configures the append-only settlement journal.
func (e *Engine) SetJournal(journal *Journal) { e.journal = journal }

// SetAuthority configures the designated privileged identity.
func (e *Engine) SetAuthority(addr [20]byte) { e.authority = addr }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() time.Time {
	if e == nil || e.nowFn == nil {
		return time.Now().UTC()
	}
	return e.nowFn()
}

// HasClaimed reports whether the (affiliate, epoch) pair has been settled.
func (e *Engine) HasClaimed(affiliate [20]byte, epoch uint64) (bool, error) {
	if e == nil || e.ledger == nil {
		return false, errNilLedger
	}
	return e.ledger.HasClaimed(affiliate, epoch)
}

// AffiliateTotal returns the cumulative settled amount for an affiliate.
func (e *Engine) AffiliateTotal(affiliate [20]byte) (*big.Int, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	return e.ledger.AffiliateTotal(affiliate)
}

// GlobalTotal returns the cumulative settled amount across all affiliates.
func (e *Engine) GlobalTotal() (*big.Int, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	return e.ledger.GlobalTotal()
}

// BatchDistribute settles an ordered list of (affiliate, amount) pairs for an
// epoch on the operator-driven push path. The batch commits in full or not at
// all: a single already-claimed pair aborts every entry.
func (e *Engine) BatchDistribute(caller [20]byte, epoch uint64, entries []DistributionEntry) (*BatchReceipt, error) {
	if e == nil {
		return nil, errNilLedger
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()
	path := string(PathDistribution)
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if e.gateway == nil {
		return nil, errNilGateway
	}
	if caller != e.authority {
		e.metrics.RecordFailure(path, "unauthorized")
		return nil, ErrUnauthorized
	}
	if len(entries) == 0 {
		e.metrics.RecordFailure(path, "empty_batch")
		return nil, fmt.Errorf("%w: batch is empty", ErrInvalidBatch)
	}
	sum := big.NewInt(0)
	for _, entry := range entries {
		if isZeroAddress(entry.Affiliate) {
			e.metrics.RecordFailure(path, "zero_address")
			return nil, fmt.Errorf("%w: zero affiliate address", ErrInvalidBatch)
		}
		if entry.Amount == nil || entry.Amount.Sign() <= 0 {
			e.metrics.RecordFailure(path, "bad_amount")
			return nil, fmt.Errorf("%w: amounts must be positive", ErrInvalidBatch)
		}
		sum.Add(sum, entry.Amount)
	}
	balance, err := e.gateway.BalanceOf()
	if err != nil {
		return nil, err
	}
	if balance.Cmp(sum) < 0 {
		e.metrics.RecordFailure(path, "insufficient_balance")
		return nil, fmt.Errorf("%w: need %s, custodied %s", ErrInsufficientBalance, sum, balance)
	}

	ref := uuid.NewString()
	at := e.now()
	if err := e.ledger.RecordBatch(epoch, entries, ref, at); err != nil {
		e.metrics.RecordFailure(path, "ledger")
		return nil, err
	}

	// Bookkeeping is committed; external transfers happen strictly after so
	// a reentrant gateway can never observe uncommitted state.
	var failed int
	for _, entry := range entries {
		amount := copyBigInt(entry.Amount)
		if err := e.gateway.Transfer(entry.Affiliate, amount); err != nil {
			failed++
			e.metrics.RecordFailure(path, "transfer")
			e.emit(events.RewardTransferFailed{
				Affiliate: entry.Affiliate,
				Amount:    amount,
				Epoch:     epoch,
				Path:      path,
				Ref:       ref,
				Reason:    err.Error(),
			})
			e.appendAudit(AuditRecord{
				Affiliate:  entry.Affiliate,
				Amount:     amount,
				Epoch:      epoch,
				Path:       PathDistribution,
				Ref:        ref,
				Stranded:   true,
				RecordedAt: at,
			})
			continue
		}
		e.metrics.RecordSettlement(path, amount)
		e.emit(events.RewardSettled{
			Affiliate: entry.Affiliate,
			Amount:    amount,
			Epoch:     epoch,
			Path:      path,
			Ref:       ref,
		})
		e.appendAudit(AuditRecord{
			Affiliate:  entry.Affiliate,
			Amount:     amount,
			Epoch:      epoch,
			Path:       PathDistribution,
			Ref:        ref,
			RecordedAt: at,
		})
	}
	e.publishBalance()
	e.metrics.ObserveLatency(path, e.now().Sub(start))
	if failed > 0 {
		return nil, fmt.Errorf("%w: %d of %d transfers rejected", ErrTransferFailed, failed, len(entries))
	}
	e.emit(events.RewardBatchDistributed{
		Epoch:   epoch,
		Entries: len(entries),
		Total:   sum,
		Ref:     ref,
	})
	return &BatchReceipt{Epoch: epoch, Entries: len(entries), Total: sum, Ref: ref}, nil
}

// Claim settles a single pair on the affiliate-driven pull path. The caller's
// identity is taken to be the claiming affiliate; the signature must bind the
// affiliate, amount, epoch, and this ledger instance.
func (e *Engine) Claim(caller [20]byte, amount *big.Int, epoch uint64, sig []byte) (*ClaimReceipt, error) {
	if e == nil {
		return nil, errNilLedger
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()
	path := string(PathClaim)
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if e.gateway == nil {
		return nil, errNilGateway
	}
	if e.verifier == nil {
		return nil, errNilVerifier
	}
	if amount == nil || amount.Sign() <= 0 {
		e.metrics.RecordFailure(path, "bad_amount")
		return nil, ErrInvalidAmount
	}
	claimed, err := e.ledger.HasClaimed(caller, epoch)
	if err != nil {
		return nil, err
	}
	if claimed {
		e.metrics.RecordFailure(path, "already_claimed")
		return nil, ErrAlreadyClaimed
	}
	if _, err := e.verifier.Verify(caller, amount, epoch, sig); err != nil {
		e.metrics.RecordFailure(path, "signature")
		return nil, err
	}
	balance, err := e.gateway.BalanceOf()
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		e.metrics.RecordFailure(path, "insufficient_balance")
		return nil, fmt.Errorf("%w: need %s, custodied %s", ErrInsufficientBalance, amount, balance)
	}

	ref := uuid.NewString()
	at := e.now()
	settled := copyBigInt(amount)
	if err := e.ledger.RecordSettlement(caller, epoch, settled, PathClaim, ref, at); err != nil {
		e.metrics.RecordFailure(path, "ledger")
		return nil, err
	}
	if err := e.gateway.Transfer(caller, settled); err != nil {
		// The pair stays claimed: state-before-effect is deliberate and the
		// stranded payout is surfaced through the event and the journal.
		e.metrics.RecordFailure(path, "transfer")
		e.emit(events.RewardTransferFailed{
			Affiliate: caller,
			Amount:    settled,
			Epoch:     epoch,
			Path:      path,
			Ref:       ref,
			Reason:    err.Error(),
		})
		e.appendAudit(AuditRecord{
			Affiliate:  caller,
			Amount:     settled,
			Epoch:      epoch,
			Path:       PathClaim,
			Ref:        ref,
			Stranded:   true,
			RecordedAt: at,
		})
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.metrics.RecordSettlement(path, settled)
	e.emit(events.RewardSettled{
		Affiliate: caller,
		Amount:    settled,
		Epoch:     epoch,
		Path:      path,
		Ref:       ref,
	})
	e.appendAudit(AuditRecord{
		Affiliate:  caller,
		Amount:     settled,
		Epoch:      epoch,
		Path:       PathClaim,
		Ref:        ref,
		RecordedAt: at,
	})
	e.publishBalance()
	e.metrics.ObserveLatency(path, e.now().Sub(start))
	return &ClaimReceipt{Affiliate: caller, Epoch: epoch, Amount: settled, Ref: ref}, nil
}

// EmergencyWithdraw transfers custodied funds to the authority without
// touching per-epoch bookkeeping. It is recorded out-of-band in the journal
// because it violates the normal settlement invariants.
func (e *Engine) EmergencyWithdraw(caller [20]byte, amount *big.Int) error {
	if e == nil {
		return errNilGateway
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gateway == nil {
		return errNilGateway
	}
	if caller != e.authority {
		e.metrics.RecordFailure("emergency", "unauthorized")
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	withdrawn := copyBigInt(amount)
	if err := e.gateway.Transfer(e.authority, withdrawn); err != nil {
		e.metrics.RecordFailure("emergency", "transfer")
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	ref := uuid.NewString()
	e.emit(events.RewardEmergencyWithdrawal{Authority: e.authority, Amount: withdrawn, Ref: ref})
	e.appendAudit(AuditRecord{
		Affiliate:  e.authority,
		Amount:     withdrawn,
		Path:       "emergency",
		Ref:        ref,
		Emergency:  true,
		RecordedAt: e.now(),
	})
	e.publishBalance()
	return nil
}

// UpdateAssetReference swaps the asset gateway handle. Authority only.
func (e *Engine) UpdateAssetReference(caller [20]byte, gateway TokenGateway) error {
	if e == nil {
		return errNilGateway
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.authority {
		return ErrUnauthorized
	}
	if gateway == nil {
		return errNilGateway
	}
	e.gateway = gateway
	e.emit(events.RewardGatewayUpdated{Authority: e.authority})
	return nil
}

func (e *Engine) appendAudit(record AuditRecord) {
	if e.journal == nil {
		return
	}
	// Journal writes are best-effort observability; settlement has committed.
	_, _ = e.journal.Append(record)
}

func (e *Engine) publishBalance() {
	if e.gateway == nil {
		return
	}
	if balance, err := e.gateway.BalanceOf(); err == nil {
		e.metrics.SetCustodiedBalance(balance)
	}
}
