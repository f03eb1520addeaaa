package rewards

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"rewardledger/storage"
)

const (
	vaultBalanceKey = "rewards/vault/balance"
	vaultPaidKeyFmt = "rewards/vault/paid/%s"
)

// TokenGateway moves the reward asset. The engine depends only on this
// contract, never on how the asset itself is implemented or moved.
type TokenGateway interface {
	Transfer(to [20]byte, amount *big.Int) error
	BalanceOf() (*big.Int, error)
}

// VaultGateway is a key-value backed gateway adapter holding the custodied
// balance locally. It backs the operator CLI and tests; production
// deployments plug in an adapter for the external asset ledger instead.
type VaultGateway struct {
	db storage.Database
	mu sync.Mutex
}

// NewVaultGateway constructs a gateway over the supplied store.
func NewVaultGateway(db storage.Database) *VaultGateway {
	return &VaultGateway{db: db}
}

// Fund credits the custodied balance.
func (g *VaultGateway) Fund(amount *big.Int) error {
	if g == nil || g.db == nil {
		return errors.New("rewards: vault gateway not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	balance, err := g.readLocked(vaultBalanceKey)
	if err != nil {
		return err
	}
	return g.db.Put([]byte(vaultBalanceKey), new(big.Int).Add(balance, amount).Bytes())
}

// Transfer debits the custodied balance and accrues the recipient's paid-out
// meter. It fails without side effects when the balance cannot cover the
// amount.
func (g *VaultGateway) Transfer(to [20]byte, amount *big.Int) error {
	if g == nil || g.db == nil {
		return errors.New("rewards: vault gateway not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	balance, err := g.readLocked(vaultBalanceKey)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("rewards: vault balance %s cannot cover %s", balance, amount)
	}
	if err := g.db.Put([]byte(vaultBalanceKey), new(big.Int).Sub(balance, amount).Bytes()); err != nil {
		return err
	}
	paidKey := fmt.Sprintf(vaultPaidKeyFmt, hex.EncodeToString(to[:]))
	paid, err := g.readLocked(paidKey)
	if err != nil {
		return err
	}
	return g.db.Put([]byte(paidKey), new(big.Int).Add(paid, amount).Bytes())
}

// BalanceOf returns the custodied balance.
func (g *VaultGateway) BalanceOf() (*big.Int, error) {
	if g == nil || g.db == nil {
		return nil, errors.New("rewards: vault gateway not initialised")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readLocked(vaultBalanceKey)
}

// PaidTo returns the cumulative amount the vault has transferred to an
// address.
func (g *VaultGateway) PaidTo(addr [20]byte) (*big.Int, error) {
	if g == nil || g.db == nil {
		return nil, errors.New("rewards: vault gateway not initialised")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readLocked(fmt.Sprintf(vaultPaidKeyFmt, hex.EncodeToString(addr[:])))
}

func (g *VaultGateway) readLocked(key string) (*big.Int, error) {
	present, err := g.db.Has([]byte(key))
	if err != nil {
		return nil, err
	}
	if !present {
		return big.NewInt(0), nil
	}
	data, err := g.db.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(data), nil
}
