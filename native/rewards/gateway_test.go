package rewards

import (
	"math/big"
	"testing"

	"rewardledger/storage"
)

func TestVaultGatewayFundAndTransfer(t *testing.T) {
	vault := NewVaultGateway(storage.NewMemDB())
	if err := vault.Fund(big.NewInt(100)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	recipient := testAddr(0x91)
	if err := vault.Transfer(recipient, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	balance, err := vault.BalanceOf()
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("balance = %s, want 60", balance)
	}
	paid, err := vault.PaidTo(recipient)
	if err != nil {
		t.Fatalf("paid to: %v", err)
	}
	if paid.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("paid = %s, want 40", paid)
	}
}

func TestVaultGatewayRejectsOverdraft(t *testing.T) {
	vault := NewVaultGateway(storage.NewMemDB())
	if err := vault.Fund(big.NewInt(10)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := vault.Transfer(testAddr(0x92), big.NewInt(11)); err == nil {
		t.Fatalf("expected overdraft to fail")
	}
	balance, _ := vault.BalanceOf()
	if balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("failed transfer must not move funds, balance = %s", balance)
	}
}
