package custody

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"aetherpay/internal/address"
)

func addr(b byte) address.Address {
	var a address.Address
	a[0] = b
	return a
}

func TestTransferFromRequiresAllowance(t *testing.T) {
	ctx := context.Background()
	bank := NewBank()
	owner, spender, vault := addr(1), addr(2), addr(3)

	if err := bank.Mint("USDC", owner, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	err := bank.TransferFrom(ctx, "USDC", owner, spender, vault, big.NewInt(100))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected allowance error, got %v", err)
	}

	if err := bank.Approve("USDC", owner, spender, big.NewInt(150)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := bank.TransferFrom(ctx, "USDC", owner, spender, vault, big.NewInt(100)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}

	// Allowance is consumed, not reset.
	err = bank.TransferFrom(ctx, "USDC", owner, spender, vault, big.NewInt(100))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected allowance exhaustion, got %v", err)
	}

	balance, err := bank.BalanceOf(ctx, "USDC", vault)
	if err != nil {
		t.Fatalf("balance of: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("vault balance: expected 100, got %s", balance)
	}
}

func TestTransferRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	bank := NewBank()
	from, to := addr(4), addr(5)

	if err := bank.Mint("ETH", from, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := bank.Transfer(ctx, "ETH", from, to, big.NewInt(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected balance error, got %v", err)
	}
	balance, _ := bank.BalanceOf(ctx, "ETH", from)
	if balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("failed transfer mutated balance: %s", balance)
	}

	if err := bank.Transfer(ctx, "ETH", from, to, big.NewInt(10)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	balance, _ = bank.BalanceOf(ctx, "ETH", to)
	if balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("recipient balance: expected 10, got %s", balance)
	}
}

func TestAmountValidation(t *testing.T) {
	ctx := context.Background()
	bank := NewBank()
	if err := bank.Mint("USDC", addr(1), big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount on zero mint, got %v", err)
	}
	if err := bank.Transfer(ctx, "USDC", addr(1), addr(2), nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount on nil transfer, got %v", err)
	}
}
