package custody

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"aetherpay/internal/address"
	"aetherpay/internal/token"
)

// Bank is an in-memory Custody implementation backed by per-token balance and
// allowance books. It serves local deployments and tests; a chain-backed
// adapter satisfies the same interface in production.
type Bank struct {
	mu         sync.Mutex
	balances   map[string]map[address.Address]*big.Int
	allowances map[string]map[address.Address]map[address.Address]*big.Int
}

func NewBank() *Bank {
	return &Bank{
		balances:   make(map[string]map[address.Address]*big.Int),
		allowances: make(map[string]map[address.Address]map[address.Address]*big.Int),
	}
}

// Mint credits freshly issued balance to an account.
func (b *Bank) Mint(token string, owner address.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(token, owner, amount)
	return nil
}

// Approve grants spender the right to pull up to amount from owner.
func (b *Bank) Approve(token string, owner, spender address.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	book := b.allowances[token]
	if book == nil {
		book = make(map[address.Address]map[address.Address]*big.Int)
		b.allowances[token] = book
	}
	grants := book[owner]
	if grants == nil {
		grants = make(map[address.Address]*big.Int)
		book[owner] = grants
	}
	grants[spender] = new(big.Int).Set(amount)
	return nil
}

func (b *Bank) BalanceOf(_ context.Context, token string, owner address.Address) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balance(token, owner)), nil
}

func (b *Bank) TransferFrom(_ context.Context, tok string, owner, spender, to address.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	allowance := b.allowance(tok, owner, spender)
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s allowance %s < %s", ErrInsufficientAllowance, token.Normalize(tok), allowance, amount)
	}
	if err := b.move(tok, owner, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (b *Bank) Transfer(_ context.Context, tok string, from, to address.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(tok, from, to, amount)
}

func (b *Bank) move(tok string, from, to address.Address, amount *big.Int) error {
	balance := b.balance(tok, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s balance %s < %s", ErrInsufficientBalance, token.Normalize(tok), balance, amount)
	}
	balance.Sub(balance, amount)
	b.credit(tok, to, amount)
	return nil
}

func (b *Bank) credit(token string, owner address.Address, amount *big.Int) {
	book := b.balances[token]
	if book == nil {
		book = make(map[address.Address]*big.Int)
		b.balances[token] = book
	}
	balance := book[owner]
	if balance == nil {
		balance = big.NewInt(0)
		book[owner] = balance
	}
	balance.Add(balance, amount)
}

func (b *Bank) balance(token string, owner address.Address) *big.Int {
	book := b.balances[token]
	if book == nil {
		book = make(map[address.Address]*big.Int)
		b.balances[token] = book
	}
	balance := book[owner]
	if balance == nil {
		balance = big.NewInt(0)
		book[owner] = balance
	}
	return balance
}

func (b *Bank) allowance(token string, owner, spender address.Address) *big.Int {
	book := b.allowances[token]
	if book == nil {
		book = make(map[address.Address]map[address.Address]*big.Int)
		b.allowances[token] = book
	}
	grants := book[owner]
	if grants == nil {
		grants = make(map[address.Address]*big.Int)
		book[owner] = grants
	}
	allowance := grants[spender]
	if allowance == nil {
		allowance = big.NewInt(0)
		grants[spender] = allowance
	}
	return allowance
}
