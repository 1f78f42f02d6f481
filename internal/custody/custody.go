package custody

import (
	"context"
	"errors"
	"math/big"

	"aetherpay/internal/address"
)

var (
	ErrInsufficientBalance   = errors.New("custody: insufficient balance")
	ErrInsufficientAllowance = errors.New("custody: insufficient allowance")
	ErrInvalidAmount         = errors.New("custody: amount must be positive")
)

// Custody is the token custody collaborator. TransferFrom requires a
// pre-existing allowance from the owner to the caller-side spender; every
// failure propagates verbatim to the calling operation.
type Custody interface {
	BalanceOf(ctx context.Context, token string, owner address.Address) (*big.Int, error)
	TransferFrom(ctx context.Context, token string, owner, spender, to address.Address, amount *big.Int) error
	Transfer(ctx context.Context, token string, from, to address.Address, amount *big.Int) error
}
