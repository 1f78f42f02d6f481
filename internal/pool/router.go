package pool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"aetherpay/internal/address"
	"aetherpay/internal/custody"
	"aetherpay/internal/models"
	"aetherpay/internal/token"
)

var (
	ErrPoolNotFound  = errors.New("pool: no pool registered for pair")
	ErrPoolExists    = errors.New("pool: pair already registered")
	ErrNoLiquidity   = errors.New("pool: insufficient reserve")
	ErrInvalidRate   = errors.New("pool: rate must be positive")
	ErrInvalidAmount = errors.New("pool: amount must be positive")
	ErrFeeOutOfRange = errors.New("pool: fee bps out of range")
)

// liquidityPool pairs a custody account with its reserve bookkeeping. Reserve
// mutations happen under the pool lock, atomically with the quote, so
// reserves never go negative and unrelated pools proceed concurrently.
type liquidityPool struct {
	mu      sync.Mutex
	account address.Address
	reserve models.PoolReserve
}

func (p *liquidityPool) reserveOf(symbol string) *big.Int {
	if token.Normalize(symbol) == p.reserve.TokenA {
		return p.reserve.ReserveA
	}
	return p.reserve.ReserveB
}

// Router owns the per-pair liquidity pools and converts payment-token amounts
// into settlement-token amounts at the caller-supplied oracle rate minus the
// pool fee.
type Router struct {
	mu       sync.RWMutex
	pools    map[string]*liquidityPool
	registry *token.Registry
	custody  custody.Custody
	log      *zap.Logger
}

func NewRouter(registry *token.Registry, cust custody.Custody, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		pools:    make(map[string]*liquidityPool),
		registry: registry,
		custody:  cust,
		log:      log,
	}
}

// pairKey canonicalises the pair so both orientations resolve the same pool.
func pairKey(a, b string) string {
	a, b = token.Normalize(a), token.Normalize(b)
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// RegisterPool wires a funded custody account as the liquidity source for a
// pair. Governance-gated; one pool per pair key.
func (r *Router) RegisterPool(account address.Address, reserve models.PoolReserve) error {
	reserve.TokenA = token.Normalize(reserve.TokenA)
	reserve.TokenB = token.Normalize(reserve.TokenB)
	if !r.registry.Supported(reserve.TokenA) || !r.registry.Supported(reserve.TokenB) {
		return fmt.Errorf("%w: %s/%s", token.ErrUnsupportedToken, reserve.TokenA, reserve.TokenB)
	}
	if reserve.FeeBps > 10_000 {
		return fmt.Errorf("%w: %d", ErrFeeOutOfRange, reserve.FeeBps)
	}
	if reserve.ReserveA == nil || reserve.ReserveA.Sign() < 0 || reserve.ReserveB == nil || reserve.ReserveB.Sign() < 0 {
		return fmt.Errorf("pool: reserves must be non-negative")
	}
	key := pairKey(reserve.TokenA, reserve.TokenB)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[key]; ok {
		return fmt.Errorf("%w: %s", ErrPoolExists, key)
	}
	r.pools[key] = &liquidityPool{account: account, reserve: reserve.Clone()}
	return nil
}

// Reserves returns a snapshot of the pool backing the pair.
func (r *Router) Reserves(tokenA, tokenB string) (models.PoolReserve, error) {
	pool, err := r.pool(tokenA, tokenB)
	if err != nil {
		return models.PoolReserve{}, err
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return pool.reserve.Clone(), nil
}

func (r *Router) pool(tokenA, tokenB string) (*liquidityPool, error) {
	key := pairKey(tokenA, tokenB)
	r.mu.RLock()
	pool, ok := r.pools[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, key)
	}
	return pool, nil
}

// amountOut computes floor(amountIn * rate * 10^(decOut-decIn) * (1-fee)).
func (r *Router) amountOut(paymentToken, settlementToken string, amountIn *big.Int, rate *big.Rat, feeBps uint32) (*big.Int, error) {
	in, err := r.registry.Resolve(paymentToken)
	if err != nil {
		return nil, err
	}
	out, err := r.registry.Resolve(settlementToken)
	if err != nil {
		return nil, err
	}
	gross := new(big.Rat).SetInt(amountIn)
	gross.Mul(gross, rate)
	gross.Mul(gross, decimalShift(in.Decimals, out.Decimals))
	gross.Mul(gross, big.NewRat(int64(10_000-feeBps), 10_000))
	return new(big.Int).Quo(gross.Num(), gross.Denom()), nil
}

func decimalShift(in, out uint8) *big.Rat {
	pow := func(n uint8) *big.Int {
		return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	}
	return new(big.Rat).SetFrac(pow(out), pow(in))
}

// Quote previews a conversion without moving funds or touching reserves. The
// ledger uses it to reject unfundable payments before any token is pulled.
func (r *Router) Quote(paymentToken, settlementToken string, amountIn *big.Int, rate *big.Rat) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if rate == nil || rate.Sign() <= 0 {
		return nil, ErrInvalidRate
	}
	pool, err := r.pool(paymentToken, settlementToken)
	if err != nil {
		return nil, err
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()
	out, err := r.amountOut(paymentToken, settlementToken, amountIn, rate, pool.reserve.FeeBps)
	if err != nil {
		return nil, err
	}
	if pool.reserveOf(settlementToken).Cmp(out) < 0 {
		return nil, fmt.Errorf("%w: need %s %s", ErrNoLiquidity, out, token.Normalize(settlementToken))
	}
	return out, nil
}

// Convert swaps amountIn of the payment token held by holder into the
// settlement token at the supplied rate. The custody transfers and the
// reserve update commit together under the pool lock.
func (r *Router) Convert(ctx context.Context, holder address.Address, paymentToken, settlementToken string, amountIn *big.Int, rate *big.Rat) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if rate == nil || rate.Sign() <= 0 {
		return nil, ErrInvalidRate
	}
	pool, err := r.pool(paymentToken, settlementToken)
	if err != nil {
		return nil, err
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()

	out, err := r.amountOut(paymentToken, settlementToken, amountIn, rate, pool.reserve.FeeBps)
	if err != nil {
		return nil, err
	}
	reserveOut := pool.reserveOf(settlementToken)
	if reserveOut.Cmp(out) < 0 {
		return nil, fmt.Errorf("%w: need %s %s", ErrNoLiquidity, out, token.Normalize(settlementToken))
	}

	if err := r.custody.Transfer(ctx, paymentToken, holder, pool.account, amountIn); err != nil {
		return nil, fmt.Errorf("pool: inbound leg: %w", err)
	}
	if err := r.custody.Transfer(ctx, settlementToken, pool.account, holder, out); err != nil {
		if undo := r.custody.Transfer(ctx, paymentToken, pool.account, holder, amountIn); undo != nil {
			r.log.Error("conversion rollback failed",
				zap.String("pair", pairKey(paymentToken, settlementToken)),
				zap.Error(undo),
			)
		}
		return nil, fmt.Errorf("pool: outbound leg: %w", err)
	}

	pool.reserveOf(paymentToken).Add(pool.reserveOf(paymentToken), amountIn)
	reserveOut.Sub(reserveOut, out)
	return out, nil
}

// Reverse exactly undoes a prior conversion during a refund: the holder
// returns amountOut of the settlement token and receives back amountIn of the
// payment token, and the reserves are restored to their prior values.
func (r *Router) Reverse(ctx context.Context, holder address.Address, paymentToken, settlementToken string, amountIn, amountOut *big.Int) error {
	if amountIn == nil || amountIn.Sign() <= 0 || amountOut == nil || amountOut.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, err := r.pool(paymentToken, settlementToken)
	if err != nil {
		return err
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()

	reserveIn := pool.reserveOf(paymentToken)
	if reserveIn.Cmp(amountIn) < 0 {
		return fmt.Errorf("%w: need %s %s", ErrNoLiquidity, amountIn, token.Normalize(paymentToken))
	}

	if err := r.custody.Transfer(ctx, settlementToken, holder, pool.account, amountOut); err != nil {
		return fmt.Errorf("pool: reverse inbound leg: %w", err)
	}
	if err := r.custody.Transfer(ctx, paymentToken, pool.account, holder, amountIn); err != nil {
		if undo := r.custody.Transfer(ctx, settlementToken, pool.account, holder, amountOut); undo != nil {
			r.log.Error("reverse rollback failed",
				zap.String("pair", pairKey(paymentToken, settlementToken)),
				zap.Error(undo),
			)
		}
		return fmt.Errorf("pool: reverse outbound leg: %w", err)
	}

	reserveIn.Sub(reserveIn, amountIn)
	pool.reserveOf(settlementToken).Add(pool.reserveOf(settlementToken), amountOut)
	return nil
}

// Pairs lists the registered pair keys.
func (r *Router) Pairs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.pools))
	for key := range r.pools {
		out = append(out, key)
	}
	return out
}
