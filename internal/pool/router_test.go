package pool

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"go.uber.org/zap"

	"aetherpay/internal/address"
	"aetherpay/internal/custody"
	"aetherpay/internal/models"
	"aetherpay/internal/token"
)

func addr(b byte) address.Address {
	var a address.Address
	a[0] = b
	return a
}

func newTestRouter(t *testing.T) (*Router, *custody.Bank, address.Address, address.Address) {
	t.Helper()
	registry, err := token.NewRegistry(
		token.Token{Symbol: "USDC", Decimals: 6},
		token.Token{Symbol: "DAI", Decimals: 6},
		token.Token{Symbol: "ETH", Decimals: 18},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	bank := custody.NewBank()
	router := NewRouter(registry, bank, zap.NewNop())
	poolAcct, holder := addr(10), addr(20)
	return router, bank, poolAcct, holder
}

func TestConvertAppliesRateAndFee(t *testing.T) {
	ctx := context.Background()
	router, bank, poolAcct, holder := newTestRouter(t)

	// 1 DAI = 0.5 USDC, 30 bps pool fee, both 6 decimals.
	if err := bank.Mint("USDC", poolAcct, big.NewInt(1_000_000000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := router.RegisterPool(poolAcct, models.PoolReserve{
		TokenA: "DAI", TokenB: "USDC",
		ReserveA: big.NewInt(0), ReserveB: big.NewInt(1_000_000000),
		FeeBps: 30,
	})
	if err != nil {
		t.Fatalf("register pool: %v", err)
	}
	if err := bank.Mint("DAI", holder, big.NewInt(100_000000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	out, err := router.Convert(ctx, holder, "DAI", "USDC", big.NewInt(100_000000), big.NewRat(1, 2))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	// 100 * 0.5 * 0.997 = 49.85
	if out.Cmp(big.NewInt(49_850000)) != 0 {
		t.Fatalf("amount out: expected 49.85, got %s", out)
	}

	reserve, err := router.Reserves("DAI", "USDC")
	if err != nil {
		t.Fatalf("reserves: %v", err)
	}
	if reserve.ReserveA.Cmp(big.NewInt(100_000000)) != 0 {
		t.Fatalf("reserve in: expected 100, got %s", reserve.ReserveA)
	}
	if reserve.ReserveB.Cmp(big.NewInt(950_150000)) != 0 {
		t.Fatalf("reserve out: expected 950.15, got %s", reserve.ReserveB)
	}

	balance, _ := bank.BalanceOf(ctx, "USDC", holder)
	if balance.Cmp(out) != 0 {
		t.Fatalf("holder USDC: expected %s, got %s", out, balance)
	}
}

func TestConvertScalesDecimals(t *testing.T) {
	ctx := context.Background()
	router, bank, poolAcct, holder := newTestRouter(t)

	if err := bank.Mint("USDC", poolAcct, big.NewInt(10_000_000000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := router.RegisterPool(poolAcct, models.PoolReserve{
		TokenA: "ETH", TokenB: "USDC",
		ReserveA: big.NewInt(0), ReserveB: big.NewInt(10_000_000000),
		FeeBps: 0,
	})
	if err != nil {
		t.Fatalf("register pool: %v", err)
	}
	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	if err := bank.Mint("ETH", holder, oneEth); err != nil {
		t.Fatalf("mint: %v", err)
	}

	out, err := router.Convert(ctx, holder, "ETH", "USDC", oneEth, big.NewRat(3000, 1))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if out.Cmp(big.NewInt(3000_000000)) != 0 {
		t.Fatalf("amount out: expected 3000 USDC, got %s", out)
	}
}

func TestQuoteDoesNotMoveFunds(t *testing.T) {
	ctx := context.Background()
	router, bank, poolAcct, holder := newTestRouter(t)

	if err := bank.Mint("USDC", poolAcct, big.NewInt(1_000000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := router.RegisterPool(poolAcct, models.PoolReserve{
		TokenA: "DAI", TokenB: "USDC",
		ReserveA: big.NewInt(0), ReserveB: big.NewInt(1_000000),
		FeeBps: 30,
	})
	if err != nil {
		t.Fatalf("register pool: %v", err)
	}

	if _, err := router.Quote("DAI", "USDC", big.NewInt(500000), big.NewRat(1, 1)); err != nil {
		t.Fatalf("quote: %v", err)
	}
	reserve, _ := router.Reserves("DAI", "USDC")
	if reserve.ReserveB.Cmp(big.NewInt(1_000000)) != 0 {
		t.Fatalf("quote mutated reserves: %s", reserve.ReserveB)
	}
	balance, _ := bank.BalanceOf(ctx, "USDC", holder)
	if balance.Sign() != 0 {
		t.Fatalf("quote moved funds: %s", balance)
	}

	// Exhausting the reserve is rejected at quote time.
	_, err = router.Quote("DAI", "USDC", big.NewInt(2_000000), big.NewRat(1, 1))
	if !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("expected no liquidity, got %v", err)
	}
}

func TestPoolRegistry(t *testing.T) {
	router, _, poolAcct, _ := newTestRouter(t)

	if _, err := router.Quote("DAI", "USDC", big.NewInt(1), big.NewRat(1, 1)); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected pool not found, got %v", err)
	}

	reserve := models.PoolReserve{
		TokenA: "DAI", TokenB: "USDC",
		ReserveA: big.NewInt(0), ReserveB: big.NewInt(0),
		FeeBps: 30,
	}
	if err := router.RegisterPool(poolAcct, reserve); err != nil {
		t.Fatalf("register pool: %v", err)
	}
	if err := router.RegisterPool(poolAcct, reserve); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	// Both orientations resolve the same pool.
	flipped := models.PoolReserve{
		TokenA: "USDC", TokenB: "DAI",
		ReserveA: big.NewInt(0), ReserveB: big.NewInt(0),
		FeeBps: 30,
	}
	if err := router.RegisterPool(poolAcct, flipped); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("expected duplicate rejection for flipped pair, got %v", err)
	}

	unsupported := models.PoolReserve{
		TokenA: "DOGE", TokenB: "USDC",
		ReserveA: big.NewInt(0), ReserveB: big.NewInt(0),
	}
	if err := router.RegisterPool(poolAcct, unsupported); err == nil {
		t.Fatalf("expected unsupported token rejection")
	}
}

func TestReverseRestoresReserves(t *testing.T) {
	ctx := context.Background()
	router, bank, poolAcct, holder := newTestRouter(t)

	if err := bank.Mint("USDC", poolAcct, big.NewInt(1_000_000000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := router.RegisterPool(poolAcct, models.PoolReserve{
		TokenA: "DAI", TokenB: "USDC",
		ReserveA: big.NewInt(0), ReserveB: big.NewInt(1_000_000000),
		FeeBps: 30,
	})
	if err != nil {
		t.Fatalf("register pool: %v", err)
	}
	if err := bank.Mint("DAI", holder, big.NewInt(100_000000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	in := big.NewInt(100_000000)
	out, err := router.Convert(ctx, holder, "DAI", "USDC", in, big.NewRat(1, 2))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if err := router.Reverse(ctx, holder, "DAI", "USDC", in, out); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	reserve, _ := router.Reserves("DAI", "USDC")
	if reserve.ReserveA.Sign() != 0 {
		t.Fatalf("reserve A not restored: %s", reserve.ReserveA)
	}
	if reserve.ReserveB.Cmp(big.NewInt(1_000_000000)) != 0 {
		t.Fatalf("reserve B not restored: %s", reserve.ReserveB)
	}
	daiBalance, _ := bank.BalanceOf(ctx, "DAI", holder)
	if daiBalance.Cmp(in) != 0 {
		t.Fatalf("holder DAI not restored: %s", daiBalance)
	}
	usdcBalance, _ := bank.BalanceOf(ctx, "USDC", holder)
	if usdcBalance.Sign() != 0 {
		t.Fatalf("holder USDC not returned: %s", usdcBalance)
	}
}
