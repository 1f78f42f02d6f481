package fees

import (
	"math/big"
	"testing"
)

// Amounts use 6-decimal base units (USDC style): 100 tokens = 100_000000.
func TestComputeExactValues(t *testing.T) {
	split, err := Compute(big.NewInt(100_000000), 30, 500)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if split.PlatformFee.Cmp(big.NewInt(300000)) != 0 {
		t.Fatalf("platform fee: expected 0.30, got %s", split.PlatformFee)
	}
	if split.Donation.Cmp(big.NewInt(15000)) != 0 {
		t.Fatalf("donation: expected 0.015, got %s", split.Donation)
	}
	if split.MerchantNet.Cmp(big.NewInt(99_700000)) != 0 {
		t.Fatalf("merchant net: expected 99.70, got %s", split.MerchantNet)
	}
}

func TestComputeReconstitutesGross(t *testing.T) {
	cases := []struct {
		gross       int64
		feeBps      uint32
		donationBps uint32
	}{
		{1, 30, 500},
		{7, 1, 9999},
		{999, 9999, 1},
		{100_000000, 30, 500},
		{123456789, 250, 1000},
		{1, 10000, 10000},
		{0, 30, 500},
	}
	for _, tc := range cases {
		split, err := Compute(big.NewInt(tc.gross), tc.feeBps, tc.donationBps)
		if err != nil {
			t.Fatalf("compute(%d,%d,%d): %v", tc.gross, tc.feeBps, tc.donationBps, err)
		}
		sum := new(big.Int).Add(split.MerchantNet, split.PlatformFee)
		if sum.Cmp(big.NewInt(tc.gross)) != 0 {
			t.Fatalf("compute(%d,%d,%d): net+fee=%s, want %d", tc.gross, tc.feeBps, tc.donationBps, sum, tc.gross)
		}
		if split.Donation.Cmp(split.PlatformFee) > 0 {
			t.Fatalf("compute(%d,%d,%d): donation %s exceeds fee %s", tc.gross, tc.feeBps, tc.donationBps, split.Donation, split.PlatformFee)
		}
		if split.MerchantNet.Sign() < 0 || split.PlatformFee.Sign() < 0 || split.Donation.Sign() < 0 {
			t.Fatalf("compute(%d,%d,%d): negative component", tc.gross, tc.feeBps, tc.donationBps)
		}
	}
}

func TestComputeRejectsBadInput(t *testing.T) {
	if _, err := Compute(nil, 30, 500); err == nil {
		t.Fatalf("expected error for nil amount")
	}
	if _, err := Compute(big.NewInt(-1), 30, 500); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	if _, err := Compute(big.NewInt(1), 10001, 0); err == nil {
		t.Fatalf("expected error for fee bps out of range")
	}
	if _, err := Compute(big.NewInt(1), 0, 10001); err == nil {
		t.Fatalf("expected error for donation bps out of range")
	}
}
