package fees

import (
	"errors"
	"fmt"
	"math/big"
)

const bpsDenominator = 10_000

var (
	ErrNilAmount      = errors.New("fees: amount required")
	ErrNegativeAmount = errors.New("fees: amount must not be negative")
	ErrBpsOutOfRange  = errors.New("fees: bps out of range")
)

// Split is the deterministic decomposition of a settled amount. The donation
// is carved out of the platform fee, never additive, so
// MerchantNet + PlatformFee always reconstitutes the gross amount exactly.
type Split struct {
	MerchantNet *big.Int
	PlatformFee *big.Int
	Donation    *big.Int
}

// Compute splits grossSettled into merchant net, platform fee and donation.
// All intermediate divisions floor, so no dust is created or lost:
//
//	platformFee = floor(gross * platformFeeBps / 10000)
//	donation    = floor(platformFee * donationBpsOfFee / 10000)
//	merchantNet = gross - platformFee
func Compute(grossSettled *big.Int, platformFeeBps, donationBpsOfFee uint32) (Split, error) {
	if grossSettled == nil {
		return Split{}, ErrNilAmount
	}
	if grossSettled.Sign() < 0 {
		return Split{}, ErrNegativeAmount
	}
	if platformFeeBps > bpsDenominator {
		return Split{}, fmt.Errorf("%w: platform fee %d", ErrBpsOutOfRange, platformFeeBps)
	}
	if donationBpsOfFee > bpsDenominator {
		return Split{}, fmt.Errorf("%w: donation share %d", ErrBpsOutOfRange, donationBpsOfFee)
	}

	fee := new(big.Int).Mul(grossSettled, big.NewInt(int64(platformFeeBps)))
	fee.Div(fee, big.NewInt(bpsDenominator))

	donation := new(big.Int).Mul(fee, big.NewInt(int64(donationBpsOfFee)))
	donation.Div(donation, big.NewInt(bpsDenominator))

	net := new(big.Int).Sub(grossSettled, fee)

	return Split{MerchantNet: net, PlatformFee: fee, Donation: donation}, nil
}
