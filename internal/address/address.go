package address

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
)

// HRP is the bech32 human-readable prefix for account addresses.
const HRP = "aether"

var (
	ErrEmptyAddress   = errors.New("address: empty")
	ErrInvalidAddress = errors.New("address: invalid bech32 encoding")
	ErrWrongPrefix    = errors.New("address: wrong bech32 prefix")
)

// Address identifies an account (merchant, payer, oracle node, vault).
type Address [20]byte

// Zero is the all-zero address. It is never a valid participant.
var Zero Address

// FromPubKey derives the address from a secp256k1 public key by hashing the
// compressed encoding with sha256 then ripemd160.
func FromPubKey(pub *ecdsa.PublicKey) Address {
	compressed := ethcrypto.CompressPubkey(pub)
	sum := sha256.Sum256(compressed)
	rip := ripemd160.New()
	_, _ = rip.Write(sum[:])
	var addr Address
	copy(addr[:], rip.Sum(nil))
	return addr
}

// Parse decodes a bech32 account address string.
func Parse(s string) (Address, error) {
	var addr Address
	if s == "" {
		return addr, ErrEmptyAddress
	}
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if hrp != HRP {
		return addr, fmt.Errorf("%w: %q", ErrWrongPrefix, hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("%w: payload length %d", ErrInvalidAddress, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// String renders the bech32 encoding. Encoding a 20-byte payload cannot fail;
// a corrupted value falls back to hex so logs never drop the identity.
func (a Address) String() string {
	converted, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		return hex.EncodeToString(a[:])
	}
	encoded, err := bech32.Encode(HRP, converted)
	if err != nil {
		return hex.EncodeToString(a[:])
	}
	return encoded
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool { return a == Zero }
