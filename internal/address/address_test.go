package address

import (
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestRoundTrip(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := FromPubKey(&key.PublicKey)
	if addr.IsZero() {
		t.Fatalf("derived address is zero")
	}

	encoded := addr.String()
	if !strings.HasPrefix(encoded, HRP+"1") {
		t.Fatalf("expected %q prefix, got %q", HRP, encoded)
	}

	decoded, err := Parse(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch: %v != %v", decoded, addr)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := Parse("aether1notbech32!!"); err == nil {
		t.Fatalf("expected error for malformed input")
	}

	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	other := FromPubKey(&key.PublicKey).String()
	wrongPrefix := "cosmos" + strings.TrimPrefix(other, HRP)
	if _, err := Parse(wrongPrefix); err == nil {
		t.Fatalf("expected error for wrong prefix")
	}
}

func TestDerivationIsDeterministic(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	a := FromPubKey(&key.PublicKey)
	b := FromPubKey(&key.PublicKey)
	if a != b {
		t.Fatalf("same key derived different addresses")
	}
}
