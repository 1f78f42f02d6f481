package models

import (
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"aetherpay/internal/address"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderExpired   OrderStatus = "expired"
	OrderRefunded  OrderStatus = "refunded"
)

// transitions is the closed set of legal status moves. Completed orders may
// still move to refunded; every other non-pending status is final.
var transitions = map[OrderStatus]map[OrderStatus]bool{
	OrderPending: {
		OrderCompleted: true,
		OrderCancelled: true,
		OrderExpired:   true,
	},
	OrderCompleted: {
		OrderRefunded: true,
	},
}

// CanTransition reports whether moving from s to next is legal.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return transitions[s][next]
}

// Terminal reports whether no further transition can leave s.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Valid reports whether the status value is one of the supported states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderCompleted, OrderCancelled, OrderExpired, OrderRefunded:
		return true
	default:
		return false
	}
}

// OrderID is the deterministic fixed-size identifier derived from a human
// readable id. The mapping is stable and never reused.
type OrderID [32]byte

// DeriveOrderID computes the keccak256 digest of the human-readable id.
func DeriveOrderID(humanID string) OrderID {
	var id OrderID
	copy(id[:], ethcrypto.Keccak256([]byte(humanID)))
	return id
}

// Payer restricts who may pay an order. The zero value is a public order,
// payable by anyone; restricted orders accept exactly one address.
type Payer struct {
	restricted bool
	addr       address.Address
}

// PublicPayer returns the unrestricted payer designation.
func PublicPayer() Payer { return Payer{} }

// RestrictedPayer designates a single authorized payer.
func RestrictedPayer(addr address.Address) Payer {
	return Payer{restricted: true, addr: addr}
}

// Restricted returns the designated address when the order is not public.
func (p Payer) Restricted() (address.Address, bool) {
	return p.addr, p.restricted
}

// Allows reports whether the supplied address may pay the order.
func (p Payer) Allows(addr address.Address) bool {
	return !p.restricted || p.addr == addr
}

type Order struct {
	ID              OrderID
	HumanID         string
	Merchant        address.Address
	DesignatedPayer Payer
	// BoundPayer is the de-facto payer recorded at payment time. For public
	// orders this is whoever paid first; for restricted orders it equals the
	// designated address.
	BoundPayer       *address.Address
	GrossAmount      *big.Int
	PaymentToken     string
	SettlementToken  string
	PaidAmount       *big.Int
	ReceivedAmount   *big.Int
	ExchangeRateUsed *big.Rat
	PlatformFee      *big.Int
	MerchantNet      *big.Int
	DonationAmount   *big.Int
	MetadataRef      string
	AllowPartial     bool
	Status           OrderStatus
	CreatedAt        time.Time
	ExpiresAt        time.Time
	PaidAt           *time.Time
	SettledAt        *time.Time
}

// Clone returns a deep copy so callers can mutate the copy without touching
// the stored instance.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.GrossAmount = cloneInt(o.GrossAmount)
	clone.PaidAmount = cloneInt(o.PaidAmount)
	clone.ReceivedAmount = cloneInt(o.ReceivedAmount)
	clone.PlatformFee = cloneInt(o.PlatformFee)
	clone.MerchantNet = cloneInt(o.MerchantNet)
	clone.DonationAmount = cloneInt(o.DonationAmount)
	if o.ExchangeRateUsed != nil {
		clone.ExchangeRateUsed = new(big.Rat).Set(o.ExchangeRateUsed)
	}
	if o.BoundPayer != nil {
		bound := *o.BoundPayer
		clone.BoundPayer = &bound
	}
	if o.PaidAt != nil {
		paidAt := *o.PaidAt
		clone.PaidAt = &paidAt
	}
	if o.SettledAt != nil {
		settledAt := *o.SettledAt
		clone.SettledAt = &settledAt
	}
	return &clone
}

// CrossToken reports whether settlement requires a conversion.
func (o *Order) CrossToken() bool {
	return o.PaymentToken != o.SettlementToken
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
