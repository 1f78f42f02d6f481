package models

import (
	"math/big"
	"strings"
	"time"

	"aetherpay/internal/address"
)

// Pair is a canonical trading pair in BASE/QUOTE form, upper-cased.
type Pair struct {
	Base  string
	Quote string
}

// NewPair normalises the token symbols into a canonical pair.
func NewPair(base, quote string) Pair {
	return Pair{
		Base:  strings.ToUpper(strings.TrimSpace(base)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}
}

func (p Pair) String() string { return p.Base + "/" + p.Quote }

// RateObservation is a single signed price report from an oracle node.
type RateObservation struct {
	Pair          Pair
	Rate          *big.Rat
	ConfidenceBps uint32
	Submitter     address.Address
	SubmittedAt   time.Time
}

// Clone returns a deep copy of the observation.
func (o RateObservation) Clone() RateObservation {
	clone := o
	if o.Rate != nil {
		clone.Rate = new(big.Rat).Set(o.Rate)
	}
	return clone
}

// AggregateRate is the published consensus rate for a pair. A new aggregate
// supersedes the previous one; instances are never mutated in place.
type AggregateRate struct {
	Pair          Pair
	Rate          *big.Rat
	ConfidenceBps uint32
	Timestamp     time.Time
	ValidUntil    time.Time
}

// Clone returns a deep copy of the aggregate.
func (a AggregateRate) Clone() AggregateRate {
	clone := a
	if a.Rate != nil {
		clone.Rate = new(big.Rat).Set(a.Rate)
	}
	return clone
}

// Fresh reports whether the aggregate is still usable at the given instant.
func (a AggregateRate) Fresh(now time.Time) bool {
	return a.Rate != nil && !now.After(a.ValidUntil)
}

// OracleNode is a governance-managed rate submitter.
type OracleNode struct {
	ID         address.Address
	Reputation int64
	Active     bool
	AddedAt    time.Time
}

// PoolReserve captures the per-pair liquidity backing conversions.
type PoolReserve struct {
	TokenA   string
	TokenB   string
	ReserveA *big.Int
	ReserveB *big.Int
	FeeBps   uint32
}

// Clone returns a deep copy of the reserve snapshot.
func (r PoolReserve) Clone() PoolReserve {
	clone := r
	if r.ReserveA != nil {
		clone.ReserveA = new(big.Int).Set(r.ReserveA)
	}
	if r.ReserveB != nil {
		clone.ReserveB = new(big.Int).Set(r.ReserveB)
	}
	return clone
}
