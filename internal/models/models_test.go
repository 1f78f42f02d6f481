package models

import (
	"testing"

	"aetherpay/internal/address"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderPending, OrderCompleted, true},
		{OrderPending, OrderCancelled, true},
		{OrderPending, OrderExpired, true},
		{OrderPending, OrderRefunded, false},
		{OrderCompleted, OrderRefunded, true},
		{OrderCompleted, OrderPending, false},
		{OrderCancelled, OrderPending, false},
		{OrderCancelled, OrderCompleted, false},
		{OrderExpired, OrderCompleted, false},
		{OrderRefunded, OrderPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []OrderStatus{OrderCancelled, OrderExpired, OrderRefunded} {
		if !s.Terminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	for _, s := range []OrderStatus{OrderPending, OrderCompleted} {
		if s.Terminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
	if OrderStatus("bogus").Valid() {
		t.Fatalf("unknown status reported valid")
	}
	if OrderStatus("bogus").Terminal() {
		t.Fatalf("unknown status reported terminal")
	}
}

func TestDeriveOrderIDStable(t *testing.T) {
	a := DeriveOrderID("ORD1")
	b := DeriveOrderID("ORD1")
	c := DeriveOrderID("ORD2")
	if a != b {
		t.Fatalf("same human id derived different ids")
	}
	if a == c {
		t.Fatalf("distinct human ids collided")
	}
}

func TestPayerDesignation(t *testing.T) {
	var alice, bob address.Address
	alice[0] = 1
	bob[0] = 2

	public := PublicPayer()
	if _, restricted := public.Restricted(); restricted {
		t.Fatalf("public payer reported restricted")
	}
	if !public.Allows(alice) || !public.Allows(bob) {
		t.Fatalf("public order rejected a payer")
	}

	only := RestrictedPayer(alice)
	designated, restricted := only.Restricted()
	if !restricted || designated != alice {
		t.Fatalf("restricted payer lost designation")
	}
	if !only.Allows(alice) {
		t.Fatalf("designated payer rejected")
	}
	if only.Allows(bob) {
		t.Fatalf("non-designated payer allowed")
	}
}
