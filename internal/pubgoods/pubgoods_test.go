package pubgoods

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"aetherpay/internal/address"
	"aetherpay/internal/models"
)

type flakyAccumulator struct {
	failures int
	accepted int
}

func (f *flakyAccumulator) Contribute(_ context.Context, _ address.Address, _ string, _ *big.Int) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("accumulator unavailable")
	}
	f.accepted++
	return nil
}

func TestFundTracksContributions(t *testing.T) {
	fund := NewFund()
	var payer address.Address
	payer[0] = 0x11

	if err := fund.Contribute(context.Background(), payer, "USDC", big.NewInt(15_000)); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if err := fund.Contribute(context.Background(), payer, "USDC", big.NewInt(5_000)); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if got := fund.TotalDonations("USDC"); got.Int64() != 20_000 {
		t.Fatalf("total = %s, want 20000", got)
	}
	if fund.Contributions() != 2 {
		t.Fatalf("contributions = %d, want 2", fund.Contributions())
	}
	if err := fund.Contribute(context.Background(), payer, "USDC", big.NewInt(0)); !errors.Is(err, ErrInvalidContribution) {
		t.Fatalf("zero contribution err = %v", err)
	}
}

func TestQueueRetriesUntilAccepted(t *testing.T) {
	q := NewQueue()
	var payer address.Address
	payer[0] = 0x22
	q.Enqueue(PendingDonation{Contributor: payer, Token: "USDC", Amount: big.NewInt(100), QueuedAt: time.Now()})
	q.Enqueue(PendingDonation{Contributor: payer, Token: "DAI", Amount: big.NewInt(200), QueuedAt: time.Now()})

	acc := &flakyAccumulator{failures: 1}
	retry := func(ctx context.Context, d *PendingDonation) error {
		return acc.Contribute(ctx, d.Contributor, d.Token, d.Amount)
	}
	if n := q.Flush(context.Background(), retry); n != 1 {
		t.Fatalf("first flush forwarded %d, want 1", n)
	}
	if q.Len() != 1 {
		t.Fatalf("queue len = %d, want 1", q.Len())
	}
	if n := q.Flush(context.Background(), retry); n != 1 {
		t.Fatalf("second flush forwarded %d, want 1", n)
	}
	if q.Len() != 0 {
		t.Fatalf("queue len = %d, want 0", q.Len())
	}
	if acc.accepted != 2 {
		t.Fatalf("accepted = %d, want 2", acc.accepted)
	}
}

func TestFlushKeepsPartialProgress(t *testing.T) {
	q := NewQueue()
	q.Enqueue(PendingDonation{Token: "USDC", Amount: big.NewInt(100), QueuedAt: time.Now()})

	// First pass completes the custody leg but errors out afterwards.
	n := q.Flush(context.Background(), func(_ context.Context, d *PendingDonation) error {
		d.CustodyDone = true
		return errors.New("accumulator unavailable")
	})
	if n != 0 || q.Len() != 1 {
		t.Fatalf("flush = %d, len = %d, want 0 and 1", n, q.Len())
	}

	redone := false
	n = q.Flush(context.Background(), func(_ context.Context, d *PendingDonation) error {
		if !d.CustodyDone {
			redone = true
		}
		return nil
	})
	if n != 1 || q.Len() != 0 {
		t.Fatalf("flush = %d, len = %d, want 1 and 0", n, q.Len())
	}
	if redone {
		t.Fatal("custody progress lost between flushes")
	}
}

func TestQueueRemoveByOrder(t *testing.T) {
	q := NewQueue()
	keep := models.DeriveOrderID("order-keep")
	drop := models.DeriveOrderID("order-drop")
	q.Enqueue(PendingDonation{OrderID: keep, Token: "USDC", Amount: big.NewInt(100)})
	q.Enqueue(PendingDonation{OrderID: drop, Token: "USDC", Amount: big.NewInt(200)})

	d, ok := q.Remove(drop)
	if !ok {
		t.Fatal("queued donation not found")
	}
	if d.Amount.Int64() != 200 {
		t.Fatalf("removed amount = %s, want 200", d.Amount)
	}
	if q.Len() != 1 {
		t.Fatalf("queue len = %d, want 1", q.Len())
	}
	if _, ok := q.Remove(drop); ok {
		t.Fatal("removed the same donation twice")
	}
}
