package pubgoods

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"aetherpay/internal/address"
	"aetherpay/internal/models"
)

var ErrInvalidContribution = errors.New("pubgoods: contribution must be positive")

// Accumulator is the public-goods collaborator credited with the donation
// share of each platform fee.
type Accumulator interface {
	Contribute(ctx context.Context, contributor address.Address, token string, amount *big.Int) error
}

// Fund is an in-memory accumulator tracking lifetime donations per token and
// per contributor.
type Fund struct {
	mu            sync.Mutex
	totalByToken  map[string]*big.Int
	byContributor map[address.Address]*big.Int
	contributions int64
}

func NewFund() *Fund {
	return &Fund{
		totalByToken:  make(map[string]*big.Int),
		byContributor: make(map[address.Address]*big.Int),
	}
}

func (f *Fund) Contribute(_ context.Context, contributor address.Address, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidContribution
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	total := f.totalByToken[token]
	if total == nil {
		total = big.NewInt(0)
		f.totalByToken[token] = total
	}
	total.Add(total, amount)
	byAddr := f.byContributor[contributor]
	if byAddr == nil {
		byAddr = big.NewInt(0)
		f.byContributor[contributor] = byAddr
	}
	byAddr.Add(byAddr, amount)
	f.contributions++
	return nil
}

// TotalDonations returns lifetime donations recorded for a token.
func (f *Fund) TotalDonations(token string) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := f.totalByToken[token]
	if total == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(total)
}

// Contributions returns the lifetime contribution count.
func (f *Fund) Contributions() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contributions
}

// PendingDonation is a donation whose forward failed. Payment success is
// never gated on the forward; failures queue here for retry. CustodyDone
// records whether the tokens already reached the fund account, so a retry
// knows which leg is still outstanding.
type PendingDonation struct {
	OrderID     models.OrderID
	Contributor address.Address
	Token       string
	Amount      *big.Int
	CustodyDone bool
	QueuedAt    time.Time
}

// Queue holds donations awaiting a retry.
type Queue struct {
	mu      sync.Mutex
	pending []PendingDonation
}

func NewQueue() *Queue { return &Queue{} }

func (q *Queue) Enqueue(d PendingDonation) {
	q.mu.Lock()
	q.pending = append(q.pending, d)
	q.mu.Unlock()
}

// Len reports the number of queued donations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush retries every queued donation through retry. The callback may record
// partial progress on the entry (custody leg done, accumulator still down);
// entries that error stay queued with that progress. Returns the number of
// donations fully forwarded.
func (q *Queue) Flush(ctx context.Context, retry func(context.Context, *PendingDonation) error) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	remaining := q.pending[:0]
	forwarded := 0
	for i := range q.pending {
		d := q.pending[i]
		if err := retry(ctx, &d); err != nil {
			remaining = append(remaining, d)
			continue
		}
		forwarded++
	}
	q.pending = remaining
	return forwarded
}

// Remove drops the queued donation for an order, returning it when present.
func (q *Queue) Remove(id models.OrderID) (PendingDonation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, d := range q.pending {
		if d.OrderID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return d, true
		}
	}
	return PendingDonation{}, false
}
