package ledger

import (
	"sync"

	"aetherpay/internal/models"
)

// orderLocks serializes mutations per order id so unrelated orders do
// not contend on a single mutex.
type orderLocks struct {
	mu    sync.Mutex
	locks map[models.OrderID]*sync.Mutex
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[models.OrderID]*sync.Mutex)}
}

func (l *orderLocks) lock(id models.OrderID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
