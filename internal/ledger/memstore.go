package ledger

import (
	"context"
	"sync"

	"aetherpay/internal/address"
	"aetherpay/internal/models"
)

// MemoryStore keeps orders in memory in insertion order. It backs tests
// and single-node deployments without Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[models.OrderID]*models.Order
	byHuman map[string]models.OrderID
	order   []models.OrderID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[models.OrderID]*models.Order),
		byHuman: make(map[string]models.OrderID),
	}
}

func (s *MemoryStore) Insert(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHuman[order.HumanID]; ok {
		return ErrDuplicateOrder
	}
	if _, ok := s.byID[order.ID]; ok {
		return ErrDuplicateOrder
	}
	s.byID[order.ID] = order.Clone()
	s.byHuman[order.HumanID] = order.ID
	s.order = append(s.order, order.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id models.OrderID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.byID[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (s *MemoryStore) GetByHumanID(_ context.Context, humanID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHuman[humanID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[order.ID]; !ok {
		return ErrOrderNotFound
	}
	s.byID[order.ID] = order.Clone()
	return nil
}

func (s *MemoryStore) ListByMerchant(_ context.Context, merchant address.Address, offset, limit int) ([]*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	var out []*models.Order
	skipped := 0
	for _, id := range s.order {
		order := s.byID[id]
		if order.Merchant != merchant {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, order.Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) CountByMerchant(_ context.Context, merchant address.Address) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, order := range s.byID {
		if order.Merchant == merchant {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, merchant address.Address, status models.OrderStatus) ([]*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Order
	for _, id := range s.order {
		order := s.byID[id]
		if order.Merchant == merchant && order.Status == status {
			out = append(out, order.Clone())
		}
	}
	return out, nil
}
