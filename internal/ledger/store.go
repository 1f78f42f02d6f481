package ledger

import (
	"context"
	"errors"

	"aetherpay/internal/address"
	"aetherpay/internal/models"
)

var (
	ErrDuplicateOrder = errors.New("ledger: human id already in use")
	ErrOrderNotFound  = errors.New("ledger: order not found")
)

// OrderStore persists orders. The ledger engine owns all state-machine
// decisions; stores are plain CRUD and must return ErrDuplicateOrder /
// ErrOrderNotFound for the corresponding conditions.
type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id models.OrderID) (*models.Order, error)
	GetByHumanID(ctx context.Context, humanID string) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	// ListByMerchant pages in insertion order; limit <= 0 returns everything.
	ListByMerchant(ctx context.Context, merchant address.Address, offset, limit int) ([]*models.Order, error)
	CountByMerchant(ctx context.Context, merchant address.Address) (int, error)
	ListByStatus(ctx context.Context, merchant address.Address, status models.OrderStatus) ([]*models.Order, error)
}
