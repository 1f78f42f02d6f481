package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"aetherpay/internal/address"
	"aetherpay/internal/ledger"
	"aetherpay/internal/models"
)

const orderColumns = `
	order_id, human_id, merchant, designated_payer, bound_payer,
	gross_amount::text, payment_token, settlement_token,
	paid_amount::text, received_amount::text, exchange_rate,
	platform_fee::text, merchant_net::text, donation_amount::text,
	metadata_ref, allow_partial, status,
	created_at, expires_at, paid_at, settled_at`

// Store persists orders in Postgres. It satisfies ledger.OrderStore.
type Store struct {
	Pool *pgxpool.Pool
}

var _ ledger.OrderStore = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) Insert(ctx context.Context, order *models.Order) error {
	var designated *string
	if addr, ok := order.DesignatedPayer.Restricted(); ok {
		v := addr.String()
		designated = &v
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO orders (
			order_id, human_id, merchant, designated_payer,
			gross_amount, payment_token, settlement_token,
			metadata_ref, allow_partial, status, created_at, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		order.ID[:],
		order.HumanID,
		order.Merchant.String(),
		designated,
		order.GrossAmount.String(),
		order.PaymentToken,
		order.SettlementToken,
		order.MetadataRef,
		order.AllowPartial,
		order.Status,
		order.CreatedAt,
		order.ExpiresAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ledger.ErrDuplicateOrder
	}
	return err
}

func (s *Store) Get(ctx context.Context, id models.OrderID) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE order_id=$1
	`, id[:])
	return scanOrder(row)
}

func (s *Store) GetByHumanID(ctx context.Context, humanID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE human_id=$1
	`, humanID)
	return scanOrder(row)
}

func (s *Store) Update(ctx context.Context, order *models.Order) error {
	var bound *string
	if order.BoundPayer != nil {
		v := order.BoundPayer.String()
		bound = &v
	}
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET bound_payer=$2, paid_amount=$3, received_amount=$4,
			exchange_rate=$5, platform_fee=$6, merchant_net=$7,
			donation_amount=$8, status=$9, paid_at=$10, settled_at=$11,
			updated_at=now()
		WHERE order_id=$1
	`,
		order.ID[:],
		bound,
		bigString(order.PaidAmount),
		bigString(order.ReceivedAmount),
		ratString(order.ExchangeRateUsed),
		bigString(order.PlatformFee),
		bigString(order.MerchantNet),
		bigString(order.DonationAmount),
		order.Status,
		order.PaidAt,
		order.SettledAt,
	)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ledger.ErrOrderNotFound
	}
	return nil
}

func (s *Store) ListByMerchant(ctx context.Context, merchant address.Address, offset, limit int) ([]*models.Order, error) {
	if offset < 0 {
		offset = 0
	}
	// limit <= 0 means no cap, matching the in-memory store.
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE merchant=$1
		ORDER BY seq
		OFFSET $2`
	args := []any{merchant.String(), offset}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *Store) CountByMerchant(ctx context.Context, merchant address.Address) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM orders WHERE merchant=$1
	`, merchant.String()).Scan(&n)
	return n, err
}

func (s *Store) ListByStatus(ctx context.Context, merchant address.Address, status models.OrderStatus) ([]*models.Order, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE merchant=$1 AND status=$2
		ORDER BY seq
	`, merchant.String(), status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func scanOrders(rows pgx.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		order      models.Order
		rawID      []byte
		merchant   string
		designated sql.NullString
		bound      sql.NullString
		gross      string
		paid       sql.NullString
		received   sql.NullString
		rate       sql.NullString
		fee        sql.NullString
		net        sql.NullString
		donation   sql.NullString
		paidAt     sql.NullTime
		settledAt  sql.NullTime
	)
	err := row.Scan(
		&rawID,
		&order.HumanID,
		&merchant,
		&designated,
		&bound,
		&gross,
		&order.PaymentToken,
		&order.SettlementToken,
		&paid,
		&received,
		&rate,
		&fee,
		&net,
		&donation,
		&order.MetadataRef,
		&order.AllowPartial,
		&order.Status,
		&order.CreatedAt,
		&order.ExpiresAt,
		&paidAt,
		&settledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(order.ID[:], rawID)

	if order.Merchant, err = address.Parse(merchant); err != nil {
		return nil, fmt.Errorf("store: merchant address: %w", err)
	}
	if designated.Valid {
		addr, err := address.Parse(designated.String)
		if err != nil {
			return nil, fmt.Errorf("store: designated payer: %w", err)
		}
		order.DesignatedPayer = models.RestrictedPayer(addr)
	}
	if bound.Valid {
		addr, err := address.Parse(bound.String)
		if err != nil {
			return nil, fmt.Errorf("store: bound payer: %w", err)
		}
		order.BoundPayer = &addr
	}
	if order.GrossAmount, err = parseBig(gross); err != nil {
		return nil, err
	}
	if order.PaidAmount, err = parseNullBig(paid); err != nil {
		return nil, err
	}
	if order.ReceivedAmount, err = parseNullBig(received); err != nil {
		return nil, err
	}
	if order.PlatformFee, err = parseNullBig(fee); err != nil {
		return nil, err
	}
	if order.MerchantNet, err = parseNullBig(net); err != nil {
		return nil, err
	}
	if order.DonationAmount, err = parseNullBig(donation); err != nil {
		return nil, err
	}
	if rate.Valid {
		r, ok := new(big.Rat).SetString(rate.String)
		if !ok {
			return nil, fmt.Errorf("store: invalid exchange rate %q", rate.String)
		}
		order.ExchangeRateUsed = r
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	if settledAt.Valid {
		order.SettledAt = &settledAt.Time
	}
	return &order, nil
}

func bigString(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func ratString(v *big.Rat) *string {
	if v == nil {
		return nil
	}
	s := v.RatString()
	return &s
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("store: invalid amount %q", s)
	}
	return v, nil
}

func parseNullBig(s sql.NullString) (*big.Int, error) {
	if !s.Valid {
		return nil, nil
	}
	return parseBig(s.String)
}
