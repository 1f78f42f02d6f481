package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aetherpay/internal/address"
	"aetherpay/internal/custody"
	"aetherpay/internal/events"
	"aetherpay/internal/fees"
	"aetherpay/internal/models"
	"aetherpay/internal/pubgoods"
	"aetherpay/internal/token"
)

var (
	ErrInvalidOrder       = errors.New("ledger: invalid order parameters")
	ErrExpired            = errors.New("ledger: order expired")
	ErrNotPending         = errors.New("ledger: order is not pending")
	ErrNotDesignatedPayer = errors.New("ledger: payer not authorized for this order")
	ErrAmountMismatch     = errors.New("ledger: payment amount does not match order")
	ErrNotMerchant        = errors.New("ledger: caller is not the order merchant")
	ErrAlreadyTerminal    = errors.New("ledger: order already in a terminal state")
	ErrNotPaid            = errors.New("ledger: order has not been paid")
	ErrAlreadySettled     = errors.New("ledger: merchant funds already settled")
	ErrNothingToSettle    = errors.New("ledger: nothing to settle")
	ErrCustody            = errors.New("ledger: custody transfer failed")
)

// RateSource supplies the current aggregate exchange rate for a pair.
// Implementations return a stale-rate error when no fresh aggregate exists.
type RateSource interface {
	LatestRate(pair models.Pair) (models.AggregateRate, error)
}

// Converter moves escrowed funds through a liquidity pool. Quote must not
// move tokens; Convert and Reverse operate on the holder's custody balance.
type Converter interface {
	Quote(paymentToken, settlementToken string, amountIn *big.Int, rate *big.Rat) (*big.Int, error)
	Convert(ctx context.Context, holder address.Address, paymentToken, settlementToken string, amountIn *big.Int, rate *big.Rat) (*big.Int, error)
	Reverse(ctx context.Context, holder address.Address, paymentToken, settlementToken string, amountIn, amountOut *big.Int) error
}

// Config carries the settlement parameters shared by every order.
type Config struct {
	// Escrow is the custody account the ledger controls. Payments are pulled
	// into it and stay there until settle or refund.
	Escrow address.Address
	// FundAddress receives the donation share of each platform fee.
	FundAddress      address.Address
	PlatformFeeBps   uint32
	DonationBpsOfFee uint32
	// OrderTTL is the default expiry horizon for new orders.
	OrderTTL time.Duration
}

// Ledger is the settlement engine. It owns the order state machine and
// orchestrates custody, rates, conversion and fee splitting; collaborators
// are injected so deployments can swap Postgres for memory and live oracles
// for fixtures.
type Ledger struct {
	cfg      Config
	store    OrderStore
	registry *token.Registry
	cust     custody.Custody
	rates    RateSource
	router   Converter
	fund     pubgoods.Accumulator

	locks     *orderLocks
	feeMu     sync.Mutex
	accrued   map[string]*big.Int
	donations *pubgoods.Queue
	emitter   events.Emitter
	log       *zap.Logger
	nowFn     func() time.Time
}

type Option func(*Ledger)

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

func WithEmitter(emitter events.Emitter) Option {
	return func(l *Ledger) {
		if emitter != nil {
			l.emitter = emitter
		}
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.nowFn = now
		}
	}
}

func New(cfg Config, store OrderStore, registry *token.Registry, cust custody.Custody, rates RateSource, router Converter, fund pubgoods.Accumulator, opts ...Option) (*Ledger, error) {
	if store == nil || registry == nil || cust == nil {
		return nil, errors.New("ledger: store, registry and custody are required")
	}
	if cfg.Escrow.IsZero() {
		return nil, errors.New("ledger: escrow address is required")
	}
	if cfg.PlatformFeeBps > 10000 || cfg.DonationBpsOfFee > 10000 {
		return nil, fees.ErrBpsOutOfRange
	}
	if cfg.OrderTTL <= 0 {
		return nil, errors.New("ledger: order ttl must be positive")
	}
	l := &Ledger{
		cfg:       cfg,
		store:     store,
		registry:  registry,
		cust:      cust,
		rates:     rates,
		router:    router,
		fund:      fund,
		locks:     newOrderLocks(),
		accrued:   make(map[string]*big.Int),
		donations: pubgoods.NewQueue(),
		emitter:   events.NoopEmitter{},
		log:       zap.NewNop(),
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// CreateOrderParams carries the caller-supplied fields of a new order.
type CreateOrderParams struct {
	HumanID         string
	Merchant        address.Address
	GrossAmount     *big.Int
	PaymentToken    string
	SettlementToken string
	MetadataRef     string
	AllowPartial    bool
	DesignatedPayer models.Payer
	// ExpiresIn overrides the configured default TTL when positive.
	ExpiresIn time.Duration
}

// CreateOrder validates the parameters and records a pending order. Nothing
// is mutated when validation fails.
func (l *Ledger) CreateOrder(ctx context.Context, p CreateOrderParams) (*models.Order, error) {
	humanID := strings.TrimSpace(p.HumanID)
	if humanID == "" {
		return nil, fmt.Errorf("%w: human id required", ErrInvalidOrder)
	}
	if p.Merchant.IsZero() {
		return nil, fmt.Errorf("%w: merchant address required", ErrInvalidOrder)
	}
	if p.GrossAmount == nil || p.GrossAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: gross amount must be positive", ErrInvalidOrder)
	}
	payTok, err := l.registry.Resolve(p.PaymentToken)
	if err != nil {
		return nil, err
	}
	settleTok, err := l.registry.Resolve(p.SettlementToken)
	if err != nil {
		return nil, err
	}
	ttl := p.ExpiresIn
	if ttl <= 0 {
		ttl = l.cfg.OrderTTL
	}
	now := l.nowFn()
	order := &models.Order{
		ID:              models.DeriveOrderID(humanID),
		HumanID:         humanID,
		Merchant:        p.Merchant,
		DesignatedPayer: p.DesignatedPayer,
		GrossAmount:     new(big.Int).Set(p.GrossAmount),
		PaymentToken:    payTok.Symbol,
		SettlementToken: settleTok.Symbol,
		MetadataRef:     p.MetadataRef,
		AllowPartial:    p.AllowPartial,
		Status:          models.OrderPending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
	if err := l.store.Insert(ctx, order); err != nil {
		return nil, err
	}
	l.log.Info("order created",
		zap.String("human_id", order.HumanID),
		zap.String("merchant", order.Merchant.String()),
		zap.String("payment_token", order.PaymentToken),
		zap.String("settlement_token", order.SettlementToken),
		zap.String("gross", order.GrossAmount.String()),
	)
	l.emit(events.TypeOrderCreated, order)
	return order.Clone(), nil
}

// ProcessPayment settles a pending order. Admission and liquidity are checked
// before any token moves; once the payer's tokens are pulled every later
// failure rolls the pull back so no funds strand against a pending order.
func (l *Ledger) ProcessPayment(ctx context.Context, id models.OrderID, payer address.Address, amount *big.Int) (*models.Order, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	order, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := l.nowFn()
	if expired, err := l.expireIfDue(ctx, order, now); expired || err != nil {
		if err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	if order.Status == models.OrderExpired {
		return nil, ErrExpired
	}
	if order.Status != models.OrderPending {
		return nil, ErrNotPending
	}
	if !order.DesignatedPayer.Allows(payer) {
		return nil, ErrNotDesignatedPayer
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrAmountMismatch
	}
	if !order.AllowPartial && amount.Cmp(order.GrossAmount) != 0 {
		return nil, ErrAmountMismatch
	}
	if order.AllowPartial && amount.Cmp(order.GrossAmount) > 0 {
		return nil, ErrAmountMismatch
	}

	rateUsed := big.NewRat(1, 1)
	if order.CrossToken() {
		agg, err := l.rates.LatestRate(models.NewPair(order.PaymentToken, order.SettlementToken))
		if err != nil {
			return nil, err
		}
		rateUsed = agg.Rate
		// Preflight the pool before touching the payer's balance.
		if _, err := l.router.Quote(order.PaymentToken, order.SettlementToken, amount, rateUsed); err != nil {
			return nil, err
		}
	}

	if err := l.cust.TransferFrom(ctx, order.PaymentToken, payer, l.cfg.Escrow, l.cfg.Escrow, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustody, err)
	}

	received := new(big.Int).Set(amount)
	if order.CrossToken() {
		received, err = l.router.Convert(ctx, l.cfg.Escrow, order.PaymentToken, order.SettlementToken, amount, rateUsed)
		if err != nil {
			l.returnPull(ctx, order.PaymentToken, payer, amount)
			return nil, err
		}
	}

	split, err := fees.Compute(received, l.cfg.PlatformFeeBps, l.cfg.DonationBpsOfFee)
	if err != nil {
		l.unwind(ctx, order, payer, amount, received)
		return nil, err
	}

	if err := l.setStatus(order, models.OrderCompleted); err != nil {
		l.unwind(ctx, order, payer, amount, received)
		return nil, err
	}
	order.BoundPayer = &payer
	order.PaidAmount = new(big.Int).Set(amount)
	order.ReceivedAmount = received
	order.ExchangeRateUsed = new(big.Rat).Set(rateUsed)
	order.PlatformFee = split.PlatformFee
	order.MerchantNet = split.MerchantNet
	order.DonationAmount = split.Donation
	order.PaidAt = &now

	if err := l.store.Update(ctx, order); err != nil {
		l.unwind(ctx, order, payer, amount, received)
		return nil, fmt.Errorf("ledger: persist payment: %w", err)
	}

	l.accrueFee(order.SettlementToken, split.PlatformFee, split.Donation)
	l.forwardDonation(ctx, order, payer, split.Donation)

	l.log.Info("order completed",
		zap.String("human_id", order.HumanID),
		zap.String("payer", payer.String()),
		zap.String("paid", amount.String()),
		zap.String("received", received.String()),
		zap.String("rate", rateUsed.RatString()),
	)
	l.emit(events.TypeOrderCompleted, order)
	return order.Clone(), nil
}

// CancelOrder voids a pending order. Only the merchant may cancel, and only
// before payment.
func (l *Ledger) CancelOrder(ctx context.Context, id models.OrderID, caller address.Address) (*models.Order, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	order, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if expired, err := l.expireIfDue(ctx, order, l.nowFn()); expired || err != nil {
		if err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	if order.Status != models.OrderPending {
		return nil, ErrNotPending
	}
	if caller != order.Merchant {
		return nil, ErrNotMerchant
	}
	if err := l.setStatus(order, models.OrderCancelled); err != nil {
		return nil, err
	}
	if err := l.store.Update(ctx, order); err != nil {
		return nil, err
	}
	l.emit(events.TypeOrderCancelled, order)
	return order.Clone(), nil
}

// RefundOrder returns the paid amount in the payment token to the bound
// payer. Only unsettled completed orders qualify; cross-token orders reverse
// the original conversion so pool reserves return to their pre-payment state.
func (l *Ledger) RefundOrder(ctx context.Context, id models.OrderID, caller address.Address) (*models.Order, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	order, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if order.Status == models.OrderPending {
		if expired, err := l.expireIfDue(ctx, order, l.nowFn()); expired || err != nil {
			if err != nil {
				return nil, err
			}
			return nil, ErrExpired
		}
		return nil, ErrNotPaid
	}
	if caller != order.Merchant {
		return nil, ErrNotMerchant
	}
	if order.SettledAt != nil {
		return nil, ErrAlreadySettled
	}
	if order.BoundPayer == nil || order.PaidAmount == nil {
		return nil, ErrNotPaid
	}

	// A refund claws the donation back so escrow again holds the full
	// received amount. A donation still queued for retry is dropped instead
	// of flushed later; when its custody leg never ran the tokens never left
	// escrow, so there is nothing at the fund account to claw back.
	if order.DonationAmount != nil && order.DonationAmount.Sign() > 0 {
		pending, queued := l.donations.Remove(order.ID)
		if !queued || pending.CustodyDone {
			if err := l.cust.Transfer(ctx, order.SettlementToken, l.cfg.FundAddress, l.cfg.Escrow, order.DonationAmount); err != nil {
				l.log.Debug("donation clawback skipped", zap.String("human_id", order.HumanID), zap.Error(err))
			}
		}
	}
	if order.CrossToken() {
		if err := l.router.Reverse(ctx, l.cfg.Escrow, order.PaymentToken, order.SettlementToken, order.PaidAmount, order.ReceivedAmount); err != nil {
			return nil, err
		}
	}
	payer := *order.BoundPayer
	if err := l.cust.Transfer(ctx, order.PaymentToken, l.cfg.Escrow, payer, order.PaidAmount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustody, err)
	}
	l.releaseFee(order.SettlementToken, order.PlatformFee, order.DonationAmount)

	if err := l.setStatus(order, models.OrderRefunded); err != nil {
		return nil, err
	}
	if err := l.store.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("ledger: persist refund: %w", err)
	}
	l.log.Info("order refunded",
		zap.String("human_id", order.HumanID),
		zap.String("payer", payer.String()),
		zap.String("refunded", order.PaidAmount.String()),
	)
	l.emit(events.TypeOrderRefunded, order)
	return order.Clone(), nil
}

// SettleOrder pays the merchant net out of escrow into the merchant account.
func (l *Ledger) SettleOrder(ctx context.Context, id models.OrderID, caller address.Address) (*models.Order, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	order, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller != order.Merchant {
		return nil, ErrNotMerchant
	}
	if order.Status != models.OrderCompleted {
		return nil, ErrNothingToSettle
	}
	if order.SettledAt != nil {
		return nil, ErrAlreadySettled
	}
	if order.MerchantNet == nil || order.MerchantNet.Sign() <= 0 {
		return nil, ErrNothingToSettle
	}
	if err := l.cust.Transfer(ctx, order.SettlementToken, l.cfg.Escrow, order.Merchant, order.MerchantNet); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustody, err)
	}
	now := l.nowFn()
	order.SettledAt = &now
	if err := l.store.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("ledger: persist settlement: %w", err)
	}
	l.log.Info("order settled",
		zap.String("human_id", order.HumanID),
		zap.String("merchant", order.Merchant.String()),
		zap.String("net", order.MerchantNet.String()),
	)
	l.emit(events.TypeOrderSettled, order)
	return order.Clone(), nil
}

// GetOrder returns the order, reporting EXPIRED for pending orders past their
// horizon without persisting the transition; the write happens lazily on the
// next mutation attempt.
func (l *Ledger) GetOrder(ctx context.Context, id models.OrderID) (*models.Order, error) {
	order, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.expiryView(order), nil
}

func (l *Ledger) GetOrderByHumanID(ctx context.Context, humanID string) (*models.Order, error) {
	order, err := l.store.GetByHumanID(ctx, strings.TrimSpace(humanID))
	if err != nil {
		return nil, err
	}
	return l.expiryView(order), nil
}

// ListMerchantOrders pages through a merchant's orders in insertion order.
func (l *Ledger) ListMerchantOrders(ctx context.Context, merchant address.Address, offset, limit int) ([]*models.Order, error) {
	orders, err := l.store.ListByMerchant(ctx, merchant, offset, limit)
	if err != nil {
		return nil, err
	}
	for i, order := range orders {
		orders[i] = l.expiryView(order)
	}
	return orders, nil
}

func (l *Ledger) CountMerchantOrders(ctx context.Context, merchant address.Address) (int, error) {
	return l.store.CountByMerchant(ctx, merchant)
}

// ListByStatus filters a merchant's orders by effective status, so pending
// orders past their expiry horizon show up under EXPIRED rather than PENDING.
func (l *Ledger) ListByStatus(ctx context.Context, merchant address.Address, status models.OrderStatus) ([]*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, status)
	}
	switch status {
	case models.OrderPending:
		orders, err := l.store.ListByStatus(ctx, merchant, status)
		if err != nil {
			return nil, err
		}
		filtered := orders[:0]
		for _, order := range orders {
			if view := l.expiryView(order); view.Status == models.OrderPending {
				filtered = append(filtered, view)
			}
		}
		return filtered, nil
	case models.OrderExpired:
		// Overdue pending orders count as expired, so scan the merchant's
		// orders in insertion order rather than only the persisted rows.
		all, err := l.store.ListByMerchant(ctx, merchant, 0, 0)
		if err != nil {
			return nil, err
		}
		expired := all[:0]
		for _, order := range all {
			if view := l.expiryView(order); view.Status == models.OrderExpired {
				expired = append(expired, view)
			}
		}
		return expired, nil
	default:
		return l.store.ListByStatus(ctx, merchant, status)
	}
}

// AccruedFees reports the platform fee balance retained for a token, net of
// donations already carved out.
func (l *Ledger) AccruedFees(tokenSymbol string) *big.Int {
	l.feeMu.Lock()
	defer l.feeMu.Unlock()
	bal := l.accrued[token.Normalize(tokenSymbol)]
	if bal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// DonationQueue exposes the retry queue for donations whose forward failed.
func (l *Ledger) DonationQueue() *pubgoods.Queue {
	return l.donations
}

// FlushDonations retries queued donations, redoing the custody move to the
// fund address when it never completed, and returns the number forwarded.
func (l *Ledger) FlushDonations(ctx context.Context) int {
	if l.fund == nil {
		return 0
	}
	return l.donations.Flush(ctx, l.retryDonation)
}

// setStatus moves the order through the validated transition table. Every
// status write funnels through here so an illegal move surfaces as an error
// instead of being persisted.
func (l *Ledger) setStatus(order *models.Order, next models.OrderStatus) error {
	if !order.Status.CanTransition(next) {
		return fmt.Errorf("ledger: illegal transition %s -> %s for order %s", order.Status, next, order.HumanID)
	}
	order.Status = next
	return nil
}

// expireIfDue persists the PENDING→EXPIRED transition when the order is past
// its horizon. Reported true when the transition happened.
func (l *Ledger) expireIfDue(ctx context.Context, order *models.Order, now time.Time) (bool, error) {
	if order.Status != models.OrderPending || !now.After(order.ExpiresAt) {
		return false, nil
	}
	if err := l.setStatus(order, models.OrderExpired); err != nil {
		return false, err
	}
	if err := l.store.Update(ctx, order); err != nil {
		return false, fmt.Errorf("ledger: persist expiry: %w", err)
	}
	l.emit(events.TypeOrderExpired, order)
	return true, nil
}

func (l *Ledger) expiryView(order *models.Order) *models.Order {
	if order.Status == models.OrderPending && l.nowFn().After(order.ExpiresAt) {
		view := order.Clone()
		view.Status = models.OrderExpired
		return view
	}
	return order
}

// returnPull hands the pulled payment back to the payer after a failed
// conversion. A failure here is logged loudly: escrow holds the funds and an
// operator has to reconcile by hand.
func (l *Ledger) returnPull(ctx context.Context, tok string, payer address.Address, amount *big.Int) {
	if err := l.cust.Transfer(ctx, tok, l.cfg.Escrow, payer, amount); err != nil {
		l.log.Error("failed to return pulled payment",
			zap.String("token", tok),
			zap.String("payer", payer.String()),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
	}
}

// unwind rolls back a payment after the conversion already happened.
func (l *Ledger) unwind(ctx context.Context, order *models.Order, payer address.Address, amount, received *big.Int) {
	if order.CrossToken() {
		if err := l.router.Reverse(ctx, l.cfg.Escrow, order.PaymentToken, order.SettlementToken, amount, received); err != nil {
			l.log.Error("failed to reverse conversion during unwind",
				zap.String("human_id", order.HumanID),
				zap.Error(err),
			)
			return
		}
	}
	l.returnPull(ctx, order.PaymentToken, payer, amount)
}

func (l *Ledger) accrueFee(tok string, platformFee, donation *big.Int) {
	retained := new(big.Int).Sub(platformFee, donation)
	if retained.Sign() <= 0 {
		return
	}
	l.feeMu.Lock()
	defer l.feeMu.Unlock()
	bal := l.accrued[tok]
	if bal == nil {
		bal = big.NewInt(0)
		l.accrued[tok] = bal
	}
	bal.Add(bal, retained)
}

func (l *Ledger) releaseFee(tok string, platformFee, donation *big.Int) {
	if platformFee == nil {
		return
	}
	retained := new(big.Int).Set(platformFee)
	if donation != nil {
		retained.Sub(retained, donation)
	}
	if retained.Sign() <= 0 {
		return
	}
	l.feeMu.Lock()
	defer l.feeMu.Unlock()
	bal := l.accrued[tok]
	if bal == nil {
		return
	}
	bal.Sub(bal, retained)
	if bal.Sign() < 0 {
		bal.SetInt64(0)
	}
}

// forwardDonation moves the donation share to the fund address and credits
// the accumulator. Payment success is never gated on either step; failures
// land in the retry queue tagged with how far the forward got.
func (l *Ledger) forwardDonation(ctx context.Context, order *models.Order, payer address.Address, donation *big.Int) {
	if l.fund == nil || donation == nil || donation.Sign() <= 0 {
		return
	}
	tok := order.SettlementToken
	queue := func(custodyDone bool, reason error) {
		l.donations.Enqueue(pubgoods.PendingDonation{
			OrderID:     order.ID,
			Contributor: payer,
			Token:       tok,
			Amount:      new(big.Int).Set(donation),
			CustodyDone: custodyDone,
			QueuedAt:    l.nowFn(),
		})
		l.log.Warn("donation forward failed, queued for retry",
			zap.String("human_id", order.HumanID),
			zap.String("token", tok),
			zap.String("amount", donation.String()),
			zap.Error(reason),
		)
	}
	if !l.cfg.FundAddress.IsZero() {
		if err := l.cust.Transfer(ctx, tok, l.cfg.Escrow, l.cfg.FundAddress, donation); err != nil {
			queue(false, err)
			return
		}
	}
	if err := l.fund.Contribute(ctx, payer, tok, donation); err != nil {
		queue(true, err)
	}
}

// retryDonation finishes a queued forward, redoing the custody leg first when
// it never completed so the accumulator is only credited for tokens that
// actually reached the fund account.
func (l *Ledger) retryDonation(ctx context.Context, d *pubgoods.PendingDonation) error {
	if !d.CustodyDone && !l.cfg.FundAddress.IsZero() {
		if err := l.cust.Transfer(ctx, d.Token, l.cfg.Escrow, l.cfg.FundAddress, d.Amount); err != nil {
			return err
		}
		d.CustodyDone = true
	}
	return l.fund.Contribute(ctx, d.Contributor, d.Token, d.Amount)
}

func (l *Ledger) emit(eventType string, order *models.Order) {
	event := events.SettlementEvent{
		EventID:         uuid.NewString(),
		Type:            eventType,
		OrderID:         fmt.Sprintf("%x", order.ID[:]),
		HumanID:         order.HumanID,
		Merchant:        order.Merchant.String(),
		PaymentToken:    order.PaymentToken,
		SettlementToken: order.SettlementToken,
		GrossAmount:     order.GrossAmount.String(),
		Status:          string(order.Status),
		OccurredAt:      l.nowFn(),
	}
	if order.BoundPayer != nil {
		event.Payer = order.BoundPayer.String()
	}
	if order.PaidAmount != nil {
		event.PaidAmount = order.PaidAmount.String()
	}
	if order.ReceivedAmount != nil {
		event.ReceivedAmount = order.ReceivedAmount.String()
	}
	if order.MerchantNet != nil {
		event.MerchantNet = order.MerchantNet.String()
	}
	if order.PlatformFee != nil {
		event.PlatformFee = order.PlatformFee.String()
	}
	if order.DonationAmount != nil {
		event.Donation = order.DonationAmount.String()
	}
	if order.ExchangeRateUsed != nil {
		event.ExchangeRate = order.ExchangeRateUsed.RatString()
	}
	l.emitter.Emit(event)
}
