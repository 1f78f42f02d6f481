package events

import (
	"time"

	"go.uber.org/zap"
)

const (
	TypeOrderCreated   = "order.created"
	TypeOrderCompleted = "order.completed"
	TypeOrderCancelled = "order.cancelled"
	TypeOrderExpired   = "order.expired"
	TypeOrderRefunded  = "order.refunded"
	TypeOrderSettled   = "order.settled"
	TypeDonationQueued = "donation.queued"
)

// SettlementEvent carries enough data for an external indexer to reconstruct
// order history without synchronous queries against the ledger.
type SettlementEvent struct {
	EventID         string    `json:"event_id"`
	Type            string    `json:"type"`
	OrderID         string    `json:"order_id"`
	HumanID         string    `json:"human_id"`
	Merchant        string    `json:"merchant"`
	Payer           string    `json:"payer,omitempty"`
	PaymentToken    string    `json:"payment_token"`
	SettlementToken string    `json:"settlement_token"`
	GrossAmount     string    `json:"gross_amount"`
	PaidAmount      string    `json:"paid_amount,omitempty"`
	ReceivedAmount  string    `json:"received_amount,omitempty"`
	MerchantNet     string    `json:"merchant_net,omitempty"`
	PlatformFee     string    `json:"platform_fee,omitempty"`
	Donation        string    `json:"donation,omitempty"`
	ExchangeRate    string    `json:"exchange_rate,omitempty"`
	Status          string    `json:"status"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Emitter receives settlement events. Implementations must not block the
// settlement path.
type Emitter interface {
	Emit(event SettlementEvent)
}

// NoopEmitter drops every event.
type NoopEmitter struct{}

func (NoopEmitter) Emit(SettlementEvent) {}

// LogEmitter writes events to the structured log. Useful when no broker is
// configured.
type LogEmitter struct {
	Log *zap.Logger
}

func (e LogEmitter) Emit(event SettlementEvent) {
	if e.Log == nil {
		return
	}
	e.Log.Info("settlement event",
		zap.String("event_id", event.EventID),
		zap.String("type", event.Type),
		zap.String("order_id", event.OrderID),
		zap.String("human_id", event.HumanID),
		zap.String("merchant", event.Merchant),
		zap.String("status", event.Status),
	)
}
