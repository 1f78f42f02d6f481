package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"aetherpay/internal/address"
	"aetherpay/internal/ledger"
	"aetherpay/internal/models"
	"aetherpay/internal/oracle"
	"aetherpay/internal/pool"
	"aetherpay/internal/token"
)

type Handler struct {
	Ledger *ledger.Ledger
	Oracle *oracle.Oracle
	Router *pool.Router
}

func NewHandler(led *ledger.Ledger, ora *oracle.Oracle, router *pool.Router) *Handler {
	return &Handler{Ledger: led, Oracle: ora, Router: router}
}

type createOrderRequest struct {
	HumanID          string `json:"humanId"`
	Merchant         string `json:"merchant"`
	GrossAmount      string `json:"grossAmount"`
	PaymentToken     string `json:"paymentToken"`
	SettlementToken  string `json:"settlementToken"`
	MetadataRef      string `json:"metadataRef"`
	AllowPartial     bool   `json:"allowPartial"`
	DesignatedPayer  string `json:"designatedPayer,omitempty"`
	ExpiresInSeconds int64  `json:"expiresInSeconds,omitempty"`
}

type payOrderRequest struct {
	Payer  string `json:"payer"`
	Amount string `json:"amount"`
}

type callerRequest struct {
	Caller string `json:"caller"`
}

type orderResponse struct {
	OrderID         string `json:"orderId"`
	HumanID         string `json:"humanId"`
	Merchant        string `json:"merchant"`
	DesignatedPayer string `json:"designatedPayer,omitempty"`
	BoundPayer      string `json:"boundPayer,omitempty"`
	GrossAmount     string `json:"grossAmount"`
	PaymentToken    string `json:"paymentToken"`
	SettlementToken string `json:"settlementToken"`
	PaidAmount      string `json:"paidAmount,omitempty"`
	ReceivedAmount  string `json:"receivedAmount,omitempty"`
	ExchangeRate    string `json:"exchangeRate,omitempty"`
	PlatformFee     string `json:"platformFee,omitempty"`
	MerchantNet     string `json:"merchantNet,omitempty"`
	Donation        string `json:"donation,omitempty"`
	MetadataRef     string `json:"metadataRef,omitempty"`
	AllowPartial    bool   `json:"allowPartial"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt"`
	ExpiresAt       string `json:"expiresAt"`
	PaidAt          string `json:"paidAt,omitempty"`
	SettledAt       string `json:"settledAt,omitempty"`
}

func orderToResponse(o *models.Order) orderResponse {
	resp := orderResponse{
		OrderID:         hex.EncodeToString(o.ID[:]),
		HumanID:         o.HumanID,
		Merchant:        o.Merchant.String(),
		GrossAmount:     o.GrossAmount.String(),
		PaymentToken:    o.PaymentToken,
		SettlementToken: o.SettlementToken,
		MetadataRef:     o.MetadataRef,
		AllowPartial:    o.AllowPartial,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
		ExpiresAt:       o.ExpiresAt.Format(time.RFC3339),
	}
	if addr, ok := o.DesignatedPayer.Restricted(); ok {
		resp.DesignatedPayer = addr.String()
	}
	if o.BoundPayer != nil {
		resp.BoundPayer = o.BoundPayer.String()
	}
	if o.PaidAmount != nil {
		resp.PaidAmount = o.PaidAmount.String()
	}
	if o.ReceivedAmount != nil {
		resp.ReceivedAmount = o.ReceivedAmount.String()
	}
	if o.ExchangeRateUsed != nil {
		resp.ExchangeRate = o.ExchangeRateUsed.RatString()
	}
	if o.PlatformFee != nil {
		resp.PlatformFee = o.PlatformFee.String()
	}
	if o.MerchantNet != nil {
		resp.MerchantNet = o.MerchantNet.String()
	}
	if o.DonationAmount != nil {
		resp.Donation = o.DonationAmount.String()
	}
	if o.PaidAt != nil {
		resp.PaidAt = o.PaidAt.Format(time.RFC3339)
	}
	if o.SettledAt != nil {
		resp.SettledAt = o.SettledAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	merchant, err := address.Parse(req.Merchant)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid merchant address")
		return
	}
	gross, ok := new(big.Int).SetString(req.GrossAmount, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid gross amount")
		return
	}
	payer := models.PublicPayer()
	if req.DesignatedPayer != "" {
		addr, err := address.Parse(req.DesignatedPayer)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid designated payer")
			return
		}
		payer = models.RestrictedPayer(addr)
	}
	order, err := h.Ledger.CreateOrder(r.Context(), ledger.CreateOrderParams{
		HumanID:         req.HumanID,
		Merchant:        merchant,
		GrossAmount:     gross,
		PaymentToken:    req.PaymentToken,
		SettlementToken: req.SettlementToken,
		MetadataRef:     req.MetadataRef,
		AllowPartial:    req.AllowPartial,
		DesignatedPayer: payer,
		ExpiresIn:       time.Duration(req.ExpiresInSeconds) * time.Second,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderToResponse(order))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	order, err := h.Ledger.GetOrder(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(order))
}

func (h *Handler) GetOrderByHumanID(w http.ResponseWriter, r *http.Request) {
	humanID := chi.URLParam(r, "humanId")
	if humanID == "" {
		writeError(w, http.StatusBadRequest, "missing human id")
		return
	}
	order, err := h.Ledger.GetOrderByHumanID(r.Context(), humanID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(order))
}

func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	var req payOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	payer, err := address.Parse(req.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payer address")
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	order, err := h.Ledger.ProcessPayment(r.Context(), id, payer, amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(order))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, h.Ledger.CancelOrder)
}

func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, h.Ledger.RefundOrder)
}

func (h *Handler) SettleOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, h.Ledger.SettleOrder)
}

func (h *Handler) orderAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id models.OrderID, caller address.Address) (*models.Order, error)) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	caller, err := address.Parse(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	order, err := action(r.Context(), id, caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(order))
}

func (h *Handler) ListMerchantOrders(w http.ResponseWriter, r *http.Request) {
	merchant, err := address.Parse(chi.URLParam(r, "merchant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid merchant address")
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		orders, err := h.Ledger.ListByStatus(r.Context(), merchant, models.OrderStatus(status))
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		writeOrderList(w, orders, len(orders))
		return
	}
	offset := atoiDefault(r.URL.Query().Get("offset"), 0)
	limit := atoiDefault(r.URL.Query().Get("limit"), 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	orders, err := h.Ledger.ListMerchantOrders(r.Context(), merchant, offset, limit)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	total, err := h.Ledger.CountMerchantOrders(r.Context(), merchant)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeOrderList(w, orders, total)
}

func writeOrderList(w http.ResponseWriter, orders []*models.Order, total int) {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderToResponse(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": out,
		"total":  total,
	})
}

type submitRateRequest struct {
	Base          string `json:"base"`
	Quote         string `json:"quote"`
	Rate          string `json:"rate"`
	ConfidenceBps uint32 `json:"confidenceBps"`
	Submitter     string `json:"submitter"`
	SubmittedAt   int64  `json:"submittedAt"`
	Signature     string `json:"signature"`
}

func (h *Handler) SubmitRate(w http.ResponseWriter, r *http.Request) {
	var req submitRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	rate, ok := new(big.Rat).SetString(req.Rate)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rate")
		return
	}
	submitter, err := address.Parse(req.Submitter)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid submitter address")
		return
	}
	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signature encoding")
		return
	}
	sub := oracle.Submission{
		Pair:          models.NewPair(req.Base, req.Quote),
		Rate:          rate,
		ConfidenceBps: req.ConfidenceBps,
		Submitter:     submitter,
		SubmittedAt:   time.Unix(req.SubmittedAt, 0).UTC(),
		Signature:     sig,
	}
	if err := h.Oracle.SubmitRate(r.Context(), sub); err != nil {
		writeOracleError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) GetLatestRate(w http.ResponseWriter, r *http.Request) {
	pair := models.NewPair(chi.URLParam(r, "base"), chi.URLParam(r, "quote"))
	agg, err := h.Oracle.LatestRate(pair)
	if err != nil {
		writeOracleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pair":          agg.Pair.String(),
		"rate":          agg.Rate.RatString(),
		"confidenceBps": agg.ConfidenceBps,
		"timestamp":     agg.Timestamp.Format(time.RFC3339),
		"validUntil":    agg.ValidUntil.Format(time.RFC3339),
	})
}

func (h *Handler) AddOracleNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	addr, err := address.Parse(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid node address")
		return
	}
	if err := h.Oracle.AddNode(addr); err != nil {
		writeOracleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

func (h *Handler) RemoveOracleNode(w http.ResponseWriter, r *http.Request) {
	addr, err := address.Parse(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid node address")
		return
	}
	if err := h.Oracle.RemoveNode(addr); err != nil {
		writeOracleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) ListOracleNodes(w http.ResponseWriter, r *http.Request) {
	nodes := h.Oracle.Nodes()
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, map[string]any{
			"address":    n.ID.String(),
			"reputation": n.Reputation,
			"active":     n.Active,
			"addedAt":    n.AddedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": out})
}

func (h *Handler) GetPoolReserves(w http.ResponseWriter, r *http.Request) {
	reserve, err := h.Router.Reserves(chi.URLParam(r, "tokenA"), chi.URLParam(r, "tokenB"))
	if err != nil {
		if errors.Is(err, pool.ErrPoolNotFound) {
			writeError(w, http.StatusNotFound, "pool not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "reserve lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tokenA":   reserve.TokenA,
		"tokenB":   reserve.TokenB,
		"reserveA": reserve.ReserveA.String(),
		"reserveB": reserve.ReserveB.String(),
		"feeBps":   reserve.FeeBps,
	})
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (models.OrderID, bool) {
	var id models.OrderID
	raw, err := hex.DecodeString(chi.URLParam(r, "orderId"))
	if err != nil || len(raw) != len(id) {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return id, false
	}
	copy(id[:], raw)
	return id, true
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, ledger.ErrDuplicateOrder):
		writeError(w, http.StatusConflict, "human id already in use")
	case errors.Is(err, ledger.ErrInvalidOrder),
		errors.Is(err, token.ErrUnsupportedToken),
		errors.Is(err, token.ErrInvalidSymbol),
		errors.Is(err, ledger.ErrAmountMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrExpired),
		errors.Is(err, ledger.ErrNotPending),
		errors.Is(err, ledger.ErrAlreadyTerminal),
		errors.Is(err, ledger.ErrNotPaid),
		errors.Is(err, ledger.ErrAlreadySettled),
		errors.Is(err, ledger.ErrNothingToSettle):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrNotDesignatedPayer),
		errors.Is(err, ledger.ErrNotMerchant):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, oracle.ErrStaleRate),
		errors.Is(err, pool.ErrPoolNotFound),
		errors.Is(err, pool.ErrNoLiquidity):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrCustody):
		writeError(w, http.StatusPaymentRequired, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "operation failed")
	}
}

func writeOracleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, oracle.ErrUnauthorizedSubmitter),
		errors.Is(err, oracle.ErrSignatureInvalid):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, oracle.ErrConfidenceTooLow),
		errors.Is(err, oracle.ErrDeviationTooLarge),
		errors.Is(err, oracle.ErrInvalidRate):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, oracle.ErrStaleRate):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, oracle.ErrNodeExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, oracle.ErrNodeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "oracle operation failed")
	}
}

func atoiDefault(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
