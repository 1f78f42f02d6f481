package feed

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"github.com/gorilla/websocket"

	"aetherpay/internal/models"
)

// Client is a websocket connection to an upstream market-data feed. Each
// oracle node runs one and signs the ticks it reads into rate submissions.
type Client struct {
	Endpoint string
	Conn     *websocket.Conn
}

func NewClient(endpoint string) *Client {
	return &Client{Endpoint: endpoint}
}

func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, c.Endpoint, nil)
	if err != nil {
		return err
	}
	c.Conn = conn
	return nil
}

func (c *Client) Close() {
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

// Subscribe registers interest in the given pairs, "BASE/QUOTE" formatted.
func (c *Client) Subscribe(pairs []string) error {
	payload := map[string]any{
		"op":      "subscribe",
		"channel": "rates",
		"pairs":   pairs,
	}
	return c.Conn.WriteJSON(payload)
}

func (c *Client) Read() ([]byte, error) {
	_, msg, err := c.Conn.ReadMessage()
	return msg, err
}

// Tick is a single upstream price observation.
type Tick struct {
	Pair          models.Pair
	Rate          *big.Rat
	ConfidenceBps uint32
	At            time.Time
}

// ParseTick decodes a feed message. The second return is false for
// non-tick frames (acks, heartbeats).
func ParseTick(msg []byte) (*Tick, bool, error) {
	var env struct {
		Channel string `json:"channel"`
		Data    struct {
			Base          string `json:"base"`
			Quote         string `json:"quote"`
			Rate          string `json:"rate"`
			ConfidenceBps uint32 `json:"confidence_bps"`
			Timestamp     int64  `json:"ts"`
		} `json:"data"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		return nil, false, err
	}
	if env.Error != nil {
		return nil, false, errors.New(env.Error.Message)
	}
	if env.Channel != "rates" || env.Data.Rate == "" {
		return nil, false, nil
	}
	rate, ok := new(big.Rat).SetString(env.Data.Rate)
	if !ok || rate.Sign() <= 0 {
		return nil, false, errors.New("feed: invalid rate value")
	}
	at := time.Now().UTC()
	if env.Data.Timestamp > 0 {
		at = time.Unix(env.Data.Timestamp, 0).UTC()
	}
	return &Tick{
		Pair:          models.NewPair(env.Data.Base, env.Data.Quote),
		Rate:          rate,
		ConfidenceBps: env.Data.ConfidenceBps,
		At:            at,
	}, true, nil
}
