package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"aetherpay/internal/config"
	"aetherpay/internal/feed"
	"aetherpay/internal/oracle"
)

// submitClient posts signed rate submissions to the settlement API.
type submitClient struct {
	baseURL string
	http    *http.Client
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

func (c *submitClient) submit(ctx context.Context, sub oracle.Submission) error {
	body, err := json.Marshal(submitRateRequest{
		Base:          sub.Pair.Base,
		Quote:         sub.Pair.Quote,
		Rate:          sub.Rate.RatString(),
		ConfidenceBps: sub.ConfidenceBps,
		Submitter:     sub.Submitter.String(),
		SubmittedAt:   sub.SubmittedAt.Unix(),
		Signature:     hex.EncodeToString(sub.Signature),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oracle/rates", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("submit rejected (%d): %s", resp.StatusCode, e.Error)
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	if cfg.Node.SignerKeyHex == "" {
		logger.Fatal("node.signer_key_hex is required")
	}
	key, err := ethcrypto.HexToECDSA(cfg.Node.SignerKeyHex)
	if err != nil {
		logger.Fatal("invalid signer key", zap.Error(err))
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://" + cfg.Server.Addr
	}
	client := &submitClient{
		baseURL: apiURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	window := time.Duration(cfg.Oracle.ConsensusWindowSeconds) * time.Second
	confidence := cfg.Node.ConfidenceBps

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &feed.Runner{
		Endpoint: cfg.Feed.Endpoint,
		Pairs:    cfg.Feed.Pairs,
		Log:      logger,
		Handle: func(ctx context.Context, tick feed.Tick) error {
			sub := oracle.Submission{
				Pair:          tick.Pair,
				Rate:          tick.Rate,
				ConfidenceBps: tick.ConfidenceBps,
				SubmittedAt:   time.Now().UTC(),
			}
			if confidence > 0 {
				sub.ConfidenceBps = confidence
			}
			if err := oracle.Sign(&sub, key, window); err != nil {
				return err
			}
			if err := client.submit(ctx, sub); err != nil {
				return err
			}
			logger.Info("rate submitted",
				zap.String("pair", sub.Pair.String()),
				zap.String("rate", sub.Rate.RatString()),
			)
			return nil
		},
	}

	go runner.Run(ctx)
	logger.Info("oracle node started",
		zap.String("feed", cfg.Feed.Endpoint),
		zap.String("api", apiURL),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
}
