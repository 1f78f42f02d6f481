package main

import (
	"context"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"aetherpay/internal/address"
	"aetherpay/internal/archive"
	"aetherpay/internal/config"
	"aetherpay/internal/custody"
	"aetherpay/internal/db"
	"aetherpay/internal/events"
	internalhttp "aetherpay/internal/http"
	"aetherpay/internal/ledger"
	"aetherpay/internal/models"
	"aetherpay/internal/oracle"
	"aetherpay/internal/pool"
	"aetherpay/internal/pubgoods"
	"aetherpay/internal/store"
	"aetherpay/internal/token"
)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens := make([]token.Token, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		tokens = append(tokens, token.Token{Symbol: t.Symbol, Decimals: t.Decimals})
	}
	registry, err := token.NewRegistry(tokens...)
	if err != nil {
		logger.Fatal("token registry init failed", zap.Error(err))
	}

	escrow, err := address.Parse(cfg.Ledger.EscrowAddress)
	if err != nil {
		logger.Fatal("invalid escrow address", zap.Error(err))
	}
	var fund address.Address
	if cfg.Ledger.FundAddress != "" {
		if fund, err = address.Parse(cfg.Ledger.FundAddress); err != nil {
			logger.Fatal("invalid fund address", zap.Error(err))
		}
	}

	bank := custody.NewBank()

	ora := oracle.New(oracle.Config{
		RequiredSubmissions: cfg.Oracle.RequiredSubmissions,
		ConsensusWindow:     time.Duration(cfg.Oracle.ConsensusWindowSeconds) * time.Second,
		MinConfidenceBps:    cfg.Oracle.MinConfidenceBps,
		MaxRateDeviationBps: uint64(cfg.Oracle.MaxRateDeviationBps),
	}, oracle.WithArchive(archive.NewMemoryStore()), oracle.WithLogger(logger))
	for _, node := range cfg.Oracle.Nodes {
		addr, err := address.Parse(node)
		if err != nil {
			logger.Fatal("invalid oracle node address", zap.String("node", node), zap.Error(err))
		}
		if err := ora.AddNode(addr); err != nil {
			logger.Fatal("oracle node registration failed", zap.String("node", node), zap.Error(err))
		}
	}

	router := pool.NewRouter(registry, bank, logger)
	for _, p := range cfg.Pools {
		account, err := address.Parse(p.Account)
		if err != nil {
			logger.Fatal("invalid pool account", zap.String("pool", p.TokenA+"/"+p.TokenB), zap.Error(err))
		}
		reserveA, okA := new(big.Int).SetString(p.ReserveA, 10)
		reserveB, okB := new(big.Int).SetString(p.ReserveB, 10)
		if !okA || !okB {
			logger.Fatal("invalid pool reserve", zap.String("pool", p.TokenA+"/"+p.TokenB))
		}
		// Mirror the configured reserves into custody so conversions can
		// actually move tokens through the pool account.
		if reserveA.Sign() > 0 {
			if err := bank.Mint(p.TokenA, account, reserveA); err != nil {
				logger.Fatal("pool custody seed failed", zap.Error(err))
			}
		}
		if reserveB.Sign() > 0 {
			if err := bank.Mint(p.TokenB, account, reserveB); err != nil {
				logger.Fatal("pool custody seed failed", zap.Error(err))
			}
		}
		err = router.RegisterPool(account, models.PoolReserve{
			TokenA:   p.TokenA,
			TokenB:   p.TokenB,
			ReserveA: reserveA,
			ReserveB: reserveB,
			FeeBps:   p.FeeBps,
		})
		if err != nil {
			logger.Fatal("pool registration failed", zap.String("pool", p.TokenA+"/"+p.TokenB), zap.Error(err))
		}
	}

	var orders ledger.OrderStore = ledger.NewMemoryStore()
	if cfg.DB.DSN != "" {
		dbPool, err := db.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Fatal("db connect failed", zap.Error(err))
		}
		defer dbPool.Close()
		orders = store.New(dbPool)
	}

	var emitter events.Emitter = events.LogEmitter{Log: logger}
	if cfg.Kafka.Broker != "" {
		interval := time.Duration(cfg.Kafka.FlushIntervalSeconds) * time.Second
		if interval <= 0 {
			interval = 5 * time.Second
		}
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Broker, cfg.Kafka.Topic, interval, logger)
		if err != nil {
			logger.Fatal("kafka publisher init failed", zap.Error(err))
		}
		go publisher.Run(ctx)
		emitter = publisher
	}

	led, err := ledger.New(ledger.Config{
		Escrow:           escrow,
		FundAddress:      fund,
		PlatformFeeBps:   cfg.Ledger.PlatformFeeBps,
		DonationBpsOfFee: cfg.Ledger.DonationBpsOfFee,
		OrderTTL:         time.Duration(cfg.Ledger.OrderTTLMinutes) * time.Minute,
	}, orders, registry, bank, ora, router, pubgoods.NewFund(),
		ledger.WithLogger(logger),
		ledger.WithEmitter(emitter),
	)
	if err != nil {
		logger.Fatal("ledger init failed", zap.Error(err))
	}

	h := internalhttp.NewHandler(led, ora, router)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		logger.Info("api listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
}
