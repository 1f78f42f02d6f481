package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

type PoolConfig struct {
	TokenA   string `yaml:"token_a"`
	TokenB   string `yaml:"token_b"`
	Account  string `yaml:"account"`
	ReserveA string `yaml:"reserve_a"`
	ReserveB string `yaml:"reserve_b"`
	FeeBps   uint32 `yaml:"fee_bps"`
}

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Ledger struct {
		EscrowAddress    string `yaml:"escrow_address"`
		FundAddress      string `yaml:"fund_address"`
		PlatformFeeBps   uint32 `yaml:"platform_fee_bps"`
		DonationBpsOfFee uint32 `yaml:"donation_bps_of_fee"`
		OrderTTLMinutes  int    `yaml:"order_ttl_minutes"`
	} `yaml:"ledger"`
	Tokens []TokenConfig `yaml:"tokens"`
	Oracle struct {
		RequiredSubmissions    int      `yaml:"required_submissions"`
		ConsensusWindowSeconds int64    `yaml:"consensus_window_seconds"`
		MinConfidenceBps       uint32   `yaml:"min_confidence_bps"`
		MaxRateDeviationBps    uint32   `yaml:"max_rate_deviation_bps"`
		Nodes                  []string `yaml:"nodes"`
	} `yaml:"oracle"`
	Pools []PoolConfig `yaml:"pools"`
	Feed  struct {
		Endpoint        string   `yaml:"endpoint"`
		Pairs           []string `yaml:"pairs"`
		IntervalSeconds int64    `yaml:"interval_seconds"`
	} `yaml:"feed"`
	Kafka struct {
		Broker               string `yaml:"broker"`
		Topic                string `yaml:"topic"`
		FlushIntervalSeconds int64  `yaml:"flush_interval_seconds"`
	} `yaml:"kafka"`
	Node struct {
		SignerKeyHex  string `yaml:"signer_key_hex"`
		ConfidenceBps uint32 `yaml:"confidence_bps"`
	} `yaml:"node"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.Ledger.EscrowAddress == "" {
		return nil, errors.New("ledger.escrow_address is required")
	}
	if len(cfg.Tokens) == 0 {
		return nil, errors.New("at least one token is required")
	}
	if cfg.Ledger.OrderTTLMinutes <= 0 {
		cfg.Ledger.OrderTTLMinutes = 30
	}
	if cfg.Oracle.RequiredSubmissions <= 0 {
		cfg.Oracle.RequiredSubmissions = 3
	}
	if cfg.Oracle.ConsensusWindowSeconds <= 0 {
		cfg.Oracle.ConsensusWindowSeconds = 60
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("ESCROW_ADDRESS"); v != "" {
		cfg.Ledger.EscrowAddress = v
	}
	if v := os.Getenv("FUND_ADDRESS"); v != "" {
		cfg.Ledger.FundAddress = v
	}
	if v := os.Getenv("PLATFORM_FEE_BPS"); v != "" {
		cfg.Ledger.PlatformFeeBps = atou32Or(cfg.Ledger.PlatformFeeBps, v)
	}
	if v := os.Getenv("DONATION_BPS_OF_FEE"); v != "" {
		cfg.Ledger.DonationBpsOfFee = atou32Or(cfg.Ledger.DonationBpsOfFee, v)
	}
	if v := os.Getenv("ORDER_TTL_MINUTES"); v != "" {
		cfg.Ledger.OrderTTLMinutes = atoiOr(cfg.Ledger.OrderTTLMinutes, v)
	}
	if v := os.Getenv("ORACLE_REQUIRED_SUBMISSIONS"); v != "" {
		cfg.Oracle.RequiredSubmissions = atoiOr(cfg.Oracle.RequiredSubmissions, v)
	}
	if v := os.Getenv("ORACLE_CONSENSUS_WINDOW_SECONDS"); v != "" {
		cfg.Oracle.ConsensusWindowSeconds = atoi64Or(cfg.Oracle.ConsensusWindowSeconds, v)
	}
	if v := os.Getenv("ORACLE_MIN_CONFIDENCE_BPS"); v != "" {
		cfg.Oracle.MinConfidenceBps = atou32Or(cfg.Oracle.MinConfidenceBps, v)
	}
	if v := os.Getenv("ORACLE_MAX_RATE_DEVIATION_BPS"); v != "" {
		cfg.Oracle.MaxRateDeviationBps = atou32Or(cfg.Oracle.MaxRateDeviationBps, v)
	}
	if v := os.Getenv("ORACLE_NODES"); v != "" {
		cfg.Oracle.Nodes = splitCommaList(v)
	}
	if v := os.Getenv("FEED_ENDPOINT"); v != "" {
		cfg.Feed.Endpoint = v
	}
	if v := os.Getenv("FEED_PAIRS"); v != "" {
		cfg.Feed.Pairs = splitCommaList(v)
	}
	if v := os.Getenv("FEED_INTERVAL_SECONDS"); v != "" {
		cfg.Feed.IntervalSeconds = atoi64Or(cfg.Feed.IntervalSeconds, v)
	}
	if v := os.Getenv("KAFKA_BROKER"); v != "" {
		cfg.Kafka.Broker = v
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("KAFKA_FLUSH_INTERVAL_SECONDS"); v != "" {
		cfg.Kafka.FlushIntervalSeconds = atoi64Or(cfg.Kafka.FlushIntervalSeconds, v)
	}
	if v := os.Getenv("NODE_SIGNER_KEY_HEX"); v != "" {
		cfg.Node.SignerKeyHex = v
	}
	if v := os.Getenv("NODE_CONFIDENCE_BPS"); v != "" {
		cfg.Node.ConfidenceBps = atou32Or(cfg.Node.ConfidenceBps, v)
	}
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func atou32Or(fallback uint32, v string) uint32 {
	i, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fallback
	}
	return uint32(i)
}
