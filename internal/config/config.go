// Package config loads and validates bot configuration. Values come
// from environment variables, typically via a .env file loaded at
// startup. The wallet secret stays an env-only value and is never
// written anywhere.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Env var names.
const (
	EnvRPCEndpoint    = "SOLANA_NODE_RPC_ENDPOINT"
	EnvWSSEndpoint    = "SOLANA_NODE_WSS_ENDPOINT"
	EnvGeyserEndpoint = "GEYSER_WSS_ENDPOINT"
	EnvPrivateKey     = "SOLANA_PRIVATE_KEY"
	EnvPostgresDSN    = "POSTGRES_DSN"
	EnvClickhouseDSN  = "CLICKHOUSE_DSN"
)

// Config is the full bot configuration.
type Config struct {
	// Connection
	RPCEndpoint    string
	WSSEndpoint    string
	GeyserEndpoint string
	MaxRPS         int

	// Detection
	ListenerTypes     []string // "logs", "blocks", "geyser"; several enable merge
	MatchString       string
	CreatorAddress    string
	MaxTokenAge       time.Duration
	WaitAfterCreation time.Duration

	// Filter
	MinCurveProgress float64 // percent
	MaxCurveProgress float64

	// Trade
	BuyAmountSOL float64
	BuySlippage  float64
	SellSlippage float64
	MaxAttempts  int
	MaxPositions int // per-session cap, 0 = unlimited

	// Priority fees, microlamports per compute unit
	BasePriorityFee uint64
	MaxPriorityFee  uint64

	// Exit
	TakeProfit      float64 // 0.5 = +50%
	StopLoss        float64
	ExitMaxProgress float64
	MaxHold         time.Duration
	PollInterval    time.Duration

	// Storage, optional
	PostgresDSN   string
	ClickhouseDSN string

	// Observability
	MetricsAddr string
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		MaxRPS:            10,
		ListenerTypes:     []string{"logs"},
		MaxTokenAge:       15 * time.Second,
		WaitAfterCreation: 2 * time.Second,
		MinCurveProgress:  0,
		MaxCurveProgress:  100,
		BuyAmountSOL:      0.1,
		BuySlippage:       0.25,
		SellSlippage:      0.25,
		MaxAttempts:       3,
		MaxPositions:      5,
		BasePriorityFee:   100_000,
		MaxPriorityFee:    2_000_000,
		TakeProfit:        0.5,
		StopLoss:          0.2,
		ExitMaxProgress:   85,
		MaxHold:           2 * time.Minute,
		PollInterval:      5 * time.Second,
		MetricsAddr:       ":9090",
	}
}

// Load builds the configuration from the environment on top of defaults.
func Load() (Config, error) {
	cfg := Default()

	cfg.RPCEndpoint = os.Getenv(EnvRPCEndpoint)
	cfg.WSSEndpoint = os.Getenv(EnvWSSEndpoint)
	cfg.GeyserEndpoint = os.Getenv(EnvGeyserEndpoint)
	cfg.PostgresDSN = os.Getenv(EnvPostgresDSN)
	cfg.ClickhouseDSN = os.Getenv(EnvClickhouseDSN)

	var err error
	if err = envInt("MAX_RPS", &cfg.MaxRPS); err != nil {
		return cfg, err
	}
	if v := os.Getenv("LISTENER_TYPE"); v != "" {
		cfg.ListenerTypes = splitList(v)
	}
	cfg.MatchString = os.Getenv("MATCH_STRING")
	cfg.CreatorAddress = os.Getenv("CREATOR_ADDRESS")

	if err = envDuration("MAX_TOKEN_AGE", &cfg.MaxTokenAge); err != nil {
		return cfg, err
	}
	if err = envDuration("WAIT_AFTER_CREATION", &cfg.WaitAfterCreation); err != nil {
		return cfg, err
	}
	if err = envFloat("MIN_CURVE_PROGRESS", &cfg.MinCurveProgress); err != nil {
		return cfg, err
	}
	if err = envFloat("MAX_CURVE_PROGRESS", &cfg.MaxCurveProgress); err != nil {
		return cfg, err
	}
	if err = envFloat("BUY_AMOUNT_SOL", &cfg.BuyAmountSOL); err != nil {
		return cfg, err
	}
	if err = envFloat("BUY_SLIPPAGE", &cfg.BuySlippage); err != nil {
		return cfg, err
	}
	if err = envFloat("SELL_SLIPPAGE", &cfg.SellSlippage); err != nil {
		return cfg, err
	}
	if err = envInt("MAX_ATTEMPTS", &cfg.MaxAttempts); err != nil {
		return cfg, err
	}
	if err = envInt("MAX_POSITIONS", &cfg.MaxPositions); err != nil {
		return cfg, err
	}
	if err = envUint64("BASE_PRIORITY_FEE", &cfg.BasePriorityFee); err != nil {
		return cfg, err
	}
	if err = envUint64("MAX_PRIORITY_FEE", &cfg.MaxPriorityFee); err != nil {
		return cfg, err
	}
	if err = envFloat("TAKE_PROFIT", &cfg.TakeProfit); err != nil {
		return cfg, err
	}
	if err = envFloat("STOP_LOSS", &cfg.StopLoss); err != nil {
		return cfg, err
	}
	if err = envFloat("EXIT_MAX_PROGRESS", &cfg.ExitMaxProgress); err != nil {
		return cfg, err
	}
	if err = envDuration("MAX_HOLD", &cfg.MaxHold); err != nil {
		return cfg, err
	}
	if err = envDuration("POLL_INTERVAL", &cfg.PollInterval); err != nil {
		return cfg, err
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	return cfg, cfg.Validate()
}

// PrivateKey reads the wallet secret from the environment. Callers must
// not log or store the returned value.
func PrivateKey() (string, error) {
	key := os.Getenv(EnvPrivateKey)
	if key == "" {
		return "", fmt.Errorf("%s is not set", EnvPrivateKey)
	}
	return key, nil
}

// Validate checks value ranges and cross-field consistency.
func (c Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("%s is required", EnvRPCEndpoint)
	}

	needsWS := false
	for _, lt := range c.ListenerTypes {
		switch lt {
		case "logs", "blocks":
			needsWS = true
		case "geyser":
			if c.GeyserEndpoint == "" {
				return fmt.Errorf("listener type geyser requires %s", EnvGeyserEndpoint)
			}
		default:
			return fmt.Errorf("unknown listener type %q", lt)
		}
	}
	if len(c.ListenerTypes) == 0 {
		return fmt.Errorf("at least one listener type is required")
	}
	if needsWS && c.WSSEndpoint == "" {
		return fmt.Errorf("%s is required for logs and blocks listeners", EnvWSSEndpoint)
	}

	if c.BuyAmountSOL <= 0 {
		return fmt.Errorf("buy amount must be positive, got %g", c.BuyAmountSOL)
	}
	if c.BuySlippage < 0 || c.BuySlippage > 1 {
		return fmt.Errorf("buy slippage must be within [0, 1], got %g", c.BuySlippage)
	}
	if c.SellSlippage < 0 || c.SellSlippage > 1 {
		return fmt.Errorf("sell slippage must be within [0, 1], got %g", c.SellSlippage)
	}
	if c.TakeProfit < 0 || c.TakeProfit > 10 {
		return fmt.Errorf("take profit must be within [0, 10], got %g", c.TakeProfit)
	}
	if c.StopLoss < 0 || c.StopLoss > 1 {
		return fmt.Errorf("stop loss must be within [0, 1], got %g", c.StopLoss)
	}
	if c.MinCurveProgress < 0 || c.MaxCurveProgress > 100 || c.MinCurveProgress > c.MaxCurveProgress {
		return fmt.Errorf("curve progress window [%g, %g] must sit within [0, 100]",
			c.MinCurveProgress, c.MaxCurveProgress)
	}
	if c.ExitMaxProgress < 0 || c.ExitMaxProgress > 100 {
		return fmt.Errorf("exit progress must be within [0, 100], got %g", c.ExitMaxProgress)
	}
	if c.MaxAttempts <= 0 || c.MaxAttempts > 100 {
		return fmt.Errorf("max attempts must be within [1, 100], got %d", c.MaxAttempts)
	}
	if c.MaxRPS < 0 {
		return fmt.Errorf("max rps must not be negative, got %d", c.MaxRPS)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}

	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func envUint64(name string, dst *uint64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func envFloat(name string, dst *float64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = f
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
