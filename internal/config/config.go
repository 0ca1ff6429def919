// Package config defines all configuration for the ladder market-making bot.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via POLY_* environment variables, and
// strategy tuning overridable via STRATEGY_* env vars.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun   bool           `mapstructure:"dry_run"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	API      APIConfig      `mapstructure:"api"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Health   HealthConfig   `mapstructure:"health"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys.
// FunderAddress is the on-chain address that funds orders (may differ from signer if using a proxy).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds Polymarket API endpoints and optional pre-derived L2 credentials.
// If ApiKey/Secret/Passphrase are empty, the bot derives them via L1 auth on startup.
type APIConfig struct {
	CLOBBaseURL  string `mapstructure:"clob_base_url"`
	GammaBaseURL string `mapstructure:"gamma_base_url"`
	ApiKey       string `mapstructure:"api_key"`
	Secret       string `mapstructure:"secret"`
	Passphrase   string `mapstructure:"passphrase"`
}

// StrategyConfig tunes the per-event ladder Strategy Engine.
//
//   - LadderLevels: ordered ascending buy prices in dollars (e.g. 0.40…0.48).
//   - ExitPrices: quantised entry price (2 decimals, as a string key such as
//     "0.44") to exit price. Every ladder level must have an entry; a miss at
//     runtime falls back to the highest configured exit price with a warning.
//   - OrderSize: initial per-rung buy size, in shares.
//   - StopLossPrice: best-bid threshold that triggers the stop-loss monitor.
//   - StopLossEntries: the quantised entry prices the stop-loss protects.
//   - MinNotional: exchange-enforced minimum price*size per order.
//   - MinShares: defensive minimum share count per sell order.
//   - HighPriorityThreshold: price at/above which a buy is checked every
//     tick regardless of whether it's in the open-orders snapshot.
//   - PollInterval: orchestrator tick interval.
//   - ScannerInterval: not read; the Event Scanner's re-scan cadence is
//     ScannerConfig.ScanInterval.
//   - HeartbeatInterval: how often a heartbeat is logged.
//   - MaxReloadsPerRung: cap on reload cycles per rung per event.
//   - MaxConcurrentEvents: cap on events processed per tick.
type StrategyConfig struct {
	LadderLevels           []float64          `mapstructure:"ladder_levels"`
	ExitPrices             map[string]float64 `mapstructure:"exit_prices"`
	OrderSize              float64            `mapstructure:"order_size"`
	StopLossPrice          float64            `mapstructure:"stop_loss_price"`
	StopLossEntries        []float64          `mapstructure:"stop_loss_entries"`
	MinNotional            float64            `mapstructure:"min_notional"`
	MinShares              float64            `mapstructure:"min_shares"`
	HighPriorityThreshold  float64            `mapstructure:"high_priority_threshold"`
	PollInterval           time.Duration      `mapstructure:"poll_interval"`
	ScannerInterval        time.Duration      `mapstructure:"scanner_interval"`
	HeartbeatInterval      time.Duration      `mapstructure:"heartbeat_interval"`
	MaxReloadsPerRung      int                `mapstructure:"max_reloads_per_rung"`
	MaxConcurrentEvents    int                `mapstructure:"max_concurrent_events"`
	ApiFailAlertThreshold  int                `mapstructure:"api_fail_alert_threshold"`  // consecutive get_order failures before alerting, default 20
	PendingSellMaxAttempts int                `mapstructure:"pending_sell_max_attempts"` // default 10 (60 on settlement delay)
}

// ScannerConfig controls how the Event Scanner discovers hourly markets via
// deterministic slug generation against a lookahead window.
type ScannerConfig struct {
	GammaBaseURL   string        `mapstructure:"gamma_base_url"`
	LookaheadHours int           `mapstructure:"lookahead_hours"` // default 23
	SlugPrefix     string        `mapstructure:"slug_prefix"`     // e.g. "bitcoin-up-or-down"
	ScanInterval   time.Duration `mapstructure:"scan_interval"`
}

// NotifierConfig holds Telegram Bot API credentials for best-effort
// operator notifications.
type NotifierConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HealthConfig controls the liveness-probe HTTP server. It MUST NOT be
// wired to engine state.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: POLY_PRIVATE_KEY, POLY_API_KEY,
// POLY_API_SECRET, POLY_PASSPHRASE. Strategy tuning overrides use
// STRATEGY_ORDER_SIZE, STRATEGY_STOP_LOSS_PRICE, etc.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env.
	if key := os.Getenv("POLY_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("POLY_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("POLY_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("POLY_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if funder := os.Getenv("POLY_FUNDER_ADDRESS"); funder != "" {
		cfg.Wallet.FunderAddress = funder
	}
	if os.Getenv("POLY_DRY_RUN") == "true" || os.Getenv("POLY_DRY_RUN") == "1" {
		cfg.DryRun = true
	}
	if token := os.Getenv("NOTIFIER_BOT_TOKEN"); token != "" {
		cfg.Notifier.BotToken = token
	}
	if chat := os.Getenv("NOTIFIER_CHAT_ID"); chat != "" {
		cfg.Notifier.ChatID = chat
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Strategy.PollInterval == 0 {
		cfg.Strategy.PollInterval = 500 * time.Millisecond
	}
	if cfg.Strategy.ScannerInterval == 0 {
		cfg.Strategy.ScannerInterval = time.Minute
	}
	if cfg.Strategy.HeartbeatInterval == 0 {
		cfg.Strategy.HeartbeatInterval = 30 * time.Second
	}
	if cfg.Strategy.ApiFailAlertThreshold == 0 {
		cfg.Strategy.ApiFailAlertThreshold = 20
	}
	if cfg.Strategy.PendingSellMaxAttempts == 0 {
		cfg.Strategy.PendingSellMaxAttempts = 10
	}
	if cfg.Strategy.MaxReloadsPerRung == 0 {
		cfg.Strategy.MaxReloadsPerRung = 5
	}
	if cfg.Strategy.MaxConcurrentEvents == 0 {
		cfg.Strategy.MaxConcurrentEvents = 10
	}
	if cfg.Strategy.MinShares == 0 {
		cfg.Strategy.MinShares = 5
	}
	if cfg.Scanner.LookaheadHours == 0 {
		cfg.Scanner.LookaheadHours = 23
	}
	if cfg.Scanner.SlugPrefix == "" {
		cfg.Scanner.SlugPrefix = "bitcoin-up-or-down"
	}
	if cfg.Scanner.ScanInterval == 0 {
		cfg.Scanner.ScanInterval = time.Minute
	}
	if cfg.Health.Port == 0 {
		cfg.Health.Port = 8080
	}
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set POLY_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required (137 for mainnet)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.API.GammaBaseURL == "" {
		return fmt.Errorf("api.gamma_base_url is required")
	}
	if len(c.Strategy.LadderLevels) == 0 {
		return fmt.Errorf("strategy.ladder_levels must have at least one level")
	}
	if c.Strategy.OrderSize <= 0 {
		return fmt.Errorf("strategy.order_size must be > 0")
	}
	if c.Strategy.MinNotional <= 0 {
		return fmt.Errorf("strategy.min_notional must be > 0")
	}
	if c.Strategy.MinShares <= 0 {
		return fmt.Errorf("strategy.min_shares must be > 0")
	}
	if len(c.Strategy.ExitPrices) == 0 {
		return fmt.Errorf("strategy.exit_prices must map every ladder level to an exit price")
	}
	return nil
}
