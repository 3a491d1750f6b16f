// Package config defines the top-level configuration for presalebot and
// provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PRESALEBOT_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Chain    ChainConfig    `toml:"chain"`
	Contract ContractConfig `toml:"contract"`
	Sale     SaleConfig     `toml:"sale"`
	Poll     PollConfig     `toml:"poll"`
	Metadata MetadataConfig `toml:"metadata"`
	Deploy   DeployConfig   `toml:"deploy"`
	Supabase SupabaseConfig `toml:"supabase"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	TUI      TUIConfig      `toml:"tui"`
	Mode     string         `toml:"mode"`
	Action   string         `toml:"action"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the signing key.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig holds the JSON-RPC endpoint and the chain the wallet must be on.
type ChainConfig struct {
	RPCURL      string `toml:"rpc_url"`
	ChainID     int64  `toml:"chain_id"`
	NetworkName string `toml:"network_name"`
}

// ContractConfig identifies the deployed NFT sale contract.
type ContractConfig struct {
	Address string `toml:"address"`
}

// SaleConfig holds mint pricing.
type SaleConfig struct {
	// MintPriceWei is the value attached to presale and public mints, in wei.
	MintPriceWei string   `toml:"mint_price_wei"`
	ConfirmWait  duration `toml:"confirm_wait"`
	LockTTL      duration `toml:"lock_ttl"`
}

// PollConfig holds the refresh cadence.
type PollConfig struct {
	Interval    duration `toml:"interval"`
	CallTimeout duration `toml:"call_timeout"`
}

// MetadataConfig drives the token metadata endpoint and publisher.
type MetadataConfig struct {
	NamePrefix  string `toml:"name_prefix"`
	Description string `toml:"description"`
	ImageBase   string `toml:"image_base"`
	MaxTokens   int    `toml:"max_tokens"`
	S3Prefix    string `toml:"s3_prefix"`
}

// DeployConfig holds the inputs of a contract deployment.
type DeployConfig struct {
	ArtifactPath     string `toml:"artifact_path"`
	WhitelistAddress string `toml:"whitelist_address"`
	MetadataURL      string `toml:"metadata_url"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters. An empty
// DSN and Host disables persistence.
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether a database is configured.
func (s SupabaseConfig) Enabled() bool {
	return strings.TrimSpace(s.DSN) != "" || strings.TrimSpace(s.Host) != ""
}

// RedisConfig holds Redis connection parameters. An empty Addr disables Redis.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	StatusTTL  duration `toml:"status_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled      bool     `toml:"enabled"`
	Port         int      `toml:"port"`
	CORSOrigins  []string `toml:"cors_origins"`
	APIKey       string   `toml:"api_key"`
	RateLimit    int      `toml:"rate_limit"`
	RateWindow   duration `toml:"rate_window"`
	AllowActions bool     `toml:"allow_actions"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// TUIConfig holds terminal front end settings.
type TUIConfig struct {
	LogPath string `toml:"log_path"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:      "http://localhost:8545",
			ChainID:     3,
			NetworkName: "Ropsten",
		},
		Sale: SaleConfig{
			MintPriceWei: "10000000000000000", // 0.01 ether
			ConfirmWait:  duration{10 * time.Minute},
			LockTTL:      duration{15 * time.Minute},
		},
		Poll: PollConfig{
			Interval:    duration{5 * time.Second},
			CallTimeout: duration{20 * time.Second},
		},
		Metadata: MetadataConfig{
			NamePrefix:  "JohnnyTime",
			Description: "JohnnyTime is the collection of the JohnnyTime community",
			ImageBase:   "https://raw.githubusercontent.com/LearnWeb3DAO/NFT-Collection/main/my-app/public/cryptodevs/",
			MaxTokens:   20,
			S3Prefix:    "metadata",
		},
		Supabase: SupabaseConfig{
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			StatusTTL:  duration{10 * time.Minute},
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "presalebot-metadata",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:      true,
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000"},
			RateLimit:    60,
			RateWindow:   duration{time.Minute},
			AllowActions: false,
		},
		Notify: NotifyConfig{
			Events: []string{"presale_started", "presale_ended", "mint_confirmed", "mint_failed", "network_mismatch", "deployed"},
		},
		TUI: TUIConfig{
			LogPath: "presalebot.log",
		},
		Mode:     "watch",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"watch":   true,
	"server":  true,
	"tui":     true,
	"deploy":  true,
	"publish": true,
	"action":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validActions = map[string]bool{
	"connect":       true,
	"start_presale": true,
	"presale_mint":  true,
	"public_mint":   true,
}

// MintPrice parses Sale.MintPriceWei.
func (c *Config) MintPrice() (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(c.Sale.MintPriceWei), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("sale: mint_price_wei %q is not a non-negative integer", c.Sale.MintPriceWei)
	}
	return v, nil
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, server, tui, deploy, publish, action, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet: every mode except publish signs or reads as a wallet.
	if mode != "publish" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url must not be empty")
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, "chain: chain_id must be positive")
		}
	}

	if mode != "deploy" && mode != "publish" {
		if !common.IsHexAddress(c.Contract.Address) {
			errs = append(errs, fmt.Sprintf("contract: address %q is not a hex address", c.Contract.Address))
		}
		if _, err := c.MintPrice(); err != nil {
			errs = append(errs, err.Error())
		}
		if c.Poll.Interval.Duration <= 0 {
			errs = append(errs, "poll: interval must be > 0")
		}
	}

	if mode == "action" && !validActions[c.Action] {
		errs = append(errs, fmt.Sprintf("action: unknown action %q (valid: connect, start_presale, presale_mint, public_mint)", c.Action))
	}

	if mode == "deploy" {
		if c.Deploy.ArtifactPath == "" {
			errs = append(errs, "deploy: artifact_path must not be empty")
		}
		if !common.IsHexAddress(c.Deploy.WhitelistAddress) {
			errs = append(errs, fmt.Sprintf("deploy: whitelist_address %q is not a hex address", c.Deploy.WhitelistAddress))
		}
		if c.Deploy.MetadataURL == "" {
			errs = append(errs, "deploy: metadata_url must not be empty")
		}
	}

	if mode == "publish" {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Metadata.MaxTokens < 1 {
			errs = append(errs, "metadata: max_tokens must be >= 1")
		}
	}

	if c.Supabase.Enabled() {
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
