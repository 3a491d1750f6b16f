package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PRESALEBOT_* environment variable overrides, and
// returns the final Config. A missing file is not an error so the bot can be
// configured from the environment alone. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PRESALEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "PRESALEBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.PrivateKey, "PKEY") // hardhat .env compatibility
	setStr(&cfg.Wallet.EncryptedKeyPath, "PRESALEBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "PRESALEBOT_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "PRESALEBOT_CHAIN_RPC_URL")
	setStr(&cfg.Chain.RPCURL, "ROPSTEN_URL") // hardhat .env compatibility
	setInt64(&cfg.Chain.ChainID, "PRESALEBOT_CHAIN_ID")
	setStr(&cfg.Chain.NetworkName, "PRESALEBOT_CHAIN_NETWORK_NAME")

	// ── Contract / sale ──
	setStr(&cfg.Contract.Address, "PRESALEBOT_CONTRACT_ADDRESS")
	setStr(&cfg.Contract.Address, "NFT_CONTRACT_ADDRESS")
	setStr(&cfg.Sale.MintPriceWei, "PRESALEBOT_SALE_MINT_PRICE_WEI")
	setDuration(&cfg.Sale.ConfirmWait, "PRESALEBOT_SALE_CONFIRM_WAIT")
	setDuration(&cfg.Sale.LockTTL, "PRESALEBOT_SALE_LOCK_TTL")

	// ── Poll ──
	setDuration(&cfg.Poll.Interval, "PRESALEBOT_POLL_INTERVAL")
	setDuration(&cfg.Poll.CallTimeout, "PRESALEBOT_POLL_CALL_TIMEOUT")

	// ── Metadata ──
	setStr(&cfg.Metadata.NamePrefix, "PRESALEBOT_METADATA_NAME_PREFIX")
	setStr(&cfg.Metadata.Description, "PRESALEBOT_METADATA_DESCRIPTION")
	setStr(&cfg.Metadata.ImageBase, "PRESALEBOT_METADATA_IMAGE_BASE")
	setInt(&cfg.Metadata.MaxTokens, "PRESALEBOT_METADATA_MAX_TOKENS")
	setStr(&cfg.Metadata.S3Prefix, "PRESALEBOT_METADATA_S3_PREFIX")

	// ── Deploy ──
	setStr(&cfg.Deploy.ArtifactPath, "PRESALEBOT_DEPLOY_ARTIFACT_PATH")
	setStr(&cfg.Deploy.WhitelistAddress, "PRESALEBOT_DEPLOY_WHITELIST_ADDRESS")
	setStr(&cfg.Deploy.WhitelistAddress, "WHITELIST_CONTRACT_ADDRESS")
	setStr(&cfg.Deploy.MetadataURL, "PRESALEBOT_DEPLOY_METADATA_URL")
	setStr(&cfg.Deploy.MetadataURL, "METADATA_URL")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "PRESALEBOT_SUPABASE_DSN")
	setStr(&cfg.Supabase.Host, "PRESALEBOT_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "PRESALEBOT_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "PRESALEBOT_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "PRESALEBOT_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "PRESALEBOT_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "PRESALEBOT_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "PRESALEBOT_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "PRESALEBOT_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "PRESALEBOT_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PRESALEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PRESALEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PRESALEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PRESALEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PRESALEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PRESALEBOT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.StatusTTL, "PRESALEBOT_REDIS_STATUS_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PRESALEBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PRESALEBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "PRESALEBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PRESALEBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PRESALEBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PRESALEBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PRESALEBOT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PRESALEBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PRESALEBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PRESALEBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PRESALEBOT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "PRESALEBOT_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "PRESALEBOT_SERVER_RATE_WINDOW")
	setBool(&cfg.Server.AllowActions, "PRESALEBOT_SERVER_ALLOW_ACTIONS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PRESALEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PRESALEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PRESALEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PRESALEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.TUI.LogPath, "PRESALEBOT_TUI_LOG_PATH")
	setStr(&cfg.Mode, "PRESALEBOT_MODE")
	setStr(&cfg.Action, "PRESALEBOT_ACTION")
	setStr(&cfg.LogLevel, "PRESALEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
