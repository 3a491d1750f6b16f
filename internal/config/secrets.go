package config

import (
	"net/url"
	"slices"
)

const redacted = "***"

// secretFields lists every field of c that carries a credential: the wallet
// key and its password, database and cache passwords, object storage keys,
// the API key and the notification tokens.
func secretFields(c *Config) []*string {
	return []*string{
		&c.Wallet.PrivateKey,
		&c.Wallet.KeyPassword,
		&c.Supabase.DSN,
		&c.Supabase.Password,
		&c.Redis.Password,
		&c.S3.AccessKey,
		&c.S3.SecretKey,
		&c.Server.APIKey,
		&c.Notify.TelegramToken,
		&c.Notify.DiscordWebhookURL,
	}
}

// RedactedConfig returns a copy of cfg that is safe to log. Secret fields
// become "***" and the RPC URL keeps only its scheme and host, since hosted
// providers put the project key in the path or query.
func RedactedConfig(cfg *Config) Config {
	out := *cfg
	for _, f := range secretFields(&out) {
		if *f != "" {
			*f = redacted
		}
	}
	out.Chain.RPCURL = redactURL(cfg.Chain.RPCURL)

	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	return out
}

// redactURL drops credentials, path and query from raw. Unparseable values
// are replaced entirely.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}
	if u.User == nil && (u.Path == "" || u.Path == "/") && u.RawQuery == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host + "/" + redacted
}
