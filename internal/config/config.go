// Package config loads broker configuration from environment variables.
package config

import (
	"encoding/base64"
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Secrets (provider client secret, encryption key,
// admin password hash) are injected here and passed explicitly into the
// components that need them; nothing reads the environment past startup.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	DBMaxOpenConns int // connection pool size (0 = driver package default)
	DBMaxIdleConns int // idle connection pool size (0 = follow DBMaxOpenConns)

	ProviderAuthorizeURL string // identity provider authorization endpoint
	ProviderTokenURL     string // identity provider token endpoint
	ProviderProfileURL   string // identity provider profile endpoint
	ProviderClientID     string // OAuth client id registered at the provider
	ProviderClientSecret string // OAuth client secret; never leaves this process
	ProviderRedirectURI  string // callback URI registered at the provider
	ProviderUserAgent    string // User-Agent required by the provider API

	EncryptionKey []byte // 32-byte AES key for sealing tokens at rest

	SessionTTLHours    int // session lifetime (default 720h = 30 days)
	StateTTLMin        int // CSRF state lifetime in minutes
	ExchangeTTLMin     int // exchange code lifetime in minutes
	RefreshSkewSec     int // refresh this many seconds before token expiry
	FrontendCallback   string // where the callback redirects the browser
	AdminUsername      string // admin Basic Auth username
	AdminPasswordHash  string // bcrypt hash of the admin password
	AdminJWTSecret     string // secret signing short-lived admin bearer tokens
	AdminTokenTTLMin   int    // admin bearer token lifetime in minutes
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:  getenv("APP_ENV", "dev"),
		Port: getenv("APP_PORT", "8000"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		DBMaxOpenConns: atoiDefault("DB_MAX_OPEN_CONNS", 0),
		DBMaxIdleConns: atoiDefault("DB_MAX_IDLE_CONNS", 0),

		ProviderAuthorizeURL: must("PROVIDER_AUTHORIZE_URL"),
		ProviderTokenURL:     must("PROVIDER_TOKEN_URL"),
		ProviderProfileURL:   must("PROVIDER_PROFILE_URL"),
		ProviderClientID:     must("PROVIDER_CLIENT_ID"),
		ProviderClientSecret: must("PROVIDER_CLIENT_SECRET"),
		ProviderRedirectURI:  must("PROVIDER_REDIRECT_URI"),
		ProviderUserAgent:    getenv("PROVIDER_USER_AGENT", "credbroker/1.0"),

		EncryptionKey: mustKey("ENCRYPTION_KEY"),

		SessionTTLHours:   atoiDefault("SESSION_TTL_HOURS", 720),
		StateTTLMin:       atoiDefault("OAUTH_STATE_TTL_MIN", 10),
		ExchangeTTLMin:    atoiDefault("EXCHANGE_CODE_TTL_MIN", 5),
		RefreshSkewSec:    atoiDefault("TOKEN_REFRESH_SKEW_SEC", 60),
		FrontendCallback:  must("FRONTEND_CALLBACK_URL"),
		AdminUsername:     getenv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: must("ADMIN_PASSWORD_HASH"),
		AdminJWTSecret:    must("ADMIN_JWT_SECRET"),
		AdminTokenTTLMin:  atoiDefault("ADMIN_TOKEN_TTL_MIN", 60),
	}
}

// LoadBcryptCost reads the cost used when hashing new admin credentials.
// It lives outside Load so the hashsecret tool can run without the rest of
// the server environment.
func LoadBcryptCost() int {
	return atoiDefault("BCRYPT_COST", 12)
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustKey decodes a required base64 environment variable into a 32-byte
// AES key. Anything else is a fatal misconfiguration: refusing to start
// beats silently sealing tokens with a weak key.
func mustKey(key string) []byte {
	raw, err := base64.StdEncoding.DecodeString(must(key))
	if err != nil {
		log.Fatalf("invalid base64 for %s: %v", key, err)
	}
	if len(raw) != 32 {
		log.Fatalf("%s must decode to 32 bytes, got %d", key, len(raw))
	}
	return raw
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDefault(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
