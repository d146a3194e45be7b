package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jinzhu/copier"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/tendant/simple-auth/pkg/notification"
)

// Persistence backends understood by the repository factories.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// JWTConfig has no default secret; an unset JWT_SECRET fails Validate.
type JWTConfig struct {
	Secret string `env:"JWT_SECRET"`
	// Session cookies are always HttpOnly. Secure may be turned off for
	// local development over plain HTTP.
	CookieSecure bool          `env:"COOKIE_SECURE" env-default:"true"`
	TokenExpiry  time.Duration `env:"TOKEN_EXPIRY" env-default:"10m"`
	Issuer       string        `env:"JWT_ISSUER" env-default:"simple-auth"`
	Audience     string        `env:"JWT_AUDIENCE"`
}

// placeholderSecrets are well-known sample values that must never sign tokens.
var placeholderSecrets = []string{"very-secure-jwt-secret", "secret", "changeme"}

type LoginConfig struct {
	// Reject logout of a token that is already banned.
	LogoutBanCheck bool          `env:"LOGOUT_BAN_CHECK" env-default:"true"`
	ChallengeTTL   time.Duration `env:"TWOFA_CHALLENGE_TTL" env-default:"10m"`
}

type PersistenceConfig struct {
	UserStore  string `env:"USER_STORE" env-default:"memory"`
	TokenStore string `env:"TOKEN_STORE" env-default:"memory"`
	TwoFAStore string `env:"TWOFA_STORE" env-default:"memory"`
	DataDir    string `env:"DATA_DIR" env-default:"./data"`
}

// UsesRedis reports whether any store is backed by redis.
func (p PersistenceConfig) UsesRedis() bool {
	return p.TokenStore == StoreRedis || p.TwoFAStore == StoreRedis
}

// DatabaseConfig holds PostgreSQL settings for the user store.
type DatabaseConfig struct {
	Host     string `env:"AUTH_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"AUTH_PG_PORT" env-default:"5432"`
	Database string `env:"AUTH_PG_DATABASE" env-default:"auth_db"`
	User     string `env:"AUTH_PG_USER" env-default:"auth"`
	Password string `env:"AUTH_PG_PASSWORD" env-default:"pwd"`
}

// ToDbConfig copies the matching fields into a db-utils DbConfig.
func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	var dbConfig dbutils.DbConfig
	if err := copier.Copy(&dbConfig, d); err != nil {
		slog.Warn("Failed to copy database config", "err", err)
	}
	return dbConfig
}

type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB" env-default:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" env-default:"simple-auth"`
}

// Prefix namespaces a store's keys under KeyPrefix.
func (r RedisConfig) Prefix(store string) string {
	if r.KeyPrefix == "" {
		return store
	}
	return r.KeyPrefix + ":" + store
}

// EmailConfig holds SMTP settings. With Enabled off, 2FA codes are written
// to the log instead of being mailed.
type EmailConfig struct {
	Enabled  bool   `env:"EMAIL_ENABLED" env-default:"false"`
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME"`
	Password string `env:"EMAIL_PASSWORD"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}

type PasswordConfig struct {
	Algorithm  string `env:"PASSWORD_HASH_ALGORITHM" env-default:"bcrypt"`
	BcryptCost int    `env:"PASSWORD_BCRYPT_COST" env-default:"10"`
}

type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" env-default:"development"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
}

// SlogLevel maps Level onto slog, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type Config struct {
	AppConfig   app.AppConfig
	JWT         JWTConfig
	Login       LoginConfig
	Persistence PersistenceConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Email       EmailConfig
	Password    PasswordConfig
	Sentry      SentryConfig
	Log         LogConfig
}

// Load reads envFile into the process environment when it exists and then
// fills a Config from the environment. A missing envFile is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			slog.Info("Loading configuration from .env file", "path", envFile)
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail at first use.
func (c Config) Validate() error {
	return Validate(
		func() ValidationErrors {
			return CollectErrors(
				RequireSigningSecret("JWT_SECRET", c.JWT.Secret),
				RequirePositiveDuration("TOKEN_EXPIRY", c.JWT.TokenExpiry),
				RequireNonNegativeDuration("TWOFA_CHALLENGE_TTL", c.Login.ChallengeTTL),
				RequireOneOf("USER_STORE", c.Persistence.UserStore, StoreMemory, StoreFile, StorePostgres),
				RequireOneOf("TOKEN_STORE", c.Persistence.TokenStore, StoreMemory, StoreRedis),
				RequireOneOf("TWOFA_STORE", c.Persistence.TwoFAStore, StoreMemory, StoreFile, StoreRedis),
				RequireOneOf("PASSWORD_HASH_ALGORITHM", c.Password.Algorithm, "bcrypt", "argon2"),
			)
		},
		func() ValidationErrors {
			if c.Persistence.UserStore != StoreFile && c.Persistence.TwoFAStore != StoreFile {
				return nil
			}
			return CollectErrors(RequireNonEmpty("DATA_DIR", c.Persistence.DataDir))
		},
		func() ValidationErrors {
			if !c.Email.Enabled {
				return nil
			}
			return CollectErrors(
				RequireNonEmpty("EMAIL_HOST", c.Email.Host),
				RequireValidPort("EMAIL_PORT", c.Email.Port),
				RequireNonEmpty("EMAIL_FROM", c.Email.From),
			)
		},
	)
}
