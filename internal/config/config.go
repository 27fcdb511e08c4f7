// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // product cache entries
}

type StripeConfig struct {
	DefaultCurrency string        `yaml:"default_currency"`
	Timeout         time.Duration `yaml:"timeout"`
	RegistrySize    int           `yaml:"registry_size"` // cached per-server clients
	RegistryTTL     time.Duration `yaml:"registry_ttl"`
	// DevSecret enables the HMAC development gateway instead of Stripe. Never set in production.
	DevSecret string `yaml:"dev_secret"`
}

type DiscordConfig struct {
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	TLS      bool   `yaml:"tls"`
}

// Enabled reports whether the e-mail fallback channel is configured.
func (e EmailConfig) Enabled() bool { return e.Host != "" && e.From != "" }

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"` // operator chat receiving alerts
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type DeliveryConfig struct {
	Workers           int           `yaml:"workers"`
	QueueSize         int           `yaml:"queue_size"`
	Timeout           time.Duration `yaml:"timeout"` // per external call
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	ReconcileAge      time.Duration `yaml:"reconcile_age"` // only orders idle this long are retried
	LockTTL           time.Duration `yaml:"lock_ttl"`
	RoleCheckInterval time.Duration `yaml:"role_check_interval"`
	Locale            string        `yaml:"locale"` // buyer notice language
}

type ReviewConfig struct {
	Secret  string        `yaml:"secret"`
	BaseURL string        `yaml:"base_url"`
	TTL     time.Duration `yaml:"ttl"`
}

type SecurityConfig struct {
	// EncryptionKey seals per-server payment credentials at rest; 16, 24 or 32 bytes.
	EncryptionKey string `yaml:"encryption_key"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type CommissionConfig struct {
	DefaultRate decimal.Decimal `yaml:"default_rate"`
}

type PurchaseConfig struct {
	RateLimit  int           `yaml:"rate_limit"` // purchases per window per buyer, 0 disables
	RateWindow time.Duration `yaml:"rate_window"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Stripe     StripeConfig     `yaml:"stripe"`
	Discord    DiscordConfig    `yaml:"discord"`
	Email      EmailConfig      `yaml:"email"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Review     ReviewConfig     `yaml:"review"`
	Admin      AdminConfig      `yaml:"admin"`
	Security   SecurityConfig   `yaml:"security"`
	Commission CommissionConfig `yaml:"commission"`
	Purchase   PurchaseConfig   `yaml:"purchase"`

	Runtime RuntimeConfig `yaml:"-"`
}

// EnvPrefix prefixes every environment override, e.g. STOREFRONT_DATABASE_URL.
const EnvPrefix = "STOREFRONT_"

// LoadConfig reads .env (if present), the YAML file at path, then environment overrides.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL, 5*time.Minute)

	if cfg.Stripe.DefaultCurrency == "" {
		cfg.Stripe.DefaultCurrency = "usd"
	}
	cfg.Stripe.Timeout = normalizeTTL(cfg.Stripe.Timeout, 10*time.Second)
	if cfg.Stripe.RegistrySize <= 0 {
		cfg.Stripe.RegistrySize = 256
	}
	cfg.Stripe.RegistryTTL = normalizeTTL(cfg.Stripe.RegistryTTL, time.Hour)
	cfg.Discord.Timeout = normalizeTTL(cfg.Discord.Timeout, 10*time.Second)
	if cfg.Email.Port <= 0 {
		cfg.Email.Port = 587
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "storefront.orders"
	}

	if cfg.Delivery.Workers <= 0 {
		cfg.Delivery.Workers = 4
	}
	if cfg.Delivery.QueueSize <= 0 {
		cfg.Delivery.QueueSize = 256
	}
	cfg.Delivery.Timeout = normalizeTTL(cfg.Delivery.Timeout, 10*time.Second)
	cfg.Delivery.ReconcileInterval = normalizeTTL(cfg.Delivery.ReconcileInterval, time.Minute)
	cfg.Delivery.ReconcileAge = normalizeTTL(cfg.Delivery.ReconcileAge, 2*time.Minute)
	cfg.Delivery.LockTTL = normalizeTTL(cfg.Delivery.LockTTL, 30*time.Second)
	cfg.Delivery.RoleCheckInterval = normalizeTTL(cfg.Delivery.RoleCheckInterval, 5*time.Minute)
	if cfg.Delivery.Locale == "" {
		cfg.Delivery.Locale = "en"
	}

	cfg.Review.TTL = normalizeTTL(cfg.Review.TTL, 30*24*time.Hour)
	if cfg.Purchase.RateWindow <= 0 {
		cfg.Purchase.RateWindow = time.Minute
	}
}

// Validate is the minimal check needed to start the server.
func (cfg *Config) Validate() error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Discord.Token == "" {
		return errors.New("discord.token is required")
	}
	if cfg.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required")
	}
	if cfg.Review.Secret == "" {
		return errors.New("review.secret is required")
	}
	if k := len(cfg.Security.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return errors.New("security.encryption_key must be 16, 24 or 32 bytes")
	}
	if r := cfg.Commission.DefaultRate; r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("commission.default_rate must be within [0, 1]")
	}
	return nil
}

// applyEnv overrides secrets and endpoints from STOREFRONT_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"LOG_LEVEL":         &cfg.Log.Level,
		"DATABASE_URL":      &cfg.Database.URL,
		"REDIS_URL":         &cfg.Redis.URL,
		"REDIS_PASSWORD":    &cfg.Redis.Password,
		"STRIPE_DEV_SECRET": &cfg.Stripe.DevSecret,
		"DISCORD_TOKEN":     &cfg.Discord.Token,
		"EMAIL_HOST":        &cfg.Email.Host,
		"EMAIL_USERNAME":    &cfg.Email.Username,
		"EMAIL_PASSWORD":    &cfg.Email.Password,
		"EMAIL_FROM":        &cfg.Email.From,
		"TELEGRAM_TOKEN":    &cfg.Telegram.Token,
		"KAFKA_TOPIC":       &cfg.Kafka.Topic,
		"REVIEW_SECRET":     &cfg.Review.Secret,
		"REVIEW_BASE_URL":   &cfg.Review.BaseURL,
		"ADMIN_JWT_SECRET":  &cfg.Admin.JWTSecret,
		"ENCRYPTION_KEY":    &cfg.Security.EncryptionKey,
	}
	for k, dst := range str {
		if v, ok := lookup(EnvPrefix + k); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "KAFKA_BROKERS"); ok && v != "" {
		cfg.Kafka.Brokers = splitCSV(v)
	}
	if v, ok := lookup(EnvPrefix + "HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHTTP_PORT: %w", EnvPrefix, err)
		}
		cfg.HTTP.Port = port
	}
	if v, ok := lookup(EnvPrefix + "TELEGRAM_CHAT_ID"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sTELEGRAM_CHAT_ID: %w", EnvPrefix, err)
		}
		cfg.Telegram.ChatID = id
	}
	if v, ok := lookup(EnvPrefix + "COMMISSION_DEFAULT_RATE"); ok && v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("%sCOMMISSION_DEFAULT_RATE: %w", EnvPrefix, err)
		}
		cfg.Commission.DefaultRate = rate
	}
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
