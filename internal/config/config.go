package config

import (
	"strings"
	"time"

	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/types"
	"github.com/spf13/viper"
)

// Configuration is the process-wide configuration, loaded once at startup and
// passed by dependency injection. There are no hidden globals.
type Configuration struct {
	Deployment   DeploymentConfig   `mapstructure:"deployment"`
	Server       ServerConfig       `mapstructure:"server"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Stripe       StripeConfig       `mapstructure:"stripe"`
	Postgres     PostgresConfig     `mapstructure:"postgres"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
}

type DeploymentConfig struct {
	Mode string `mapstructure:"mode"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// WebhookTimeout bounds total processing of a single inbound billing
	// event; on expiry the handler returns 5xx so the processor redelivers.
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	// SignatureTolerance is the replay-protection window for webhook
	// signatures.
	SignatureTolerance time.Duration `mapstructure:"signature_tolerance"`
	// PriceIDs maps an ISO currency code to the Stripe price for the pro
	// plan in that currency.
	PriceIDs        map[string]string `mapstructure:"price_ids"`
	SuccessURL      string            `mapstructure:"success_url"`
	CancelURL       string            `mapstructure:"cancel_url"`
	PortalReturnURL string            `mapstructure:"portal_return_url"`
}

type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Type    string        `mapstructure:"type"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level"`
}

type SubscriptionConfig struct {
	TrialDuration time.Duration `mapstructure:"trial_duration"`
	// MaxWriteAttempts bounds the optimistic-concurrency retry loop on the
	// subscription record.
	MaxWriteAttempts int `mapstructure:"max_write_attempts"`
	// Prices maps an ISO currency code to the pro plan's monthly amount,
	// as a decimal string, for the pricing endpoint.
	Prices map[string]string `mapstructure:"prices"`
}

// NewConfig loads configuration from config files and environment variables.
// Environment variables use underscores, e.g. STRIPE_WEBHOOK_SECRET maps to
// stripe.webhook_secret.
func NewConfig() (*Configuration, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, ierr.WithError(err).
				WithHint("Failed to read configuration file").
				Mark(ierr.ErrValidation)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to parse configuration").
			Mark(ierr.ErrValidation)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", "api")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.webhook_timeout", 25*time.Second)
	v.SetDefault("stripe.signature_tolerance", 5*time.Minute)
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.type", "inmemory")
	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("subscription.trial_duration", types.DefaultTrialDuration)
	v.SetDefault("subscription.max_write_attempts", 3)
}

// Validate checks that the configuration required at startup is present.
func (c *Configuration) Validate() error {
	if c.Stripe.SecretKey == "" {
		return ierr.NewError("stripe.secret_key is required").
			WithHint("Stripe secret key is not configured").
			Mark(ierr.ErrValidation)
	}
	if c.Stripe.WebhookSecret == "" {
		return ierr.NewError("stripe.webhook_secret is required").
			WithHint("Stripe webhook secret is not configured").
			Mark(ierr.ErrValidation)
	}
	if c.Auth.JWTSecret == "" {
		return ierr.NewError("auth.jwt_secret is required").
			WithHint("JWT secret is not configured").
			Mark(ierr.ErrValidation)
	}
	if c.Postgres.DSN == "" {
		return ierr.NewError("postgres.dsn is required").
			WithHint("Postgres DSN is not configured").
			Mark(ierr.ErrValidation)
	}
	if c.Subscription.MaxWriteAttempts <= 0 {
		return ierr.NewError("subscription.max_write_attempts must be positive").
			WithHint("Invalid write attempt limit").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// GetDefaultConfig returns a configuration suitable for tests and scripts.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: "test"},
		Server: ServerConfig{
			Address:        ":8080",
			WebhookTimeout: 25 * time.Second,
		},
		Stripe: StripeConfig{
			SignatureTolerance: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled: true,
			Type:    "inmemory",
			TTL:     30 * time.Second,
		},
		Logging: LoggingConfig{Level: types.LogLevelInfo},
		Subscription: SubscriptionConfig{
			TrialDuration:    types.DefaultTrialDuration,
			MaxWriteAttempts: 3,
		},
	}
}
