package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderRazorpay = "razorpay"
	ProviderStripe   = "stripe"

	MetricsCloudWatch = "cloudwatch"
	MetricsPrometheus = "prometheus"
	MetricsNone       = "none"
)

// Config is the process configuration shared by the api, worker and sweeper binaries.
type Config struct {
	AppEnv   string `mapstructure:"app_env"`
	RunLocal bool   `mapstructure:"run_local"`
	HTTPAddr string `mapstructure:"http_addr"`

	AWSRegion           string `mapstructure:"aws_region"`
	AWSEndpointOverride string `mapstructure:"aws_endpoint_override"`
	OrdersTable         string `mapstructure:"orders_table"`
	IdempotencyTable    string `mapstructure:"idempotency_table"`
	EventsQueueURL      string `mapstructure:"events_queue_url"`

	OrderWindow    time.Duration `mapstructure:"order_window"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
	Currency       string        `mapstructure:"currency"`

	Payments PaymentsConfig `mapstructure:",squash"`
	Redis    RedisConfig    `mapstructure:",squash"`
	SMTP     SMTPConfig     `mapstructure:",squash"`
	OTP      OTPConfig      `mapstructure:",squash"`
	Metrics  MetricsConfig  `mapstructure:",squash"`

	// CanteenEmails maps a canteen name to the address that receives its alerts.
	CanteenEmails map[string]string `mapstructure:"-"`
	// CORSOrigins is empty when every origin is allowed.
	CORSOrigins []string `mapstructure:"-"`
}

type PaymentsConfig struct {
	Provider              string `mapstructure:"payment_provider"`
	RazorpayKeyID         string `mapstructure:"razorpay_key_id"`
	RazorpayKeySecret     string `mapstructure:"razorpay_key_secret"`
	RazorpayWebhookSecret string `mapstructure:"razorpay_webhook_secret"`
	StripeSecretKey       string `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret   string `mapstructure:"stripe_webhook_secret"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"redis_addr"`
	Password string `mapstructure:"redis_password"`
	DB       int    `mapstructure:"redis_db"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"smtp_host"`
	Port     int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"smtp_username"`
	Password string `mapstructure:"smtp_password"`
	From     string `mapstructure:"smtp_from"`
}

type OTPConfig struct {
	TTL           time.Duration `mapstructure:"otp_ttl"`
	RatePerMinute int           `mapstructure:"otp_rate_per_minute"`
}

type MetricsConfig struct {
	Backend   string `mapstructure:"metrics_backend"`
	Namespace string `mapstructure:"metrics_namespace"`
}

var defaults = map[string]any{
	"app_env":                 "dev",
	"run_local":               false,
	"http_addr":               ":8080",
	"aws_region":              "us-east-1",
	"aws_endpoint_override":   "",
	"orders_table":            "",
	"idempotency_table":       "",
	"events_queue_url":        "",
	"order_window":            5 * time.Minute,
	"idempotency_ttl":         48 * time.Hour,
	"currency":                "INR",
	"payment_provider":        ProviderRazorpay,
	"razorpay_key_id":         "",
	"razorpay_key_secret":     "",
	"razorpay_webhook_secret": "",
	"stripe_secret_key":       "",
	"stripe_webhook_secret":   "",
	"redis_addr":              "localhost:6379",
	"redis_password":          "",
	"redis_db":                0,
	"smtp_host":               "",
	"smtp_port":               587,
	"smtp_username":           "",
	"smtp_password":           "",
	"smtp_from":               "",
	"otp_ttl":                 5 * time.Minute,
	"otp_rate_per_minute":     5,
	"metrics_backend":         MetricsCloudWatch,
	"metrics_namespace":       "CanteenOrderflow",
	"canteen_emails":          "",
	"cors_allowed_origins":    "",
}

// Load reads an optional .env file, then environment variables over the defaults above.
// A missing .env file is not an error: Lambda deployments configure the environment directly.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	emails, err := parseCanteenEmails(v.GetString("canteen_emails"))
	if err != nil {
		return nil, err
	}
	cfg.CanteenEmails = emails
	for _, o := range strings.Split(v.GetString("cors_allowed_origins"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	cfg.Payments.Provider = strings.ToLower(strings.TrimSpace(cfg.Payments.Provider))
	cfg.Currency = strings.ToUpper(cfg.Currency)

	return &cfg, nil
}

// Validate checks what every binary needs.
func (c *Config) Validate() error {
	if c.OrdersTable == "" {
		return errors.New("ORDERS_TABLE is required")
	}
	if c.OrderWindow <= 0 {
		return errors.New("ORDER_WINDOW must be positive")
	}
	switch c.Metrics.Backend {
	case MetricsCloudWatch, MetricsPrometheus, MetricsNone:
	default:
		return fmt.Errorf("unknown METRICS_BACKEND %q", c.Metrics.Backend)
	}
	return nil
}

// ValidatePayments checks the secrets the selected payment provider needs.
func (c *Config) ValidatePayments() error {
	p := c.Payments
	switch p.Provider {
	case ProviderRazorpay:
		if p.RazorpayKeyID == "" || p.RazorpayKeySecret == "" || p.RazorpayWebhookSecret == "" {
			return errors.New("razorpay requires RAZORPAY_KEY_ID, RAZORPAY_KEY_SECRET and RAZORPAY_WEBHOOK_SECRET")
		}
	case ProviderStripe:
		if p.StripeSecretKey == "" || p.StripeWebhookSecret == "" {
			return errors.New("stripe requires STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", p.Provider)
	}
	return nil
}

// parseCanteenEmails parses "AZAD Hall=azad@example.com,RK Hall=rk@example.com".
func parseCanteenEmails(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, addr, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(addr) == "" {
			return nil, fmt.Errorf("invalid CANTEEN_EMAILS entry %q", pair)
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(addr)
	}
	return out, nil
}
