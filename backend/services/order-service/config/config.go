package config

import (
	"context"
	"fmt"
	"strings"

	awspkg "github.com/bouboudada/labbekids-site-V1/backend/pkg/aws"
	"github.com/caarlos0/env/v10"
)

// Handler names, used to scope required-configuration checks.
const (
	HandlerCreateCheckout = "create-checkout"
	HandlerStripeWebhook  = "stripe-webhook"
	HandlerSaveOrder      = "save-order"
)

// Config holds all configuration for the order service.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"APP_ENV" envDefault:"development"`

	SiteURL string `env:"SITE_URL"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"LABBE Kids"`
	AdminEmail   string `env:"ADMIN_EMAIL"`
	SupportEmail string `env:"SUPPORT_EMAIL"`

	GoogleSheetID             string `env:"GOOGLE_SHEET_ID"`
	GoogleServiceAccountEmail string `env:"GOOGLE_SERVICE_ACCOUNT_EMAIL"`
	GooglePrivateKey          string `env:"GOOGLE_PRIVATE_KEY"`
	LedgerRange               string `env:"LEDGER_RANGE" envDefault:"Commandes!A:P"`

	RedisURL            string `env:"REDIS_URL"`
	DatabaseURL         string `env:"DATABASE_URL"`
	OrderEventsTopicARN string `env:"ORDER_EVENTS_TOPIC_ARN"`

	UseSecrets  bool   `env:"AWS_USE_SECRETS" envDefault:"false"`
	SecretsName string `env:"SECRETS_NAME" envDefault:"order-service/credentials"`

	CloudWatchEnabled   bool   `env:"CLOUDWATCH_ENABLED" envDefault:"false"`
	CloudWatchNamespace string `env:"CLOUDWATCH_NAMESPACE" envDefault:"LabbeKids"`
	CloudWatchLogGroup  string `env:"CLOUDWATCH_LOG_GROUP" envDefault:"/labbekids/services"`

	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	RateLimitBurst     int `env:"RATE_LIMIT_BURST" envDefault:"10"`
}

// SecretsSource is the part of the Secrets Manager client LoadConfig needs.
type SecretsSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// LoadConfig parses the environment. When AWS_USE_SECRETS is true and a
// secrets source is given, keys from the JSON secret override the
// environment.
func LoadConfig(ctx context.Context, secrets SecretsSource) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.UseSecrets && secrets != nil {
		values, err := secrets.GetSecretMap(ctx, cfg.SecretsName)
		if err != nil {
			return nil, fmt.Errorf("load secrets %s: %w", cfg.SecretsName, err)
		}
		cfg.ApplySecrets(values)
	}

	cfg.normalize()
	return cfg, nil
}

// ApplySecrets overrides fields with non-empty values keyed by env name.
func (c *Config) ApplySecrets(values map[string]string) {
	targets := map[string]*string{
		"SITE_URL":                     &c.SiteURL,
		"STRIPE_SECRET_KEY":            &c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET":        &c.StripeWebhookSecret,
		"SMTP_HOST":                    &c.SMTPHost,
		"SMTP_USER":                    &c.SMTPUser,
		"SMTP_PASS":                    &c.SMTPPass,
		"ADMIN_EMAIL":                  &c.AdminEmail,
		"GOOGLE_SHEET_ID":              &c.GoogleSheetID,
		"GOOGLE_SERVICE_ACCOUNT_EMAIL": &c.GoogleServiceAccountEmail,
		"GOOGLE_PRIVATE_KEY":           &c.GooglePrivateKey,
		"REDIS_URL":                    &c.RedisURL,
		"DATABASE_URL":                 &c.DatabaseURL,
	}
	for key, dst := range targets {
		if v := values[key]; v != "" {
			*dst = v
		}
	}
}

func (c *Config) normalize() {
	c.SiteURL = strings.TrimSuffix(strings.TrimSpace(c.SiteURL), "/")
	// Private keys pasted into a single env line carry literal \n sequences.
	c.GooglePrivateKey = strings.ReplaceAll(c.GooglePrivateKey, `\n`, "\n")
	if c.AdminEmail == "" {
		c.AdminEmail = c.SMTPUser
	}
	if c.SupportEmail == "" {
		c.SupportEmail = c.SMTPUser
	}
}

// MissingFor lists the required keys that are unset for the given handler,
// in a stable order.
func (c *Config) MissingFor(handler string) []string {
	type req struct {
		key   string
		value string
	}
	mail := []req{
		{"SMTP_HOST", c.SMTPHost},
		{"SMTP_USER", c.SMTPUser},
		{"SMTP_PASS", c.SMTPPass},
	}

	var reqs []req
	switch handler {
	case HandlerCreateCheckout:
		reqs = []req{
			{"STRIPE_SECRET_KEY", c.StripeSecretKey},
			{"SITE_URL", c.SiteURL},
		}
	case HandlerStripeWebhook:
		reqs = append([]req{
			{"STRIPE_SECRET_KEY", c.StripeSecretKey},
			{"STRIPE_WEBHOOK_SECRET", c.StripeWebhookSecret},
		}, mail...)
	case HandlerSaveOrder:
		reqs = append([]req{
			{"GOOGLE_SHEET_ID", c.GoogleSheetID},
			{"GOOGLE_SERVICE_ACCOUNT_EMAIL", c.GoogleServiceAccountEmail},
			{"GOOGLE_PRIVATE_KEY", c.GooglePrivateKey},
		}, mail...)
	}

	var missing []string
	for _, r := range reqs {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	return missing
}

var _ SecretsSource = (*awspkg.SecretsClient)(nil)
