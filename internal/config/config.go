package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/wispbill/wispbill/internal/types"
)

type Configuration struct {
	Deployment   DeploymentConfig   `validate:"required"`
	Server       ServerConfig       `validate:"required"`
	Logging      LoggingConfig      `validate:"required"`
	Postgres     PostgresConfig     `validate:"required"`
	Billing      BillingConfig      `validate:"required"`
	Dunning      DunningConfig      `validate:"required"`
	Network      NetworkConfig      `validate:"required"`
	Notification NotificationConfig `mapstructure:"notification"`
	Document     DocumentConfig     `mapstructure:"document"`
	S3           S3Config           `mapstructure:"s3"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
	// AllowedOrigins is echoed in Access-Control-Allow-Origin; empty allows any
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	// MaxTxRetries bounds how often a transaction is re-run after a
	// serialization failure
	MaxTxRetries uint64 `mapstructure:"max_tx_retries"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type BillingConfig struct {
	Timezone string `mapstructure:"timezone" validate:"required"`
	DueDays  int    `mapstructure:"due_days" validate:"gte=0"`
	// TaxRate is a flat fraction applied on the post-credit charge, e.g. 0.16
	TaxRate float64 `mapstructure:"tax_rate" validate:"gte=0,lt=1"`
	// CurrencyLabel is only printed on notifications and receipts
	CurrencyLabel string `mapstructure:"currency_label"`
}

type DunningConfig struct {
	Enabled                     bool   `mapstructure:"enabled"`
	ReminderDaysBeforePeriodEnd int    `mapstructure:"reminder_days_before_period_end" validate:"gte=0"`
	MonthlyCutDay               int    `mapstructure:"monthly_cut_day" validate:"gte=1,lte=28"`
	InvoiceSchedule             string `mapstructure:"invoice_schedule"`
	AdvanceReconcileSchedule    string `mapstructure:"advance_reconcile_schedule"`
	ReminderSchedule            string `mapstructure:"reminder_schedule"`
	DailyCutSchedule            string `mapstructure:"daily_cut_schedule"`
	MonthlyCutSchedule          string `mapstructure:"monthly_cut_schedule"`
	CommitmentExpirySchedule    string `mapstructure:"commitment_expiry_schedule"`
}

type NetworkConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	// CutProfile is applied to every binding of a suspended customer
	CutProfile string `mapstructure:"cut_profile" validate:"required"`
	// CutProfiles lists every profile considered a "cut" state when reactivating.
	// CutProfile is always part of the set.
	CutProfiles   []string      `mapstructure:"cut_profiles"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	MaxParallel   int           `mapstructure:"max_parallel"`
}

type NotificationConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	WebhookURL string        `mapstructure:"webhook_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type DocumentConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type S3Config struct {
	Enabled   bool   `mapstructure:"enabled"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func NewConfig() (*Configuration, error) {
	// a local .env feeds the WISPBILL_ overrides; it is optional
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/wispbill")

	v.SetEnvPrefix("WISPBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.max_tx_retries", 3)
	v.SetDefault("billing.timezone", "UTC")
	v.SetDefault("billing.due_days", 7)
	v.SetDefault("billing.tax_rate", 0)
	v.SetDefault("dunning.enabled", true)
	v.SetDefault("dunning.reminder_days_before_period_end", 5)
	v.SetDefault("dunning.monthly_cut_day", 10)
	v.SetDefault("dunning.invoice_schedule", "0 1 1 * *")
	v.SetDefault("dunning.advance_reconcile_schedule", "30 * * * *")
	v.SetDefault("dunning.reminder_schedule", "0 9 * * *")
	v.SetDefault("dunning.daily_cut_schedule", "0 6 * * *")
	v.SetDefault("dunning.monthly_cut_schedule", "15 6 * * *")
	v.SetDefault("dunning.commitment_expiry_schedule", "*/30 * * * *")
	v.SetDefault("billing.currency_label", "USD")
	v.SetDefault("network.cut_profile", "cut")
	v.SetDefault("network.cut_profiles", []string{"cut"})
	v.SetDefault("network.timeout", "10s")
	v.SetDefault("network.rate_per_second", 5)
	v.SetDefault("network.max_parallel", 4)
	v.SetDefault("notification.timeout", "10s")
	v.SetDefault("document.timeout", "30s")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development and tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres:   PostgresConfig{MaxTxRetries: 3},
		Billing: BillingConfig{
			Timezone:      "UTC",
			DueDays:       7,
			CurrencyLabel: "USD",
		},
		Dunning: DunningConfig{
			Enabled:                     true,
			ReminderDaysBeforePeriodEnd: 5,
			MonthlyCutDay:               10,
		},
		Network: NetworkConfig{
			CutProfile:    "cut",
			CutProfiles:   []string{"cut", "moroso"},
			RatePerSecond: 0,
			MaxParallel:   4,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// GetURL returns the connection string in URL form, as expected by the migrator
func (c PostgresConfig) GetURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// Tax returns the flat tax rate as a decimal fraction
func (c BillingConfig) Tax() decimal.Decimal {
	return decimal.NewFromFloat(c.TaxRate)
}

// Location resolves the billing timezone, falling back to UTC
func (c BillingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsCutProfile reports whether profile is one of the configured cut profiles
func (c NetworkConfig) IsCutProfile(profile string) bool {
	if profile == "" {
		return false
	}
	if profile == c.CutProfile {
		return true
	}
	for _, p := range c.CutProfiles {
		if p == profile {
			return true
		}
	}
	return false
}
