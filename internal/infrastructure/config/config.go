package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/tokoraya/checkout/internal/domain/checkout"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Account       AccountConfig       `mapstructure:"account"`
	Checkout      CheckoutConfig      `mapstructure:"checkout"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type GatewayConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

type AccountConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type CheckoutConfig struct {
	HomeCountry          string             `mapstructure:"home_country"`
	PollInterval         time.Duration      `mapstructure:"poll_interval"`
	InvoiceWindow        time.Duration      `mapstructure:"invoice_window"`
	SessionIdleTTL       time.Duration      `mapstructure:"session_idle_ttl"`
	SnapshotTTL          time.Duration      `mapstructure:"snapshot_ttl"`
	MinInstallmentAmount int64              `mapstructure:"min_installment_amount"`
	VABanks              []BankConfig       `mapstructure:"va_banks"`
	ManualBanks          []ManualBankConfig `mapstructure:"manual_banks"`
}

type BankConfig struct {
	Code string `mapstructure:"code"`
	Name string `mapstructure:"name"`
}

type ManualBankConfig struct {
	Bank   string `mapstructure:"bank"`
	Number string `mapstructure:"number"`
	Holder string `mapstructure:"holder"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("CHECKOUT")
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/checkout")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Gateway.BaseURL == "" {
		errs = append(errs, fmt.Errorf("gateway.base_url is required"))
	}
	if c.Account.BaseURL == "" {
		errs = append(errs, fmt.Errorf("account.base_url is required"))
	}
	if len(c.Checkout.HomeCountry) != 2 {
		errs = append(errs, fmt.Errorf("checkout.home_country must be a 2-letter ISO code"))
	}
	if c.Checkout.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("checkout.poll_interval must be at least 1s"))
	}
	if c.Checkout.InvoiceWindow <= 0 {
		errs = append(errs, fmt.Errorf("checkout.invoice_window must be positive"))
	}
	if len(c.Checkout.VABanks) == 0 {
		errs = append(errs, fmt.Errorf("checkout.va_banks must list at least one bank"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "checkout")
	v.SetDefault("database.database", "checkout")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Gateway defaults
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.request_timeout", "30s")
	v.SetDefault("gateway.breaker_timeout", "30s")

	// Account service defaults
	v.SetDefault("account.base_url", "")
	v.SetDefault("account.request_timeout", "10s")

	// Checkout defaults
	v.SetDefault("checkout.home_country", "ID")
	v.SetDefault("checkout.poll_interval", "5s")
	v.SetDefault("checkout.invoice_window", "24h")
	v.SetDefault("checkout.session_idle_ttl", "30m")
	v.SetDefault("checkout.snapshot_ttl", "24h")
	v.SetDefault("checkout.min_installment_amount", 500000)
	v.SetDefault("checkout.va_banks", []map[string]any{
		{"code": "bca", "name": "BCA"},
		{"code": "bni", "name": "BNI"},
		{"code": "mandiri", "name": "Mandiri"},
	})

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "checkout-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MerchantSettings maps the static config into the domain shape the
// eligibility resolver consumes.
func (c *CheckoutConfig) MerchantSettings() checkout.MerchantSettings {
	banks := make([]checkout.BankOption, 0, len(c.VABanks))
	for _, b := range c.VABanks {
		banks = append(banks, checkout.BankOption{Code: b.Code, Name: b.Name})
	}
	manual := make([]checkout.ManualBankAccount, 0, len(c.ManualBanks))
	for _, b := range c.ManualBanks {
		manual = append(manual, checkout.ManualBankAccount{Bank: b.Bank, Number: b.Number, Holder: b.Holder})
	}
	return checkout.MerchantSettings{
		HomeCountry:         c.HomeCountry,
		ManualTransferBanks: manual,
		VABanks:             banks,
	}
}
