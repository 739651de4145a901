package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/MiguelValor/shopify-automator/pkg/database"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Shopify  ShopifyConfig  `mapstructure:"shopify"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ServiceName  string        `mapstructure:"service_name"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ShopifyConfig holds Admin API configuration
type ShopifyConfig struct {
	APIVersion        string        `mapstructure:"api_version"`
	AccessToken       string        `mapstructure:"access_token"`
	ShopTokens        []ShopToken   `mapstructure:"shop_tokens"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// ShopToken is a per-shop Admin API token. A list rather than a map since
// shop domains contain the key delimiter.
type ShopToken struct {
	Shop  string `mapstructure:"shop"`
	Token string `mapstructure:"token"`
}

// TokenMap returns the per-shop tokens keyed by shop domain
func (c ShopifyConfig) TokenMap() map[string]string {
	m := make(map[string]string, len(c.ShopTokens))
	for _, t := range c.ShopTokens {
		m[t.Shop] = t.Token
	}
	return m
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	BaseURL     string `mapstructure:"base_url"`
	PromptsPath string `mapstructure:"prompts_path"`
}

// LarkConfig holds review notification configuration
type LarkConfig struct {
	AppID        string `mapstructure:"app_id"`
	AppSecret    string `mapstructure:"app_secret"`
	ReviewChatID string `mapstructure:"review_chat_id"`
	DashboardURL string `mapstructure:"dashboard_url"`
}

// RedisConfig enables the distributed sweep lock when Addr is set
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	LockPrefix string `mapstructure:"lock_prefix"`
}

// ApprovalConfig holds approval lifecycle settings
type ApprovalConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepEnabled  bool          `mapstructure:"sweep_enabled"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	OutputPath  string  `mapstructure:"output_path"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configPath (optional), then .env files, then environment
// variables. Later sources win.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// gotenv never overrides variables already set in the process
		if err := gotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database.Driver = database.NormalizeDriver(cfg.Database.Driver)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3003)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.service_name", "workflow-engine")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", database.DriverSQLite)
	v.SetDefault("database.path", "data/approvals.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("shopify.api_version", "2024-01")
	v.SetDefault("shopify.timeout", 30*time.Second)
	v.SetDefault("shopify.requests_per_second", 2)

	v.SetDefault("openai.model", "gpt-4o-mini")

	v.SetDefault("redis.lock_prefix", "shopify-automator:lock:")

	v.SetDefault("approval.ttl", 7*24*time.Hour)
	v.SetDefault("approval.sweep_interval", 3*time.Hour)
	v.SetDefault("approval.sweep_enabled", true)

	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.driver", "DATABASE_DRIVER")
	_ = v.BindEnv("database.dsn", "DATABASE_DSN")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("shopify.access_token", "SHOPIFY_ACCESS_TOKEN")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.review_chat_id", "LARK_REVIEW_CHAT_ID")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("logger.level", "LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	switch c.Database.Driver {
	case database.DriverSQLite:
		if c.Database.DSN == "" && c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case database.DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	if c.Approval.TTL <= 0 {
		return fmt.Errorf("approval.ttl must be positive")
	}
	if c.Approval.SweepInterval <= 0 {
		return fmt.Errorf("approval.sweep_interval must be positive")
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
	}

	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}

	return nil
}

// OptimizerEnabled reports whether SEO generation is configured
func (c *Config) OptimizerEnabled() bool {
	return c.OpenAI.APIKey != ""
}
