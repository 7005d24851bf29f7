package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clearcheck/dossier-api/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Cadastral SourceConfig    `yaml:"cadastral" mapstructure:"cadastral"`
	Corporate SourceConfig    `yaml:"corporate" mapstructure:"corporate"`
	Financial SourceConfig    `yaml:"financial" mapstructure:"financial"`
	Websearch SourceConfig    `yaml:"websearch" mapstructure:"websearch"`
	Courts    CourtsConfig    `yaml:"courts" mapstructure:"courts"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Payment   PaymentConfig   `yaml:"payment" mapstructure:"payment"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Fulfill   FulfillConfig   `yaml:"fulfill" mapstructure:"fulfill"`
	Sweep     SweepConfig     `yaml:"sweep" mapstructure:"sweep"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string           `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// RedisConfig configures the shared counter/marker backend. With no address
// the in-process backend is used, which is only correct for a single node.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ReportBaseURL  string   `yaml:"report_base_url" mapstructure:"report_base_url"`
	WebhookSecret  string   `yaml:"webhook_secret" mapstructure:"webhook_secret"`
}

// SourceConfig holds credentials for one upstream data source.
type SourceConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CourtsConfig configures the multi-jurisdiction court search.
type CourtsConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	JurisdictionsFile string `yaml:"jurisdictions_file" mapstructure:"jurisdictions_file"`
	PerCourtTimeoutS  int    `yaml:"per_court_timeout_secs" mapstructure:"per_court_timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings for the synopsis step.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PaymentConfig holds payment provider settings.
type PaymentConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NotifyConfig configures report-ready notification delivery.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// RateLimitConfig overrides the compiled-in per-action limits. Keys are
// action names; absent actions keep their defaults.
type RateLimitConfig struct {
	Actions map[string]ActionLimit `yaml:"actions" mapstructure:"actions"`
}

// ActionLimit is one action's fixed-window budget.
type ActionLimit struct {
	MaxRequests int `yaml:"max_requests" mapstructure:"max_requests"`
	WindowSecs  int `yaml:"window_secs" mapstructure:"window_secs"`
}

// FulfillConfig tunes the orchestrator.
type FulfillConfig struct {
	ReportTTLDays   int `yaml:"report_ttl_days" mapstructure:"report_ttl_days"`
	CallTimeoutSecs int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	RetryAttempts   int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// SweepConfig tunes the stuck-job refund sweep.
type SweepConfig struct {
	StaleAfterMins int `yaml:"stale_after_mins" mapstructure:"stale_after_mins"`
	IntervalMins   int `yaml:"interval_mins" mapstructure:"interval_mins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ReportTTL returns the configured report lifetime.
func (c FulfillConfig) ReportTTL() time.Duration {
	return time.Duration(c.ReportTTLDays) * 24 * time.Hour
}

// CallTimeout returns the per-adapter-call timeout.
func (c FulfillConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSecs) * time.Second
}

// StaleAfter returns the staleness threshold for the sweep.
func (c SweepConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMins) * time.Minute
}

// Interval returns the sweep cadence.
func (c SweepConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMins) * time.Minute
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOSSIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "dossier.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.report_base_url", "http://localhost:8080")
	v.SetDefault("cadastral.base_url", "https://api.cadastro.example.com.br")
	v.SetDefault("corporate.base_url", "https://api.cnpj.example.com.br")
	v.SetDefault("financial.base_url", "https://api.credito.example.com.br")
	v.SetDefault("websearch.base_url", "https://api.busca.example.com.br")
	v.SetDefault("courts.base_url", "https://api.tribunais.example.com.br")
	v.SetDefault("courts.per_court_timeout_secs", 15)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("payment.base_url", "https://api.pagamentos.example.com.br")
	v.SetDefault("fulfill.report_ttl_days", 30)
	v.SetDefault("fulfill.call_timeout_secs", 20)
	v.SetDefault("fulfill.retry_attempts", 3)
	v.SetDefault("sweep.stale_after_mins", 30)
	v.SetDefault("sweep.interval_mins", 10)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
