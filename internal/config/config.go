package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for AppGuard. It is built once at startup and
// passed by reference to every adapter constructor.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	SQLite       SQLiteConfig       `mapstructure:"sqlite"`
	Redis        RedisConfig        `mapstructure:"redis"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Auth         AuthConfig         `mapstructure:"auth"`
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Scan         ScanConfig         `mapstructure:"scan"`
	VirusTotal   AdapterConfig      `mapstructure:"virustotal"`
	SafeBrowsing AdapterConfig      `mapstructure:"safebrowsing"`
	Advisor      AdvisorConfig      `mapstructure:"advisor"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
	Debug       bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (c ServerConfig) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

func (c ServerConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// SQLiteConfig points the CLI at a local inventory snapshot
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	StreamName string `mapstructure:"stream_name"`
}

type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// ScanConfig bounds the full-scan orchestrator
type ScanConfig struct {
	MaxApps        int           `mapstructure:"max_apps"`
	ScanDir        string        `mapstructure:"scan_dir"`
	AdapterTimeout time.Duration `mapstructure:"adapter_timeout"`
	ResultTTL      time.Duration `mapstructure:"result_ttl"`
}

// AdapterConfig is the per-adapter toggle + credential pair. An adapter is only
// active when both Enabled is set and APIKey is non-blank.
type AdapterConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Configured reports whether the adapter may be used
func (c AdapterConfig) Configured() bool {
	return c.Enabled && strings.TrimSpace(c.APIKey) != ""
}

// AdvisorConfig configures the generative security advisor
type AdvisorConfig struct {
	AdapterConfig `mapstructure:",squash"`
	Provider      string  `mapstructure:"provider"` // openai, gemini, claude
	Model         string  `mapstructure:"model"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	Gate          string  `mapstructure:"gate"` // suspicious, always
}

// Advisor gate policies
const (
	AdvisorGateSuspicious = "suspicious"
	AdvisorGateAlways     = "always"
)

// Validate checks invariants that viper cannot express
func (c *Config) Validate() error {
	if c.Scan.MaxApps <= 0 {
		return errors.New("scan.max_apps must be positive")
	}
	switch c.Advisor.Gate {
	case AdvisorGateSuspicious, AdvisorGateAlways:
	default:
		return fmt.Errorf("advisor.gate: unknown policy %q", c.Advisor.Gate)
	}
	switch c.Advisor.Provider {
	case "openai", "gemini", "claude":
	default:
		return fmt.Errorf("advisor.provider: unsupported provider %q", c.Advisor.Provider)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "appguard-lab")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8090)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("sqlite.path", "appguard.db")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "appguard:")

	v.SetDefault("nats.stream_name", "APPGUARD_SCANS")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("ratelimit.requests_per_minute", 120)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.time_format", time.RFC3339)

	v.SetDefault("scan.max_apps", 20)
	v.SetDefault("scan.scan_dir", "/sdcard/Download")
	v.SetDefault("scan.adapter_timeout", 15*time.Second)
	v.SetDefault("scan.result_ttl", 30*time.Minute)

	v.SetDefault("virustotal.base_url", "https://www.virustotal.com/api/v3")
	v.SetDefault("virustotal.timeout", 10*time.Second)
	v.SetDefault("virustotal.cache_ttl", 24*time.Hour)

	v.SetDefault("safebrowsing.base_url", "https://safebrowsing.googleapis.com/v4")
	v.SetDefault("safebrowsing.timeout", 10*time.Second)
	v.SetDefault("safebrowsing.cache_ttl", 6*time.Hour)

	v.SetDefault("advisor.provider", "openai")
	v.SetDefault("advisor.timeout", 15*time.Second)
	v.SetDefault("advisor.temperature", 0.3)
	v.SetDefault("advisor.max_tokens", 500)
	v.SetDefault("advisor.gate", AdvisorGateSuspicious)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APPGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// viper doesn't auto-bind nested keys that have no default
	v.BindEnv("database.enabled", "APPGUARD_DATABASE_ENABLED")
	v.BindEnv("database.host", "APPGUARD_DATABASE_HOST")
	v.BindEnv("database.user", "APPGUARD_DATABASE_USER")
	v.BindEnv("database.password", "APPGUARD_DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "APPGUARD_DATABASE_DBNAME")
	v.BindEnv("redis.enabled", "APPGUARD_REDIS_ENABLED")
	v.BindEnv("redis.password", "APPGUARD_REDIS_PASSWORD")
	v.BindEnv("nats.enabled", "APPGUARD_NATS_ENABLED")
	v.BindEnv("nats.url", "APPGUARD_NATS_URL")
	v.BindEnv("auth.api_keys", "APPGUARD_AUTH_API_KEYS")
	v.BindEnv("virustotal.enabled", "APPGUARD_VIRUSTOTAL_ENABLED")
	v.BindEnv("virustotal.api_key", "APPGUARD_VIRUSTOTAL_API_KEY")
	v.BindEnv("safebrowsing.enabled", "APPGUARD_SAFEBROWSING_ENABLED")
	v.BindEnv("safebrowsing.api_key", "APPGUARD_SAFEBROWSING_API_KEY")
	v.BindEnv("advisor.enabled", "APPGUARD_ADVISOR_ENABLED")
	v.BindEnv("advisor.api_key", "APPGUARD_ADVISOR_API_KEY")
	v.BindEnv("advisor.model", "APPGUARD_ADVISOR_MODEL")

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/appguard-lab")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}

// LoadOptional behaves like Load but tolerates a missing config file, falling
// back to defaults and environment. The CLI uses it so a bare checkout works.
func LoadOptional(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err == nil {
		return cfg, nil
	}
	var notFound viper.ConfigFileNotFoundError
	if configPath == "" && errors.As(err, &notFound) {
		return Defaults()
	}
	return nil, err
}

// Defaults returns the configuration built from defaults and environment only
func Defaults() (*Config, error) {
	return unmarshal(newViper())
}
