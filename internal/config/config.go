package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. ESTATESHARE_HTTP_BIND_ADDR
const EnvPrefix = "ESTATESHARE"

// Config represents the entire application configuration
type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Google      GoogleConfig      `mapstructure:"google"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	Share       ShareConfig       `mapstructure:"share"`
	Encryption  EncryptionConfig  `mapstructure:"encryption"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
	AWS         AWSConfig         `mapstructure:"aws"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Events      EventsConfig      `mapstructure:"events"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	BindAddr     string `mapstructure:"bind_addr"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`

	// TrustedProxies lists peers (IP or CIDR) whose X-Forwarded-For is honored
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// AuthConfig contains JWT settings for the authenticated API
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// CacheConfig contains local cache directory settings
type CacheConfig struct {
	RootDir             string `mapstructure:"root_dir"`
	BufferSizeMB        int    `mapstructure:"buffer_size_mb"`
	MaxCopySizeMB       int    `mapstructure:"max_copy_size_mb"`
	MaxSizeGB           int    `mapstructure:"max_size_gb"`
	MaxDiskUsagePercent int    `mapstructure:"max_disk_usage_percent"`
	TempFileMaxAge      string `mapstructure:"temp_file_max_age"`
}

// GoogleConfig contains OAuth client settings
type GoogleConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
	RevokeURL    string   `mapstructure:"revoke_url"`
}

// ProviderConfig tunes calls to the remote storage provider
type ProviderConfig struct {
	RequestTimeout        string `mapstructure:"request_timeout"`
	DownloadHeaderTimeout string `mapstructure:"download_header_timeout"`
	SerializeRefresh      bool   `mapstructure:"serialize_refresh"`
}

// ShareConfig contains share link settings
type ShareConfig struct {
	FrontendURL           string `mapstructure:"frontend_url"`
	APIURL                string `mapstructure:"api_url"`
	DefaultExpirationDays int    `mapstructure:"default_expiration_days"`
}

// EncryptionConfig selects how tokens are encrypted at rest
type EncryptionConfig struct {
	Backend  string `mapstructure:"backend"` // none, mock, kms
	KMSKeyID string `mapstructure:"kms_key_id"`
}

// SecretsConfig selects where the client secret and JWT secret come from
type SecretsConfig struct {
	Backend           string `mapstructure:"backend"` // static, env, ssm
	ClientSecretParam string `mapstructure:"client_secret_param"`
	JWTSecretParam    string `mapstructure:"jwt_secret_param"`
}

// AWSConfig contains AWS SDK settings
type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// RedisConfig contains the public endpoint rate limiter settings.
// An empty Addr disables rate limiting.
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	Burst         int    `mapstructure:"burst"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
	KeyPrefix     string `mapstructure:"key_prefix"`
}

// EventsConfig contains event dispatch settings.
// An empty AMQPURL disables broker publishing.
type EventsConfig struct {
	Async    bool   `mapstructure:"async"`
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

// MaintenanceConfig contains background maintenance settings
type MaintenanceConfig struct {
	Interval      string `mapstructure:"interval"`
	StatsInterval string `mapstructure:"stats_interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from the specified file path. An empty path
// reads defaults and environment overrides only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.bind_addr", "0.0.0.0:8080")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "5m")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.trusted_proxies", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "/var/lib/estateshare/estateshare.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("cache.root_dir", "/var/lib/estateshare/files")
	v.SetDefault("cache.buffer_size_mb", 1)
	v.SetDefault("cache.max_copy_size_mb", 100)
	v.SetDefault("cache.max_size_gb", 20)
	v.SetDefault("cache.max_disk_usage_percent", 90)
	v.SetDefault("cache.temp_file_max_age", "24h")
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.redirect_url", "")
	v.SetDefault("google.scopes", []string{})
	v.SetDefault("google.revoke_url", "")
	v.SetDefault("provider.request_timeout", "30s")
	v.SetDefault("provider.download_header_timeout", "30s")
	v.SetDefault("provider.serialize_refresh", true)
	v.SetDefault("share.frontend_url", "http://localhost:3000")
	v.SetDefault("share.api_url", "http://localhost:8080")
	v.SetDefault("share.default_expiration_days", 365)
	v.SetDefault("encryption.backend", "none")
	v.SetDefault("encryption.kms_key_id", "")
	v.SetDefault("secrets.backend", "static")
	v.SetDefault("secrets.client_secret_param", "/estateshare/google-client-secret")
	v.SetDefault("secrets.jwt_secret_param", "/estateshare/jwt-secret")
	v.SetDefault("aws.region", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.burst", 30)
	v.SetDefault("redis.rate_per_second", 5)
	v.SetDefault("redis.key_prefix", "estateshare:ratelimit")
	v.SetDefault("events.async", true)
	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "estateshare.events")
	v.SetDefault("maintenance.interval", "1h")
	v.SetDefault("maintenance.stats_interval", "15m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Database
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("invalid database.driver: %s", c.Database.Driver)
	}

	// Provider
	if c.Google.ClientID == "" {
		return fmt.Errorf("google.client_id is required")
	}
	if c.Google.RedirectURL == "" {
		return fmt.Errorf("google.redirect_url is required")
	}

	// Secrets
	switch c.Secrets.Backend {
	case "static":
		if c.Google.ClientSecret == "" {
			return fmt.Errorf("google.client_secret is required with the static secrets backend")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required with the static secrets backend")
		}
	case "env", "ssm":
		if c.Secrets.ClientSecretParam == "" || c.Secrets.JWTSecretParam == "" {
			return fmt.Errorf("secrets parameter names are required with the %s backend", c.Secrets.Backend)
		}
	default:
		return fmt.Errorf("invalid secrets.backend: %s", c.Secrets.Backend)
	}

	switch c.Encryption.Backend {
	case "none", "mock":
	case "kms":
		if c.Encryption.KMSKeyID == "" {
			return fmt.Errorf("encryption.kms_key_id is required with the kms backend")
		}
	default:
		return fmt.Errorf("invalid encryption.backend: %s", c.Encryption.Backend)
	}

	if _, err := c.HTTP.GetTrustedProxies(); err != nil {
		return err
	}

	// Cache
	if c.Cache.RootDir == "" {
		return fmt.Errorf("cache.root_dir is required")
	}
	if c.Cache.MaxCopySizeMB < 0 {
		return fmt.Errorf("cache.max_copy_size_mb must not be negative")
	}
	if c.Cache.MaxDiskUsagePercent < 0 || c.Cache.MaxDiskUsagePercent > 100 {
		return fmt.Errorf("cache.max_disk_usage_percent must be between 0 and 100")
	}

	// Share links
	if c.Share.FrontendURL == "" || c.Share.APIURL == "" {
		return fmt.Errorf("share.frontend_url and share.api_url are required")
	}
	if c.Share.DefaultExpirationDays <= 0 {
		return fmt.Errorf("share.default_expiration_days must be positive")
	}

	// Durations
	durations := map[string]string{
		"http.read_timeout":                c.HTTP.ReadTimeout,
		"http.write_timeout":               c.HTTP.WriteTimeout,
		"http.idle_timeout":                c.HTTP.IdleTimeout,
		"cache.temp_file_max_age":          c.Cache.TempFileMaxAge,
		"provider.request_timeout":         c.Provider.RequestTimeout,
		"provider.download_header_timeout": c.Provider.DownloadHeaderTimeout,
		"maintenance.interval":             c.Maintenance.Interval,
		"maintenance.stats_interval":       c.Maintenance.StatsInterval,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	// Logging
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, _ := time.ParseDuration(s)
	if d <= 0 {
		return fallback
	}
	return d
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	return parseDuration(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	return parseDuration(c.WriteTimeout, 5*time.Minute)
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 60*time.Second)
}

// GetTrustedProxies parses trusted_proxies. Bare addresses become single-host prefixes.
func (c *HTTPConfig) GetTrustedProxies() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid http.trusted_proxies entry %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid http.trusted_proxies entry %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// GetBufferSize returns the write buffer size in bytes
func (c *CacheConfig) GetBufferSize() int {
	if c.BufferSizeMB <= 0 {
		return 1024 * 1024
	}
	return c.BufferSizeMB * 1024 * 1024
}

// GetMaxCopySize returns the local copy limit in bytes; zero means unlimited
func (c *CacheConfig) GetMaxCopySize() int64 {
	return int64(c.MaxCopySizeMB) * 1024 * 1024
}

// GetMaxCacheSize returns the cache size limit in bytes; zero means unlimited
func (c *CacheConfig) GetMaxCacheSize() int64 {
	return int64(c.MaxSizeGB) * 1024 * 1024 * 1024
}

// GetTempFileMaxAge returns the age after which partial copies are removed
func (c *CacheConfig) GetTempFileMaxAge() time.Duration {
	return parseDuration(c.TempFileMaxAge, 24*time.Hour)
}

// GetRequestTimeout returns the metadata request timeout
func (c *ProviderConfig) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, 30*time.Second)
}

// GetDownloadHeaderTimeout returns how long to wait for a download response
func (c *ProviderConfig) GetDownloadHeaderTimeout() time.Duration {
	return parseDuration(c.DownloadHeaderTimeout, 30*time.Second)
}

// GetInterval returns the cleanup interval
func (c *MaintenanceConfig) GetInterval() time.Duration {
	return parseDuration(c.Interval, time.Hour)
}

// GetStatsInterval returns the statistics logging interval
func (c *MaintenanceConfig) GetStatsInterval() time.Duration {
	return parseDuration(c.StatsInterval, 15*time.Minute)
}

// NeedsAWS reports whether any configured backend talks to AWS
func (c *Config) NeedsAWS() bool {
	return c.Encryption.Backend == "kms" || c.Secrets.Backend == "ssm"
}
