package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/leozw/vessel-guardian/internal/ratelimit"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Mimir     MimirConfig
	Scheduler SchedulerConfig
	Refresh   RefreshConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Providers map[string]ProviderConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleConns   int
	Migrate        bool
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type MimirConfig struct {
	URL           string
	TenantHeader  string
	BatchSize     int
	FlushInterval time.Duration
	AuthToken     string
}

type SchedulerConfig struct {
	WorkerCount int
	Interval    time.Duration
	QueueSize   int
	PollTimeout time.Duration
}

type RefreshConfig struct {
	Provider      string
	FreshFor      time.Duration
	Concurrency   int
	VesselTimeout time.Duration
	SettingsTTL   time.Duration
}

const (
	StrategyWindow = "window"
	StrategyBucket = "bucket"
	StrategyRedis  = "redis"
)

type RateLimitConfig struct {
	Strategy  string
	Default   ratelimit.Policy
	Providers map[string]ratelimit.Policy
}

type CacheConfig struct {
	Backend    string
	MaxEntries int
}

type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func Load() (*Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()
	return LoadFrom(viper.New(), ".", "./config")
}

// LoadFrom reads config.yaml from the first matching path into v, then applies
// environment overrides.
func LoadFrom(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("VESSEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.maxconnections", 25)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.migrate", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("mimir.tenantheader", "X-Scope-OrgID")
	v.SetDefault("mimir.batchsize", 1000)
	v.SetDefault("mimir.flushinterval", "10s")
	v.SetDefault("scheduler.workercount", 4)
	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.queuesize", 1000)
	v.SetDefault("scheduler.polltimeout", "5s")
	v.SetDefault("refresh.provider", "marinetraffic")
	v.SetDefault("refresh.freshfor", "15m")
	v.SetDefault("refresh.concurrency", 8)
	v.SetDefault("refresh.vesseltimeout", "30s")
	v.SetDefault("refresh.settingsttl", "5m")
	v.SetDefault("ratelimit.strategy", StrategyWindow)
	v.SetDefault("ratelimit.default.ceiling", 80)
	v.SetDefault("ratelimit.default.window", "1m")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.maxentries", 10000)

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if url := os.Getenv("MIMIR_URL"); url != "" {
		cfg.Mimir.URL = url
	}
	if token := os.Getenv("MIMIR_AUTH_TOKEN"); token != "" {
		cfg.Mimir.AuthToken = token
	}

	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	if _, ok := cfg.Providers[cfg.Refresh.Provider]; !ok {
		cfg.Providers[cfg.Refresh.Provider] = ProviderConfig{}
	}
	for name, p := range cfg.Providers {
		if key := os.Getenv(providerEnv(name)); key != "" {
			p.APIKey = key
		}
		if p.Timeout <= 0 {
			p.Timeout = 10 * time.Second
		}
		cfg.Providers[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// providerEnv names the variable holding a provider's process-wide API key,
// e.g. MARINETRAFFIC_API_KEY.
func providerEnv(name string) string {
	r := strings.NewReplacer("-", "_", ".", "_")
	return strings.ToUpper(r.Replace(name)) + "_API_KEY"
}

func (c *Config) Validate() error {
	switch c.RateLimit.Strategy {
	case StrategyWindow, StrategyBucket, StrategyRedis:
	default:
		return fmt.Errorf("unknown rate limit strategy %q", c.RateLimit.Strategy)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Refresh.Provider == "" {
		return errors.New("refresh.provider must be set")
	}
	if c.RateLimit.Default.Ceiling <= 0 {
		return errors.New("ratelimit.default.ceiling must be positive")
	}
	return nil
}
