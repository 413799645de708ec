// Package config 加载服务配置：YAML 文件 + 环境变量覆盖。
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	defaultSecret = "secret_key_change_me"
)

// Config 根配置。来源优先级：
//  1. 显式传入的路径；
//  2. 环境变量 CONFIG_PATH；
//  3. 工作目录下的 ./local.yaml；
//  4. 仅环境变量。
//
// 读取文件后总是再叠加一次环境变量。
type Config struct {
	Env         string            `yaml:"env" env:"ENV" env-default:"local"`
	HTTP        HTTPConfig        `yaml:"http"`
	Storage     StorageConfig     `yaml:"storage"`
	DB          DBConfig          `yaml:"db"`
	Redis       RedisConfig       `yaml:"redis"`
	Auth        AuthConfig        `yaml:"auth"`
	Limits      LimitsConfig      `yaml:"limits"`
	Cache       CacheConfig       `yaml:"cache"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Timeouts    TimeoutConfig     `yaml:"timeouts"`
}

type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"PORT" env-default:"8080"`
}

// Addr 返回 host:port。
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

type StorageConfig struct {
	// postgres | memory
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	// SeedSubmissions 仅 memory 驱动使用：启动时登记的作品 ID，方便本地调试。
	SeedSubmissions []uint `yaml:"seed_submissions" env:"STORAGE_SEED_SUBMISSIONS" env-separator:","`
}

type DBConfig struct {
	URL             string        `yaml:"url" env:"DATABASE_URL" env-default:"host=localhost user=postgres password=postgres dbname=contesthub port=5432 sslmode=disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"20"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
}

// RedisConfig 为空时幂等记录保存在进程内。
type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"secret_key_change_me"`
	SessionSecret string `yaml:"session_secret" env:"SESSION_SECRET" env-default:"secret_key_change_me"`
	SessionName   string `yaml:"session_name" env:"SESSION_NAME" env-default:"contesthub_session"`
}

// LimitsConfig 分页和内容长度限制。
type LimitsConfig struct {
	DefaultPageSize  int `yaml:"default_page_size" env:"DEFAULT_PAGE_SIZE" env-default:"10"`
	MaxPageSize      int `yaml:"max_page_size" env:"MAX_PAGE_SIZE" env-default:"50"`
	MaxContentLength int `yaml:"max_content_length" env:"MAX_CONTENT_LENGTH" env-default:"2000"`
}

// CacheConfig 评论分页缓存。PageSize 为 0 时关闭缓存；Postgres 存储但没配 Redis 时
// 启动时也会关闭（代数无法在实例间共享）。
type CacheConfig struct {
	PageSize int           `yaml:"page_size" env:"PAGE_CACHE_SIZE" env-default:"500"`
	PageTTL  time.Duration `yaml:"page_ttl" env:"PAGE_CACHE_TTL" env-default:"30s"`
}

type IdempotencyConfig struct {
	TTL        time.Duration `yaml:"ttl" env:"IDEMPOTENCY_TTL" env-default:"24h"`
	MemorySize int           `yaml:"memory_size" env:"IDEMPOTENCY_MEMORY_SIZE" env-default:"10000"`
}

type TimeoutConfig struct {
	Request  time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"5s"`
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// MustLoad：Load 的包装，出错直接 panic。
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load 按优先级加载配置并校验。
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat("local.yaml"); err == nil {
			path = "local.yaml"
		}
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("env must be one of local|dev|prod, got %q", c.Env)
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.DB.URL == "" {
			return fmt.Errorf("db.url is required for postgres storage")
		}
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}

	if c.Env == EnvProd {
		if c.Auth.JWTSecret == defaultSecret || c.Auth.SessionSecret == defaultSecret {
			return fmt.Errorf("auth secrets must be set in prod")
		}
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Limits.DefaultPageSize <= 0 {
		return fmt.Errorf("limits.default_page_size must be > 0")
	}
	if c.Limits.MaxPageSize < c.Limits.DefaultPageSize {
		return fmt.Errorf("limits.max_page_size must be >= limits.default_page_size")
	}
	if c.Limits.MaxContentLength <= 0 {
		return fmt.Errorf("limits.max_content_length must be > 0")
	}

	if c.Cache.PageSize < 0 {
		return fmt.Errorf("cache.page_size must be >= 0")
	}
	if c.Idempotency.TTL <= 0 {
		return fmt.Errorf("idempotency.ttl must be > 0")
	}
	if c.Idempotency.MemorySize <= 0 {
		return fmt.Errorf("idempotency.memory_size must be > 0")
	}
	return nil
}
