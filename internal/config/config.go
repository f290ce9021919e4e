package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env if present (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Server ServerConfig
	App    AppConfig
	Ampre  AmpreConfig
	DB     DBConfig
	Cache  CacheConfig
	Sync   SyncConfig
	Images ImagesConfig
}

type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"4010"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"20s"`
}

type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"listings-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
}

func (a *AppConfig) IsProduction() bool { return a.Environment == "production" }

// AmpreConfig holds the upstream listings gateway settings.
type AmpreConfig struct {
	Token   string `envconfig:"AMPRE_TOKEN" required:"true"`
	BaseURL string `envconfig:"AMPRE_BASE_URL" default:""`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"listings"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASS" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

func (d *DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type CacheConfig struct {
	Type          string `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	DetailTTL   time.Duration `envconfig:"CACHE_DETAIL_TTL" default:"5m"`
	NegativeTTL time.Duration `envconfig:"CACHE_NEGATIVE_TTL" default:"60s"`
}

func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

type SyncConfig struct {
	FullSyncLimit int    `envconfig:"SYNC_FULL_LIMIT" default:"1000"`
	PageSize      int    `envconfig:"SYNC_PAGE_SIZE" default:"100"`
	CronSpec      string `envconfig:"SYNC_CRON" default:"0 3 * * *"`
	CronEnabled   bool   `envconfig:"SYNC_CRON_ENABLED" default:"true"`

	// Settings for the standalone syncer binary.
	WorkerMode     string        `envconfig:"SYNC_WORKER_MODE" default:"incremental"`
	WorkerLimit    int           `envconfig:"SYNC_WORKER_LIMIT" default:"0"`
	WorkerInterval time.Duration `envconfig:"SYNC_WORKER_INTERVAL" default:"0s"`
}

type ImagesConfig struct {
	DefaultTTL      time.Duration `envconfig:"IMAGES_CACHE_TTL" default:"1h"`
	HighPriorityTTL time.Duration `envconfig:"IMAGES_CACHE_TTL_HIGH" default:"2h"`
	BatchLimit      int           `envconfig:"IMAGES_BATCH_LIMIT" default:"50"`
	ChunkSize       int           `envconfig:"IMAGES_CHUNK_SIZE" default:"5"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
