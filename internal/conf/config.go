package conf

import (
	"fmt"
	"time"

	"github.com/aylahq/ayla-backend/internal/pkg/database"
	"github.com/aylahq/ayla-backend/internal/pkg/gemini"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/aylahq/ayla-backend/internal/pkg/mailer"
	"github.com/aylahq/ayla-backend/internal/pkg/minio"
	"github.com/aylahq/ayla-backend/internal/pkg/redis"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database database.Config `mapstructure:"database"`
	Redis    redis.Config    `mapstructure:"redis"`
	MinIO    minio.Config    `mapstructure:"minio"`
	Gemini   gemini.Config   `mapstructure:"gemini"`
	Mail     mailer.Config   `mapstructure:"mail"`
	Log      logger.Config   `mapstructure:"log"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Sync     SyncConfig      `mapstructure:"sync"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`

	// ServiceKey authenticates internal job webhooks (external cron)
	ServiceKey string `mapstructure:"service_key"`
}

// SyncConfig holds every tunable of the shadow-state engine. TTLs and sweep
// cadences track the external service's retention guarantees, so they are
// configuration rather than constants.
type SyncConfig struct {
	// InlineSizeThreshold routes content below it through the synchronous
	// upload path; everything else goes through the async ingest job.
	InlineSizeThreshold int64 `mapstructure:"inline_size_threshold"`

	// FileRetention is the fallback expiry window when the service response
	// omits one.
	FileRetention     time.Duration `mapstructure:"file_retention"`
	FileSweepInterval time.Duration `mapstructure:"file_sweep_interval"`

	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	CacheSweepInterval time.Duration `mapstructure:"cache_sweep_interval"`

	// CacheExpiryBuffer treats a cache expiring within the buffer as already
	// invalid, so a request never rides a cache that dies mid-conversation.
	CacheExpiryBuffer time.Duration `mapstructure:"cache_expiry_buffer"`

	// MinCacheTokens is the service's minimum cacheable context size.
	MinCacheTokens int `mapstructure:"min_cache_tokens"`

	// Retry budget for external calls inside the coordinators.
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`

	// BackoffMax caps the reconciliation loop's per-job exponential backoff.
	BackoffMax time.Duration `mapstructure:"backoff_max"`

	DeadlineSyncInterval     time.Duration `mapstructure:"deadline_sync_interval"`
	ReminderDispatchInterval time.Duration `mapstructure:"reminder_dispatch_interval"`
}

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Sync.applyDefaults()

	return &config, nil
}

func (c *SyncConfig) applyDefaults() {
	if c.InlineSizeThreshold <= 0 {
		c.InlineSizeThreshold = 20 << 20 // 20 MiB
	}
	if c.FileRetention <= 0 {
		c.FileRetention = 48 * time.Hour
	}
	if c.FileSweepInterval <= 0 {
		c.FileSweepInterval = time.Hour
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.CacheSweepInterval <= 0 {
		c.CacheSweepInterval = 30 * time.Minute
	}
	if c.CacheExpiryBuffer <= 0 {
		c.CacheExpiryBuffer = 5 * time.Minute
	}
	if c.MinCacheTokens <= 0 {
		c.MinCacheTokens = 4096
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 2 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 10 * time.Minute
	}
	if c.DeadlineSyncInterval <= 0 {
		c.DeadlineSyncInterval = time.Hour
	}
	if c.ReminderDispatchInterval <= 0 {
		c.ReminderDispatchInterval = time.Minute
	}
}
