package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Geocode      GeocodeConfig
	Vision       VisionConfig
	Chat         ChatConfig
	Calendar     CalendarConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	Upload       UploadConfig
	Retention    RetentionConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DEFECTWATCH_APP_ENV" required:"true"`
	Port         string `envconfig:"DEFECTWATCH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DEFECTWATCH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DEFECTWATCH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DEFECTWATCH_DB_DSN" required:"true"`
	Driver string `envconfig:"DEFECTWATCH_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"DEFECTWATCH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DEFECTWATCH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DEFECTWATCH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DEFECTWATCH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DEFECTWATCH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DEFECTWATCH_REDIS_ADDR"`
	Password     string        `envconfig:"DEFECTWATCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"DEFECTWATCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DEFECTWATCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DEFECTWATCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DEFECTWATCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DEFECTWATCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DEFECTWATCH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DEFECTWATCH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DEFECTWATCH_AUTO_MIGRATE" default:"false"`
}

type GeocodeConfig struct {
	BaseURL      string        `envconfig:"DEFECTWATCH_GEOCODE_BASE_URL"`
	ClientID     string        `envconfig:"DEFECTWATCH_GEOCODE_CLIENT_ID"`
	ClientSecret string        `envconfig:"DEFECTWATCH_GEOCODE_CLIENT_SECRET"`
	Timeout      time.Duration `envconfig:"DEFECTWATCH_GEOCODE_TIMEOUT" default:"5s"`
}

type VisionConfig struct {
	BaseURL string `envconfig:"DEFECTWATCH_VISION_BASE_URL"`
	APIKey  string `envconfig:"DEFECTWATCH_VISION_API_KEY"`
	// Model inference routinely runs for tens of seconds.
	Timeout time.Duration `envconfig:"DEFECTWATCH_VISION_TIMEOUT" default:"120s"`
}

type ChatConfig struct {
	WebhookURL string        `envconfig:"DEFECTWATCH_CHAT_WEBHOOK_URL"`
	Channel    string        `envconfig:"DEFECTWATCH_CHAT_CHANNEL"`
	Timeout    time.Duration `envconfig:"DEFECTWATCH_CHAT_TIMEOUT" default:"10s"`
}

type CalendarConfig struct {
	BaseURL    string        `envconfig:"DEFECTWATCH_CALENDAR_BASE_URL"`
	CalendarID string        `envconfig:"DEFECTWATCH_CALENDAR_ID"`
	Timeout    time.Duration `envconfig:"DEFECTWATCH_CALENDAR_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DEFECTWATCH_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"DEFECTWATCH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DEFECTWATCH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"DEFECTWATCH_GCS_BUCKET_NAME"`
	Prefix     string `envconfig:"DEFECTWATCH_GCS_PREFIX" default:"upload"`
}

type PubSubConfig struct {
	DefectTopic        string `envconfig:"DEFECTWATCH_PUBSUB_DEFECT_TOPIC" default:"dw-defect-events"`
	DefectSubscription string `envconfig:"DEFECTWATCH_PUBSUB_DEFECT_SUBSCRIPTION"`
}

type UploadConfig struct {
	DataDir     string `envconfig:"DEFECTWATCH_UPLOAD_DATA_DIR" default:"data"`
	ImagesDir   string `envconfig:"DEFECTWATCH_UPLOAD_IMAGES_DIR" default:"images"`
	StaticMount string `envconfig:"DEFECTWATCH_UPLOAD_STATIC_MOUNT" default:"/data"`
	MaxUploadMB int    `envconfig:"DEFECTWATCH_MAX_UPLOAD_MB" default:"25"`
}

type RetentionConfig struct {
	Days     int           `envconfig:"DEFECTWATCH_RETENTION_DAYS" default:"30"`
	Interval time.Duration `envconfig:"DEFECTWATCH_RETENTION_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"DEFECTWATCH_RETENTION_LOCK_TTL" default:"25h"`
}
