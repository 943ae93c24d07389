package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers supported for submission attachments.
const (
	StorageDriverNone       = "none"
	StorageDriverCloudinary = "cloudinary"
	StorageDriverS3         = "s3"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	NotificationChannel    string
	NotificationKeepAlive  time.Duration
	MaxReopens             int
	StorageDriver          string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	S3Bucket               string
	S3Region               string
	S3Endpoint             string
	S3PathStyle            bool
	S3AccessKeyID          string
	S3SecretAccessKey      string
	UploadMaxSizeMB        int
	RateLimitMax           int
	RateLimitWindow        time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HIFZ")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("app.name", "Hifz API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("notifications.channel", "hifz")
	v.SetDefault("notifications.keepalive", "30s")
	v.SetDefault("workflow.max_reopens", 3)
	v.SetDefault("storage.driver", StorageDriverNone)
	v.SetDefault("cloudinary.folder", "hifz/submissions")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("uploads.max_mb", 10)
	v.SetDefault("ratelimit.max", 30)
	v.SetDefault("ratelimit.window", "1m")

	keepAlive, err := parseDuration(v.GetString("notifications.keepalive"), 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid notifications keepalive: %w", err)
	}

	window, err := parseDuration(v.GetString("ratelimit.window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		NotificationChannel:    v.GetString("notifications.channel"),
		NotificationKeepAlive:  keepAlive,
		MaxReopens:             v.GetInt("workflow.max_reopens"),
		StorageDriver:          strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		S3Bucket:               v.GetString("s3.bucket"),
		S3Region:               v.GetString("s3.region"),
		S3Endpoint:             v.GetString("s3.endpoint"),
		S3PathStyle:            v.GetBool("s3.path_style"),
		S3AccessKeyID:          v.GetString("s3.access_key_id"),
		S3SecretAccessKey:      v.GetString("s3.secret_access_key"),
		UploadMaxSizeMB:        v.GetInt("uploads.max_mb"),
		RateLimitMax:           v.GetInt("ratelimit.max"),
		RateLimitWindow:        window,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MaxReopens < 0 {
		return Config{}, fmt.Errorf("workflow max reopens must not be negative")
	}

	switch cfg.StorageDriver {
	case "", StorageDriverNone:
		cfg.StorageDriver = StorageDriverNone
	case StorageDriverCloudinary, StorageDriverS3:
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.StorageDriver == StorageDriverS3 && cfg.S3Bucket == "" {
		return Config{}, fmt.Errorf("s3 bucket required for s3 storage driver")
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 30
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
