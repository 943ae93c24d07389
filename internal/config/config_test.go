package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	require.Equal(t, "Hifz API", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 3, cfg.MaxReopens)
	require.Equal(t, StorageDriverNone, cfg.StorageDriver)
	require.Equal(t, 30*time.Second, cfg.NotificationKeepAlive)
	require.Equal(t, time.Minute, cfg.RateLimitWindow)
	require.Equal(t, 10, cfg.UploadMaxSizeMB)
}

func TestFromViperRequiresSecret(t *testing.T) {
	_, err := fromViper(viper.New())
	require.Error(t, err)
}

func TestFromViperRejectsUnknownStorageDriver(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")
	v.Set("storage.driver", "ftp")

	_, err := fromViper(v)
	require.ErrorContains(t, err, "unsupported storage driver")
}

func TestFromViperS3NeedsBucket(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")
	v.Set("storage.driver", "S3")

	_, err := fromViper(v)
	require.ErrorContains(t, err, "s3 bucket")

	v.Set("s3.bucket", "hifz-attachments")
	cfg, err := fromViper(v)
	require.NoError(t, err)
	require.Equal(t, StorageDriverS3, cfg.StorageDriver)
	require.Equal(t, "us-east-1", cfg.S3Region)
}
