package s3archive

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/axdashboard/axdash/internal/pkg/env"
)

// Config holds the dead-letter archive configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PathStyle       bool
	Prefix          string
	Enabled         bool
}

// LoadConfig loads archive configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("ARCHIVE_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("ARCHIVE_S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("ARCHIVE_S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("ARCHIVE_S3_BUCKET", ""),
		EndpointURL:     env.GetEnv("ARCHIVE_S3_ENDPOINT_URL", ""),
		Prefix:          strings.Trim(env.GetEnv("ARCHIVE_S3_PREFIX", "dead-letter"), "/"),
		Enabled:         env.GetEnvBool("ARCHIVE_S3_ENABLED", false),
	}
	// S3-compatible stores behind a custom endpoint need path-style URLs unless told otherwise.
	config.PathStyle = env.GetEnvBool("ARCHIVE_S3_PATH_STYLE", config.EndpointURL != "")

	if config.Enabled {
		if config.BucketName == "" {
			return nil, errors.New("ARCHIVE_S3_BUCKET is required when the archive is enabled")
		}
		if (config.AccessKeyID == "") != (config.SecretAccessKey == "") {
			return nil, errors.New("ARCHIVE_S3_ACCESS_KEY_ID and ARCHIVE_S3_SECRET_ACCESS_KEY must be set together")
		}
	}

	return config, nil
}

func (c *Config) IsEnabled() bool {
	return c.Enabled
}

var keyReplacer = strings.NewReplacer(":", "_", "/", "_", " ", "_")

// ObjectKey returns the key of an archived event: <prefix>/YYYY/MM/DD/<eventId>.json
func (c *Config) ObjectKey(eventID string, at time.Time) string {
	at = at.UTC()
	key := fmt.Sprintf("%04d/%02d/%02d/%s.json", at.Year(), int(at.Month()), at.Day(), keyReplacer.Replace(eventID))
	if c.Prefix == "" {
		return key
	}
	return c.Prefix + "/" + key
}
