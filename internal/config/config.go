package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/punchamoorthee/fundledger/internal/payos"
)

// LocalBlobPath is where cmd/api serves LocalBlobDir.
const LocalBlobPath = "/files"

type Config struct {
	DBSource string
	Port     string
	Env      string

	PayOS payos.Config

	S3Bucket        string
	AWSRegion       string
	S3PublicBaseURL string
	// Without a bucket, uploads go to LocalBlobDir and are served under
	// LocalBlobBaseURL. Production requires a bucket.
	LocalBlobDir     string
	LocalBlobBaseURL string

	// CampaignStatusInterval is how often time-driven campaign transitions are
	// persisted. Zero disables the refresher.
	CampaignStatusInterval time.Duration
	// SystemActor confirms gateway-paid donations; uuid.Nil selects the default.
	SystemActor uuid.UUID
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Real environment variables win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	} else if err == nil {
		log.Println("[CONFIG] loaded .env")
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	cfg := &Config{
		DBSource:        dbSource,
		Port:            getEnv("SERVER_PORT", "8080"),
		Env:             getEnv("ENVIRONMENT", "development"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		AWSRegion:       getEnv("AWS_REGION", "ap-southeast-1"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		LocalBlobDir:    getEnv("LOCAL_BLOB_DIR", "uploads"),
		PayOS: payos.Config{
			ClientID:    os.Getenv("PAYOS_CLIENT_ID"),
			APIKey:      os.Getenv("PAYOS_API_KEY"),
			ChecksumKey: os.Getenv("PAYOS_CHECKSUM_KEY"),
			BaseURL:     getEnv("PAYOS_BASE_URL", payos.DefaultBaseURL),
			ReturnURL:   os.Getenv("PAYOS_RETURN_URL"),
			CancelURL:   os.Getenv("PAYOS_CANCEL_URL"),
		},
	}

	var err error
	if cfg.PayOS.Timeout, err = durationEnv("PAYOS_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.CampaignStatusInterval, err = durationEnv("CAMPAIGN_STATUS_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if v := os.Getenv("SYSTEM_ACTOR_ID"); v != "" {
		if cfg.SystemActor, err = uuid.Parse(v); err != nil {
			return nil, fmt.Errorf("SYSTEM_ACTOR_ID: %w", err)
		}
	}
	cfg.LocalBlobBaseURL = getEnv("LOCAL_BLOB_BASE_URL", "http://localhost:"+cfg.Port+LocalBlobPath)
	if cfg.S3Bucket == "" && cfg.Env == "production" {
		return nil, fmt.Errorf("S3_BUCKET environment variable is required in production")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
