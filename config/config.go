// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the configuration of the messaging service and CLI.
type Config struct {
	// DatabaseDriver is "mysql" or "sqlite".
	DatabaseDriver string
	// DatabaseDSN is the driver-specific connection string.
	DatabaseDSN string
	// BlobDir is the directory for encrypted attachment payloads.
	BlobDir string
	// MaxAttachmentSize is the attachment ceiling in bytes.
	MaxAttachmentSize int64
	// LogLevel is the slog level name (DEBUG, INFO, WARN, ERROR).
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DatabaseDriver:    getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:       getEnv("DATABASE_DSN", "envelope.db"),
		BlobDir:           getEnv("BLOB_DIR", "blobs"),
		MaxAttachmentSize: getEnvInt64("MAX_ATTACHMENT_SIZE", 16<<20),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}
