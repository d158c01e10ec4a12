// Package config loads the worker's environment-variable configuration
// (spec.md §6), following the teacher's getEnv(key, fallback) helper in
// internal/data/conn.go. Environment values always take precedence over
// the defaults named here.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full set of environment-driven settings for one worker
// process.
type Config struct {
	Env string

	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBPoolMin  int
	DBPoolMax  int

	SFTPHost     string
	SFTPPort     string
	SFTPUser     string
	SFTPPassword string

	InputDir  string
	OutputDir string
	MaskedDir string

	DownstreamAPIBaseURL string
	DownstreamAPITimeout time.Duration

	LogLevel  string
	LogFormat string
	LogOutput string

	StreamBatchSize int
	BatchSize       int
	StaleThreshold  time.Duration

	DryRun bool
}

// Load reads Config from the process environment, applying defaults for
// anything unset.
func Load() Config {
	return Config{
		Env: getEnv("ENV", "dev"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", ""),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBPoolMin:  getEnvInt("DB_POOL_MIN", 5),
		DBPoolMax:  getEnvInt("DB_POOL_MAX", 15),

		SFTPHost:     getEnv("SFTP_HOST", ""),
		SFTPPort:     getEnv("SFTP_PORT", "22"),
		SFTPUser:     getEnv("SFTP_USER", ""),
		SFTPPassword: getEnv("SFTP_PASSWORD", ""),

		InputDir:  getEnv("INPUT_DIR", "/data/in"),
		OutputDir: getEnv("OUTPUT_DIR", "/data/out"),
		MaskedDir: getEnv("MASKED_DIR", "/data/masked"),

		DownstreamAPIBaseURL: getEnv("DOWNSTREAM_API_BASE_URL", ""),
		DownstreamAPITimeout: time.Duration(getEnvInt("DOWNSTREAM_API_TIMEOUT", 300)) * time.Second,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),

		StreamBatchSize: getEnvInt("STREAM_BATCH_SIZE", 30000),
		BatchSize:       getEnvInt("BATCH_SIZE", 10),
		StaleThreshold:  time.Duration(getEnvInt("STALE_THRESHOLD_HOURS", 2)) * time.Hour,

		DryRun: getEnvBool("DRY_RUN", false),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
