package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env style files into the process environment. A missing
// file is reported but callers may ignore it and rely on the real environment.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of key, or fallback when unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// ApplyEnv overrides file values with HRVGUARD_* variables. Load calls it
// before the config is validated and published.
func ApplyEnv(cfg *Config) {
	cfg.LogLevel = GetEnv("HRVGUARD_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = GetEnv("HRVGUARD_LOG_FORMAT", cfg.LogFormat)
	cfg.API.Addr = GetEnv("HRVGUARD_API_ADDR", cfg.API.Addr)
	cfg.Storage.DSN = GetEnv("HRVGUARD_STORAGE_DSN", cfg.Storage.DSN)
	cfg.Pipeline.Workers = GetEnvInt("HRVGUARD_WORKERS", cfg.Pipeline.Workers)
}
