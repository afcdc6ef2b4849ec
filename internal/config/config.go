package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port                  string `yaml:"port"`
	AllowedOrigin         string `yaml:"allowed_origin"`
	DatabaseURL           string `yaml:"database_url"`
	RedisAddr             string `yaml:"redis_addr"`
	RedisPassword         string `yaml:"redis_password"`
	RedisDB               int    `yaml:"redis_db"`
	OrderIndexTTLSeconds  int    `yaml:"order_index_ttl_seconds"`
	AuthSecret            string `yaml:"auth_secret"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes"`
	DeleteBatchSize       int    `yaml:"delete_batch_size"`
	PageSize              int    `yaml:"page_size"`
	StrictStockGuard      bool   `yaml:"strict_stock_guard"`
	LogLevel              string `yaml:"log_level"`
}

func Defaults() Config {
	return Config{
		Port:                  "8080",
		AllowedOrigin:         "http://127.0.0.1:3000",
		OrderIndexTTLSeconds:  300,
		AccessTokenTTLMinutes: 480,
		DeleteBatchSize:       100,
		PageSize:              50,
		StrictStockGuard:      true,
		LogLevel:              "info",
	}
}

// Load resolves configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.AllowedOrigin = getEnv("ALLOWED_ORIGIN", cfg.AllowedOrigin)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB, 0)
	cfg.OrderIndexTTLSeconds = getEnvInt("ORDER_INDEX_TTL_SECONDS", cfg.OrderIndexTTLSeconds, 1)
	cfg.AuthSecret = strings.TrimSpace(getEnv("AUTH_SECRET", cfg.AuthSecret))
	cfg.AccessTokenTTLMinutes = getEnvInt("ACCESS_TOKEN_TTL_MINUTES", cfg.AccessTokenTTLMinutes, 1)
	cfg.DeleteBatchSize = getEnvInt("DELETE_BATCH_SIZE", cfg.DeleteBatchSize, 1)
	cfg.PageSize = getEnvInt("PAGE_SIZE", cfg.PageSize, 1)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if raw := strings.TrimSpace(os.Getenv("STRICT_STOCK_GUARD")); raw != "" {
		strict, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid STRICT_STOCK_GUARD: %q", raw)
		}
		cfg.StrictStockGuard = strict
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int, min int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < min {
		return fallback
	}
	return val
}
