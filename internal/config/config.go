package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// DSN builds the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig represents cache configuration. Backend is "memory" or "redis".
type CacheConfig struct {
	Backend    string `mapstructure:"backend"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	RedisAddr  string `mapstructure:"redis_addr"`
	RedisPass  string `mapstructure:"redis_password"`
	RedisDB    int    `mapstructure:"redis_db"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Optional .env for local development
	_ = godotenv.Load(".env")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("database.host", getEnv("PG_HOST", "localhost"))
	viper.SetDefault("database.port", getEnvInt("PG_PORT", 5432))
	viper.SetDefault("database.user", getEnv("PG_USER", "postgres"))
	viper.SetDefault("database.password", getEnv("PG_PASSWORD", ""))
	viper.SetDefault("database.name", getEnv("PG_DATABASE", "toolhub_dev"))
	viper.SetDefault("database.ssl_mode", getEnv("PG_SSL_MODE", "disable"))
	viper.SetDefault("server.host", getEnv("SERVER_HOST", "0.0.0.0"))
	viper.SetDefault("server.port", getEnvInt("SERVER_PORT", 8080))
	viper.SetDefault("cache.backend", getEnv("CACHE_BACKEND", "memory"))
	viper.SetDefault("cache.ttl_seconds", getEnvInt("CACHE_TTL_SECONDS", 300))
	viper.SetDefault("cache.redis_addr", getEnv("REDIS_ADDR", "localhost:6379"))
	viper.SetDefault("cache.redis_password", getEnv("REDIS_PASSWORD", ""))
	viper.SetDefault("cache.redis_db", getEnvInt("REDIS_DB", 0))
	viper.SetDefault("log.level", getEnv("LOG_LEVEL", "info"))

	// Enable environment variable support
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
