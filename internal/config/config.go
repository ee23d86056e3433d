package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Host      string
	Port      int
	PublicURL string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// AuthConfig carries the token and key-rotation settings. KeyExpireInterval
// must be longer than KeyRotateInterval or tokens signed just before a
// rotation would become unverifiable while still fresh.
type AuthConfig struct {
	Issuer            string
	KeyRotateInterval time.Duration
	KeyExpireInterval time.Duration
	// KeyFetchURL is the login service endpoint serving public keys,
	// ending with "kid=" so that a key id can be appended directly.
	KeyFetchURL     string
	SessionTTL      time.Duration
	CookieName      string
	RedirectToLogin bool
}

type RedisConfig struct {
	Addr     string
	Password string
	Username string
	DB       int
}

type WorkerConfig struct {
	Concurrency int
	QueueSize   int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "localhost"),
			Port:      getEnvAsInt("SERVER_PORT", 8080),
			PublicURL: getEnv("PUBLIC_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Name:     getEnv("POSTGRES_DB", "authbase"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			Issuer:            getEnv("AUTH_ISSUER", "authbase"),
			KeyRotateInterval: getEnvAsDuration("AUTH_KEY_ROTATE_INTERVAL", 30*time.Minute),
			KeyExpireInterval: getEnvAsDuration("AUTH_KEY_EXPIRE_INTERVAL", 60*time.Minute),
			KeyFetchURL:       getEnv("AUTH_KEY_FETCH_URL", "http://localhost:8080/login?kid="),
			SessionTTL:        getEnvAsDuration("AUTH_SESSION_TTL", 30*time.Minute),
			CookieName:        getEnv("AUTH_COOKIE_NAME", "X-JWT-Token"),
			RedirectToLogin:   getEnvAsBool("AUTH_REDIRECT_TO_LOGIN", true),
		},
		Redis: RedisConfig{
			Addr:     fmt.Sprintf("%s:%d", getEnv("REDIS_HOST", "localhost"), getEnvAsInt("REDIS_PORT", 6379)),
			Password: getEnv("REDIS_PASSWORD", ""),
			Username: getEnv("REDIS_USERNAME", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 5),
			QueueSize:   getEnvAsInt("WORKER_QUEUE_SIZE", 100),
		},
	}

	if cfg.Auth.KeyExpireInterval <= cfg.Auth.KeyRotateInterval {
		return nil, fmt.Errorf("AUTH_KEY_EXPIRE_INTERVAL (%s) must be greater than AUTH_KEY_ROTATE_INTERVAL (%s)",
			cfg.Auth.KeyExpireInterval, cfg.Auth.KeyRotateInterval)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
