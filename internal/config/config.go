package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr                string
	DatabaseURL             string
	RedisAddr               string
	RedisPassword           string
	JWTSecret               string
	JWTIssuer               string
	AccessTokenTTL          time.Duration
	RefreshTokenTTL         time.Duration
	RevocationSweepInterval time.Duration
	RevocationDefaultTTL    time.Duration
	BootstrapAdminEmail     string
	BootstrapAdminPassword  string
	ShutdownTimeout         time.Duration
}

func Load() Config {
	return Config{
		HTTPAddr:                getenv("HTTP_ADDR", ":8084"),
		DatabaseURL:             getenv("DATABASE_URL", ""),
		RedisAddr:               getenv("REDIS_ADDR", ""),
		RedisPassword:           getenv("REDIS_PASSWORD", ""),
		JWTSecret:               getenv("JWT_SECRET", "dev-secret"),
		JWTIssuer:               getenv("JWT_ISSUER", "openpath"),
		AccessTokenTTL:          getenvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:         getenvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		RevocationSweepInterval: getenvDuration("REVOCATION_SWEEP_INTERVAL", 5*time.Minute),
		RevocationDefaultTTL:    getenvDuration("REVOCATION_DEFAULT_TTL", 24*time.Hour),
		BootstrapAdminEmail:     getenv("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword:  getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		ShutdownTimeout:         getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
