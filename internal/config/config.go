package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string

	LogLevel string
	LogFile  string

	JWTSecret    string
	ServiceToken string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int

	CORSAllowedOrigins []string

	StoreTimeoutSeconds int
	AuditTimeoutSeconds int

	PolicyPath string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		LogFile:                os.Getenv("LOG_FILE"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		ServiceToken:           os.Getenv("SERVICE_TOKEN"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		CORSAllowedOrigins:     envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		StoreTimeoutSeconds:    envIntDefault("STORE_TIMEOUT_SECONDS", 10),
		AuditTimeoutSeconds:    envIntDefault("AUDIT_TIMEOUT_SECONDS", 5),
		PolicyPath:             os.Getenv("POLICY_PATH"),
	}
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) StoreTimeout() time.Duration {
	if c.StoreTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

func (c Config) AuditTimeout() time.Duration {
	if c.AuditTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.AuditTimeoutSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
