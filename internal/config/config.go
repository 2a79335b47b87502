package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	JWTSecret    string
	TokenTTLDays int

	AdminEmail    string
	AdminPassword string
	AdminName     string
	AdminRole     string

	AllowedOrigins []string

	RateLimitAuth   int
	RateLimitAPI    int
	RateLimitWindow time.Duration

	OTLPEndpoint string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		JWTSecret:    getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTLDays: getEnvInt("JWT_TTL_DAYS", 30),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Admin"),
		AdminRole:     getEnv("ADMIN_ROLE", "admin"),

		AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		RateLimitAuth:   getEnvInt("RATE_LIMIT_AUTH", 20),
		RateLimitAPI:    getEnvInt("RATE_LIMIT_API", 300),
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// TokenTTL is the lifetime of issued bearer tokens.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLDays) * 24 * time.Hour
}

func buildDBURL() string {
	if url := getEnv("DATABASE_URL", ""); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "contenthub")
	pass := getEnv("DB_PASSWORD", "contenthub")
	name := getEnv("DB_NAME", "contenthub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
