package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string
	DBDSN          string
	JWTSecret      string
	AccessTokenTTL time.Duration
	TeacherCode    string
	RedisAddr      string
	RedisPassword  string
	MigrationsPath string
	Environment    string
	AuthRateRPS    float64
	AuthRateBurst  int
}

func Load() (*Config, error) {
	// A missing .env file is fine, plain environment variables still apply.
	_ = godotenv.Load(".env")

	cfg := &Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		DBDSN:          os.Getenv("DB_DSN"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: getenvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		TeacherCode:    getenv("TEACHER_CODE", "adminprofessor"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		MigrationsPath: getenv("MIGRATIONS_PATH", "migrations"),
		Environment:    getenv("ENV", "development"),
		AuthRateRPS:    getenvFloat("AUTH_RATE_RPS", 5),
		AuthRateBurst:  getenvInt("AUTH_RATE_BURST", 10),
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	return cfg, nil
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
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}
