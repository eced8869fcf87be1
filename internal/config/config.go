package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DBUrl       string
	JWTSecret   string
	AppEnv      string
	StoreDriver string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DBUrl:       getEnv("DB_URL", ""),
		JWTSecret:   jwtSecret,
		AppEnv:      normalizeEnv(getEnv("APP_ENV", "production")),
		StoreDriver: strings.ToLower(strings.TrimSpace(getEnv("STORE_DRIVER", "postgres"))),
	}

	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DBUrl == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_DRIVER is postgres")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (expected postgres or memory)", cfg.StoreDriver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
