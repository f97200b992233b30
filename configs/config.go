package configs

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DBSource    string
	JWTSecret   string
	FrontendURL string

	SuperuserUtorid   string
	SuperuserEmail    string
	SuperuserPassword string
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8000"),
		DBSource:    getEnv("DB_SOURCE", "loyalty.db"),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		SuperuserUtorid:   getEnv("SUPERUSER_UTORID", ""),
		SuperuserEmail:    getEnv("SUPERUSER_EMAIL", ""),
		SuperuserPassword: getEnv("SUPERUSER_PASSWORD", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
