package config

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	ServiceName string
	Env         string
	Port        string
	Backend     string
	DatabaseURL string
}

// Load reads an optional .env file and then the environment. A missing
// .env file is fine in production where everything comes from the
// process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		zap.L().Info("no .env file found, using process environment")
	}

	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "fisher-backoffice"),
		Env:         getEnv("ENV", "dev"),
		Port:        getEnv("PORT", "8080"),
		Backend:     getEnv("STORAGE_BACKEND", BackendMemory),
		DatabaseURL: getEnv("DATABASE_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
