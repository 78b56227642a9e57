package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries all environment-driven settings for the server.
type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	JWKSURL     string
	CORSOrigins string
	TablePrefix string

	// Model backends
	AnthropicAPIKey string

	// Tool backends
	TavilyAPIKey    string
	MediaBackendURL string
	MediaBackendKey string

	// Blob storage for generated media
	StorageURL    string
	StorageKey    string
	StorageBucket string

	// Turn termination guarantees. Both caps are mandatory: the round cap
	// bounds model/tool round-trips within one turn, the timeout bounds the
	// turn's wall-clock time.
	MaxToolRounds int
	TurnTimeout   time.Duration

	Debug bool
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWKSURL:     getEnv("JWKS_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: getTablePrefix(env),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		TavilyAPIKey:    getEnv("TAVILY_API_KEY", ""),
		MediaBackendURL: getEnv("MEDIA_BACKEND_URL", ""),
		MediaBackendKey: getEnv("MEDIA_BACKEND_KEY", ""),

		StorageURL:    getEnv("STORAGE_URL", ""),
		StorageKey:    getEnv("STORAGE_KEY", ""),
		StorageBucket: getEnv("STORAGE_BUCKET", "assistant-media"),

		MaxToolRounds: getEnvInt("MAX_TOOL_ROUNDS", 5),
		TurnTimeout:   time.Duration(getEnvInt("TURN_TIMEOUT_SECONDS", 60)) * time.Second,

		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment.
func getTablePrefix(env string) string {
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
