package app

import (
	"os"
	"time"

	"github.com/parleychat/parley/internal/session/service"
)

type Config struct {
	ProviderBase string // Required: identity provider base URL
	AnonKey      string // Required: public API key for the provider and anonymous backend calls

	DataBase       string // Optional: conversation data API base URL
	StorageBase    string // Optional: object storage base URL
	TranscribeBase string // Optional: transcription service base URL

	DatabaseFile  string // Optional: path to SQLite credential database (default: ./parley.db)
	MasterKeyPath string // Optional: path to the sealing master key file
	CallbackAddr  string // Optional: loopback listener address for the sign-in redirect (default: ephemeral port)

	RefreshInterval time.Duration // Optional: scheduler check interval (default: 5m)
	RenewalWindow   time.Duration // Optional: renew when this close to expiry (default: 10m)
	AccessTokenTTL  time.Duration // Optional: assumed token validity when the provider states none (default: 1h)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
}

func LoadConfig() Config {
	return Config{
		ProviderBase: os.Getenv("PARLEY_PROVIDER_URL"),
		AnonKey:      os.Getenv("PARLEY_ANON_KEY"),

		DataBase:       os.Getenv("PARLEY_DATA_URL"),
		StorageBase:    os.Getenv("PARLEY_STORAGE_URL"),
		TranscribeBase: os.Getenv("PARLEY_TRANSCRIBE_URL"),

		DatabaseFile:  getEnvOrDefault("PARLEY_DATABASE_FILE", "parley.db"),
		MasterKeyPath: os.Getenv("PARLEY_MASTER_KEY_PATH"),
		CallbackAddr:  os.Getenv("PARLEY_CALLBACK_ADDR"),

		RefreshInterval: getEnvDurationOrDefault("PARLEY_REFRESH_INTERVAL", service.DefaultCheckInterval),
		RenewalWindow:   getEnvDurationOrDefault("PARLEY_RENEWAL_WINDOW", service.DefaultRenewalWindow),
		AccessTokenTTL:  getEnvDurationOrDefault("PARLEY_ACCESS_TOKEN_TTL", service.DefaultAccessTokenTTL),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
