package app

import (
	"os"
	"time"
)

type Config struct {
	Email    string // Required: account email
	Password string // Required: account password (digested immediately, never logged)

	AccountBaseURL  string        // Optional: account login base URL
	CloudBaseURL    string        // Optional: SaaS cloud base URL
	CognitoEndpoint string        // Optional: identity pool endpoint
	IoTEndpoint     string        // Optional: message broker endpoint
	Region          string        // Optional: broker signing region
	IdentityID      string        // Optional: identity pool identity id
	RefreshInterval time.Duration // Refresher check interval (default: 60s)
	RefreshMargin   time.Duration // Refresh safety margin (default: 5m)

	DeviceID string // Optional: device to command after listing
	Power    string // Optional: "on" or "off" for the commanded device

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
}

func LoadConfig() Config {
	return Config{
		Email:    os.Getenv("TCLHOME_EMAIL"),
		Password: os.Getenv("TCLHOME_PASSWORD"),

		AccountBaseURL:  os.Getenv("TCLHOME_ACCOUNT_URL"),
		CloudBaseURL:    os.Getenv("TCLHOME_CLOUD_URL"),
		CognitoEndpoint: os.Getenv("TCLHOME_COGNITO_URL"),
		IoTEndpoint:     os.Getenv("TCLHOME_IOT_ENDPOINT"),
		Region:          os.Getenv("TCLHOME_REGION"),
		IdentityID:      os.Getenv("TCLHOME_IDENTITY_ID"),
		RefreshInterval: getEnvDurationOrDefault("TCLHOME_REFRESH_INTERVAL", time.Minute),
		RefreshMargin:   getEnvDurationOrDefault("TCLHOME_REFRESH_MARGIN", 5*time.Minute),

		DeviceID: os.Getenv("TCLHOME_DEVICE_ID"),
		Power:    os.Getenv("TCLHOME_POWER"),

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
