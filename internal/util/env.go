package util

import (
	"os"
	"strconv"

	"github.com/ethicase/backend/pkg/logger"

	"github.com/joho/godotenv"
)

// LoadEnv reads a .env file into the process environment when one exists.
// Deployed environments configure through real environment variables instead.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment variables")
	}
}

func GetEnv(key string) string {
	return os.Getenv(key)
}

func GetEnvString(key string, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// GetEnvNumeric parses the variable as a float. Unset or unparseable values
// fall back to the default.
func GetEnvNumeric(key string, defaultValue int) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return float64(defaultValue)
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return float64(defaultValue)
	}
	return parsed
}

// GetEnvBool accepts only the literal strings "true" and "false";
// anything else falls back to the default.
func GetEnvBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "true":
		return true
	case "false":
		return false
	default:
		return defaultValue
	}
}
