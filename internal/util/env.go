package util

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

// LoadEnv loads a .env file into the process environment when one exists.
// Deployed environments set variables directly and ship no file.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment variables")
	}
}

// GetEnv returns the value of a required variable, or "" when unset. Callers
// that cannot run without it should fail fast on the empty string.
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvString returns the variable's value, or defaultValue when unset.
// An explicitly empty value counts as set.
func GetEnvString(key string, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

// GetEnvNumeric parses the variable as a number, falling back to
// defaultValue when unset or unparseable.
func GetEnvNumeric(key string, defaultValue int) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return float64(defaultValue)
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logger.Warn("Ignoring non-numeric environment value", "key", key, "value", value)
		return float64(defaultValue)
	}
	return parsed
}

// GetEnvBool parses the variable as a boolean ("true", "1", "t", ...),
// falling back to defaultValue when unset or unparseable.
func GetEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
