package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// TotalCapitalUSD is the capital the engine allocates each cycle.
	TotalCapitalUSD float64

	// ConfigName selects which versioned parameter set in the database this
	// instance runs under.
	ConfigName string

	// CandidateSnapshotPath is the JSON snapshot the candidate source reads.
	CandidateSnapshotPath string
	// SeriesPath is the JSON file the backtest series source reads.
	SeriesPath string

	// DBHost is the PostgreSQL host.
	DBHost string
	// DBPort is the PostgreSQL port.
	DBPort int
	// DBUser is the PostgreSQL user.
	DBUser string
	// DBPassword is the PostgreSQL password.
	DBPassword string
	// DBName is the PostgreSQL database name.
	DBName string
	// DBSSLMode is the PostgreSQL SSL mode ("disable", "require", ...).
	DBSSLMode string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	TotalCapitalUSD, err = getEnvAsFloat64("YRE_TOTAL_CAPITAL_USD")
	if err != nil {
		return err
	}

	ConfigName, err = getEnv("YRE_CONFIG_NAME")
	if err != nil {
		return err
	}

	CandidateSnapshotPath, err = getEnv("YRE_CANDIDATE_SNAPSHOT_PATH")
	if err != nil {
		return err
	}

	SeriesPath, err = getEnv("YRE_SERIES_PATH")
	if err != nil {
		return err
	}

	DBHost, err = getEnv("DB_HOST")
	if err != nil {
		return err
	}

	DBPort, err = getEnvAsInt("DB_PORT")
	if err != nil {
		return err
	}

	DBUser, err = getEnv("DB_USER")
	if err != nil {
		return err
	}

	DBPassword, err = getEnv("DB_PASSWORD")
	if err != nil {
		return err
	}

	DBName, err = getEnv("DB_NAME")
	if err != nil {
		return err
	}

	DBSSLMode, err = getEnv("DB_SSLMODE")
	if err != nil {
		return err
	}

	log.Debug().
		Float64("TotalCapitalUSD", TotalCapitalUSD).
		Str("ConfigName", ConfigName).
		Str("DBHost", DBHost).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}
