package main

import (
	"context"
	"os"
	"time"

	"github.com/defiquant/yre/internal/config"
	"github.com/defiquant/yre/internal/datafetcher"
	"github.com/defiquant/yre/internal/engine"
	"github.com/defiquant/yre/internal/logger"
	"github.com/defiquant/yre/internal/oracle"
	"github.com/defiquant/yre/internal/state"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	LOOP_INTERVAL = 10 * time.Minute
)

// main is the entry point for the yield research engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Yield Research Engine Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: config.DBHost, Port: config.DBPort,
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: config.DBSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Strategy Parameters
	configName := config.ConfigName
	if configName == "" {
		configName = engine.DEFAULT_CONFIG_NAME
	}
	params, paramsID, err := state.LoadActiveStrategyParameters(configName)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active strategy parameters, using defaults and saving.")
		defaultParams := config.DefaultStrategyParameters
		paramsID, err = state.SaveStrategyParameters(defaultParams, configName, engine.DEFAULT_CONFIG_VERSION, true)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default strategy parameters.")
		}
		params = &defaultParams
	}
	log.Info().Str("config", configName).Msg("Strategy parameters loaded successfully.")

	// --- 2. Create Engine Instance with Dependency Injection ---
	log.Info().Msg("Creating engine instance with dependency injection...")

	engineConfig := engine.Config{
		CandidateSource: datafetcher.FileCandidateSource{Path: config.CandidateSnapshotPath},
		SeriesSource:    datafetcher.FileSeriesSource{Path: config.SeriesPath},
		Oracle:          oracle.NewStatic(nil),
		Params:          params,
		ParamsID:        paramsID,
		TotalCapitalUSD: config.TotalCapitalUSD,
		Persist:         true,
	}

	engineInstance, err := engine.New(engineConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine instance")
	}

	log.Info().Msg("Engine instance created successfully")

	// --- 3. Start Engine Main Loop ---
	log.Info().Str("interval", LOOP_INTERVAL.String()).Msg("Starting engine main loop")

	ctx := context.Background()

	// Start the engine loop (this will run indefinitely)
	engineInstance.RunLoop(ctx, LOOP_INTERVAL)
}
