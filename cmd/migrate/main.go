package main

import (
	"flag"
	"os"

	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/db"
	"github.com/noah-isme/toko-pricing/internal/obs"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("cmd", "migrate").Logger()
	if cfg.DatabaseURL == "" {
		logger.Error().Msg("DATABASE_URL is not set")
		os.Exit(1)
	}

	if *down {
		if err := db.MigrateDown(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("rollback migrations")
		}
		logger.Info().Msg("migrations rolled back")
		return
	}
	if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	logger.Info().Msg("migrations applied")
}
