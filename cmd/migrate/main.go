package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/noah-isme/backend-mess/internal/obs"
	"github.com/noah-isme/backend-mess/internal/store"
)

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with the down command")
	flag.Parse()

	_ = godotenv.Load()
	logger := obs.NewLogger(os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	var err error
	switch cmd {
	case "up":
		err = store.Migrate(dbURL)
	case "down":
		err = store.MigrateDown(dbURL, *steps)
	default:
		logger.Fatal().Str("command", cmd).Msg("usage: migrate [-steps n] up|down")
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("migration failed")
	}
	logger.Info().Str("command", cmd).Msg("migrations complete")
}
