package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizcoletivo/go/internal/dbconfig"
	"github.com/mcdev12/quizcoletivo/go/internal/schema"
)

func main() {
	down := flag.Int("down", 0, "number of migrations to roll back instead of migrating up")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = dbconfig.NewConfigFromEnv("quiz-migrate").DSN()
	}

	if *down > 0 {
		if err := schema.Rollback(dsn, *down); err != nil {
			log.Fatal().Err(err).Msg("rollback")
		}
		log.Info().Int("steps", *down).Msg("migrations rolled back")
		return
	}
	if err := schema.Migrate(dsn); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
}
