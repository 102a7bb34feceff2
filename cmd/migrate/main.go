package main

import (
	"context"
	"database/sql"
	"flag"
	"time"

	_ "github.com/lib/pq"

	"OptionPool/internal/config"
	"OptionPool/internal/observability"
	"OptionPool/internal/persistence"
)

// Standalone migration runner: `migrate -direction up|down`.
func main() {
	log := observability.NewLogger("migrate")

	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}

	m := persistence.NewMigrator(db, cfg.MigrationsDir, log)

	switch *direction {
	case "up":
		err = m.Up(ctx)
	case "down":
		err = m.Down(ctx)
	default:
		log.Fatal().Str("direction", *direction).Msg("unknown direction")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	log.Info().Str("direction", *direction).Msg("migrations complete")
}
