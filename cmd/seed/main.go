package main

import (
	"context"
	"flag"
	"os"

	"github.com/caixa-pos/api/internal/auth"
	"github.com/caixa-pos/api/internal/config"
	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

func main() {
	// CLI flags
	accessID := flag.String("access-id", "", "Operator access id (badge number)")
	name := flag.String("name", "", "Operator name")
	role := flag.String("role", "", "Operator role: ADMIN, GERENTE, CAIXA, COZINHA or ENTREGADOR")
	pin := flag.String("pin", "", "Operator PIN, 4 to 8 digits")
	flag.Parse()

	// Fall back to environment variables
	if *accessID == "" {
		*accessID = os.Getenv("SEED_ACCESS_ID")
	}
	if *name == "" {
		*name = os.Getenv("SEED_NAME")
	}
	if *role == "" {
		*role = os.Getenv("SEED_ROLE")
	}
	if *pin == "" {
		*pin = os.Getenv("SEED_PIN")
	}

	// Fall back to defaults
	if *accessID == "" {
		*accessID = "000"
	}
	if *name == "" {
		*name = "Administrador"
	}
	if *role == "" {
		*role = string(enum.RoleAdmin)
	}
	if *pin == "" {
		*pin = "1234"
		log.Warn().Msg("using default PIN 1234, change it immediately in production")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.SetGlobalLogger(logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true}))

	opRole := enum.OperatorRole(*role)
	if !opRole.Valid() {
		log.Fatal().Str("role", *role).Msg("unknown role")
	}
	hash, err := auth.HashPin(*pin)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid pin")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("unable to ping database")
	}

	op, err := database.New(pool).UpsertOperator(ctx, database.UpsertOperatorParams{
		AccessID: *accessID,
		Name:     *name,
		Role:     opRole,
		PinHash:  hash,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("upsert operator")
	}

	log.Info().
		Str("id", op.ID.String()).
		Str("access_id", op.AccessID).
		Str("role", string(op.Role)).
		Msg("operator seeded")
}
