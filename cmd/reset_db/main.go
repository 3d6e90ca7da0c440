package main

import (
	"context"
	"fmt"

	"carpoolbot/config"
	"carpoolbot/pkg/logger"
	"carpoolbot/storage/postgres"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	pg, err := postgres.New(context.Background(), cfg, log)

	if err != nil {
		panic(err)
	}
	defer pg.Close()

	// Schema stays; only booking data goes. Identity restarts so ids are
	// small again in local runs.
	_, err = pg.GetPool().Exec(context.Background(), "TRUNCATE TABLE reservations RESTART IDENTITY")
	if err != nil {
		log.Error(fmt.Sprintf("Failed to truncate reservations: %v", err))
	} else {
		log.Info("Successfully truncated reservations table.")
	}
}
