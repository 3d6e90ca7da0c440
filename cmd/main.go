package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carpoolbot/config"
	"carpoolbot/pkg/bot"
	"carpoolbot/pkg/clock"
	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/notify"
	"carpoolbot/service"
	"carpoolbot/storage"
	"carpoolbot/storage/memory"
	"carpoolbot/storage/postgres"
	"carpoolbot/storage/redis"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", logger.Error(err))
		os.Exit(1)
	}

	ctx := context.Background()

	// 3. Initialize Reservation Storage
	var stg storage.IStorage
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		log.Warning("Using in-memory reservation storage; data is lost on restart")
		stg = memory.New(clock.NewRealClock())
	default:
		pgStore, err := postgres.New(ctx, cfg, log)
		if err != nil {
			log.Error("Failed to connect to postgres", logger.Error(err))
			os.Exit(1)
		}
		stg = pgStore
	}
	defer stg.Close()

	// 4. Initialize Session Storage
	var sessions storage.ISessionStorage
	switch cfg.SessionDriver {
	case config.SessionDriverRedis:
		rc := redis.NewClient(cfg.RedisAddr(), cfg.RedisPassword)
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Error("Failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		defer rc.Close()
		sessions = redis.NewSessionStore(rc, cfg.SessionIdleTimeout, log)
	default:
		sessions = memory.NewSessionStore(clock.NewRealClock(), cfg.SessionIdleTimeout)
	}

	// 5. Group notification targets
	dispatcher := notify.NewFanout(log).Add("log", notify.Log{Log: log})
	if len(cfg.KafkaBrokers) > 0 {
		publisher := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaGroupTopic)
		defer publisher.Close()
		dispatcher.Add("kafka", publisher)
	}

	var tgBot *bot.Bot
	if cfg.TelegramBotToken != "" {
		b, err := bot.New(&cfg, log)
		if err != nil {
			log.Error("Failed to initialize telegram bot", logger.Error(err))
			os.Exit(1)
		}
		tgBot = b
		dispatcher.Add("telegram", tgBot)
	}

	// 6. Services
	svc := service.New(stg, sessions, dispatcher, cfg, log)

	// 7. Transports
	server := bot.NewServer(cfg.AppPort, svc, log)
	go func() {
		if err := server.Run(); err != nil {
			log.Error("HTTP server stopped", logger.Error(err))
			os.Exit(1)
		}
	}()

	if tgBot != nil {
		tgBot.Register(svc)
		go tgBot.Start()
	}

	log.Info("🚀 Carpool backend is running")

	// 8. Graceful Shutdown listener
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("Shutting down...")
	if tgBot != nil {
		tgBot.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", logger.Error(err))
	}
}
