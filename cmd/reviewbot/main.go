package main

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iemarjay/reviewbot/internal/agent"
	"github.com/iemarjay/reviewbot/internal/config"
	"github.com/iemarjay/reviewbot/internal/cron"
	"github.com/iemarjay/reviewbot/internal/forge"
	"github.com/iemarjay/reviewbot/internal/ingest"
	"github.com/iemarjay/reviewbot/internal/queueadapter"
	"github.com/iemarjay/reviewbot/internal/sandbox"
	"github.com/iemarjay/reviewbot/internal/server"
	"github.com/iemarjay/reviewbot/internal/store"
	"github.com/iemarjay/reviewbot/internal/worker"
)

func main() {
	setupLogging()

	log.Info().Msg("starting reviewbot")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := store.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	st := store.NewStore(db)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	queue := queueadapter.NewQueue(redisOpt, cfg.AsynqQueue, cfg.AsynqMaxRetry)
	gate := ingest.NewGate(st, cfg.MaxReviewsPerRepoPerHour)

	if len(os.Args) > 1 && os.Args[1] == "worker" {
		runWorker(cfg, st, gate, redisOpt)
		return
	}

	srv := server.New(cfg, st, gate, queue)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runWorker(cfg *config.Config, st *store.Store, gate *ingest.Gate, redisOpt asynq.RedisClientOpt) {
	log.Info().Msg("starting reviewbot worker")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	sandboxes := sandbox.NewController(cfg.SandboxBaseDir)
	forgeClient := forge.NewGitHubClient(cfg.GitHubAppID, cfg.GitHubPrivateKey)
	model := agent.NewClient(cfg.ModelAPIKey, cfg.ModelName)

	processor := worker.NewProcessor(cfg, st, gate, sandboxes, rdb, forgeClient, model)

	workerID := uuid.NewString()
	sweeper := cron.NewSweeper(st, cfg.StaleJobTimeout, workerID)
	if err := sweeper.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start cron sweeper")
	}
	defer sweeper.Stop()

	asynqServer := queueadapter.NewServer(redisOpt, cfg.AsynqQueue, cfg.AsynqConcurrency)
	if err := asynqServer.Run(processor.Mux()); err != nil {
		log.Fatal().Err(err).Msg("worker error")
	}
}

func setupLogging() {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if os.Getenv("LOG_FORMAT") != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}
}
