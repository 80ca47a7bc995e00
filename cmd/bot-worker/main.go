// The bot-worker binary consumes chat events from SQS, so reply latency
// never rides on the webhook request path. Run it alongside the api
// server when USE_MEMORY_QUEUE is off.
package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/okhlopkov/salon-assistant/cmd/mainconfig"
	"github.com/okhlopkov/salon-assistant/internal/booking"
	appconfig "github.com/okhlopkov/salon-assistant/internal/config"
	"github.com/okhlopkov/salon-assistant/internal/conversation"
	"github.com/okhlopkov/salon-assistant/internal/history"
	"github.com/okhlopkov/salon-assistant/internal/notify"
	"github.com/okhlopkov/salon-assistant/internal/observability/metrics"
	"github.com/okhlopkov/salon-assistant/internal/parser"
	"github.com/okhlopkov/salon-assistant/internal/reminder"
	"github.com/okhlopkov/salon-assistant/internal/schedule"
	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting salon-assistant bot worker", "env", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.ChatQueueURL == "" {
		logger.Error("CHAT_QUEUE_URL is required for the bot worker")
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, falling back to UTC", "tz", cfg.Timezone, "error", err)
		loc = time.UTC
	}

	m := metrics.NewBookingMetrics(prometheus.NewRegistry())

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
	}

	var repo booking.Repository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo = booking.NewPostgresRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory booking store")
		repo = booking.NewMemoryRepository()
	}

	grid := schedule.Grid{OpenHour: cfg.OpenHour, CloseHour: cfg.CloseHour, StepMinutes: cfg.SlotStepMinutes}
	availability := booking.NewAvailability(repo, grid, logger)
	bookingService := booking.NewService(repo, m, logger)

	var states conversation.StateStore
	if redisClient != nil {
		states = conversation.NewRedisStateStore(redisClient, cfg.StateTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, dialogue state will not survive restarts")
		states = conversation.NewMemoryStateStore()
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ChatQueueURL)

	// TODO: wire a real bot-platform messenger once a channel SDK lands.
	messenger := notify.NewStubMessenger(logger)

	scheduler := reminder.NewScheduler(messenger, reminder.NewRedisJobStore(redisClient), loc, m, logger)
	defer scheduler.Stop()
	if _, err := scheduler.Rehydrate(ctx); err != nil {
		logger.Warn("reminder rehydration failed", "error", err)
	}

	var historyStore *history.Store
	if cfg.DatabaseURL != "" {
		historyDB, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Warn("history store disabled", "error", err)
		} else {
			defer func() { _ = historyDB.Close() }()
			historyStore = history.NewStore(historyDB, logger)
		}
	}

	machineOpts := []conversation.MachineOption{
		conversation.WithReminderScheduler(scheduler),
		conversation.WithProcedures(cfg.Procedures),
		conversation.WithSalonName(cfg.SalonName),
		conversation.WithLocation(loc),
	}
	if historyStore != nil {
		machineOpts = append(machineOpts, conversation.WithHistoryRecorder(historyStore))
	}
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		if operator := notify.NewOperatorEmail(sg, cfg.OperatorEmail, cfg.SalonName, logger); operator != nil {
			machineOpts = append(machineOpts, conversation.WithOperatorNotifier(operator))
		}
	}
	if cfg.GeminiAPIKey != "" {
		geminiParser, err := parser.NewGeminiParser(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID, cfg.Procedures, cfg.GeminiTimeout, logger)
		if err != nil {
			logger.Warn("gemini parser disabled", "error", err)
		} else {
			defer func() { _ = geminiParser.Close() }()
			machineOpts = append(machineOpts, conversation.WithParser(geminiParser))
		}
	}

	machine := conversation.NewMachine(states, availability, bookingService, m, logger, machineOpts...)

	worker := conversation.NewWorker(machine, queue, messenger, logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithReceiveWaitSeconds(10),
	)
	worker.Start(ctx)
	logger.Info("bot worker consuming", "queue_url", cfg.ChatQueueURL, "workers", cfg.WorkerCount)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	cancel()
	worker.Wait()
	logger.Info("worker stopped")
}
