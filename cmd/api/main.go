package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/okhlopkov/salon-assistant/cmd/mainconfig"
	"github.com/okhlopkov/salon-assistant/internal/api/router"
	"github.com/okhlopkov/salon-assistant/internal/booking"
	appconfig "github.com/okhlopkov/salon-assistant/internal/config"
	"github.com/okhlopkov/salon-assistant/internal/conversation"
	"github.com/okhlopkov/salon-assistant/internal/history"
	"github.com/okhlopkov/salon-assistant/internal/http/handlers"
	"github.com/okhlopkov/salon-assistant/internal/notify"
	"github.com/okhlopkov/salon-assistant/internal/observability/metrics"
	"github.com/okhlopkov/salon-assistant/internal/parser"
	"github.com/okhlopkov/salon-assistant/internal/reminder"
	"github.com/okhlopkov/salon-assistant/internal/schedule"
	"github.com/okhlopkov/salon-assistant/internal/webchat"
	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting salon-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, falling back to UTC", "tz", cfg.Timezone, "error", err)
		loc = time.UTC
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(reg)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
	}

	// Booking store: Postgres when configured, in-memory otherwise.
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

	var publisher *conversation.Publisher
	var memQueue *conversation.MemoryQueue
	if cfg.UseMemoryQueue {
		memQueue = conversation.NewMemoryQueue(256)
		publisher = conversation.NewPublisher(memQueue, logger)
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		sqsQueue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ChatQueueURL)
		publisher = conversation.NewPublisher(sqsQueue, logger)
	}

	hub := webchat.NewHub(publisher, logger)

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

	// The dialogue machine and reminder timers live with whichever process
	// consumes the queue. With SQS that is the bot-worker; arming reminders
	// here too would double-send every pending job after a restart.
	var worker *conversation.Worker
	if memQueue != nil {
		messenger := notify.NewMultiMessenger(hub, notify.NewStubMessenger(logger))

		scheduler := reminder.NewScheduler(messenger, reminder.NewRedisJobStore(redisClient), loc, m, logger)
		defer scheduler.Stop()
		if armed, err := scheduler.Rehydrate(ctx); err != nil {
			logger.Warn("reminder rehydration failed", "error", err)
		} else if armed > 0 {
			logger.Info("reminders restored", "armed", armed)
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
		worker = conversation.NewWorker(machine, memQueue, messenger, logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
		worker.Start(ctx)
	} else {
		logger.Info("chat processing delegated to bot-worker", "queue_url", cfg.ChatQueueURL)
	}

	chatHandler := handlers.NewChatHandler(publisher, logger)
	adminHandler := handlers.NewAdminHandler(repo, bookingService, historyStore, logger)

	r := router.New(&router.Config{
		Logger:          logger,
		ChatHandler:     chatHandler,
		AdminHandler:    adminHandler,
		WebchatHub:      hub,
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	cancel()
	if worker != nil {
		worker.Wait()
	}

	logger.Info("server stopped")
}
