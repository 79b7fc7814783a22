package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/consultation-booking/internal/api"
	"github.com/consultation-booking/internal/api/handler"
	"github.com/consultation-booking/internal/api/service"
	"github.com/consultation-booking/internal/config"
	"github.com/consultation-booking/internal/data/postgres"
	otpredis "github.com/consultation-booking/internal/data/redis"
	"github.com/consultation-booking/internal/ledger"
	"github.com/consultation-booking/internal/logger"
	"github.com/consultation-booking/internal/otp"
	"github.com/consultation-booking/internal/platform/email"
	"github.com/consultation-booking/internal/platform/gateway/phonepe"
	"github.com/consultation-booking/internal/platform/messaging/producers"
	"github.com/consultation-booking/internal/platform/persistence"
	"github.com/consultation-booking/internal/reconciler"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("booking_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Optional Kafka producers for outcome events and undelivered notifications
	var (
		outcomes    producers.OutcomePublisher
		deadLetters producers.DeadLetterPublisher
		closers     []func() error
	)
	if cfg.KafkaEnabled() {
		outcomeProducer, err := producers.NewOutcomeProducer(appCtx, log, &cfg.Kafka)
		if err != nil {
			log.Error("Failed to initialize outcome producer", "error", err)
			os.Exit(1)
		}
		dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
		if err != nil {
			log.Error("Failed to initialize notification DLQ producer", "error", err)
			os.Exit(1)
		}
		outcomes, deadLetters = outcomeProducer, dlqProducer
		closers = append(closers, outcomeProducer.Close, dlqProducer.Close)
	}

	// Optional PostgreSQL record of fallback bookings
	var manualPayments service.ManualPaymentStore
	var postgresDB *persistence.PostgresDB
	if cfg.PostgresEnabled() {
		postgresDB, err = persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
		if err != nil {
			log.Error("Failed to initialize PostgreSQL", "error", err)
			os.Exit(1)
		}
		manualPayments = postgres.NewManualPaymentRepository(log, postgresDB)
	}

	// Email
	dispatcher := email.NewDispatcher(&cfg.Email, email.NewSMTPSender(&cfg.Email), log)

	// OTP codes live in Redis when configured, in memory otherwise
	var otpStore otp.Store
	if cfg.RedisEnabled() {
		redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
		if err != nil {
			log.Error("Failed to initialize Redis", "error", err)
			os.Exit(1)
		}
		otpStore = otpredis.NewOTPStore(redisClient)
		closers = append(closers, redisClient.Close)
	} else {
		memoryStore := otp.NewMemoryStore()
		go memoryStore.RunSweeper(appCtx, cfg.OTP.SweepInterval, log)
		otpStore = memoryStore
	}
	otpService := otp.NewService(otpStore, dispatcher, cfg.OTP.Expiry, cfg.OTP.MaxAttempts, log)

	// Ledger, gateway and reconciliation
	transactions := ledger.New(cfg.Reconciliation.RetryLimit, cfg.Reconciliation.Retention, time.Now)
	gateway := phonepe.NewClient(&cfg.PhonePe, log)

	notifier := reconciler.NewNotifier(dispatcher, deadLetters, log)
	scheduler, err := reconciler.NewScheduler(&cfg.Reconciliation, transactions, gateway, notifier, outcomes, log)
	if err != nil {
		log.Error("Failed to initialize reconciliation scheduler", "error", err)
		os.Exit(1)
	}

	// Initialize services
	paymentService := service.NewPaymentService(log, cfg.Fallback, gateway, transactions, scheduler, manualPayments)
	notificationService := service.NewNotificationService(log, transactions, scheduler, dispatcher, manualPayments)

	// Initialize REST server
	server := api.NewServer(log, cfg, api.Handlers{
		Payment:      handler.NewPaymentHandler(log, paymentService),
		OTP:          handler.NewOTPHandler(log, otpService),
		Notification: handler.NewNotificationHandler(log, notificationService),
		Health:       handler.NewHealthHandler(cfg.Application.Env, transactions, scheduler),
	})
	log.Info("REST server initialized")

	server.SweepRateLimits(appCtx)
	scheduler.Start(appCtx)

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting requests first so no new transactions reach the ledger
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	var shutdownErr error
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
		shutdownErr = err
	}

	// Let the pass in flight finish, then stop the sweeper and other background work
	scheduler.Stop()
	cancelAppCtx()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error("Error closing client", "error", err)
			shutdownErr = err
		}
	}
	if postgresDB != nil {
		postgresDB.Close()
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if shutdownErr != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
