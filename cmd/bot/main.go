package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/anavictoriasalon/citabot/cmd/mainconfig"
	"github.com/anavictoriasalon/citabot/internal/api/router"
	"github.com/anavictoriasalon/citabot/internal/availability"
	"github.com/anavictoriasalon/citabot/internal/booking"
	"github.com/anavictoriasalon/citabot/internal/calendar"
	"github.com/anavictoriasalon/citabot/internal/catalog"
	"github.com/anavictoriasalon/citabot/internal/channels/whatsapp"
	appconfig "github.com/anavictoriasalon/citabot/internal/config"
	"github.com/anavictoriasalon/citabot/internal/engine"
	"github.com/anavictoriasalon/citabot/internal/extract"
	"github.com/anavictoriasalon/citabot/internal/http/handlers"
	"github.com/anavictoriasalon/citabot/internal/nlu"
	"github.com/anavictoriasalon/citabot/internal/notify"
	"github.com/anavictoriasalon/citabot/internal/observability/metrics"
	"github.com/anavictoriasalon/citabot/internal/square"
	"github.com/anavictoriasalon/citabot/internal/store"
	"github.com/anavictoriasalon/citabot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting citabot", "env", cfg.Env, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres: sessions, appointments, booking attempt audit.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	sessions := store.NewSessionStore(pool)
	appointments := store.NewAppointmentStore(pool)

	// Redis: the rolling conversation transcript fed to the NLU.
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	history := engine.NewHistoryStore(rdb, nil)

	// Static catalog: salons, staff, services, closed dates.
	catCfg, err := catalog.LoadConfig(cfg.CatalogPath)
	if err != nil {
		logger.Error("failed to load catalog", "error", err, "path", cfg.CatalogPath)
		os.Exit(1)
	}
	idx, err := catalog.NewIndex(catCfg)
	if err != nil {
		logger.Error("failed to build catalog index", "error", err)
		os.Exit(1)
	}
	rules, err := calendar.NewRules(catCfg.Timezone, catCfg.ClosedDates)
	if err != nil {
		logger.Error("failed to build calendar rules", "error", err)
		os.Exit(1)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// NLU: Bedrock first, Gemini as fallback, heuristics handle total failure.
	var extractors []nlu.Extractor
	if cfg.BedrockModelID != "" {
		extractors = append(extractors, nlu.NewBedrockExtractor(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID))
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := nlu.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini extractor unavailable", "error", err)
		} else {
			extractors = append(extractors, gemini)
		}
	}
	if len(extractors) == 0 {
		logger.Warn("no NLU extractor configured, running on heuristics only")
	}
	extractor := nlu.NewFallbackExtractor(cfg.NLUTimeout, logger, extractors...)
	pipeline := extract.NewPipeline(idx, extractor, logger)

	// Scheduling backend.
	squareClient := square.NewClient(cfg.SquareBaseURL, cfg.SquareAccessToken, logger)
	finder := availability.NewFinder(squareClient, rules, logger)

	// Ops notifications for terminal booking failures.
	var emailSender notify.EmailSender
	switch {
	case cfg.EmailProvider == "ses":
		emailSender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.NotifyFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger)
	case cfg.EmailProvider == "sendgrid" && cfg.SendGridAPIKey != "":
		emailSender = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.NotifyFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger)
	default:
		emailSender = notify.NewStubEmailSender(logger)
	}
	notifier := notify.NewService(emailSender, cfg.NotifySalonEmail, logger)

	executor := booking.NewExecutor(squareClient, idx, rules, appointments, notifier,
		logger, cfg.BookingMaxAttempts, cfg.BookingRetryDelay)

	conversationMetrics := metrics.NewConversationMetrics(nil)
	sender := whatsapp.NewClient(cfg.WhatsAppGatewayURL, cfg.WhatsAppGatewayToken, logger)

	eng := engine.NewEngine(idx, rules, pipeline, finder, executor, squareClient,
		sessions, history, sender, conversationMetrics, logger)
	dispatcher := engine.NewDispatcher(eng.HandleTurn, logger)

	var queue engine.Queue
	if cfg.UseMemoryQueue {
		queue = engine.NewMemoryQueue(0)
	} else {
		queue = engine.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL)
	}
	consumer := engine.NewConsumer(queue, dispatcher, logger)
	consumer.Start(ctx)

	webhook := whatsapp.NewWebhookHandler(cfg.WhatsAppWebhookToken,
		func(r *http.Request, msg whatsapp.Inbound) error {
			return consumer.Publish(r.Context(), msg)
		}, logger)

	adminCustomers := handlers.NewAdminCustomersHandler(sessions, appointments, logger)

	r := router.New(&router.Config{
		Logger:          logger,
		Webhook:         webhook,
		AdminCustomers:  adminCustomers,
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  promhttp.Handler(),
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
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	consumer.Wait()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown incomplete", "error", err)
	}

	logger.Info("stopped")
}
