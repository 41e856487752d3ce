package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/minjaecho/defectwatch-backend/api/controllers"
	"github.com/minjaecho/defectwatch-backend/api/routes"
	"github.com/minjaecho/defectwatch-backend/internal/defects"
	"github.com/minjaecho/defectwatch-backend/internal/dispatch"
	"github.com/minjaecho/defectwatch-backend/internal/enrich"
	"github.com/minjaecho/defectwatch-backend/pkg/calendar"
	"github.com/minjaecho/defectwatch-backend/pkg/chat"
	"github.com/minjaecho/defectwatch-backend/pkg/config"
	"github.com/minjaecho/defectwatch-backend/pkg/db"
	"github.com/minjaecho/defectwatch-backend/pkg/geocode"
	"github.com/minjaecho/defectwatch-backend/pkg/logger"
	"github.com/minjaecho/defectwatch-backend/pkg/metrics"
	"github.com/minjaecho/defectwatch-backend/pkg/migrate"
	"github.com/minjaecho/defectwatch-backend/pkg/pubsub"
	"github.com/minjaecho/defectwatch-backend/pkg/redis"
	"github.com/minjaecho/defectwatch-backend/pkg/storage/gcs"
	"github.com/minjaecho/defectwatch-backend/pkg/vision"
)

const shutdownGrace = 15 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "migrations", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	// Optional collaborators: the API degrades rather than refusing to
	// boot when a closed test network lacks one of them.
	var resolver defects.AddressResolver
	if cfg.Geocode.ClientID != "" {
		geocodeClient, err := geocode.NewClient(
			cfg.Geocode.ClientID,
			cfg.Geocode.ClientSecret,
			geocode.WithBaseURL(cfg.Geocode.BaseURL),
			geocode.WithHTTPClient(&http.Client{Timeout: cfg.Geocode.Timeout}),
		)
		requireResource(ctx, logg, "geocode client", err)
		resolver = geocodeClient
	} else {
		logg.Warn(ctx, "geocode credentials missing, addresses stay unresolved")
	}

	defectsService, err := defects.NewService(defects.NewRepository(dbClient.DB()), resolver, logg)
	requireResource(ctx, logg, "defect service", err)

	var classifier enrich.Classifier
	var answerer dispatch.Answerer
	if cfg.Vision.BaseURL != "" {
		visionClient, err := vision.Init(cfg.Vision)
		requireResource(ctx, logg, "vision client", err)
		classifier = visionClient
		answerer = visionClient
	} else {
		logg.Warn(ctx, "vision gateway not configured, records stay unclassified")
	}

	var publisher enrich.Publisher
	if cfg.PubSub.DefectTopic != "" && cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer pubsubClient.Close()
		publisher = pubsubClient.DefectEventPublisher()
	} else {
		logg.Warn(ctx, "pubsub not configured, classified events stay local")
	}

	registry := prometheus.NewRegistry()
	enrichMetrics := metrics.NewEnrichmentMetrics(registry)

	var runner *enrich.Runner
	if classifier != nil {
		runner, err = enrich.NewRunner(defectsService, classifier, resolver, publisher, enrichMetrics, logg, cfg.Vision.Timeout)
		requireResource(ctx, logg, "enrichment runner", err)
		defer runner.Wait()
	}

	var chatSender dispatch.ChatSender
	if cfg.Chat.WebhookURL != "" {
		chatClient, err := chat.NewClient(
			cfg.Chat.WebhookURL,
			chat.WithChannel(cfg.Chat.Channel),
			chat.WithHTTPClient(&http.Client{Timeout: cfg.Chat.Timeout}),
		)
		requireResource(ctx, logg, "chat client", err)
		chatSender = chatClient
	} else {
		logg.Warn(ctx, "chat webhook not configured, operator cards disabled")
	}

	var scheduler dispatch.RepairScheduler
	if cfg.Calendar.BaseURL != "" && cfg.Calendar.CalendarID != "" {
		calendarClient, err := calendar.NewClient(
			cfg.Calendar.BaseURL,
			cfg.Calendar.CalendarID,
			calendar.WithHTTPClient(&http.Client{Timeout: cfg.Calendar.Timeout}),
		)
		requireResource(ctx, logg, "calendar client", err)
		scheduler = calendarClient
	}

	var dispatchService dispatch.Service
	if chatSender != nil {
		dispatchService, err = dispatch.NewService(defectsService, chatSender, answerer, scheduler, logg)
		requireResource(ctx, logg, "dispatch service", err)
		defer dispatchService.Wait()
	}

	var uploader controllers.ObjectUploader
	if cfg.GCS.BucketName != "" {
		gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		requireResource(ctx, logg, "gcs client", err)
		uploader = gcsClient
	}

	var enqueuer controllers.Enqueuer
	if runner != nil {
		enqueuer = runner
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config:   cfg,
		Logger:   logg,
		DBPinger: dbClient,
		Redis:    redisClient,
		Defects:  defectsService,
		Dispatch: dispatchService,
		Enqueuer: enqueuer,
		Uploader: uploader,
		Metrics:  registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "api server shutdown failed", err)
		}
	}

	logg.Info(runCtx, "api server shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
