package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/minjaecho/defectwatch-backend/internal/defects"
	"github.com/minjaecho/defectwatch-backend/internal/dispatch"
	"github.com/minjaecho/defectwatch-backend/pkg/chat"
	"github.com/minjaecho/defectwatch-backend/pkg/config"
	"github.com/minjaecho/defectwatch-backend/pkg/db"
	"github.com/minjaecho/defectwatch-backend/pkg/logger"
	"github.com/minjaecho/defectwatch-backend/pkg/pubsub"
)

// The alert worker consumes defect.classified events and renders
// operator cards into the chat channel.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "alert-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "alert-worker",
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

	defectsService, err := defects.NewService(defects.NewRepository(dbClient.DB()), nil, logg)
	requireResource(ctx, logg, "defect service", err)

	chatClient, err := chat.NewClient(
		cfg.Chat.WebhookURL,
		chat.WithChannel(cfg.Chat.Channel),
		chat.WithHTTPClient(&http.Client{Timeout: cfg.Chat.Timeout}),
	)
	requireResource(ctx, logg, "chat client", err)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	consumer, err := dispatch.NewConsumer(defectsService, chatClient, pubsubClient.DefectSubscription(), logg)
	requireResource(ctx, logg, "alert consumer", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{"env": cfg.App.Env})
	logg.Info(runCtx, "alert worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "alert worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "alert worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
