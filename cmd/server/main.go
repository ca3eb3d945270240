package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"yt-monitor/internal/config"
	"yt-monitor/internal/db"
	"yt-monitor/internal/handlers"
	"yt-monitor/internal/logger"
	"yt-monitor/internal/metrics"
	"yt-monitor/internal/models"
	"yt-monitor/internal/websub"
	"yt-monitor/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	appLogger := logger.SetupDefault(os.Stdout, cfg.LogLevel)

	channels, err := config.LoadChannels(cfg.ChannelsFile)
	if err != nil {
		log.Fatalf("could not load channels: %v", err)
	}
	channels = config.Monitored(channels)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, db.Options{
		Backend:     cfg.StorageBackend,
		DatabaseURL: cfg.DatabaseURL,
		DataDir:     cfg.DataDir,
		Logger:      appLogger,
	})
	if err != nil {
		log.Fatalf("could not open storage: %v", err)
	}
	defer store.Close()

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, store, client, channels, collector, reg, appLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("callback_url", cfg.CallbackURL()),
			slog.Int("channels", len(channels)),
			slog.String("commit", CommitSHA),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("could not run server: %v", err)
		}
	case <-ctx.Done():
		appLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("graceful shutdown failed", slog.String("error", err.Error()))
		}
	}
}

func newRouter(
	cfg *config.Config,
	store db.Store,
	client tasks.TaskEnqueuer,
	channels []models.Channel,
	recorder metrics.Recorder,
	gatherer prometheus.Gatherer,
	appLogger *slog.Logger,
) http.Handler {
	verifier := websub.NewVerifier(websub.VerifierConfig{
		VerifyToken:  cfg.VerifyToken,
		Secret:       cfg.WebhookSecret,
		LeaseSeconds: cfg.LeaseSeconds,
		Channels:     channels,
		Store:        store,
		Metrics:      recorder,
		Logger:       appLogger,
	})

	h := handlers.New(client, handlers.Config{
		Store:    store,
		Verifier: verifier,
		Channels: channels,
		BaseURL:  cfg.WebhookBaseURL,
		Metrics:  recorder,
		Logger:   appLogger,
	})

	return h.Router(handlers.RouterOptions{
		APIKeys:        cfg.APIKeys,
		RateLimit:      rate.Limit(cfg.APIRateLimit),
		RateBurst:      cfg.APIRateBurst,
		MetricsHandler: metrics.Handler(gatherer),
	})
}
