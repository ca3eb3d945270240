package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"yt-monitor/internal/config"
	"yt-monitor/internal/db"
	"yt-monitor/internal/extractor"
	"yt-monitor/internal/ingest"
	"yt-monitor/internal/logger"
	"yt-monitor/internal/metrics"
	"yt-monitor/internal/websub"
	"yt-monitor/internal/worker"
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

	ctx := context.Background()
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

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	if cfg.WorkerMetricsAddr != "" {
		go serveMetrics(cfg.WorkerMetricsAddr, reg, appLogger)
	}

	extractors := []extractor.Extractor{extractor.NewYtDlp(cfg.YtdlpPath, cfg.ExtractorTimeout, appLogger)}
	if cfg.YouTubeAPIKey != "" {
		api, err := extractor.NewDataAPI(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			log.Fatalf("could not create YouTube Data API client: %v", err)
		}
		extractors = append(extractors, api)
	}
	coordinator := ingest.NewCoordinator(store, extractor.NewChain(appLogger, collector, extractors...), collector, appLogger)

	manager := websub.NewManager(websub.ManagerConfig{
		HubURL:       cfg.HubURL,
		CallbackURL:  cfg.CallbackURL(),
		VerifyToken:  cfg.VerifyToken,
		Secret:       cfg.WebhookSecret,
		LeaseSeconds: cfg.LeaseSeconds,
		Delay:        cfg.SubscribeDelay,
		Channels:     channels,
		HTTPClient:   &http.Client{Timeout: cfg.HubTimeout},
		Store:        store,
		Metrics:      collector,
		Logger:       appLogger,
	})

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				tasks.QueueHigh: 3,
				"default":       1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := retryDelay(n)
				appLogger.Warn("task failed, retrying",
					slog.String("type", task.Type()),
					slog.Int("attempt", n+1),
					slog.Duration("delay", delay),
					slog.String("error", err.Error()),
				)
				return delay
			},
		},
	)

	mux := asynq.NewServeMux()
	taskHandler := worker.NewTaskHandler(client, worker.HandlerConfig{
		Ingester: coordinator,
		Renewer:  manager,
		Feeds:    worker.NewFeedFetcher(&http.Client{Timeout: cfg.HubTimeout}),
		Channels: channels,
		Logger:   appLogger,
	})
	taskHandler.Register(mux)

	appLogger.Info("worker starting",
		slog.String("commit", CommitSHA),
		slog.Int("concurrency", cfg.WorkerConcurrency),
		slog.Int("extractors", len(extractors)),
	)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}

// retryDelay backs off exponentially from one minute, capped at one hour.
// Only renewal and backfill tasks retry; ingestion never does.
func retryDelay(n int) time.Duration {
	delay := time.Minute
	maxDelay := time.Hour
	for i := 0; i < n; i++ {
		delay *= 2
		if delay > maxDelay {
			return maxDelay
		}
	}
	return delay
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, appLogger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(gatherer))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	appLogger.Info("worker metrics listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil {
		appLogger.Error("worker metrics server stopped", slog.String("error", err.Error()))
	}
}
