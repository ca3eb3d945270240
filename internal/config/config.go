// Package config reads process configuration from the environment. Values
// are read once at startup and treated as immutable afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendAuto     = "auto"
	BackendPostgres = "postgres"
	BackendFile     = "file"

	// WebhookPath is where the hub delivers handshakes and notifications.
	WebhookPath = "/webhook/youtube"

	DefaultHubURL       = "https://pubsubhubbub.appspot.com/subscribe"
	DefaultLeaseSeconds = 864000
)

type Config struct {
	// Server
	Port           string
	WebhookBaseURL string

	// WebSub
	VerifyToken    string
	WebhookSecret  string
	HubURL         string
	LeaseSeconds   int
	SubscribeDelay time.Duration
	HubTimeout     time.Duration

	// Storage
	StorageBackend string
	DatabaseURL    string
	DataDir        string

	// Queue
	RedisAddr         string
	WorkerConcurrency int
	// WorkerMetricsAddr is where the worker serves /metrics. Empty disables it.
	WorkerMetricsAddr string
	RenewSchedule     string
	BackfillSchedule  string

	// Extraction
	YouTubeAPIKey    string
	YtdlpPath        string
	ExtractorTimeout time.Duration

	// Query API
	APIKeys      []string
	APIRateLimit float64
	APIRateBurst int

	ChannelsFile string
	LogLevel     string
}

// CallbackURL is the absolute webhook URL registered with the hub.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.WebhookBaseURL, "/") + WebhookPath
}

// Load reads the configuration from environment variables, applying defaults
// and collecting every invalid value into a single error.
func Load() (*Config, error) {
	var problems []string

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		WebhookBaseURL:    getEnv("WEBHOOK_BASE_URL", "http://localhost:8080"),
		VerifyToken:       getEnv("WEBHOOK_VERIFY_TOKEN", "youtube_verify_token"),
		WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),
		HubURL:            getEnv("HUB_URL", DefaultHubURL),
		StorageBackend:    strings.ToLower(getEnv("STORAGE_BACKEND", BackendAuto)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DataDir:           getEnv("DATA_DIR", "data"),
		RedisAddr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RenewSchedule:     getEnv("RENEW_SCHEDULE", "@every 120h"),
		WorkerMetricsAddr: os.Getenv("WORKER_METRICS_ADDR"),
		BackfillSchedule:  getEnv("BACKFILL_SCHEDULE", "@every 6h"),
		YouTubeAPIKey:     os.Getenv("YOUTUBE_API_KEY"),
		YtdlpPath:         getEnv("YTDLP_PATH", "yt-dlp"),
		APIKeys:           splitList(os.Getenv("API_KEYS")),
		ChannelsFile:      os.Getenv("CHANNELS_FILE"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	cfg.LeaseSeconds = getInt("LEASE_SECONDS", DefaultLeaseSeconds, &problems)
	cfg.WorkerConcurrency = getInt("WORKER_CONCURRENCY", 4, &problems)
	cfg.APIRateBurst = getInt("API_RATE_BURST", 10, &problems)
	cfg.SubscribeDelay = getDuration("SUBSCRIBE_DELAY", time.Second, &problems)
	cfg.HubTimeout = getDuration("HUB_TIMEOUT", 30*time.Second, &problems)
	cfg.ExtractorTimeout = getDuration("EXTRACTOR_TIMEOUT", 2*time.Minute, &problems)

	rateLimit, err := strconv.ParseFloat(getEnv("API_RATE_LIMIT", "5"), 64)
	if err != nil {
		problems = append(problems, "API_RATE_LIMIT must be a number")
	}
	cfg.APIRateLimit = rateLimit

	if cfg.LeaseSeconds <= 0 {
		problems = append(problems, "LEASE_SECONDS must be positive")
	}
	if cfg.WorkerConcurrency <= 0 {
		problems = append(problems, "WORKER_CONCURRENCY must be positive")
	}
	if cfg.SubscribeDelay < 0 {
		problems = append(problems, "SUBSCRIBE_DELAY must not be negative")
	}
	if strings.TrimSpace(cfg.RenewSchedule) == "" {
		problems = append(problems, "RENEW_SCHEDULE must not be empty")
	}
	if strings.TrimSpace(cfg.VerifyToken) == "" {
		problems = append(problems, "WEBHOOK_VERIFY_TOKEN must not be empty")
	}

	switch cfg.StorageBackend {
	case BackendAuto, BackendFile:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("STORAGE_BACKEND %q is not one of auto, postgres, file", cfg.StorageBackend))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, problems *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s must be an integer", key))
		return def
	}
	return n
}

func getDuration(key string, def time.Duration, problems *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s must be a duration", key))
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
