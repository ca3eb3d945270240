package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"yt-monitor/internal/db"
	"yt-monitor/internal/metrics"
	"yt-monitor/internal/models"
	"yt-monitor/internal/websub"
	"yt-monitor/pkg/tasks"
)

type Config struct {
	Store    db.Store
	Verifier *websub.Verifier
	Channels []models.Channel
	// BaseURL is the public base used in RSS links. Empty means derive it
	// from the request.
	BaseURL string
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

type Handlers struct {
	asynqClient tasks.TaskEnqueuer
	store       db.Store
	verifier    *websub.Verifier
	channels    []models.Channel
	baseURL     string
	metrics     metrics.Recorder
	logger      *slog.Logger
}

func New(asynqClient tasks.TaskEnqueuer, cfg Config) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		asynqClient: asynqClient,
		store:       cfg.Store,
		verifier:    cfg.Verifier,
		channels:    cfg.Channels,
		baseURL:     cfg.BaseURL,
		metrics:     metrics.OrNop(cfg.Metrics),
		logger:      logger,
	}
}

func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "YouTube channel monitor",
		"health":  "/health",
	})
}

func (h *Handlers) channel(channelID string) (models.Channel, bool) {
	for _, ch := range h.channels {
		if ch.ChannelID == channelID {
			return ch, true
		}
	}
	return models.Channel{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
