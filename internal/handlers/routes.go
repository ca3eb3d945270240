package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"yt-monitor/internal/config"
	"yt-monitor/internal/middleware"
)

type RouterOptions struct {
	APIKeys   []string
	RateLimit rate.Limit
	RateBurst int
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// Router mounts every endpoint. Query endpoints sit behind API key auth and a
// per-key rate limit; the webhook, health, feeds and metrics are public.
func (h *Handlers) Router(opts RouterOptions) *mux.Router {
	r := mux.NewRouter()
	r.Use(
		middleware.NewRecoveryMiddleware(h.logger),
		middleware.NewRequestIDMiddleware(),
		middleware.NewLoggingMiddleware(h.logger),
	)

	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	r.HandleFunc(config.WebhookPath, h.VerifyWebhook).Methods(http.MethodGet)
	r.HandleFunc(config.WebhookPath, h.ReceiveWebhook).Methods(http.MethodPost)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/feeds/{channel_id}", h.GetRSSFeed).Methods(http.MethodGet)
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler).Methods(http.MethodGet)
	}

	limiter := middleware.NewRateLimiterMiddleware(opts.RateLimit, opts.RateBurst, h.logger)
	api := r.NewRoute().Subrouter()
	api.Use(middleware.APIKeyMiddleware(opts.APIKeys, h.logger), limiter.Middleware)
	api.HandleFunc("/videos/recent", h.GetRecentVideos).Methods(http.MethodGet)
	api.HandleFunc("/videos/channel/{channel_id}", h.GetChannelVideos).Methods(http.MethodGet)
	api.HandleFunc("/stats/channel/{channel_id}", h.GetChannelStats).Methods(http.MethodGet)
	api.HandleFunc("/search/videos", h.SearchVideos).Methods(http.MethodGet)
	api.HandleFunc("/channels", h.GetChannels).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions", h.GetSubscriptions).Methods(http.MethodGet)

	return r
}
