package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"yt-monitor/internal/db"
	"yt-monitor/internal/models"
)

const (
	recentDefaultLimit  = 10
	recentMaxLimit      = 100
	channelDefaultLimit = 50
	channelMaxLimit     = 200
	statsRecentLimit    = 5
	searchLimit         = 100
	// maxSearchHours is ten years, far inside time.Duration's range.
	maxSearchHours = 24 * 365 * 10
)

// queryInt reads an integer query parameter, returning def when it is absent
// and an error when it is malformed or outside [lo, hi].
func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < lo || (hi > 0 && v > hi) {
		if hi > 0 {
			return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
		}
		return 0, fmt.Errorf("%s must be at least %d", name, lo)
	}
	return v, nil
}

func (h *Handlers) findVideos(ctx context.Context, q db.VideoQuery) ([]models.VideoRecord, error) {
	videos, err := h.store.FindVideos(ctx, q)
	if err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []models.VideoRecord{}
	}
	return videos, nil
}

func (h *Handlers) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (h *Handlers) GetRecentVideos(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", recentDefaultLimit, 1, recentMaxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	videos, err := h.findVideos(r.Context(), db.VideoQuery{
		ChannelID: r.URL.Query().Get("channel_id"),
		Limit:     limit,
	})
	if err != nil {
		h.internalError(w, "failed to list recent videos", err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

func (h *Handlers) GetChannelVideos(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["channel_id"]
	limit, err := queryInt(r, "limit", channelDefaultLimit, 1, channelMaxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	videos, err := h.findVideos(r.Context(), db.VideoQuery{ChannelID: channelID, Limit: limit})
	if err != nil {
		h.internalError(w, "failed to list channel videos", err)
		return
	}
	if len(videos) == 0 {
		writeError(w, http.StatusNotFound, "No videos found for this channel")
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

type channelStatsResponse struct {
	ChannelID    string               `json:"channel_id"`
	TotalVideos  int                  `json:"total_videos"`
	Statistics   *models.ChannelStats `json:"statistics"`
	RecentVideos []models.VideoRecord `json:"recent_videos"`
}

func (h *Handlers) GetChannelStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID := mux.Vars(r)["channel_id"]

	stats, err := h.store.ChannelStats(ctx, channelID)
	if err != nil {
		h.internalError(w, "failed to compute channel stats", err)
		return
	}
	total, err := h.store.CountVideos(ctx, channelID)
	if err != nil {
		h.internalError(w, "failed to count channel videos", err)
		return
	}
	recent, err := h.findVideos(ctx, db.VideoQuery{ChannelID: channelID, Limit: statsRecentLimit})
	if err != nil {
		h.internalError(w, "failed to list channel videos", err)
		return
	}

	writeJSON(w, http.StatusOK, channelStatsResponse{
		ChannelID:    channelID,
		TotalVideos:  total,
		Statistics:   stats,
		RecentVideos: recent,
	})
}

type searchResponse struct {
	Query          string               `json:"query"`
	ChannelID      *string              `json:"channel_id"`
	TimeFrameHours *int                 `json:"time_frame_hours"`
	ResultsCount   int                  `json:"results_count"`
	Videos         []models.VideoRecord `json:"videos"`
}

// SearchVideos matches the query against titles and descriptions, optionally
// narrowed to one channel and to uploads in the last N hours.
func (h *Handlers) SearchVideos(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := strings.TrimSpace(params.Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	resp := searchResponse{Query: query}
	q := db.VideoQuery{Search: query, Limit: searchLimit}
	if channelID := params.Get("channel_id"); channelID != "" {
		q.ChannelID = channelID
		resp.ChannelID = &channelID
	}
	if params.Get("hours") != "" {
		hours, err := queryInt(r, "hours", 0, 1, maxSearchHours)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q.Since = time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		resp.TimeFrameHours = &hours
	}

	videos, err := h.findVideos(r.Context(), q)
	if err != nil {
		h.internalError(w, "failed to search videos", err)
		return
	}
	resp.Videos = videos
	resp.ResultsCount = len(videos)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GetChannels(w http.ResponseWriter, r *http.Request) {
	channels := h.channels
	if channels == nil {
		channels = []models.Channel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

// GetSubscriptions lists stored leases with their status evaluated now, so a
// lapsed lease reads as expired.
func (h *Handlers) GetSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.ListSubscriptions(r.Context())
	if err != nil {
		h.internalError(w, "failed to list subscriptions", err)
		return
	}

	now := time.Now()
	out := make([]models.Subscription, 0, len(subs))
	for _, s := range subs {
		s.Status = s.StatusAt(now)
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": out})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "unhealthy",
			"timestamp": now,
			"error":     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": now,
		"database":  "connected",
	})
}
