package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"yt-monitor/internal/db"
	"yt-monitor/internal/feed"
)

const feedVideoLimit = 50

// GetRSSFeed serves the stored videos of a monitored channel as RSS.
func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["channel_id"]
	channel, ok := h.channel(channelID)
	if !ok {
		http.Error(w, "Channel not found", http.StatusNotFound)
		return
	}

	videos, err := h.store.FindVideos(r.Context(), db.VideoQuery{ChannelID: channelID, Limit: feedVideoLimit})
	if err != nil {
		h.logger.Error("failed to load videos for feed",
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := feed.GenerateRSS(channel, videos, feed.BaseURL(r, h.baseURL))
	if err != nil {
		h.logger.Error("failed to generate RSS feed",
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(rss))
}
