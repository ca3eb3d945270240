package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"yt-monitor/internal/middleware"
	"yt-monitor/internal/websub"
	"yt-monitor/pkg/tasks"
)

const maxNotificationSize = 1 << 20

// VerifyWebhook answers the hub's subscription handshake.
func (h *Handlers) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := h.verifier.VerifyHandshake(r.Context(), r.URL.Query())
	switch {
	case errors.Is(err, websub.ErrTokenMismatch):
		http.Error(w, "Verification token mismatch", http.StatusForbidden)
		return
	case errors.Is(err, websub.ErrMissingChallenge):
		http.Error(w, "Missing hub.challenge", http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "Invalid request mode", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}

// ReceiveWebhook accepts a pushed notification, checks its signature and
// queues it for ingestion without waiting for the result.
func (h *Handlers) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFromContext(r.Context())
	logger := h.logger.With(slog.String("request_id", requestID))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Notification too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if err := h.verifier.VerifySignature(body, r.Header.Get(websub.SignatureHeader)); err != nil {
		logger.Warn("invalid webhook signature")
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	task, err := tasks.NewIngestNotificationTask(body, requestID, time.Now().UTC())
	if err != nil {
		logger.Error("could not create ingestion task", slog.String("error", err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if _, err := h.asynqClient.Enqueue(task); err != nil {
		logger.Error("could not enqueue ingestion task", slog.String("error", err.Error()))
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	h.metrics.NotificationReceived()
	logger.Info("notification received", slog.Int("bytes", len(body)))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "processing",
		"message": "Notification received",
	})
}
