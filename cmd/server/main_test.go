package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-monitor/internal/config"
	"yt-monitor/internal/db"
	"yt-monitor/internal/metrics"
	"yt-monitor/internal/test"
	"yt-monitor/pkg/tasks"
)

func newTestRouter(t *testing.T) (http.Handler, *test.MockTaskEnqueuer) {
	t.Helper()
	t.Setenv("API_KEYS", "key-1")
	t.Setenv("WEBHOOK_VERIFY_TOKEN", "tok")
	t.Setenv("WEBHOOK_SECRET", "")
	cfg, err := config.Load()
	require.NoError(t, err)

	store, err := db.NewFileStore(filepath.Join(t.TempDir(), "videos.json"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	mockEnqueuer := &test.MockTaskEnqueuer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := newRouter(cfg, store, mockEnqueuer, config.DefaultChannels(), metrics.NewCollector(reg), reg, logger)
	return router, mockEnqueuer
}

func TestRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		apiKey     string
		wantStatus int
	}{
		{"root", http.MethodGet, "/", "", http.StatusOK},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"handshake", http.MethodGet, config.WebhookPath + "?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=1", "", http.StatusOK},
		{"feed of monitored channel", http.MethodGet, "/feeds/UCaIGZ2lNpryhA-p9KXr5XNw", "", http.StatusOK},
		{"channels without key", http.MethodGet, "/channels", "", http.StatusUnauthorized},
		{"channels with key", http.MethodGet, "/channels", "key-1", http.StatusOK},
		{"subscriptions with key", http.MethodGet, "/subscriptions", "key-1", http.StatusOK},
		{"webhook wrong method", http.MethodPut, config.WebhookPath, "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestNotificationIsQueuedAndCounted(t *testing.T) {
	router, mockEnqueuer := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, config.WebhookPath, bytes.NewBufferString("<feed/>"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, mockEnqueuer.EnqueuedTasks, 1)
	assert.Equal(t, tasks.TypeIngestNotification, mockEnqueuer.EnqueuedTasks[0].Type())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "ytmonitor_notifications_received_total 1"))
}
