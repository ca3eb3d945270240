package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"yt-monitor/internal/ingest"
	"yt-monitor/internal/models"
	"yt-monitor/pkg/tasks"
)

// Ingester is the part of ingest.Coordinator the worker drives.
type Ingester interface {
	HandleNotification(ctx context.Context, body []byte) (ingest.Outcome, error)
	IngestVideo(ctx context.Context, ref ingest.VideoRef) (ingest.Outcome, error)
}

// Renewer re-subscribes every monitored channel.
type Renewer interface {
	RenewAll(ctx context.Context) map[string]bool
}

type FeedSource interface {
	Fetch(ctx context.Context, channelID string) ([]ingest.VideoRef, error)
}

type HandlerConfig struct {
	Ingester Ingester
	Renewer  Renewer
	Feeds    FeedSource
	Channels []models.Channel
	Logger   *slog.Logger
}

type TaskHandler struct {
	asynqClient tasks.TaskEnqueuer
	ingester    Ingester
	renewer     Renewer
	feeds       FeedSource
	channels    map[string]models.Channel
	order       []string
	logger      *slog.Logger
}

func NewTaskHandler(client tasks.TaskEnqueuer, cfg HandlerConfig) *TaskHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &TaskHandler{
		asynqClient: client,
		ingester:    cfg.Ingester,
		renewer:     cfg.Renewer,
		feeds:       cfg.Feeds,
		channels:    make(map[string]models.Channel, len(cfg.Channels)),
		logger:      logger,
	}
	for _, ch := range cfg.Channels {
		h.channels[ch.ChannelID] = ch
		h.order = append(h.order, ch.ChannelID)
	}
	return h
}

// Register wires every task type into mux.
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeIngestNotification, h.HandleIngestNotificationTask)
	mux.HandleFunc(tasks.TypeRenewSubscriptions, h.HandleRenewSubscriptionsTask)
	mux.HandleFunc(tasks.TypeBackfillAll, h.HandleBackfillAllTask)
	mux.HandleFunc(tasks.TypeBackfillChannel, h.HandleBackfillChannelTask)
}

// HandleIngestNotificationTask runs one hub push through the coordinator.
// Failures are logged and the task completes; there is no dead-letter queue.
func (h *TaskHandler) HandleIngestNotificationTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.IngestNotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	logger := h.logger.With(slog.String("request_id", p.RequestID))
	outcome, err := h.ingester.HandleNotification(ctx, p.Body)
	if err != nil {
		logger.Error("notification ingestion failed",
			slog.String("outcome", string(outcome)),
			slog.String("error", err.Error()),
		)
		return nil
	}

	attrs := []any{slog.String("outcome", string(outcome))}
	if !p.ReceivedAt.IsZero() {
		attrs = append(attrs, slog.Duration("since_received", time.Since(p.ReceivedAt)))
	}
	logger.Info("notification processed", attrs...)
	return nil
}

// HandleRenewSubscriptionsTask renews every lease. It fails only when no
// channel could be renewed, so asynq retries a wholesale outage.
func (h *TaskHandler) HandleRenewSubscriptionsTask(ctx context.Context, t *asynq.Task) error {
	results := h.renewer.RenewAll(ctx)

	failed := 0
	for channelID, ok := range results {
		if !ok {
			failed++
			h.logger.Warn("subscription renewal failed", slog.String("channel_id", channelID))
		}
	}
	if len(results) > 0 && failed == len(results) {
		return fmt.Errorf("renewal failed for all %d channels", failed)
	}
	return nil
}

// HandleBackfillAllTask fans out one backfill task per monitored channel.
func (h *TaskHandler) HandleBackfillAllTask(ctx context.Context, t *asynq.Task) error {
	h.logger.Info("scheduling channel backfill", slog.Int("channels", len(h.order)))

	for _, channelID := range h.order {
		task, err := tasks.NewBackfillChannelTask(channelID)
		if err != nil {
			h.logger.Error("failed to create backfill task", slog.String("channel_id", channelID), slog.String("error", err.Error()))
			continue
		}
		if _, err := h.asynqClient.Enqueue(task); err != nil {
			h.logger.Error("failed to enqueue backfill task", slog.String("channel_id", channelID), slog.String("error", err.Error()))
			continue
		}
	}
	return nil
}

// HandleBackfillChannelTask ingests every entry of the channel's feed that is
// not stored yet.
func (h *TaskHandler) HandleBackfillChannelTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.BackfillChannelPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	if _, ok := h.channels[p.ChannelID]; !ok {
		return fmt.Errorf("channel %s is not monitored: %w", p.ChannelID, asynq.SkipRetry)
	}

	logger := h.logger.With(slog.String("channel_id", p.ChannelID))
	refs, err := h.feeds.Fetch(ctx, p.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to fetch channel feed: %w", err)
	}

	counts := make(map[ingest.Outcome]int)
	var storeErr error
	for _, ref := range refs {
		outcome, err := h.ingester.IngestVideo(ctx, ref)
		counts[outcome]++
		if err != nil {
			storeErr = errors.Join(storeErr, err)
		}
	}

	logger.Info("channel backfill finished",
		slog.Int("entries", len(refs)),
		slog.Int("ingested", counts[ingest.OutcomeIngested]),
		slog.Int("duplicate", counts[ingest.OutcomeDuplicate]),
		slog.Int("dropped", counts[ingest.OutcomeDropped]),
	)
	if storeErr != nil {
		return fmt.Errorf("backfill %s: %w", p.ChannelID, storeErr)
	}
	return nil
}
