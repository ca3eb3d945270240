// Package ingest turns notified or discovered videos into stored records,
// at most once per video id.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"yt-monitor/internal/db"
	"yt-monitor/internal/extractor"
	"yt-monitor/internal/metrics"
	"yt-monitor/internal/models"
	"yt-monitor/internal/websub"
)

type Outcome string

const (
	OutcomeIngested  Outcome = "ingested"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDropped   Outcome = "dropped"
)

// Coordinator runs parse, dedupe, enrich and persist for one video. It holds
// no lock: concurrent attempts for the same id are settled by the store's
// unique key.
type Coordinator struct {
	store     db.VideoStore
	extractor extractor.Extractor
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewCoordinator(store db.VideoStore, ex extractor.Extractor, recorder metrics.Recorder, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:     store,
		extractor: ex,
		metrics:   metrics.OrNop(recorder),
		logger:    logger,
		now:       time.Now,
	}
}

// HandleNotification ingests the video announced by a hub push. Unparseable
// bodies and failed enrichment are dropped without error; only storage
// failures are returned.
func (c *Coordinator) HandleNotification(ctx context.Context, body []byte) (Outcome, error) {
	env, err := websub.ParseNotification(body)
	if err != nil {
		if errors.Is(err, websub.ErrDeletedEntry) {
			c.logger.Info("ignoring deleted video notification", slog.String("detail", err.Error()))
		} else {
			c.logger.Warn("could not parse notification", slog.String("error", err.Error()))
		}
		return c.finish(OutcomeDropped), nil
	}

	c.logger.Info("new video notified",
		slog.String("video_id", env.VideoID),
		slog.String("channel_id", env.ChannelID),
	)
	return c.IngestVideo(ctx, VideoRef{VideoID: env.VideoID, ChannelID: env.ChannelID, Title: env.Title})
}

// IngestVideo stores ref's video unless it is already known.
func (c *Coordinator) IngestVideo(ctx context.Context, ref VideoRef) (Outcome, error) {
	logger := c.logger.With(slog.String("video_id", ref.VideoID))

	exists, err := c.store.VideoExists(ctx, ref.VideoID)
	if err != nil {
		logger.Error("could not check for existing video", slog.String("error", err.Error()))
		return c.finish(OutcomeDropped), err
	}
	if exists {
		logger.Info("video already stored")
		return c.finish(OutcomeDuplicate), nil
	}

	details, err := c.extractor.FetchDetails(ctx, models.WatchURL(ref.VideoID))
	if err == nil && details == nil {
		err = extractor.ErrNoDetails
	}
	if err != nil {
		logger.Error("could not fetch video details", slog.String("error", err.Error()))
		return c.finish(OutcomeDropped), nil
	}

	record, err := newVideoRecord(details, ref, c.now())
	if err != nil {
		logger.Error("could not build video record", slog.String("error", err.Error()))
		return c.finish(OutcomeDropped), nil
	}

	inserted, err := c.store.InsertVideo(ctx, record)
	if err != nil {
		logger.Error("could not store video", slog.String("error", err.Error()))
		return c.finish(OutcomeDropped), err
	}
	if !inserted {
		logger.Info("video stored concurrently by another job")
		return c.finish(OutcomeDuplicate), nil
	}

	logger.Info("video stored", slog.String("title", record.Title), slog.String("category", string(record.Category)))
	return c.finish(OutcomeIngested), nil
}

func (c *Coordinator) finish(o Outcome) Outcome {
	c.metrics.IngestOutcome(string(o))
	return o
}
