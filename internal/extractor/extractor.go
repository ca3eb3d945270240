// Package extractor fetches full video metadata for a watch URL.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"yt-monitor/internal/metrics"
	"yt-monitor/internal/models"
)

// ErrNoDetails means the backend answered but had nothing for the video.
var ErrNoDetails = errors.New("no video details")

type Extractor interface {
	FetchDetails(ctx context.Context, videoURL string) (*models.VideoDetails, error)
}

// Chain tries each extractor in order and returns the first success.
type Chain struct {
	extractors []Extractor
	metrics    metrics.Recorder
	logger     *slog.Logger
}

func NewChain(logger *slog.Logger, recorder metrics.Recorder, extractors ...Extractor) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{extractors: extractors, metrics: metrics.OrNop(recorder), logger: logger}
}

func (c *Chain) FetchDetails(ctx context.Context, videoURL string) (*models.VideoDetails, error) {
	start := time.Now()
	defer func() { c.metrics.ExtractorLatency(time.Since(start)) }()

	if len(c.extractors) == 0 {
		return nil, fmt.Errorf("no extractors configured: %w", ErrNoDetails)
	}

	var errs []error
	for _, e := range c.extractors {
		details, err := e.FetchDetails(ctx, videoURL)
		if err == nil && details != nil {
			return details, nil
		}
		if err == nil {
			err = ErrNoDetails
		}
		c.logger.Warn("extractor failed",
			slog.String("extractor", fmt.Sprintf("%T", e)),
			slog.String("url", videoURL),
			slog.String("error", err.Error()),
		)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// VideoIDFromURL returns the video id of a watch, short or embed URL.
func VideoIDFromURL(videoURL string) (string, error) {
	u, err := url.Parse(videoURL)
	if err != nil {
		return "", fmt.Errorf("parse video url: %w", err)
	}
	if id := u.Query().Get("v"); id != "" {
		return id, nil
	}
	path := strings.Trim(u.Path, "/")
	switch {
	case strings.EqualFold(u.Host, "youtu.be") && path != "":
		return path, nil
	case strings.HasPrefix(path, "shorts/"), strings.HasPrefix(path, "embed/"):
		if id := path[strings.Index(path, "/")+1:]; id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("no video id in %q", videoURL)
}
