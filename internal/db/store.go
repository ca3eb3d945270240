package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"yt-monitor/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrLockTimeout    = errors.New("timed out waiting for store lock")
	ErrStorageCorrupt = errors.New("store file is corrupt")
)

// StorageError describes a failed storage operation.
type StorageError struct {
	Op     string
	Entity string
	ID     string
	Err    error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// VideoQuery filters FindVideos. Results are always ordered by upload date,
// newest first.
type VideoQuery struct {
	ChannelID string
	// Search matches title or description, case-insensitively.
	Search string
	// Since drops videos uploaded before it when non-zero.
	Since time.Time
	Limit int
}

const defaultFindLimit = 100

func (q VideoQuery) limit() int {
	if q.Limit <= 0 {
		return defaultFindLimit
	}
	return q.Limit
}

// VideoStore persists VideoRecords. InsertVideo is idempotent: inserting an
// id that already exists returns (false, nil).
type VideoStore interface {
	InsertVideo(ctx context.Context, video *models.VideoRecord) (bool, error)
	VideoExists(ctx context.Context, videoID string) (bool, error)
	FindVideos(ctx context.Context, q VideoQuery) ([]models.VideoRecord, error)
	CountVideos(ctx context.Context, channelID string) (int, error)
	ChannelStats(ctx context.Context, channelID string) (*models.ChannelStats, error)
}

// SubscriptionStore keeps one Subscription per channel.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscription(ctx context.Context, channelID string) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]models.Subscription, error)
}

// Store is the full storage capability. Both backends implement it and one
// is chosen at startup by Open.
type Store interface {
	VideoStore
	SubscriptionStore
	Ping(ctx context.Context) error
	Close() error
}

type Options struct {
	// Backend is "postgres", "file" or "auto". Auto uses Postgres when
	// DatabaseURL is set and the file store otherwise.
	Backend     string
	DatabaseURL string
	DataDir     string
	Logger      *slog.Logger
}

// Open selects and opens the storage backend. The choice is made once; the
// returned Store never switches backends.
func Open(ctx context.Context, opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	filePath := filepath.Join(opts.DataDir, "videos.json")

	switch opts.Backend {
	case "postgres":
		return openPostgres(ctx, opts.DatabaseURL)
	case "file":
		logger.Info("using file store", slog.String("path", filePath))
		return NewFileStore(filePath)
	case "auto", "":
		// Chosen from configuration alone; an unreachable Postgres fails startup.
		if opts.DatabaseURL != "" {
			pg, err := openPostgres(ctx, opts.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("open postgres: %w", err)
			}
			return pg, nil
		}
		logger.Info("DATABASE_URL not set, using file store", slog.String("path", filePath))
		return NewFileStore(filePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

func openPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pg, err := ConnectPostgres(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(databaseURL); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
