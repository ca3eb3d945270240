package extractor

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"yt-monitor/internal/models"
)

// DataAPI reads video metadata from the YouTube Data API v3.
type DataAPI struct {
	client *youtube.Service
}

// NewDataAPI builds a client authenticated with apiKey. Extra options are
// applied after the key, which lets tests point it at a local server.
func NewDataAPI(ctx context.Context, apiKey string, opts ...option.ClientOption) (*DataAPI, error) {
	if apiKey != "" {
		opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	}
	client, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube client: %w", err)
	}
	return &DataAPI{client: client}, nil
}

func (d *DataAPI) FetchDetails(ctx context.Context, videoURL string) (*models.VideoDetails, error) {
	videoID, err := VideoIDFromURL(videoURL)
	if err != nil {
		return nil, err
	}

	response, err := d.client.Videos.
		List([]string{"snippet", "statistics", "contentDetails"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube videos.list %s: %w", videoID, err)
	}
	if len(response.Items) == 0 || response.Items[0].Snippet == nil {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrNoDetails)
	}

	item := response.Items[0]
	snippet := item.Snippet
	details := &models.VideoDetails{
		VideoID:      videoID,
		Title:        snippet.Title,
		URL:          models.WatchURL(videoID),
		UploadDate:   snippet.PublishedAt,
		Description:  snippet.Description,
		ChannelID:    snippet.ChannelId,
		ChannelTitle: snippet.ChannelTitle,
		Tags:         snippet.Tags,
		CategoryID:   snippet.CategoryId,
	}
	if thumbs := snippet.Thumbnails; thumbs != nil {
		for _, th := range []*youtube.Thumbnail{thumbs.High, thumbs.Medium, thumbs.Default} {
			if th != nil && th.Url != "" {
				details.ThumbnailURL = th.Url
				break
			}
		}
	}
	if stats := item.Statistics; stats != nil {
		details.ViewCount = clampCount(stats.ViewCount)
		details.LikeCount = clampCount(stats.LikeCount)
	}
	if item.ContentDetails != nil {
		details.Duration = item.ContentDetails.Duration
	}
	return details, nil
}

func clampCount(n uint64) int64 {
	if n > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(n)
}
