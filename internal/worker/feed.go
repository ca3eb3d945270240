package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"yt-monitor/internal/ingest"
	"yt-monitor/internal/models"
)

const maxFeedBodySize = 5 << 20

// FeedFetcher lists the latest uploads of a channel from its public Atom
// feed. It is the polling counterpart to hub pushes.
type FeedFetcher struct {
	client  *http.Client
	feedURL func(channelID string) string
}

func NewFeedFetcher(client *http.Client) *FeedFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &FeedFetcher{
		client: client,
		feedURL: func(channelID string) string {
			return models.Channel{ChannelID: channelID}.FeedURL()
		},
	}
}

func (f *FeedFetcher) Fetch(ctx context.Context, channelID string) ([]ingest.VideoRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feedURL(channelID), nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed for %s: %w", channelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed for %s: unexpected status %d", channelID, resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBodySize))
	if err != nil {
		return nil, fmt.Errorf("parse feed for %s: %w", channelID, err)
	}

	refs := make([]ingest.VideoRef, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		videoID := youtubeExtension(item, "videoId")
		if videoID == "" {
			id, ok := strings.CutPrefix(item.GUID, "yt:video:")
			if !ok || id == "" {
				continue
			}
			videoID = id
		}
		ref := ingest.VideoRef{
			VideoID:   videoID,
			ChannelID: youtubeExtension(item, "channelId"),
			Title:     item.Title,
		}
		if ref.ChannelID == "" {
			ref.ChannelID = channelID
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func youtubeExtension(item *gofeed.Item, name string) string {
	ext, ok := item.Extensions["yt"]
	if !ok {
		return ""
	}
	values := ext[name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}
