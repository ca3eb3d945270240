package feed

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eduncan911/podcast"

	"yt-monitor/internal/models"
)

// BaseURL prefers the configured public URL and otherwise derives one from
// the request.
func BaseURL(r *http.Request, configured string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}

	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
		if r.Header.Get("X-Forwarded-Proto") != "" {
			scheme = r.Header.Get("X-Forwarded-Proto")
		}
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GenerateRSS renders the channel's stored videos, newest first as given, as
// an RSS 2.0 document linking back to YouTube.
func GenerateRSS(channel models.Channel, videos []models.VideoRecord, baseURL string) (string, error) {
	title := channel.DisplayName
	if title == "" {
		title = channel.ChannelID
	}
	description := channel.Description
	if description == "" {
		description = fmt.Sprintf("Latest videos from %s.", title)
	}

	updated := &time.Time{}
	if len(videos) > 0 {
		updated = &videos[0].UploadDate
	}
	p := podcast.New(
		title,
		fmt.Sprintf("%s/feeds/%s", baseURL, channel.ChannelID),
		description,
		updated, updated,
	)

	for _, v := range videos {
		pubDate := v.UploadDate
		item := podcast.Item{
			Title:       v.Title,
			Link:        v.URL,
			GUID:        v.VideoID,
			Description: v.Description,
			PubDate:     &pubDate,
		}
		if item.Link == "" {
			item.Link = models.WatchURL(v.VideoID)
		}
		if item.Description == "" {
			item.Description = v.Title
		}
		if v.ThumbnailURL != "" {
			item.AddImage(v.ThumbnailURL)
		}
		if _, err := p.AddItem(item); err != nil {
			return "", fmt.Errorf("add video %s: %w", v.VideoID, err)
		}
	}

	return p.String(), nil
}
