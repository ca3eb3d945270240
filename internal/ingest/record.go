package ingest

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/microcosm-cc/bluemonday"

	"yt-monitor/internal/models"
)

const unknownTitle = "Unknown Title"

// uploadDateLayouts are tried in order. yt-dlp reports YYYYMMDD, the Data API
// RFC 3339.
var uploadDateLayouts = []string{
	"20060102",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// textPolicy strips every tag. Titles and descriptions are plain text.
var textPolicy = bluemonday.StrictPolicy()

// VideoRef identifies a video to ingest along with what is already known
// about it from the notification or feed entry.
type VideoRef struct {
	VideoID   string
	ChannelID string
	Title     string
}

// newVideoRecord normalizes extractor output. Fields the extractor left empty
// are filled from ref.
func newVideoRecord(d *models.VideoDetails, ref VideoRef, now time.Time) (*models.VideoRecord, error) {
	videoID := firstNonEmpty(d.VideoID, ref.VideoID)
	if videoID == "" {
		return nil, fmt.Errorf("video details have no id")
	}
	if ref.VideoID != "" && d.VideoID != "" && d.VideoID != ref.VideoID {
		return nil, fmt.Errorf("extractor returned video %s for %s", d.VideoID, ref.VideoID)
	}

	record := &models.VideoRecord{
		VideoID:      videoID,
		Title:        firstNonEmpty(cleanText(d.Title), cleanText(ref.Title), unknownTitle),
		URL:          firstNonEmpty(d.URL, models.WatchURL(videoID)),
		UploadDate:   parseUploadDate(d.UploadDate, now),
		ViewCount:    clampNonNegative(d.ViewCount),
		LikeCount:    clampNonNegative(d.LikeCount),
		Description:  cleanText(d.Description),
		ChannelID:    firstNonEmpty(d.ChannelID, ref.ChannelID),
		ChannelTitle: cleanText(d.ChannelTitle),
		ThumbnailURL: d.ThumbnailURL,
		Tags:         pq.StringArray(d.Tags),
		CategoryID:   d.CategoryID,
		Category:     models.CategoryFor(d.CategoryName, d.CategoryID),
		ProcessedAt:  now.UTC(),
	}
	if record.Tags == nil {
		record.Tags = pq.StringArray{}
	}
	if dur := strings.TrimSpace(d.Duration); dur != "" {
		record.Duration = &dur
	}
	return record, nil
}

// parseUploadDate returns the upload time in UTC, or fallback when s is empty
// or in an unknown format.
func parseUploadDate(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range uploadDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback.UTC()
}

// cleanText removes markup and collapses runs of whitespace.
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(textPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func clampNonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
