package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

type Category string

const (
	CategoryNews          Category = "news"
	CategoryEducation     Category = "education"
	CategoryEntertainment Category = "entertainment"
	CategoryTechnology    Category = "technology"
	CategorySports        Category = "sports"
	CategoryOther         Category = "other"
)

// VideoRecord is the stored metadata for one video. VideoID is unique across
// every ingestion path and a record is never updated once written.
type VideoRecord struct {
	VideoID      string         `db:"video_id" json:"video_id"`
	Title        string         `db:"title" json:"title"`
	URL          string         `db:"url" json:"url"`
	UploadDate   time.Time      `db:"upload_date" json:"upload_date"`
	ViewCount    int64          `db:"view_count" json:"view_count"`
	LikeCount    int64          `db:"like_count" json:"like_count"`
	Description  string         `db:"description" json:"description"`
	ChannelID    string         `db:"channel_id" json:"channel_id"`
	ChannelTitle string         `db:"channel_title" json:"channel_title"`
	ThumbnailURL string         `db:"thumbnail_url" json:"thumbnail_url"`
	Duration     *string        `db:"duration" json:"duration,omitempty"`
	Tags         pq.StringArray `db:"tags" json:"tags"`
	CategoryID   string         `db:"category_id" json:"category_id,omitempty"`
	Category     Category       `db:"category" json:"category"`
	ProcessedAt  time.Time      `db:"processed_at" json:"processed_at"`
}

// VideoDetails is the raw result of a metadata extractor, before
// normalization into a VideoRecord.
type VideoDetails struct {
	VideoID      string
	Title        string
	URL          string
	UploadDate   string
	ViewCount    int64
	LikeCount    int64
	Description  string
	ChannelID    string
	ChannelTitle string
	ThumbnailURL string
	Duration     string
	Tags         []string
	CategoryID   string
	CategoryName string
}

type ChannelStats struct {
	ChannelID    string     `db:"channel_id" json:"channel_id"`
	TotalVideos  int        `db:"total_videos" json:"total_videos"`
	TotalViews   int64      `db:"total_views" json:"total_views"`
	TotalLikes   int64      `db:"total_likes" json:"total_likes"`
	AverageViews float64    `db:"average_views" json:"average_views"`
	AverageLikes float64    `db:"average_likes" json:"average_likes"`
	LatestUpload *time.Time `db:"latest_upload" json:"latest_upload,omitempty"`
}

// YouTube category ids and names mapped onto the coarse categories we report.
var categoryLookup = map[string]Category{
	"25":                   CategoryNews,
	"news & politics":      CategoryNews,
	"26":                   CategoryEducation,
	"27":                   CategoryEducation,
	"education":            CategoryEducation,
	"howto & style":        CategoryEducation,
	"1":                    CategoryEntertainment,
	"10":                   CategoryEntertainment,
	"20":                   CategoryEntertainment,
	"23":                   CategoryEntertainment,
	"24":                   CategoryEntertainment,
	"comedy":               CategoryEntertainment,
	"entertainment":        CategoryEntertainment,
	"film & animation":     CategoryEntertainment,
	"gaming":               CategoryEntertainment,
	"music":                CategoryEntertainment,
	"28":                   CategoryTechnology,
	"science & technology": CategoryTechnology,
	"17":                   CategorySports,
	"sports":               CategorySports,
}

// CategoryFor resolves a YouTube category id or name. Unknown values map to
// CategoryOther.
func CategoryFor(values ...string) Category {
	for _, v := range values {
		if c, ok := categoryLookup[normalizeCategoryKey(v)]; ok {
			return c
		}
	}
	return CategoryOther
}

func normalizeCategoryKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
