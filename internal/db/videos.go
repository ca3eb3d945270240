package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"yt-monitor/internal/models"
)

const videoColumns = `video_id, title, url, upload_date, view_count, like_count, description,
	channel_id, channel_title, thumbnail_url, duration, tags, category_id, category, processed_at`

// uniqueViolation is the Postgres SQLSTATE for a unique key conflict.
const uniqueViolation = "23505"

func (p *Postgres) InsertVideo(ctx context.Context, v *models.VideoRecord) (bool, error) {
	query := `
		INSERT INTO videos (` + videoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (video_id) DO NOTHING
	`
	tags := v.Tags
	if tags == nil {
		tags = pq.StringArray{}
	}
	res, err := p.db.ExecContext(ctx, query,
		v.VideoID, v.Title, v.URL, v.UploadDate, v.ViewCount, v.LikeCount, v.Description,
		v.ChannelID, v.ChannelTitle, v.ThumbnailURL, v.Duration, tags, v.CategoryID, string(v.Category), v.ProcessedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("insert video %s: %w", v.VideoID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert video %s: %w", v.VideoID, err)
	}
	return n > 0, nil
}

func (p *Postgres) VideoExists(ctx context.Context, videoID string) (bool, error) {
	var exists bool
	err := p.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM videos WHERE video_id = $1)", videoID)
	if err != nil {
		return false, fmt.Errorf("check video %s: %w", videoID, err)
	}
	return exists, nil
}

func (p *Postgres) FindVideos(ctx context.Context, q VideoQuery) ([]models.VideoRecord, error) {
	var (
		conds []string
		args  []any
	)
	if q.ChannelID != "" {
		args = append(args, q.ChannelID)
		conds = append(conds, fmt.Sprintf("channel_id = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		conds = append(conds, fmt.Sprintf("(title ILIKE $%[1]d OR description ILIKE $%[1]d)", len(args)))
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since)
		conds = append(conds, fmt.Sprintf("upload_date >= $%d", len(args)))
	}

	query := "SELECT " + videoColumns + " FROM videos"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, q.limit())
	query += fmt.Sprintf(" ORDER BY upload_date DESC LIMIT $%d", len(args))

	var videos []models.VideoRecord
	if err := p.db.SelectContext(ctx, &videos, query, args...); err != nil {
		return nil, fmt.Errorf("find videos: %w", err)
	}
	return videos, nil
}

func (p *Postgres) CountVideos(ctx context.Context, channelID string) (int, error) {
	var (
		count int
		err   error
	)
	if channelID == "" {
		err = p.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM videos")
	} else {
		err = p.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM videos WHERE channel_id = $1", channelID)
	}
	if err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return count, nil
}

func (p *Postgres) ChannelStats(ctx context.Context, channelID string) (*models.ChannelStats, error) {
	query := `
		SELECT COUNT(*) AS total_videos,
			COALESCE(SUM(view_count), 0) AS total_views,
			COALESCE(SUM(like_count), 0) AS total_likes,
			COALESCE(AVG(view_count), 0)::float8 AS average_views,
			COALESCE(AVG(like_count), 0)::float8 AS average_likes,
			MAX(upload_date) AS latest_upload
		FROM videos
		WHERE channel_id = $1
	`
	stats := &models.ChannelStats{}
	if err := p.db.GetContext(ctx, stats, query, channelID); err != nil {
		return nil, fmt.Errorf("channel stats %s: %w", channelID, err)
	}
	stats.ChannelID = channelID
	return stats, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
