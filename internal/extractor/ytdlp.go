package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"yt-monitor/internal/models"
)

var execCommandContext = exec.CommandContext

type ytDlpOutput struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	UploadDate     string   `json:"upload_date"`
	ViewCount      int64    `json:"view_count"`
	LikeCount      int64    `json:"like_count"`
	ChannelID      string   `json:"channel_id"`
	Channel        string   `json:"channel"`
	Uploader       string   `json:"uploader"`
	Thumbnail      string   `json:"thumbnail"`
	DurationString string   `json:"duration_string"`
	Tags           []string `json:"tags"`
	Categories     []string `json:"categories"`
	WebpageURL     string   `json:"webpage_url"`
}

// YtDlp shells out to yt-dlp for metadata only; nothing is downloaded.
type YtDlp struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

func NewYtDlp(path string, timeout time.Duration, logger *slog.Logger) *YtDlp {
	if path == "" {
		path = "yt-dlp"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YtDlp{path: path, timeout: timeout, logger: logger}
}

func (y *YtDlp) FetchDetails(ctx context.Context, videoURL string) (*models.VideoDetails, error) {
	if y.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	cmd := execCommandContext(ctx, y.path,
		"--skip-download",
		"--dump-json",
		"--no-warnings",
		videoURL,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		y.logger.Error("yt-dlp failed",
			slog.String("url", videoURL),
			slog.String("error", err.Error()),
			slog.String("stderr", strings.TrimSpace(stderr.String())),
		)
		return nil, fmt.Errorf("failed to execute yt-dlp command: %w", err)
	}

	// yt-dlp can print other lines before the JSON document.
	jsonStartIndex := bytes.IndexByte(output, '{')
	if jsonStartIndex == -1 {
		return nil, fmt.Errorf("no JSON found in yt-dlp output: %w", ErrNoDetails)
	}

	var out ytDlpOutput
	if err := json.Unmarshal(output[jsonStartIndex:], &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yt-dlp output: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("yt-dlp output has no id: %w", ErrNoDetails)
	}

	details := &models.VideoDetails{
		VideoID:      out.ID,
		Title:        out.Title,
		URL:          videoURL,
		UploadDate:   out.UploadDate,
		ViewCount:    out.ViewCount,
		LikeCount:    out.LikeCount,
		Description:  out.Description,
		ChannelID:    out.ChannelID,
		ChannelTitle: out.Channel,
		ThumbnailURL: out.Thumbnail,
		Duration:     out.DurationString,
		Tags:         out.Tags,
	}
	if details.ChannelTitle == "" {
		details.ChannelTitle = out.Uploader
	}
	if len(out.Categories) > 0 {
		details.CategoryName = out.Categories[0]
	}
	return details, nil
}
