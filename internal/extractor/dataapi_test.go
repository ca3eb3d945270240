package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const videosListResponse = `{
  "items": [{
    "id": "abc123",
    "snippet": {
      "publishedAt": "2024-03-01T12:00:00Z",
      "channelId": "UCxyz",
      "title": "API Title",
      "description": "API description",
      "channelTitle": "Example Channel",
      "tags": ["a", "b"],
      "categoryId": "28",
      "thumbnails": {"high": {"url": "https://i.ytimg.com/vi/abc123/hqdefault.jpg"}}
    },
    "statistics": {"viewCount": "1500", "likeCount": "120"},
    "contentDetails": {"duration": "PT10M30S"}
  }]
}`

func newTestDataAPI(t *testing.T, handler http.HandlerFunc) *DataAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api, err := NewDataAPI(context.Background(), "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return api
}

func TestDataAPIFetchDetails(t *testing.T) {
	var gotPath, gotID, gotPart string
	api := newTestDataAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotID = r.URL.Query().Get("id")
		gotPart = r.URL.Query().Get("part")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(videosListResponse))
	})

	details, err := api.FetchDetails(context.Background(), "https://www.youtube.com/watch?v=abc123")
	require.NoError(t, err)

	assert.Equal(t, "/youtube/v3/videos", gotPath)
	assert.Equal(t, "abc123", gotID)
	assert.Equal(t, "snippet,statistics,contentDetails", gotPart)

	assert.Equal(t, "abc123", details.VideoID)
	assert.Equal(t, "API Title", details.Title)
	assert.Equal(t, "2024-03-01T12:00:00Z", details.UploadDate)
	assert.Equal(t, int64(1500), details.ViewCount)
	assert.Equal(t, int64(120), details.LikeCount)
	assert.Equal(t, "UCxyz", details.ChannelID)
	assert.Equal(t, "28", details.CategoryID)
	assert.Equal(t, "PT10M30S", details.Duration)
	assert.Equal(t, "https://i.ytimg.com/vi/abc123/hqdefault.jpg", details.ThumbnailURL)
	assert.Equal(t, []string{"a", "b"}, details.Tags)
}

func TestDataAPIFetchDetailsNotFound(t *testing.T) {
	api := newTestDataAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": []}`))
	})

	_, err := api.FetchDetails(context.Background(), "https://www.youtube.com/watch?v=gone")
	assert.ErrorIs(t, err, ErrNoDetails)
}

func TestDataAPIFetchDetailsServerError(t *testing.T) {
	api := newTestDataAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "quota exceeded"}}`))
	})

	_, err := api.FetchDetails(context.Background(), "https://www.youtube.com/watch?v=abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestDataAPIRejectsURLWithoutID(t *testing.T) {
	api := newTestDataAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := api.FetchDetails(context.Background(), "https://www.youtube.com/channel/UCxyz")
	assert.Error(t, err)
}
