package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-monitor/internal/ingest"
)

const channelFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>Example Channel</title>
 <entry>
  <id>yt:video:new1</id>
  <yt:videoId>new1</yt:videoId>
  <yt:channelId>UCone</yt:channelId>
  <title>Brand new upload</title>
  <published>2024-03-01T12:00:00+00:00</published>
 </entry>
 <entry>
  <id>yt:video:seen1</id>
  <yt:videoId>seen1</yt:videoId>
  <yt:channelId>UCone</yt:channelId>
  <title>Already stored</title>
  <published>2024-02-28T12:00:00+00:00</published>
 </entry>
</feed>`

func TestFeedFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "UCone", r.URL.Query().Get("channel_id"))
		w.Write([]byte(channelFeed))
	}))
	defer srv.Close()

	f := NewFeedFetcher(srv.Client())
	f.feedURL = func(channelID string) string { return srv.URL + "/feeds/videos.xml?channel_id=" + channelID }

	refs, err := f.Fetch(context.Background(), "UCone")
	require.NoError(t, err)
	assert.Equal(t, []ingest.VideoRef{
		{VideoID: "new1", ChannelID: "UCone", Title: "Brand new upload"},
		{VideoID: "seen1", ChannelID: "UCone", Title: "Already stored"},
	}, refs)
}

func TestFeedFetcherFallsBackToGUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"><title>x</title>
<entry><id>yt:video:guid1</id><title>One</title></entry>
<entry><id>tag:example.com,2024:other</id><title>Not a video</title></entry>
</feed>`))
	}))
	defer srv.Close()

	f := NewFeedFetcher(srv.Client())
	f.feedURL = func(string) string { return srv.URL }

	refs, err := f.Fetch(context.Background(), "UCone")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "guid1", refs[0].VideoID)
	assert.Equal(t, "UCone", refs[0].ChannelID)
}

func TestFeedFetcherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("this is not a feed"))
	}))
	defer srv.Close()

	f := NewFeedFetcher(srv.Client())

	f.feedURL = func(string) string { return srv.URL + "/missing" }
	_, err := f.Fetch(context.Background(), "UCone")
	assert.Error(t, err)

	f.feedURL = func(string) string { return srv.URL + "/garbage" }
	_, err = f.Fetch(context.Background(), "UCone")
	assert.Error(t, err)
}
