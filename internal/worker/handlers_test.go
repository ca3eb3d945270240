package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-monitor/internal/db"
	"yt-monitor/internal/ingest"
	"yt-monitor/internal/models"
	"yt-monitor/internal/test"
	"yt-monitor/pkg/tasks"
)

var testChannels = []models.Channel{
	{ChannelID: "UCone", Monitored: true},
	{ChannelID: "UCtwo", Monitored: true},
}

type fakeIngester struct {
	mu            sync.Mutex
	notifications [][]byte
	refs          []ingest.VideoRef
	outcome       ingest.Outcome
	err           error
}

func (f *fakeIngester) HandleNotification(ctx context.Context, body []byte) (ingest.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, body)
	return f.outcome, f.err
}

func (f *fakeIngester) IngestVideo(ctx context.Context, ref ingest.VideoRef) (ingest.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, ref)
	return f.outcome, f.err
}

type fakeRenewer struct {
	results map[string]bool
	calls   int
}

func (f *fakeRenewer) RenewAll(ctx context.Context) map[string]bool {
	f.calls++
	return f.results
}

type fakeFeeds struct {
	refs []ingest.VideoRef
	err  error
}

func (f *fakeFeeds) Fetch(ctx context.Context, channelID string) ([]ingest.VideoRef, error) {
	return f.refs, f.err
}

func TestHandleIngestNotificationTask(t *testing.T) {
	ingester := &fakeIngester{outcome: ingest.OutcomeIngested}
	handler := NewTaskHandler(nil, HandlerConfig{Ingester: ingester})

	task, err := tasks.NewIngestNotificationTask([]byte("<feed/>"), "req-1", time.Now())
	require.NoError(t, err)

	assert.NoError(t, handler.HandleIngestNotificationTask(context.Background(), task))
	require.Len(t, ingester.notifications, 1)
	assert.Equal(t, []byte("<feed/>"), ingester.notifications[0])
}

func TestHandleIngestNotificationTaskSwallowsFailures(t *testing.T) {
	ingester := &fakeIngester{outcome: ingest.OutcomeDropped, err: errors.New("db down")}
	handler := NewTaskHandler(nil, HandlerConfig{Ingester: ingester})

	task, err := tasks.NewIngestNotificationTask([]byte("<feed/>"), "req-1", time.Now())
	require.NoError(t, err)
	assert.NoError(t, handler.HandleIngestNotificationTask(context.Background(), task))
}

func TestHandleIngestNotificationTaskBadPayload(t *testing.T) {
	handler := NewTaskHandler(nil, HandlerConfig{Ingester: &fakeIngester{}})

	err := handler.HandleIngestNotificationTask(context.Background(), asynq.NewTask(tasks.TypeIngestNotification, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleRenewSubscriptionsTask(t *testing.T) {
	renewer := &fakeRenewer{results: map[string]bool{"UCone": true, "UCtwo": false}}
	handler := NewTaskHandler(nil, HandlerConfig{Renewer: renewer})
	task, _ := tasks.NewRenewSubscriptionsTask()

	assert.NoError(t, handler.HandleRenewSubscriptionsTask(context.Background(), task))
	assert.Equal(t, 1, renewer.calls)

	renewer.results = map[string]bool{"UCone": false, "UCtwo": false}
	assert.Error(t, handler.HandleRenewSubscriptionsTask(context.Background(), task))
}

func TestHandleBackfillAllTask(t *testing.T) {
	mockEnqueuer := &test.MockTaskEnqueuer{}
	handler := NewTaskHandler(mockEnqueuer, HandlerConfig{Channels: testChannels})
	task, _ := tasks.NewBackfillAllTask()

	assert.NoError(t, handler.HandleBackfillAllTask(context.Background(), task))
	require.Len(t, mockEnqueuer.EnqueuedTasks, 2)

	for i, want := range []string{"UCone", "UCtwo"} {
		assert.Equal(t, tasks.TypeBackfillChannel, mockEnqueuer.EnqueuedTasks[i].Type())
		var p tasks.BackfillChannelPayload
		require.NoError(t, json.Unmarshal(mockEnqueuer.EnqueuedTasks[i].Payload(), &p))
		assert.Equal(t, want, p.ChannelID)
	}
}

func TestHandleBackfillAllTaskEnqueueFailure(t *testing.T) {
	mockEnqueuer := &test.MockTaskEnqueuer{Err: errors.New("redis down")}
	handler := NewTaskHandler(mockEnqueuer, HandlerConfig{Channels: testChannels})
	task, _ := tasks.NewBackfillAllTask()

	assert.NoError(t, handler.HandleBackfillAllTask(context.Background(), task))
	assert.Empty(t, mockEnqueuer.EnqueuedTasks)
}

func TestHandleBackfillChannelTask(t *testing.T) {
	refs := []ingest.VideoRef{{VideoID: "v1", ChannelID: "UCone"}, {VideoID: "v2", ChannelID: "UCone"}}
	ingester := &fakeIngester{outcome: ingest.OutcomeIngested}
	handler := NewTaskHandler(nil, HandlerConfig{Ingester: ingester, Feeds: &fakeFeeds{refs: refs}, Channels: testChannels})

	task, err := tasks.NewBackfillChannelTask("UCone")
	require.NoError(t, err)
	assert.NoError(t, handler.HandleBackfillChannelTask(context.Background(), task))
	assert.Equal(t, refs, ingester.refs)
}

func TestHandleBackfillChannelTaskErrors(t *testing.T) {
	ctx := context.Background()

	unknown, _ := tasks.NewBackfillChannelTask("UCother")
	handler := NewTaskHandler(nil, HandlerConfig{Ingester: &fakeIngester{}, Feeds: &fakeFeeds{}, Channels: testChannels})
	assert.ErrorIs(t, handler.HandleBackfillChannelTask(ctx, unknown), asynq.SkipRetry)

	task, _ := tasks.NewBackfillChannelTask("UCone")
	handler = NewTaskHandler(nil, HandlerConfig{Ingester: &fakeIngester{}, Feeds: &fakeFeeds{err: errors.New("timeout")}, Channels: testChannels})
	assert.Error(t, handler.HandleBackfillChannelTask(ctx, task))

	storeErr := errors.New("db down")
	refs := []ingest.VideoRef{{VideoID: "v1"}}
	handler = NewTaskHandler(nil, HandlerConfig{
		Ingester: &fakeIngester{outcome: ingest.OutcomeDropped, err: storeErr},
		Feeds:    &fakeFeeds{refs: refs},
		Channels: testChannels,
	})
	assert.ErrorIs(t, handler.HandleBackfillChannelTask(ctx, task), storeErr)
}

type stubExtractor struct{}

func (stubExtractor) FetchDetails(ctx context.Context, videoURL string) (*models.VideoDetails, error) {
	return &models.VideoDetails{URL: videoURL, Title: "Fetched", UploadDate: "20240301"}, nil
}

func TestBackfillIngestsOnlyUnseenVideos(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(channelFeed))
	}))
	defer srv.Close()

	store, err := db.NewFileStore(filepath.Join(t.TempDir(), "videos.json"))
	require.NoError(t, err)
	_, err = store.InsertVideo(ctx, &models.VideoRecord{VideoID: "seen1", ChannelID: "UCone"})
	require.NoError(t, err)

	feeds := NewFeedFetcher(srv.Client())
	feeds.feedURL = func(string) string { return srv.URL }

	handler := NewTaskHandler(nil, HandlerConfig{
		Ingester: ingest.NewCoordinator(store, stubExtractor{}, nil, nil),
		Feeds:    feeds,
		Channels: testChannels,
	})
	task, _ := tasks.NewBackfillChannelTask("UCone")
	require.NoError(t, handler.HandleBackfillChannelTask(ctx, task))

	n, err := store.CountVideos(ctx, "UCone")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	exists, err := store.VideoExists(ctx, "new1")
	require.NoError(t, err)
	assert.True(t, exists)
}
