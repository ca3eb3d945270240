package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-monitor/internal/models"
)

type fakeExtractor struct {
	details *models.VideoDetails
	err     error
	calls   int
}

func (f *fakeExtractor) FetchDetails(ctx context.Context, videoURL string) (*models.VideoDetails, error) {
	f.calls++
	return f.details, f.err
}

func TestChainFirstSuccessWins(t *testing.T) {
	first := &fakeExtractor{err: errors.New("yt-dlp missing")}
	second := &fakeExtractor{details: &models.VideoDetails{VideoID: "abc123"}}
	third := &fakeExtractor{details: &models.VideoDetails{VideoID: "unused"}}

	chain := NewChain(nil, nil, first, second, third)
	details, err := chain.FetchDetails(context.Background(), "https://www.youtube.com/watch?v=abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", details.VideoID)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls)
}

func TestChainAllFail(t *testing.T) {
	boom := errors.New("boom")
	chain := NewChain(nil, nil, &fakeExtractor{err: boom}, &fakeExtractor{})

	details, err := chain.FetchDetails(context.Background(), "https://www.youtube.com/watch?v=abc123")
	assert.Nil(t, details)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrNoDetails)
}

func TestChainEmpty(t *testing.T) {
	_, err := NewChain(nil, nil).FetchDetails(context.Background(), "https://www.youtube.com/watch?v=abc123")
	assert.ErrorIs(t, err, ErrNoDetails)
}

func TestVideoIDFromURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=abc123", "abc123", false},
		{"https://www.youtube.com/watch?feature=share&v=abc123", "abc123", false},
		{"https://youtu.be/abc123", "abc123", false},
		{"https://www.youtube.com/shorts/abc123", "abc123", false},
		{"https://www.youtube.com/embed/abc123", "abc123", false},
		{"https://www.youtube.com/channel/UCxyz", "", true},
		{"https://www.youtube.com/shorts/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := VideoIDFromURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
