package db

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"yt-monitor/internal/models"
)

const (
	fileSchemaVersion = "1"
	lockTimeout       = 5 * time.Second
)

// FileStore keeps everything in a single JSON document. Writes reload the
// document under an exclusive flock before mutating it, so the video_id
// uniqueness check and the append happen atomically even when the server and
// the worker share the file.
type FileStore struct {
	path string
	lock *fileLock
	mu   sync.Mutex
}

type fileData struct {
	Version       string                          `json:"version"`
	UpdatedAt     time.Time                       `json:"updated_at"`
	Videos        map[string]*models.VideoRecord  `json:"videos"`
	Subscriptions map[string]*models.Subscription `json:"subscriptions"`
}

// NewFileStore opens the store at path, creating an empty document when the
// file does not exist yet.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StorageError{Op: "open", Entity: "store", Err: err}
	}
	s := &FileStore{path: path, lock: newFileLock(path)}
	err := s.update(func(*fileData) (bool, error) { return false, nil })
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newFileData() *fileData {
	return &fileData{
		Version:       fileSchemaVersion,
		Videos:        make(map[string]*models.VideoRecord),
		Subscriptions: make(map[string]*models.Subscription),
	}
}

func (s *FileStore) read() (*fileData, bool, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return newFileData(), false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Op: "read", Entity: "store", Err: err}
	}

	data := newFileData()
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, false, &StorageError{Op: "read", Entity: "store", Err: ErrStorageCorrupt}
	}
	if data.Videos == nil {
		data.Videos = make(map[string]*models.VideoRecord)
	}
	if data.Subscriptions == nil {
		data.Subscriptions = make(map[string]*models.Subscription)
	}
	return data, true, nil
}

func (s *FileStore) write(data *fileData) error {
	data.UpdatedAt = time.Now().UTC()

	w, err := newAtomicWriter(s.path)
	if err != nil {
		return &StorageError{Op: "write", Entity: "store", Err: err}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		w.Abort()
		return &StorageError{Op: "write", Entity: "store", Err: err}
	}
	if err := w.Commit(); err != nil {
		return &StorageError{Op: "write", Entity: "store", Err: err}
	}
	return nil
}

// update runs fn against a freshly loaded document while holding both the
// in-process mutex and the cross-process lock. The document is written back
// when fn reports a change or the file did not exist.
func (s *FileStore) update(fn func(*fileData) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(lockTimeout); err != nil {
		return err
	}
	defer s.lock.Unlock()

	data, existed, err := s.read()
	if err != nil {
		return err
	}
	changed, err := fn(data)
	if err != nil {
		return err
	}
	if changed || !existed {
		return s.write(data)
	}
	return nil
}

func (s *FileStore) InsertVideo(ctx context.Context, v *models.VideoRecord) (bool, error) {
	inserted := false
	err := s.update(func(data *fileData) (bool, error) {
		if _, exists := data.Videos[v.VideoID]; exists {
			return false, nil
		}
		record := *v
		data.Videos[v.VideoID] = &record
		inserted = true
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *FileStore) VideoExists(ctx context.Context, videoID string) (bool, error) {
	data, _, err := s.read()
	if err != nil {
		return false, err
	}
	_, exists := data.Videos[videoID]
	return exists, nil
}

func (s *FileStore) FindVideos(ctx context.Context, q VideoQuery) ([]models.VideoRecord, error) {
	data, _, err := s.read()
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(q.Search)
	var out []models.VideoRecord
	for _, v := range data.Videos {
		if q.ChannelID != "" && v.ChannelID != q.ChannelID {
			continue
		}
		if !q.Since.IsZero() && v.UploadDate.Before(q.Since) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(v.Title), search) &&
			!strings.Contains(strings.ToLower(v.Description), search) {
			continue
		}
		out = append(out, *v)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadDate.Equal(out[j].UploadDate) {
			return out[i].VideoID < out[j].VideoID
		}
		return out[i].UploadDate.After(out[j].UploadDate)
	})
	if len(out) > q.limit() {
		out = out[:q.limit()]
	}
	return out, nil
}

func (s *FileStore) CountVideos(ctx context.Context, channelID string) (int, error) {
	data, _, err := s.read()
	if err != nil {
		return 0, err
	}
	if channelID == "" {
		return len(data.Videos), nil
	}
	count := 0
	for _, v := range data.Videos {
		if v.ChannelID == channelID {
			count++
		}
	}
	return count, nil
}

func (s *FileStore) ChannelStats(ctx context.Context, channelID string) (*models.ChannelStats, error) {
	data, _, err := s.read()
	if err != nil {
		return nil, err
	}

	stats := &models.ChannelStats{ChannelID: channelID}
	for _, v := range data.Videos {
		if v.ChannelID != channelID {
			continue
		}
		stats.TotalVideos++
		stats.TotalViews += v.ViewCount
		stats.TotalLikes += v.LikeCount
		if stats.LatestUpload == nil || v.UploadDate.After(*stats.LatestUpload) {
			latest := v.UploadDate
			stats.LatestUpload = &latest
		}
	}
	if stats.TotalVideos > 0 {
		stats.AverageViews = float64(stats.TotalViews) / float64(stats.TotalVideos)
		stats.AverageLikes = float64(stats.TotalLikes) / float64(stats.TotalVideos)
	}
	return stats, nil
}

func (s *FileStore) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	return s.update(func(data *fileData) (bool, error) {
		record := *sub
		data.Subscriptions[sub.ChannelID] = &record
		return true, nil
	})
}

func (s *FileStore) GetSubscription(ctx context.Context, channelID string) (*models.Subscription, error) {
	data, _, err := s.read()
	if err != nil {
		return nil, err
	}
	sub, ok := data.Subscriptions[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	return sub, nil
}

func (s *FileStore) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	data, _, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]models.Subscription, 0, len(data.Subscriptions))
	for _, sub := range data.Subscriptions {
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out, nil
}

// Ping checks that the document is still readable.
func (s *FileStore) Ping(ctx context.Context) error {
	_, _, err := s.read()
	return err
}

func (s *FileStore) Close() error { return nil }
