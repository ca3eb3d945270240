package models

// NotificationEnvelope is what a single hub push carries once parsed. It only
// lives for the duration of one webhook invocation.
type NotificationEnvelope struct {
	VideoID   string
	ChannelID string
	Title     string
	RawBody   []byte
}

// WatchURL builds the canonical watch URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
