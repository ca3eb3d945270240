package websub

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"yt-monitor/internal/models"
)

var (
	ErrNoEntry          = errors.New("notification has no video entry")
	ErrMissingVideoID   = errors.New("notification has no video id")
	ErrMissingChannelID = errors.New("notification has no channel id")
	ErrDeletedEntry     = errors.New("notification is a deleted-entry tombstone")
)

// The hub payload is extracted with targeted patterns rather than a full XML
// decode so that slightly malformed documents still yield their ids.
var (
	entryStartRe   = regexp.MustCompile(`<entry[\s>]`)
	entryEndRe     = regexp.MustCompile(`</entry\s*>`)
	videoIDRe      = regexp.MustCompile(`(?s)<yt:videoId>\s*(.*?)\s*</yt:videoId>`)
	channelIDRe    = regexp.MustCompile(`(?s)<yt:channelId>\s*(.*?)\s*</yt:channelId>`)
	titleRe        = regexp.MustCompile(`(?s)<title(?:\s[^>]*)?>(.*?)</title>`)
	deletedEntryRe = regexp.MustCompile(`<at:deleted-entry[^>]*\bref="([^"]*)"`)
	cdataRe        = regexp.MustCompile(`(?s)^<!\[CDATA\[(.*)\]\]>$`)
)

// ParseNotification extracts the video reference from a hub push. Tombstones
// for deleted videos are reported with ErrDeletedEntry.
func ParseNotification(body []byte) (*models.NotificationEnvelope, error) {
	if m := deletedEntryRe.FindSubmatch(body); m != nil {
		return nil, fmt.Errorf("%w: %s", ErrDeletedEntry, m[1])
	}

	entry := entrySection(body)
	if entry == nil || !bytes.Contains(entry, []byte("<yt:videoId>")) {
		return nil, ErrNoEntry
	}

	videoID := firstMatch(videoIDRe, entry)
	if videoID == "" {
		return nil, ErrMissingVideoID
	}
	channelID := firstMatch(channelIDRe, entry)
	if channelID == "" {
		channelID = firstMatch(channelIDRe, body)
	}
	if channelID == "" {
		return nil, ErrMissingChannelID
	}

	return &models.NotificationEnvelope{
		VideoID:   videoID,
		ChannelID: channelID,
		Title:     decodeText(firstMatch(titleRe, entry)),
		RawBody:   body,
	}, nil
}

// entrySection returns the first <entry> element, or everything after its
// opening tag when the closing tag is missing.
func entrySection(body []byte) []byte {
	start := entryStartRe.FindIndex(body)
	if start == nil {
		return nil
	}
	rest := body[start[0]:]
	if end := entryEndRe.FindIndex(rest); end != nil {
		return rest[:end[1]]
	}
	return rest
}

func firstMatch(re *regexp.Regexp, b []byte) string {
	m := re.FindSubmatch(b)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(string(m[1]))
}

func decodeText(s string) string {
	if m := cdataRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return html.UnescapeString(s)
}
