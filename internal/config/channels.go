package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"yt-monitor/internal/models"
)

// DefaultChannels is the built-in monitored set used when no channels file is
// configured.
func DefaultChannels() []models.Channel {
	return []models.Channel{
		{
			ChannelID:   "UCaIGZ2lNpryhA-p9KXr5XNw",
			Handle:      "@markets",
			DisplayName: "Bloomberg Markets",
			Description: "Bloomberg Television - Global financial news",
			Timezone:    "America/New_York",
			Monitored:   true,
		},
		{
			ChannelID:   "UCUDXkpsJIdv1aKb1TCN2p0Q",
			Handle:      "@ANINewsIndia",
			DisplayName: "ANI News India",
			Description: "Asian News International - Indian news coverage",
			Timezone:    "Asia/Kolkata",
			Monitored:   true,
		},
		{
			ChannelID:   "UCDANGgqLMuoRfpX75LP7bUQ",
			Handle:      "@testchannel",
			DisplayName: "Test Channel",
			Description: "Test channel for system validation",
			Timezone:    "UTC",
			Monitored:   true,
		},
	}
}

// LoadChannels reads the channel list from a YAML file. An empty path yields
// DefaultChannels. Entries without a timezone default to UTC; entries that
// omit "monitored" are monitored.
func LoadChannels(path string) ([]models.Channel, error) {
	if path == "" {
		return DefaultChannels(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channels file: %w", err)
	}

	var doc struct {
		Channels []struct {
			models.Channel `yaml:",inline"`
			Monitored      *bool `yaml:"monitored"`
		} `yaml:"channels"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse channels file: %w", err)
	}

	seen := make(map[string]bool)
	channels := make([]models.Channel, 0, len(doc.Channels))
	for i, entry := range doc.Channels {
		ch := entry.Channel
		ch.ChannelID = strings.TrimSpace(ch.ChannelID)
		if ch.ChannelID == "" {
			return nil, fmt.Errorf("channels[%d]: channel_id is required", i)
		}
		if seen[ch.ChannelID] {
			return nil, fmt.Errorf("channels[%d]: duplicate channel_id %s", i, ch.ChannelID)
		}
		seen[ch.ChannelID] = true
		if ch.Timezone == "" {
			ch.Timezone = "UTC"
		}
		ch.Monitored = entry.Monitored == nil || *entry.Monitored
		channels = append(channels, ch)
	}
	return channels, nil
}

// Monitored filters out channels that are configured but not monitored.
func Monitored(channels []models.Channel) []models.Channel {
	out := make([]models.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Monitored {
			out = append(out, ch)
		}
	}
	return out
}
