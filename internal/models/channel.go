package models

import "net/url"

// Channel is a monitored YouTube channel. Channels are loaded once at startup
// and are never mutated afterwards.
type Channel struct {
	ChannelID   string `yaml:"channel_id" json:"channel_id"`
	Handle      string `yaml:"handle" json:"handle"`
	DisplayName string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	Timezone    string `yaml:"timezone" json:"timezone"`
	Monitored   bool   `yaml:"-" json:"monitored"`
}

// TopicURL is the WebSub topic for the channel's upload feed.
func (c Channel) TopicURL() string {
	return TopicURLFor(c.ChannelID)
}

// FeedURL is the public Atom feed listing the channel's latest uploads.
func (c Channel) FeedURL() string {
	return "https://www.youtube.com/feeds/videos.xml?channel_id=" + c.ChannelID
}

const topicPrefix = "https://www.youtube.com/xml/feeds/videos.xml?channel_id="

// TopicURLFor builds the hub topic for a channel id.
func TopicURLFor(channelID string) string {
	return topicPrefix + channelID
}

// ChannelIDFromTopic extracts the channel id from a hub topic URL. It returns
// "" when the topic carries none.
func ChannelIDFromTopic(topic string) string {
	u, err := url.Parse(topic)
	if err != nil {
		return ""
	}
	return u.Query().Get("channel_id")
}
