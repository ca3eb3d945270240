package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionPending SubscriptionStatus = "pending"
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
	SubscriptionFailed  SubscriptionStatus = "failed"
)

// Subscription is the WebSub lease held for one channel. A renewal replaces
// the previous record for the same channel.
type Subscription struct {
	ChannelID    string             `db:"channel_id" json:"channel_id"`
	TopicURL     string             `db:"topic_url" json:"topic_url"`
	CallbackURL  string             `db:"callback_url" json:"callback_url"`
	LeaseSeconds int                `db:"lease_seconds" json:"lease_seconds"`
	LeaseExpiry  *time.Time         `db:"lease_expiry" json:"lease_expiry,omitempty"`
	Status       SubscriptionStatus `db:"status" json:"status"`
	RequestedAt  time.Time          `db:"requested_at" json:"requested_at"`
	VerifiedAt   *time.Time         `db:"verified_at" json:"verified_at,omitempty"`
	LastError    string             `db:"last_error" json:"last_error,omitempty"`
}

// StatusAt reports the status as of now. An active lease whose expiry has
// passed is reported as expired.
func (s Subscription) StatusAt(now time.Time) SubscriptionStatus {
	if s.Status == SubscriptionActive && s.LeaseExpiry != nil && !now.Before(*s.LeaseExpiry) {
		return SubscriptionExpired
	}
	return s.Status
}
