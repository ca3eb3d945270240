package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"yt-monitor/internal/models"
)

const subscriptionColumns = `channel_id, topic_url, callback_url, lease_seconds, lease_expiry, status,
	requested_at, verified_at, last_error`

// SaveSubscription upserts the subscription for its channel. A renewal
// supersedes whatever lease was stored before.
func (p *Postgres) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO websub_subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (channel_id) DO UPDATE SET
			topic_url = EXCLUDED.topic_url,
			callback_url = EXCLUDED.callback_url,
			lease_seconds = EXCLUDED.lease_seconds,
			lease_expiry = EXCLUDED.lease_expiry,
			status = EXCLUDED.status,
			requested_at = EXCLUDED.requested_at,
			verified_at = EXCLUDED.verified_at,
			last_error = EXCLUDED.last_error
	`
	_, err := p.db.ExecContext(ctx, query,
		sub.ChannelID, sub.TopicURL, sub.CallbackURL, sub.LeaseSeconds, sub.LeaseExpiry, string(sub.Status),
		sub.RequestedAt, sub.VerifiedAt, sub.LastError,
	)
	if err != nil {
		return fmt.Errorf("save subscription %s: %w", sub.ChannelID, err)
	}
	return nil
}

func (p *Postgres) GetSubscription(ctx context.Context, channelID string) (*models.Subscription, error) {
	sub := &models.Subscription{}
	err := p.db.GetContext(ctx, sub, "SELECT "+subscriptionColumns+" FROM websub_subscriptions WHERE channel_id = $1", channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", channelID, err)
	}
	return sub, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := p.db.SelectContext(ctx, &subs, "SELECT "+subscriptionColumns+" FROM websub_subscriptions ORDER BY channel_id")
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}
