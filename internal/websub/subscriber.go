// Package websub talks to a WebSub hub on behalf of the monitored channels:
// it requests subscriptions, answers the hub's verification handshakes and
// checks and parses the notifications the hub pushes.
package websub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"yt-monitor/internal/db"
	"yt-monitor/internal/metrics"
	"yt-monitor/internal/models"
)

const (
	ModeSubscribe   = "subscribe"
	ModeUnsubscribe = "unsubscribe"
	ModeDenied      = "denied"
)

// maxHubErrorBody bounds how much of a rejected response is kept for logs.
const maxHubErrorBody = 4 << 10

// HubError is returned when the hub answers a (un)subscribe request with
// anything other than 202 or 204.
type HubError struct {
	Mode       string
	ChannelID  string
	StatusCode int
	Body       string
}

func (e *HubError) Error() string {
	return fmt.Sprintf("hub rejected %s for %s: status %d: %s", e.Mode, e.ChannelID, e.StatusCode, e.Body)
}

type ManagerConfig struct {
	HubURL       string
	CallbackURL  string
	VerifyToken  string
	Secret       string
	LeaseSeconds int
	// Delay is the minimum gap between consecutive hub requests in the
	// *All methods.
	Delay      time.Duration
	Channels   []models.Channel
	HTTPClient *http.Client
	Store      db.SubscriptionStore
	Metrics    metrics.Recorder
	Logger     *slog.Logger
}

// Manager issues subscribe and unsubscribe requests to the hub. Renewal is
// just another subscribe; the caller decides when to run it.
type Manager struct {
	hubURL       string
	callbackURL  string
	verifyToken  string
	secret       string
	leaseSeconds int
	channels     []models.Channel
	client       *http.Client
	limiter      *rate.Limiter
	store        db.SubscriptionStore
	metrics      metrics.Recorder
	logger       *slog.Logger
	now          func() time.Time
}

func NewManager(cfg ManagerConfig) *Manager {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	return &Manager{
		hubURL:       cfg.HubURL,
		callbackURL:  cfg.CallbackURL,
		verifyToken:  cfg.VerifyToken,
		secret:       cfg.Secret,
		leaseSeconds: cfg.LeaseSeconds,
		channels:     cfg.Channels,
		client:       client,
		limiter:      rate.NewLimiter(limit, 1),
		store:        cfg.Store,
		metrics:      metrics.OrNop(cfg.Metrics),
		logger:       logger,
		now:          time.Now,
	}
}

// Channels returns the channels the manager operates on.
func (m *Manager) Channels() []models.Channel {
	return m.channels
}

// Subscribe asks the hub to start (or renew) pushing the channel's uploads
// to our callback. A nil error means the hub accepted the request; the
// subscription only becomes active once the hub completes the handshake.
func (m *Manager) Subscribe(ctx context.Context, ch models.Channel) error {
	form := url.Values{}
	form.Set("hub.callback", m.callbackURL)
	form.Set("hub.topic", ch.TopicURL())
	form.Set("hub.verify", "async")
	form.Set("hub.mode", ModeSubscribe)
	form.Set("hub.verify_token", m.verifyToken)
	if m.secret != "" {
		form.Set("hub.secret", m.secret)
	}
	form.Set("hub.lease_seconds", strconv.Itoa(m.leaseSeconds))

	err := m.send(ctx, ModeSubscribe, ch.ChannelID, form)
	m.recordRequest(ctx, ch, err)
	return err
}

// Unsubscribe asks the hub to stop pushing the channel's uploads.
func (m *Manager) Unsubscribe(ctx context.Context, ch models.Channel) error {
	form := url.Values{}
	form.Set("hub.callback", m.callbackURL)
	form.Set("hub.topic", ch.TopicURL())
	form.Set("hub.mode", ModeUnsubscribe)
	form.Set("hub.verify_token", m.verifyToken)

	err := m.send(ctx, ModeUnsubscribe, ch.ChannelID, form)
	m.recordRequest(ctx, ch, err)
	return err
}

// SubscribeAll subscribes every monitored channel in order, pausing between
// requests. Failures are per channel and never abort the run.
func (m *Manager) SubscribeAll(ctx context.Context) map[string]bool {
	return m.runAll(ctx, ModeSubscribe, m.Subscribe)
}

func (m *Manager) UnsubscribeAll(ctx context.Context) map[string]bool {
	return m.runAll(ctx, ModeUnsubscribe, m.Unsubscribe)
}

// RenewAll re-subscribes every monitored channel so leases never lapse.
func (m *Manager) RenewAll(ctx context.Context) map[string]bool {
	m.logger.Info("renewing websub subscriptions", slog.Int("channels", len(m.channels)))
	return m.SubscribeAll(ctx)
}

func (m *Manager) runAll(ctx context.Context, mode string, op func(context.Context, models.Channel) error) map[string]bool {
	results := make(map[string]bool, len(m.channels))
	succeeded := 0
	for _, ch := range m.channels {
		if err := m.limiter.Wait(ctx); err != nil {
			m.logger.Warn("stopping early", slog.String("mode", mode), slog.String("error", err.Error()))
			results[ch.ChannelID] = false
			continue
		}
		err := op(ctx, ch)
		results[ch.ChannelID] = err == nil
		if err == nil {
			succeeded++
		}
	}
	m.logger.Info("websub results",
		slog.String("mode", mode),
		slog.String("result", fmt.Sprintf("%d/%d successful", succeeded, len(m.channels))),
	)
	return results
}

func (m *Manager) send(ctx context.Context, mode, channelID string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.hubURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build %s request for %s: %w", mode, channelID, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		m.metrics.SubscriptionResult(mode, false)
		m.logger.Error("hub request failed",
			slog.String("mode", mode),
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s %s: %w", mode, channelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		m.metrics.SubscriptionResult(mode, true)
		m.logger.Info("hub accepted request", slog.String("mode", mode), slog.String("channel_id", channelID))
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxHubErrorBody))
	hubErr := &HubError{Mode: mode, ChannelID: channelID, StatusCode: resp.StatusCode, Body: string(body)}
	m.metrics.SubscriptionResult(mode, false)
	m.logger.Error("hub rejected request",
		slog.String("mode", mode),
		slog.String("channel_id", channelID),
		slog.Int("status", resp.StatusCode),
		slog.String("body", hubErr.Body),
	)
	return hubErr
}

// recordRequest stores the outcome of a subscribe or unsubscribe request as
// pending or failed. The previous lease stays visible until the hub verifies
// the new request.
func (m *Manager) recordRequest(ctx context.Context, ch models.Channel, reqErr error) {
	if m.store == nil {
		return
	}
	sub := &models.Subscription{
		ChannelID:    ch.ChannelID,
		TopicURL:     ch.TopicURL(),
		CallbackURL:  m.callbackURL,
		LeaseSeconds: m.leaseSeconds,
		Status:       models.SubscriptionPending,
		RequestedAt:  m.now().UTC(),
	}
	if prev, err := m.store.GetSubscription(ctx, ch.ChannelID); err == nil {
		sub.LeaseExpiry = prev.LeaseExpiry
		sub.VerifiedAt = prev.VerifiedAt
	} else if !errors.Is(err, db.ErrNotFound) {
		m.logger.Warn("could not load subscription", slog.String("channel_id", ch.ChannelID), slog.String("error", err.Error()))
	}
	if reqErr != nil {
		sub.Status = models.SubscriptionFailed
		sub.LastError = reqErr.Error()
	}
	if err := m.store.SaveSubscription(ctx, sub); err != nil {
		m.logger.Error("could not save subscription", slog.String("channel_id", ch.ChannelID), slog.String("error", err.Error()))
	}
}
