package websub

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"hash"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"yt-monitor/internal/db"
	"yt-monitor/internal/metrics"
	"yt-monitor/internal/models"
)

// SignatureHeader carries the hub's HMAC of the notification body.
const SignatureHeader = "X-Hub-Signature"

var (
	ErrTokenMismatch    = errors.New("verification token mismatch")
	ErrInvalidMode      = errors.New("invalid request mode")
	ErrMissingChallenge = errors.New("missing hub.challenge")
	ErrInvalidSignature = errors.New("invalid signature")
)

var signatureHashes = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

type VerifierConfig struct {
	VerifyToken string
	Secret      string
	// LeaseSeconds is assumed when the hub omits hub.lease_seconds.
	LeaseSeconds int
	// Channels limits handshake state changes to these channels. Empty means
	// any channel with a stored subscription.
	Channels []models.Channel
	Store    db.SubscriptionStore
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// Verifier answers hub handshakes and authenticates pushed notifications.
type Verifier struct {
	verifyToken  string
	secret       []byte
	leaseSeconds int
	monitored    map[string]bool
	store        db.SubscriptionStore
	metrics      metrics.Recorder
	logger       *slog.Logger
	now          func() time.Time
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var monitored map[string]bool
	if len(cfg.Channels) > 0 {
		monitored = make(map[string]bool, len(cfg.Channels))
		for _, ch := range cfg.Channels {
			monitored[ch.ChannelID] = true
		}
	}
	return &Verifier{
		monitored:    monitored,
		verifyToken:  cfg.VerifyToken,
		secret:       []byte(cfg.Secret),
		leaseSeconds: cfg.LeaseSeconds,
		store:        cfg.Store,
		metrics:      metrics.OrNop(cfg.Metrics),
		logger:       logger,
		now:          time.Now,
	}
}

// VerifyHandshake validates a hub verification request and returns the body
// to send back with a 200.
func (v *Verifier) VerifyHandshake(ctx context.Context, params url.Values) (string, error) {
	mode := params.Get("hub.mode")
	challenge := params.Get("hub.challenge")
	topic := params.Get("hub.topic")

	switch mode {
	case ModeSubscribe:
		if !v.tokenMatches(params) {
			v.logger.Warn("verification token mismatch", slog.String("topic", topic))
			return "", ErrTokenMismatch
		}
		if challenge == "" {
			return "", ErrMissingChallenge
		}
		v.logger.Info("subscription verified", slog.String("topic", topic))
		v.markActive(ctx, topic, params.Get("hub.lease_seconds"))
		return challenge, nil

	case ModeUnsubscribe:
		// Acknowledged regardless of token; only a token-bearing handshake
		// for a pending request changes stored state.
		v.logger.Info("unsubscription acknowledged", slog.String("topic", topic))
		if v.tokenMatches(params) {
			v.markUnsubscribed(ctx, topic)
		}
		if challenge != "" {
			return challenge, nil
		}
		return "Unsubscribed", nil

	case ModeDenied:
		v.logger.Warn("hub denied subscription",
			slog.String("topic", topic),
			slog.String("reason", params.Get("hub.reason")),
		)
		return "", ErrInvalidMode

	default:
		return "", ErrInvalidMode
	}
}

func (v *Verifier) tokenMatches(params url.Values) bool {
	token := params.Get("hub.verify_token")
	return subtle.ConstantTimeCompare([]byte(token), []byte(v.verifyToken)) == 1
}

// VerifySignature checks header against the HMAC of body. It is a no-op when
// no secret is configured or the hub sent no signature.
func (v *Verifier) VerifySignature(body []byte, header string) error {
	if len(v.secret) == 0 || header == "" {
		return nil
	}

	algo, digest, found := strings.Cut(header, "=")
	if !found {
		algo, digest = "sha1", header
	}
	newHash, ok := signatureHashes[strings.ToLower(algo)]
	if !ok {
		v.metrics.SignatureRejected()
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(strings.TrimSpace(digest))
	if err != nil {
		v.metrics.SignatureRejected()
		return ErrInvalidSignature
	}

	mac := hmac.New(newHash, v.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		v.metrics.SignatureRejected()
		return ErrInvalidSignature
	}
	return nil
}

func (v *Verifier) markActive(ctx context.Context, topic, leaseParam string) {
	lease := v.leaseSeconds
	if n, err := strconv.Atoi(leaseParam); err == nil && n > 0 {
		lease = n
	}
	now := v.now().UTC()
	expiry := now.Add(time.Duration(lease) * time.Second)

	v.update(ctx, topic, func(sub *models.Subscription) bool {
		sub.Status = models.SubscriptionActive
		sub.LeaseSeconds = lease
		sub.VerifiedAt = &now
		sub.LeaseExpiry = &expiry
		sub.LastError = ""
		return true
	})
}

func (v *Verifier) markUnsubscribed(ctx context.Context, topic string) {
	v.update(ctx, topic, func(sub *models.Subscription) bool {
		if sub.Status != models.SubscriptionPending {
			return false
		}
		sub.Status = models.SubscriptionExpired
		sub.LastError = ""
		return true
	})
}

// update applies fn to the stored subscription for topic and saves it when fn
// reports a change. Topics of unmonitored channels and channels we never
// requested are ignored. Store failures are logged only; they never change
// what the hub is told.
func (v *Verifier) update(ctx context.Context, topic string, fn func(*models.Subscription) bool) {
	if v.store == nil {
		return
	}
	channelID := models.ChannelIDFromTopic(topic)
	if channelID == "" {
		return
	}
	if v.monitored != nil && !v.monitored[channelID] {
		v.logger.Warn("handshake for unmonitored channel", slog.String("channel_id", channelID))
		return
	}

	sub, err := v.store.GetSubscription(ctx, channelID)
	if errors.Is(err, db.ErrNotFound) {
		v.logger.Warn("handshake without a stored request", slog.String("channel_id", channelID))
		return
	} else if err != nil {
		v.logger.Error("could not load subscription", slog.String("channel_id", channelID), slog.String("error", err.Error()))
		return
	}

	if !fn(sub) {
		return
	}
	if err := v.store.SaveSubscription(ctx, sub); err != nil {
		v.logger.Error("could not save subscription", slog.String("channel_id", channelID), slog.String("error", err.Error()))
	}
}
