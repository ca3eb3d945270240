package websub

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-monitor/internal/db"
	"yt-monitor/internal/models"
)

func handshake(mode, token, challenge string) url.Values {
	params := url.Values{}
	params.Set("hub.mode", mode)
	params.Set("hub.topic", models.TopicURLFor("UCone"))
	if token != "" {
		params.Set("hub.verify_token", token)
	}
	if challenge != "" {
		params.Set("hub.challenge", challenge)
	}
	return params
}

func TestVerifyHandshake(t *testing.T) {
	v := NewVerifier(VerifierConfig{VerifyToken: "tok", LeaseSeconds: 864000})

	tests := []struct {
		name    string
		params  url.Values
		want    string
		wantErr error
	}{
		{"subscribe echoes challenge", handshake("subscribe", "tok", "12345"), "12345", nil},
		{"subscribe echoes non-numeric challenge", handshake("subscribe", "tok", "abc-def"), "abc-def", nil},
		{"token mismatch", handshake("subscribe", "wrong", "12345"), "", ErrTokenMismatch},
		{"missing token", handshake("subscribe", "", "12345"), "", ErrTokenMismatch},
		{"missing challenge", handshake("subscribe", "tok", ""), "", ErrMissingChallenge},
		{"unsubscribe without challenge", handshake("unsubscribe", "", ""), "Unsubscribed", nil},
		{"unsubscribe echoes challenge", handshake("unsubscribe", "", "999"), "999", nil},
		{"denied", handshake("denied", "", ""), "", ErrInvalidMode},
		{"unknown mode", handshake("publish", "tok", "1"), "", ErrInvalidMode},
		{"no mode", url.Values{}, "", ErrInvalidMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.VerifyHandshake(context.Background(), tt.params)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func seedPending(t *testing.T, store *db.FileStore, channelID string) {
	t.Helper()
	require.NoError(t, store.SaveSubscription(context.Background(), &models.Subscription{
		ChannelID: channelID,
		TopicURL:  models.TopicURLFor(channelID),
		Status:    models.SubscriptionPending,
	}))
}

func TestVerifyHandshakeUpdatesSubscription(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedPending(t, store, "UCone")
	v := NewVerifier(VerifierConfig{VerifyToken: "tok", LeaseSeconds: 864000, Store: store})
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }

	params := handshake("subscribe", "tok", "1")
	params.Set("hub.lease_seconds", "3600")
	_, err := v.VerifyHandshake(ctx, params)
	require.NoError(t, err)

	sub, err := store.GetSubscription(ctx, "UCone")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, 3600, sub.LeaseSeconds)
	require.NotNil(t, sub.LeaseExpiry)
	assert.True(t, now.Add(time.Hour).Equal(*sub.LeaseExpiry))
	assert.Equal(t, models.SubscriptionExpired, sub.StatusAt(now.Add(2*time.Hour)))

	// A requested unsubscribe is confirmed by a token-bearing handshake.
	sub.Status = models.SubscriptionPending
	require.NoError(t, store.SaveSubscription(ctx, sub))
	_, err = v.VerifyHandshake(ctx, handshake("unsubscribe", "tok", ""))
	require.NoError(t, err)
	sub, err = store.GetSubscription(ctx, "UCone")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionExpired, sub.Status)
}

func TestVerifyHandshakeWithoutTokenLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedPending(t, store, "UCone")
	v := NewVerifier(VerifierConfig{VerifyToken: "tok", LeaseSeconds: 864000, Store: store})

	_, err := v.VerifyHandshake(ctx, handshake("subscribe", "tok", "1"))
	require.NoError(t, err)
	before, err := store.GetSubscription(ctx, "UCone")
	require.NoError(t, err)
	require.Equal(t, models.SubscriptionActive, before.Status)

	got, err := v.VerifyHandshake(ctx, handshake("unsubscribe", "", "42"))
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	denied := handshake("denied", "", "")
	denied.Set("hub.reason", "unknown topic")
	_, err = v.VerifyHandshake(ctx, denied)
	assert.ErrorIs(t, err, ErrInvalidMode)

	after, err := store.GetSubscription(ctx, "UCone")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestVerifyHandshakeIgnoresUnknownChannels(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedPending(t, store, "UCtwo")
	v := NewVerifier(VerifierConfig{
		VerifyToken: "tok",
		Channels:    []models.Channel{{ChannelID: "UCone"}},
		Store:       store,
	})

	// UCone is monitored but was never requested.
	_, err := v.VerifyHandshake(ctx, handshake("subscribe", "tok", "1"))
	require.NoError(t, err)
	_, err = store.GetSubscription(ctx, "UCone")
	assert.ErrorIs(t, err, db.ErrNotFound)

	// UCtwo has a stored request but is not monitored.
	params := handshake("subscribe", "tok", "1")
	params.Set("hub.topic", models.TopicURLFor("UCtwo"))
	_, err = v.VerifyHandshake(ctx, params)
	require.NoError(t, err)
	sub, err := store.GetSubscription(ctx, "UCtwo")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPending, sub.Status)

	subs, err := store.ListSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestVerifyHandshakeFallsBackToConfiguredLease(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedPending(t, store, "UCone")
	v := NewVerifier(VerifierConfig{VerifyToken: "tok", LeaseSeconds: 864000, Store: store})

	_, err := v.VerifyHandshake(ctx, handshake("subscribe", "tok", "1"))
	require.NoError(t, err)

	sub, err := store.GetSubscription(ctx, "UCone")
	require.NoError(t, err)
	assert.Equal(t, 864000, sub.LeaseSeconds)
}

func sign(t *testing.T, algo string, secret, body []byte) string {
	t.Helper()
	h := hmac.New(sha1.New, secret)
	if algo == "sha256" {
		h = hmac.New(sha256.New, secret)
	}
	h.Write(body)
	return algo + "=" + hex.EncodeToString(h.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte("hello")
	v := NewVerifier(VerifierConfig{Secret: "s3cret"})

	valid := sign(t, "sha1", secret, body)
	assert.Equal(t, "sha1=f875ad165d97aba6b68e2c2f7ea314aeb2a0082f", valid)

	t.Run("valid sha1", func(t *testing.T) {
		assert.NoError(t, v.VerifySignature(body, valid))
	})
	t.Run("bare digest", func(t *testing.T) {
		assert.NoError(t, v.VerifySignature(body, valid[len("sha1="):]))
	})
	t.Run("valid sha256", func(t *testing.T) {
		assert.NoError(t, v.VerifySignature(body, sign(t, "sha256", secret, body)))
	})
	t.Run("flipped digest", func(t *testing.T) {
		raw, err := hex.DecodeString(valid[len("sha1="):])
		require.NoError(t, err)
		raw[0] ^= 0x01
		assert.ErrorIs(t, v.VerifySignature(body, "sha1="+hex.EncodeToString(raw)), ErrInvalidSignature)
	})
	t.Run("tampered body", func(t *testing.T) {
		assert.ErrorIs(t, v.VerifySignature([]byte("hellO"), valid), ErrInvalidSignature)
	})
	t.Run("unknown algorithm", func(t *testing.T) {
		assert.ErrorIs(t, v.VerifySignature(body, "md5=abcd"), ErrInvalidSignature)
	})
	t.Run("not hex", func(t *testing.T) {
		assert.ErrorIs(t, v.VerifySignature(body, "sha1=zzzz"), ErrInvalidSignature)
	})
	t.Run("missing header skips check", func(t *testing.T) {
		assert.NoError(t, v.VerifySignature(body, ""))
	})
}

func TestVerifySignatureWithoutSecret(t *testing.T) {
	v := NewVerifier(VerifierConfig{})
	assert.NoError(t, v.VerifySignature([]byte("hello"), "sha1=deadbeef"))
}
