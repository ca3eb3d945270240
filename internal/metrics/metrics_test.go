package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.NotificationReceived()
	c.NotificationReceived()
	c.SignatureRejected()
	c.IngestOutcome("ingested")
	c.IngestOutcome("duplicate")
	c.IngestOutcome("duplicate")
	c.SubscriptionResult("subscribe", true)
	c.SubscriptionResult("subscribe", false)
	c.ExtractorLatency(150 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.notifications))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.signatureRejects))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ingestOutcomes.WithLabelValues("ingested")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ingestOutcomes.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.subscriptions.WithLabelValues("subscribe", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.subscriptions.WithLabelValues("subscribe", "failure")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.NotificationReceived()

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ytmonitor_notifications_received_total 1")
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop{}, OrNop(nil))

	c := NewCollector(prometheus.NewRegistry())
	assert.Same(t, c, OrNop(c))
}
