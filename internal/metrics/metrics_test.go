package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(true)

	m.RecordWebhookReceived("nft_bids")
	m.RecordWebhookReceived("nft_bids")
	m.RecordWebhookRejected("unauthorized")
	m.RecordDelivery("setup", "ack")
	m.RecordRecordsWritten("token_prices", 3)
	m.RecordRecordsWritten("token_prices", 0)
	m.RecordProvisioningAttempt("create", "error")
	m.RecordProcessingDuration("token_prices", 120*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhookEventsReceived.WithLabelValues("nft_bids")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEventsRejected.WithLabelValues("unauthorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("setup", "ack")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsWritten.WithLabelValues("token_prices")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProvisioningAttempts.WithLabelValues("create", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ProcessingDuration))
}

func TestMetrics_Disabled(t *testing.T) {
	var nilMetrics *Metrics
	for _, m := range []*Metrics{New(false), nilMetrics} {
		assert.False(t, m.IsEnabled())
		assert.NotPanics(t, func() {
			m.RecordWebhookReceived("nft_bids")
			m.RecordDelivery("setup", "ack")
			m.RecordProcessingDuration("nft_bids", time.Second)
		})
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New(true)
	m.RecordDelivery("nft_prices", "retry")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `dexer_queue_deliveries_total{outcome="retry",queue="nft_prices"} 1`))
}

func TestMetrics_NewServer(t *testing.T) {
	m := New(true)
	srv := m.NewServer(":0")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
