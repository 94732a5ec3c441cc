package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

func TestPublishCountsUnits(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.Publish(ctx, domain.Event{Type: domain.EventPoolEntered, Amount: 10}))
	require.NoError(t, m.Publish(ctx, domain.Event{Type: domain.EventPoolFunded, Amount: 30}))
	require.NoError(t, m.Publish(ctx, domain.Event{Type: domain.EventWinClaimed, Amount: 13}))

	assert.Equal(t, 40.0, testutil.ToFloat64(m.Deposited))
	assert.Equal(t, 13.0, testutil.ToFloat64(m.PaidOut))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("win_claimed")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveRequest("GET /api/health", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `degenpools_http_requests_total{route="GET /api/health",status="200"} 1`)
}
