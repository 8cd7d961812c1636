package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRegistered(t *testing.T) {
	SignupsTotal.WithLabelValues("ok").Inc()
	SignupsTotal.WithLabelValues("conflict").Inc()
	TokenRefreshTotal.WithLabelValues("renewed").Add(2)
	LoginRequiredTotal.Inc()

	assert.GreaterOrEqual(t, testutil.ToFloat64(SignupsTotal.WithLabelValues("ok")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(TokenRefreshTotal.WithLabelValues("renewed")), 2.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(LoginRequiredTotal), 1.0)
}

func TestHandlerServesMetrics(t *testing.T) {
	SignupsTotal.WithLabelValues("ok").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "waitlist_signups_total"))
}
