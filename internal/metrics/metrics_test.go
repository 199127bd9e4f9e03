package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCreditsGranted(t *testing.T) {
	added := testutil.ToFloat64(creditsGranted.WithLabelValues("added"))
	removed := testutil.ToFloat64(creditsGranted.WithLabelValues("removed"))

	RecordCreditsGranted(5)
	RecordCreditsGranted(-3)
	RecordCreditsGranted(0)

	assert.InDelta(t, added+5, testutil.ToFloat64(creditsGranted.WithLabelValues("added")), 0.001)
	assert.InDelta(t, removed+3, testutil.ToFloat64(creditsGranted.WithLabelValues("removed")), 0.001)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/ping", "204"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.InDelta(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/ping", "204")), 0.001)
}

func TestHandler(t *testing.T) {
	RecordGateDenial()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "movin_credits_gate_denials_total")
}
