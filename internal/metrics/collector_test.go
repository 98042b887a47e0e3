package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RendersPrometheusText(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("x_total", "x help", "").Add(3)
	c.Counter("y_total", "y help", `provider="gemini"`).Inc()
	c.Gauge("g", "gauge help", "").Set(7)
	h := c.Histogram("lat_seconds", "latency", "", []float64{1, 5})
	h.Observe(0.5)
	h.Observe(3)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, out, "deepsearch_uptime_seconds")
	assert.Contains(t, out, "x_total 3\n")
	assert.Contains(t, out, `y_total{provider="gemini"} 1`)
	assert.Contains(t, out, "g 7\n")
	assert.Contains(t, out, `lat_seconds_bucket{le="1"} 1`)
	assert.Contains(t, out, `lat_seconds_bucket{le="5"} 2`)
	assert.Contains(t, out, "lat_seconds_count 2\n")
}

func TestCollector_SameKeyReturnsSameCounter(t *testing.T) {
	c := NewMetricsCollector()
	a := c.Counter("n", "h", `k="v"`)
	b := c.Counter("n", "h", `k="v"`)
	a.Inc()
	assert.Equal(t, int64(1), b.Value())
}

func TestProviderOutcome(t *testing.T) {
	before := Collector.Counter("deepsearch_provider_requests_total", "", `provider="unit",outcome="success"`).Value()
	ProviderOutcome("unit", true)
	after := Collector.Counter("deepsearch_provider_requests_total", "", `provider="unit",outcome="success"`).Value()
	assert.Equal(t, before+1, after)
}
