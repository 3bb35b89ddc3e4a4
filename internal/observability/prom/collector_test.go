package prom

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bellsbank/bellsbank/internal/observability/metrics"
)

func TestCollector_CountsRefreshOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	metrics.EmitRefresh(c, metrics.RefreshMetric{Trigger: "timer", Result: metrics.ResultSuccess, Duration: 20 * time.Millisecond})
	metrics.EmitRefresh(c, metrics.RefreshMetric{Trigger: "visibility", Result: metrics.ResultDropped})
	metrics.EmitRefresh(c, metrics.RefreshMetric{Trigger: "visibility", Result: metrics.ResultDropped})

	if got := testutil.ToFloat64(c.refreshTotal.WithLabelValues("timer", "success", "none")); got != 1 {
		t.Fatalf("timer success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.refreshTotal.WithLabelValues("visibility", "dropped", "none")); got != 2 {
		t.Fatalf("visibility dropped = %v, want 2", got)
	}
}

func TestCollector_IgnoresUnknownNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.Count("something.else", 1, map[string]string{"x": "y"})
	c.Timing("something.else", time.Second, nil)
	c.Gauge("something.else", 3, nil)

	if got := testutil.CollectAndCount(c.refreshTotal); got != 0 {
		t.Fatalf("unexpected refresh series: %d", got)
	}
}

func TestCollector_SessionGaugeAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	metrics.EmitSessionActive(c, true)
	metrics.EmitAuthOperation(c, metrics.AuthMetric{Operation: "sign_in", Result: metrics.ResultSuccess})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, want := range []string{
		"bellsbank_session_active 1",
		`bellsbank_auth_operation_total{error_code="",operation="sign_in",result="success"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}
