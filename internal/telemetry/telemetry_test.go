package telemetry_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finrag/internal/models"
	"finrag/internal/providers"
	"finrag/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func familyNames(t *testing.T, g prometheus.Gatherer) []string {
	t.Helper()
	mfs, err := g.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	return names
}

func hasPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}

func TestProviderMetricsReachPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	mp, err := telemetry.InstallMeterProvider(reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m := providers.NewMetrics("finrag/test")
	ctx := context.Background()
	m.RecordCall(ctx, "openai/gpt-4o", "ok")
	m.RecordUsage(ctx, "openai/gpt-4o", models.UsageInfo{InputTokens: 900, OutputTokens: 40, CostUSD: 0.0026})

	names := familyNames(t, reg)
	require.True(t, hasPrefix(names, "genai_calls"), "gathered: %v", names)
	require.True(t, hasPrefix(names, "genai_token_prompt"), "gathered: %v", names)
	require.True(t, hasPrefix(names, "genai_cost"), "gathered: %v", names)
}

func TestServeExposesGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "finrag_test_served_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- telemetry.Serve(ctx, addr, reg) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b := new(strings.Builder)
		_, _ = io.Copy(b, resp.Body)
		body = b.String()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	require.Contains(t, body, "finrag_test_served_total 1")

	cancel()
	require.NoError(t, <-done)
}

func TestPushSendsJobGroup(t *testing.T) {
	var method, path string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "finrag_test_pushed_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	require.NoError(t, telemetry.Push(context.Background(), gw.URL, "finrag_eval", reg))
	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/metrics/job/finrag_eval", path)
}

func TestPushReportsGatewayErrors(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer gw.Close()

	err := telemetry.Push(context.Background(), gw.URL, "finrag_eval", prometheus.NewRegistry())
	require.ErrorContains(t, err, "push metrics")
}
