package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/BaSui01/agentswarm/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startTestServer(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	m := NewManager(handler, cfg, zap.NewNop())
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":9091", cfg.Addr)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(http.NotFoundHandler(), DefaultConfig(), nil)
	assert.False(t, m.IsRunning())
	assert.Equal(t, ":9091", m.Addr())

	m = startTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	assert.True(t, m.IsRunning())
	assert.ErrorContains(t, m.Start(), "already started")

	code, body := get(t, "http://"+m.Addr()+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "hello", body)

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
	assert.ErrorContains(t, m.Start(), "closed")
}

func TestManager_ListenError(t *testing.T) {
	first := startTestServer(t, http.NotFoundHandler())

	cfg := DefaultConfig()
	cfg.Addr = first.Addr()
	second := NewManager(http.NotFoundHandler(), cfg, nil)
	assert.ErrorContains(t, second.Start(), "failed to listen")
}

func TestMetricsMux(t *testing.T) {
	collector := metrics.NewCollector("test", zap.NewNop())
	collector.RecordToolCall("order_status", true, 10*time.Millisecond)

	m := startTestServer(t, MetricsMux(collector.Handler()))

	code, body := get(t, "http://"+m.Addr()+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, "http://"+m.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "test_")
}
