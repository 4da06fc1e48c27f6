package tlsutil

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	cfg := Config("api.example.com")
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Equal(t, "api.example.com", cfg.ServerName)
	require.NotEmpty(t, cfg.CipherSuites)
	for _, cs := range cfg.CipherSuites {
		assert.Contains(t, aeadSuites, cs)
	}

	cfg.CipherSuites[0] = tls.TLS_RSA_WITH_AES_128_CBC_SHA
	assert.NotEqual(t, tls.TLS_RSA_WITH_AES_128_CBC_SHA, Config("").CipherSuites[0], "suites are copied")
}

func TestForAddr(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{addr: "redis.internal:6380", want: "redis.internal"},
		{addr: "[::1]:6379", want: "::1"},
		{addr: "cache.example.com", want: "cache.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, ForAddr(tt.addr).ServerName)
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(ClientOptions{})
	assert.Equal(t, 30*time.Second, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, uint16(tls.VersionTLS12), tr.TLSClientConfig.MinVersion)
	assert.Equal(t, 4, tr.MaxIdleConnsPerHost)
}

func TestNewHTTPClient_UserAgent(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("User-Agent"))
	}))
	t.Cleanup(srv.Close)

	c := NewHTTPClient(ClientOptions{Timeout: time.Second, UserAgent: "agentswarm-test"})

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom")
	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"agentswarm-test", "custom"}, got)
}
