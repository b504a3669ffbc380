package infra

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewHTTPServerAppliesConfigTimeouts(t *testing.T) {
	cfg := &Config{
		Port:                  "9090",
		HTTPReadTimeout:       15 * time.Second,
		HTTPReadHeaderTimeout: 2 * time.Second,
		HTTPWriteTimeout:      30 * time.Second,
		HTTPIdleTimeout:       time.Minute,
	}

	srv := NewHTTPServer(cfg, http.NotFoundHandler())

	require.Equal(t, ":9090", srv.server.Addr)
	require.Equal(t, 15*time.Second, srv.server.ReadTimeout)
	require.Equal(t, 2*time.Second, srv.server.ReadHeaderTimeout)
	require.Equal(t, 30*time.Second, srv.server.WriteTimeout)
	require.Equal(t, time.Minute, srv.server.IdleTimeout)
}
