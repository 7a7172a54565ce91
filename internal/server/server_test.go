package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhpds/provision-ledger/internal/metrics"
)

func newTestRouter(ready func() bool) http.Handler {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	return New(":0", nil, reg, ready, nil).Router()
}

func TestHealthzAlwaysOK(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyzReflectsReadiness(t *testing.T) {
	ready := false
	srv := httptest.NewServer(newTestRouter(func() bool { return ready }))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ready = true
	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
