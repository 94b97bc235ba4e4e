package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
)

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(config.Config{ServerAddress: ":0"}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReadyReportsMissingDatabase(t *testing.T) {
	server := NewServer(config.Config{ServerAddress: ":0"}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	server.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "database")
}

func TestMetricsEndpointDisabledByDefault(t *testing.T) {
	server := NewServer(config.Config{ServerAddress: ":0"}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	server.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpointEnabled(t *testing.T) {
	server := NewServer(config.Config{ServerAddress: ":0", MetricsEnabled: true}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	server.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
