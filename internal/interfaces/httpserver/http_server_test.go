package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"file-hub/internal/config"
	domain "file-hub/internal/domain/file"
)

func newServerForTest(t *testing.T, readiness map[string]ReadinessCheck) *HttpServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ServiceName:   "file-api",
		ListCacheTTL:  time.Minute,
		StatsCacheTTL: time.Minute,
	}
	service := domain.NewService(cfg, nil, nil, nil, zerolog.Nop())
	return New(cfg, zerolog.Nop(), service, readiness)
}

func TestReadyzReportsReadyWhenDependenciesAreHealthy(t *testing.T) {
	server := newServerForTest(t, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
		"cache":    func(ctx context.Context) error { return nil },
		"storage":  func(ctx context.Context) error { return nil },
	})

	recorder := httptest.NewRecorder()
	server.engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestReadyzFailsWhenADependencyIsDown(t *testing.T) {
	server := newServerForTest(t, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
		"cache":    func(ctx context.Context) error { return errors.New("connection refused") },
	})

	recorder := httptest.NewRecorder()
	server.engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	var body struct {
		Status string            `json:"status"`
		Failed map[string]string `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Contains(t, body.Failed, "cache")
	assert.NotContains(t, body.Failed, "database")
}

func TestHealthzStaysLiveRegardlessOfDependencies(t *testing.T) {
	server := newServerForTest(t, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return errors.New("down") },
	})

	recorder := httptest.NewRecorder()
	server.engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
}
