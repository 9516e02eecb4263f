package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable-api/internal/service"
)

func opsRouter(h *OpsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", h.Prometheus)
	return router
}

func getJSON(t *testing.T, router *gin.Engine, path string) (int, map[string]string) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body := map[string]string{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestOpsHandlerReadyPingsDependencies(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	h := NewOpsHandler(nil,
		ReadinessCheck{Name: "database", Ping: db.PingContext},
		ReadinessCheck{Name: "redis", Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() }},
	)

	code, body := getJSON(t, opsRouter(h), "/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpsHandlerReadyReportsFailingComponent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	h := NewOpsHandler(nil,
		ReadinessCheck{Name: "database", Ping: db.PingContext},
		ReadinessCheck{Name: "redis", Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() }},
	)

	code, body := getJSON(t, opsRouter(h), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "redis", body["component"])
}

func TestOpsHandlerReadyStopsAtFirstFailure(t *testing.T) {
	called := false
	h := NewOpsHandler(nil,
		ReadinessCheck{Name: "database", Ping: func(context.Context) error { return errors.New("down") }},
		ReadinessCheck{Name: "redis", Ping: func(context.Context) error { called = true; return nil }},
	)

	code, body := getJSON(t, opsRouter(h), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "database", body["component"])
	assert.False(t, called)
}

func TestOpsHandlerHealthAndMetrics(t *testing.T) {
	code, body := getJSON(t, opsRouter(NewOpsHandler(nil)), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	rec := httptest.NewRecorder()
	opsRouter(NewOpsHandler(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	metrics := service.NewMetricsService()
	metrics.RecordEntryEdit(service.OutcomeSuccess)
	rec = httptest.NewRecorder()
	opsRouter(NewOpsHandler(metrics)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "timetable_entry_edits_total")
}
