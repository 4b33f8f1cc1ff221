package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/service-checkout/internal/health"
)

func okProbe(context.Context) error { return nil }

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyWithoutProbes(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestReadySuccess(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	handler := health.Handler{
		Probes: map[string]health.Probe{
			"redis": func(ctx context.Context) error { return client.Ping(ctx).Err() },
			"kafka": okProbe,
		},
		Timeout: 50 * time.Millisecond,
	}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.Equal(t, map[string]string{"status": "ok", "redis": "ok", "kafka": "ok"}, status)
}

func TestReadyFailure(t *testing.T) {
	handler := health.Handler{
		Probes: map[string]health.Probe{
			"redis": func(context.Context) error { return errors.New("redis down") },
			"kafka": okProbe,
		},
		Timeout: 10 * time.Millisecond,
	}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.Equal(t, "redis down", status["redis"])
	require.Equal(t, "degraded", status["status"])
}

func TestReadyProbeHonoursTimeout(t *testing.T) {
	handler := health.Handler{
		Probes: map[string]health.Probe{
			"slow": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
		Timeout: 10 * time.Millisecond,
	}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
