package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/service-checkout/internal/resilience"
)

func TestBreakerMetricsTransitions(t *testing.T) {
	resilience.BreakerState.Reset()
	resilience.BreakerTransitions.Reset()
	resilience.BreakerOpenedTotal.Reset()

	breaker := resilience.NewBreaker(resilience.BreakerConfig{Target: "revolut", MinRequests: 1, OpenFor: 20 * time.Millisecond})
	ctx := context.Background()

	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("revolut")))

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("revolut")))

	require.Eventually(t, func() bool {
		return breaker.Allow(ctx)
	}, 200*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, 2.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("revolut")))

	breaker.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("revolut")))

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues("revolut")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("revolut", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("revolut", "open", "half_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("revolut", "half_open", "closed")))
}
