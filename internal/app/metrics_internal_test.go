package app

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/careercompass/vector/internal/observe"
	"github.com/careercompass/vector/pkg/realtime"
)

func activeSessions(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "vector.sessions.active" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatal("metric is not a sum")
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func newCallbackApp(t *testing.T) (*App, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return &App{metrics: m}, reader
}

func TestStatusCallback_GaugeReleasedOnErrorTeardown(t *testing.T) {
	a, reader := newCallbackApp(t)
	cb := a.callbacks()

	cb.OnStatusChange(realtime.StateConnecting)
	cb.OnStatusChange(realtime.StateConnected)
	if got := activeSessions(t, reader); got != 1 {
		t.Fatalf("active sessions after connect = %d, want 1", got)
	}

	// A session that dies during setup ends in the error state, never
	// passing through disconnected.
	cb.OnStatusChange(realtime.StateError)
	if got := activeSessions(t, reader); got != 0 {
		t.Errorf("active sessions after error teardown = %d, want 0", got)
	}
}

func TestStatusCallback_GaugeNotDoubleReleased(t *testing.T) {
	a, reader := newCallbackApp(t)
	cb := a.callbacks()

	cb.OnStatusChange(realtime.StateConnected)
	cb.OnStatusChange(realtime.StateError)
	cb.OnStatusChange(realtime.StateDisconnected)
	if got := activeSessions(t, reader); got != 0 {
		t.Errorf("active sessions = %d, want 0", got)
	}

	// A fresh session on the same client counts again.
	cb.OnStatusChange(realtime.StateConnecting)
	cb.OnStatusChange(realtime.StateConnected)
	if got := activeSessions(t, reader); got != 1 {
		t.Errorf("active sessions after reconnect = %d, want 1", got)
	}
}
