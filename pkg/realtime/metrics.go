package realtime

import (
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for client metrics. Instruments are
// created lazily from the global MeterProvider, so whatever provider the
// application installs (see internal/observe) receives them.
const meterName = "github.com/careercompass/vector/pkg/realtime"

type clientMetrics struct {
	framesSent      metric.Int64Counter
	framesDropped   metric.Int64Counter
	audioBytesIn    metric.Int64Counter
	payloads        metric.Int64Counter
	unknownEvents   metric.Int64Counter
	playbackQueue   metric.Int64UpDownCounter
	sessionDuration metric.Float64Histogram
}

var (
	metricsOnce sync.Once
	mets        *clientMetrics
)

func getMetrics() *clientMetrics {
	metricsOnce.Do(func() {
		m := otel.Meter(meterName)
		cm := &clientMetrics{}
		var err error
		if cm.framesSent, err = m.Int64Counter("vector.audio.frames_sent",
			metric.WithDescription("Outbound audio frames appended to the input buffer."),
		); err != nil {
			slog.Warn("metric instrument creation failed", "err", err)
		}
		if cm.framesDropped, err = m.Int64Counter("vector.audio.frames_dropped",
			metric.WithDescription("Captured frames dropped because the microphone was muted."),
		); err != nil {
			slog.Warn("metric instrument creation failed", "err", err)
		}
		if cm.audioBytesIn, err = m.Int64Counter("vector.audio.bytes_received",
			metric.WithDescription("Decoded inbound audio bytes handed to the playback scheduler."),
			metric.WithUnit("By"),
		); err != nil {
			slog.Warn("metric instrument creation failed", "err", err)
		}
		if cm.payloads, err = m.Int64Counter("vector.payloads_extracted",
			metric.WithDescription("Structured payloads extracted from assistant text."),
		); err != nil {
			slog.Warn("metric instrument creation failed", "err", err)
		}
		if cm.unknownEvents, err = m.Int64Counter("vector.events.unknown",
			metric.WithDescription("Inbound events with an unrecognized kind."),
		); err != nil {
			slog.Warn("metric instrument creation failed", "err", err)
		}
		if cm.playbackQueue, err = m.Int64UpDownCounter("vector.playback.queue",
			metric.WithDescription("Audio chunks scheduled but not yet finished playing."),
		); err != nil {
			slog.Warn("metric instrument creation failed", "err", err)
		}
		if cm.sessionDuration, err = m.Float64Histogram("vector.session.duration",
			metric.WithDescription("Realtime session lifetime."),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600, 1800),
		); err != nil {
			slog.Warn("metric instrument creation failed", "err", err)
		}
		mets = cm
	})
	return mets
}
