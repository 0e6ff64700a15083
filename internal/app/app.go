// Package app wires the Vector subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates the realtime client and
// its audio devices, Run connects the session and serves the diagnostics
// endpoint until the context is cancelled, and Shutdown tears everything down
// in order.
//
// For testing, inject mock implementations via functional options
// (WithSource, WithSink, WithMetrics). When an option is not provided, New
// creates the real device from the config.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/careercompass/vector/internal/config"
	"github.com/careercompass/vector/internal/health"
	"github.com/careercompass/vector/internal/observe"
	"github.com/careercompass/vector/pkg/audio"
	beepsink "github.com/careercompass/vector/pkg/audio/beep"
	"github.com/careercompass/vector/pkg/audio/ffmpeg"
	"github.com/careercompass/vector/pkg/realtime"
)

// PayloadFunc receives each structured payload the assistant produces.
type PayloadFunc func(payload map[string]any)

// App owns the realtime client, its audio devices and the diagnostics server.
type App struct {
	cfg     *config.Config
	level   *slog.LevelVar
	metrics *observe.Metrics

	source    audio.Source
	sink      audio.Sink
	client    *realtime.Client
	onPayload PayloadFunc

	httpSrv *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects an audio source instead of creating an FFmpeg capture
// device from the config.
func WithSource(s audio.Source) Option {
	return func(a *App) { a.source = s }
}

// WithSink injects an audio sink instead of initialising the speaker.
func WithSink(s audio.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithMetrics injects a metrics instance instead of using the package
// default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithPayloadFunc registers a handler for extracted payloads. When not set,
// payloads are logged as JSON.
func WithPayloadFunc(fn PayloadFunc) Option {
	return func(a *App) { a.onPayload = fn }
}

// WithLogLevelVar hands the app the level var backing the process logger so
// config reloads can adjust verbosity at runtime.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// New creates an App from the config. The realtime session is not dialed
// until Run.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if a.source == nil {
		a.source = &ffmpeg.Source{
			Path:   cfg.Audio.FFmpegPath,
			Device: cfg.Audio.InputDevice,
		}
	}

	if a.sink == nil {
		sink, err := beepsink.NewSink()
		if err != nil {
			return nil, fmt.Errorf("app: init speaker: %w", err)
		}
		a.sink = sink
	}
	// The scheduler closes the sink on disconnect; this covers the case
	// where Run never connected.
	a.closers = append(a.closers, a.sink.Close)

	a.client = realtime.New(realtime.Config{
		APIKey:              cfg.ResolveAPIKey(),
		Model:               cfg.OpenAI.Model,
		BaseURL:             cfg.OpenAI.BaseURL,
		Voice:               cfg.OpenAI.Voice,
		Instructions:        cfg.Session.Instructions,
		OpeningInstructions: cfg.Session.OpeningInstructions,
		ResponseDelay:       time.Duration(cfg.Session.ResponseDelayMs) * time.Millisecond,
		CaptureBlockSize:    cfg.Audio.BlockSize,
		VAD: realtime.VADConfig{
			Threshold:         cfg.Session.VAD.Threshold,
			PrefixPaddingMs:   cfg.Session.VAD.PrefixPaddingMs,
			SilenceDurationMs: cfg.Session.VAD.SilenceDurationMs,
		},
	}, a.source, a.sink, a.callbacks())

	return a, nil
}

// Client exposes the realtime client for callers that toggle mute or inspect
// connection state.
func (a *App) Client() *realtime.Client { return a.client }

// callbacks builds the callback set translating client events into logs and
// metrics.
func (a *App) callbacks() realtime.Callbacks {
	ctx := context.Background()
	// connected mirrors whether the gauge holds a +1 for the live session, so
	// any transition away from connected releases it exactly once, whether
	// the session ends in disconnected or error.
	var connected atomic.Bool
	return realtime.Callbacks{
		OnStatusChange: func(st realtime.State) {
			slog.Info("connection state changed", "state", st.String())
			a.metrics.RecordTransition(ctx, st.String())
			if st == realtime.StateConnected {
				if !connected.Swap(true) {
					a.metrics.ActiveSessions.Add(ctx, 1)
				}
			} else if connected.Swap(false) {
				a.metrics.ActiveSessions.Add(ctx, -1)
			}
		},
		OnLog: func(msg string, sev realtime.Severity) {
			switch sev {
			case realtime.SeverityError:
				slog.Error(msg)
			case realtime.SeverityEvent:
				slog.Debug(msg)
			default:
				slog.Info(msg)
			}
		},
		OnUserSpeaking: func(speaking bool) {
			slog.Debug("user speaking", "speaking", speaking)
		},
		OnAssistantSpeaking: func(speaking bool) {
			slog.Debug("assistant speaking", "speaking", speaking)
		},
		OnPayload: func(payload map[string]any) {
			a.metrics.RecordPayload(ctx)
			if a.onPayload != nil {
				a.onPayload(payload)
				return
			}
			data, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				slog.Error("payload marshal failed", "err", err)
				return
			}
			slog.Info("payload extracted", "payload", string(data))
		},
	}
}

// Run connects the realtime session, serves the diagnostics endpoint and
// blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.client.Connect(ctx); err != nil {
		return fmt.Errorf("app: connect: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.ListenAddr != "" {
		srv := a.diagnosticsServer()
		a.httpSrv = srv

		g.Go(func() error {
			slog.Info("diagnostics server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: diagnostics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	} else {
		g.Go(func() error {
			<-ctx.Done()
			return nil
		})
	}

	err := g.Wait()
	if derr := a.client.Disconnect(); derr != nil {
		slog.Warn("disconnect error", "err", derr)
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// diagnosticsServer builds the /metrics, /healthz and /readyz endpoint.
func (a *App) diagnosticsServer() *http.Server {
	hh := health.New()
	hh.Add("session", func(context.Context) error {
		if st := a.client.State(); st == realtime.StateError {
			return fmt.Errorf("realtime session state is %s", st)
		}
		return nil
	})
	// Sources that can verify their device (the ffmpeg capture binary, for
	// one) surface that through readiness.
	if src, ok := a.source.(interface{ Check(context.Context) error }); ok {
		hh.Add("microphone", src.Check)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	hh.Register(mux)

	return &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// HandleConfigChange applies a reloaded config to the running process. Only
// log verbosity is applied live; changes to session or audio settings are
// reported but require a restart.
func (a *App) HandleConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level updated", "level", string(d.NewLogLevel))
	}
	if d.SessionChanged {
		slog.Warn("session settings changed; restart to apply")
	}
	if d.AudioChanged {
		slog.Warn("audio settings changed; restart to apply")
	}
}

// slogLevel maps a config log level onto slog's scale.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		if err := a.client.Disconnect(); err != nil {
			slog.Warn("disconnect error", "err", err)
		}

		if a.httpSrv != nil {
			if err := a.httpSrv.Shutdown(ctx); err != nil {
				slog.Warn("diagnostics server shutdown error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
