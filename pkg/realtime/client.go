// Package realtime implements a client for OpenAI's Realtime API over
// WebSocket.
//
// A [Client] owns one conversation session at a time: it streams microphone
// audio from an [audio.Source] to the model as base64-encoded PCM16 chunks,
// schedules the model's synthesized speech onto an [audio.Sink], and surfaces
// conversation lifecycle through a [Callbacks] set. Assistant text carrying a
// fenced JSON block is parsed into a structured payload and delivered via
// OnPayload.
package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/careercompass/vector/pkg/audio"
	"github.com/careercompass/vector/pkg/audio/capture"
	"github.com/careercompass/vector/pkg/audio/playback"
)

const (
	defaultModel   = "gpt-4o-realtime-preview-2024-12-17"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"
	defaultVoice   = "alloy"

	// defaultResponseDelay is how long after session.updated the opening
	// response is requested. The delay lets the server settle the session
	// configuration before the first response.create.
	defaultResponseDelay = 500 * time.Millisecond
)

// ── State ─────────────────────────────────────────────────────────────────────

// State describes the connection lifecycle of a Client.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateError
	StateDisconnected
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Severity classifies log lines surfaced through Callbacks.OnLog.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityEvent
	SeverityError
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityEvent:
		return "event"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

// Callbacks receives conversation lifecycle notifications. All fields are
// optional; nil callbacks are skipped. Callbacks are invoked from the
// client's internal goroutines and must not block.
type Callbacks struct {
	// OnStatusChange fires on every connection state transition.
	OnStatusChange func(State)

	// OnLog receives human-readable activity lines for a session transcript.
	OnLog func(msg string, sev Severity)

	// OnUserSpeaking fires when server-side VAD detects the start or end of
	// user speech.
	OnUserSpeaking func(bool)

	// OnAssistantSpeaking fires when synthesized speech playback starts and
	// when the playback queue drains.
	OnAssistantSpeaking func(bool)

	// OnAudioOutput receives each decoded inbound audio chunk as float32
	// samples at 24kHz, after it has been handed to the playback scheduler.
	OnAudioOutput func(samples []float32)

	// OnPayload receives the structured payload extracted from a fenced JSON
	// block in assistant text.
	OnPayload func(payload map[string]any)
}

// ── Config ────────────────────────────────────────────────────────────────────

// VADConfig tunes server-side voice activity detection.
type VADConfig struct {
	Threshold         float64
	PrefixPaddingMs   int
	SilenceDurationMs int
}

// Config holds the session parameters for a Client. Zero values fall back to
// sensible defaults where noted.
type Config struct {
	// APIKey authenticates against the Realtime endpoint.
	APIKey string

	// Model selects the realtime model. Defaults to a pinned preview model.
	Model string

	// BaseURL overrides the WebSocket endpoint. Primarily used in tests to
	// point at a local mock server.
	BaseURL string

	// Instructions is the system prompt applied via session.update.
	Instructions string

	// OpeningInstructions seeds the first model response after the session
	// configuration is acknowledged.
	OpeningInstructions string

	// Voice selects the synthesis voice. Defaults to "alloy".
	Voice string

	// VAD tunes server-side turn detection. Zero values use the server
	// defaults established by applyDefaults.
	VAD VADConfig

	// ResponseDelay is the pause between session.updated and the opening
	// response.create. Defaults to 500ms.
	ResponseDelay time.Duration

	// CaptureBlockSize is the number of samples per outbound frame. 0 uses
	// the capture engine's default.
	CaptureBlockSize int
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Voice == "" {
		c.Voice = defaultVoice
	}
	if c.VAD.Threshold == 0 {
		c.VAD.Threshold = 0.5
	}
	if c.VAD.PrefixPaddingMs == 0 {
		c.VAD.PrefixPaddingMs = 300
	}
	if c.VAD.SilenceDurationMs == 0 {
		c.VAD.SilenceDurationMs = 500
	}
	if c.ResponseDelay == 0 {
		c.ResponseDelay = defaultResponseDelay
	}
}

// ── Client ────────────────────────────────────────────────────────────────────

// Client manages a single realtime conversation at a time. It is safe for
// concurrent use.
type Client struct {
	cfg    Config
	cb     Callbacks
	source audio.Source
	sink   audio.Sink

	mu    sync.Mutex
	state State
	muted bool
	sess  *session
}

// session bundles the per-connection resources so a new Connect after
// Disconnect starts from a clean slate.
type session struct {
	id      string
	conn    *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	capture *capture.Engine
	sched   *playback.Scheduler

	// closed gates callbacks the moment teardown begins, before the
	// underlying resources finish shutting down.
	closed    atomic.Bool
	closeOnce sync.Once

	timerMu     sync.Mutex
	openingSent bool
	opening     *time.Timer

	frames  atomic.Int64
	queued  atomic.Int64
	started time.Time
}

// New creates a Client that captures from source and plays back through sink.
func New(cfg Config, source audio.Source, sink audio.Sink, cb Callbacks) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:    cfg,
		cb:     cb,
		source: source,
		sink:   sink,
		state:  StateIdle,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Muted reports whether outbound audio is currently suppressed.
func (c *Client) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// SetMuted toggles outbound audio suppression. Muting drops captured frames
// before encoding; capture itself keeps running. Setting the current value
// again is a no-op.
func (c *Client) SetMuted(muted bool) {
	c.mu.Lock()
	if c.muted == muted {
		c.mu.Unlock()
		return
	}
	c.muted = muted
	sess := c.sess
	c.mu.Unlock()

	if sess != nil {
		if muted {
			c.emitLog(sess, "microphone muted", SeverityEvent)
		} else {
			c.emitLog(sess, "microphone unmuted", SeverityEvent)
		}
	}
}

// Connect dials the Realtime endpoint, configures the session and starts
// streaming microphone audio. Calling Connect while a session is live is a
// no-op. The context bounds the dial only; the session itself lives until
// [Client.Disconnect] or a transport failure.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.emitStatus(StateConnecting)

	wsURL := fmt.Sprintf("%s?model=%s", c.cfg.BaseURL, c.cfg.Model)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + c.cfg.APIKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		c.mu.Lock()
		c.state = StateError
		c.mu.Unlock()
		c.emitStatus(StateError)
		return fmt.Errorf("realtime: dial: %w", err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		id:      uuid.NewString(),
		conn:    conn,
		ctx:     sessCtx,
		cancel:  sessCancel,
		capture: capture.New(c.source, capture.WithBlockSize(c.cfg.CaptureBlockSize)),
		started: time.Now(),
	}
	sess.sched = playback.New(c.sink,
		playback.WithSpeakingFunc(func(speaking bool) {
			if c.cb.OnAssistantSpeaking != nil {
				c.cb.OnAssistantSpeaking(speaking)
			}
		}),
		playback.WithChunkDoneFunc(func() {
			sess.queued.Add(-1)
			if m := getMetrics(); m.playbackQueue != nil {
				m.playbackQueue.Add(context.Background(), -1)
			}
		}),
	)

	c.mu.Lock()
	c.sess = sess
	c.state = StateConnected
	c.mu.Unlock()
	c.emitStatus(StateConnected)
	c.emitLog(sess, "connection established", SeverityInfo)
	slog.Debug("realtime session established", "session_id", sess.id, "model", c.cfg.Model)

	if err := c.sendSessionUpdate(sess); err != nil {
		c.teardown(sess, StateError)
		return fmt.Errorf("realtime: session update: %w", err)
	}

	if err := sess.capture.Start(sessCtx, c.onFrame(sess), c.onCaptureErr(sess)); err != nil {
		// The conversation stays up without a microphone; the model can
		// still speak and the caller may retry with a different device.
		c.emitLog(sess, fmt.Sprintf("audio capture failed: %v", err), SeverityError)
		c.emitStatus(StateError)
	}

	go c.readLoop(sess)

	return nil
}

// Disconnect tears down the live session and releases its audio resources.
// Calling Disconnect without a live session is a no-op.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return nil
	}
	c.teardown(sess, StateDisconnected)
	return nil
}

// sendSessionUpdate pushes the full session configuration: audio formats,
// instructions, voice and server-side VAD tuning.
func (c *Client) sendSessionUpdate(s *session) error {
	return c.writeJSON(s, sessionUpdateEvent{
		Type: "session.update",
		Session: sessionParams{
			Modalities:        []string{"text", "audio"},
			Instructions:      c.cfg.Instructions,
			Voice:             c.cfg.Voice,
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
			TurnDetection: &turnDetection{
				Type:              "server_vad",
				Threshold:         c.cfg.VAD.Threshold,
				PrefixPaddingMs:   c.cfg.VAD.PrefixPaddingMs,
				SilenceDurationMs: c.cfg.VAD.SilenceDurationMs,
			},
		},
	})
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (c *Client) writeJSON(s *session, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// ── Outbound audio ────────────────────────────────────────────────────────────

// onFrame returns the capture callback for a session: resample to the wire
// rate, encode to PCM16 and append to the server's input buffer.
func (c *Client) onFrame(s *session) capture.FrameFunc {
	return func(frame audio.Frame) {
		if s.closed.Load() {
			return
		}

		c.mu.Lock()
		muted := c.muted
		c.mu.Unlock()
		if muted {
			if m := getMetrics(); m.framesDropped != nil {
				m.framesDropped.Add(s.ctx, 1)
			}
			return
		}

		resampled := audio.ResampleTo24k(frame.Samples, frame.SampleRate)
		encoded := base64.StdEncoding.EncodeToString(audio.EncodePCM16(resampled))
		if err := c.writeJSON(s, appendAudioEvent{
			Type:  "input_audio_buffer.append",
			Audio: encoded,
		}); err != nil {
			if !s.closed.Load() {
				c.emitLog(s, fmt.Sprintf("audio send failed: %v", err), SeverityError)
			}
			return
		}

		s.frames.Add(1)
		if m := getMetrics(); m.framesSent != nil {
			m.framesSent.Add(s.ctx, 1)
		}
	}
}

// onCaptureErr returns the handler for mid-stream capture failures.
func (c *Client) onCaptureErr(s *session) func(error) {
	return func(err error) {
		if s.closed.Load() {
			return
		}
		c.emitLog(s, fmt.Sprintf("audio capture error: %v", err), SeverityError)
	}
}

// ── Inbound events ────────────────────────────────────────────────────────────

// readLoop reads events from the WebSocket until the connection drops or the
// session is torn down. A remote close transitions to disconnected.
func (c *Client) readLoop(s *session) {
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.closed.Load() || s.ctx.Err() != nil {
				return
			}
			c.emitLog(s, "connection closed", SeverityInfo)
			c.teardown(s, StateDisconnected)
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			c.emitLog(s, fmt.Sprintf("unparseable event: %v", err), SeverityError)
			continue
		}

		c.handleServerEvent(s, &evt)
	}
}

func (c *Client) handleServerEvent(s *session, evt *serverEvent) {
	switch evt.Type {
	case "session.created":
		c.emitLog(s, "session created", SeverityEvent)

	case "session.updated":
		c.emitLog(s, "session configuration acknowledged", SeverityEvent)
		c.scheduleOpening(s)

	case "input_audio_buffer.speech_started":
		c.emitLog(s, "user speech detected", SeverityEvent)
		if c.cb.OnUserSpeaking != nil && !s.closed.Load() {
			c.cb.OnUserSpeaking(true)
		}

	case "input_audio_buffer.speech_stopped":
		c.emitLog(s, "user speech ended", SeverityEvent)
		if c.cb.OnUserSpeaking != nil && !s.closed.Load() {
			c.cb.OnUserSpeaking(false)
		}

	case "input_audio_buffer.committed":
		c.emitLog(s, "audio buffer committed", SeverityEvent)

	case "response.created":
		c.emitLog(s, "response started", SeverityEvent)

	case "response.audio.delta":
		c.handleAudioDelta(s, evt)

	case "response.done":
		c.handleResponseDone(s, evt)

	case "error":
		msg := "unknown error"
		if evt.Error != nil && evt.Error.Message != "" {
			msg = evt.Error.Message
		}
		c.emitLog(s, fmt.Sprintf("server error: %s", msg), SeverityError)

	default:
		if m := getMetrics(); m.unknownEvents != nil {
			m.unknownEvents.Add(s.ctx, 1)
		}
		// Audio-bearing streams arrive many times per second; keep them out
		// of the transcript log.
		if !strings.Contains(evt.Type, "audio") {
			c.emitLog(s, fmt.Sprintf("event: %s", evt.Type), SeverityEvent)
		}
	}
}

// scheduleOpening arms a one-shot timer that requests the opening model
// response. The timer fires at most once per session and is cancelled by
// teardown.
func (c *Client) scheduleOpening(s *session) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.openingSent || s.opening != nil {
		return
	}
	s.opening = time.AfterFunc(c.cfg.ResponseDelay, func() {
		s.timerMu.Lock()
		if s.openingSent {
			s.timerMu.Unlock()
			return
		}
		s.openingSent = true
		s.timerMu.Unlock()

		if s.closed.Load() {
			return
		}
		err := c.writeJSON(s, responseCreateEvent{
			Type: "response.create",
			Response: responseParams{
				Modalities:   []string{"text", "audio"},
				Instructions: c.cfg.OpeningInstructions,
			},
		})
		if err != nil && !s.closed.Load() {
			c.emitLog(s, fmt.Sprintf("opening response failed: %v", err), SeverityError)
		}
	})
}

// handleAudioDelta decodes one inbound audio chunk and hands it to the
// playback scheduler. Malformed chunks are logged and dropped; the stream
// continues with the next delta.
func (c *Client) handleAudioDelta(s *session, evt *serverEvent) {
	if evt.Delta == "" || s.closed.Load() {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(evt.Delta)
	if err != nil {
		c.emitLog(s, fmt.Sprintf("audio chunk dropped: %v", err), SeverityError)
		return
	}
	pcm, err := audio.DecodePCM16(raw)
	if err != nil {
		c.emitLog(s, fmt.Sprintf("audio chunk dropped: %v", err), SeverityError)
		return
	}
	if len(pcm) == 0 {
		return
	}

	if entry := s.sched.Enqueue(pcm); entry.Duration > 0 {
		s.queued.Add(1)
		if m := getMetrics(); m.playbackQueue != nil {
			m.playbackQueue.Add(s.ctx, 1)
		}
	}
	if m := getMetrics(); m.audioBytesIn != nil {
		m.audioBytesIn.Add(s.ctx, int64(len(raw)))
	}
	if c.cb.OnAudioOutput != nil && !s.closed.Load() {
		c.cb.OnAudioOutput(audio.Int16ToFloat32(pcm))
	}
}

// handleResponseDone scans the completed response's text content for a
// fenced JSON payload. Only the first text part carrying a fence is
// considered; a malformed fence produces one error log and no payload.
func (c *Client) handleResponseDone(s *session, evt *serverEvent) {
	c.emitLog(s, "response complete", SeverityEvent)
	if evt.Response == nil {
		return
	}
	for _, item := range evt.Response.Output {
		for _, part := range item.Content {
			if part.Type != "text" {
				continue
			}
			payload, found, err := ExtractPayload(part.Text)
			if !found {
				continue
			}
			if err != nil {
				c.emitLog(s, fmt.Sprintf("payload parse failed: %v", err), SeverityError)
				return
			}
			if m := getMetrics(); m.payloads != nil {
				m.payloads.Add(s.ctx, 1)
			}
			if c.cb.OnPayload != nil && !s.closed.Load() {
				c.cb.OnPayload(payload)
			}
			return
		}
	}
}

// ── Teardown ──────────────────────────────────────────────────────────────────

// teardown shuts the session down exactly once and transitions to final.
// It is reached from Disconnect, from a transport failure in readLoop and
// from a failed session.update during Connect.
func (c *Client) teardown(s *session, final State) {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.timerMu.Lock()
		if s.opening != nil {
			s.opening.Stop()
		}
		s.timerMu.Unlock()

		s.capture.Stop()
		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		_ = s.sched.Close()

		// Chunks cancelled by Close never report completion.
		if n := s.queued.Swap(0); n > 0 {
			if m := getMetrics(); m.playbackQueue != nil {
				m.playbackQueue.Add(context.Background(), -n)
			}
		}

		if m := getMetrics(); m.sessionDuration != nil {
			m.sessionDuration.Record(context.Background(), time.Since(s.started).Seconds())
		}
		slog.Debug("realtime session closed",
			"session_id", s.id,
			"frames_sent", s.frames.Load(),
			"duration", time.Since(s.started),
		)

		c.mu.Lock()
		if c.sess == s {
			c.sess = nil
		}
		c.state = final
		c.mu.Unlock()

		if c.cb.OnStatusChange != nil {
			c.cb.OnStatusChange(final)
		}
	})
}

// ── Callback plumbing ─────────────────────────────────────────────────────────

func (c *Client) emitStatus(st State) {
	if c.cb.OnStatusChange != nil {
		c.cb.OnStatusChange(st)
	}
}

// emitLog delivers a transcript line unless the session is already torn down.
func (c *Client) emitLog(s *session, msg string, sev Severity) {
	if s.closed.Load() {
		return
	}
	if c.cb.OnLog != nil {
		c.cb.OnLog(msg, sev)
	}
}
