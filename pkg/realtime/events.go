package realtime

// Wire event types for the OpenAI Realtime protocol. Events travel as JSON
// text frames over the WebSocket; binary audio is base64-encoded inside them.

// ── Outgoing ──────────────────────────────────────────────────────────────────

type sessionUpdateEvent struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Modalities        []string       `json:"modalities,omitempty"`
	Instructions      string         `json:"instructions,omitempty"`
	Voice             string         `json:"voice,omitempty"`
	InputAudioFormat  string         `json:"input_audio_format"`
	OutputAudioFormat string         `json:"output_audio_format"`
	TurnDetection     *turnDetection `json:"turn_detection,omitempty"`
}

// turnDetection configures server-side voice activity detection.
type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type appendAudioEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64-encoded PCM16 @ 24kHz mono
}

type responseCreateEvent struct {
	Type     string         `json:"type"`
	Response responseParams `json:"response"`
}

type responseParams struct {
	Modalities   []string `json:"modalities,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

// ── Incoming ──────────────────────────────────────────────────────────────────

// serverEvent is the union of all inbound event shapes; only the fields
// relevant to the event's Type are populated.
type serverEvent struct {
	Type string `json:"type"`

	// response.audio.delta
	Delta string `json:"delta,omitempty"`

	// response.done
	Response *responsePayload `json:"response,omitempty"`

	// error event: {"type":"error","error":{"type":"...","code":"...","message":"..."}}
	Error *serverErrorDetail `json:"error,omitempty"`
}

type responsePayload struct {
	Output []outputItem `json:"output"`
}

type outputItem struct {
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type serverErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
