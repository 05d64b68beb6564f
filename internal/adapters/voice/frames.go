package voice

// Client frame kinds.
const (
	frameVoiceStart = "voice:start"
	frameVoiceStop  = "voice:stop"
	frameVoiceFinal = "voice:final"
	frameRecStart   = "recording:start"
	frameRecStop    = "recording:stop"
)

// Server frame kinds.
const (
	frameTranscript    = "voice:transcript"
	frameIntent        = "voice:intent"
	frameResponse      = "voice:response"
	frameTTSStream     = "voice:tts-stream"
	frameTaskQueued    = "task:queued"
	frameTaskStarted   = "task:started"
	frameTaskCompleted = "task:completed"
	frameTaskFailed    = "task:failed"
	frameError         = "error"
)

// clientFrame is every JSON frame the browser sends. Binary frames carry
// raw audio and bypass this.
type clientFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// helloFrame greets a new connection with the session id and what the
// configured providers can do.
type helloFrame struct {
	Type         string `json:"type"`
	SessionID    string `json:"sessionId"`
	STTAvailable bool   `json:"sttAvailable"`
	TTSAvailable bool   `json:"ttsAvailable"`
	STTProvider  string `json:"sttProvider,omitempty"`
	TTSProvider  string `json:"ttsProvider,omitempty"`
}

type transcriptFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

type intentFrame struct {
	Type       string         `json:"type"`
	TaskID     string         `json:"taskId"`
	Intent     string         `json:"intent"`
	Entities   map[string]any `json:"entities"`
	Confidence float64        `json:"confidence"`
}

type responseFrame struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
	Text   string `json:"text"`
	Result any    `json:"result"`
}

type ttsFrame struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
	Audio  string `json:"audio"` // base64
	Format string `json:"format"`
}

type taskFrame struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
	Intent string `json:"intent,omitempty"`
	Error  string `json:"error,omitempty"`
}

type errorFrame struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Category string `json:"category"`
}
