// Package voice is the websocket session controller: audio frames in,
// transcripts, intents, spoken responses and TTS audio out. Each
// connection is one conversation session; each utterance may fan out into
// several tasks executed on a bounded worker pool, with events emitted in
// task order.
package voice

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"kirana-voice/internal/adapters/web"
	"kirana-voice/internal/ai"
	"kirana-voice/internal/conversation"
	"kirana-voice/internal/engine"
	"kirana-voice/internal/metrics"
	"kirana-voice/internal/speech"
)

const (
	readDeadline    = 120 * time.Second
	pingInterval    = 30 * time.Second
	writeTimeout    = 10 * time.Second
	classifyTimeout = 15 * time.Second
	sttTimeout      = 30 * time.Second
	ttsTimeout      = 20 * time.Second

	// maxUtteranceBytes caps buffered audio per capture: ~5 minutes of
	// 16 kHz PCM16.
	maxUtteranceBytes = 10 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		// The upgrade already passed bearer-token auth; origin checks add
		// nothing for a token-authenticated socket.
		return true
	},
}

// Executor dispatches one classified task; *engine.Engine satisfies it.
type Executor interface {
	Execute(ctx context.Context, req engine.Request) engine.Result
}

// Renderer phrases a result for speech; *respond.Templater satisfies it.
type Renderer interface {
	Render(ctx context.Context, utterance string, res engine.Result) string
}

// ConversationLog is the slice of conversation.Store the controller needs.
type ConversationLog interface {
	FormatContextPrompt(ctx context.Context, sessionID string, n int) (string, error)
	AppendUserMessage(ctx context.Context, sessionID, text, intent string, entities map[string]any) (*conversation.SessionMemory, error)
	AppendAssistantMessage(ctx context.Context, sessionID, text string) error
}

// AudioStore archives raw utterance audio; *objstore.Store satisfies it.
type AudioStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Deps wires the controller. STT, TTS and Archive may be nil: the
// connection still works in text mode (voice:final frames).
type Deps struct {
	Engine     Executor
	Classifier ai.Classifier
	Renderer   Renderer
	Conv       ConversationLog
	STT        speech.Transcriber
	TTS        speech.Synthesizer
	Archive    AudioStore

	STTProvider string
	TTSProvider string
	// Workers bounds concurrent task execution per connection.
	Workers int
	Log     zerolog.Logger
}

// Controller upgrades connections and runs one session per connection.
type Controller struct {
	deps Deps
	log  zerolog.Logger
}

func NewController(deps Deps) *Controller {
	if deps.Workers <= 0 {
		deps.Workers = 4
	}
	return &Controller{
		deps: deps,
		log:  deps.Log.With().Str("component", "voice").Logger(),
	}
}

func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	role := web.RoleFromContext(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	metrics.VoiceSessions.Inc()
	newSession(c, conn, role).run()
}
