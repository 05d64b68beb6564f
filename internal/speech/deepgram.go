package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	deepgramHost = "wss://api.deepgram.com"

	// Deepgram drops idle connections after ~10s without audio.
	deepgramKeepAlive = 5 * time.Second
)

// DeepgramConfig holds Deepgram-specific configuration.
type DeepgramConfig struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	// Host overrides the API endpoint, for tests.
	Host string
}

// Deepgram implements LiveTranscriber over the Deepgram streaming API.
type Deepgram struct {
	cfg DeepgramConfig
	log zerolog.Logger
}

func NewDeepgram(cfg DeepgramConfig, log zerolog.Logger) *Deepgram {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "hi"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Host == "" {
		cfg.Host = deepgramHost
	}
	return &Deepgram{cfg: cfg, log: log.With().Str("component", "deepgram").Logger()}
}

func (d *Deepgram) streamURL() string {
	q := url.Values{}
	q.Set("model", d.cfg.Model)
	q.Set("language", d.cfg.Language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.cfg.SampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", "true")
	q.Set("smart_format", "true")
	return d.cfg.Host + "/v1/listen?" + q.Encode()
}

// Stream opens a live transcription session.
func (d *Deepgram) Stream(ctx context.Context) (Stream, error) {
	header := http.Header{"Authorization": {"Token " + d.cfg.APIKey}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.streamURL(), header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to deepgram: %w", err)
	}

	s := &deepgramStream{
		conn:        conn,
		transcripts: make(chan Transcript, 16),
		done:        make(chan struct{}),
		log:         d.log,
	}
	go s.readLoop()
	go s.keepAlive()
	return s, nil
}

// Transcribe runs the whole utterance through one streaming session and
// joins the final transcripts.
func (d *Deepgram) Transcribe(ctx context.Context, pcm []byte) (Result, error) {
	if len(pcm) == 0 {
		return Result{}, fmt.Errorf("no audio provided")
	}
	stream, err := d.Stream(ctx)
	if err != nil {
		return Result{}, err
	}
	defer stream.Close()

	// ~250ms chunks at 16 kHz PCM16.
	const chunk = 8000
	for off := 0; off < len(pcm); off += chunk {
		end := off + chunk
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := stream.Send(pcm[off:end]); err != nil {
			return Result{}, err
		}
	}
	if err := stream.CloseSend(); err != nil {
		return Result{}, err
	}

	var parts []string
	var confidence float64
	var finals int
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case tr, ok := <-stream.Transcripts():
			if !ok {
				if err := stream.Err(); err != nil {
					return Result{}, err
				}
				text := strings.Join(parts, " ")
				if finals > 0 {
					confidence /= float64(finals)
				}
				return Result{Text: text, Language: d.cfg.Language, Confidence: confidence}, nil
			}
			if tr.IsFinal && tr.Text != "" {
				parts = append(parts, tr.Text)
				confidence += tr.Confidence
				finals++
			}
		}
	}
}

func (d *Deepgram) Close() error { return nil }

type deepgramStream struct {
	conn        *websocket.Conn
	transcripts chan Transcript
	done        chan struct{}
	err         error
	log         zerolog.Logger
}

// deepgramMessage is the subset of the Results payload we read.
type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *deepgramStream) readLoop() {
	defer close(s.transcripts)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// closed by us
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					s.err = err
				}
			}
			return
		}
		var msg deepgramMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn().Err(err).Msg("unparseable deepgram message")
			continue
		}
		if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
			continue
		}
		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" && !msg.IsFinal {
			continue
		}
		s.transcripts <- Transcript{
			Text:       alt.Transcript,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
		}
	}
}

func (s *deepgramStream) keepAlive() {
	ticker := time.NewTicker(deepgramKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`)); err != nil {
				return
			}
		}
	}
}

func (s *deepgramStream) Send(pcm []byte) error {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

// CloseSend tells Deepgram the utterance is over; the server flushes the
// remaining results and closes the connection, which ends Transcripts.
func (s *deepgramStream) CloseSend() error {
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

func (s *deepgramStream) Transcripts() <-chan Transcript { return s.transcripts }

func (s *deepgramStream) Err() error { return s.err }

func (s *deepgramStream) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.conn.Close()
}
