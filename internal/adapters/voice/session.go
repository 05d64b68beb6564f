package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"kirana-voice/internal/ai"
	"kirana-voice/internal/engine"
	"kirana-voice/internal/speech"
)

// session is one websocket connection. The read loop is the only writer of
// the capture state; every outbound frame goes through the send channel
// because gorilla connections are not concurrent-write safe.
type session struct {
	id   string
	c    *Controller
	conn *websocket.Conn
	role string
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	send   chan any
	sem    chan struct{}

	// batch capture between voice:start and voice:stop
	capturing bool
	audio     bytes.Buffer

	// live STT stream, when the provider supports it
	live speech.Stream

	// archival capture between recording:start and recording:stop
	recording bool
	recorded  bytes.Buffer
}

// taskRun buffers one task's event frames so concurrent tasks can execute
// out of order while the client still sees events in spoken order.
type taskRun struct {
	id     string
	task   ai.Task
	frames chan any
}

func newSession(c *Controller, conn *websocket.Conn, role string) *session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &session{
		id:     id,
		c:      c,
		conn:   conn,
		role:   role,
		log:    c.log.With().Str("session_id", id).Logger(),
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan any, 32),
		sem:    make(chan struct{}, c.deps.Workers),
	}
}

func (s *session) run() {
	defer s.conn.Close()
	defer s.cancel()

	s.log.Info().Str("remote", s.conn.RemoteAddr().String()).Msg("voice session opened")

	go s.writer()

	s.emit(helloFrame{
		Type:         frameVoiceStart,
		SessionID:    s.id,
		STTAvailable: s.c.deps.STT != nil,
		TTSAvailable: s.c.deps.TTS != nil,
		STTProvider:  s.c.deps.STTProvider,
		TTSProvider:  s.c.deps.TTSProvider,
	})

	s.conn.SetReadDeadline(time.Now().Add(readDeadline))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Error().Err(err).Msg("websocket read error")
			} else {
				s.log.Info().Msg("voice session closed")
			}
			if s.live != nil {
				s.live.Close()
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(readDeadline))

		if msgType == websocket.BinaryMessage {
			s.handleAudio(data)
			continue
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.emit(errorFrame{Type: frameError, Message: "unparseable frame", Category: "protocol"})
			continue
		}
		switch frame.Type {
		case frameVoiceStart:
			s.startCapture()
		case frameVoiceStop:
			s.stopCapture()
		case frameVoiceFinal:
			text := strings.TrimSpace(frame.Text)
			if text == "" {
				s.emit(errorFrame{Type: frameError, Message: "voice:final needs text", Category: "protocol"})
				continue
			}
			s.emit(transcriptFrame{Type: frameTranscript, Text: text, IsFinal: true})
			go s.dispatch(text)
		case frameRecStart:
			s.recording = true
			s.recorded.Reset()
		case frameRecStop:
			s.recording = false
			s.archiveRecording()
		default:
			s.emit(errorFrame{Type: frameError, Message: "unknown frame type: " + frame.Type, Category: "protocol"})
		}
	}
}

// writer owns all socket writes: frames from the send channel plus the
// keepalive pings that feed the read deadline.
func (s *session) writer() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(frame); err != nil {
				s.log.Error().Err(err).Msg("websocket write error")
				s.cancel()
				return
			}
		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				s.cancel()
				return
			}
		}
	}
}

// emit queues a frame; frames produced after the connection closed are
// dropped.
func (s *session) emit(frame any) {
	select {
	case <-s.ctx.Done():
	case s.send <- frame:
	}
}

// ── Audio capture ────────────────────────────────────────────────────────────

func (s *session) handleAudio(data []byte) {
	if s.live != nil {
		if err := s.live.Send(data); err != nil {
			s.log.Error().Err(err).Msg("live stt send failed")
		}
	} else if s.capturing && s.audio.Len()+len(data) <= maxUtteranceBytes {
		s.audio.Write(data)
	}
	if s.recording && s.recorded.Len()+len(data) <= 2*maxUtteranceBytes {
		s.recorded.Write(data)
	}
}

func (s *session) startCapture() {
	if s.c.deps.STT == nil {
		s.emit(errorFrame{Type: frameError, Message: "speech-to-text is not configured", Category: "stt"})
		return
	}
	if lt, ok := s.c.deps.STT.(speech.LiveTranscriber); ok {
		stream, err := lt.Stream(s.ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("live stt unavailable, falling back to batch")
		} else {
			s.live = stream
			go s.collectTranscripts(stream)
			return
		}
	}
	s.capturing = true
	s.audio.Reset()
}

func (s *session) stopCapture() {
	if s.live != nil {
		if err := s.live.CloseSend(); err != nil {
			s.log.Error().Err(err).Msg("live stt close failed")
		}
		s.live = nil
		return
	}
	if !s.capturing {
		return
	}
	s.capturing = false
	pcm := make([]byte, s.audio.Len())
	copy(pcm, s.audio.Bytes())
	s.audio.Reset()
	if len(pcm) == 0 {
		return
	}
	go s.transcribeAndDispatch(pcm)
}

func (s *session) collectTranscripts(stream speech.Stream) {
	var finals []string
	for tr := range stream.Transcripts() {
		if tr.Text != "" {
			s.emit(transcriptFrame{Type: frameTranscript, Text: tr.Text, IsFinal: tr.IsFinal})
		}
		if tr.IsFinal && tr.Text != "" {
			finals = append(finals, tr.Text)
		}
	}
	if err := stream.Err(); err != nil {
		s.log.Error().Err(err).Msg("live stt stream failed")
		s.emit(errorFrame{Type: frameError, Message: "Kuch problem aaya. Phir se try karo.", Category: "stt"})
		return
	}
	if full := strings.Join(finals, " "); full != "" {
		s.dispatch(full)
	}
}

func (s *session) transcribeAndDispatch(pcm []byte) {
	ctx, cancel := context.WithTimeout(s.ctx, sttTimeout)
	defer cancel()
	res, err := s.c.deps.STT.Transcribe(ctx, pcm)
	if err != nil {
		s.log.Error().Err(err).Msg("transcription failed")
		s.emit(errorFrame{Type: frameError, Message: "Kuch problem aaya. Phir se try karo.", Category: "stt"})
		return
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return
	}
	s.emit(transcriptFrame{Type: frameTranscript, Text: text, IsFinal: true})
	s.dispatch(text)
}

func (s *session) archiveRecording() {
	if s.c.deps.Archive == nil || s.recorded.Len() == 0 {
		return
	}
	data := make([]byte, s.recorded.Len())
	copy(data, s.recorded.Bytes())
	s.recorded.Reset()

	key := fmt.Sprintf("audio/%s/%d.pcm", s.id, time.Now().UnixMilli())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.c.deps.Archive.Put(ctx, key, data, "application/octet-stream"); err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("audio archival failed")
			return
		}
		s.log.Info().Str("key", key).Int("bytes", len(data)).Msg("audio archived")
	}()
}

// ── Task pipeline ────────────────────────────────────────────────────────────

// dispatch classifies one utterance and runs its tasks. Execution is
// concurrent on the session's worker pool; event emission follows spoken
// order by draining each task's frame buffer in turn.
func (s *session) dispatch(utterance string) {
	prompt, err := s.c.deps.Conv.FormatContextPrompt(s.ctx, s.id, 6)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load conversation context")
	}

	cctx, cancel := context.WithTimeout(s.ctx, classifyTimeout)
	cls, err := s.c.deps.Classifier.Classify(cctx, utterance, prompt)
	cancel()

	var tasks []ai.Task
	if err != nil {
		s.log.Error().Err(err).Msg("classification failed")
		tasks = []ai.Task{{Intent: ai.IntentUnknown, Utterance: utterance}}
	} else {
		tasks = cls.Tasks
	}

	runs := make([]*taskRun, len(tasks))
	for i, task := range tasks {
		runs[i] = &taskRun{id: uuid.NewString(), task: task, frames: make(chan any, 8)}
		s.emit(taskFrame{Type: frameTaskQueued, TaskID: runs[i].id, Intent: task.Intent})
	}
	for _, run := range runs {
		go s.runTask(run, utterance)
	}
	for _, run := range runs {
		for frame := range run.frames {
			s.emit(frame)
		}
	}
}

func (s *session) runTask(run *taskRun, fullUtterance string) {
	defer close(run.frames)

	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		return
	}
	defer func() { <-s.sem }()

	utterance := strings.TrimSpace(run.task.Utterance)
	if utterance == "" {
		utterance = fullUtterance
	}

	run.frames <- taskFrame{Type: frameTaskStarted, TaskID: run.id, Intent: run.task.Intent}
	run.frames <- intentFrame{
		Type:       frameIntent,
		TaskID:     run.id,
		Intent:     run.task.Intent,
		Entities:   run.task.Entities.AsMap(),
		Confidence: run.task.Confidence,
	}

	if _, err := s.c.deps.Conv.AppendUserMessage(s.ctx, s.id, utterance, run.task.Intent, run.task.Entities.AsMap()); err != nil {
		s.log.Error().Err(err).Msg("failed to record user turn")
	}

	res := s.c.deps.Engine.Execute(s.ctx, engine.Request{
		SessionID:    s.id,
		Intent:       run.task.Intent,
		Utterance:    utterance,
		Entities:     run.task.Entities,
		OperatorRole: s.role,
	})

	text := s.c.deps.Renderer.Render(s.ctx, utterance, res)
	if err := s.c.deps.Conv.AppendAssistantMessage(s.ctx, s.id, text); err != nil {
		s.log.Error().Err(err).Msg("failed to record assistant turn")
	}
	run.frames <- responseFrame{Type: frameResponse, TaskID: run.id, Text: text, Result: res}

	if s.c.deps.TTS != nil && text != "" {
		tctx, cancel := context.WithTimeout(s.ctx, ttsTimeout)
		audio, err := s.c.deps.TTS.Synthesize(tctx, text)
		cancel()
		if err != nil {
			s.log.Error().Err(err).Msg("tts synthesis failed")
		} else {
			run.frames <- ttsFrame{
				Type:   frameTTSStream,
				TaskID: run.id,
				Audio:  base64.StdEncoding.EncodeToString(audio),
				Format: s.c.deps.TTS.Format(),
			}
		}
	}

	if res.Error == engine.CodeInternal {
		run.frames <- taskFrame{Type: frameTaskFailed, TaskID: run.id, Intent: run.task.Intent, Error: res.Error}
		return
	}
	run.frames <- taskFrame{Type: frameTaskCompleted, TaskID: run.id, Intent: run.task.Intent}
}
