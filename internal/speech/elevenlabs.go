package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	elevenLabsBase = "https://api.elevenlabs.io"

	elevenSTTModel = "scribe_v1"
	elevenTTSModel = "eleven_multilingual_v2"
)

// ElevenLabsConfig holds the key, voice and audio parameters shared by
// the ElevenLabs STT and TTS clients.
type ElevenLabsConfig struct {
	APIKey     string
	VoiceID    string
	Language   string
	SampleRate int
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

func (c *ElevenLabsConfig) withDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = elevenLabsBase
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Language == "" {
		c.Language = "hi"
	}
}

// ElevenLabsSTT implements Transcriber over the Scribe batch API.
type ElevenLabsSTT struct {
	cfg    ElevenLabsConfig
	client *http.Client
	log    zerolog.Logger
}

func NewElevenLabsSTT(cfg ElevenLabsConfig, log zerolog.Logger) *ElevenLabsSTT {
	cfg.withDefaults()
	return &ElevenLabsSTT{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		log:    log.With().Str("component", "elevenlabs-stt").Logger(),
	}
}

type elevenSTTResponse struct {
	Text                string  `json:"text"`
	LanguageCode        string  `json:"language_code"`
	LanguageProbability float64 `json:"language_probability"`
}

// Transcribe uploads the utterance as WAV and returns the transcript.
func (s *ElevenLabsSTT) Transcribe(ctx context.Context, pcm []byte) (Result, error) {
	if len(pcm) == 0 {
		return Result{}, fmt.Errorf("no audio provided")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wavFromPCM16(pcm, s.cfg.SampleRate)); err != nil {
		return Result{}, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.WriteField("model_id", elevenSTTModel); err != nil {
		return Result{}, fmt.Errorf("failed to write model field: %w", err)
	}
	if s.cfg.Language != "" && s.cfg.Language != "auto" {
		if err := writer.WriteField("language_code", s.cfg.Language); err != nil {
			return Result{}, fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/v1/speech-to-text", &buf)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("elevenlabs API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp elevenSTTResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return Result{}, fmt.Errorf("failed to parse response: %w", err)
	}
	s.log.Debug().Dur("took", time.Since(start)).Int("text_len", len(apiResp.Text)).Msg("transcription complete")

	return Result{
		Text:       apiResp.Text,
		Language:   apiResp.LanguageCode,
		Confidence: apiResp.LanguageProbability,
	}, nil
}

func (s *ElevenLabsSTT) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// ElevenLabsTTS implements Synthesizer over the text-to-speech API.
type ElevenLabsTTS struct {
	cfg    ElevenLabsConfig
	client *http.Client
	log    zerolog.Logger
}

func NewElevenLabsTTS(cfg ElevenLabsConfig, log zerolog.Logger) *ElevenLabsTTS {
	cfg.withDefaults()
	if cfg.VoiceID == "" {
		cfg.VoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	return &ElevenLabsTTS{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		log:    log.With().Str("component", "elevenlabs-tts").Logger(),
	}
}

type elevenTTSRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize returns the reply as MP3 bytes.
func (s *ElevenLabsTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("no text provided")
	}
	payload, err := json.Marshal(elevenTTSRequest{Text: text, ModelID: elevenTTSModel})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=mp3_22050_32", s.cfg.BaseURL, s.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (s *ElevenLabsTTS) Format() string { return "mp3" }

func (s *ElevenLabsTTS) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// wavFromPCM16 wraps raw little-endian PCM16 mono in a WAV container.
func wavFromPCM16(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	byteRate := uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := uint32(len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, numChannels)
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, bitsPerSample)

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(pcm)

	return buf.Bytes()
}
