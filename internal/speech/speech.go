// Package speech wraps the hosted STT and TTS providers behind small
// interfaces so the voice channel never talks to a vendor API directly.
// Audio in is 16 kHz mono little-endian PCM16; audio out is MP3.
package speech

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Result is a finished transcription of one utterance.
type Result struct {
	Text       string
	Language   string
	Confidence float64
}

// Transcript is one streaming update. Interim transcripts may be revised;
// a final transcript is stable and feeds the classifier.
type Transcript struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

// Transcriber converts a complete utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (Result, error)
	Close() error
}

// LiveTranscriber additionally streams audio as it arrives, emitting
// interim transcripts while the speaker is still talking.
type LiveTranscriber interface {
	Transcriber
	Stream(ctx context.Context) (Stream, error)
}

// Stream is one live transcription session. Send pushes audio frames,
// CloseSend signals end of speech, and Transcripts closes once the
// provider has flushed its last result.
type Stream interface {
	Send(pcm []byte) error
	Transcripts() <-chan Transcript
	CloseSend() error
	Close() error
	Err() error
}

// Synthesizer converts reply text to spoken audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Format() string
	Close() error
}

// Config selects and keys the providers.
type Config struct {
	STTProvider      string // deepgram, elevenlabs
	TTSProvider      string // elevenlabs, openai
	DeepgramAPIKey   string
	ElevenLabsAPIKey string
	ElevenLabsVoice  string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIVoice      string
	Language         string
	SampleRate       int
}

// DefaultConfig returns the provider defaults: Deepgram in, ElevenLabs
// out, Hindi, 16 kHz.
func DefaultConfig() Config {
	return Config{
		STTProvider: "deepgram",
		TTSProvider: "elevenlabs",
		Language:    "hi",
		SampleRate:  16000,
	}
}

// NewTranscriber builds the configured STT provider.
func NewTranscriber(cfg Config, log zerolog.Logger) (Transcriber, error) {
	if cfg.Language == "" {
		cfg.Language = "hi"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	switch cfg.STTProvider {
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY is required for the deepgram provider")
		}
		return NewDeepgram(DeepgramConfig{
			APIKey:     cfg.DeepgramAPIKey,
			Language:   cfg.Language,
			SampleRate: cfg.SampleRate,
		}, log), nil
	case "elevenlabs":
		if cfg.ElevenLabsAPIKey == "" {
			return nil, fmt.Errorf("ELEVENLABS_API_KEY is required for the elevenlabs provider")
		}
		return NewElevenLabsSTT(ElevenLabsConfig{
			APIKey:     cfg.ElevenLabsAPIKey,
			Language:   cfg.Language,
			SampleRate: cfg.SampleRate,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.STTProvider)
	}
}

// NewSynthesizer builds the configured TTS provider.
func NewSynthesizer(cfg Config, log zerolog.Logger) (Synthesizer, error) {
	switch cfg.TTSProvider {
	case "elevenlabs":
		if cfg.ElevenLabsAPIKey == "" {
			return nil, fmt.Errorf("ELEVENLABS_API_KEY is required for the elevenlabs provider")
		}
		return NewElevenLabsTTS(ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.ElevenLabsVoice,
		}, log), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai TTS provider")
		}
		return NewOpenAITTS(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIVoice), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", cfg.TTSProvider)
	}
}
