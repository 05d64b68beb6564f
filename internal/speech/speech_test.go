package speech

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewTranscriberSelectsProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeepgramAPIKey = "dg"
	tr, err := NewTranscriber(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTranscriber: %v", err)
	}
	if _, ok := tr.(*Deepgram); !ok {
		t.Errorf("provider = %T, want *Deepgram", tr)
	}

	cfg.STTProvider = "elevenlabs"
	cfg.ElevenLabsAPIKey = "xi"
	tr, err = NewTranscriber(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTranscriber: %v", err)
	}
	if _, ok := tr.(*ElevenLabsSTT); !ok {
		t.Errorf("provider = %T, want *ElevenLabsSTT", tr)
	}
}

func TestNewTranscriberRequiresKey(t *testing.T) {
	if _, err := NewTranscriber(DefaultConfig(), zerolog.Nop()); err == nil {
		t.Fatal("missing deepgram key must error")
	}
	if _, err := NewTranscriber(Config{STTProvider: "whisper"}, zerolog.Nop()); err == nil {
		t.Fatal("unknown provider must error")
	}
}

func TestNewSynthesizerSelectsProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ElevenLabsAPIKey = "xi"
	sy, err := NewSynthesizer(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	if _, ok := sy.(*ElevenLabsTTS); !ok {
		t.Errorf("provider = %T, want *ElevenLabsTTS", sy)
	}

	cfg.TTSProvider = "openai"
	cfg.OpenAIAPIKey = "sk"
	sy, err = NewSynthesizer(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	if _, ok := sy.(*OpenAITTS); !ok {
		t.Errorf("provider = %T, want *OpenAITTS", sy)
	}
}
