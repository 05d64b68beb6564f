package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAITTS implements Synthesizer over the OpenAI speech endpoint. It
// shares credentials with the classifier, so shops without an ElevenLabs
// key still get spoken replies.
type OpenAITTS struct {
	client *openai.Client
	voice  openai.AudioSpeechNewParamsVoice
}

func NewOpenAITTS(apiKey, baseURL, voice string) *OpenAITTS {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if voice == "" {
		voice = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}
	client := openai.NewClient(opts...)
	return &OpenAITTS{client: &client, voice: openai.AudioSpeechNewParamsVoice(voice)}
}

func (s *OpenAITTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("no text provided")
	}
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelGPT4oMiniTTS,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech error: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return audio, nil
}

func (s *OpenAITTS) Format() string { return "mp3" }

func (s *OpenAITTS) Close() error { return nil }
