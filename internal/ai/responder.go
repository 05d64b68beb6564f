package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// Responder phrases a dispatch result in Hinglish when the templater has
// no fast-path pattern for the intent. The output goes straight to TTS,
// so it must be one or two plain spoken sentences.
type Responder interface {
	Respond(ctx context.Context, utterance, intent string, result any) (string, error)
}

type responder struct {
	client   *openai.Client
	model    shared.ResponsesModel
	shopName string
}

func NewResponder(apiKey, baseURL, model, shopName string) Responder {
	return &responder{
		client:   newClient(apiKey, baseURL),
		model:    shared.ResponsesModel(model),
		shopName: shopName,
	}
}

func (r *responder) Respond(ctx context.Context, utterance, intent string, result any) (string, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	prompt := fmt.Sprintf(`You are the voice assistant of %s, a kirana shop. The shopkeeper said
something, the system executed it, and you must speak the outcome back.

Rules:
1. Reply in natural Hinglish (Hindi in Roman script with everyday English words).
2. One or two short sentences. The reply is spoken aloud, so no emoji, no markdown, no lists.
3. Say amounts as rupees ("262 rupaye 50 paise" or "₹262.50" is fine).
4. Read phone numbers digit by digit.
5. If the result says success=false, apologise briefly and say what is needed next.

Shopkeeper said: %s
Intent: %s
Result JSON: %s`, r.shopName, utterance, intent, string(resultJSON))

	resp, err := r.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: r.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return "", fmt.Errorf("empty response content")
	}
	return content, nil
}
