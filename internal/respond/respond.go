// Package respond turns dispatcher results into spoken Hinglish. The common
// intents render through fast-path templates with no LLM in the loop; only
// payloads outside the template set consult the natural-language responder.
package respond

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"kirana-voice/internal/engine"
)

// fallbackTimeout bounds the LLM responder so a slow provider cannot stall
// the spoken turn.
const fallbackTimeout = 10 * time.Second

// apology is the line of last resort, spoken whenever rendering itself has
// nothing better to say.
const apology = "Kuch problem aaya. Phir se try karo."

// Fallback produces a natural-language reply for results the template set
// does not cover. internal/ai.Responder satisfies it; tests plug a stub.
type Fallback interface {
	Respond(ctx context.Context, utterance, intent string, result any) (string, error)
}

type Templater struct {
	fallback Fallback
	loc      *time.Location
	log      zerolog.Logger
}

// New builds a templater. fallback may be nil, in which case uncovered
// results get the generic apology.
func New(fallback Fallback, loc *time.Location, log zerolog.Logger) *Templater {
	if loc == nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	return &Templater{fallback: fallback, loc: loc, log: log}
}

// Render produces the spoken line for one dispatched result. It always
// returns something sayable.
func (t *Templater) Render(ctx context.Context, utterance string, res engine.Result) string {
	if !res.Success {
		return t.renderError(res)
	}
	if line, okl := t.renderSuccess(res); okl {
		return line
	}
	return t.renderFallback(ctx, utterance, res)
}

func (t *Templater) renderFallback(ctx context.Context, utterance string, res engine.Result) string {
	if t.fallback == nil {
		if res.Message != "" {
			return res.Message
		}
		return apology
	}
	ctx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()
	line, err := t.fallback.Respond(ctx, utterance, res.Intent, res.Data)
	if err != nil || line == "" {
		t.log.Warn().Err(err).Str("intent", res.Intent).Msg("responder fallback failed")
		if res.Message != "" {
			return res.Message
		}
		return apology
	}
	return line
}
