package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kirana-voice/internal/core"
)

// Session context keys shared with the voice adapter.
const (
	sessionLanguageKey  = "language"
	sessionRecordingKey = "recording"
)

func (e *Engine) checkStock(ctx context.Context, req Request) Result {
	name := strings.TrimSpace(req.Entities.Product)
	if name == "" {
		return fail(req.Intent, CodeValidation, "Kis cheez ka stock dekhna hai?")
	}
	prod, err := e.deps.Products.FindProduct(ctx, name)
	if errors.Is(err, core.ErrProductNotFound) {
		return fail(req.Intent, CodeProductNotFound, fmt.Sprintf("%s catalogue mein nahi mila.", name))
	}
	if err != nil {
		return e.internalError(req, "find product", err)
	}
	return ok(req.Intent, StockData{Product: prod})
}

func (e *Engine) dailySummary(ctx context.Context, req Request) Result {
	summary, err := e.deps.Summary.DailySummary(ctx, time.Now().In(e.deps.Location))
	if err != nil {
		return e.internalError(req, "daily summary", err)
	}
	return ok(req.Intent, SummaryData{Summary: summary})
}

func (e *Engine) switchLanguage(ctx context.Context, req Request) Result {
	lang := strings.TrimSpace(req.Entities.Language)
	if lang == "" {
		lang = "hi"
	}
	if err := e.deps.Conv.SetSessionContext(ctx, req.SessionID, sessionLanguageKey, lang); err != nil {
		return e.internalError(req, "switch language", err)
	}
	return ok(req.Intent, LanguageData{Language: lang})
}

func (e *Engine) setRecording(ctx context.Context, req Request, on bool) Result {
	if err := e.deps.Conv.SetSessionContext(ctx, req.SessionID, sessionRecordingKey, strconv.FormatBool(on)); err != nil {
		return e.internalError(req, "toggle recording", err)
	}
	return ok(req.Intent, RecordingData{Recording: on})
}
