// Package engine resolves spoken referents and executes classified intents
// against the ledger, the catalogue and the conversation state. It is the
// only layer that composes the stores; every adapter (voice, REPL, HTTP
// chat) hands it a classified task and renders the tagged Result.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kirana-voice/internal/ai"
	"kirana-voice/internal/conversation"
	"kirana-voice/internal/core"
	"kirana-voice/internal/metrics"
)

// Mailer sends the engine's outbound emails. The SMTP implementation lives
// in internal/notify; tests substitute a recorder.
type Mailer interface {
	SendInvoice(ctx context.Context, to string, inv *core.Invoice) error
	SendDeleteOTP(ctx context.Context, to, customerName, code string) error
}

// WhatsAppSender delivers a text plus optional document link to a phone
// number via the WhatsApp Cloud API.
type WhatsAppSender interface {
	SendText(ctx context.Context, phone, text string) error
	SendDocument(ctx context.Context, phone, url, caption string) error
}

// ArtifactStore renders and uploads the invoice PDF after a confirm. It is
// best-effort: failures are logged and the invoice keeps empty PDF fields.
type ArtifactStore interface {
	StoreInvoicePDF(ctx context.Context, inv *core.Invoice) (objectKey, url string, err error)
}

// Deps are the injected collaborators. Every field is an interface so each
// executor is testable against stubs.
type Deps struct {
	Customers core.CustomerService
	Products  core.ProductService
	Invoices  core.InvoiceService
	Ledger    core.LedgerService
	Reminders core.ReminderService
	Summary   core.SummaryService
	Queue     core.ReminderQueue
	Conv      conversation.Store
	Mailer    Mailer
	WhatsApp  WhatsAppSender
	Artifacts ArtifactStore

	AdminEmail string
	Location   *time.Location
	Log        zerolog.Logger
}

// Request is one dispatchable task: a classified intent plus the session it
// belongs to and the operator who spoke it.
type Request struct {
	SessionID    string
	Intent       string
	Utterance    string
	Entities     ai.Entities
	OperatorRole string
}

type Engine struct {
	deps     Deps
	log      zerolog.Logger
	sessions *sessionCache
}

func New(deps Deps) *Engine {
	if deps.Location == nil {
		deps.Location = time.FixedZone("IST", 5*3600+1800)
	}
	return &Engine{
		deps:     deps,
		log:      deps.Log,
		sessions: newSessionCache(),
	}
}

// Execute routes one request to its executor. It never panics outward and
// never returns a raw storage error: everything becomes a tagged Result.
func (e *Engine) Execute(ctx context.Context, req Request) (res Result) {
	start := time.Now()
	log := e.log.With().
		Str("intent", req.Intent).
		Str("conversation_id", req.SessionID).
		Interface("entities", req.Entities.AsMap()).
		Logger()

	defer func() {
		if rv := recover(); rv != nil {
			log.Error().Interface("panic", rv).Msg("executor panicked")
			res = fail(req.Intent, CodeInternal, "Kuch problem aaya. Phir se try karo.")
		}
		status := "success"
		if !res.Success {
			status = "error"
		}
		metrics.BusinessOps.WithLabelValues(req.Intent, status).Inc()
		log.Info().
			Bool("success", res.Success).
			Str("error", res.Error).
			Dur("duration", time.Since(start)).
			Msg("intent dispatched")
	}()

	switch req.Intent {
	case ai.IntentTotalPending:
		return e.totalPending(ctx, req)
	case ai.IntentListBalances:
		return e.listBalances(ctx, req)
	case ai.IntentCheckBalance:
		return e.checkBalance(ctx, req)
	case ai.IntentCreateInvoice:
		return e.createInvoice(ctx, req)
	case ai.IntentConfirmInvoice:
		return e.confirmInvoice(ctx, req)
	case ai.IntentShowPendingInvoice:
		return e.showPendingInvoice(ctx, req)
	case ai.IntentToggleGST:
		return e.toggleGST(ctx, req)
	case ai.IntentProvideEmail:
		return e.provideEmail(ctx, req)
	case ai.IntentSendInvoice:
		return e.sendInvoice(ctx, req)
	case ai.IntentCreateReminder:
		return e.createReminder(ctx, req)
	case ai.IntentRecordPayment:
		return e.recordPayment(ctx, req)
	case ai.IntentAddCredit:
		return e.addCredit(ctx, req)
	case ai.IntentCheckStock:
		return e.checkStock(ctx, req)
	case ai.IntentCancelInvoice:
		return e.cancelInvoice(ctx, req)
	case ai.IntentCancelReminder:
		return e.cancelReminder(ctx, req)
	case ai.IntentListReminders:
		return e.listReminders(ctx, req)
	case ai.IntentCreateCustomer:
		return e.createCustomer(ctx, req)
	case ai.IntentModifyReminder:
		return e.modifyReminder(ctx, req)
	case ai.IntentDailySummary:
		return e.dailySummary(ctx, req)
	case ai.IntentUpdateCustomer, ai.IntentUpdateCustomerPhone:
		return e.updateCustomer(ctx, req)
	case ai.IntentGetCustomerInfo:
		return e.getCustomerInfo(ctx, req)
	case ai.IntentDeleteCustomerData:
		return e.deleteCustomerData(ctx, req)
	case ai.IntentSwitchLanguage:
		return e.switchLanguage(ctx, req)
	case ai.IntentStartRecording:
		return e.setRecording(ctx, req, true)
	case ai.IntentStopRecording:
		return e.setRecording(ctx, req, false)
	default:
		return fail(req.Intent, CodeUnknownIntent, "Samajh nahi aaya. Phir se boliye.")
	}
}

// internalError logs the root cause and returns the generic spoken failure.
// The client never sees the underlying error.
func (e *Engine) internalError(req Request, op string, err error) Result {
	e.log.Error().Err(err).
		Str("intent", req.Intent).
		Str("conversation_id", req.SessionID).
		Str("op", op).
		Msg("executor failed")
	return fail(req.Intent, CodeInternal, "Kuch problem aaya. Phir se try karo.")
}

// ── In-process session cache ─────────────────────────────────────────────────

// sessionCache keeps the per-session active customer and the last search
// result set in memory. Redis remains the source of truth across processes;
// this only saves a round trip on back-to-back turns.
type sessionCache struct {
	mu     sync.Mutex
	active map[string]*core.Customer
	search map[string][]core.Customer
}

func newSessionCache() *sessionCache {
	return &sessionCache{
		active: make(map[string]*core.Customer),
		search: make(map[string][]core.Customer),
	}
}

func (c *sessionCache) getActive(sessionID string) *core.Customer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[sessionID]
}

func (c *sessionCache) setActive(sessionID string, cust *core.Customer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[sessionID] = cust
}

func (c *sessionCache) invalidate(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, sessionID)
	delete(c.search, sessionID)
}

// invalidateCustomer drops any cached state naming the customer, across all
// sessions. Called after updates and deletes.
func (c *sessionCache) invalidateCustomer(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sid, cust := range c.active {
		if cust != nil && cust.ID == id {
			delete(c.active, sid)
		}
	}
	for sid := range c.search {
		delete(c.search, sid)
	}
}

func (c *sessionCache) getSearchSet(sessionID string) []core.Customer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search[sessionID]
}

func (c *sessionCache) setSearchSet(sessionID string, set []core.Customer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search[sessionID] = set
}

// spokenName returns the customer name a task referred to, if any.
func spokenName(ent ai.Entities) string {
	if n := strings.TrimSpace(ent.Customer); n != "" {
		return n
	}
	return strings.TrimSpace(ent.Name)
}
