package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kirana-voice/internal/conversation"
	"kirana-voice/internal/core"
	"kirana-voice/internal/names"
)

// sessionDraftKey holds the id of the session's current working draft. The
// shop-level draft list in Redis is the durable recovery set; this key only
// remembers which entry the session was last talking about.
const sessionDraftKey = "current_draft"

func (e *Engine) createInvoice(ctx context.Context, req Request) Result {
	if len(req.Entities.Items) == 0 {
		return fail(req.Intent, CodeValidation, "Bill mein kya daalna hai? Item bataiye.")
	}
	cust, res := e.resolveCustomer(ctx, req)
	if res != nil {
		return *res
	}

	items := make([]core.ItemInput, 0, len(req.Entities.Items))
	for _, li := range req.Entities.Items {
		qty, err := li.QuantityValue()
		if err != nil || qty.Sign() <= 0 {
			return fail(req.Intent, CodeValidation,
				fmt.Sprintf("%s ki quantity samajh nahi aayi.", li.Product))
		}
		input := core.ItemInput{Name: li.Product, Quantity: qty, Unit: li.Unit}
		if price, okp := li.PriceValue(); okp {
			input.UnitPrice = price
		}
		items = append(items, input)
	}

	draft, err := e.deps.Invoices.PreviewInvoice(ctx, cust, items, req.Entities.WithGST, core.SupplyIntrastate)
	if err != nil {
		if errors.Is(err, core.ErrEmptyInvoice) {
			return fail(req.Intent, CodeValidation, "Bill mein kya daalna hai? Item bataiye.")
		}
		return e.internalError(req, "preview invoice", err)
	}

	if err := e.deps.Conv.AddDraft(ctx, draft); err != nil {
		return e.internalError(req, "store draft", err)
	}
	e.rememberDraft(ctx, req.SessionID, draft.DraftID)

	return ok(req.Intent, DraftData{Draft: draft, AwaitingConfirm: true, AutoCreated: draft.AutoCreated})
}

func (e *Engine) confirmInvoice(ctx context.Context, req Request) Result {
	draft, res := e.pickDraft(ctx, req)
	if res != nil {
		return *res
	}

	// Consume the draft before committing so a racing second "haan" finds
	// nothing to confirm. A failed commit puts it back.
	if err := e.deps.Conv.RemoveDraft(ctx, draft.DraftID); err != nil {
		return e.internalError(req, "consume draft", err)
	}

	inv, err := e.deps.Invoices.ConfirmInvoice(ctx, draft, req.Entities.Notes)
	if err != nil {
		if rerr := e.deps.Conv.AddDraft(ctx, draft); rerr != nil {
			e.log.Error().Err(rerr).Str("draft_id", draft.DraftID).Msg("failed to restore draft after failed confirm")
		}
		if errors.Is(err, core.ErrInsufficientStock) {
			return fail(req.Intent, CodeInsufficientStock, "Stock kam hai, bill nahi bana.")
		}
		return e.internalError(req, "confirm invoice", err)
	}
	e.forgetDraft(ctx, req.SessionID)
	e.trackBalance(ctx, req.SessionID, inv.CustomerName, inv.GrandTotal)
	e.storeArtifactsAsync(inv)

	if draft.CustomerEmail == "" {
		pending := &conversation.PendingEmail{
			CustomerID:   inv.CustomerID,
			CustomerName: inv.CustomerName,
			InvoiceID:    inv.ID,
			InvoiceNo:    inv.InvoiceNo,
			Items:        itemNames(inv.Items),
			Total:        inv.GrandTotal,
		}
		if err := e.deps.Conv.SetPendingEmail(ctx, pending); err != nil {
			e.log.Error().Err(err).Str("invoice_no", inv.InvoiceNo).Msg("failed to park invoice for email")
		}
		return ok(req.Intent, InvoiceData{Invoice: inv, AwaitingEmail: true})
	}

	if err := e.deps.Mailer.SendInvoice(ctx, draft.CustomerEmail, inv); err != nil {
		e.log.Error().Err(err).Str("invoice_no", inv.InvoiceNo).Msg("invoice email failed")
		return ok(req.Intent, InvoiceData{Invoice: inv})
	}
	if err := e.deps.Invoices.MarkSent(ctx, inv.ID, "email", draft.CustomerEmail); err != nil {
		e.log.Warn().Err(err).Str("invoice_no", inv.InvoiceNo).Msg("failed to mark invoice sent")
	}
	return ok(req.Intent, InvoiceData{Invoice: inv, EmailedTo: draft.CustomerEmail})
}

func (e *Engine) showPendingInvoice(ctx context.Context, req Request) Result {
	draft, res := e.pickDraft(ctx, req)
	if res != nil {
		return *res
	}
	return ok(req.Intent, DraftData{Draft: draft, AwaitingConfirm: true, AutoCreated: draft.AutoCreated})
}

func (e *Engine) toggleGST(ctx context.Context, req Request) Result {
	draft, res := e.pickDraft(ctx, req)
	if res != nil {
		return *res
	}
	draft.WithGST = !draft.WithGST
	core.PriceDraft(draft)
	if err := e.deps.Conv.UpdateDraft(ctx, draft); err != nil {
		return e.internalError(req, "update draft", err)
	}
	e.rememberDraft(ctx, req.SessionID, draft.DraftID)
	return ok(req.Intent, DraftData{Draft: draft, AwaitingConfirm: true})
}

func (e *Engine) provideEmail(ctx context.Context, req Request) Result {
	email := strings.TrimSpace(req.Entities.Email)
	if !strings.Contains(email, "@") {
		return fail(req.Intent, CodeInvalidEmail, "Email address samajh nahi aaya. Phir se boliye.")
	}

	pending, err := e.deps.Conv.LoadPendingEmail(ctx)
	if errors.Is(err, conversation.ErrNoPending) {
		// Nothing parked: save the address on the active customer instead.
		cust, res := e.resolveActive(ctx, req)
		if res != nil {
			return *res
		}
		if _, err := e.deps.Customers.UpdateCustomer(ctx, cust.ID, core.CustomerUpdate{Email: &email}); err != nil {
			return e.internalError(req, "save email", err)
		}
		e.sessions.invalidateCustomer(cust.ID)
		return ok(req.Intent, EmailSavedData{CustomerID: cust.ID, Name: cust.Name, Email: email})
	}
	if err != nil {
		return e.internalError(req, "load pending email", err)
	}

	if _, err := e.deps.Customers.UpdateCustomer(ctx, pending.CustomerID, core.CustomerUpdate{Email: &email}); err != nil {
		return e.internalError(req, "save email", err)
	}
	e.sessions.invalidateCustomer(pending.CustomerID)

	inv, err := e.deps.Invoices.GetInvoice(ctx, pending.InvoiceID)
	if err != nil {
		return e.internalError(req, "load parked invoice", err)
	}
	if err := e.deps.Mailer.SendInvoice(ctx, email, inv); err != nil {
		e.log.Error().Err(err).Str("invoice_no", inv.InvoiceNo).Msg("invoice email failed")
		return fail(req.Intent, CodeSendFailed, "Email nahi gaya. Thodi der baad phir try karo.")
	}
	// Clear the parked invoice only after the send succeeded.
	if err := e.deps.Conv.ClearPendingEmail(ctx); err != nil {
		e.log.Warn().Err(err).Msg("failed to clear pending email")
	}
	if err := e.deps.Invoices.MarkSent(ctx, inv.ID, "email", email); err != nil {
		e.log.Warn().Err(err).Str("invoice_no", inv.InvoiceNo).Msg("failed to mark invoice sent")
	}
	return ok(req.Intent, EmailSavedData{
		CustomerID: pending.CustomerID,
		Name:       pending.CustomerName,
		Email:      email,
		InvoiceNo:  inv.InvoiceNo,
	})
}

func (e *Engine) sendInvoice(ctx context.Context, req Request) Result {
	if req.Entities.Confirm != "" {
		return e.answerSendConfirm(ctx, req)
	}

	channel := strings.ToLower(strings.TrimSpace(req.Entities.Channel))
	contact := strings.TrimSpace(req.Entities.Contact)
	if channel != "email" && channel != "whatsapp" {
		return fail(req.Intent, CodeValidation, "Email se bhejna hai ya WhatsApp se?")
	}
	if contact == "" {
		return fail(req.Intent, CodeValidation, "Kis address ya number par bhejna hai?")
	}

	cust, res := e.resolveCustomer(ctx, req)
	if res != nil {
		return *res
	}
	inv, err := e.deps.Invoices.LatestForCustomer(ctx, cust.ID)
	if errors.Is(err, core.ErrInvoiceNotFound) {
		return fail(req.Intent, CodeNoInvoice, fmt.Sprintf("%s ka koi bill nahi mila.", cust.Name))
	}
	if err != nil {
		return e.internalError(req, "latest invoice", err)
	}

	pending := &conversation.PendingSendConfirm{
		Channel:   channel,
		Contact:   contact,
		InvoiceID: inv.ID,
		InvoiceNo: inv.InvoiceNo,
	}
	if err := e.deps.Conv.SetPendingSendConfirm(ctx, pending); err != nil {
		return e.internalError(req, "store send confirmation", err)
	}
	return ok(req.Intent, SendConfirmData{Channel: channel, Contact: contact, InvoiceNo: inv.InvoiceNo})
}

// answerSendConfirm resolves a stored pending send with the spoken haan/nahi.
func (e *Engine) answerSendConfirm(ctx context.Context, req Request) Result {
	pending, err := e.deps.Conv.LoadPendingSendConfirm(ctx)
	if errors.Is(err, conversation.ErrNoPending) {
		return fail(req.Intent, CodeNoPendingSend, "Koi bhejne wala bill pending nahi hai.")
	}
	if err != nil {
		return e.internalError(req, "load send confirmation", err)
	}

	if req.Entities.Confirm != "yes" {
		if err := e.deps.Conv.ClearPendingSendConfirm(ctx); err != nil {
			e.log.Warn().Err(err).Msg("failed to clear send confirmation")
		}
		return ok(req.Intent, SendConfirmData{
			Channel: pending.Channel, Contact: pending.Contact,
			InvoiceNo: pending.InvoiceNo, Cancelled: true,
		})
	}

	inv, err := e.deps.Invoices.GetInvoice(ctx, pending.InvoiceID)
	if err != nil {
		return e.internalError(req, "load invoice for send", err)
	}
	switch pending.Channel {
	case "whatsapp":
		caption := fmt.Sprintf("Bill %s, total ₹%s", inv.InvoiceNo, inv.GrandTotal.StringFixed(2))
		if inv.PDFURL != "" {
			err = e.deps.WhatsApp.SendDocument(ctx, pending.Contact, inv.PDFURL, caption)
		} else {
			err = e.deps.WhatsApp.SendText(ctx, pending.Contact, caption)
		}
	default:
		err = e.deps.Mailer.SendInvoice(ctx, pending.Contact, inv)
	}
	if err != nil {
		e.log.Error().Err(err).Str("invoice_no", inv.InvoiceNo).Str("channel", pending.Channel).Msg("invoice send failed")
		return fail(req.Intent, CodeSendFailed, "Bhej nahi paya. Thodi der baad phir try karo.")
	}
	if err := e.deps.Conv.ClearPendingSendConfirm(ctx); err != nil {
		e.log.Warn().Err(err).Msg("failed to clear send confirmation")
	}
	if err := e.deps.Invoices.MarkSent(ctx, inv.ID, pending.Channel, pending.Contact); err != nil {
		e.log.Warn().Err(err).Str("invoice_no", inv.InvoiceNo).Msg("failed to mark invoice sent")
	}
	return ok(req.Intent, SendConfirmData{
		Channel: pending.Channel, Contact: pending.Contact,
		InvoiceNo: inv.InvoiceNo, Sent: true,
	})
}

func (e *Engine) cancelInvoice(ctx context.Context, req Request) Result {
	cust, res := e.resolveCustomer(ctx, req)
	if res != nil {
		return *res
	}
	inv, err := e.deps.Invoices.LatestForCustomer(ctx, cust.ID)
	if errors.Is(err, core.ErrInvoiceNotFound) {
		return fail(req.Intent, CodeNoInvoice, fmt.Sprintf("%s ka koi bill nahi mila.", cust.Name))
	}
	if err != nil {
		return e.internalError(req, "latest invoice", err)
	}

	cancelled, err := e.deps.Invoices.CancelInvoice(ctx, inv.ID)
	if errors.Is(err, core.ErrAlreadyCancelled) {
		return fail(req.Intent, CodeAlreadyCancelled, fmt.Sprintf("Bill %s pehle se cancel hai.", inv.InvoiceNo))
	}
	if err != nil {
		return e.internalError(req, "cancel invoice", err)
	}
	return ok(req.Intent, InvoiceData{Invoice: cancelled})
}

// ── Draft selection ──────────────────────────────────────────────────────────

// pickDraft finds the draft a confirm/show/toggle refers to: a spoken
// customer name disambiguates first, then the session's working draft, then
// the shop list when it holds exactly one.
func (e *Engine) pickDraft(ctx context.Context, req Request) (*core.InvoicePreview, *Result) {
	if name := spokenName(req.Entities); name != "" {
		return e.draftByCustomerName(ctx, req, name)
	}

	if id, err := e.deps.Conv.SessionContext(ctx, req.SessionID, sessionDraftKey); err == nil && id != "" {
		if draft, err := e.deps.Conv.DraftByID(ctx, id); err == nil {
			return draft, nil
		}
		// The working draft is gone (confirmed elsewhere, TTL); fall through
		// to the shop list.
		e.forgetDraft(ctx, req.SessionID)
	}

	drafts, err := e.deps.Conv.ListDrafts(ctx)
	if err != nil {
		r := e.internalError(req, "list drafts", err)
		return nil, &r
	}
	switch len(drafts) {
	case 0:
		r := fail(req.Intent, CodeNoDraft, "Koi pending bill nahi hai.")
		return nil, &r
	case 1:
		return &drafts[0], nil
	default:
		r := failWith(req.Intent, CodeMultipleDrafts,
			fmt.Sprintf("%d bill pending hain. Kiska bill?", len(drafts)),
			DraftListData{Drafts: drafts})
		return nil, &r
	}
}

func (e *Engine) draftByCustomerName(ctx context.Context, req Request, name string) (*core.InvoicePreview, *Result) {
	drafts, err := e.deps.Conv.ListDrafts(ctx)
	if err != nil {
		r := e.internalError(req, "list drafts", err)
		return nil, &r
	}
	var best *core.InvoicePreview
	bestScore := 0.0
	for i := range drafts {
		// Score the full name and the first name alone, so "Suresh" picks
		// Suresh Sharma's draft.
		score := names.Score(name, drafts[i].CustomerName).Score
		if first, _, cut := strings.Cut(names.Normalize(drafts[i].CustomerName), " "); cut {
			if r := names.Score(name, first); r.Score > score {
				score = r.Score
			}
		}
		if score >= names.DefaultThreshold && score > bestScore {
			best, bestScore = &drafts[i], score
		}
	}
	if best == nil {
		r := fail(req.Intent, CodeNoDraft, fmt.Sprintf("%s ka koi pending bill nahi hai.", name))
		return nil, &r
	}
	return best, nil
}

func (e *Engine) rememberDraft(ctx context.Context, sessionID, draftID string) {
	if err := e.deps.Conv.SetSessionContext(ctx, sessionID, sessionDraftKey, draftID); err != nil {
		e.log.Warn().Err(err).Str("conversation_id", sessionID).Msg("failed to remember working draft")
	}
}

func (e *Engine) forgetDraft(ctx context.Context, sessionID string) {
	if err := e.deps.Conv.SetSessionContext(ctx, sessionID, sessionDraftKey, ""); err != nil {
		e.log.Warn().Err(err).Str("conversation_id", sessionID).Msg("failed to clear working draft")
	}
}

// storeArtifactsAsync renders and uploads the invoice PDF off the spoken
// turn. Uses a detached context: the websocket closing must not abort an
// upload already underway.
func (e *Engine) storeArtifactsAsync(inv *core.Invoice) {
	if e.deps.Artifacts == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		key, url, err := e.deps.Artifacts.StoreInvoicePDF(ctx, inv)
		if err != nil {
			e.log.Error().Err(err).Str("invoice_no", inv.InvoiceNo).Msg("invoice pdf upload failed")
			return
		}
		if err := e.deps.Invoices.SetPDF(ctx, inv.ID, key, url); err != nil {
			e.log.Error().Err(err).Str("invoice_no", inv.InvoiceNo).Msg("failed to record invoice pdf")
		}
	}()
}

func itemNames(items []core.InvoiceItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, fmt.Sprintf("%s x%s", it.ProductName, it.Quantity.String()))
	}
	return out
}
