package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kirana-voice/internal/core"
)

// FormatContextPrompt renders everything the intent classifier needs to
// know about this session: the last n messages, who has been talked about,
// and any pending multi-step state with explicit routing hints. The hints
// are what make a bare "haan" land on the right intent.
func (s *store) FormatContextPrompt(ctx context.Context, sessionID string, n int) (string, error) {
	mem, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	if msgs := mem.RecentMessages(n); len(msgs) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range msgs {
			label := "User"
			if m.Role == RoleAssistant {
				label = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", label, m.Content)
		}
	}

	writeCustomerSummary(&b, mem)

	drafts, err := s.loadDrafts(ctx)
	if err != nil {
		return "", err
	}
	writeDraftHints(&b, drafts)

	pending, err := s.LoadPendingEmail(ctx)
	switch {
	case err == nil:
		fmt.Fprintf(&b, "\nAWAITING EMAIL: invoice %s for %s has no recipient address. "+
			"If the user says an email address, classify as PROVIDE_EMAIL.\n",
			pending.InvoiceNo, pending.CustomerName)
	case !errors.Is(err, ErrNoPending):
		return "", err
	}

	sendConf, err := s.LoadPendingSendConfirm(ctx)
	switch {
	case err == nil:
		fmt.Fprintf(&b, "\nAWAITING SEND CONFIRMATION: invoice %s to be sent via %s to %s. "+
			"Interpret 'haan/ok/bhej do' as SEND_INVOICE with confirm=true and "+
			"'nahi/rehne do' as SEND_INVOICE with confirm=false.\n",
			sendConf.InvoiceNo, sendConf.Channel, sendConf.Contact)
	case !errors.Is(err, ErrNoPending):
		return "", err
	}

	return strings.TrimSpace(b.String()), nil
}

func writeCustomerSummary(b *strings.Builder, mem *SessionMemory) {
	if len(mem.History) == 0 {
		return
	}
	b.WriteString("\nRecent customers (most recent first):\n")
	start := len(mem.History) - 3
	if start < 0 {
		start = 0
	}
	for i := len(mem.History) - 1; i >= start; i-- {
		cc := mem.History[i]
		fmt.Fprintf(b, "- %s", cc.Name)
		if isActive(mem, cc) {
			b.WriteString(" [ACTIVE]")
		}
		if cc.LatestBalance != nil {
			fmt.Fprintf(b, ", balance ₹%s", cc.LatestBalance.StringFixed(2))
		}
		if cc.MentionCount > 1 {
			fmt.Fprintf(b, ", mentioned %d times", cc.MentionCount)
		}
		b.WriteString("\n")
	}
}

func isActive(mem *SessionMemory, cc *CustomerContext) bool {
	if mem.Active == nil {
		return false
	}
	if mem.Active.ID != 0 && cc.ID != 0 {
		return mem.Active.ID == cc.ID
	}
	return mem.Active.Name == cc.Name
}

func writeDraftHints(b *strings.Builder, drafts []core.InvoicePreview) {
	switch len(drafts) {
	case 0:
		return
	case 1:
		d := drafts[0]
		fmt.Fprintf(b, "\nPENDING INVOICE awaiting confirmation for %s: %s, total ₹%s. "+
			"Interpret 'haan/confirm/ok/ban do' as CONFIRM_INVOICE and "+
			"'nahi/cancel/rehne do' as CANCEL_INVOICE.\n",
			d.CustomerName, draftItemSummary(d), d.GrandTotal.StringFixed(2))
	default:
		fmt.Fprintf(b, "\nPENDING INVOICES (%d bills await confirmation):\n", len(drafts))
		for _, d := range drafts {
			fmt.Fprintf(b, "- %s: %s, total ₹%s\n",
				d.CustomerName, draftItemSummary(d), d.GrandTotal.StringFixed(2))
		}
		b.WriteString("Ask which bill to confirm. CONFIRM_INVOICE with the customer " +
			"name chooses that one; a bare 'haan' is ambiguous.\n")
	}
}

func draftItemSummary(d core.InvoicePreview) string {
	parts := make([]string, 0, len(d.InputItems))
	for _, it := range d.InputItems {
		parts = append(parts, fmt.Sprintf("%s x%s", it.Name, it.Quantity.String()))
	}
	return strings.Join(parts, ", ")
}
