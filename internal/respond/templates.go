package respond

import (
	"fmt"
	"strings"

	"kirana-voice/internal/ai"
	"kirana-voice/internal/core"
	"kirana-voice/internal/engine"
)

// renderSuccess speaks a successful result by payload type. The bool is
// false when the payload is outside the template set and the LLM responder
// should take over.
func (t *Templater) renderSuccess(res engine.Result) (string, bool) {
	switch data := res.Data.(type) {
	case engine.TotalPendingData:
		if data.Total.IsZero() {
			return "Koi udhaar baaki nahi hai. Sab clear!", true
		}
		return fmt.Sprintf("Total %s baaki hai, %d customers se.",
			rupees(data.Total), data.Customers), true

	case engine.BalanceListData:
		if len(data.Balances) == 0 {
			return "Kisi ka udhaar baaki nahi hai.", true
		}
		return fmt.Sprintf("%d customers ka udhaar baaki hai, total %s. %s",
			len(data.Balances), rupees(data.Total), topBalances(data.Balances)), true

	case engine.BalanceData:
		if data.Balance.IsZero() {
			return fmt.Sprintf("%s ka koi udhaar nahi hai.", data.Name), true
		}
		if data.Balance.Sign() < 0 {
			return fmt.Sprintf("%s ka %s advance jama hai.", data.Name, rupees(data.Balance.Neg())), true
		}
		return fmt.Sprintf("%s ka balance %s hai.", data.Name, rupees(data.Balance)), true

	case engine.DraftData:
		return t.renderDraft(data), true

	case engine.InvoiceData:
		return t.renderInvoice(res.Intent, data), true

	case engine.EmailSavedData:
		if data.InvoiceNo != "" {
			return fmt.Sprintf("Email save kar liya. Bill %s %s par bhej diya.",
				data.InvoiceNo, data.Email), true
		}
		return fmt.Sprintf("%s ka email %s save kar liya.", data.Name, data.Email), true

	case engine.SendConfirmData:
		switch {
		case data.Sent:
			return fmt.Sprintf("Bill %s %s par bhej diya.", data.InvoiceNo, data.Contact), true
		case data.Cancelled:
			return "Theek hai, nahi bheja.", true
		default:
			return fmt.Sprintf("Bill %s %s se %s par bhejoon? Haan ya nahi boliye.",
				data.InvoiceNo, channelHindi(data.Channel), data.Contact), true
		}

	case engine.PaymentData:
		if data.Remaining.IsZero() {
			return fmt.Sprintf("%s se %s %s mile. Poora hisaab clear!",
				data.Name, rupees(data.Paid), modeHindi(data.Mode)), true
		}
		return fmt.Sprintf("%s se %s %s mile. Ab %s baaki.",
			data.Name, rupees(data.Paid), modeHindi(data.Mode), rupees(data.Remaining)), true

	case engine.CreditData:
		return fmt.Sprintf("%s ke khate mein %s jama kiya. Ab %s baaki.",
			data.Name, rupees(data.Added), rupees(data.Total)), true

	case engine.StockData:
		p := data.Product
		line := fmt.Sprintf("%s ka stock %s %s hai", p.Name, p.Stock.String(), p.Unit)
		if p.Price.Sign() > 0 {
			line += fmt.Sprintf(", bhav %s per %s", rupees(p.Price), p.Unit)
		}
		if !p.LowStockThreshold.IsZero() && p.Stock.LessThanOrEqual(p.LowStockThreshold) {
			line += ". Stock kam ho raha hai, mangwa lo"
		}
		return line + ".", true

	case engine.ReminderData:
		return t.renderReminder(res.Intent, data.Reminder), true

	case engine.ReminderListData:
		if data.Count == 0 {
			return "Koi reminder laga hua nahi hai.", true
		}
		lines := make([]string, 0, data.Count)
		for _, r := range data.Reminders {
			lines = append(lines, fmt.Sprintf("%s ko %s", r.CustomerName, t.spokenTime(r.RemindAt)))
		}
		return fmt.Sprintf("%d reminder lage hain: %s.", data.Count, strings.Join(lines, "; ")), true

	case engine.CustomerData:
		return t.renderCustomer(res.Intent, data), true

	case engine.SummaryData:
		return renderSummary(data.Summary), true

	case engine.DeleteData:
		c := data.Counts
		return fmt.Sprintf("%s ka poora data delete kar diya: %d bill, %d payment, %d ledger entry.",
			data.CustomerName, c.Invoices, c.Payments, c.LedgerEntries), true

	case engine.LanguageData:
		if data.Language == "en" {
			return "Okay, switching to English.", true
		}
		return "Theek hai, ab Hindi mein baat karenge.", true

	case engine.RecordingData:
		if data.Recording {
			return "Recording chaalu kar di.", true
		}
		return "Recording band kar di.", true
	}
	return "", false
}

func (t *Templater) renderDraft(data engine.DraftData) string {
	d := data.Draft
	items := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, fmt.Sprintf("%s %s %s", it.Quantity.String(), it.Unit, it.ProductName))
	}
	line := fmt.Sprintf("%s ka bill: %s. Total %s",
		d.CustomerName, strings.Join(items, ", "), rupees(d.GrandTotal))
	if d.WithGST {
		line += " GST ke saath"
	}
	line += "."
	if len(data.AutoCreated) > 0 {
		line += fmt.Sprintf(" Naya item add kiya: %s.", strings.Join(data.AutoCreated, ", "))
	}
	if data.AwaitingConfirm {
		line += " Pakka karoon?"
	}
	return line
}

func (t *Templater) renderInvoice(intent string, data engine.InvoiceData) string {
	inv := data.Invoice
	if intent == ai.IntentCancelInvoice {
		return fmt.Sprintf("Bill %s cancel kar diya. %s ke khate se %s hata diya.",
			inv.InvoiceNo, inv.CustomerName, rupees(inv.GrandTotal))
	}
	line := fmt.Sprintf("Bill %s ban gaya, total %s.", inv.InvoiceNo, rupees(inv.GrandTotal))
	switch {
	case data.EmailedTo != "":
		line += fmt.Sprintf(" Email bhej diya %s par.", data.EmailedTo)
	case data.AwaitingEmail:
		line += fmt.Sprintf(" %s ka email nahi hai. Address bataiye toh bhej doon.", inv.CustomerName)
	}
	return line
}

func (t *Templater) renderReminder(intent string, r *core.Reminder) string {
	when := t.spokenTime(r.RemindAt)
	switch intent {
	case ai.IntentCancelReminder:
		return fmt.Sprintf("%s ka reminder cancel kar diya.", r.CustomerName)
	case ai.IntentModifyReminder:
		return fmt.Sprintf("Reminder badal diya. Ab %s yaad dilaunga.", when)
	default:
		name := r.CustomerName
		if name == "" {
			name = "customer"
		}
		return fmt.Sprintf("Theek hai, %s ko %s yaad dila dunga.", name, when)
	}
}

func (t *Templater) renderCustomer(intent string, data engine.CustomerData) string {
	c := data.Customer
	if data.Created {
		line := fmt.Sprintf("%s ko add kar diya.", c.Name)
		if c.Phone != "" {
			line += fmt.Sprintf(" Number %s.", spokenDigits(c.Phone))
		}
		if c.Balance.Sign() > 0 {
			line += fmt.Sprintf(" Purana hisaab %s likh diya.", rupees(c.Balance))
		}
		return line
	}
	if intent == ai.IntentGetCustomerInfo {
		parts := []string{c.Name}
		if c.Phone != "" {
			parts = append(parts, fmt.Sprintf("number %s", spokenDigits(c.Phone)))
		}
		if c.Nickname != "" {
			parts = append(parts, fmt.Sprintf("nickname %s", c.Nickname))
		}
		if c.Landmark != "" {
			parts = append(parts, fmt.Sprintf("%s ke paas", c.Landmark))
		}
		if c.Balance.Sign() > 0 {
			parts = append(parts, fmt.Sprintf("balance %s", rupees(c.Balance)))
		} else {
			parts = append(parts, "koi udhaar nahi")
		}
		if c.VisitCount > 0 {
			parts = append(parts, fmt.Sprintf("%d baar aaye hain", c.VisitCount))
		}
		return strings.Join(parts, ", ") + "."
	}
	return fmt.Sprintf("%s ki detail update kar di.", c.Name)
}

func renderSummary(s *core.DailySummary) string {
	if s.InvoiceCount == 0 && s.PaymentsReceived.IsZero() {
		return "Aaj abhi tak koi bikri nahi hui."
	}
	line := fmt.Sprintf("Aaj %d bill bane, %s ki bikri.", s.InvoiceCount, rupees(s.SalesTotal))
	if s.PaymentsReceived.Sign() > 0 {
		line += fmt.Sprintf(" %s aaye", rupees(s.PaymentsReceived))
		var parts []string
		if s.CashReceived.Sign() > 0 {
			parts = append(parts, fmt.Sprintf("%s cash", rupees(s.CashReceived)))
		}
		if s.UPIReceived.Sign() > 0 {
			parts = append(parts, fmt.Sprintf("%s UPI", rupees(s.UPIReceived)))
		}
		if len(parts) > 0 {
			line += fmt.Sprintf(" (%s)", strings.Join(parts, ", "))
		}
		line += "."
	}
	if s.GSTCollected.Sign() > 0 {
		line += fmt.Sprintf(" GST %s.", rupees(s.GSTCollected))
	}
	if s.NewCustomers > 0 {
		line += fmt.Sprintf(" %d naye customer.", s.NewCustomers)
	}
	if s.TotalPending.Sign() > 0 {
		line += fmt.Sprintf(" Total udhaar %s.", rupees(s.TotalPending))
	}
	return line
}

func topBalances(balances []core.CustomerBalance) string {
	n := len(balances)
	if n > 3 {
		n = 3
	}
	parts := make([]string, 0, n)
	for _, b := range balances[:n] {
		parts = append(parts, fmt.Sprintf("%s %s", b.Name, rupees(b.Balance)))
	}
	return "Sabse zyada: " + strings.Join(parts, ", ") + "."
}

func channelHindi(channel string) string {
	if channel == "whatsapp" {
		return "WhatsApp"
	}
	return "email"
}

func modeHindi(mode string) string {
	switch mode {
	case core.PayCash:
		return "cash"
	case core.PayUPI:
		return "UPI se"
	case core.PayCard:
		return "card se"
	default:
		return mode + " se"
	}
}
