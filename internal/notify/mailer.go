// Package notify delivers outbound messages: invoice and OTP emails over
// SMTP, WhatsApp texts and documents over the Cloud API.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"kirana-voice/internal/core"
)

// MailConfig carries the SMTP settings plus the shop identity stamped into
// every mail.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	ShopName string
}

type Mailer struct {
	client *mail.Client
	cfg    MailConfig
	log    zerolog.Logger
}

// NewMailer dials nothing up front; the connection is made per send. An
// empty host yields a mailer that fails every send with a clear error, so a
// shop without SMTP still boots.
func NewMailer(cfg MailConfig, log zerolog.Logger) (*Mailer, error) {
	m := &Mailer{cfg: cfg, log: log.With().Str("component", "mailer").Logger()}
	if cfg.Host == "" {
		return m, nil
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build smtp client: %w", err)
	}
	m.client = client
	return m, nil
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	if m.client == nil {
		return fmt.Errorf("smtp is not configured")
	}
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	m.log.Info().Str("to", to).Str("subject", subject).Msg("mail sent")
	return nil
}

// SendInvoice mails a plain-text rendering of the invoice, with the PDF link
// when one has been uploaded.
func (m *Mailer) SendInvoice(ctx context.Context, to string, inv *core.Invoice) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Namaste %s,\n\n", inv.CustomerName)
	fmt.Fprintf(&b, "Aapka bill %s (%s):\n\n", inv.InvoiceNo, inv.CreatedAt.Format("02 Jan 2006"))
	for _, it := range inv.Items {
		fmt.Fprintf(&b, "  %-24s %8s x %10s = %12s\n",
			it.ProductName, it.Quantity.String(), it.UnitPrice.StringFixed(2), it.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", inv.Subtotal.StringFixed(2))
	if inv.WithGST {
		if inv.CGST.Sign() > 0 || inv.SGST.Sign() > 0 {
			fmt.Fprintf(&b, "CGST: %s\nSGST: %s\n", inv.CGST.StringFixed(2), inv.SGST.StringFixed(2))
		}
		if inv.IGST.Sign() > 0 {
			fmt.Fprintf(&b, "IGST: %s\n", inv.IGST.StringFixed(2))
		}
		if inv.Cess.Sign() > 0 {
			fmt.Fprintf(&b, "Cess: %s\n", inv.Cess.StringFixed(2))
		}
	}
	fmt.Fprintf(&b, "Total: Rs. %s\n", inv.GrandTotal.StringFixed(2))
	if inv.PDFURL != "" {
		fmt.Fprintf(&b, "\nPDF: %s\n", inv.PDFURL)
	}
	fmt.Fprintf(&b, "\nDhanyavaad,\n%s\n", m.cfg.ShopName)

	subject := fmt.Sprintf("Bill %s - %s", inv.InvoiceNo, m.cfg.ShopName)
	return m.send(ctx, to, subject, b.String())
}

// SendDeleteOTP mails the deletion confirmation code to the admin. The code
// travels nowhere else.
func (m *Mailer) SendDeleteOTP(ctx context.Context, to, customerName, code string) error {
	body := fmt.Sprintf(
		"Customer %q ka poora data delete karne ki request aayi hai.\n\n"+
			"Confirmation code: %s\n\n"+
			"Code 10 minute mein expire ho jayega. Agar yeh request aapne nahi ki, ignore karein.\n",
		customerName, code)
	return m.send(ctx, to, fmt.Sprintf("Delete confirmation - %s", m.cfg.ShopName), body)
}

// SendDailySummary mails the end-of-day figures to the admin address.
func (m *Mailer) SendDailySummary(ctx context.Context, to string, s *core.DailySummary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily summary %s - %s\n\n", s.Date, m.cfg.ShopName)
	fmt.Fprintf(&b, "Bills:            %d (%d cancelled)\n", s.InvoiceCount, s.CancelledCount)
	fmt.Fprintf(&b, "Sales:            Rs. %s\n", s.SalesTotal.StringFixed(2))
	fmt.Fprintf(&b, "GST collected:    Rs. %s\n", s.GSTCollected.StringFixed(2))
	fmt.Fprintf(&b, "Payments:         Rs. %s (cash %s, UPI %s)\n",
		s.PaymentsReceived.StringFixed(2), s.CashReceived.StringFixed(2), s.UPIReceived.StringFixed(2))
	fmt.Fprintf(&b, "New customers:    %d\n", s.NewCustomers)
	fmt.Fprintf(&b, "Udhaar pending:   Rs. %s\n", s.TotalPending.StringFixed(2))
	if len(s.TopProducts) > 0 {
		b.WriteString("\nTop products:\n")
		for _, p := range s.TopProducts {
			fmt.Fprintf(&b, "  %-24s %8s  Rs. %s\n", p.ProductName, p.Quantity.String(), p.Amount.StringFixed(2))
		}
	}
	return m.send(ctx, to, fmt.Sprintf("Daily summary %s - %s", s.Date, m.cfg.ShopName), b.String())
}
