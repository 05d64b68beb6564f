package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"kirana-voice/internal/ai"
	"kirana-voice/internal/core"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type testEnv struct {
	engine    *Engine
	customers *fakeCustomers
	products  *fakeProducts
	invoices  *fakeInvoices
	ledger    *fakeLedger
	reminders *fakeReminders
	queue     *fakeQueue
	mailer    *fakeMailer
	wa        *fakeWhatsApp
	conv      *fakeConv
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	customers := newFakeCustomers(
		core.Customer{ID: 1, Name: "Ramesh Kumar", Phone: "9876543210", Balance: dec("500")},
		core.Customer{ID: 2, Name: "Suresh Sharma", Phone: "9812345678"},
		core.Customer{ID: 3, Name: "Ramesh Gupta"},
		core.Customer{ID: 4, Name: "Meena Devi", Phone: "9900112233", Email: "meena@example.com"},
	)
	products := newFakeProducts(
		core.Product{ID: 1, Name: "chawal", Unit: "kg", Price: dec("80"), Stock: dec("50"), GSTRate: dec("5")},
		core.Product{ID: 2, Name: "cheeni", Unit: "kg", Price: dec("45"), Stock: dec("30"), GSTRate: dec("5")},
	)
	invoices := newFakeInvoices(products, customers)
	ledger := &fakeLedger{customers: customers}
	reminders := newFakeReminders()
	queue := &fakeQueue{}
	mailer := &fakeMailer{}
	wa := &fakeWhatsApp{}
	conv := newFakeConv()

	eng := New(Deps{
		Customers:  customers,
		Products:   products,
		Invoices:   invoices,
		Ledger:     ledger,
		Reminders:  reminders,
		Summary:    &fakeSummary{summary: core.DailySummary{InvoiceCount: 3, SalesTotal: dec("1200")}},
		Queue:      queue,
		Conv:       conv,
		Mailer:     mailer,
		WhatsApp:   wa,
		AdminEmail: "admin@shop.test",
		Location:   time.UTC,
		Log:        zerolog.Nop(),
	})
	return &testEnv{
		engine: eng, customers: customers, products: products, invoices: invoices,
		ledger: ledger, reminders: reminders, queue: queue, mailer: mailer, wa: wa, conv: conv,
	}
}

func (env *testEnv) run(t *testing.T, session string, intent string, ent ai.Entities) Result {
	t.Helper()
	return env.engine.Execute(context.Background(), Request{
		SessionID: session,
		Intent:    intent,
		Entities:  ent,
	})
}

// ── Resolution ───────────────────────────────────────────────────────────────

func TestCheckBalanceExactName(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentCheckBalance, ai.Entities{Customer: "Ramesh Kumar"})
	if !res.Success {
		t.Fatalf("unexpected failure: %s %s", res.Error, res.Message)
	}
	data, okd := res.Data.(BalanceData)
	if !okd {
		t.Fatalf("payload = %T, want BalanceData", res.Data)
	}
	if data.CustomerID != 1 || !data.Balance.Equal(dec("500")) {
		t.Errorf("balance = %s for customer %d, want 500 for 1", data.Balance, data.CustomerID)
	}
}

func TestPronounFollowUpUsesActiveCustomer(t *testing.T) {
	env := newTestEnv(t)
	if res := env.run(t, "s1", ai.IntentCheckBalance, ai.Entities{Customer: "Ramesh Kumar"}); !res.Success {
		t.Fatalf("setup turn failed: %s", res.Error)
	}
	// "usse 200 mile" — no name, pronoun reference.
	res := env.run(t, "s1", ai.IntentRecordPayment, ai.Entities{CustomerRef: "active", Amount: "200"})
	if !res.Success {
		t.Fatalf("unexpected failure: %s %s", res.Error, res.Message)
	}
	data := res.Data.(PaymentData)
	if data.CustomerID != 1 {
		t.Errorf("payment went to customer %d, want active customer 1", data.CustomerID)
	}
	if !data.Remaining.Equal(dec("300")) {
		t.Errorf("remaining = %s, want 300", data.Remaining)
	}
}

func TestAmbiguousFirstNameAsksWhich(t *testing.T) {
	env := newTestEnv(t)
	// "Ramesh" matches both Ramesh Kumar and Ramesh Gupta below the
	// outright-win floor.
	res := env.run(t, "s1", ai.IntentCheckBalance, ai.Entities{Customer: "Ramesh"})
	if res.Success || res.Error != CodeMultipleCustomers {
		t.Fatalf("result = %+v, want MULTIPLE_CUSTOMERS failure", res)
	}
	data, okd := res.Data.(CandidatesData)
	if !okd {
		t.Fatalf("payload = %T, want CandidatesData", res.Data)
	}
	if len(data.Customers) != 2 {
		t.Errorf("candidates = %d, want 2", len(data.Customers))
	}
	if len(data.Customers) > maxAmbiguous {
		t.Errorf("candidates = %d, must cap at %d", len(data.Customers), maxAmbiguous)
	}
}

func TestCustomerNotFound(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentCheckBalance, ai.Entities{Customer: "Birbal"})
	if res.Success || res.Error != CodeCustomerNotFound {
		t.Fatalf("result = %+v, want CUSTOMER_NOT_FOUND failure", res)
	}
}

func TestNoActiveCustomerAsksForName(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "fresh-session", ai.IntentCheckBalance, ai.Entities{})
	if res.Success || res.Error != CodeCustomerNotFound {
		t.Fatalf("result = %+v, want CUSTOMER_NOT_FOUND on empty session", res)
	}
}

// ── Invoice lifecycle ────────────────────────────────────────────────────────

func invoiceItems() []ai.LineItem {
	return []ai.LineItem{
		{Product: "chawal", Quantity: "2", Unit: "kg"},
		{Product: "cheeni", Quantity: "1", Unit: "kg"},
	}
}

func TestCreateInvoiceBuildsDraft(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Suresh Sharma", Items: invoiceItems()})
	if !res.Success {
		t.Fatalf("unexpected failure: %s %s", res.Error, res.Message)
	}
	data, okd := res.Data.(DraftData)
	if !okd {
		t.Fatalf("payload = %T, want DraftData", res.Data)
	}
	if !data.AwaitingConfirm {
		t.Error("draft must await confirmation")
	}
	// 2kg chawal @80 + 1kg cheeni @45, GST off by default.
	if !data.Draft.GrandTotal.Equal(dec("205")) {
		t.Errorf("grand total = %s, want 205", data.Draft.GrandTotal)
	}
	if env.invoices.confirmed != 0 {
		t.Error("preview must not commit an invoice")
	}
	if len(env.conv.drafts) != 1 {
		t.Fatalf("drafts in store = %d, want 1", len(env.conv.drafts))
	}
}

func TestCreateInvoiceAutoCreatesUnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{
		Customer: "Suresh Sharma",
		Items:    []ai.LineItem{{Product: "surf excel", Quantity: "1", Price: "120"}},
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %s %s", res.Error, res.Message)
	}
	data := res.Data.(DraftData)
	if len(data.AutoCreated) != 1 || data.AutoCreated[0] != "surf excel" {
		t.Errorf("auto created = %v, want the unknown product", data.AutoCreated)
	}
	// Spoken price overrides the placeholder's zero price.
	if !data.Draft.GrandTotal.Equal(dec("120")) {
		t.Errorf("grand total = %s, want spoken price 120", data.Draft.GrandTotal)
	}
}

func TestConfirmWithoutEmailParksInvoice(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Suresh Sharma", Items: invoiceItems()})

	res := env.run(t, "s1", ai.IntentConfirmInvoice, ai.Entities{})
	if !res.Success {
		t.Fatalf("confirm failed: %s %s", res.Error, res.Message)
	}
	data, okd := res.Data.(InvoiceData)
	if !okd {
		t.Fatalf("payload = %T, want InvoiceData", res.Data)
	}
	if !data.AwaitingEmail {
		t.Error("customer has no email, invoice must be parked for one")
	}
	if !strings.Contains(data.Invoice.InvoiceNo, "/INV/") {
		t.Errorf("invoice no %q missing FY format", data.Invoice.InvoiceNo)
	}
	if len(env.conv.drafts) != 0 {
		t.Errorf("drafts after confirm = %d, want 0", len(env.conv.drafts))
	}
	if env.conv.pendEmail == nil || env.conv.pendEmail.InvoiceNo != data.Invoice.InvoiceNo {
		t.Error("parked invoice not recorded for PROVIDE_EMAIL")
	}
	bal, _ := env.customers.GetBalance(context.Background(), 2)
	if !bal.Equal(dec("205")) {
		t.Errorf("customer balance = %s, want 205 after confirm", bal)
	}
}

func TestConfirmWithEmailSendsImmediately(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Meena Devi", Items: invoiceItems()})

	res := env.run(t, "s1", ai.IntentConfirmInvoice, ai.Entities{})
	if !res.Success {
		t.Fatalf("confirm failed: %s %s", res.Error, res.Message)
	}
	data := res.Data.(InvoiceData)
	if data.AwaitingEmail {
		t.Error("customer has an email on file, nothing to park")
	}
	if data.EmailedTo != "meena@example.com" {
		t.Errorf("emailed to %q, want meena@example.com", data.EmailedTo)
	}
	if len(env.mailer.sent) != 1 || env.mailer.sent[0].To != "meena@example.com" {
		t.Errorf("mailer sent = %+v, want one invoice mail", env.mailer.sent)
	}
	inv, _ := env.invoices.GetInvoice(context.Background(), data.Invoice.ID)
	if inv.SentVia != "email" {
		t.Errorf("sent_via = %q, want email", inv.SentVia)
	}
}

func TestFailedConfirmRestoresDraft(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Suresh Sharma", Items: invoiceItems()})
	env.invoices.failNext = core.ErrInsufficientStock

	res := env.run(t, "s1", ai.IntentConfirmInvoice, ai.Entities{})
	if res.Success || res.Error != CodeInsufficientStock {
		t.Fatalf("result = %+v, want INSUFFICIENT_STOCK failure", res)
	}
	if len(env.conv.drafts) != 1 {
		t.Fatalf("draft must be restored after failed commit, got %d", len(env.conv.drafts))
	}
	// The retry should now succeed against the restored draft.
	res = env.run(t, "s1", ai.IntentConfirmInvoice, ai.Entities{})
	if !res.Success {
		t.Fatalf("retry failed: %s %s", res.Error, res.Message)
	}
}

func TestConfirmWithNoDraft(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentConfirmInvoice, ai.Entities{})
	if res.Success || res.Error != CodeNoDraft {
		t.Fatalf("result = %+v, want NO_DRAFT failure", res)
	}
}

func TestConfirmPicksDraftBySpokenName(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Suresh Sharma", Items: invoiceItems()})
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{
		Customer: "Meena Devi",
		Items:    []ai.LineItem{{Product: "cheeni", Quantity: "3", Unit: "kg"}},
	})

	res := env.run(t, "s1", ai.IntentConfirmInvoice, ai.Entities{Customer: "Suresh"})
	if !res.Success {
		t.Fatalf("confirm failed: %s %s", res.Error, res.Message)
	}
	data := res.Data.(InvoiceData)
	if data.Invoice.CustomerID != 2 {
		t.Errorf("confirmed customer %d, want Suresh (2)", data.Invoice.CustomerID)
	}
	if len(env.conv.drafts) != 1 || env.conv.drafts[0].CustomerID != 4 {
		t.Errorf("Meena's draft must survive, drafts = %+v", env.conv.drafts)
	}
}

func TestMultipleDraftsWithoutNameAsksWhich(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Suresh Sharma", Items: invoiceItems()})
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Meena Devi", Items: invoiceItems()})

	// A different session has no working draft and must be asked.
	res := env.run(t, "s2", ai.IntentConfirmInvoice, ai.Entities{})
	if res.Success || res.Error != CodeMultipleDrafts {
		t.Fatalf("result = %+v, want MULTIPLE_DRAFTS failure", res)
	}
	if data, okd := res.Data.(DraftListData); !okd || len(data.Drafts) != 2 {
		t.Errorf("payload = %+v, want both drafts listed", res.Data)
	}
}

func TestToggleGSTReprices(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Suresh Sharma", Items: invoiceItems()})

	res := env.run(t, "s1", ai.IntentToggleGST, ai.Entities{})
	if !res.Success {
		t.Fatalf("toggle failed: %s %s", res.Error, res.Message)
	}
	data := res.Data.(DraftData)
	if !data.Draft.WithGST {
		t.Fatal("draft must have GST on after toggle")
	}
	// 205 subtotal + 5% GST; the cheeni line's 1.125 halves round to 1.12.
	if !data.Draft.GrandTotal.Equal(dec("215.24")) {
		t.Errorf("grand total with GST = %s, want 215.24", data.Draft.GrandTotal)
	}
	if !data.Draft.CGST.Equal(dec("5.12")) || !data.Draft.SGST.Equal(dec("5.12")) {
		t.Errorf("CGST/SGST = %s/%s, want 5.12 each", data.Draft.CGST, data.Draft.SGST)
	}

	// Toggle back returns to the untaxed total.
	res = env.run(t, "s1", ai.IntentToggleGST, ai.Entities{})
	if !res.Data.(DraftData).Draft.GrandTotal.Equal(dec("205")) {
		t.Errorf("grand total after second toggle = %s, want 205", res.Data.(DraftData).Draft.GrandTotal)
	}
}

func TestProvideEmailDeliversParkedInvoice(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Suresh Sharma", Items: invoiceItems()})
	env.run(t, "s1", ai.IntentConfirmInvoice, ai.Entities{})

	res := env.run(t, "s1", ai.IntentProvideEmail, ai.Entities{Email: "suresh@example.com"})
	if !res.Success {
		t.Fatalf("provide email failed: %s %s", res.Error, res.Message)
	}
	data := res.Data.(EmailSavedData)
	if data.InvoiceNo == "" {
		t.Error("parked invoice number missing from payload")
	}
	if env.conv.pendEmail != nil {
		t.Error("pending email must clear after a successful send")
	}
	cust, _ := env.customers.GetCustomer(context.Background(), 2)
	if cust.Email != "suresh@example.com" {
		t.Errorf("customer email = %q, want the spoken address saved", cust.Email)
	}
	if len(env.mailer.sent) != 1 || env.mailer.sent[0].To != "suresh@example.com" {
		t.Errorf("mailer sent = %+v, want the parked invoice delivered", env.mailer.sent)
	}
}

func TestProvideEmailKeepsParkedInvoiceOnSendFailure(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Suresh Sharma", Items: invoiceItems()})
	env.run(t, "s1", ai.IntentConfirmInvoice, ai.Entities{})

	env.mailer.failing = true
	res := env.run(t, "s1", ai.IntentProvideEmail, ai.Entities{Email: "suresh@example.com"})
	if res.Success || res.Error != CodeSendFailed {
		t.Fatalf("result = %+v, want SEND_FAILED failure", res)
	}
	if env.conv.pendEmail == nil {
		t.Error("pending email must survive a failed send for retry")
	}
}

func TestProvideEmailWithoutParkedInvoiceSavesOnActive(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "s1", ai.IntentCheckBalance, ai.Entities{Customer: "Ramesh Kumar"})

	res := env.run(t, "s1", ai.IntentProvideEmail, ai.Entities{Email: "ramesh@example.com"})
	if !res.Success {
		t.Fatalf("provide email failed: %s %s", res.Error, res.Message)
	}
	cust, _ := env.customers.GetCustomer(context.Background(), 1)
	if cust.Email != "ramesh@example.com" {
		t.Errorf("customer email = %q, want saved on active customer", cust.Email)
	}
	if len(env.mailer.sent) != 0 {
		t.Error("no invoice was parked, nothing should be mailed")
	}
}

func TestProvideEmailRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentProvideEmail, ai.Entities{Email: "suresh dot com"})
	if res.Success || res.Error != CodeInvalidEmail {
		t.Fatalf("result = %+v, want INVALID_EMAIL failure", res)
	}
}

func TestSendInvoiceWhatsAppConfirmFlow(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Meena Devi", Items: invoiceItems()})
	env.run(t, "s1", ai.IntentConfirmInvoice, ai.Entities{})

	res := env.run(t, "s1", ai.IntentSendInvoice, ai.Entities{
		Customer: "Meena Devi", Channel: "whatsapp", Contact: "9900112233",
	})
	if !res.Success {
		t.Fatalf("send request failed: %s %s", res.Error, res.Message)
	}
	if data := res.Data.(SendConfirmData); data.Sent {
		t.Error("nothing may send before the spoken confirmation")
	}

	res = env.run(t, "s1", ai.IntentSendInvoice, ai.Entities{Confirm: "yes"})
	if !res.Success {
		t.Fatalf("confirmation failed: %s %s", res.Error, res.Message)
	}
	if data := res.Data.(SendConfirmData); !data.Sent {
		t.Error("confirmed send must report sent")
	}
	if len(env.wa.texts)+len(env.wa.docs) != 1 {
		t.Errorf("whatsapp sends = %d texts %d docs, want exactly one", len(env.wa.texts), len(env.wa.docs))
	}
	if env.conv.pendSend != nil {
		t.Error("pending send must clear after delivery")
	}
}

func TestSendInvoiceDeclined(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Meena Devi", Items: invoiceItems()})
	env.run(t, "s1", ai.IntentConfirmInvoice, ai.Entities{})
	env.run(t, "s1", ai.IntentSendInvoice, ai.Entities{
		Customer: "Meena Devi", Channel: "whatsapp", Contact: "9900112233",
	})

	res := env.run(t, "s1", ai.IntentSendInvoice, ai.Entities{Confirm: "no"})
	if !res.Success {
		t.Fatalf("decline failed: %s %s", res.Error, res.Message)
	}
	if data := res.Data.(SendConfirmData); !data.Cancelled {
		t.Error("declined send must report cancelled")
	}
	if len(env.wa.texts)+len(env.wa.docs) != 0 {
		t.Error("declined send must not deliver")
	}
}

func TestCancelInvoiceTwice(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "s1", ai.IntentCreateInvoice, ai.Entities{Customer: "Meena Devi", Items: invoiceItems()})
	env.run(t, "s1", ai.IntentConfirmInvoice, ai.Entities{})

	res := env.run(t, "s1", ai.IntentCancelInvoice, ai.Entities{Customer: "Meena Devi"})
	if !res.Success {
		t.Fatalf("cancel failed: %s %s", res.Error, res.Message)
	}
	if res.Data.(InvoiceData).Invoice.Status != core.InvoiceCancelled {
		t.Error("invoice must be cancelled")
	}
	bal, _ := env.customers.GetBalance(context.Background(), 4)
	if !bal.IsZero() {
		t.Errorf("balance after cancel = %s, want 0", bal)
	}

	// The cancelled invoice is no longer "latest", so a second cancel finds
	// nothing.
	res = env.run(t, "s1", ai.IntentCancelInvoice, ai.Entities{Customer: "Meena Devi"})
	if res.Success || res.Error != CodeNoInvoice {
		t.Fatalf("result = %+v, want NO_INVOICE failure", res)
	}
}

// ── Ledger ───────────────────────────────────────────────────────────────────

func TestRecordPaymentRequiresAmount(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentRecordPayment, ai.Entities{Customer: "Ramesh Kumar"})
	if res.Success || res.Error != CodeMissingAmount {
		t.Fatalf("result = %+v, want MISSING_AMOUNT failure", res)
	}
}

func TestRecordPaymentDefaultsToCash(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentRecordPayment, ai.Entities{Customer: "Ramesh Kumar", Amount: "150"})
	if !res.Success {
		t.Fatalf("payment failed: %s %s", res.Error, res.Message)
	}
	data := res.Data.(PaymentData)
	if data.Mode != core.PayCash {
		t.Errorf("mode = %q, want cash default", data.Mode)
	}
	if !data.Remaining.Equal(dec("350")) {
		t.Errorf("remaining = %s, want 350", data.Remaining)
	}
}

func TestAddCredit(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentAddCredit, ai.Entities{Customer: "Ramesh Kumar", Amount: "100"})
	if !res.Success {
		t.Fatalf("credit failed: %s %s", res.Error, res.Message)
	}
	data := res.Data.(CreditData)
	if !data.Total.Equal(dec("400")) {
		t.Errorf("balance after credit = %s, want 400", data.Total)
	}
}

func TestTotalPending(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentTotalPending, ai.Entities{})
	if !res.Success {
		t.Fatalf("total pending failed: %s %s", res.Error, res.Message)
	}
	data := res.Data.(TotalPendingData)
	if !data.Total.Equal(dec("500")) || data.Customers != 1 {
		t.Errorf("pending = %s over %d, want 500 over 1", data.Total, data.Customers)
	}
}

// ── Customers ────────────────────────────────────────────────────────────────

func TestCreateCustomerWithDetails(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentCreateCustomer, ai.Entities{
		Name: "Dinesh Yadav", Phone: "9811122233", Amount: "250",
	})
	if !res.Success {
		t.Fatalf("create failed: %s %s", res.Error, res.Message)
	}
	data := res.Data.(CustomerData)
	if !data.Created {
		t.Error("payload must mark the customer as newly created")
	}
	if data.Customer.Phone != "9811122233" {
		t.Errorf("phone = %q, want saved", data.Customer.Phone)
	}
	if !data.Customer.Balance.Equal(dec("250")) {
		t.Errorf("opening balance = %s, want 250", data.Customer.Balance)
	}
	// The new customer becomes the session's active customer.
	follow := env.run(t, "s1", ai.IntentCheckBalance, ai.Entities{})
	if !follow.Success || follow.Data.(BalanceData).CustomerID != data.Customer.ID {
		t.Errorf("follow-up = %+v, want new customer active", follow)
	}
}

func TestCreateCustomerFlagsNearDuplicate(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentCreateCustomer, ai.Entities{Name: "Ramesh Kumar"})
	if res.Success || res.Error != CodeDuplicateFound {
		t.Fatalf("result = %+v, want DUPLICATE_FOUND failure", res)
	}
	data, okd := res.Data.(CandidatesData)
	if !okd || len(data.Customers) == 0 {
		t.Fatalf("payload = %+v, want existing near-matches", res.Data)
	}
}

func TestUpdateCustomerNeedsAField(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentUpdateCustomer, ai.Entities{Customer: "Ramesh Kumar"})
	if res.Success || res.Error != CodeValidation {
		t.Fatalf("result = %+v, want VALIDATION_ERROR failure", res)
	}
}

func TestUpdateCustomerPhone(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentUpdateCustomerPhone, ai.Entities{Customer: "Ramesh Kumar", Phone: "9000000001"})
	if !res.Success {
		t.Fatalf("update failed: %s %s", res.Error, res.Message)
	}
	if res.Data.(CustomerData).Customer.Phone != "9000000001" {
		t.Error("phone not updated")
	}
}

// ── Delete with OTP ──────────────────────────────────────────────────────────

func TestDeleteCustomerDataRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	res := env.engine.Execute(context.Background(), Request{
		SessionID: "s1", Intent: ai.IntentDeleteCustomerData,
		Entities: ai.Entities{Customer: "Ramesh Kumar"}, OperatorRole: "operator",
	})
	if res.Success || res.Error != CodeUnauthorized {
		t.Fatalf("result = %+v, want UNAUTHORIZED failure", res)
	}
	if len(env.mailer.sent) != 0 {
		t.Error("no OTP may go out for a non-admin")
	}
}

func TestDeleteCustomerDataTwoStep(t *testing.T) {
	env := newTestEnv(t)
	admin := func(ent ai.Entities) Result {
		return env.engine.Execute(context.Background(), Request{
			SessionID: "s1", Intent: ai.IntentDeleteCustomerData,
			Entities: ent, OperatorRole: "admin",
		})
	}

	res := admin(ai.Entities{Customer: "Ramesh Kumar"})
	if res.Success || res.Error != CodeOTPSent {
		t.Fatalf("first call = %+v, want OTP_SENT", res)
	}
	if len(env.mailer.sent) != 1 || env.mailer.sent[0].To != "admin@shop.test" {
		t.Fatalf("mailer = %+v, want OTP mailed to the admin address", env.mailer.sent)
	}
	code := env.mailer.sent[0].OTP
	if len(code) != 6 {
		t.Fatalf("otp %q, want 6 digits", code)
	}

	if res := admin(ai.Entities{Customer: "Ramesh Kumar", Confirmation: "000000"}); res.Success || res.Error != CodeInvalidOTP {
		t.Fatalf("wrong code = %+v, want INVALID_OTP", res)
	}

	res = admin(ai.Entities{Customer: "Ramesh Kumar", Confirmation: code})
	if !res.Success {
		t.Fatalf("delete failed: %s %s", res.Error, res.Message)
	}
	if res.Data.(DeleteData).CustomerName != "Ramesh Kumar" {
		t.Errorf("payload = %+v, want the deleted customer named", res.Data)
	}
	if len(env.queue.cancelled) == 0 {
		t.Error("scheduled reminder jobs must be cancelled on delete")
	}
	if _, err := env.customers.GetCustomer(context.Background(), 1); err == nil {
		t.Error("customer must be gone")
	}

	// The code is single-use.
	if res := admin(ai.Entities{Customer: "Suresh Sharma", Confirmation: code}); res.Success {
		t.Error("a consumed code must not delete another customer")
	}
}

// ── Reminders ────────────────────────────────────────────────────────────────

func TestCreateReminderValidation(t *testing.T) {
	env := newTestEnv(t)
	future := time.Now().Add(24 * time.Hour).Format(time.RFC3339)

	if res := env.run(t, "s1", ai.IntentCreateReminder, ai.Entities{Customer: "Ramesh Kumar", Datetime: future}); res.Error != CodeMissingAmount {
		t.Errorf("no amount: error = %q, want MISSING_AMOUNT", res.Error)
	}
	if res := env.run(t, "s1", ai.IntentCreateReminder, ai.Entities{Customer: "Ramesh Kumar", Amount: "500"}); res.Error != CodeMissingDatetime {
		t.Errorf("no datetime: error = %q, want MISSING_DATETIME", res.Error)
	}
	past := time.Now().Add(-time.Hour).Format(time.RFC3339)
	if res := env.run(t, "s1", ai.IntentCreateReminder, ai.Entities{Customer: "Ramesh Kumar", Amount: "500", Datetime: past}); res.Error != CodeMissingDatetime {
		t.Errorf("past datetime: error = %q, want MISSING_DATETIME", res.Error)
	}
	// Ramesh Gupta has no phone, so WhatsApp delivery is impossible.
	if res := env.run(t, "s1", ai.IntentCreateReminder, ai.Entities{Customer: "Ramesh Gupta", Amount: "500", Datetime: future}); res.Error != CodeMissingPhone {
		t.Errorf("no phone: error = %q, want MISSING_PHONE", res.Error)
	}
}

func TestReminderLifecycle(t *testing.T) {
	env := newTestEnv(t)
	future := time.Now().Add(24 * time.Hour).Format(time.RFC3339)

	res := env.run(t, "s1", ai.IntentCreateReminder, ai.Entities{Customer: "Ramesh Kumar", Amount: "500", Datetime: future})
	if !res.Success {
		t.Fatalf("create failed: %s %s", res.Error, res.Message)
	}
	rem := res.Data.(ReminderData).Reminder
	if rem.Status != core.ReminderScheduled || rem.Channel != "whatsapp" {
		t.Errorf("reminder = %+v, want scheduled whatsapp", rem)
	}

	later := time.Now().Add(48 * time.Hour).Format(time.RFC3339)
	res = env.run(t, "s1", ai.IntentModifyReminder, ai.Entities{Customer: "Ramesh Kumar", Datetime: later})
	if !res.Success {
		t.Fatalf("reschedule failed: %s %s", res.Error, res.Message)
	}

	res = env.run(t, "s1", ai.IntentListReminders, ai.Entities{})
	if !res.Success || res.Data.(ReminderListData).Count != 1 {
		t.Fatalf("list = %+v, want one scheduled reminder", res)
	}

	res = env.run(t, "s1", ai.IntentCancelReminder, ai.Entities{Customer: "Ramesh Kumar"})
	if !res.Success {
		t.Fatalf("cancel failed: %s %s", res.Error, res.Message)
	}
	res = env.run(t, "s1", ai.IntentCancelReminder, ai.Entities{Customer: "Ramesh Kumar"})
	if res.Success || res.Error != CodeNoReminder {
		t.Fatalf("second cancel = %+v, want NO_REMINDER", res)
	}
}

// ── Misc ─────────────────────────────────────────────────────────────────────

func TestCheckStock(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentCheckStock, ai.Entities{Product: "chawal"})
	if !res.Success {
		t.Fatalf("check stock failed: %s %s", res.Error, res.Message)
	}
	if !res.Data.(StockData).Product.Stock.Equal(dec("50")) {
		t.Errorf("stock = %s, want 50", res.Data.(StockData).Product.Stock)
	}

	res = env.run(t, "s1", ai.IntentCheckStock, ai.Entities{Product: "kaju katli"})
	if res.Success || res.Error != CodeProductNotFound {
		t.Fatalf("result = %+v, want PRODUCT_NOT_FOUND failure", res)
	}
}

func TestSwitchLanguageAndRecording(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentSwitchLanguage, ai.Entities{Language: "en"})
	if !res.Success || res.Data.(LanguageData).Language != "en" {
		t.Fatalf("switch language = %+v, want en", res)
	}
	if lang, _ := env.conv.SessionContext(context.Background(), "s1", sessionLanguageKey); lang != "en" {
		t.Errorf("session language = %q, want persisted", lang)
	}

	env.run(t, "s1", ai.IntentStartRecording, ai.Entities{})
	if rec, _ := env.conv.SessionContext(context.Background(), "s1", sessionRecordingKey); rec != "true" {
		t.Errorf("recording flag = %q, want true", rec)
	}
	env.run(t, "s1", ai.IntentStopRecording, ai.Entities{})
	if rec, _ := env.conv.SessionContext(context.Background(), "s1", sessionRecordingKey); rec != "false" {
		t.Errorf("recording flag = %q, want false", rec)
	}
}

func TestUnknownIntent(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", "MAKE_CHAI", ai.Entities{})
	if res.Success || res.Error != CodeUnknownIntent {
		t.Fatalf("result = %+v, want UNKNOWN_INTENT failure", res)
	}
}

func TestDailySummary(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "s1", ai.IntentDailySummary, ai.Entities{})
	if !res.Success {
		t.Fatalf("summary failed: %s %s", res.Error, res.Message)
	}
	data := res.Data.(SummaryData)
	if data.Summary.InvoiceCount != 3 || !data.Summary.SalesTotal.Equal(dec("1200")) {
		t.Errorf("summary = %+v, want the seeded figures", data.Summary)
	}
}
