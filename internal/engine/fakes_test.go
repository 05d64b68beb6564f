package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"kirana-voice/internal/conversation"
	"kirana-voice/internal/core"
	"kirana-voice/internal/names"
)

// In-memory fakes for every engine dependency. Behaviour mirrors the real
// services closely enough for dispatcher semantics: ranking reuses
// core.RankCustomers, draft pricing reuses core.PriceDraft.

type fakeCustomers struct {
	customers map[int64]*core.Customer
	nextID    int64
}

func newFakeCustomers(seed ...core.Customer) *fakeCustomers {
	f := &fakeCustomers{customers: make(map[int64]*core.Customer), nextID: 1}
	for _, c := range seed {
		c := c
		if c.NameNormalized == "" {
			c.NameNormalized = names.Normalize(c.Name)
		}
		c.IsActive = true
		f.customers[c.ID] = &c
		if c.ID >= f.nextID {
			f.nextID = c.ID + 1
		}
	}
	return f
}

func (f *fakeCustomers) all() []core.Customer {
	var out []core.Customer
	for id := int64(1); id < f.nextID; id++ {
		if c, okc := f.customers[id]; okc && c.IsActive {
			out = append(out, *c)
		}
	}
	return out
}

func (f *fakeCustomers) CreateCustomer(_ context.Context, name, phone, nickname, landmark string) (*core.Customer, error) {
	c := &core.Customer{
		ID: f.nextID, Name: name, NameNormalized: names.Normalize(name),
		Phone: phone, Nickname: nickname, Landmark: landmark, IsActive: true,
	}
	f.customers[c.ID] = c
	f.nextID++
	return c, nil
}

func (f *fakeCustomers) CreateCustomerFast(ctx context.Context, name string) (*core.Customer, []core.RankedCustomer, error) {
	similar, _ := f.FindSimilar(ctx, name, 0.85)
	if len(similar) > 0 {
		return nil, similar, nil
	}
	c, err := f.CreateCustomer(ctx, name, "", "", "")
	return c, nil, err
}

func (f *fakeCustomers) GetCustomer(_ context.Context, id int64) (*core.Customer, error) {
	c, okc := f.customers[id]
	if !okc || !c.IsActive {
		return nil, core.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCustomers) UpdateCustomer(_ context.Context, id int64, upd core.CustomerUpdate) (*core.Customer, error) {
	c, okc := f.customers[id]
	if !okc {
		return nil, core.ErrCustomerNotFound
	}
	if upd.Phone != nil {
		c.Phone = *upd.Phone
	}
	if upd.Email != nil {
		c.Email = *upd.Email
	}
	if upd.Nickname != nil {
		c.Nickname = *upd.Nickname
	}
	if upd.Landmark != nil {
		c.Landmark = *upd.Landmark
	}
	if upd.GSTIN != nil {
		c.GSTIN = *upd.GSTIN
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCustomers) UpdatePhone(ctx context.Context, id int64, phone string) (*core.Customer, error) {
	return f.UpdateCustomer(ctx, id, core.CustomerUpdate{Phone: &phone})
}

func (f *fakeCustomers) SearchCustomer(_ context.Context, query string) ([]core.RankedCustomer, error) {
	return core.RankCustomers(query, f.all()), nil
}

func (f *fakeCustomers) SearchCustomerWarm(ctx context.Context, query string) ([]core.RankedCustomer, []core.Customer, error) {
	ranked, err := f.SearchCustomer(ctx, query)
	return ranked, f.all(), err
}

func (f *fakeCustomers) FindSimilar(_ context.Context, name string, threshold float64) ([]core.RankedCustomer, error) {
	if threshold <= 0 {
		threshold = names.DefaultThreshold
	}
	var out []core.RankedCustomer
	for _, c := range f.all() {
		if r := names.Score(name, c.Name); r.Score >= threshold {
			out = append(out, core.RankedCustomer{Customer: c, Score: r.Score, MatchedBy: r.MatchType})
		}
	}
	return out, nil
}

func (f *fakeCustomers) GetBalance(_ context.Context, id int64) (decimal.Decimal, error) {
	c, okc := f.customers[id]
	if !okc {
		return decimal.Zero, core.ErrCustomerNotFound
	}
	return c.Balance, nil
}

func (f *fakeCustomers) GetBalanceFast(ctx context.Context, id int64) (decimal.Decimal, error) {
	return f.GetBalance(ctx, id)
}

func (f *fakeCustomers) ListBalances(_ context.Context) ([]core.CustomerBalance, error) {
	var out []core.CustomerBalance
	for _, c := range f.all() {
		if c.Balance.Sign() > 0 {
			out = append(out, core.CustomerBalance{CustomerID: c.ID, Name: c.Name, Phone: c.Phone, Balance: c.Balance})
		}
	}
	return out, nil
}

func (f *fakeCustomers) TotalPending(_ context.Context) (decimal.Decimal, int, error) {
	total, count := decimal.Zero, 0
	for _, c := range f.all() {
		if c.Balance.Sign() > 0 {
			total = total.Add(c.Balance)
			count++
		}
	}
	return total, count, nil
}

func (f *fakeCustomers) DeleteCustomerData(_ context.Context, id int64) (*core.DeleteCounts, []string, error) {
	if _, okc := f.customers[id]; !okc {
		return nil, nil, core.ErrCustomerNotFound
	}
	delete(f.customers, id)
	return &core.DeleteCounts{Invoices: 1, LedgerEntries: 2}, []string{"job-1"}, nil
}

// ── Products ─────────────────────────────────────────────────────────────────

type fakeProducts struct {
	products map[string]*core.Product
	nextID   int64
}

func newFakeProducts(seed ...core.Product) *fakeProducts {
	f := &fakeProducts{products: make(map[string]*core.Product), nextID: 1}
	for _, p := range seed {
		p := p
		p.IsActive = true
		if p.ID == 0 {
			p.ID = f.nextID
		}
		f.nextID = p.ID + 1
		f.products[names.Normalize(p.Name)] = &p
	}
	return f
}

func (f *fakeProducts) CreateProduct(_ context.Context, in core.ProductInput) (*core.Product, error) {
	p := &core.Product{ID: f.nextID, Name: in.Name, Unit: in.Unit, Price: in.Price,
		Stock: in.Stock, GSTRate: in.GSTRate, CessRate: in.CessRate, GSTExempt: in.GSTExempt, IsActive: true}
	f.nextID++
	f.products[names.Normalize(in.Name)] = p
	return p, nil
}

func (f *fakeProducts) GetProduct(_ context.Context, id int64) (*core.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, core.ErrProductNotFound
}

func (f *fakeProducts) ListProducts(_ context.Context) ([]core.Product, error) {
	var out []core.Product
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProducts) UpdateProduct(_ context.Context, id int64, price, stock, gstRate *decimal.Decimal, gstExempt *bool) (*core.Product, error) {
	p, err := f.GetProduct(context.Background(), id)
	if err != nil {
		return nil, err
	}
	if price != nil {
		p.Price = *price
	}
	if stock != nil {
		p.Stock = *stock
	}
	if gstRate != nil {
		p.GSTRate = *gstRate
	}
	if gstExempt != nil {
		p.GSTExempt = *gstExempt
	}
	return p, nil
}

func (f *fakeProducts) LowStock(_ context.Context) ([]core.Product, error) { return nil, nil }

func (f *fakeProducts) FindProduct(_ context.Context, name string) (*core.Product, error) {
	if p, okp := f.products[names.Normalize(name)]; okp {
		return p, nil
	}
	return nil, core.ErrProductNotFound
}

func (f *fakeProducts) ResolveOrCreate(ctx context.Context, _ pgx.Tx, name, unit string) (*core.Product, bool, error) {
	if p, err := f.FindProduct(ctx, name); err == nil {
		return p, false, nil
	}
	p, err := f.CreateProduct(ctx, core.ProductInput{
		Name: name, Unit: unit, Price: decimal.Zero, Stock: decimal.NewFromInt(9999),
	})
	if err != nil {
		return nil, false, err
	}
	p.AutoCreated = true
	return p, true, nil
}

// ── Invoices ─────────────────────────────────────────────────────────────────

type fakeInvoices struct {
	products  *fakeProducts
	customers *fakeCustomers
	invoices  map[int64]*core.Invoice
	nextID    int64
	seq       int
	confirmed int
	failNext  error
}

func newFakeInvoices(products *fakeProducts, customers *fakeCustomers) *fakeInvoices {
	return &fakeInvoices{products: products, customers: customers, invoices: make(map[int64]*core.Invoice), nextID: 1}
}

func (f *fakeInvoices) PreviewInvoice(ctx context.Context, customer *core.Customer, items []core.ItemInput, withGST bool, supplyType string) (*core.InvoicePreview, error) {
	if len(items) == 0 {
		return nil, core.ErrEmptyInvoice
	}
	preview := &core.InvoicePreview{
		DraftID:       uuid.NewString(),
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		InputItems:    items,
		WithGST:       withGST,
		SupplyType:    supplyType,
		CreatedAt:     time.Now(),
	}
	for _, in := range items {
		prod, created, err := f.products.ResolveOrCreate(ctx, nil, in.Name, in.Unit)
		if err != nil {
			return nil, err
		}
		if created {
			preview.AutoCreated = append(preview.AutoCreated, prod.Name)
		}
		price := prod.Price
		if in.UnitPrice.Sign() > 0 {
			price = in.UnitPrice
		}
		preview.Items = append(preview.Items, core.PreviewItem{
			ProductID: prod.ID, ProductName: prod.Name, Unit: prod.Unit,
			Quantity: in.Quantity, UnitPrice: price,
			GSTRate: prod.GSTRate, CessRate: prod.CessRate, GSTExempt: prod.GSTExempt,
		})
	}
	core.PriceDraft(preview)
	return preview, nil
}

func (f *fakeInvoices) ConfirmInvoice(_ context.Context, preview *core.InvoicePreview, notes string) (*core.Invoice, error) {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	f.seq++
	f.confirmed++
	inv := &core.Invoice{
		ID:           f.nextID,
		InvoiceNo:    core.FormatInvoiceNo(core.FinancialYearAt(time.Now(), time.UTC), f.seq),
		CustomerID:   preview.CustomerID,
		CustomerName: preview.CustomerName,
		Status:       core.InvoicePending,
		WithGST:      preview.WithGST,
		Subtotal:     preview.Subtotal,
		CGST:         preview.CGST,
		SGST:         preview.SGST,
		IGST:         preview.IGST,
		Cess:         preview.Cess,
		GrandTotal:   preview.GrandTotal,
		Notes:        notes,
		CreatedAt:    time.Now(),
	}
	for _, it := range preview.Items {
		pid := it.ProductID
		inv.Items = append(inv.Items, core.InvoiceItem{
			InvoiceID: inv.ID, ProductID: &pid, ProductName: it.ProductName,
			Quantity: it.Quantity, UnitPrice: it.UnitPrice,
			LineSubtotal: it.LineSubtotal, LineTotal: it.LineTotal,
		})
	}
	f.invoices[inv.ID] = inv
	f.nextID++
	if c, okc := f.customers.customers[preview.CustomerID]; okc {
		c.Balance = c.Balance.Add(preview.GrandTotal)
	}
	return inv, nil
}

func (f *fakeInvoices) CancelInvoice(_ context.Context, id int64) (*core.Invoice, error) {
	inv, oki := f.invoices[id]
	if !oki {
		return nil, core.ErrInvoiceNotFound
	}
	if inv.Status == core.InvoiceCancelled {
		return nil, core.ErrAlreadyCancelled
	}
	inv.Status = core.InvoiceCancelled
	if c, okc := f.customers.customers[inv.CustomerID]; okc {
		c.Balance = c.Balance.Sub(inv.GrandTotal)
	}
	return inv, nil
}

func (f *fakeInvoices) GetInvoice(_ context.Context, id int64) (*core.Invoice, error) {
	if inv, oki := f.invoices[id]; oki {
		return inv, nil
	}
	return nil, core.ErrInvoiceNotFound
}

func (f *fakeInvoices) LatestForCustomer(_ context.Context, customerID int64) (*core.Invoice, error) {
	var latest *core.Invoice
	for _, inv := range f.invoices {
		if inv.CustomerID == customerID && inv.Status != core.InvoiceCancelled {
			if latest == nil || inv.ID > latest.ID {
				latest = inv
			}
		}
	}
	if latest == nil {
		return nil, core.ErrInvoiceNotFound
	}
	return latest, nil
}

func (f *fakeInvoices) ListInvoices(_ context.Context, customerID int64, _ int) ([]core.Invoice, error) {
	var out []core.Invoice
	for _, inv := range f.invoices {
		if customerID == 0 || inv.CustomerID == customerID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeInvoices) SetPDF(_ context.Context, id int64, key, url string) error {
	if inv, oki := f.invoices[id]; oki {
		inv.PDFObjectKey, inv.PDFURL = key, url
	}
	return nil
}

func (f *fakeInvoices) MarkSent(_ context.Context, id int64, via, to string) error {
	if inv, oki := f.invoices[id]; oki {
		inv.SentVia, inv.SentTo = via, to
	}
	return nil
}

// ── Ledger ───────────────────────────────────────────────────────────────────

type fakeLedger struct {
	customers *fakeCustomers
	entries   []core.LedgerEntry
}

func (f *fakeLedger) apply(customerID int64, entryType string, amount decimal.Decimal, mode string) (*core.LedgerEntry, error) {
	c, okc := f.customers.customers[customerID]
	if !okc {
		return nil, core.ErrCustomerNotFound
	}
	if entryType == core.EntryCredit {
		c.Balance = c.Balance.Sub(amount)
	} else {
		c.Balance = c.Balance.Add(amount)
	}
	e := core.LedgerEntry{
		ID: int64(len(f.entries) + 1), CustomerID: customerID, EntryType: entryType,
		Amount: amount, BalanceAfter: c.Balance, PaymentMode: mode, CreatedAt: time.Now(),
	}
	f.entries = append(f.entries, e)
	return &e, nil
}

func (f *fakeLedger) RecordPayment(_ context.Context, customerID int64, amount decimal.Decimal, mode, _ string) (*core.LedgerEntry, error) {
	return f.apply(customerID, core.EntryCredit, amount, mode)
}

func (f *fakeLedger) AddCredit(_ context.Context, customerID int64, amount decimal.Decimal, _ string) (*core.LedgerEntry, error) {
	return f.apply(customerID, core.EntryCredit, amount, "")
}

func (f *fakeLedger) AddOpeningBalance(_ context.Context, customerID int64, amount decimal.Decimal) (*core.LedgerEntry, error) {
	return f.apply(customerID, core.EntryOpening, amount, "")
}

func (f *fakeLedger) EntriesForCustomer(_ context.Context, customerID int64, _ int) ([]core.LedgerEntry, error) {
	var out []core.LedgerEntry
	for _, e := range f.entries {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListEntries(_ context.Context, _ int) ([]core.LedgerEntry, error) {
	return f.entries, nil
}

func (f *fakeLedger) ListPayments(_ context.Context, _ int64, _ int) ([]core.Payment, error) {
	return nil, nil
}

// ── Reminders ────────────────────────────────────────────────────────────────

type fakeReminders struct {
	reminders map[int64]*core.Reminder
	nextID    int64
}

func newFakeReminders() *fakeReminders {
	return &fakeReminders{reminders: make(map[int64]*core.Reminder), nextID: 1}
}

func (f *fakeReminders) CreateReminder(_ context.Context, customerID int64, remindAt time.Time, notes, channel string) (*core.Reminder, error) {
	r := &core.Reminder{
		ID: f.nextID, CustomerID: customerID, RemindAt: remindAt, Notes: notes,
		Channel: channel, Status: core.ReminderScheduled, ExternalJobID: fmt.Sprintf("job-%d", f.nextID),
	}
	f.reminders[r.ID] = r
	f.nextID++
	return r, nil
}

func (f *fakeReminders) next(customerID int64) *core.Reminder {
	var next *core.Reminder
	for _, r := range f.reminders {
		if r.CustomerID == customerID && r.Status == core.ReminderScheduled {
			if next == nil || r.RemindAt.Before(next.RemindAt) {
				next = r
			}
		}
	}
	return next
}

func (f *fakeReminders) CancelNext(_ context.Context, customerID int64) (*core.Reminder, error) {
	r := f.next(customerID)
	if r == nil {
		return nil, core.ErrReminderNotFound
	}
	r.Status = core.ReminderCancelled
	return r, nil
}

func (f *fakeReminders) Cancel(_ context.Context, id int64) (*core.Reminder, error) {
	r, okr := f.reminders[id]
	if !okr || r.Status != core.ReminderScheduled {
		return nil, core.ErrReminderNotFound
	}
	r.Status = core.ReminderCancelled
	return r, nil
}

func (f *fakeReminders) RescheduleNext(_ context.Context, customerID int64, remindAt time.Time) (*core.Reminder, error) {
	r := f.next(customerID)
	if r == nil {
		return nil, core.ErrReminderNotFound
	}
	r.RemindAt = remindAt
	return r, nil
}

func (f *fakeReminders) ListReminders(_ context.Context, customerID int64, status string) ([]core.Reminder, error) {
	var out []core.Reminder
	for _, r := range f.reminders {
		if (customerID == 0 || r.CustomerID == customerID) && (status == "" || r.Status == status) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReminders) GetReminder(_ context.Context, id int64) (*core.Reminder, error) {
	if r, okr := f.reminders[id]; okr {
		return r, nil
	}
	return nil, core.ErrReminderNotFound
}

func (f *fakeReminders) MarkSent(_ context.Context, id int64) error {
	if r, okr := f.reminders[id]; okr {
		r.Status = core.ReminderSent
	}
	return nil
}

func (f *fakeReminders) MarkFailed(_ context.Context, id int64) error {
	if r, okr := f.reminders[id]; okr {
		r.Status = core.ReminderFailed
	}
	return nil
}

// ── Summary, queue, mailer, whatsapp ─────────────────────────────────────────

type fakeSummary struct{ summary core.DailySummary }

func (f *fakeSummary) DailySummary(_ context.Context, day time.Time) (*core.DailySummary, error) {
	s := f.summary
	s.Date = day.Format("2006-01-02")
	return &s, nil
}

type fakeQueue struct{ cancelled []string }

func (f *fakeQueue) Enqueue(_ context.Context, r *core.Reminder) (string, error) {
	return "job-" + fmt.Sprint(r.ID), nil
}

func (f *fakeQueue) Cancel(_ context.Context, jobID string) error {
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

type sentMail struct {
	To        string
	InvoiceNo string
	OTP       string
}

type fakeMailer struct {
	sent    []sentMail
	failing bool
}

func (f *fakeMailer) SendInvoice(_ context.Context, to string, inv *core.Invoice) error {
	if f.failing {
		return fmt.Errorf("smtp down")
	}
	f.sent = append(f.sent, sentMail{To: to, InvoiceNo: inv.InvoiceNo})
	return nil
}

func (f *fakeMailer) SendDeleteOTP(_ context.Context, to, _, code string) error {
	if f.failing {
		return fmt.Errorf("smtp down")
	}
	f.sent = append(f.sent, sentMail{To: to, OTP: code})
	return nil
}

type fakeWhatsApp struct{ texts, docs []string }

func (f *fakeWhatsApp) SendText(_ context.Context, phone, text string) error {
	f.texts = append(f.texts, phone+": "+text)
	return nil
}

func (f *fakeWhatsApp) SendDocument(_ context.Context, phone, url, _ string) error {
	f.docs = append(f.docs, phone+": "+url)
	return nil
}

// ── Conversation store ───────────────────────────────────────────────────────

// fakeConv is an in-memory conversation.Store. Session logic delegates to
// the real SessionMemory methods so dedupe and caps behave identically.
type fakeConv struct {
	sessions    map[string]*conversation.SessionMemory
	drafts      []core.InvoicePreview
	pendEmail   *conversation.PendingEmail
	pendSend    *conversation.PendingSendConfirm
	otps        map[int64]string
	savedEmails int
}

func newFakeConv() *fakeConv {
	return &fakeConv{sessions: make(map[string]*conversation.SessionMemory), otps: make(map[int64]string)}
}

func (f *fakeConv) session(id string) *conversation.SessionMemory {
	if mem, okm := f.sessions[id]; okm {
		return mem
	}
	mem := &conversation.SessionMemory{SessionID: id}
	f.sessions[id] = mem
	return mem
}

func (f *fakeConv) LoadSession(_ context.Context, id string) (*conversation.SessionMemory, error) {
	return f.session(id), nil
}

func (f *fakeConv) SaveSession(_ context.Context, mem *conversation.SessionMemory) error {
	f.sessions[mem.SessionID] = mem
	return nil
}

func (f *fakeConv) AppendUserMessage(_ context.Context, id, text, intent string, entities map[string]any) (*conversation.SessionMemory, error) {
	mem := f.session(id)
	mem.AppendMessage(conversation.Message{Role: conversation.RoleUser, Content: text, Intent: intent, Entities: entities, Timestamp: time.Now()})
	if name, okn := entities["customer"].(string); okn && name != "" {
		mem.TrackCustomerMention(0, name, time.Now())
	} else if name, okn := entities["name"].(string); okn && name != "" {
		mem.TrackCustomerMention(0, name, time.Now())
	}
	return mem, nil
}

func (f *fakeConv) AppendAssistantMessage(_ context.Context, id, text string) error {
	f.session(id).AppendMessage(conversation.Message{Role: conversation.RoleAssistant, Content: text, Timestamp: time.Now()})
	return nil
}

func (f *fakeConv) RecentMessages(_ context.Context, id string, n int) ([]conversation.Message, error) {
	return f.session(id).RecentMessages(n), nil
}

func (f *fakeConv) SetActiveCustomer(_ context.Context, id string, customerID int64, name string) error {
	f.session(id).SetActive(customerID, name, time.Now())
	return nil
}

func (f *fakeConv) ActiveCustomer(_ context.Context, id string) (*conversation.ActiveCustomer, error) {
	return f.session(id).Active, nil
}

func (f *fakeConv) SwitchToPreviousCustomer(_ context.Context, id string) (*conversation.CustomerContext, error) {
	cc := f.session(id).SwitchToPrevious(time.Now())
	if cc == nil {
		return nil, conversation.ErrNoPreviousCustomer
	}
	return cc, nil
}

func (f *fakeConv) SwitchToCustomerByName(_ context.Context, id, query string) (*conversation.CustomerContext, error) {
	cc := f.session(id).SwitchToCustomerByName(query, time.Now())
	if cc == nil {
		return nil, conversation.ErrNoSuchCustomer
	}
	return cc, nil
}

func (f *fakeConv) FindMatchingCustomers(_ context.Context, id, query string, threshold float64) ([]*conversation.CustomerContext, error) {
	return f.session(id).FindMatching(query, threshold), nil
}

func (f *fakeConv) UpdateCustomerContext(_ context.Context, id, name string, upd conversation.ContextUpdate) error {
	f.session(id).UpdateCustomerContext(name, upd)
	return nil
}

func (f *fakeConv) FormatContextPrompt(_ context.Context, _ string, _ int) (string, error) {
	return "", nil
}

func (f *fakeConv) SetSessionContext(_ context.Context, id, key, value string) error {
	f.session(id).SetContext(key, value)
	return nil
}

func (f *fakeConv) SessionContext(_ context.Context, id, key string) (string, error) {
	return f.session(id).Context[key], nil
}

func (f *fakeConv) AddDraft(_ context.Context, draft *core.InvoicePreview) error {
	kept := f.drafts[:0]
	for _, d := range f.drafts {
		if d.CustomerID != draft.CustomerID {
			kept = append(kept, d)
		}
	}
	f.drafts = append(kept, *draft)
	return nil
}

func (f *fakeConv) UpdateDraft(_ context.Context, draft *core.InvoicePreview) error {
	for i, d := range f.drafts {
		if d.DraftID == draft.DraftID {
			f.drafts[i] = *draft
			return nil
		}
	}
	return conversation.ErrNoDraft
}

func (f *fakeConv) RemoveDraft(_ context.Context, draftID string) error {
	kept := f.drafts[:0]
	for _, d := range f.drafts {
		if d.DraftID != draftID {
			kept = append(kept, d)
		}
	}
	f.drafts = kept
	return nil
}

func (f *fakeConv) ListDrafts(_ context.Context) ([]core.InvoicePreview, error) {
	return append([]core.InvoicePreview(nil), f.drafts...), nil
}

func (f *fakeConv) FirstDraft(_ context.Context) (*core.InvoicePreview, error) {
	if len(f.drafts) == 0 {
		return nil, conversation.ErrNoDraft
	}
	return &f.drafts[0], nil
}

func (f *fakeConv) DraftByID(_ context.Context, draftID string) (*core.InvoicePreview, error) {
	for i := range f.drafts {
		if f.drafts[i].DraftID == draftID {
			d := f.drafts[i]
			return &d, nil
		}
	}
	return nil, conversation.ErrNoDraft
}

func (f *fakeConv) DraftForCustomer(_ context.Context, customerID int64) (*core.InvoicePreview, error) {
	for i := range f.drafts {
		if f.drafts[i].CustomerID == customerID {
			d := f.drafts[i]
			return &d, nil
		}
	}
	return nil, conversation.ErrNoDraft
}

func (f *fakeConv) ClearDrafts(_ context.Context) error {
	f.drafts = nil
	return nil
}

func (f *fakeConv) SetPendingEmail(_ context.Context, p *conversation.PendingEmail) error {
	f.pendEmail = p
	return nil
}

func (f *fakeConv) LoadPendingEmail(_ context.Context) (*conversation.PendingEmail, error) {
	if f.pendEmail == nil {
		return nil, conversation.ErrNoPending
	}
	return f.pendEmail, nil
}

func (f *fakeConv) ClearPendingEmail(_ context.Context) error {
	f.pendEmail = nil
	return nil
}

func (f *fakeConv) SetPendingSendConfirm(_ context.Context, p *conversation.PendingSendConfirm) error {
	f.pendSend = p
	return nil
}

func (f *fakeConv) LoadPendingSendConfirm(_ context.Context) (*conversation.PendingSendConfirm, error) {
	if f.pendSend == nil {
		return nil, conversation.ErrNoPending
	}
	return f.pendSend, nil
}

func (f *fakeConv) ClearPendingSendConfirm(_ context.Context) error {
	f.pendSend = nil
	return nil
}

func (f *fakeConv) SetDeleteOTP(_ context.Context, customerID int64, code string) error {
	f.otps[customerID] = code
	return nil
}

func (f *fakeConv) VerifyDeleteOTP(_ context.Context, customerID int64, code string) (bool, error) {
	stored, oks := f.otps[customerID]
	if !oks || stored != code {
		return false, nil
	}
	delete(f.otps, customerID)
	return true, nil
}

func (f *fakeConv) ClearDeleteOTP(_ context.Context, customerID int64) error {
	delete(f.otps, customerID)
	return nil
}
