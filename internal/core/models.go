package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice status lifecycle. Drafts never reach the database; they live in
// the conversation store until confirmed.
const (
	InvoicePending   = "pending"
	InvoicePaid      = "paid"
	InvoiceCancelled = "cancelled"
)

// Ledger entry types. DEBIT means the customer owes more (udhaar), CREDIT
// means the balance went down, OPENING_BALANCE carries forward what the
// customer already owed when they were added to the khata.
const (
	EntryDebit   = "DEBIT"
	EntryCredit  = "CREDIT"
	EntryOpening = "OPENING_BALANCE"
)

// Ledger entry reference types.
const (
	RefInvoice      = "INVOICE"
	RefPayment      = "PAYMENT"
	RefCancellation = "CANCELLATION"
)

// Payment methods.
const (
	PayCash  = "cash"
	PayUPI   = "upi"
	PayCard  = "card"
	PayOther = "other"
)

// Reminder lifecycle.
const (
	ReminderScheduled = "SCHEDULED"
	ReminderSent      = "SENT"
	ReminderFailed    = "FAILED"
	ReminderCancelled = "CANCELLED"
)

// GST supply types.
const (
	SupplyIntrastate = "INTRASTATE"
	SupplyInterstate = "INTERSTATE"
)

type Customer struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	NameNormalized string          `json:"-"`
	Phone          string          `json:"phone"`
	Nickname       string          `json:"nickname,omitempty"`
	Landmark       string          `json:"landmark,omitempty"`
	Email          string          `json:"email,omitempty"`
	GSTIN          string          `json:"gstin,omitempty"`
	Balance        decimal.Decimal `json:"balance"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	VisitCount     int             `json:"visit_count"`
	LastVisit      *time.Time      `json:"last_visit,omitempty"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RankedCustomer is a search hit with its ranking score and the rule that
// produced it (phone, exact, contains, nickname, landmark, fuzzy).
type RankedCustomer struct {
	Customer
	Score     float64 `json:"match_score"`
	MatchedBy string  `json:"matched_by"`
}

type Product struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	NameNormalized    string          `json:"-"`
	Unit              string          `json:"unit"`
	Price             decimal.Decimal `json:"price"`
	Stock             decimal.Decimal `json:"stock"`
	HSNCode           string          `json:"hsn_code,omitempty"`
	GSTRate           decimal.Decimal `json:"gst_rate"`
	CessRate          decimal.Decimal `json:"cess_rate"`
	GSTExempt         bool            `json:"gst_exempt"`
	AutoCreated       bool            `json:"auto_created"`
	LowStockThreshold decimal.Decimal `json:"low_stock_threshold"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type Invoice struct {
	ID           int64           `json:"id"`
	InvoiceNo    string          `json:"invoice_no"`
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Status       string          `json:"status"`
	SupplyType   string          `json:"supply_type"`
	WithGST      bool            `json:"with_gst"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	CGST         decimal.Decimal `json:"cgst"`
	SGST         decimal.Decimal `json:"sgst"`
	IGST         decimal.Decimal `json:"igst"`
	Cess         decimal.Decimal `json:"cess"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	Notes        string          `json:"notes,omitempty"`
	PDFObjectKey string          `json:"pdf_object_key,omitempty"`
	PDFURL       string          `json:"pdf_url,omitempty"`
	SentVia      string          `json:"sent_via,omitempty"`
	SentTo       string          `json:"sent_to,omitempty"`
	Items        []InvoiceItem   `json:"items,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
}

type InvoiceItem struct {
	ID           int64           `json:"id"`
	InvoiceID    int64           `json:"invoice_id"`
	ProductID    *int64          `json:"product_id,omitempty"`
	ProductName  string          `json:"product_name"`
	Unit         string          `json:"unit"`
	HSNCode      string          `json:"hsn_code,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	GSTRate      decimal.Decimal `json:"gst_rate"`
	CGST         decimal.Decimal `json:"cgst"`
	SGST         decimal.Decimal `json:"sgst"`
	IGST         decimal.Decimal `json:"igst"`
	Cess         decimal.Decimal `json:"cess"`
	LineSubtotal decimal.Decimal `json:"subtotal"`
	LineTotal    decimal.Decimal `json:"total"`
}

// InvoicePreview is a priced draft. It lives in the conversation store until
// the shopkeeper confirms; nothing is written to Postgres before that beyond
// auto-created placeholder products.
type InvoicePreview struct {
	DraftID       string          `json:"draft_id"`
	CustomerID    int64           `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	InputItems    []ItemInput     `json:"input_items"`
	Items         []PreviewItem   `json:"resolved_items"`
	WithGST       bool            `json:"with_gst"`
	SupplyType    string          `json:"supply_type"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	IGST          decimal.Decimal `json:"igst"`
	Cess          decimal.Decimal `json:"cess"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	AutoCreated   []string        `json:"auto_created_products,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type PreviewItem struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Unit         string          `json:"unit"`
	HSNCode      string          `json:"hsn_code,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	GSTRate      decimal.Decimal `json:"gst_rate"`
	CessRate     decimal.Decimal `json:"cess_rate"`
	GSTExempt    bool            `json:"gst_exempt"`
	LineSubtotal decimal.Decimal `json:"subtotal"`
	CGST         decimal.Decimal `json:"cgst"`
	SGST         decimal.Decimal `json:"sgst"`
	IGST         decimal.Decimal `json:"igst"`
	Cess         decimal.Decimal `json:"cess"`
	LineTotal    decimal.Decimal `json:"total"`
}

// ItemInput is one spoken line item before product resolution:
// "5 kilo chawal" → {Name: "chawal", Quantity: 5, Unit: "kg"}.
type ItemInput struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price,omitempty"`
}

type LedgerEntry struct {
	ID            int64           `json:"id"`
	CustomerID    int64           `json:"customer_id"`
	EntryType     string          `json:"entry_type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description,omitempty"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	PaymentMode   string          `json:"payment_mode,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Payment struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Status     string          `json:"status"`
	Notes      string          `json:"notes,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

type Reminder struct {
	ID            int64     `json:"id"`
	CustomerID    int64     `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	RemindAt      time.Time `json:"remind_at"`
	Notes         string    `json:"notes"`
	Channel       string    `json:"channel"`
	Status        string    `json:"status"`
	ExternalJobID string    `json:"external_job_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CustomerBalance is one row of the outstanding-udhaar listing.
type CustomerBalance struct {
	CustomerID int64           `json:"customer_id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	Balance    decimal.Decimal `json:"balance"`
}

// DeleteCounts reports what a cascade delete removed, table by table.
type DeleteCounts struct {
	Invoices      int64 `json:"invoices"`
	InvoiceItems  int64 `json:"invoice_items"`
	Payments      int64 `json:"payments"`
	LedgerEntries int64 `json:"ledger_entries"`
	Reminders     int64 `json:"reminders"`
}

type ProductSales struct {
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

type DailySummary struct {
	Date             string          `json:"date"`
	InvoiceCount     int             `json:"invoice_count"`
	CancelledCount   int             `json:"cancelled_count"`
	SalesTotal       decimal.Decimal `json:"sales_total"`
	GSTCollected     decimal.Decimal `json:"gst_collected"`
	PaymentsReceived decimal.Decimal `json:"payments_received"`
	CashReceived     decimal.Decimal `json:"cash_received"`
	UPIReceived      decimal.Decimal `json:"upi_received"`
	NewCustomers     int             `json:"new_customers"`
	TotalPending     decimal.Decimal `json:"total_pending"`
	TopProducts      []ProductSales  `json:"top_products"`
}
