package engine

import (
	"github.com/shopspring/decimal"

	"kirana-voice/internal/core"
)

// Error codes the dispatcher emits. The templater maps each to a spoken
// Hinglish line; the HTTP and websocket layers pass them through verbatim.
const (
	CodeCustomerNotFound  = "CUSTOMER_NOT_FOUND"
	CodeMultipleCustomers = "MULTIPLE_CUSTOMERS"
	CodeProductNotFound   = "PRODUCT_NOT_FOUND"
	CodeNoInvoice         = "NO_INVOICE"
	CodeNoReminder        = "NO_REMINDER"
	CodeNoDraft           = "NO_DRAFT"
	CodeMultipleDrafts    = "MULTIPLE_DRAFTS"
	CodeNoPendingEmail    = "NO_PENDING_EMAIL"
	CodeNoPendingSend     = "NO_PENDING_SEND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidEmail      = "INVALID_EMAIL"
	CodeMissingAmount     = "MISSING_AMOUNT"
	CodeMissingDatetime   = "MISSING_DATETIME"
	CodeMissingPhone      = "MISSING_PHONE"
	CodeDuplicateFound    = "DUPLICATE_FOUND"
	CodeAlreadyCancelled  = "ALREADY_CANCELLED"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeConflict          = "CONFLICT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeOTPSent           = "OTP_SENT"
	CodeInvalidOTP        = "INVALID_OTP"
	CodeAwaitingEmail     = "AWAITING_EMAIL"
	CodeAwaitingConfirm   = "AWAITING_CONFIRM"
	CodeUnknownIntent     = "UNKNOWN_INTENT"
	CodeSendFailed        = "SEND_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Result is the tagged outcome of one dispatched intent. Data holds one of
// the typed payloads below; the templater type-switches on it. Errors never
// cross the dispatch boundary any other way.
type Result struct {
	Success bool   `json:"success"`
	Intent  string `json:"intent"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(intent string, data any) Result {
	return Result{Success: true, Intent: intent, Data: data}
}

func fail(intent, code, message string) Result {
	return Result{Success: false, Intent: intent, Error: code, Message: message}
}

func failWith(intent, code, message string, data any) Result {
	return Result{Success: false, Intent: intent, Error: code, Message: message, Data: data}
}

// ── Typed payloads ───────────────────────────────────────────────────────────

type TotalPendingData struct {
	Total     decimal.Decimal `json:"total"`
	Customers int             `json:"customers"`
}

type BalanceListData struct {
	Balances []core.CustomerBalance `json:"balances"`
	Total    decimal.Decimal        `json:"total"`
}

type BalanceData struct {
	CustomerID int64           `json:"customer_id"`
	Name       string          `json:"name"`
	Balance    decimal.Decimal `json:"balance"`
}

// DraftData echoes a priced draft back to the shopkeeper. AwaitingConfirm is
// true until the draft is confirmed or cancelled.
type DraftData struct {
	Draft           *core.InvoicePreview `json:"draft"`
	AwaitingConfirm bool                 `json:"awaiting_confirm"`
	AutoCreated     []string             `json:"auto_created_products,omitempty"`
}

type DraftListData struct {
	Drafts []core.InvoicePreview `json:"drafts"`
}

// InvoiceData is a committed invoice. AwaitingEmail is set when the customer
// has no address on file and the invoice is parked for PROVIDE_EMAIL.
type InvoiceData struct {
	Invoice       *core.Invoice `json:"invoice"`
	AwaitingEmail bool          `json:"awaiting_email,omitempty"`
	EmailedTo     string        `json:"emailed_to,omitempty"`
}

type EmailSavedData struct {
	CustomerID int64  `json:"customer_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	InvoiceNo  string `json:"invoice_no,omitempty"`
}

type SendConfirmData struct {
	Channel   string `json:"channel"`
	Contact   string `json:"contact"`
	InvoiceNo string `json:"invoice_no"`
	Sent      bool   `json:"sent"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

type PaymentData struct {
	CustomerID int64           `json:"customer_id"`
	Name       string          `json:"name"`
	Paid       decimal.Decimal `json:"paid"`
	Mode       string          `json:"mode"`
	Remaining  decimal.Decimal `json:"remaining"`
}

type CreditData struct {
	CustomerID int64           `json:"customer_id"`
	Name       string          `json:"name"`
	Added      decimal.Decimal `json:"added"`
	Total      decimal.Decimal `json:"total"`
}

type StockData struct {
	Product *core.Product `json:"product"`
}

type ReminderData struct {
	Reminder *core.Reminder `json:"reminder"`
}

type ReminderListData struct {
	Reminders []core.Reminder `json:"reminders"`
	Count     int             `json:"count"`
}

type CustomerData struct {
	Customer *core.Customer `json:"customer"`
	Created  bool           `json:"created,omitempty"`
}

// CandidatesData carries the ambiguous or duplicate matches the shopkeeper
// must choose between.
type CandidatesData struct {
	Query     string                `json:"query"`
	Customers []core.RankedCustomer `json:"customers"`
}

type SummaryData struct {
	Summary *core.DailySummary `json:"summary"`
}

type DeleteData struct {
	CustomerName string             `json:"customer_name"`
	Counts       *core.DeleteCounts `json:"counts"`
}

type LanguageData struct {
	Language string `json:"language"`
}

type RecordingData struct {
	Recording bool `json:"recording"`
}
