package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerService owns the khata: the append-only entry log and the payment
// records behind each customer's running balance. Balance mutations and
// their entries always land in one transaction, so the invariant
// balance = Σ(DEBIT + OPENING_BALANCE) − Σ(CREDIT) holds at every commit.
type LedgerService interface {
	// RecordPayment appends a CREDIT entry plus a payment row and decrements
	// the balance. mode defaults to cash. When the payment clears the whole
	// balance, the customer's pending invoices flip to paid.
	RecordPayment(ctx context.Context, customerID int64, amount decimal.Decimal, mode, notes string) (*LedgerEntry, error)
	// AddCredit appends a CREDIT entry and decrements the balance without a
	// payment row — goodwill adjustments, returned goods, waived paise.
	AddCredit(ctx context.Context, customerID int64, amount decimal.Decimal, description string) (*LedgerEntry, error)
	// AddOpeningBalance carries an existing debt into the khata when a
	// customer is first added: OPENING_BALANCE entry, balance up.
	AddOpeningBalance(ctx context.Context, customerID int64, amount decimal.Decimal) (*LedgerEntry, error)

	EntriesForCustomer(ctx context.Context, customerID int64, limit int) ([]LedgerEntry, error)
	ListEntries(ctx context.Context, limit int) ([]LedgerEntry, error)
	ListPayments(ctx context.Context, customerID int64, limit int) ([]Payment, error)
}

type ledgerService struct {
	pool     *pgxpool.Pool
	balances *BalanceCache
}

func NewLedgerService(pool *pgxpool.Pool, balances *BalanceCache) LedgerService {
	return &ledgerService{pool: pool, balances: balances}
}

func validPaymentMode(mode string) bool {
	switch mode {
	case PayCash, PayUPI, PayCard, PayOther:
		return true
	}
	return false
}

func (s *ledgerService) RecordPayment(ctx context.Context, customerID int64, amount decimal.Decimal, mode, notes string) (*LedgerEntry, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("payment amount must be positive")
	}
	if mode == "" {
		mode = PayCash
	}
	if !validPaymentMode(mode) {
		return nil, fmt.Errorf("unknown payment mode %q", mode)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	balance, err := lockBalance(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}

	var paymentID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (customer_id, amount, method, status, notes)
		VALUES ($1, $2, $3, 'completed', $4)
		RETURNING id
	`, customerID, amount, mode, notes).Scan(&paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	newBalance := balance.Sub(amount)
	if err := setBalance(ctx, tx, customerID, newBalance); err != nil {
		return nil, err
	}

	// Once nothing is owed, outstanding invoices are settled.
	if newBalance.Sign() <= 0 {
		if _, err = tx.Exec(ctx,
			"UPDATE invoices SET status = $2 WHERE customer_id = $1 AND status = $3",
			customerID, InvoicePaid, InvoicePending); err != nil {
			return nil, fmt.Errorf("failed to settle pending invoices: %w", err)
		}
	}

	entry, err := appendLedgerEntryTx(ctx, tx, LedgerEntry{
		CustomerID:    customerID,
		EntryType:     EntryCredit,
		Amount:        amount,
		BalanceAfter:  newBalance,
		Description:   notes,
		ReferenceType: RefPayment,
		ReferenceID:   strconv.FormatInt(paymentID, 10),
		PaymentMode:   mode,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	s.balances.invalidate(customerID)
	return entry, nil
}

func (s *ledgerService) AddCredit(ctx context.Context, customerID int64, amount decimal.Decimal, description string) (*LedgerEntry, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("credit amount must be positive")
	}
	return s.adjust(ctx, customerID, amount.Neg(), LedgerEntry{
		EntryType:   EntryCredit,
		Amount:      amount,
		Description: description,
	})
}

func (s *ledgerService) AddOpeningBalance(ctx context.Context, customerID int64, amount decimal.Decimal) (*LedgerEntry, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("opening balance must be positive")
	}
	return s.adjust(ctx, customerID, amount, LedgerEntry{
		EntryType:   EntryOpening,
		Amount:      amount,
		Description: "Purana hisaab",
	})
}

// adjust moves the balance by delta and appends the entry, atomically.
func (s *ledgerService) adjust(ctx context.Context, customerID int64, delta decimal.Decimal, entry LedgerEntry) (*LedgerEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	balance, err := lockBalance(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	newBalance := balance.Add(delta)
	if err := setBalance(ctx, tx, customerID, newBalance); err != nil {
		return nil, err
	}

	entry.CustomerID = customerID
	entry.BalanceAfter = newBalance
	out, err := appendLedgerEntryTx(ctx, tx, entry)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ledger adjustment: %w", err)
	}
	s.balances.invalidate(customerID)
	return out, nil
}

// ── Transaction helpers shared with the invoice service ──────────────────────

func lockBalance(ctx context.Context, tx pgx.Tx, customerID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, "SELECT balance FROM customers WHERE id = $1 FOR UPDATE", customerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrCustomerNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to lock customer %d: %w", customerID, err)
	}
	return balance, nil
}

func setBalance(ctx context.Context, tx pgx.Tx, customerID int64, balance decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		"UPDATE customers SET balance = $2, updated_at = NOW() WHERE id = $1",
		customerID, balance)
	if err != nil {
		return fmt.Errorf("failed to update balance for customer %d: %w", customerID, err)
	}
	return nil
}

func appendLedgerEntryTx(ctx context.Context, tx pgx.Tx, e LedgerEntry) (*LedgerEntry, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (customer_id, entry_type, amount, balance_after,
			description, reference_type, reference_id, payment_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, e.CustomerID, e.EntryType, e.Amount, e.BalanceAfter,
		e.Description, e.ReferenceType, e.ReferenceID, e.PaymentMode).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return &e, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

const ledgerColumns = `id, customer_id, entry_type, amount, balance_after,
	description, reference_type, reference_id, payment_mode, created_at`

func (s *ledgerService) EntriesForCustomer(ctx context.Context, customerID int64, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryEntries(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE customer_id = $1
		ORDER BY id DESC
		LIMIT $2`, customerID, limit)
}

func (s *ledgerService) ListEntries(ctx context.Context, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryEntries(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		ORDER BY id DESC
		LIMIT $1`, limit)
}

func (s *ledgerService) queryEntries(ctx context.Context, sql string, args ...any) ([]LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.EntryType, &e.Amount, &e.BalanceAfter,
			&e.Description, &e.ReferenceType, &e.ReferenceID, &e.PaymentMode, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *ledgerService) ListPayments(ctx context.Context, customerID int64, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, customer_id, amount, method, status, notes, received_at FROM payments`
	args := []any{limit}
	if customerID > 0 {
		args = append(args, customerID)
		query += " WHERE customer_id = $2"
	}
	query += " ORDER BY id DESC LIMIT $1"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.Amount, &p.Method, &p.Status,
			&p.Notes, &p.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, nil
}
