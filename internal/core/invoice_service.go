package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"kirana-voice/internal/gst"
	"kirana-voice/internal/metrics"
)

// InvoiceService owns the invoice lifecycle: preview (draft pricing, no
// invoice rows written), confirm (number + items + stock + balance + ledger
// in one transaction) and cancel (full reversal).
type InvoiceService interface {
	// PreviewInvoice resolves spoken items against the catalogue and prices
	// the draft. Unknown products are auto-created as placeholders inside one
	// transaction so a half-resolved draft rolls back cleanly; nothing
	// invoice-shaped is persisted.
	PreviewInvoice(ctx context.Context, customer *Customer, items []ItemInput, withGST bool, supplyType string) (*InvoicePreview, error)
	// ConfirmInvoice turns a draft into a numbered pending invoice. Atomic:
	// the per-financial-year counter, the invoice and item rows, the stock
	// decrements, the balance increment and the DEBIT khata entry all commit
	// together or not at all.
	ConfirmInvoice(ctx context.Context, preview *InvoicePreview, notes string) (*Invoice, error)
	// CancelInvoice reverses an invoice: stock back, balance down, CREDIT
	// entry. ErrAlreadyCancelled on a second attempt.
	CancelInvoice(ctx context.Context, id int64) (*Invoice, error)

	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	// LatestForCustomer returns the most recent non-cancelled invoice.
	LatestForCustomer(ctx context.Context, customerID int64) (*Invoice, error)
	// ListInvoices lists newest first; customerID 0 means the whole shop.
	ListInvoices(ctx context.Context, customerID int64, limit int) ([]Invoice, error)

	SetPDF(ctx context.Context, id int64, objectKey, url string) error
	MarkSent(ctx context.Context, id int64, via, to string) error
}

type invoiceService struct {
	pool     *pgxpool.Pool
	products ProductService
	balances *BalanceCache
	loc      *time.Location
}

func NewInvoiceService(pool *pgxpool.Pool, products ProductService, balances *BalanceCache, loc *time.Location) InvoiceService {
	return &invoiceService{pool: pool, products: products, balances: balances, loc: loc}
}

// ── Preview ──────────────────────────────────────────────────────────────────

func (s *invoiceService) PreviewInvoice(ctx context.Context, customer *Customer, items []ItemInput, withGST bool, supplyType string) (*InvoicePreview, error) {
	if len(items) == 0 {
		return nil, ErrEmptyInvoice
	}
	if supplyType == "" {
		supplyType = SupplyIntrastate
	}

	preview := &InvoicePreview{
		DraftID:       uuid.NewString(),
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		InputItems:    items,
		WithGST:       withGST,
		SupplyType:    supplyType,
		CreatedAt:     time.Now(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, input := range items {
		if input.Quantity.Sign() <= 0 {
			return nil, fmt.Errorf("item %q: quantity must be positive", input.Name)
		}
		prod, created, err := s.products.ResolveOrCreate(ctx, tx, input.Name, input.Unit)
		if err != nil {
			return nil, err
		}
		if created {
			preview.AutoCreated = append(preview.AutoCreated, prod.Name)
		}

		price := prod.Price
		if input.UnitPrice.Sign() > 0 {
			price = input.UnitPrice
		}
		unit := prod.Unit
		if input.Unit != "" {
			unit = input.Unit
		}
		preview.Items = append(preview.Items, PreviewItem{
			ProductID:   prod.ID,
			ProductName: prod.Name,
			Unit:        unit,
			HSNCode:     prod.HSNCode,
			Quantity:    input.Quantity,
			UnitPrice:   price,
			GSTRate:     prod.GSTRate,
			CessRate:    prod.CessRate,
			GSTExempt:   prod.GSTExempt,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product resolution: %w", err)
	}

	PriceDraft(preview)
	return preview, nil
}

// PriceDraft recomputes every derived amount on a draft from its resolved
// items and the WithGST flag. Toggling GST on a pending draft is a flag flip
// followed by this.
func PriceDraft(p *InvoicePreview) {
	subtotal := decimal.Zero
	var taxes []gst.Tax
	supply := gst.SupplyType(p.SupplyType)

	for i := range p.Items {
		item := &p.Items[i]
		item.LineSubtotal = gst.Round2(item.Quantity.Mul(item.UnitPrice))
		subtotal = subtotal.Add(item.LineSubtotal)

		var t gst.Tax
		if p.WithGST {
			t = gst.Calculate(gst.Line{
				Subtotal: item.LineSubtotal,
				Rate:     item.GSTRate,
				CessRate: item.CessRate,
				Exempt:   item.GSTExempt,
			}, supply)
		}
		item.CGST, item.SGST, item.IGST, item.Cess = t.CGST, t.SGST, t.IGST, t.Cess
		item.LineTotal = gst.Round2(item.LineSubtotal.Add(t.Total()))
		taxes = append(taxes, t)
	}

	agg := gst.Aggregate(taxes)
	p.Subtotal = gst.Round2(subtotal)
	p.CGST, p.SGST, p.IGST, p.Cess = agg.CGST, agg.SGST, agg.IGST, agg.Cess
	p.GrandTotal = gst.Round2(p.Subtotal.Add(agg.Total()))
}

// ── Confirm ──────────────────────────────────────────────────────────────────

// nextInvoiceNumberTx assigns the next sequential number for the financial
// year with a single upsert. The RETURNING clause runs under the row lock
// the upsert takes, so concurrent confirms serialize here and the sequence
// stays gapless as long as the surrounding transaction commits.
func nextInvoiceNumberTx(ctx context.Context, tx pgx.Tx, financialYear string) (int, error) {
	var seq int
	err := tx.QueryRow(ctx, `
		INSERT INTO invoice_counters (financial_year, last_number)
		VALUES ($1, 1)
		ON CONFLICT (financial_year)
		DO UPDATE SET last_number = invoice_counters.last_number + 1
		RETURNING last_number
	`, financialYear).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to advance invoice counter for %s: %w", financialYear, err)
	}
	return seq, nil
}

func (s *invoiceService) ConfirmInvoice(ctx context.Context, preview *InvoicePreview, notes string) (inv *Invoice, err error) {
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metrics.InvoiceOps.WithLabelValues("create", outcome).Inc()
	}()

	if preview == nil || len(preview.Items) == 0 {
		return nil, ErrEmptyInvoice
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the customer so balance math and a concurrent cascade delete
	// cannot interleave.
	balance, err := lockBalance(ctx, tx, preview.CustomerID)
	if err != nil {
		return nil, err
	}

	fy := FinancialYearAt(time.Now(), s.loc)
	seq, err := nextInvoiceNumberTx(ctx, tx, fy)
	if err != nil {
		return nil, err
	}
	invoiceNo := FormatInvoiceNo(fy, seq)

	var invoiceID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (invoice_no, customer_id, status, supply_type, with_gst,
			subtotal, cgst, sgst, igst, cess, grand_total, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, invoiceNo, preview.CustomerID, InvoicePending, preview.SupplyType, preview.WithGST,
		preview.Subtotal, preview.CGST, preview.SGST, preview.IGST, preview.Cess,
		preview.GrandTotal, notes).Scan(&invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}

	for _, item := range preview.Items {
		if _, err = tx.Exec(ctx, `
			INSERT INTO invoice_items (invoice_id, product_id, product_name, unit, hsn_code,
				quantity, unit_price, gst_rate, cgst, sgst, igst, cess, subtotal, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, invoiceID, item.ProductID, item.ProductName, item.Unit, item.HSNCode,
			item.Quantity, item.UnitPrice, item.GSTRate, item.CGST, item.SGST, item.IGST,
			item.Cess, item.LineSubtotal, item.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to insert invoice item %q: %w", item.ProductName, err)
		}

		// Guarded decrement: the WHERE clause refuses to take stock below
		// zero, so an oversell fails the whole confirm.
		tag, derr := tx.Exec(ctx,
			"UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1 AND stock >= $2",
			item.ProductID, item.Quantity)
		if derr != nil {
			err = fmt.Errorf("failed to decrement stock for %q: %w", item.ProductName, derr)
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			err = fmt.Errorf("%w: %s", ErrInsufficientStock, item.ProductName)
			return nil, err
		}
	}

	newBalance := balance.Add(preview.GrandTotal)
	if _, err = tx.Exec(ctx, `
		UPDATE customers
		SET balance = $2, total_purchases = total_purchases + $3,
		    visit_count = visit_count + 1, last_visit = NOW(), updated_at = NOW()
		WHERE id = $1
	`, preview.CustomerID, newBalance, preview.GrandTotal); err != nil {
		return nil, fmt.Errorf("failed to update customer stats: %w", err)
	}

	if _, err = appendLedgerEntryTx(ctx, tx, LedgerEntry{
		CustomerID:    preview.CustomerID,
		EntryType:     EntryDebit,
		Amount:        preview.GrandTotal,
		BalanceAfter:  newBalance,
		Description:   fmt.Sprintf("Invoice %s", invoiceNo),
		ReferenceType: RefInvoice,
		ReferenceID:   strconv.FormatInt(invoiceID, 10),
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice %s: %w", invoiceNo, err)
	}

	s.balances.invalidate(preview.CustomerID)
	return s.GetInvoice(ctx, invoiceID)
}

// ── Cancel ───────────────────────────────────────────────────────────────────

func (s *invoiceService) CancelInvoice(ctx context.Context, id int64) (inv *Invoice, err error) {
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metrics.InvoiceOps.WithLabelValues("cancel", outcome).Inc()
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		invoiceNo  string
		customerID int64
		status     string
		grandTotal decimal.Decimal
	)
	err = tx.QueryRow(ctx,
		"SELECT invoice_no, customer_id, status, grand_total FROM invoices WHERE id = $1 FOR UPDATE",
		id,
	).Scan(&invoiceNo, &customerID, &status, &grandTotal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to lock invoice %d: %w", id, err)
	}
	if status == InvoiceCancelled {
		return nil, ErrAlreadyCancelled
	}

	// Restore stock for every line. Items whose product was since deleted
	// carry a NULL product_id and are skipped.
	rows, err := tx.Query(ctx,
		"SELECT product_id, quantity FROM invoice_items WHERE invoice_id = $1 AND product_id IS NOT NULL", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	type restore struct {
		productID int64
		qty       decimal.Decimal
	}
	var restores []restore
	for rows.Next() {
		var r restore
		if err := rows.Scan(&r.productID, &r.qty); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		restores = append(restores, r)
	}
	rows.Close()
	for _, r := range restores {
		if _, err = tx.Exec(ctx,
			"UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1",
			r.productID, r.qty,
		); err != nil {
			return nil, fmt.Errorf("failed to restore stock: %w", err)
		}
	}

	balance, err := lockBalance(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	newBalance := balance.Sub(grandTotal)
	if _, err = tx.Exec(ctx, `
		UPDATE customers
		SET balance = $2, total_purchases = total_purchases - $3, updated_at = NOW()
		WHERE id = $1
	`, customerID, newBalance, grandTotal); err != nil {
		return nil, fmt.Errorf("failed to reverse customer stats: %w", err)
	}

	if _, err = appendLedgerEntryTx(ctx, tx, LedgerEntry{
		CustomerID:    customerID,
		EntryType:     EntryCredit,
		Amount:        grandTotal,
		BalanceAfter:  newBalance,
		Description:   fmt.Sprintf("Cancelled invoice %s", invoiceNo),
		ReferenceType: RefCancellation,
		ReferenceID:   strconv.FormatInt(id, 10),
	}); err != nil {
		return nil, err
	}

	if _, err = tx.Exec(ctx,
		"UPDATE invoices SET status = $2, cancelled_at = NOW() WHERE id = $1",
		id, InvoiceCancelled,
	); err != nil {
		return nil, fmt.Errorf("failed to mark invoice %s cancelled: %w", invoiceNo, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation of %s: %w", invoiceNo, err)
	}

	s.balances.invalidate(customerID)
	return s.GetInvoice(ctx, id)
}

// ── Queries ──────────────────────────────────────────────────────────────────

const invoiceColumns = `i.id, i.invoice_no, i.customer_id, c.name, i.status, i.supply_type,
	i.with_gst, i.subtotal, i.cgst, i.sgst, i.igst, i.cess, i.grand_total, i.notes,
	i.pdf_object_key, i.pdf_url, i.sent_via, i.sent_to, i.created_at, i.cancelled_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNo, &inv.CustomerID, &inv.CustomerName, &inv.Status,
		&inv.SupplyType, &inv.WithGST, &inv.Subtotal, &inv.CGST, &inv.SGST, &inv.IGST,
		&inv.Cess, &inv.GrandTotal, &inv.Notes, &inv.PDFObjectKey, &inv.PDFURL,
		&inv.SentVia, &inv.SentTo, &inv.CreatedAt, &inv.CancelledAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i JOIN customers c ON c.id = i.customer_id
		WHERE i.id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", id, err)
	}
	if inv.Items, err = s.fetchItems(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceService) LatestForCustomer(ctx context.Context, customerID int64) (*Invoice, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i JOIN customers c ON c.id = i.customer_id
		WHERE i.customer_id = $1 AND i.status <> $2
		ORDER BY i.id DESC
		LIMIT 1`, customerID, InvoiceCancelled)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to fetch latest invoice for customer %d: %w", customerID, err)
	}
	if inv.Items, err = s.fetchItems(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, customerID int64, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices i JOIN customers c ON c.id = i.customer_id`
	args := []any{limit}
	if customerID > 0 {
		args = append(args, customerID)
		query += " WHERE i.customer_id = $2"
	}
	query += " ORDER BY i.id DESC LIMIT $1"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.InvoiceNo, &inv.CustomerID, &inv.CustomerName, &inv.Status,
			&inv.SupplyType, &inv.WithGST, &inv.Subtotal, &inv.CGST, &inv.SGST, &inv.IGST,
			&inv.Cess, &inv.GrandTotal, &inv.Notes, &inv.PDFObjectKey, &inv.PDFURL,
			&inv.SentVia, &inv.SentTo, &inv.CreatedAt, &inv.CancelledAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (s *invoiceService) fetchItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, invoice_id, product_id, product_name, unit, hsn_code, quantity,
		       unit_price, gst_rate, cgst, sgst, igst, cess, subtotal, total
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.ProductName, &it.Unit,
			&it.HSNCode, &it.Quantity, &it.UnitPrice, &it.GSTRate, &it.CGST, &it.SGST,
			&it.IGST, &it.Cess, &it.LineSubtotal, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *invoiceService) SetPDF(ctx context.Context, id int64, objectKey, url string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE invoices SET pdf_object_key = $2, pdf_url = $3 WHERE id = $1",
		id, objectKey, url)
	if err != nil {
		return fmt.Errorf("failed to store pdf reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (s *invoiceService) MarkSent(ctx context.Context, id int64, via, to string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE invoices SET sent_via = $2, sent_to = $3 WHERE id = $1",
		id, via, to)
	if err != nil {
		return fmt.Errorf("failed to mark invoice sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}
