package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const topProductLimit = 5

// SummaryService aggregates one shop day of activity. Day boundaries follow
// the shop's timezone, not UTC: "aaj ka hisaab" at 11pm IST means the IST
// calendar day.
type SummaryService interface {
	DailySummary(ctx context.Context, day time.Time) (*DailySummary, error)
}

type summaryService struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewSummaryService(pool *pgxpool.Pool, loc *time.Location) SummaryService {
	return &summaryService{pool: pool, loc: loc}
}

func (s *summaryService) DailySummary(ctx context.Context, day time.Time) (*DailySummary, error) {
	local := day.In(s.loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 0, 1)

	summary := &DailySummary{
		Date:             from.Format("2006-01-02"),
		SalesTotal:       decimal.Zero,
		GSTCollected:     decimal.Zero,
		PaymentsReceived: decimal.Zero,
		CashReceived:     decimal.Zero,
		UPIReceived:      decimal.Zero,
		TotalPending:     decimal.Zero,
	}

	// Cancelled invoices stay out of the sales figures even when the
	// cancellation happened on a later day.
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status <> $3),
			COUNT(*) FILTER (WHERE status = $3),
			COALESCE(SUM(grand_total) FILTER (WHERE status <> $3), 0),
			COALESCE(SUM(cgst + sgst + igst + cess) FILTER (WHERE status <> $3), 0)
		FROM invoices
		WHERE created_at >= $1 AND created_at < $2
	`, from, to, InvoiceCancelled).Scan(
		&summary.InvoiceCount, &summary.CancelledCount,
		&summary.SalesTotal, &summary.GSTCollected)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate invoices: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(amount) FILTER (WHERE method = $3), 0),
			COALESCE(SUM(amount) FILTER (WHERE method = $4), 0)
		FROM payments
		WHERE received_at >= $1 AND received_at < $2
	`, from, to, PayCash, PayUPI).Scan(
		&summary.PaymentsReceived, &summary.CashReceived, &summary.UPIReceived)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate payments: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM customers WHERE created_at >= $1 AND created_at < $2",
		from, to).Scan(&summary.NewCustomers)
	if err != nil {
		return nil, fmt.Errorf("failed to count new customers: %w", err)
	}

	// Outstanding udhaar is a point-in-time snapshot, not a day slice.
	err = s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(balance), 0) FROM customers WHERE is_active AND balance > 0",
	).Scan(&summary.TotalPending)
	if err != nil {
		return nil, fmt.Errorf("failed to sum pending balances: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT ii.product_name, SUM(ii.quantity), SUM(ii.total)
		FROM invoice_items ii
		JOIN invoices i ON i.id = ii.invoice_id
		WHERE i.created_at >= $1 AND i.created_at < $2 AND i.status <> $3
		GROUP BY ii.product_name
		ORDER BY SUM(ii.total) DESC
		LIMIT $4
	`, from, to, InvoiceCancelled, topProductLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p ProductSales
		if err := rows.Scan(&p.ProductName, &p.Quantity, &p.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan product sales: %w", err)
		}
		summary.TopProducts = append(summary.TopProducts, p)
	}
	return summary, nil
}
