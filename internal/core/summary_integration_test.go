package core_test

import (
	"context"
	"testing"
	"time"

	"kirana-voice/internal/core"
)

func TestSummaryService_DailySummary(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	cache := core.NewBalanceCache()
	customers := core.NewCustomerService(pool, cache)
	products := core.NewProductService(pool)
	invoices := core.NewInvoiceService(pool, products, cache, ist)
	ledger := core.NewLedgerService(pool, cache)
	summaries := core.NewSummaryService(pool, ist)
	ctx := context.Background()

	a := seedCustomer(t, customers, "Customer A", "9800000001", "")
	b := seedCustomer(t, customers, "Customer B", "9800000002", "")

	// A buys with GST: 250 + 12.50.
	preview, err := invoices.PreviewInvoice(ctx, a, []core.ItemInput{
		{Name: "chawal", Quantity: dec("3")},
		{Name: "cheeni", Quantity: dec("2")},
	}, true, "")
	if err != nil {
		t.Fatalf("PreviewInvoice failed: %v", err)
	}
	if _, err = invoices.ConfirmInvoice(ctx, preview, ""); err != nil {
		t.Fatalf("ConfirmInvoice failed: %v", err)
	}

	// B's bill gets cancelled; it must vanish from the sales figures.
	preview, err = invoices.PreviewInvoice(ctx, b, []core.ItemInput{
		{Name: "chawal", Quantity: dec("2")},
	}, false, "")
	if err != nil {
		t.Fatalf("PreviewInvoice failed: %v", err)
	}
	cancelledInv, err := invoices.ConfirmInvoice(ctx, preview, "")
	if err != nil {
		t.Fatalf("ConfirmInvoice failed: %v", err)
	}
	if _, err = invoices.CancelInvoice(ctx, cancelledInv.ID); err != nil {
		t.Fatalf("CancelInvoice failed: %v", err)
	}

	if _, err = ledger.RecordPayment(ctx, a.ID, dec("50"), "cash", ""); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if _, err = ledger.RecordPayment(ctx, a.ID, dec("30"), "upi", ""); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	summary, err := summaries.DailySummary(ctx, time.Now())
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}

	if summary.InvoiceCount != 1 || summary.CancelledCount != 1 {
		t.Errorf("counts = %d live / %d cancelled, want 1 / 1",
			summary.InvoiceCount, summary.CancelledCount)
	}
	if !summary.SalesTotal.Equal(dec("262.50")) {
		t.Errorf("sales = %s, want 262.50", summary.SalesTotal)
	}
	if !summary.GSTCollected.Equal(dec("12.50")) {
		t.Errorf("gst = %s, want 12.50", summary.GSTCollected)
	}
	if !summary.PaymentsReceived.Equal(dec("80")) {
		t.Errorf("payments = %s, want 80", summary.PaymentsReceived)
	}
	if !summary.CashReceived.Equal(dec("50")) || !summary.UPIReceived.Equal(dec("30")) {
		t.Errorf("cash/upi = %s/%s, want 50/30", summary.CashReceived, summary.UPIReceived)
	}
	if summary.NewCustomers != 2 {
		t.Errorf("new customers = %d, want 2", summary.NewCustomers)
	}
	// A still owes 262.50 - 80; B is square after the cancellation.
	if !summary.TotalPending.Equal(dec("182.50")) {
		t.Errorf("total pending = %s, want 182.50", summary.TotalPending)
	}

	if len(summary.TopProducts) == 0 {
		t.Fatal("expected top products")
	}
	top := summary.TopProducts[0]
	if top.ProductName != "Chawal" || !top.Amount.Equal(dec("157.50")) {
		t.Errorf("top product = %+v, want Chawal at 157.50", top)
	}
	if !top.Quantity.Equal(dec("3")) {
		t.Errorf("top product quantity = %s, want 3 (cancelled bill excluded)", top.Quantity)
	}
}
