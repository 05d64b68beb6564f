package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"kirana-voice/internal/core"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database so integration runs never touch the live
	// shop ledger. Set TEST_DATABASE_URL to enable these tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE reminders, payments, ledger_entries, invoice_items, invoices,
			invoice_counters, products, customers RESTART IDENTITY CASCADE;

		INSERT INTO products (name, name_normalized, unit, price, stock, gst_rate, cess_rate, gst_exempt) VALUES
		('Chawal',  'chawal',  'kg',     50.00, 100, 5,  0, false),
		('Cheeni',  'cheeni',  'kg',     50.00,  80, 5,  0, false),
		('Doodh',   'doodh',   'litre',  30.00,  40, 0,  0, true),
		('Maida',   'maida',   'kg',     40.00,  60, 5,  0, false),
		('Namkeen', 'namkeen', 'packet', 20.00, 200, 12, 0, false);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func seedCustomer(t *testing.T, svc core.CustomerService, name, phone, landmark string) *core.Customer {
	t.Helper()
	c, err := svc.CreateCustomer(context.Background(), name, phone, "", landmark)
	if err != nil {
		t.Fatalf("CreateCustomer(%q) failed: %v", name, err)
	}
	return c
}

func TestCustomerService_CreateNormalizesDevanagari(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewCustomerService(pool, core.NewBalanceCache())
	ctx := context.Background()

	c := seedCustomer(t, svc, "राजेश कुमार", "9876543210", "mandir ke paas")
	if c.Name != "राजेश कुमार" {
		t.Errorf("display name must keep the spoken script, got %q", c.Name)
	}

	// The stored normalized form is romanized, so a Latin-script query finds
	// the Devanagari customer.
	hits, err := svc.SearchCustomer(ctx, "Rajesh Kumar")
	if err != nil {
		t.Fatalf("SearchCustomer failed: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != c.ID {
		t.Fatalf("expected romanized search to find the Devanagari customer, got %v", hits)
	}
	if hits[0].Score != 1.0 {
		t.Errorf("exact normalized match should score 1.0, got %.2f", hits[0].Score)
	}
}

func TestCustomerService_CreateRejectsDuplicateName(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewCustomerService(pool, core.NewBalanceCache())
	ctx := context.Background()

	seedCustomer(t, svc, "Rajesh Kumar", "9876543210", "")
	// Same normalized name, different casing and spacing.
	if _, err := svc.CreateCustomer(ctx, "  rajesh   KUMAR ", "", "", ""); !errors.Is(err, core.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate normalized name, got %v", err)
	}
}

func TestCustomerService_CreateCustomerFast(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewCustomerService(pool, core.NewBalanceCache())
	ctx := context.Background()

	existing := seedCustomer(t, svc, "Ramesh Gupta", "9876500000", "")

	// A near-duplicate name must come back as a suggestion, not a new row.
	created, suggestions, err := svc.CreateCustomerFast(ctx, "Ramesh Gupta ji")
	if err != nil {
		t.Fatalf("CreateCustomerFast failed: %v", err)
	}
	if created != nil {
		t.Fatalf("expected no customer created for near-duplicate, got %+v", created)
	}
	if len(suggestions) == 0 || suggestions[0].ID != existing.ID {
		t.Fatalf("expected existing customer suggested, got %v", suggestions)
	}

	// A clearly new name is created directly.
	created, suggestions, err = svc.CreateCustomerFast(ctx, "Vikram Joshi")
	if err != nil {
		t.Fatalf("CreateCustomerFast failed: %v", err)
	}
	if created == nil || created.Name != "Vikram Joshi" {
		t.Fatalf("expected customer created, got %+v (suggestions %v)", created, suggestions)
	}
}

func TestCustomerService_SearchRanking(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewCustomerService(pool, core.NewBalanceCache())
	ctx := context.Background()

	rajesh := seedCustomer(t, svc, "Rajesh Kumar", "9876543210", "mandir ke paas")
	deepak := seedCustomer(t, svc, "Deepak Verma", "9812345678", "school ke samne")
	seedCustomer(t, svc, "Suresh Yadav", "9800011122", "")

	tests := []struct {
		name    string
		query   string
		wantID  int64
		ranking string
	}{
		{"exact full name", "Rajesh Kumar", rajesh.ID, "exact"},
		{"full phone", "9812345678", deepak.ID, "phone"},
		{"phone fragment", "1234567", deepak.ID, "phone"},
		{"partial name contains", "Rajesh", rajesh.ID, "contains"},
		{"honorific inserted", "Deepak bhai Verma", deepak.ID, "fuzzy"},
		{"landmark", "mandir", rajesh.ID, "landmark"},
		{"typo one edit away", "Rajseh Kumar", rajesh.ID, "fuzzy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := svc.SearchCustomer(ctx, tt.query)
			if err != nil {
				t.Fatalf("SearchCustomer(%q) failed: %v", tt.query, err)
			}
			if len(hits) == 0 {
				t.Fatalf("SearchCustomer(%q) returned no hits", tt.query)
			}
			if hits[0].ID != tt.wantID {
				t.Errorf("top hit for %q = %q (id %d), want id %d",
					tt.query, hits[0].Name, hits[0].ID, tt.wantID)
			}
			if hits[0].MatchedBy != tt.ranking {
				t.Errorf("matched_by for %q = %q, want %q", tt.query, hits[0].MatchedBy, tt.ranking)
			}
		})
	}
}

func TestCustomerService_NicknameSearch(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewCustomerService(pool, core.NewBalanceCache())
	ctx := context.Background()

	c := seedCustomer(t, svc, "Sharma Ji", "9811100022", "")
	nick := "Panditji"
	if _, err := svc.UpdateCustomer(ctx, c.ID, core.CustomerUpdate{Nickname: &nick}); err != nil {
		t.Fatalf("UpdateCustomer failed: %v", err)
	}

	hits, err := svc.SearchCustomer(ctx, "Panditji")
	if err != nil {
		t.Fatalf("SearchCustomer failed: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != c.ID {
		t.Fatalf("nickname search did not find customer, got %v", hits)
	}
	if hits[0].MatchedBy != "nickname" {
		t.Errorf("matched_by = %q, want nickname", hits[0].MatchedBy)
	}
}

func TestCustomerService_FindSimilar(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewCustomerService(pool, core.NewBalanceCache())
	ctx := context.Background()

	gupta := seedCustomer(t, svc, "Ramesh Gupta", "9876500000", "")
	seedCustomer(t, svc, "Suresh Yadav", "9800011122", "")

	similar, err := svc.FindSimilar(ctx, "Ramesh Gupt", 0.7)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(similar) == 0 || similar[0].ID != gupta.ID {
		t.Fatalf("expected Ramesh Gupta as similar, got %v", similar)
	}
	for _, s := range similar {
		if s.Score < 0.7 {
			t.Errorf("FindSimilar returned %q below threshold: %.2f", s.Name, s.Score)
		}
	}
}

func TestCustomerService_UpdateAndPhone(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewCustomerService(pool, core.NewBalanceCache())
	ctx := context.Background()

	c := seedCustomer(t, svc, "Amit Singh", "", "")

	newPhone := "9822233344"
	updated, err := svc.UpdatePhone(ctx, c.ID, newPhone)
	if err != nil {
		t.Fatalf("UpdatePhone failed: %v", err)
	}
	if updated.Phone != newPhone {
		t.Errorf("phone = %q, want %q", updated.Phone, newPhone)
	}

	email := "amit@example.com"
	landmark := "bus stand ke peeche"
	updated, err = svc.UpdateCustomer(ctx, c.ID, core.CustomerUpdate{Landmark: &landmark, Email: &email})
	if err != nil {
		t.Fatalf("UpdateCustomer failed: %v", err)
	}
	if updated.Email != email || updated.Landmark != landmark {
		t.Errorf("update lost fields: email=%q landmark=%q", updated.Email, updated.Landmark)
	}
	if updated.Name != "Amit Singh" {
		t.Errorf("nil name pointer must leave name unchanged, got %q", updated.Name)
	}

	if _, err = svc.GetCustomer(ctx, 99999); !errors.Is(err, core.ErrCustomerNotFound) {
		t.Errorf("expected ErrCustomerNotFound for missing id, got %v", err)
	}
}

func TestCustomerService_DeleteCustomerData(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	cache := core.NewBalanceCache()
	customers := core.NewCustomerService(pool, cache)
	products := core.NewProductService(pool)
	invoices := core.NewInvoiceService(pool, products, cache, ist)
	ledger := core.NewLedgerService(pool, cache)
	ctx := context.Background()

	c := seedCustomer(t, customers, "Mohan Lal", "9833344455", "")

	preview, err := invoices.PreviewInvoice(ctx, c, []core.ItemInput{
		{Name: "chawal", Quantity: dec("2")},
	}, false, "")
	if err != nil {
		t.Fatalf("PreviewInvoice failed: %v", err)
	}
	if _, err = invoices.ConfirmInvoice(ctx, preview, ""); err != nil {
		t.Fatalf("ConfirmInvoice failed: %v", err)
	}
	if _, err = ledger.RecordPayment(ctx, c.ID, dec("50"), "cash", ""); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	counts, jobIDs, err := customers.DeleteCustomerData(ctx, c.ID)
	if err != nil {
		t.Fatalf("DeleteCustomerData failed: %v", err)
	}
	if counts.Invoices != 1 || counts.InvoiceItems != 1 {
		t.Errorf("expected 1 invoice + 1 item deleted, got %+v", counts)
	}
	if counts.Payments != 1 {
		t.Errorf("expected 1 payment deleted, got %d", counts.Payments)
	}
	if counts.LedgerEntries != 2 {
		t.Errorf("expected 2 ledger entries deleted (invoice + payment), got %d", counts.LedgerEntries)
	}
	if len(jobIDs) != 0 {
		t.Errorf("no reminders scheduled, expected no queue jobs to cancel, got %v", jobIDs)
	}

	if _, err = customers.GetCustomer(ctx, c.ID); !errors.Is(err, core.ErrCustomerNotFound) {
		t.Errorf("customer must be gone after delete, got %v", err)
	}
}

func TestCustomerService_BalanceListing(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	cache := core.NewBalanceCache()
	customers := core.NewCustomerService(pool, cache)
	products := core.NewProductService(pool)
	invoices := core.NewInvoiceService(pool, products, cache, ist)
	ctx := context.Background()

	a := seedCustomer(t, customers, "Customer A", "9800000001", "")
	b := seedCustomer(t, customers, "Customer B", "9800000002", "")
	seedCustomer(t, customers, "Customer C", "9800000003", "")

	for _, tc := range []struct {
		cust *core.Customer
		qty  string
	}{{a, "4"}, {b, "2"}} {
		preview, err := invoices.PreviewInvoice(ctx, tc.cust, []core.ItemInput{
			{Name: "chawal", Quantity: dec(tc.qty)},
		}, false, "")
		if err != nil {
			t.Fatalf("PreviewInvoice failed: %v", err)
		}
		if _, err = invoices.ConfirmInvoice(ctx, preview, ""); err != nil {
			t.Fatalf("ConfirmInvoice failed: %v", err)
		}
	}

	balances, err := customers.ListBalances(ctx)
	if err != nil {
		t.Fatalf("ListBalances failed: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("expected 2 customers with udhaar, got %d", len(balances))
	}
	// Largest balance first: A owes 200, B owes 100.
	if balances[0].CustomerID != a.ID || !balances[0].Balance.Equal(dec("200")) {
		t.Errorf("top balance = %+v, want customer A with 200", balances[0])
	}

	total, count, err := customers.TotalPending(ctx)
	if err != nil {
		t.Fatalf("TotalPending failed: %v", err)
	}
	if !total.Equal(dec("300")) || count != 2 {
		t.Errorf("TotalPending = %s across %d, want 300 across 2", total, count)
	}
}
