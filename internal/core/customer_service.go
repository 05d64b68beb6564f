package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"kirana-voice/internal/names"
)

// balanceCacheTTL bounds how stale a spoken balance may be. Every mutation
// invalidates the entry anyway; the TTL only covers writes from other
// processes.
const balanceCacheTTL = 30 * time.Second

// searchLimit caps ranked search results.
const searchLimit = 10

// similarScanLimit caps how many customers the duplicate gate scans.
const similarScanLimit = 100

// dedupeThreshold is the similarity at which a fast-create is held back for
// confirmation instead of inserting a near-duplicate.
const dedupeThreshold = 0.85

// CustomerUpdate carries the optional fields of an update; nil means leave
// unchanged.
type CustomerUpdate struct {
	Name     *string
	Phone    *string
	Nickname *string
	Landmark *string
	Email    *string
	GSTIN    *string
}

// CustomerService owns the customer master and the udhaar balances.
type CustomerService interface {
	// CreateCustomer fails with ErrConflict when a customer with the same
	// normalized name already exists.
	CreateCustomer(ctx context.Context, name, phone, nickname, landmark string) (*Customer, error)
	// CreateCustomerFast is the voice path: when FindSimilar at 0.85 returns
	// candidates, nothing is inserted and the candidates come back as
	// suggestions so the engine can ask "did you mean...".
	CreateCustomerFast(ctx context.Context, name string) (*Customer, []RankedCustomer, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	UpdateCustomer(ctx context.Context, id int64, upd CustomerUpdate) (*Customer, error)
	UpdatePhone(ctx context.Context, id int64, phone string) (*Customer, error)

	// SearchCustomer ranks every active customer against a spoken query:
	// phone digits, exact name, substring, stored nickname, landmark words
	// and the fuzzy pipeline. Each customer scores the maximum of the rules.
	// Top 10, strongest first.
	SearchCustomer(ctx context.Context, query string) ([]RankedCustomer, error)
	// SearchCustomerWarm is SearchCustomer plus the full scanned customer
	// set, so a session cache can rescan later queries without the DB.
	SearchCustomerWarm(ctx context.Context, query string) ([]RankedCustomer, []Customer, error)
	// FindSimilar scans the first 100 customers with the name matcher;
	// threshold <= 0 means the matcher default of 0.7.
	FindSimilar(ctx context.Context, name string, threshold float64) ([]RankedCustomer, error)

	// GetBalance reads the row; GetBalanceFast serves from a 30-second
	// in-process cache that every mutation invalidates.
	GetBalance(ctx context.Context, id int64) (decimal.Decimal, error)
	GetBalanceFast(ctx context.Context, id int64) (decimal.Decimal, error)
	ListBalances(ctx context.Context) ([]CustomerBalance, error)
	TotalPending(ctx context.Context) (decimal.Decimal, int, error)

	// DeleteCustomerData removes the customer and every dependent row in one
	// transaction. Returns per-table counts and the external job ids of any
	// scheduled reminders so the caller can cancel them in the queue.
	DeleteCustomerData(ctx context.Context, id int64) (*DeleteCounts, []string, error)
}

type customerService struct {
	pool     *pgxpool.Pool
	balances *BalanceCache
}

func NewCustomerService(pool *pgxpool.Pool, balances *BalanceCache) CustomerService {
	if balances == nil {
		balances = NewBalanceCache()
	}
	return &customerService{pool: pool, balances: balances}
}

const customerColumns = `id, name, name_normalized, phone, nickname, landmark, email, gstin,
	balance, total_purchases, visit_count, last_visit, is_active, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.NameNormalized, &c.Phone, &c.Nickname, &c.Landmark,
		&c.Email, &c.GSTIN, &c.Balance, &c.TotalPurchases, &c.VisitCount, &c.LastVisit,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *customerService) CreateCustomer(ctx context.Context, name, phone, nickname, landmark string) (*Customer, error) {
	name = strings.TrimSpace(names.Transliterate(name))
	if name == "" {
		return nil, fmt.Errorf("customer name is empty")
	}
	normalized := names.Normalize(name)

	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM customers WHERE name_normalized = $1)", normalized).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate customer: %w", err)
	}
	if exists {
		return nil, ErrConflict
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO customers (name, name_normalized, phone, nickname, landmark)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+customerColumns,
		name, normalized, digitsOnly(phone), names.Normalize(nickname), strings.TrimSpace(landmark))
	c, err := scanCustomer(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return c, nil
}

func (s *customerService) CreateCustomerFast(ctx context.Context, name string) (*Customer, []RankedCustomer, error) {
	similar, err := s.FindSimilar(ctx, name, dedupeThreshold)
	if err != nil {
		return nil, nil, err
	}
	if len(similar) > 0 {
		return nil, similar, nil
	}
	c, err := s.CreateCustomer(ctx, name, "", "", "")
	if err != nil {
		return nil, nil, err
	}
	return c, nil, nil
}

func (s *customerService) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to fetch customer %d: %w", id, err)
	}
	return c, nil
}

func (s *customerService) UpdateCustomer(ctx context.Context, id int64, upd CustomerUpdate) (*Customer, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	if upd.Name != nil {
		display := strings.TrimSpace(names.Transliterate(*upd.Name))
		args = append(args, display)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
		args = append(args, names.Normalize(display))
		sets = append(sets, fmt.Sprintf("name_normalized = $%d", len(args)))
	}
	if upd.Phone != nil {
		args = append(args, digitsOnly(*upd.Phone))
		sets = append(sets, fmt.Sprintf("phone = $%d", len(args)))
	}
	if upd.Nickname != nil {
		args = append(args, names.Normalize(*upd.Nickname))
		sets = append(sets, fmt.Sprintf("nickname = $%d", len(args)))
	}
	if upd.Landmark != nil {
		args = append(args, strings.TrimSpace(*upd.Landmark))
		sets = append(sets, fmt.Sprintf("landmark = $%d", len(args)))
	}
	if upd.Email != nil {
		args = append(args, strings.TrimSpace(*upd.Email))
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}
	if upd.GSTIN != nil {
		args = append(args, strings.ToUpper(strings.TrimSpace(*upd.GSTIN)))
		sets = append(sets, fmt.Sprintf("gstin = $%d", len(args)))
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE customers SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+customerColumns,
		args...)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to update customer %d: %w", id, err)
	}
	return c, nil
}

func (s *customerService) UpdatePhone(ctx context.Context, id int64, phone string) (*Customer, error) {
	p := phone
	return s.UpdateCustomer(ctx, id, CustomerUpdate{Phone: &p})
}

// ── Search ───────────────────────────────────────────────────────────────────

func (s *customerService) SearchCustomer(ctx context.Context, query string) ([]RankedCustomer, error) {
	all, err := s.loadActive(ctx, 0)
	if err != nil {
		return nil, err
	}
	ranked := RankCustomers(query, all)
	if len(ranked) > searchLimit {
		ranked = ranked[:searchLimit]
	}
	return ranked, nil
}

func (s *customerService) SearchCustomerWarm(ctx context.Context, query string) ([]RankedCustomer, []Customer, error) {
	all, err := s.loadActive(ctx, 0)
	if err != nil {
		return nil, nil, err
	}
	ranked := RankCustomers(query, all)
	if len(ranked) > searchLimit {
		ranked = ranked[:searchLimit]
	}
	return ranked, all, nil
}

func (s *customerService) FindSimilar(ctx context.Context, name string, threshold float64) ([]RankedCustomer, error) {
	if threshold <= 0 {
		threshold = names.DefaultThreshold
	}
	customers, err := s.loadActive(ctx, similarScanLimit)
	if err != nil {
		return nil, err
	}
	nq := names.Normalize(name)

	var similar []RankedCustomer
	for _, c := range customers {
		r := names.Score(nq, c.NameNormalized)
		if r.Score >= threshold {
			similar = append(similar, RankedCustomer{Customer: c, Score: r.Score, MatchedBy: r.MatchType})
		}
	}
	sort.SliceStable(similar, func(i, j int) bool { return similar[i].Score > similar[j].Score })
	return similar, nil
}

func (s *customerService) loadActive(ctx context.Context, limit int) ([]Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE is_active ORDER BY id`
	args := []any{}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $1"
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.NameNormalized, &c.Phone, &c.Nickname, &c.Landmark,
			&c.Email, &c.GSTIN, &c.Balance, &c.TotalPurchases, &c.VisitCount, &c.LastVisit,
			&c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, nil
}

// RankCustomers scores every customer against the query and sorts strongest
// first. A shop has at most a few hundred regulars, so ranking in memory
// beats pushing fuzzy logic into SQL. Exported for the resolver's session
// cache, which rescans a remembered candidate set without touching the DB.
func RankCustomers(query string, customers []Customer) []RankedCustomer {
	nq := names.Normalize(query)
	digits := digitsOnly(query)

	var ranked []RankedCustomer
	for _, c := range customers {
		score, rule := rankOne(nq, digits, &c)
		if score <= 0 {
			continue
		}
		ranked = append(ranked, RankedCustomer{Customer: c, Score: score, MatchedBy: rule})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// rankOne scores one customer as the maximum over the ranking rules.
func rankOne(nq, digits string, c *Customer) (float64, string) {
	best, rule := 0.0, ""
	take := func(score float64, r string) {
		if score > best {
			best, rule = score, r
		}
	}

	// At least 7 spoken digits so a stray house number does not match half
	// the phone book.
	if len(digits) >= 7 && strings.Contains(digitsOnly(c.Phone), digits) {
		take(0.95, "phone")
	}
	if nq == "" {
		return best, rule
	}
	if nq == c.NameNormalized {
		take(1.0, "exact")
	} else if strings.Contains(c.NameNormalized, nq) || strings.Contains(nq, c.NameNormalized) {
		shorter, longer := len(nq), len(c.NameNormalized)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		take(0.8+0.05*float64(shorter)/float64(longer), "contains")
	}
	if c.Nickname != "" {
		if nq == c.Nickname {
			take(0.9, "nickname")
		} else if strings.Contains(c.Nickname, nq) || strings.Contains(nq, c.Nickname) {
			take(0.7, "nickname")
		}
	}
	if c.Landmark != "" {
		nl := names.Normalize(c.Landmark)
		if strings.Contains(nl, nq) || strings.Contains(nq, nl) {
			take(0.6, "landmark")
		}
	}
	// Fuzzy pipeline over the full name and the first name, capped at 0.75 so
	// a fuzzy hit alone never skips disambiguation.
	fuzzy := names.Score(nq, c.NameNormalized).Score
	if first, _, ok := strings.Cut(c.NameNormalized, " "); ok {
		if r := names.Score(nq, first); r.Score > fuzzy {
			fuzzy = r.Score
		}
	}
	if fuzzy >= names.DefaultThreshold {
		if fuzzy > 0.75 {
			fuzzy = 0.75
		}
		take(fuzzy, "fuzzy")
	}
	return best, rule
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ── Balances ─────────────────────────────────────────────────────────────────

func (s *customerService) GetBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := s.pool.QueryRow(ctx, "SELECT balance FROM customers WHERE id = $1", id).Scan(&bal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrCustomerNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to fetch balance for customer %d: %w", id, err)
	}
	s.balances.put(id, bal)
	return bal, nil
}

func (s *customerService) GetBalanceFast(ctx context.Context, id int64) (decimal.Decimal, error) {
	if bal, ok := s.balances.get(id); ok {
		return bal, nil
	}
	return s.GetBalance(ctx, id)
}

func (s *customerService) ListBalances(ctx context.Context) ([]CustomerBalance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, phone, balance
		FROM customers
		WHERE balance > 0
		ORDER BY balance DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var out []CustomerBalance
	for rows.Next() {
		var b CustomerBalance
		if err := rows.Scan(&b.CustomerID, &b.Name, &b.Phone, &b.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan balance row: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *customerService) TotalPending(ctx context.Context) (decimal.Decimal, int, error) {
	var total decimal.Decimal
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(balance), 0), COUNT(*)
		FROM customers
		WHERE balance > 0
	`).Scan(&total, &count)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to total pending balances: %w", err)
	}
	return total, count, nil
}

// ── Cascade delete ───────────────────────────────────────────────────────────

func (s *customerService) DeleteCustomerData(ctx context.Context, id int64) (*DeleteCounts, []string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the customer row so a concurrent invoice confirm cannot interleave
	// with the cascade.
	var lockedID int64
	err = tx.QueryRow(ctx, "SELECT id FROM customers WHERE id = $1 FOR UPDATE", id).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrCustomerNotFound
		}
		return nil, nil, fmt.Errorf("failed to lock customer %d: %w", id, err)
	}

	// Collect queue job ids before the rows disappear.
	var jobIDs []string
	rows, err := tx.Query(ctx, `
		SELECT external_job_id FROM reminders
		WHERE customer_id = $1 AND status = $2 AND external_job_id <> ''
	`, id, ReminderScheduled)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query reminder jobs: %w", err)
	}
	for rows.Next() {
		var jobID string
		if err := rows.Scan(&jobID); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("failed to scan reminder job id: %w", err)
		}
		jobIDs = append(jobIDs, jobID)
	}
	rows.Close()

	var counts DeleteCounts

	tag, err := tx.Exec(ctx, "DELETE FROM reminders WHERE customer_id = $1", id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to delete reminders: %w", err)
	}
	counts.Reminders = tag.RowsAffected()

	tag, err = tx.Exec(ctx, "DELETE FROM ledger_entries WHERE customer_id = $1", id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to delete ledger entries: %w", err)
	}
	counts.LedgerEntries = tag.RowsAffected()

	tag, err = tx.Exec(ctx, "DELETE FROM payments WHERE customer_id = $1", id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to delete payments: %w", err)
	}
	counts.Payments = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `
		DELETE FROM invoice_items
		WHERE invoice_id IN (SELECT id FROM invoices WHERE customer_id = $1)
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to delete invoice items: %w", err)
	}
	counts.InvoiceItems = tag.RowsAffected()

	tag, err = tx.Exec(ctx, "DELETE FROM invoices WHERE customer_id = $1", id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to delete invoices: %w", err)
	}
	counts.Invoices = tag.RowsAffected()

	if _, err = tx.Exec(ctx, "DELETE FROM customers WHERE id = $1", id); err != nil {
		return nil, nil, fmt.Errorf("failed to delete customer %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit customer delete: %w", err)
	}

	s.balances.invalidate(id)
	return &counts, jobIDs, nil
}

// ── Balance cache ────────────────────────────────────────────────────────────

type balanceEntry struct {
	balance decimal.Decimal
	expires time.Time
}

// BalanceCache is shared by every service that mutates balances.
type BalanceCache struct {
	mu      sync.Mutex
	entries map[int64]balanceEntry
}

func NewBalanceCache() *BalanceCache {
	return &BalanceCache{entries: make(map[int64]balanceEntry)}
}

func (c *BalanceCache) get(id int64) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, id)
		return decimal.Zero, false
	}
	return e.balance, true
}

func (c *BalanceCache) put(id int64, balance decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = balanceEntry{balance: balance, expires: time.Now().Add(balanceCacheTTL)}
}

func (c *BalanceCache) invalidate(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}
