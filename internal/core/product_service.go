package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"kirana-voice/internal/names"
)

// Auto-created placeholders get a large stock so a sale is never blocked on
// a product the shopkeeper has not catalogued yet.
var autoCreateStock = decimal.NewFromInt(9999)

// overlapThreshold is the minimum longest-overlap ratio for the fuzzy
// product pass.
const overlapThreshold = 0.5

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ProductInput carries the catalogue fields for product creation.
type ProductInput struct {
	Name      string
	Unit      string
	HSNCode   string
	Price     decimal.Decimal
	Stock     decimal.Decimal
	GSTRate   decimal.Decimal
	CessRate  decimal.Decimal
	GSTExempt bool
}

// ProductService owns the catalogue and spoken-name product resolution.
type ProductService interface {
	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	UpdateProduct(ctx context.Context, id int64, price, stock, gstRate *decimal.Decimal, gstExempt *bool) (*Product, error)
	LowStock(ctx context.Context) ([]Product, error)

	// FindProduct resolves a spoken product name in two passes: exact
	// case-insensitive contains, then overlap-ratio fuzzy. ErrProductNotFound
	// when neither pass accepts.
	FindProduct(ctx context.Context, name string) (*Product, error)
	// ResolveOrCreate is FindProduct plus pass three: auto-create a zero-price
	// placeholder. It runs on the caller's transaction so a preview that fails
	// halfway rolls its placeholders back too. The bool reports creation.
	ResolveOrCreate(ctx context.Context, tx pgx.Tx, name, unit string) (*Product, bool, error)
}

type productService struct {
	pool *pgxpool.Pool
}

func NewProductService(pool *pgxpool.Pool) ProductService {
	return &productService{pool: pool}
}

const productColumns = `id, name, name_normalized, unit, price, stock, hsn_code, gst_rate,
	cess_rate, gst_exempt, auto_created, low_stock_threshold, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.NameNormalized, &p.Unit, &p.Price, &p.Stock,
		&p.HSNCode, &p.GSTRate, &p.CessRate, &p.GSTExempt, &p.AutoCreated,
		&p.LowStockThreshold, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *productService) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	name := strings.TrimSpace(names.Transliterate(input.Name))
	if name == "" {
		return nil, fmt.Errorf("product name is empty")
	}
	if input.Price.Sign() < 0 {
		return nil, fmt.Errorf("product price cannot be negative")
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO products (name, name_normalized, unit, price, stock, hsn_code, gst_rate, cess_rate, gst_exempt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+productColumns,
		name, names.Normalize(name), input.Unit, input.Price, input.Stock,
		input.HSNCode, input.GSTRate, input.CessRate, input.GSTExempt)
	p, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return p, nil
}

func (s *productService) GetProduct(ctx context.Context, id int64) (*Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", id, err)
	}
	return p, nil
}

func (s *productService) ListProducts(ctx context.Context) ([]Product, error) {
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY name`)
}

func (s *productService) LowStock(ctx context.Context) ([]Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active AND stock <= low_stock_threshold
		ORDER BY stock ASC`)
}

func (s *productService) queryProducts(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.NameNormalized, &p.Unit, &p.Price, &p.Stock,
			&p.HSNCode, &p.GSTRate, &p.CessRate, &p.GSTExempt, &p.AutoCreated,
			&p.LowStockThreshold, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id int64, price, stock, gstRate *decimal.Decimal, gstExempt *bool) (*Product, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	if price != nil {
		if price.Sign() < 0 {
			return nil, fmt.Errorf("product price cannot be negative")
		}
		args = append(args, *price)
		sets = append(sets, fmt.Sprintf("price = $%d", len(args)))
		// A real price on a placeholder means the shopkeeper has catalogued it.
		sets = append(sets, "auto_created = false")
	}
	if stock != nil {
		if stock.Sign() < 0 {
			return nil, fmt.Errorf("product stock cannot be negative")
		}
		args = append(args, *stock)
		sets = append(sets, fmt.Sprintf("stock = $%d", len(args)))
	}
	if gstRate != nil {
		args = append(args, *gstRate)
		sets = append(sets, fmt.Sprintf("gst_rate = $%d", len(args)))
	}
	if gstExempt != nil {
		args = append(args, *gstExempt)
		sets = append(sets, fmt.Sprintf("gst_exempt = $%d", len(args)))
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE products SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+productColumns,
		args...)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}
	return p, nil
}

// ── Spoken-name resolution ───────────────────────────────────────────────────

func (s *productService) FindProduct(ctx context.Context, name string) (*Product, error) {
	return findProduct(ctx, s.pool, name)
}

func (s *productService) ResolveOrCreate(ctx context.Context, tx pgx.Tx, name, unit string) (*Product, bool, error) {
	p, err := findProduct(ctx, tx, name)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, ErrProductNotFound) {
		return nil, false, err
	}

	display := strings.TrimSpace(names.Transliterate(name))
	if unit == "" {
		unit = "piece"
	}
	// ON CONFLICT absorbs a concurrent preview racing to create the same
	// placeholder.
	row := tx.QueryRow(ctx, `
		INSERT INTO products (name, name_normalized, unit, price, stock, auto_created)
		VALUES ($1, $2, $3, 0, $4, true)
		ON CONFLICT (name_normalized) DO UPDATE SET updated_at = NOW()
		RETURNING `+productColumns,
		display, names.Normalize(display), unit, autoCreateStock)
	p, err = scanProduct(row)
	if err != nil {
		return nil, false, fmt.Errorf("failed to auto-create product %q: %w", name, err)
	}
	return p, true, nil
}

// findProduct is the two-pass resolver, usable inside or outside a
// transaction.
func findProduct(ctx context.Context, q pgxQuerier, name string) (*Product, error) {
	nq := names.Normalize(name)
	if nq == "" {
		return nil, ErrProductNotFound
	}

	// Pass 1: exact or contains on the normalized name. Ties prefer an exact
	// hit, then the shortest name so "chawal" beats "chawal basmati premium".
	row := q.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active AND (name_normalized = $1
			OR name_normalized LIKE '%' || $1 || '%'
			OR $1 LIKE '%' || name_normalized || '%')
		ORDER BY (name_normalized = $1) DESC, length(name_normalized) ASC
		LIMIT 1
	`, nq)
	p, err := scanProduct(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to resolve product %q: %w", name, err)
	}

	// Pass 2: overlap-ratio fuzzy over the catalogue.
	rows, err := q.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue: %w", err)
	}
	defer rows.Close()

	qa := alnumOnly(nq)
	var (
		best      *Product
		bestRatio float64
	)
	for rows.Next() {
		var cand Product
		if err := rows.Scan(&cand.ID, &cand.Name, &cand.NameNormalized, &cand.Unit, &cand.Price,
			&cand.Stock, &cand.HSNCode, &cand.GSTRate, &cand.CessRate, &cand.GSTExempt,
			&cand.AutoCreated, &cand.LowStockThreshold, &cand.IsActive, &cand.CreatedAt,
			&cand.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		ratio := overlapRatio(qa, alnumOnly(cand.NameNormalized))
		if ratio >= overlapThreshold && ratio > bestRatio {
			c := cand
			best, bestRatio = &c, ratio
		}
	}
	if best == nil {
		return nil, ErrProductNotFound
	}
	return best, nil
}

// alnumOnly lowercases and strips everything outside [a-z0-9], so "Chawal
// (Basmati)" and "chawal basmati" compare equal.
func alnumOnly(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// overlapRatio is the longest common substring relative to the shorter
// string. "cheeni" inside "cheenipacket" scores 1.0.
func overlapRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}
	return float64(longestCommonSubstring(a, b)) / float64(shorter)
}

func longestCommonSubstring(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return best
}
