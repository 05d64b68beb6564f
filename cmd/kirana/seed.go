package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kirana-voice/internal/db"
)

// seedProducts is the starter catalogue for a fresh shop: the staples every
// kirana counter sells, with typical GST slabs. Prices are placeholders the
// shopkeeper corrects by voice ("chini ka rate 45 kar do").
var seedProducts = []struct {
	name, unit, hsn string
	price, gstRate  string
	gstExempt       bool
	lowStock        string
}{
	{"Chawal", "kg", "1006", "60", "0", true, "25"},
	{"Atta", "kg", "1101", "45", "0", true, "25"},
	{"Chini", "kg", "1701", "44", "5", false, "20"},
	{"Dal Toor", "kg", "0713", "150", "0", true, "10"},
	{"Tel Sarson", "litre", "1514", "160", "5", false, "10"},
	{"Doodh", "litre", "0401", "60", "0", true, "10"},
	{"Maggi", "piece", "1902", "14", "12", false, "30"},
	{"Surf Excel", "piece", "3402", "95", "18", false, "12"},
	{"Parle-G", "piece", "1905", "10", "18", false, "40"},
	{"Namak", "kg", "2501", "24", "0", true, "15"},
	{"Chai Patti", "piece", "0902", "140", "5", false, "8"},
	{"Sabun", "piece", "3401", "35", "18", false, "20"},
}

// seedCustomers gives a fresh install someone to bill against.
var seedCustomers = []struct {
	name, phone, nickname, landmark string
}{
	{"Ramesh Sharma", "9876543210", "sharma ji", "mandir ke paas"},
	{"Suresh Verma", "9876501234", "", "school wale"},
	{"Lakshmi Devi", "", "lakshmi amma", ""},
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the starter product catalogue into an empty shop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pool, err := db.NewPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			tx, err := pool.Begin(ctx)
			if err != nil {
				return fmt.Errorf("begin seed transaction: %w", err)
			}
			defer tx.Rollback(ctx)

			inserted := 0
			for _, p := range seedProducts {
				tag, err := tx.Exec(ctx, `
					INSERT INTO products (name, name_normalized, unit, price, hsn_code, gst_rate, gst_exempt, low_stock_threshold)
					VALUES ($1, lower($1), $2, $3, $4, $5, $6, $7)
					ON CONFLICT (name_normalized) DO NOTHING`,
					p.name, p.unit, p.price, p.hsn, p.gstRate, p.gstExempt, p.lowStock)
				if err != nil {
					return fmt.Errorf("seed product %s: %w", p.name, err)
				}
				inserted += int(tag.RowsAffected())
			}

			for _, c := range seedCustomers {
				tag, err := tx.Exec(ctx, `
					INSERT INTO customers (name, name_normalized, phone, nickname, landmark)
					VALUES ($1, lower($1), $2, $3, $4)
					ON CONFLICT (name_normalized) DO NOTHING`,
					c.name, c.phone, c.nickname, c.landmark)
				if err != nil {
					return fmt.Errorf("seed customer %s: %w", c.name, err)
				}
				inserted += int(tag.RowsAffected())
			}

			if err := tx.Commit(ctx); err != nil {
				return fmt.Errorf("commit seed: %w", err)
			}
			log.Info().Int("inserted", inserted).Msg("seed complete")
			return nil
		},
	}
}
