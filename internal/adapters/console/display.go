package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kirana-voice/internal/core"
)

func printBalances(balances []core.CustomerBalance, total decimal.Decimal, count int) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 62))
	fmt.Printf("  UDHAAR — %d customers, Rs. %s pending\n", count, total.StringFixed(2))
	fmt.Println(strings.Repeat("=", 62))
	if len(balances) == 0 {
		fmt.Println("  Sab clear hai.")
		fmt.Println(strings.Repeat("=", 62))
		return
	}
	fmt.Printf("  %-6s %-30s %-12s %10s\n", "ID", "NAME", "PHONE", "BALANCE")
	fmt.Println(strings.Repeat("-", 62))
	for _, b := range balances {
		fmt.Printf("  %-6d %-30s %-12s %10s\n", b.CustomerID, b.Name, b.Phone, b.Balance.StringFixed(2))
	}
	fmt.Println(strings.Repeat("=", 62))
}

func printCustomers(matches []core.RankedCustomer) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("  CUSTOMERS")
	fmt.Println(strings.Repeat("=", 72))
	if len(matches) == 0 {
		fmt.Println("  Koi nahi mila.")
		fmt.Println(strings.Repeat("=", 72))
		return
	}
	fmt.Printf("  %-6s %-25s %-12s %10s  %-8s %s\n", "ID", "NAME", "PHONE", "BALANCE", "SCORE", "MATCHED BY")
	fmt.Println(strings.Repeat("-", 72))
	for _, m := range matches {
		fmt.Printf("  %-6d %-25s %-12s %10s  %-8.2f %s\n",
			m.ID, m.Name, m.Phone, m.Balance.StringFixed(2), m.Score, m.MatchedBy)
	}
	fmt.Println(strings.Repeat("=", 72))
}

func printStock(products []core.Product, title string) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 72))
	fmt.Printf("  %s\n", title)
	fmt.Println(strings.Repeat("=", 72))
	if len(products) == 0 {
		fmt.Println("  Koi product nahi.")
		fmt.Println(strings.Repeat("=", 72))
		return
	}
	fmt.Printf("  %-6s %-28s %-6s %10s %10s  %s\n", "ID", "NAME", "UNIT", "PRICE", "STOCK", "GST%")
	fmt.Println(strings.Repeat("-", 72))
	for _, p := range products {
		gst := p.GSTRate.StringFixed(1)
		if p.GSTExempt {
			gst = "exempt"
		}
		fmt.Printf("  %-6d %-28s %-6s %10s %10s  %s\n",
			p.ID, p.Name, p.Unit, p.Price.StringFixed(2), p.Stock.StringFixed(2), gst)
	}
	fmt.Println(strings.Repeat("=", 72))
}

func printReminders(reminders []core.Reminder, loc *time.Location) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("  SCHEDULED REMINDERS")
	fmt.Println(strings.Repeat("=", 72))
	if len(reminders) == 0 {
		fmt.Println("  Koi reminder nahi hai.")
		fmt.Println(strings.Repeat("=", 72))
		return
	}
	fmt.Printf("  %-6s %-25s %-18s %-9s %s\n", "ID", "CUSTOMER", "WHEN", "CHANNEL", "NOTES")
	fmt.Println(strings.Repeat("-", 72))
	for _, r := range reminders {
		fmt.Printf("  %-6d %-25s %-18s %-9s %s\n",
			r.ID, r.CustomerName, r.RemindAt.In(loc).Format("02 Jan 15:04"), r.Channel, r.Notes)
	}
	fmt.Println(strings.Repeat("=", 72))
}

func printSummary(s *core.DailySummary) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 62))
	fmt.Printf("  DAILY SUMMARY — %s\n", s.Date)
	fmt.Println(strings.Repeat("=", 62))
	fmt.Printf("  Bills          : %d (%d cancelled)\n", s.InvoiceCount, s.CancelledCount)
	fmt.Printf("  Sales          : Rs. %s\n", s.SalesTotal.StringFixed(2))
	fmt.Printf("  GST collected  : Rs. %s\n", s.GSTCollected.StringFixed(2))
	fmt.Printf("  Payments       : Rs. %s (cash %s, UPI %s)\n",
		s.PaymentsReceived.StringFixed(2), s.CashReceived.StringFixed(2), s.UPIReceived.StringFixed(2))
	fmt.Printf("  New customers  : %d\n", s.NewCustomers)
	fmt.Printf("  Total pending  : Rs. %s\n", s.TotalPending.StringFixed(2))
	if len(s.TopProducts) > 0 {
		fmt.Println(strings.Repeat("-", 62))
		fmt.Printf("  %-34s %10s %12s\n", "TOP PRODUCTS", "QTY", "AMOUNT")
		for _, p := range s.TopProducts {
			fmt.Printf("  %-34s %10s %12s\n", p.ProductName, p.Quantity.StringFixed(2), p.Amount.StringFixed(2))
		}
	}
	fmt.Println(strings.Repeat("=", 62))
}

func printHelp() {
	fmt.Println(`
Slash commands (deterministic, no AI):
  /udhaar                 outstanding balances, biggest first
  /customers <q>          search by name, nickname, landmark or phone
  /stock                  full catalogue with price and stock
  /low                    products at or below their low-stock threshold
  /reminders              scheduled payment reminders
  /summary [YYYY-MM-DD]   daily totals (default today)
  /help                   this list
  /exit                   quit

Anything else is treated as a spoken Hinglish instruction, e.g.:
  sharma ji ka kitna baki hai
  verma ko 2 kilo chini aur ek surf udhaar de do
  ramesh ne 500 rupaye diye
  kal sharma ko yaad dilana`)
}
