// Package pdf renders GST invoices for email and WhatsApp delivery.
package pdf

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"kirana-voice/internal/core"
)

// Shop is the letterhead identity printed on every invoice.
type Shop struct {
	Name  string
	Phone string
	GSTIN string
}

// RenderInvoice produces the invoice PDF as a byte slice. Layout is a
/// single A4 page: letterhead, invoice metadata, item table, tax summary.
func RenderInvoice(inv *core.Invoice, shop Shop) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("Invoice %s", inv.InvoiceNo), false)
	doc.AddPage()

	// Letterhead.
	doc.SetFont("Helvetica", "B", 16)
	doc.Cell(0, 8, shop.Name)
	doc.Ln(7)
	doc.SetFont("Helvetica", "", 9)
	if shop.Phone != "" {
		doc.Cell(0, 5, "Phone: "+shop.Phone)
		doc.Ln(5)
	}
	if shop.GSTIN != "" {
		doc.Cell(0, 5, "GSTIN: "+shop.GSTIN)
		doc.Ln(5)
	}
	doc.Ln(3)
	doc.SetDrawColor(120, 120, 120)
	x, y := doc.GetXY()
	doc.Line(x, y, 200, y)
	doc.Ln(4)

	// Invoice metadata.
	title := "INVOICE"
	if !inv.WithGST {
		title = "BILL OF SUPPLY"
	}
	doc.SetFont("Helvetica", "B", 12)
	doc.Cell(0, 7, title)
	doc.Ln(7)
	doc.SetFont("Helvetica", "", 10)
	doc.Cell(95, 5, "No: "+inv.InvoiceNo)
	doc.Cell(0, 5, "Date: "+inv.CreatedAt.Format("02 Jan 2006"))
	doc.Ln(5)
	doc.Cell(0, 5, "Bill to: "+inv.CustomerName)
	doc.Ln(8)

	// Item table.
	doc.SetFont("Helvetica", "B", 9)
	doc.SetFillColor(235, 235, 235)
	doc.CellFormat(80, 6, "Item", "1", 0, "L", true, 0, "")
	doc.CellFormat(25, 6, "Qty", "1", 0, "R", true, 0, "")
	doc.CellFormat(30, 6, "Rate", "1", 0, "R", true, 0, "")
	if inv.WithGST {
		doc.CellFormat(20, 6, "GST%", "1", 0, "R", true, 0, "")
		doc.CellFormat(35, 6, "Amount", "1", 1, "R", true, 0, "")
	} else {
		doc.CellFormat(55, 6, "Amount", "1", 1, "R", true, 0, "")
	}

	doc.SetFont("Helvetica", "", 9)
	for _, it := range inv.Items {
		qty := it.Quantity.String()
		if it.Unit != "" {
			qty += " " + it.Unit
		}
		doc.CellFormat(80, 6, it.ProductName, "1", 0, "L", false, 0, "")
		doc.CellFormat(25, 6, qty, "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 6, money(it.UnitPrice), "1", 0, "R", false, 0, "")
		if inv.WithGST {
			doc.CellFormat(20, 6, it.GSTRate.String(), "1", 0, "R", false, 0, "")
			doc.CellFormat(35, 6, money(it.LineTotal), "1", 1, "R", false, 0, "")
		} else {
			doc.CellFormat(55, 6, money(it.LineTotal), "1", 1, "R", false, 0, "")
		}
	}
	doc.Ln(3)

	// Totals block, right-aligned.
	totalRow := func(label string, amount decimal.Decimal, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		doc.SetFont("Helvetica", style, 10)
		doc.CellFormat(135, 6, "", "", 0, "R", false, 0, "")
		doc.CellFormat(30, 6, label, "", 0, "R", false, 0, "")
		doc.CellFormat(25, 6, money(amount), "", 1, "R", false, 0, "")
	}
	totalRow("Subtotal", inv.Subtotal, false)
	if inv.WithGST {
		if inv.CGST.Sign() > 0 || inv.SGST.Sign() > 0 {
			totalRow("CGST", inv.CGST, false)
			totalRow("SGST", inv.SGST, false)
		}
		if inv.IGST.Sign() > 0 {
			totalRow("IGST", inv.IGST, false)
		}
		if inv.Cess.Sign() > 0 {
			totalRow("Cess", inv.Cess, false)
		}
	}
	totalRow("Total", inv.GrandTotal, true)

	if inv.Notes != "" {
		doc.Ln(4)
		doc.SetFont("Helvetica", "I", 9)
		doc.MultiCell(0, 5, "Notes: "+inv.Notes, "", "L", false)
	}

	doc.Ln(8)
	doc.SetFont("Helvetica", "", 8)
	doc.SetTextColor(110, 110, 110)
	doc.Cell(0, 5, "Dhanyavaad! Phir aaiye.")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice %s: %w", inv.InvoiceNo, err)
	}
	return buf.Bytes(), nil
}

func money(d decimal.Decimal) string {
	return "Rs. " + d.StringFixed(2)
}
