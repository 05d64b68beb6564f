package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"kirana-voice/internal/core"
	"kirana-voice/internal/objstore"
)

// Artifacts renders invoice PDFs and uploads them, satisfying the engine's
// artifact-store dependency.
type Artifacts struct {
	store *objstore.Store
	shop  Shop
	log   zerolog.Logger
}

func NewArtifacts(store *objstore.Store, shop Shop, log zerolog.Logger) *Artifacts {
	return &Artifacts{
		store: store,
		shop:  shop,
		log:   log.With().Str("component", "artifacts").Logger(),
	}
}

// StoreInvoicePDF renders, uploads and presigns the invoice PDF, returning
// the object key and download URL.
func (a *Artifacts) StoreInvoicePDF(ctx context.Context, inv *core.Invoice) (string, string, error) {
	data, err := RenderInvoice(inv, a.shop)
	if err != nil {
		return "", "", err
	}
	key := InvoiceObjectKey(inv.InvoiceNo)
	if err := a.store.Put(ctx, key, data, "application/pdf"); err != nil {
		return "", "", err
	}
	url, err := a.store.PresignedURL(ctx, key, objstore.DefaultURLExpiry)
	if err != nil {
		return "", "", err
	}
	a.log.Info().Str("invoice_no", inv.InvoiceNo).Str("key", key).Msg("invoice pdf stored")
	return key, url, nil
}

// InvoiceObjectKey maps an invoice number to its object key. The FY slash
// becomes a dash so the key has a flat invoices/ prefix.
func InvoiceObjectKey(invoiceNo string) string {
	return fmt.Sprintf("invoices/%s.pdf", strings.ReplaceAll(invoiceNo, "/", "-"))
}
