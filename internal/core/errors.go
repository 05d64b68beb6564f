package core

import "errors"

// Sentinel errors surfaced by the store services. The dispatcher maps these
// to spoken error codes; nothing below ever reaches a client verbatim.
var (
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrReminderNotFound  = errors.New("reminder not found")
	ErrAlreadyCancelled  = errors.New("invoice already cancelled")
	ErrEmptyInvoice      = errors.New("invoice has no items")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("customer already exists")
	ErrNothingToRemind   = errors.New("no outstanding balance to remind about")
)
