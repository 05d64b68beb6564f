package engine

import (
	"context"
	"fmt"

	"kirana-voice/internal/core"
)

func (e *Engine) recordPayment(ctx context.Context, req Request) Result {
	amount, okAmt := req.Entities.AmountValue()
	if !okAmt || amount.Sign() <= 0 {
		return fail(req.Intent, CodeMissingAmount, "Kitne paise aaye? Amount bataiye.")
	}
	cust, res := e.resolveCustomer(ctx, req)
	if res != nil {
		return *res
	}

	mode := req.Entities.Mode
	if mode == "" {
		mode = core.PayCash
	}
	entry, err := e.deps.Ledger.RecordPayment(ctx, cust.ID, amount, mode, req.Entities.Notes)
	if err != nil {
		return e.internalError(req, "record payment", err)
	}
	e.trackBalance(ctx, req.SessionID, cust.Name, entry.BalanceAfter)
	return ok(req.Intent, PaymentData{
		CustomerID: cust.ID,
		Name:       cust.Name,
		Paid:       amount,
		Mode:       mode,
		Remaining:  entry.BalanceAfter,
	})
}

func (e *Engine) addCredit(ctx context.Context, req Request) Result {
	amount, okAmt := req.Entities.AmountValue()
	if !okAmt || amount.Sign() <= 0 {
		return fail(req.Intent, CodeMissingAmount, "Kitna credit dena hai? Amount bataiye.")
	}
	cust, res := e.resolveCustomer(ctx, req)
	if res != nil {
		return *res
	}

	desc := req.Entities.Notes
	if desc == "" {
		desc = fmt.Sprintf("Credit for %s", cust.Name)
	}
	entry, err := e.deps.Ledger.AddCredit(ctx, cust.ID, amount, desc)
	if err != nil {
		return e.internalError(req, "add credit", err)
	}
	e.trackBalance(ctx, req.SessionID, cust.Name, entry.BalanceAfter)
	return ok(req.Intent, CreditData{
		CustomerID: cust.ID,
		Name:       cust.Name,
		Added:      amount,
		Total:      entry.BalanceAfter,
	})
}
