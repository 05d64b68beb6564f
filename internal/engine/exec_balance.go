package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"kirana-voice/internal/conversation"
)

func (e *Engine) totalPending(ctx context.Context, req Request) Result {
	total, count, err := e.deps.Customers.TotalPending(ctx)
	if err != nil {
		return e.internalError(req, "total pending", err)
	}
	return ok(req.Intent, TotalPendingData{Total: total, Customers: count})
}

func (e *Engine) listBalances(ctx context.Context, req Request) Result {
	balances, err := e.deps.Customers.ListBalances(ctx)
	if err != nil {
		return e.internalError(req, "list balances", err)
	}
	data := BalanceListData{Balances: balances}
	for _, b := range balances {
		data.Total = data.Total.Add(b.Balance)
	}
	return ok(req.Intent, data)
}

func (e *Engine) checkBalance(ctx context.Context, req Request) Result {
	cust, res := e.resolveCustomer(ctx, req)
	if res != nil {
		return *res
	}
	balance, err := e.deps.Customers.GetBalanceFast(ctx, cust.ID)
	if err != nil {
		return e.internalError(req, "get balance", err)
	}
	e.trackBalance(ctx, req.SessionID, cust.Name, balance)
	return ok(req.Intent, BalanceData{CustomerID: cust.ID, Name: cust.Name, Balance: balance})
}

// trackBalance records the freshly read balance on the session's customer
// context so the classifier prompt can mention it next turn. Best effort.
func (e *Engine) trackBalance(ctx context.Context, sessionID, name string, balance decimal.Decimal) {
	err := e.deps.Conv.UpdateCustomerContext(ctx, sessionID, name, conversation.ContextUpdate{Balance: &balance})
	if err != nil {
		e.log.Warn().Err(err).Str("conversation_id", sessionID).Msg("failed to track balance")
	}
}
