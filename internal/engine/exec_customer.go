package engine

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"kirana-voice/internal/core"
)

func (e *Engine) createCustomer(ctx context.Context, req Request) Result {
	name := strings.TrimSpace(req.Entities.Name)
	if name == "" {
		name = strings.TrimSpace(req.Entities.Customer)
	}
	if name == "" {
		return fail(req.Intent, CodeValidation, "Naye customer ka naam bataiye.")
	}

	cust, suggestions, err := e.deps.Customers.CreateCustomerFast(ctx, name)
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			return fail(req.Intent, CodeConflict, fmt.Sprintf("%s naam ka customer pehle se hai.", name))
		}
		return e.internalError(req, "create customer", err)
	}
	if cust == nil {
		return failWith(req.Intent, CodeDuplicateFound,
			fmt.Sprintf("Milta-julta customer pehle se hai. %s hi add karna hai?", name),
			CandidatesData{Query: name, Customers: suggestions})
	}

	// Optional details spoken in the same breath.
	upd := core.CustomerUpdate{}
	touched := false
	if p := strings.TrimSpace(req.Entities.Phone); p != "" {
		upd.Phone, touched = &p, true
	}
	if n := strings.TrimSpace(req.Entities.Nickname); n != "" {
		upd.Nickname, touched = &n, true
	}
	if l := strings.TrimSpace(req.Entities.Landmark); l != "" {
		upd.Landmark, touched = &l, true
	}
	if touched {
		if cust, err = e.deps.Customers.UpdateCustomer(ctx, cust.ID, upd); err != nil {
			return e.internalError(req, "save customer details", err)
		}
	}

	// A spoken amount is the purana hisaab carried into the khata.
	if amount, okAmt := req.Entities.AmountValue(); okAmt && amount.Sign() > 0 {
		entry, err := e.deps.Ledger.AddOpeningBalance(ctx, cust.ID, amount)
		if err != nil {
			return e.internalError(req, "opening balance", err)
		}
		cust.Balance = entry.BalanceAfter
	}

	e.setActive(ctx, req.SessionID, cust)
	return ok(req.Intent, CustomerData{Customer: cust, Created: true})
}

func (e *Engine) updateCustomer(ctx context.Context, req Request) Result {
	cust, res := e.resolveCustomer(ctx, req)
	if res != nil {
		return *res
	}

	upd := core.CustomerUpdate{}
	touched := false
	if p := strings.TrimSpace(req.Entities.Phone); p != "" {
		upd.Phone, touched = &p, true
	}
	if m := strings.TrimSpace(req.Entities.Email); m != "" {
		if !strings.Contains(m, "@") {
			return fail(req.Intent, CodeInvalidEmail, "Email address samajh nahi aaya. Phir se boliye.")
		}
		upd.Email, touched = &m, true
	}
	if n := strings.TrimSpace(req.Entities.Nickname); n != "" {
		upd.Nickname, touched = &n, true
	}
	if l := strings.TrimSpace(req.Entities.Landmark); l != "" {
		upd.Landmark, touched = &l, true
	}
	if g := strings.TrimSpace(req.Entities.GSTIN); g != "" {
		upd.GSTIN, touched = &g, true
	}
	if !touched {
		return fail(req.Intent, CodeValidation, "Kya update karna hai? Phone, email, nickname ya landmark boliye.")
	}

	updated, err := e.deps.Customers.UpdateCustomer(ctx, cust.ID, upd)
	if err != nil {
		return e.internalError(req, "update customer", err)
	}
	e.sessions.invalidateCustomer(cust.ID)
	e.setActive(ctx, req.SessionID, updated)
	return ok(req.Intent, CustomerData{Customer: updated})
}

func (e *Engine) getCustomerInfo(ctx context.Context, req Request) Result {
	cust, res := e.resolveCustomer(ctx, req)
	if res != nil {
		return *res
	}
	// Re-read so the echoed balance and stats are current, not cached.
	fresh, err := e.deps.Customers.GetCustomer(ctx, cust.ID)
	if err != nil {
		return e.internalError(req, "load customer", err)
	}
	return ok(req.Intent, CustomerData{Customer: fresh})
}

// deleteCustomerData is the admin-gated two-step cascade delete. The first
// admin call emails a 6-digit code to the configured admin address and
// returns OTP_SENT; a second call carrying the matching code deletes.
func (e *Engine) deleteCustomerData(ctx context.Context, req Request) Result {
	if req.OperatorRole != "admin" || e.deps.AdminEmail == "" {
		return fail(req.Intent, CodeUnauthorized, "Sirf admin customer data delete kar sakta hai.")
	}
	cust, res := e.resolveCustomer(ctx, req)
	if res != nil {
		return *res
	}

	confirmation := strings.TrimSpace(req.Entities.Confirmation)
	if confirmation == "" {
		code, err := newOTP()
		if err != nil {
			return e.internalError(req, "generate otp", err)
		}
		if err := e.deps.Conv.SetDeleteOTP(ctx, cust.ID, code); err != nil {
			return e.internalError(req, "store otp", err)
		}
		if err := e.deps.Mailer.SendDeleteOTP(ctx, e.deps.AdminEmail, cust.Name, code); err != nil {
			return e.internalError(req, "send otp", err)
		}
		return fail(req.Intent, CodeOTPSent,
			fmt.Sprintf("Confirmation code admin email par bheja hai. Code bol kar %s ka data delete karo.", cust.Name))
	}

	okOTP, err := e.deps.Conv.VerifyDeleteOTP(ctx, cust.ID, confirmation)
	if err != nil {
		return e.internalError(req, "verify otp", err)
	}
	if !okOTP {
		return fail(req.Intent, CodeInvalidOTP, "Code galat hai ya expire ho gaya. Phir se try karo.")
	}

	counts, jobIDs, err := e.deps.Customers.DeleteCustomerData(ctx, cust.ID)
	if err != nil {
		return e.internalError(req, "delete customer data", err)
	}
	for _, jobID := range jobIDs {
		if err := e.deps.Queue.Cancel(ctx, jobID); err != nil {
			e.log.Warn().Err(err).Str("job_id", jobID).Msg("failed to remove reminder job after delete")
		}
	}
	e.sessions.invalidateCustomer(cust.ID)
	e.sessions.invalidate(req.SessionID)
	return ok(req.Intent, DeleteData{CustomerName: cust.Name, Counts: counts})
}

// newOTP returns a uniformly random 6-digit code.
func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
