package engine

import (
	"context"
	"errors"
	"fmt"

	"kirana-voice/internal/core"
)

// ambiguityFloor: a top candidate scoring at least this much wins outright;
// below it, any runner-up makes the match ambiguous.
const ambiguityFloor = 0.85

const maxAmbiguous = 3

// resolveCustomer turns the spoken referent into exactly one customer, or a
// Result the executor returns unchanged (not found / multiple candidates).
// A single resolution is persisted as the active customer in both the
// in-process cache and the conversation store.
func (e *Engine) resolveCustomer(ctx context.Context, req Request) (*core.Customer, *Result) {
	name := spokenName(req.Entities)

	if req.Entities.CustomerRef == "active" || name == "" {
		return e.resolveActive(ctx, req)
	}

	candidates, err := e.searchRanked(ctx, req.SessionID, name)
	if err != nil {
		r := e.internalError(req, "search customer", err)
		return nil, &r
	}
	if len(candidates) == 0 {
		r := failWith(req.Intent, CodeCustomerNotFound,
			fmt.Sprintf("Customer %q nahi mila.", name),
			CandidatesData{Query: name})
		return nil, &r
	}
	if len(candidates) > 1 && candidates[0].Score < ambiguityFloor {
		top := candidates
		if len(top) > maxAmbiguous {
			top = top[:maxAmbiguous]
		}
		r := failWith(req.Intent, CodeMultipleCustomers,
			fmt.Sprintf("%d customers mile %q naam se. Kaun sa?", len(top), name),
			CandidatesData{Query: name, Customers: top})
		return nil, &r
	}

	cust := candidates[0].Customer
	e.setActive(ctx, req.SessionID, &cust)
	return &cust, nil
}

// resolveActive answers pronoun references (usko, unka) and bare commands:
// in-process cache first, then the persisted active customer, hydrated from
// the database on a hit.
func (e *Engine) resolveActive(ctx context.Context, req Request) (*core.Customer, *Result) {
	if cust := e.sessions.getActive(req.SessionID); cust != nil {
		return cust, nil
	}

	active, err := e.deps.Conv.ActiveCustomer(ctx, req.SessionID)
	if err != nil {
		r := e.internalError(req, "load active customer", err)
		return nil, &r
	}
	if active == nil || active.ID == 0 {
		r := fail(req.Intent, CodeCustomerNotFound, "Pehle customer ka naam boliye.")
		return nil, &r
	}

	cust, err := e.deps.Customers.GetCustomer(ctx, active.ID)
	if errors.Is(err, core.ErrCustomerNotFound) {
		r := fail(req.Intent, CodeCustomerNotFound, "Pehle customer ka naam boliye.")
		return nil, &r
	}
	if err != nil {
		r := e.internalError(req, "hydrate active customer", err)
		return nil, &r
	}
	e.sessions.setActive(req.SessionID, cust)
	return cust, nil
}

// searchRanked is the session-cache-aware search: a warm cache is rescanned
// in memory with the same ranking rules, a miss goes to the store and warms
// the cache with the full active-customer set.
func (e *Engine) searchRanked(ctx context.Context, sessionID, query string) ([]core.RankedCustomer, error) {
	if cached := e.sessions.getSearchSet(sessionID); cached != nil {
		return core.RankCustomers(query, cached), nil
	}
	ranked, set, err := e.deps.Customers.SearchCustomerWarm(ctx, query)
	if err != nil {
		return nil, err
	}
	e.sessions.setSearchSet(sessionID, set)
	return ranked, nil
}

// setActive records the resolution in both caches. A Redis failure here is
// logged but does not fail the turn: the in-process cache still answers
// follow-up pronouns.
func (e *Engine) setActive(ctx context.Context, sessionID string, cust *core.Customer) {
	e.sessions.setActive(sessionID, cust)
	if err := e.deps.Conv.SetActiveCustomer(ctx, sessionID, cust.ID, cust.Name); err != nil {
		e.log.Warn().Err(err).
			Str("conversation_id", sessionID).
			Int64("customer_id", cust.ID).
			Msg("failed to persist active customer")
	}
}
