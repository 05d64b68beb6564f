package conversation

import (
	"time"

	"github.com/shopspring/decimal"

	"kirana-voice/internal/names"
)

// Session memory caps. Oldest entries are evicted first.
const (
	maxMessages = 20
	maxHistory  = 10
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Intent    string         `json:"intent,omitempty"`
	Entities  map[string]any `json:"entities,omitempty"`
}

type ActiveCustomer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CustomerContext is one tracked customer in a session. The first spoken
// form of the name is kept as canonical; later fuzzy-equal mentions only
// bump the count.
type CustomerContext struct {
	ID            int64            `json:"id,omitempty"`
	Name          string           `json:"name"`
	LastMentioned time.Time        `json:"last_mentioned"`
	MentionCount  int              `json:"mention_count"`
	LatestBalance *decimal.Decimal `json:"latest_balance,omitempty"`
	LatestAmount  *decimal.Decimal `json:"latest_amount,omitempty"`
	LatestIntent  string           `json:"latest_intent,omitempty"`
}

// ContextUpdate carries the optional per-mention facts recorded against a
// tracked customer. Nil fields are left untouched.
type ContextUpdate struct {
	Balance *decimal.Decimal
	Amount  *decimal.Decimal
	Intent  string
}

// SessionMemory is the per-session conversation state. History is ordered
// oldest first; the most recently mentioned customer sits at the end.
// Recent maps every normalized spoken variant to the canonical history name.
type SessionMemory struct {
	SessionID string             `json:"session_id"`
	Messages  []Message          `json:"messages,omitempty"`
	Context   map[string]string  `json:"context,omitempty"`
	Active    *ActiveCustomer    `json:"active_customer,omitempty"`
	History   []*CustomerContext `json:"customer_history,omitempty"`
	Recent    map[string]string  `json:"recent_customers,omitempty"`
	TurnCount int                `json:"turn_count"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func newSessionMemory(sessionID string) *SessionMemory {
	return &SessionMemory{
		SessionID: sessionID,
		Context:   make(map[string]string),
		Recent:    make(map[string]string),
	}
}

// AppendMessage records a turn, evicting the oldest beyond the cap. User
// messages advance the turn counter.
func (m *SessionMemory) AppendMessage(msg Message) {
	m.Messages = append(m.Messages, msg)
	if len(m.Messages) > maxMessages {
		m.Messages = m.Messages[len(m.Messages)-maxMessages:]
	}
	if msg.Role == RoleUser {
		m.TurnCount++
	}
}

// RecentMessages returns the last n messages, oldest first.
func (m *SessionMemory) RecentMessages(n int) []Message {
	if n <= 0 || n >= len(m.Messages) {
		return m.Messages
	}
	return m.Messages[len(m.Messages)-n:]
}

// TrackCustomerMention records that a customer came up in conversation.
// A fuzzy-equal existing entry is bumped and moved to the most-recent slot
// instead of duplicated, so "Bharat" and "Bharath" stay one person. A zero
// id means the mention is by name only; the id is filled in once known.
func (m *SessionMemory) TrackCustomerMention(id int64, name string, now time.Time) *CustomerContext {
	if name == "" && id == 0 {
		return nil
	}

	for i, cc := range m.History {
		match := id != 0 && cc.ID == id
		if !match && name != "" {
			match = names.SamePerson(cc.Name, name)
		}
		if !match {
			continue
		}
		cc.MentionCount++
		cc.LastMentioned = now
		if cc.ID == 0 {
			cc.ID = id
		}
		m.History = append(m.History[:i], m.History[i+1:]...)
		m.History = append(m.History, cc)
		if name != "" {
			m.rememberVariant(name, cc.Name)
		}
		return cc
	}

	cc := &CustomerContext{
		ID:            id,
		Name:          name,
		LastMentioned: now,
		MentionCount:  1,
	}
	m.History = append(m.History, cc)
	m.rememberVariant(name, name)

	if len(m.History) > maxHistory {
		evicted := m.History[0]
		m.History = m.History[1:]
		for variant, canonical := range m.Recent {
			if canonical == evicted.Name {
				delete(m.Recent, variant)
			}
		}
	}
	return cc
}

func (m *SessionMemory) rememberVariant(spoken, canonical string) {
	if m.Recent == nil {
		m.Recent = make(map[string]string)
	}
	if key := names.Normalize(spoken); key != "" {
		m.Recent[key] = canonical
	}
}

// SetActive marks a customer as the one pronouns and bare commands refer to.
func (m *SessionMemory) SetActive(id int64, name string, now time.Time) {
	m.Active = &ActiveCustomer{ID: id, Name: name}
	m.TrackCustomerMention(id, name, now)
}

// SwitchToPrevious activates the second-most-recent tracked customer
// ("pehle wala"). Returns nil when fewer than two are tracked.
func (m *SessionMemory) SwitchToPrevious(now time.Time) *CustomerContext {
	if len(m.History) < 2 {
		return nil
	}
	prev := m.History[len(m.History)-2]
	m.SetActive(prev.ID, prev.Name, now)
	return prev
}

// SwitchToCustomerByName activates a tracked customer by spoken name:
// exact variant lookup first, then fuzzy over the history.
func (m *SessionMemory) SwitchToCustomerByName(query string, now time.Time) *CustomerContext {
	if canonical, ok := m.Recent[names.Normalize(query)]; ok {
		if cc := m.findByExactName(canonical); cc != nil {
			m.SetActive(cc.ID, cc.Name, now)
			return cc
		}
	}

	candidates := make([]string, len(m.History))
	for i, cc := range m.History {
		candidates[i] = cc.Name
	}
	best, _, ok := names.BestMatch(query, candidates)
	if !ok {
		return nil
	}
	cc := m.findByExactName(best)
	if cc == nil {
		return nil
	}
	m.SetActive(cc.ID, cc.Name, now)
	return cc
}

// FindMatching returns tracked customers whose names clear threshold for
// the query, strongest first.
func (m *SessionMemory) FindMatching(query string, threshold float64) []*CustomerContext {
	candidates := make([]string, len(m.History))
	for i, cc := range m.History {
		candidates[i] = cc.Name
	}
	var out []*CustomerContext
	for _, r := range names.AllMatches(query, candidates, threshold) {
		if cc := m.findByExactName(r.Name); cc != nil {
			out = append(out, cc)
		}
	}
	return out
}

// UpdateCustomerContext records balance/amount/intent facts against a
// tracked customer, matched fuzzily by name.
func (m *SessionMemory) UpdateCustomerContext(name string, upd ContextUpdate) *CustomerContext {
	cc := m.findByFuzzyName(name)
	if cc == nil {
		return nil
	}
	if upd.Balance != nil {
		cc.LatestBalance = upd.Balance
	}
	if upd.Amount != nil {
		cc.LatestAmount = upd.Amount
	}
	if upd.Intent != "" {
		cc.LatestIntent = upd.Intent
	}
	return cc
}

// SetContext stores a free-form session fact (language preference, flags).
func (m *SessionMemory) SetContext(key, value string) {
	if m.Context == nil {
		m.Context = make(map[string]string)
	}
	m.Context[key] = value
}

func (m *SessionMemory) findByExactName(name string) *CustomerContext {
	for i := len(m.History) - 1; i >= 0; i-- {
		if m.History[i].Name == name {
			return m.History[i]
		}
	}
	return nil
}

func (m *SessionMemory) findByFuzzyName(name string) *CustomerContext {
	for i := len(m.History) - 1; i >= 0; i-- {
		if names.SamePerson(m.History[i].Name, name) {
			return m.History[i]
		}
	}
	return nil
}
