// Package conversation keeps the per-session memory and shop-level pending
// state in Redis. Session keys expire CONV_TTL_HOURS after the last write;
// shop keys get the same TTL but are refreshed on every access, so a draft
// survives a reconnect.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"kirana-voice/internal/core"
)

var (
	ErrNoDraft            = errors.New("no pending invoice draft")
	ErrNoPending          = errors.New("no pending state")
	ErrNoSuchCustomer     = errors.New("no matching customer in session")
	ErrNoPreviousCustomer = errors.New("no previous customer in session")
)

// OTP lifetime is deliberately short and never refreshed on read.
const otpTTL = 10 * time.Minute

// PendingEmail is a confirmed invoice parked until the shopkeeper provides
// a recipient address.
type PendingEmail struct {
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	InvoiceID    int64           `json:"invoice_id"`
	InvoiceNo    string          `json:"invoice_no"`
	Items        []string        `json:"items,omitempty"`
	Total        decimal.Decimal `json:"total"`
}

// PendingSendConfirm is a send-invoice request awaiting a haan/nahi answer.
type PendingSendConfirm struct {
	Channel   string `json:"channel"`
	Contact   string `json:"contact"`
	InvoiceID int64  `json:"invoice_id"`
	InvoiceNo string `json:"invoice_no"`
}

type Store interface {
	// Session-level state.
	LoadSession(ctx context.Context, sessionID string) (*SessionMemory, error)
	SaveSession(ctx context.Context, mem *SessionMemory) error
	AppendUserMessage(ctx context.Context, sessionID, text, intent string, entities map[string]any) (*SessionMemory, error)
	AppendAssistantMessage(ctx context.Context, sessionID, text string) error
	RecentMessages(ctx context.Context, sessionID string, n int) ([]Message, error)
	SetActiveCustomer(ctx context.Context, sessionID string, id int64, name string) error
	ActiveCustomer(ctx context.Context, sessionID string) (*ActiveCustomer, error)
	SwitchToPreviousCustomer(ctx context.Context, sessionID string) (*CustomerContext, error)
	SwitchToCustomerByName(ctx context.Context, sessionID, query string) (*CustomerContext, error)
	FindMatchingCustomers(ctx context.Context, sessionID, query string, threshold float64) ([]*CustomerContext, error)
	UpdateCustomerContext(ctx context.Context, sessionID, name string, upd ContextUpdate) error
	FormatContextPrompt(ctx context.Context, sessionID string, n int) (string, error)
	// SetSessionContext and SessionContext read and write the free-form
	// per-session key/value map (current draft id, language, recording flag).
	SetSessionContext(ctx context.Context, sessionID, key, value string) error
	SessionContext(ctx context.Context, sessionID, key string) (string, error)

	// Shop-level pending invoices. One draft per customer: AddDraft
	// replaces an older draft for the same customer. RemoveDraft is
	// idempotent.
	AddDraft(ctx context.Context, draft *core.InvoicePreview) error
	UpdateDraft(ctx context.Context, draft *core.InvoicePreview) error
	RemoveDraft(ctx context.Context, draftID string) error
	ListDrafts(ctx context.Context) ([]core.InvoicePreview, error)
	FirstDraft(ctx context.Context) (*core.InvoicePreview, error)
	DraftByID(ctx context.Context, draftID string) (*core.InvoicePreview, error)
	DraftForCustomer(ctx context.Context, customerID int64) (*core.InvoicePreview, error)
	ClearDrafts(ctx context.Context) error

	// Shop-level pending email / send confirmation.
	SetPendingEmail(ctx context.Context, p *PendingEmail) error
	LoadPendingEmail(ctx context.Context) (*PendingEmail, error)
	ClearPendingEmail(ctx context.Context) error
	SetPendingSendConfirm(ctx context.Context, p *PendingSendConfirm) error
	LoadPendingSendConfirm(ctx context.Context) (*PendingSendConfirm, error)
	ClearPendingSendConfirm(ctx context.Context) error

	// Deletion OTP, single-use, 10-minute lifetime. The code itself never
	// leaves this package except through email delivery.
	SetDeleteOTP(ctx context.Context, customerID int64, code string) error
	VerifyDeleteOTP(ctx context.Context, customerID int64, code string) (bool, error)
	ClearDeleteOTP(ctx context.Context, customerID int64) error
}

type store struct {
	rdb    *redis.Client
	shopID string
	ttl    time.Duration
}

func NewStore(rdb *redis.Client, shopID string, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &store{rdb: rdb, shopID: shopID, ttl: ttl}
}

func (s *store) sessionKey(sessionID string) string {
	return "conv:" + sessionID + ":mem"
}

func (s *store) shopKey(suffix string) string {
	return "shop:" + s.shopID + ":" + suffix
}

func (s *store) LoadSession(ctx context.Context, sessionID string) (*SessionMemory, error) {
	raw, err := s.rdb.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return newSessionMemory(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	var mem SessionMemory
	if err := json.Unmarshal(raw, &mem); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &mem, nil
}

func (s *store) SaveSession(ctx context.Context, mem *SessionMemory) error {
	mem.UpdatedAt = time.Now()
	raw, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", mem.SessionID, err)
	}
	if err := s.rdb.Set(ctx, s.sessionKey(mem.SessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", mem.SessionID, err)
	}
	return nil
}

// mutateSession is the load-mutate-persist cycle every session operation
// uses. The mutation runs on a fresh or decoded SessionMemory.
func (s *store) mutateSession(ctx context.Context, sessionID string, fn func(*SessionMemory) error) (*SessionMemory, error) {
	mem, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(mem); err != nil {
		return nil, err
	}
	if err := s.SaveSession(ctx, mem); err != nil {
		return nil, err
	}
	return mem, nil
}

func (s *store) AppendUserMessage(ctx context.Context, sessionID, text, intent string, entities map[string]any) (*SessionMemory, error) {
	return s.mutateSession(ctx, sessionID, func(mem *SessionMemory) error {
		now := time.Now()
		mem.AppendMessage(Message{
			Role:      RoleUser,
			Content:   text,
			Timestamp: now,
			Intent:    intent,
			Entities:  entities,
		})

		name := entityString(entities, "customer", "name")
		if name == "" {
			return nil
		}
		cc := mem.TrackCustomerMention(0, name, now)
		if cc == nil {
			return nil
		}
		if amount, ok := entityAmount(entities); ok {
			cc.LatestAmount = &amount
		}
		if intent != "" {
			cc.LatestIntent = intent
		}
		return nil
	})
}

func (s *store) AppendAssistantMessage(ctx context.Context, sessionID, text string) error {
	_, err := s.mutateSession(ctx, sessionID, func(mem *SessionMemory) error {
		mem.AppendMessage(Message{Role: RoleAssistant, Content: text, Timestamp: time.Now()})
		return nil
	})
	return err
}

func (s *store) RecentMessages(ctx context.Context, sessionID string, n int) ([]Message, error) {
	mem, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return mem.RecentMessages(n), nil
}

func (s *store) SetActiveCustomer(ctx context.Context, sessionID string, id int64, name string) error {
	_, err := s.mutateSession(ctx, sessionID, func(mem *SessionMemory) error {
		mem.SetActive(id, name, time.Now())
		return nil
	})
	return err
}

func (s *store) ActiveCustomer(ctx context.Context, sessionID string) (*ActiveCustomer, error) {
	mem, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return mem.Active, nil
}

func (s *store) SwitchToPreviousCustomer(ctx context.Context, sessionID string) (*CustomerContext, error) {
	var switched *CustomerContext
	_, err := s.mutateSession(ctx, sessionID, func(mem *SessionMemory) error {
		switched = mem.SwitchToPrevious(time.Now())
		if switched == nil {
			return ErrNoPreviousCustomer
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return switched, nil
}

func (s *store) SwitchToCustomerByName(ctx context.Context, sessionID, query string) (*CustomerContext, error) {
	var switched *CustomerContext
	_, err := s.mutateSession(ctx, sessionID, func(mem *SessionMemory) error {
		switched = mem.SwitchToCustomerByName(query, time.Now())
		if switched == nil {
			return ErrNoSuchCustomer
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return switched, nil
}

func (s *store) FindMatchingCustomers(ctx context.Context, sessionID, query string, threshold float64) ([]*CustomerContext, error) {
	mem, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return mem.FindMatching(query, threshold), nil
}

func (s *store) UpdateCustomerContext(ctx context.Context, sessionID, name string, upd ContextUpdate) error {
	_, err := s.mutateSession(ctx, sessionID, func(mem *SessionMemory) error {
		mem.UpdateCustomerContext(name, upd)
		return nil
	})
	return err
}

func (s *store) SetSessionContext(ctx context.Context, sessionID, key, value string) error {
	_, err := s.mutateSession(ctx, sessionID, func(mem *SessionMemory) error {
		mem.SetContext(key, value)
		return nil
	})
	return err
}

func (s *store) SessionContext(ctx context.Context, sessionID, key string) (string, error) {
	mem, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return mem.Context[key], nil
}

// Drafts live as one JSON array under a single shop key; the array is small
// (one entry per customer with an unconfirmed bill) so read-modify-write is
// fine.

func (s *store) loadDrafts(ctx context.Context) ([]core.InvoicePreview, error) {
	key := s.shopKey("pending_invoices")
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}
	s.rdb.Expire(ctx, key, s.ttl)
	var drafts []core.InvoicePreview
	if err := json.Unmarshal(raw, &drafts); err != nil {
		return nil, fmt.Errorf("decode drafts: %w", err)
	}
	return drafts, nil
}

func (s *store) saveDrafts(ctx context.Context, drafts []core.InvoicePreview) error {
	key := s.shopKey("pending_invoices")
	if len(drafts) == 0 {
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("clear drafts: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(drafts)
	if err != nil {
		return fmt.Errorf("encode drafts: %w", err)
	}
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save drafts: %w", err)
	}
	return nil
}

func (s *store) AddDraft(ctx context.Context, draft *core.InvoicePreview) error {
	drafts, err := s.loadDrafts(ctx)
	if err != nil {
		return err
	}
	kept := drafts[:0]
	for _, d := range drafts {
		if d.CustomerID != draft.CustomerID {
			kept = append(kept, d)
		}
	}
	kept = append(kept, *draft)
	return s.saveDrafts(ctx, kept)
}

func (s *store) UpdateDraft(ctx context.Context, draft *core.InvoicePreview) error {
	drafts, err := s.loadDrafts(ctx)
	if err != nil {
		return err
	}
	for i, d := range drafts {
		if d.DraftID == draft.DraftID {
			drafts[i] = *draft
			return s.saveDrafts(ctx, drafts)
		}
	}
	return ErrNoDraft
}

func (s *store) RemoveDraft(ctx context.Context, draftID string) error {
	drafts, err := s.loadDrafts(ctx)
	if err != nil {
		return err
	}
	kept := drafts[:0]
	for _, d := range drafts {
		if d.DraftID != draftID {
			kept = append(kept, d)
		}
	}
	return s.saveDrafts(ctx, kept)
}

func (s *store) ListDrafts(ctx context.Context) ([]core.InvoicePreview, error) {
	return s.loadDrafts(ctx)
}

func (s *store) FirstDraft(ctx context.Context) (*core.InvoicePreview, error) {
	drafts, err := s.loadDrafts(ctx)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, ErrNoDraft
	}
	return &drafts[0], nil
}

func (s *store) DraftByID(ctx context.Context, draftID string) (*core.InvoicePreview, error) {
	drafts, err := s.loadDrafts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range drafts {
		if drafts[i].DraftID == draftID {
			return &drafts[i], nil
		}
	}
	return nil, ErrNoDraft
}

func (s *store) DraftForCustomer(ctx context.Context, customerID int64) (*core.InvoicePreview, error) {
	drafts, err := s.loadDrafts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range drafts {
		if drafts[i].CustomerID == customerID {
			return &drafts[i], nil
		}
	}
	return nil, ErrNoDraft
}

func (s *store) ClearDrafts(ctx context.Context) error {
	return s.saveDrafts(ctx, nil)
}

func setJSON[T any](ctx context.Context, s *store, key string, v *T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func getJSON[T any](ctx context.Context, s *store, key string, refresh bool) (*T, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if refresh {
		s.rdb.Expire(ctx, key, s.ttl)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

func (s *store) SetPendingEmail(ctx context.Context, p *PendingEmail) error {
	return setJSON(ctx, s, s.shopKey("pending_email"), p, s.ttl)
}

func (s *store) LoadPendingEmail(ctx context.Context) (*PendingEmail, error) {
	return getJSON[PendingEmail](ctx, s, s.shopKey("pending_email"), true)
}

func (s *store) ClearPendingEmail(ctx context.Context) error {
	return s.rdb.Del(ctx, s.shopKey("pending_email")).Err()
}

func (s *store) SetPendingSendConfirm(ctx context.Context, p *PendingSendConfirm) error {
	return setJSON(ctx, s, s.shopKey("pending_send_conf"), p, s.ttl)
}

func (s *store) LoadPendingSendConfirm(ctx context.Context) (*PendingSendConfirm, error) {
	return getJSON[PendingSendConfirm](ctx, s, s.shopKey("pending_send_conf"), true)
}

func (s *store) ClearPendingSendConfirm(ctx context.Context) error {
	return s.rdb.Del(ctx, s.shopKey("pending_send_conf")).Err()
}

func (s *store) otpKey(customerID int64) string {
	return s.shopKey(fmt.Sprintf("delete_otp:%d", customerID))
}

func (s *store) SetDeleteOTP(ctx context.Context, customerID int64, code string) error {
	if err := s.rdb.Set(ctx, s.otpKey(customerID), code, otpTTL).Err(); err != nil {
		return fmt.Errorf("save delete otp: %w", err)
	}
	return nil
}

// VerifyDeleteOTP compares and consumes: a correct code deletes the key so
// it cannot be replayed.
func (s *store) VerifyDeleteOTP(ctx context.Context, customerID int64, code string) (bool, error) {
	stored, err := s.rdb.Get(ctx, s.otpKey(customerID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load delete otp: %w", err)
	}
	if stored != code {
		return false, nil
	}
	if err := s.rdb.Del(ctx, s.otpKey(customerID)).Err(); err != nil {
		return false, fmt.Errorf("consume delete otp: %w", err)
	}
	return true, nil
}

func (s *store) ClearDeleteOTP(ctx context.Context, customerID int64) error {
	return s.rdb.Del(ctx, s.otpKey(customerID)).Err()
}

// entityString plucks the first non-empty string entity under any of keys.
func entityString(entities map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := entities[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// entityAmount reads an amount entity however the classifier encoded it.
func entityAmount(entities map[string]any) (decimal.Decimal, bool) {
	raw, ok := entities["amount"]
	if !ok {
		return decimal.Decimal{}, false
	}
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}
