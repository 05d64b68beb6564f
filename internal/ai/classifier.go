// Package ai holds the two LLM touchpoints: the intent classifier that
// turns a Hinglish transcript into dispatchable tasks, and the fallback
// responder that phrases results the templater has no pattern for. Both
// speak to any OpenAI-compatible endpoint.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
	"github.com/shopspring/decimal"
)

// LineItem is one spoken invoice line. Quantities and prices travel as
// exact decimal strings; the model never does arithmetic.
type LineItem struct {
	Product  string `json:"product" jsonschema_description:"Product name as spoken, e.g. 'chawal'"`
	Quantity string `json:"quantity" jsonschema_description:"Quantity as a decimal string, e.g. '2' or '2.5'. Default '1' when unspecified."`
	Unit     string `json:"unit" jsonschema_description:"Unit as spoken (kg, litre, packet, piece) or empty"`
	Price    string `json:"price" jsonschema_description:"Per-unit price as a decimal string only when the speaker quotes one, else empty"`
}

// Entities carries every extractable slot. Strict-schema output always
// fills all fields; empty string / empty list / false means absent.
type Entities struct {
	Customer     string     `json:"customer" jsonschema_description:"Customer name exactly as spoken, empty if no name was said"`
	Name         string     `json:"name" jsonschema_description:"New customer's name for CREATE_CUSTOMER, else empty"`
	CustomerRef  string     `json:"customerRef" jsonschema_description:"'active' when the speaker means the current customer (usko, unka, iska, isko), else empty"`
	Items        []LineItem `json:"items" jsonschema_description:"Invoice line items; empty unless a bill is being created"`
	Amount       string     `json:"amount" jsonschema_description:"Money amount as a plain decimal string without currency symbols, e.g. '500' or '262.50', else empty"`
	WithGST      bool       `json:"withGst" jsonschema_description:"true when the speaker asks for a GST/pakka bill"`
	Email        string     `json:"email" jsonschema_description:"Email address if spoken, else empty"`
	Phone        string     `json:"phone" jsonschema_description:"Phone number digits if spoken, else empty"`
	Nickname     string     `json:"nickname" jsonschema_description:"Nickname for the customer if given, else empty"`
	Landmark     string     `json:"landmark" jsonschema_description:"Address landmark if given, e.g. 'mandir ke paas', else empty"`
	GSTIN        string     `json:"gstin" jsonschema_description:"Customer GSTIN if spoken, else empty"`
	Product      string     `json:"product" jsonschema_description:"Product name for stock queries, else empty"`
	Channel      string     `json:"channel" jsonschema_description:"'email' or 'whatsapp' for SEND_INVOICE, else empty"`
	Contact      string     `json:"contact" jsonschema_description:"Destination address or phone for SEND_INVOICE, else empty"`
	Datetime     string     `json:"datetime" jsonschema_description:"Resolved absolute time in RFC3339 with +05:30 offset for reminders, e.g. '2025-02-15T18:00:00+05:30', else empty"`
	Mode         string     `json:"mode" jsonschema_description:"Payment mode: cash, upi, card or other; empty defaults to cash"`
	Language     string     `json:"language" jsonschema_description:"Language code for SWITCH_LANGUAGE, e.g. 'hi' or 'en', else empty"`
	Confirmation string     `json:"confirmation" jsonschema_description:"6-digit confirmation code if the speaker says one, else empty"`
	Confirm      string     `json:"confirm" jsonschema_description:"'yes' for haan/ok/bhej do, 'no' for nahi/rehne do, when answering a pending question; else empty"`
	Notes        string     `json:"notes" jsonschema_description:"Free-text note to attach, else empty"`
}

// Task is one dispatchable unit. A compound utterance like "Rahul ka bill
// banao aur Bharat ka balance batao" yields two tasks in spoken order.
type Task struct {
	Intent     string   `json:"intent" jsonschema_description:"One of the listed intent names, UNKNOWN if nothing fits"`
	Utterance  string   `json:"utterance" jsonschema_description:"The fragment of the input this task came from"`
	Confidence float64  `json:"confidence" jsonschema_description:"Classification confidence between 0.0 and 1.0"`
	Entities   Entities `json:"entities"`
}

// Classification is the strict-schema envelope the model returns.
type Classification struct {
	Tasks []Task `json:"tasks" jsonschema_description:"One task per distinct request in the utterance, in spoken order; at least one"`
}

// AsMap renders the filled slots as a generic map for session tracking.
// Zero-valued slots are dropped so the conversation memory only sees what
// was actually said.
func (e Entities) AsMap() map[string]any {
	m := make(map[string]any)
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("customer", e.Customer)
	put("name", e.Name)
	put("customerRef", e.CustomerRef)
	put("amount", e.Amount)
	put("email", e.Email)
	put("phone", e.Phone)
	put("nickname", e.Nickname)
	put("landmark", e.Landmark)
	put("gstin", e.GSTIN)
	put("product", e.Product)
	put("channel", e.Channel)
	put("contact", e.Contact)
	put("datetime", e.Datetime)
	put("mode", e.Mode)
	put("language", e.Language)
	put("confirmation", e.Confirmation)
	put("confirm", e.Confirm)
	put("notes", e.Notes)
	if e.WithGST {
		m["withGst"] = true
	}
	if len(e.Items) > 0 {
		items := make([]map[string]any, 0, len(e.Items))
		for _, it := range e.Items {
			entry := map[string]any{"product": it.Product, "quantity": it.Quantity}
			if it.Unit != "" {
				entry["unit"] = it.Unit
			}
			if it.Price != "" {
				entry["price"] = it.Price
			}
			items = append(items, entry)
		}
		m["items"] = items
	}
	return m
}

// AmountValue parses the amount slot. The second return is false when the
// slot is empty or unparseable.
func (e Entities) AmountValue() (decimal.Decimal, bool) {
	if e.Amount == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(e.Amount))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// QuantityValue parses the quantity slot, defaulting to 1.
func (li LineItem) QuantityValue() (decimal.Decimal, error) {
	q := strings.TrimSpace(li.Quantity)
	if q == "" {
		return decimal.NewFromInt(1), nil
	}
	return decimal.NewFromString(q)
}

// PriceValue parses the spoken per-unit price override; ok is false when
// the speaker did not quote one.
func (li LineItem) PriceValue() (decimal.Decimal, bool) {
	if li.Price == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(li.Price))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

type Classifier interface {
	Classify(ctx context.Context, utterance, contextPrompt string) (*Classification, error)
}

type classifier struct {
	client *openai.Client
	model  shared.ResponsesModel
}

func NewClassifier(apiKey, baseURL, model string) Classifier {
	client := newClient(apiKey, baseURL)
	return &classifier{client: client, model: shared.ResponsesModel(model)}
}

func newClient(apiKey, baseURL string) *openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &client
}

func (c *classifier) Classify(ctx context.Context, utterance, contextPrompt string) (*Classification, error) {
	prompt := buildClassifierPrompt(utterance, contextPrompt)

	schemaJSON, err := json.Marshal(classificationSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "shopkeeper_tasks",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("Intent classification of a Hinglish shopkeeper utterance"),
				},
			},
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var cls Classification
	if err := json.Unmarshal([]byte(content), &cls); err != nil {
		return nil, fmt.Errorf("failed to parse classification: %w", err)
	}

	cls.normalize()
	return &cls, nil
}

// normalize repairs whatever the model got structurally wrong: unknown
// intent names, out-of-range confidence, an empty task list.
func (c *Classification) normalize() {
	for i := range c.Tasks {
		t := &c.Tasks[i]
		t.Intent = strings.ToUpper(strings.TrimSpace(t.Intent))
		if !ValidIntent(t.Intent) {
			t.Intent = IntentUnknown
		}
		if t.Confidence < 0 {
			t.Confidence = 0
		}
		if t.Confidence > 1 {
			t.Confidence = 1
		}
	}
	if len(c.Tasks) == 0 {
		c.Tasks = []Task{{Intent: IntentUnknown, Confidence: 0}}
	}
}

func classificationSchema() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v Classification
	return reflector.Reflect(v)
}

func buildClassifierPrompt(utterance, contextPrompt string) string {
	var b strings.Builder
	b.WriteString(`You classify what an Indian kirana shopkeeper wants. The shopkeeper speaks
Hinglish (Hindi in Roman or Devanagari script, mixed with English) while
running the shop: billing, udhaar (credit), payments, stock, reminders.

Intents and their entity contracts:
- TOTAL_PENDING_AMOUNT: total udhaar across all customers. No entities.
- LIST_CUSTOMER_BALANCES: who owes what. No entities.
- CHECK_BALANCE: one customer's balance. Needs customer or customerRef=active.
- CREATE_INVOICE: make a bill. Needs customer and items (at least one). withGst when a pakka/GST bill is asked for.
- CONFIRM_INVOICE: haan/confirm/ok for a pending bill. customer only when the speaker names which bill.
- SHOW_PENDING_INVOICE: show the draft bill. No entities.
- TOGGLE_GST: GST laga do / GST hata do on the draft bill. No entities.
- PROVIDE_EMAIL: the speaker says an email address for a bill. Needs email.
- SEND_INVOICE: bhejna/send a bill. Needs channel (email or whatsapp) and contact when spoken. confirm carries a haan/nahi answer to a pending send.
- CREATE_REMINDER: yaad dilana/reminder. Needs customer or active, amount, datetime.
- RECORD_PAYMENT: paise diye/jama. Needs customer or active, amount; mode if spoken.
- ADD_CREDIT: udhaar diya/likho. Needs customer or active, amount.
- CHECK_STOCK: kitna bacha hai. Needs product.
- CANCEL_INVOICE: bill cancel/galat ban gaya. customer or active.
- CANCEL_REMINDER: reminder cancel. customer or active.
- LIST_REMINDERS: sab reminders. No entities.
- CREATE_CUSTOMER: naya customer/khata kholo. Needs name; phone, nickname, landmark, amount (purana hisaab) optional.
- MODIFY_REMINDER: reminder aage/peeche karo. Needs customer or active and datetime.
- DAILY_SUMMARY: aaj ka hisaab. No entities.
- UPDATE_CUSTOMER: change customer details. Needs customer or active plus at least one of phone, email, nickname, landmark, gstin.
- UPDATE_CUSTOMER_PHONE: number badlo. Needs customer or active and phone.
- GET_CUSTOMER_INFO: customer ki jankari. Needs customer or active.
- DELETE_CUSTOMER_DATA: sab data udao/delete karo. Needs customer or active; confirmation when a 6-digit code is spoken.
- SWITCH_LANGUAGE: language badlo. language code, default 'hi'.
- START_RECORDING / STOP_RECORDING: recording chalu/band. No entities.
- UNKNOWN: nothing above fits.

Rules:
1. Split a compound utterance into one task per request, in spoken order.
2. Copy names exactly as spoken, honorifics included ("Sharma ji" stays "Sharma ji").
3. Amounts and quantities are plain decimal strings. "dhai sau" is "250", "dedh kilo" is quantity "1.5".
4. Pronouns (usko, unka, iska) mean customerRef=active.
5. When pending-state hints appear below, follow their routing for haan/nahi/ok answers.
6. datetime must be absolute RFC3339 with +05:30. "kal shaam 6 baje" from today means tomorrow 18:00.
7. Set confidence honestly; use UNKNOWN rather than guessing an intent.
`)

	if contextPrompt != "" {
		b.WriteString("\nSession context:\n")
		b.WriteString(contextPrompt)
		b.WriteString("\n")
	}

	b.WriteString("\nUtterance: ")
	b.WriteString(utterance)
	return b.String()
}
