package ai

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestClassifierPromptNamesEveryIntent(t *testing.T) {
	prompt := buildClassifierPrompt("Bharat ka balance", "some context")
	for _, intent := range AllIntents {
		if !strings.Contains(prompt, intent) {
			t.Errorf("prompt does not mention %s", intent)
		}
	}
	if !strings.Contains(prompt, "some context") {
		t.Error("prompt does not carry the session context")
	}
	if !strings.Contains(prompt, "Utterance: Bharat ka balance") {
		t.Error("prompt does not end with the utterance")
	}
}

func TestClassificationNormalize(t *testing.T) {
	cls := Classification{Tasks: []Task{
		{Intent: " check_balance ", Confidence: 1.4},
		{Intent: "MAKE_ME_CHAI", Confidence: -0.2},
	}}
	cls.normalize()

	if cls.Tasks[0].Intent != IntentCheckBalance {
		t.Errorf("intent = %q, want %s", cls.Tasks[0].Intent, IntentCheckBalance)
	}
	if cls.Tasks[0].Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", cls.Tasks[0].Confidence)
	}
	if cls.Tasks[1].Intent != IntentUnknown {
		t.Errorf("invalid intent = %q, want %s", cls.Tasks[1].Intent, IntentUnknown)
	}
	if cls.Tasks[1].Confidence != 0 {
		t.Errorf("confidence = %v, want clamped to 0", cls.Tasks[1].Confidence)
	}

	empty := Classification{}
	empty.normalize()
	if len(empty.Tasks) != 1 || empty.Tasks[0].Intent != IntentUnknown {
		t.Errorf("empty classification = %+v, want single UNKNOWN task", empty.Tasks)
	}
}

func TestEntitiesAsMapDropsEmptySlots(t *testing.T) {
	e := Entities{
		Customer: "Bharat",
		Amount:   "500",
		WithGST:  true,
		Items: []LineItem{
			{Product: "chawal", Quantity: "2", Unit: "kg"},
			{Product: "aata", Quantity: "5", Price: "30"},
		},
	}
	m := e.AsMap()

	if m["customer"] != "Bharat" || m["amount"] != "500" {
		t.Errorf("map = %v", m)
	}
	if _, ok := m["email"]; ok {
		t.Error("empty email slot leaked into the map")
	}
	if _, ok := m["customerRef"]; ok {
		t.Error("empty customerRef slot leaked into the map")
	}
	items, ok := m["items"].([]map[string]any)
	if !ok || len(items) != 2 {
		t.Fatalf("items = %v", m["items"])
	}
	if _, ok := items[0]["price"]; ok {
		t.Error("empty price leaked into item map")
	}
	if items[1]["price"] != "30" {
		t.Errorf("item price = %v, want 30", items[1]["price"])
	}

	if got := (Entities{}).AsMap(); len(got) != 0 {
		t.Errorf("zero entities produced %v", got)
	}
}

func TestEntityValueParsing(t *testing.T) {
	e := Entities{Amount: "262.50"}
	amt, ok := e.AmountValue()
	if !ok || !amt.Equal(decimal.NewFromFloat(262.50)) {
		t.Errorf("AmountValue = %v %v", amt, ok)
	}
	if _, ok := (Entities{}).AmountValue(); ok {
		t.Error("empty amount parsed")
	}
	if _, ok := (Entities{Amount: "dhai sau"}).AmountValue(); ok {
		t.Error("non-numeric amount parsed")
	}

	q, err := LineItem{Quantity: "2.5"}.QuantityValue()
	if err != nil || !q.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("QuantityValue = %v, %v", q, err)
	}
	q, err = LineItem{}.QuantityValue()
	if err != nil || !q.Equal(decimal.NewFromInt(1)) {
		t.Errorf("default quantity = %v, %v, want 1", q, err)
	}
	if _, err := (LineItem{Quantity: "do"}.QuantityValue()); err == nil {
		t.Error("non-numeric quantity parsed")
	}

	p, ok := LineItem{Price: "60"}.PriceValue()
	if !ok || !p.Equal(decimal.NewFromInt(60)) {
		t.Errorf("PriceValue = %v %v", p, ok)
	}
	if _, ok := (LineItem{}).PriceValue(); ok {
		t.Error("empty price parsed")
	}
}

// The strict-mode contract: every property present and required, nothing
// additional. A schema drift here breaks classification at the API level.
func TestClassificationSchemaIsStrictCompatible(t *testing.T) {
	raw, err := json.Marshal(classificationSchema())
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}

	if schema["additionalProperties"] != false {
		t.Error("schema allows additional properties at the top level")
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %v", schema)
	}
	if _, ok := props["tasks"]; !ok {
		t.Error("schema missing tasks property")
	}

	// Walk down to entities and confirm the slot fields are all required.
	tasks := props["tasks"].(map[string]any)
	taskSchema := tasks["items"].(map[string]any)
	taskProps := taskSchema["properties"].(map[string]any)
	entities := taskProps["entities"].(map[string]any)
	entProps := entities["properties"].(map[string]any)
	required, _ := entities["required"].([]any)
	if len(required) != len(entProps) {
		t.Errorf("entities: %d properties but %d required; strict mode needs all", len(entProps), len(required))
	}
}
