package extract

import (
	"errors"
	"testing"

	contractx "github.com/vyaparlabs/vyapar/agent/contract"
)

func TestParseResultStripsCodeFences(t *testing.T) {
	t.Parallel()

	raw := "```json\n{\"intent\":\"add_inventory\",\"data\":{\"items\":[{\"name\":\"Rice\",\"quantity\":10,\"price\":50}]},\"reply_text\":\"Theek hai!\"}\n```"
	res, err := parseResult(raw)
	if err != nil {
		t.Fatalf("parseResult() error = %v", err)
	}
	if res.Intent != contractx.IntentAddInventory {
		t.Fatalf("intent = %q, want add_inventory", res.Intent)
	}
	if res.ReplyText != "Theek hai!" {
		t.Fatalf("reply text = %q", res.ReplyText)
	}
	if len(res.Data.Items) != 1 || res.Data.Items[0].Name != "Rice" {
		t.Fatalf("unexpected items: %+v", res.Data.Items)
	}
}

func TestParseResultNullPriceStaysOptional(t *testing.T) {
	t.Parallel()

	raw := `{"intent":"create_invoice","data":{"customer_name":"Ramesh","items":[{"name":"Rice","quantity":4,"price":null}]},"reply_text":"ok"}`
	res, err := parseResult(raw)
	if err != nil {
		t.Fatalf("parseResult() error = %v", err)
	}
	if res.Data.Items[0].Price != nil {
		t.Fatalf("price = %v, want nil at boundary", *res.Data.Items[0].Price)
	}
	if res.Data.Items[0].PriceOrZero() != 0 {
		t.Fatal("nil price must normalize to zero")
	}
}

func TestParseResultMalformedOutput(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "sorry, I cannot do that", "{not json"} {
		_, err := parseResult(raw)
		if !errors.Is(err, contractx.ErrExtraction) {
			t.Errorf("parseResult(%q) error = %v, want ErrExtraction", raw, err)
		}
	}
}

func TestParseResultUnknownIntentNormalizes(t *testing.T) {
	t.Parallel()

	res, err := parseResult(`{"intent":"dance","reply_text":"hmm"}`)
	if err != nil {
		t.Fatalf("parseResult() error = %v", err)
	}
	if res.Intent != contractx.IntentUnknown {
		t.Fatalf("intent = %q, want unknown", res.Intent)
	}
}
