package contract

import (
	"strings"

	ledgerx "github.com/vyaparlabs/vyapar/ledger"
)

// Intent is the classified business action for one inbound message.
type Intent string

const (
	IntentCreateInvoice Intent = "create_invoice"
	IntentAddInventory  Intent = "add_inventory"
	IntentQueryLedger   Intent = "query_ledger"
	IntentUnknown       Intent = "unknown"
	IntentError         Intent = "error"
)

// NormalizeIntent maps free-form classifier output onto the known intent
// set; anything unrecognized becomes IntentUnknown.
func NormalizeIntent(raw string) Intent {
	switch Intent(strings.TrimSpace(strings.ToLower(raw))) {
	case IntentCreateInvoice:
		return IntentCreateInvoice
	case IntentAddInventory:
		return IntentAddInventory
	case IntentQueryLedger:
		return IntentQueryLedger
	case IntentError:
		return IntentError
	default:
		return IntentUnknown
	}
}

// Item is one line item as the classifier produced it. Quantity and
// price are optional at this boundary; NormalizedItems is the single
// place where missing values default to zero.
type Item struct {
	Name     string   `json:"name"`
	Quantity *float64 `json:"quantity"`
	Price    *float64 `json:"price"`
}

func (i Item) QuantityOrZero() float64 {
	if i.Quantity == nil {
		return 0
	}
	return *i.Quantity
}

func (i Item) PriceOrZero() float64 {
	if i.Price == nil {
		return 0
	}
	return *i.Price
}

// Data is the structured payload extracted from one inbound message.
type Data struct {
	CustomerName string `json:"customer_name"`
	Items        []Item `json:"items"`
	QueryText    string `json:"query_text"`
}

// NormalizedItems converts boundary items into ledger line items,
// defaulting missing quantity/price to zero and dropping lines with a
// blank name. Input order is preserved.
func (d Data) NormalizedItems() []ledgerx.SoldItem {
	out := make([]ledgerx.SoldItem, 0, len(d.Items))
	for _, item := range d.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		out = append(out, ledgerx.SoldItem{
			Name:     name,
			Quantity: item.QuantityOrZero(),
			Price:    item.PriceOrZero(),
		})
	}
	return out
}

// Result is the intent-extraction envelope: classified intent, extracted
// data, and the base reply text composed by the classifier.
type Result struct {
	Intent    Intent `json:"intent"`
	Data      Data   `json:"data"`
	ReplyText string `json:"reply_text"`
}

// ErrorResult synthesizes the terminal error-intent result used when
// extraction fails.
func ErrorResult(msg string) Result {
	return Result{
		Intent:    IntentError,
		ReplyText: msg,
	}
}
