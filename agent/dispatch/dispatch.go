// Package dispatch maps a classified intent plus extracted data onto
// ledger operations and composes the reply sent back to the operator.
package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	contractx "github.com/vyaparlabs/vyapar/agent/contract"
	ledgerx "github.com/vyaparlabs/vyapar/ledger"
)

const (
	defaultCustomer  = "Cash Customer"
	saleRecordedLine = "Transaction recorded. Invoice generated."
	unknownReplyText = "Sorry, I did not understand that. Please try again."
)

// Dispatcher is the business-logic core: a mapping from (intent, data)
// to store mutations and a composed reply string. It holds no state of
// its own.
type Dispatcher struct {
	store    ledgerx.Store
	receipts contractx.ReceiptGenerator
}

func New(store ledgerx.Store, receipts contractx.ReceiptGenerator) (*Dispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: ledger store is required", contractx.ErrValidation)
	}
	if receipts == nil {
		return nil, fmt.Errorf("%w: receipt generator is required", contractx.ErrValidation)
	}
	return &Dispatcher{
		store:    store,
		receipts: receipts,
	}, nil
}

// Dispatch executes the operations for one extraction result and returns
// the final reply text. Store and receipt failures wrap ErrBusinessLogic.
func (d *Dispatcher) Dispatch(ctx context.Context, res contractx.Result) (string, error) {
	switch res.Intent {
	case contractx.IntentCreateInvoice:
		return d.createInvoice(ctx, res)
	case contractx.IntentAddInventory:
		return d.addInventory(ctx, res)
	case contractx.IntentQueryLedger:
		return d.queryLedger(ctx, res)
	default:
		reply := strings.TrimSpace(res.ReplyText)
		if reply == "" {
			reply = unknownReplyText
		}
		return reply, nil
	}
}

func (d *Dispatcher) createInvoice(ctx context.Context, res contractx.Result) (string, error) {
	items := res.Data.NormalizedItems()

	if err := d.store.DeductItems(ctx, items); err != nil {
		return "", fmt.Errorf("%w: deduct inventory: %v", contractx.ErrBusinessLogic, err)
	}

	var total float64
	for _, item := range items {
		total += item.Quantity * item.Price
	}

	customer := strings.TrimSpace(res.Data.CustomerName)
	if customer == "" {
		customer = defaultCustomer
	}

	receiptRef, err := d.receipts.Generate(customer, items)
	if err != nil {
		return "", fmt.Errorf("%w: generate receipt: %v", contractx.ErrBusinessLogic, err)
	}

	if _, err := d.store.AppendTransaction(ctx, customer, items, total, receiptRef); err != nil {
		return "", fmt.Errorf("%w: append transaction: %v", contractx.ErrBusinessLogic, err)
	}

	return fmt.Sprintf("%s\n%s\nInvoice saved at: %s", res.ReplyText, saleRecordedLine, receiptRef), nil
}

func (d *Dispatcher) addInventory(ctx context.Context, res contractx.Result) (string, error) {
	lines := []string{res.ReplyText}
	for _, item := range res.Data.NormalizedItems() {
		updated, err := d.store.UpsertItem(ctx, item.Name, item.Quantity, item.Price)
		if err != nil {
			return "", fmt.Errorf("%w: upsert inventory %q: %v", contractx.ErrBusinessLogic, item.Name, err)
		}
		lines = append(lines, fmt.Sprintf("Updated %s: Qty %s, Price %s",
			updated.Name, formatNumber(updated.Quantity), formatNumber(updated.Price)))
	}
	return strings.Join(lines, "\n"), nil
}

func (d *Dispatcher) queryLedger(ctx context.Context, res contractx.Result) (string, error) {
	summary, err := d.store.Summary(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: ledger summary: %v", contractx.ErrBusinessLogic, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nTotal Sales: Rs. %s (%d txns).",
		res.ReplyText, formatNumber(summary.TotalSales), summary.TransactionCount)

	if len(summary.Inventory) == 0 {
		b.WriteString("\nNo inventory recorded.")
		return b.String(), nil
	}

	b.WriteString("\nStock Levels:")
	for _, item := range summary.Inventory {
		fmt.Fprintf(&b, "\n- %s: %s", item.Name, formatNumber(item.Quantity))
	}
	return b.String(), nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
