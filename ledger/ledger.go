// Package ledger owns the shared inventory and transaction-log state.
package ledger

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Item is an inventory record keyed by its name. Quantity is additive
// across restocks and subtractive across sales; it is allowed to go
// negative because sales are never checked against sufficiency.
type Item struct {
	bun.BaseModel `bun:"table:inventory,alias:i"`

	ID       int64   `bun:"id,pk,autoincrement" json:"id"`
	Name     string  `bun:"name,notnull,unique" json:"name"`
	Quantity float64 `bun:"quantity,notnull,default:0" json:"quantity"`
	Price    float64 `bun:"price,notnull,default:0" json:"price"`
}

// SoldItem is a point-in-time snapshot of one sale line. It is stored
// alongside the transaction and is independent of later inventory
// mutation.
type SoldItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// Transaction is an append-only audit record of one sale. Records are
// never mutated or deleted after creation.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID           int64      `bun:"id,pk,autoincrement" json:"id"`
	CustomerName string     `bun:"customer_name,notnull" json:"customer_name"`
	Items        []SoldItem `bun:"items,type:jsonb" json:"items"`
	TotalAmount  float64    `bun:"total_amount,notnull" json:"total_amount"`
	ReceiptRef   string     `bun:"receipt_ref" json:"receipt_ref"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Summary is the whole-history ledger aggregate: no pagination and no
// time-range filtering.
type Summary struct {
	TotalSales       float64
	TransactionCount int
	Inventory        []Item
}

// Store is the persistence contract for the ledger. Implementations must
// serialize conflicting writes per item name so that concurrent
// upserts/deducts against the same key cannot lose an update.
type Store interface {
	// UpsertItem adds deltaQty to the named item, creating it when absent.
	// Price is overwritten only when the given price is strictly positive.
	UpsertItem(ctx context.Context, name string, deltaQty, price float64) (Item, error)

	// DeductItems subtracts each line's quantity from the matching item.
	// Lines naming an unknown item are silently skipped.
	DeductItems(ctx context.Context, items []SoldItem) error

	// AppendTransaction records one immutable sale.
	AppendTransaction(ctx context.Context, customer string, items []SoldItem, total float64, receiptRef string) (Transaction, error)

	// Summary aggregates total sales over every transaction ever appended
	// plus a full inventory snapshot.
	Summary(ctx context.Context) (Summary, error)
}
