package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// PGStore persists the ledger in Postgres. Conflicting writes on one
// inventory key are serialized by the database itself: every mutation is
// a single atomic statement, never a read-then-write round trip.
type PGStore struct {
	db *bun.DB
}

func NewPGStore(dsn string) (*PGStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &PGStore{db: db}, nil
}

func (s *PGStore) DB() *bun.DB {
	return s.db
}

func (s *PGStore) Close() error {
	return s.db.Close()
}

// CreateSchema creates the inventory and transaction tables when missing.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	models := []any{
		(*Item)(nil),
		(*Transaction)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

func (s *PGStore) UpsertItem(ctx context.Context, name string, deltaQty, price float64) (Item, error) {
	item := Item{
		Name:     name,
		Quantity: deltaQty,
		Price:    price,
	}
	_, err := s.db.NewInsert().
		Model(&item).
		On("CONFLICT (name) DO UPDATE").
		Set("quantity = i.quantity + EXCLUDED.quantity").
		Set("price = CASE WHEN EXCLUDED.price > 0 THEN EXCLUDED.price ELSE i.price END").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return Item{}, fmt.Errorf("upsert inventory %q: %w", name, err)
	}
	return item, nil
}

func (s *PGStore) DeductItems(ctx context.Context, items []SoldItem) error {
	for _, line := range items {
		_, err := s.db.NewUpdate().
			Model((*Item)(nil)).
			Set("quantity = quantity - ?", line.Quantity).
			Where("name = ?", line.Name).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("deduct inventory %q: %w", line.Name, err)
		}
	}
	return nil
}

func (s *PGStore) AppendTransaction(ctx context.Context, customer string, items []SoldItem, total float64, receiptRef string) (Transaction, error) {
	txn := Transaction{
		CustomerName: customer,
		Items:        items,
		TotalAmount:  total,
		ReceiptRef:   receiptRef,
	}
	_, err := s.db.NewInsert().
		Model(&txn).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	return txn, nil
}

func (s *PGStore) Summary(ctx context.Context) (Summary, error) {
	var agg struct {
		TotalSales       float64 `bun:"total_sales"`
		TransactionCount int     `bun:"transaction_count"`
	}
	err := s.db.NewSelect().
		Model((*Transaction)(nil)).
		ColumnExpr("COALESCE(SUM(total_amount), 0) AS total_sales").
		ColumnExpr("COUNT(*) AS transaction_count").
		Scan(ctx, &agg)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate transactions: %w", err)
	}

	var inventory []Item
	err = s.db.NewSelect().
		Model(&inventory).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("snapshot inventory: %w", err)
	}

	return Summary{
		TotalSales:       agg.TotalSales,
		TransactionCount: agg.TransactionCount,
		Inventory:        inventory,
	}, nil
}

var _ Store = (*PGStore)(nil)
