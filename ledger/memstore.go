package ledger

import (
	"context"
	"sync"
	"time"
)

// MemStore keeps the ledger in process memory. It is the development
// fallback when no database is configured. A single mutex serializes
// every mutation, so the per-key no-lost-update guarantee holds.
type MemStore struct {
	mu    sync.Mutex
	items map[string]*Item
	names []string
	txns  []Transaction
	nowFn func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		items: make(map[string]*Item),
		nowFn: time.Now,
	}
}

func (s *MemStore) UpsertItem(_ context.Context, name string, deltaQty, price float64) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[name]
	if !ok {
		item = &Item{
			ID:       int64(len(s.names) + 1),
			Name:     name,
			Quantity: deltaQty,
			Price:    price,
		}
		s.items[name] = item
		s.names = append(s.names, name)
		return *item, nil
	}

	item.Quantity += deltaQty
	if price > 0 {
		item.Price = price
	}
	return *item, nil
}

func (s *MemStore) DeductItems(_ context.Context, items []SoldItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range items {
		item, ok := s.items[line.Name]
		if !ok {
			continue
		}
		item.Quantity -= line.Quantity
	}
	return nil
}

func (s *MemStore) AppendTransaction(_ context.Context, customer string, items []SoldItem, total float64, receiptRef string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]SoldItem, len(items))
	copy(snapshot, items)

	txn := Transaction{
		ID:           int64(len(s.txns) + 1),
		CustomerName: customer,
		Items:        snapshot,
		TotalAmount:  total,
		ReceiptRef:   receiptRef,
		CreatedAt:    s.nowFn().UTC(),
	}
	s.txns = append(s.txns, txn)
	return txn, nil
}

func (s *MemStore) Summary(_ context.Context) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{
		TransactionCount: len(s.txns),
		Inventory:        make([]Item, 0, len(s.names)),
	}
	for _, txn := range s.txns {
		summary.TotalSales += txn.TotalAmount
	}
	for _, name := range s.names {
		summary.Inventory = append(summary.Inventory, *s.items[name])
	}
	return summary, nil
}

var _ Store = (*MemStore)(nil)
