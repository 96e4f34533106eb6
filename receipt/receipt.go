// Package receipt renders sale documents. One document is generated per
// recorded sale and referenced from its transaction.
package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	contractx "github.com/vyaparlabs/vyapar/agent/contract"
	ledgerx "github.com/vyaparlabs/vyapar/ledger"
)

const header = "VYAPAR AI INVOICE"

// FileGenerator writes plain-text receipts into a local directory and
// returns the file path as the receipt reference.
type FileGenerator struct {
	dir   string
	nowFn func() time.Time
}

func NewFileGenerator(dir string) (*FileGenerator, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "data/receipts"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create receipt dir: %w", err)
	}
	return &FileGenerator{
		dir:   dir,
		nowFn: time.Now,
	}, nil
}

func (g *FileGenerator) Generate(customer string, items []ledgerx.SoldItem) (string, error) {
	now := g.nowFn()

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", header)
	fmt.Fprintf(&b, "Customer: %s\n", customer)
	fmt.Fprintf(&b, "Date: %s\n\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "%-30s %10s %10s %10s\n", "Item", "Qty", "Price", "Total")

	var total float64
	for _, item := range items {
		lineTotal := item.Quantity * item.Price
		total += lineTotal
		fmt.Fprintf(&b, "%-30s %10g %10.2f %10.2f\n", item.Name, item.Quantity, item.Price, lineTotal)
	}
	fmt.Fprintf(&b, "\nGrand Total: Rs. %.2f\n", total)

	name := fmt.Sprintf("receipt_%d_%s.txt", now.Unix(), uuid.NewString()[:8])
	path := filepath.Join(g.dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}
	return path, nil
}

var _ contractx.ReceiptGenerator = (*FileGenerator)(nil)
