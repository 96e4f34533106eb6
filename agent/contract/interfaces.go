package contract

import (
	"context"

	ledgerx "github.com/vyaparlabs/vyapar/ledger"
)

// Input is one inbound event's raw material: free text and/or a media
// reference with its MIME type.
type Input struct {
	Text      string
	MediaURL  string
	MediaMIME string
}

// Extractor turns an inbound event into a classified Result. Failures
// are reported as ErrDownload or ErrExtraction wraps.
type Extractor interface {
	Extract(ctx context.Context, in Input) (Result, error)
}

// Replier delivers the final reply text to a sender over the outbound
// transport. Fire-and-forget: no delivery confirmation flows back.
type Replier interface {
	SendMessage(ctx context.Context, to, body string) error
}

// MediaFetcher resolves a media reference into raw bytes plus the MIME
// type the server reported.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, url string) ([]byte, string, error)
}

// ReceiptGenerator renders one sale into a retrievable document and
// returns an opaque reference to it.
type ReceiptGenerator interface {
	Generate(customer string, items []ledgerx.SoldItem) (string, error)
}
