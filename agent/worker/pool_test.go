package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	contractx "github.com/vyaparlabs/vyapar/agent/contract"
	dispatchx "github.com/vyaparlabs/vyapar/agent/dispatch"
	ledgerx "github.com/vyaparlabs/vyapar/ledger"
)

type stubExtractor struct {
	result contractx.Result
	err    error
}

func (s stubExtractor) Extract(context.Context, contractx.Input) (contractx.Result, error) {
	return s.result, s.err
}

type captureReplier struct {
	sent chan sentMessage
	err  error
}

type sentMessage struct {
	To   string
	Body string
}

func newCaptureReplier() *captureReplier {
	return &captureReplier{sent: make(chan sentMessage, 8)}
}

func (r *captureReplier) SendMessage(_ context.Context, to, body string) error {
	r.sent <- sentMessage{To: to, Body: body}
	return r.err
}

type stubReceipts struct{}

func (stubReceipts) Generate(string, []ledgerx.SoldItem) (string, error) {
	return "ref", nil
}

type brokenStore struct {
	ledgerx.Store
}

func (brokenStore) Summary(context.Context) (ledgerx.Summary, error) {
	return ledgerx.Summary{}, errors.New("store unavailable")
}

func newTestPool(t *testing.T, extractor contractx.Extractor, store ledgerx.Store, replier contractx.Replier) *Pool {
	t.Helper()
	dispatcher, err := dispatchx.New(store, stubReceipts{})
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}
	pool, err := NewPool(extractor, dispatcher, replier, Config{Workers: 1, QueueSize: 4, JobTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	pool.Start(context.Background())
	t.Cleanup(pool.Close)
	return pool
}

func waitForReply(t *testing.T, replier *captureReplier) sentMessage {
	t.Helper()
	select {
	case msg := <-replier.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
		return sentMessage{}
	}
}

func TestPoolProcessesEventAndReplies(t *testing.T) {
	t.Parallel()

	replier := newCaptureReplier()
	pool := newTestPool(t, stubExtractor{
		result: contractx.Result{Intent: contractx.IntentUnknown, ReplyText: "namaste"},
	}, ledgerx.NewMemStore(), replier)

	if err := pool.Enqueue(Job{ID: "j1", Sender: "whatsapp:+911", ReceivedAt: time.Now()}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	msg := waitForReply(t, replier)
	if msg.To != "whatsapp:+911" {
		t.Fatalf("to = %q", msg.To)
	}
	if msg.Body != "namaste" {
		t.Fatalf("body = %q", msg.Body)
	}
}

func TestPoolExtractionFailureStillReplies(t *testing.T) {
	t.Parallel()

	replier := newCaptureReplier()
	pool := newTestPool(t, stubExtractor{
		err: fmt.Errorf("%w: decode model output", contractx.ErrExtraction),
	}, ledgerx.NewMemStore(), replier)

	if err := pool.Enqueue(Job{ID: "j1", Sender: "s", ReceivedAt: time.Now()}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	msg := waitForReply(t, replier)
	if msg.Body != extractionFailedReply {
		t.Fatalf("body = %q, want %q", msg.Body, extractionFailedReply)
	}
}

func TestPoolDownloadFailureUsesDownloadDiagnostic(t *testing.T) {
	t.Parallel()

	replier := newCaptureReplier()
	pool := newTestPool(t, stubExtractor{
		err: fmt.Errorf("%w: giving up", contractx.ErrDownload),
	}, ledgerx.NewMemStore(), replier)

	if err := pool.Enqueue(Job{ID: "j1", Sender: "s", ReceivedAt: time.Now()}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	msg := waitForReply(t, replier)
	if msg.Body != downloadFailedReply {
		t.Fatalf("body = %q, want %q", msg.Body, downloadFailedReply)
	}
}

func TestPoolDispatchFailureSendsDegradedReply(t *testing.T) {
	t.Parallel()

	replier := newCaptureReplier()
	pool := newTestPool(t, stubExtractor{
		result: contractx.Result{Intent: contractx.IntentQueryLedger, ReplyText: "ok"},
	}, brokenStore{Store: ledgerx.NewMemStore()}, replier)

	if err := pool.Enqueue(Job{ID: "j1", Sender: "s", ReceivedAt: time.Now()}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	msg := waitForReply(t, replier)
	if msg.Body != degradedReply {
		t.Fatalf("body = %q, want %q", msg.Body, degradedReply)
	}
}

func TestEnqueueAppliesBackpressureWhenFull(t *testing.T) {
	t.Parallel()

	dispatcher, err := dispatchx.New(ledgerx.NewMemStore(), stubReceipts{})
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}
	// Not started: nothing drains the queue.
	pool, err := NewPool(stubExtractor{}, dispatcher, newCaptureReplier(), Config{Workers: 1, QueueSize: 1, JobTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}

	if err := pool.Enqueue(Job{ID: "j1"}); err != nil {
		t.Fatalf("first Enqueue() error = %v", err)
	}
	if err := pool.Enqueue(Job{ID: "j2"}); !errors.Is(err, contractx.ErrQueueFull) {
		t.Fatalf("second Enqueue() error = %v, want ErrQueueFull", err)
	}
}
