package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	contractx "github.com/vyaparlabs/vyapar/agent/contract"
	workerx "github.com/vyaparlabs/vyapar/agent/worker"
)

type fakeQueue struct {
	jobs []workerx.Job
	err  error
}

func (q *fakeQueue) Enqueue(job workerx.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func postForm(t *testing.T, handler http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	handler := New(&fakeQueue{}).Router()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "running" {
		t.Fatalf("status field = %q, want running", body["status"])
	}
}

func TestWebhookEnqueuesExactlyOneJobAndAcks(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	handler := New(queue).Router()

	rec := postForm(t, handler, url.Values{
		"From":              {"whatsapp:+919876543210"},
		"Body":              {"sold 4 kg rice to Ramesh at 60"},
		"MediaUrl0":         {"https://api.twilio.com/media/1"},
		"MediaContentType0": {"audio/ogg; codecs=opus"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("content type = %q, want application/xml", ct)
	}
	if !strings.Contains(rec.Body.String(), "<Response></Response>") {
		t.Fatalf("body = %q, want empty TwiML", rec.Body.String())
	}

	if len(queue.jobs) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(queue.jobs))
	}
	job := queue.jobs[0]
	if job.ID == "" {
		t.Fatal("job id must be set")
	}
	if job.Sender != "whatsapp:+919876543210" {
		t.Fatalf("sender = %q", job.Sender)
	}
	if job.MediaType != "audio/ogg; codecs=opus" {
		t.Fatalf("media type = %q", job.MediaType)
	}
}

func TestWebhookTextOnlyIsAccepted(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	handler := New(queue).Router()

	rec := postForm(t, handler, url.Values{
		"From": {"whatsapp:+911"},
		"Body": {"stock check"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestWebhookRejectsMalformedEvents(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	handler := New(queue).Router()

	cases := map[string]url.Values{
		"missing sender":   {"Body": {"hello"}},
		"no text no media": {"From": {"whatsapp:+911"}},
	}
	for name, form := range cases {
		rec := postForm(t, handler, form)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("malformed events must not enqueue, got %d", len(queue.jobs))
	}
}

func TestWebhookQueueFullShedsLoad(t *testing.T) {
	t.Parallel()

	handler := New(&fakeQueue{err: contractx.ErrQueueFull}).Router()
	rec := postForm(t, handler, url.Values{
		"From": {"whatsapp:+911"},
		"Body": {"hello"},
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
