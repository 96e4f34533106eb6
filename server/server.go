// Package server exposes the inbound webhook. The handler only validates
// the event and hands it to the worker pool; the acknowledgment never
// waits on downstream work.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/vyaparlabs/vyapar/agent/contract"
	workerx "github.com/vyaparlabs/vyapar/agent/worker"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// Queue is the scheduling surface the handler needs from the pool.
type Queue interface {
	Enqueue(job workerx.Job) error
}

type Handler struct {
	queue Queue
	nowFn func() time.Time
}

func New(queue Queue) *Handler {
	return &Handler{
		queue: queue,
		nowFn: time.Now,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", h.health)
	r.Post("/whatsapp", h.webhook)

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "running"})
}

// webhook accepts one Twilio inbound-message event, schedules exactly one
// job, and acknowledges with empty TwiML. Business logic never runs here.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	sender := strings.TrimSpace(r.PostFormValue("From"))
	body := strings.TrimSpace(r.PostFormValue("Body"))
	mediaURL := strings.TrimSpace(r.PostFormValue("MediaUrl0"))
	mediaType := strings.TrimSpace(r.PostFormValue("MediaContentType0"))

	if sender == "" {
		http.Error(w, "missing sender", http.StatusBadRequest)
		return
	}
	if body == "" && mediaURL == "" {
		http.Error(w, "event has neither text nor media", http.StatusBadRequest)
		return
	}

	job := workerx.Job{
		ID:         uuid.NewString(),
		Sender:     sender,
		Body:       body,
		MediaURL:   mediaURL,
		MediaType:  mediaType,
		ReceivedAt: h.nowFn(),
	}

	if err := h.queue.Enqueue(job); err != nil {
		if errors.Is(err, contractx.ErrQueueFull) {
			log.Warn().Str("sender", sender).Msg("task queue full, shedding event")
			http.Error(w, "busy, retry later", http.StatusServiceUnavailable)
			return
		}
		log.Error().Err(err).Msg("enqueue failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.Info().Str("job_id", job.ID).Str("sender", sender).Bool("has_media", mediaURL != "").Msg("inbound event accepted")

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(emptyTwiML))
}
