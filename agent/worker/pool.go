// Package worker runs the extract-dispatch-reply pipeline for inbound
// events off the request path, on a bounded pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/vyaparlabs/vyapar/agent/contract"
	dispatchx "github.com/vyaparlabs/vyapar/agent/dispatch"
)

const (
	downloadFailedReply   = "Failed to download media."
	extractionFailedReply = "AI processing failed."
	degradedReply         = "Sorry, something went wrong while processing your message. Please try again."
)

// Job is one inbound message event queued for processing.
type Job struct {
	ID         string
	Sender     string
	Body       string
	MediaURL   string
	MediaType  string
	ReceivedAt time.Time
}

type Config struct {
	Workers    int           `split_words:"true" default:"8"`
	QueueSize  int           `split_words:"true" default:"256"`
	JobTimeout time.Duration `split_words:"true" default:"2m"`
}

// Pool is a fixed-size worker pool over a bounded queue. Enqueue applies
// backpressure instead of spawning unbounded goroutines.
type Pool struct {
	extractor  contractx.Extractor
	dispatcher *dispatchx.Dispatcher
	replier    contractx.Replier

	jobs       chan Job
	workers    int
	jobTimeout time.Duration
	wg         sync.WaitGroup
}

func NewPool(extractor contractx.Extractor, dispatcher *dispatchx.Dispatcher, replier contractx.Replier, cfg Config) (*Pool, error) {
	if extractor == nil {
		return nil, fmt.Errorf("%w: extractor is required", contractx.ErrValidation)
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("%w: dispatcher is required", contractx.ErrValidation)
	}
	if replier == nil {
		return nil, fmt.Errorf("%w: replier is required", contractx.ErrValidation)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}

	return &Pool{
		extractor:  extractor,
		dispatcher: dispatcher,
		replier:    replier,
		jobs:       make(chan Job, queueSize),
		workers:    workers,
		jobTimeout: jobTimeout,
	}, nil
}

// Start launches the workers. The base context bounds every job.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for job := range p.jobs {
				p.run(ctx, job)
			}
		}(i)
	}
	log.Info().Int("workers", p.workers).Int("queue_size", cap(p.jobs)).Msg("worker pool started")
}

// Enqueue schedules exactly one job for the event, without blocking.
// A full queue surfaces ErrQueueFull so the receiver can shed load.
func (p *Pool) Enqueue(job Job) error {
	select {
	case p.jobs <- job:
		return nil
	default:
		return contractx.ErrQueueFull
	}
}

// Close stops intake and waits for in-flight jobs to drain.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// run executes the pipeline for one job: extract, dispatch, reply.
// Extraction failures degrade to a fixed-diagnostic error result;
// dispatch failures still produce a best-effort fallback reply.
func (p *Pool) run(ctx context.Context, job Job) {
	ctx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	logger := log.With().Str("job_id", job.ID).Str("sender", job.Sender).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("task panicked")
		}
	}()

	result, err := p.extractor.Extract(ctx, contractx.Input{
		Text:      job.Body,
		MediaURL:  job.MediaURL,
		MediaMIME: job.MediaType,
	})
	if err != nil {
		logger.Error().Err(err).Msg("extraction failed")
		result = contractx.ErrorResult(extractionFailedReply)
		if errors.Is(err, contractx.ErrDownload) {
			result = contractx.ErrorResult(downloadFailedReply)
		}
	}

	reply, err := p.dispatcher.Dispatch(ctx, result)
	if err != nil {
		logger.Error().Err(err).Str("intent", string(result.Intent)).Msg("dispatch failed")
		reply = degradedReply
	}

	if err := p.replier.SendMessage(ctx, job.Sender, reply); err != nil {
		logger.Error().Err(fmt.Errorf("%w: %v", contractx.ErrDelivery, err)).Msg("reply delivery failed")
		return
	}

	logger.Info().
		Str("intent", string(result.Intent)).
		Dur("elapsed", time.Since(job.ReceivedAt)).
		Msg("event processed")
}
