// Package narrate turns accepted chat messages into speech. A bounded
// queue decouples the message pipeline from the speech engine: enqueue
// never blocks, a single consumer speaks requests in order, and a slow
// engine costs dropped narrations instead of a stalled pipeline.
package narrate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Request is one narration order.
type Request struct {
	// Text is the sanitized, possibly shorthand-expanded text to speak.
	Text string
	// VoiceHint names the voice, empty for the engine default.
	VoiceHint string
	// RateHint is a speaking rate from 0 to 100, where 50 is normal.
	RateHint int
}

// Speaker synthesizes one request. Speak must honor ctx cancellation;
// the queue cancels it when the per-request timeout expires or the
// service shuts down.
type Speaker interface {
	Speak(ctx context.Context, req Request) error
}

// Option configures a Queue.
type Option func(*Queue)

// WithTimeout sets the per-request synthesis timeout.
func WithTimeout(d time.Duration) Option {
	return func(q *Queue) { q.timeout = d }
}

// WithObserver registers fn to run after every synthesis attempt with
// the request, its duration, and the speaker's error.
func WithObserver(fn func(Request, time.Duration, error)) Option {
	return func(q *Queue) { q.observer = fn }
}

// Queue is a bounded FIFO narration queue with one consumer goroutine.
type Queue struct {
	speaker  Speaker
	timeout  time.Duration
	observer func(Request, time.Duration, error)

	ch       chan Request
	dropped  atomic.Int64
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewQueue builds a queue over speaker holding at most capacity pending
// requests; capacity < 1 falls back to 16.
func NewQueue(speaker Speaker, capacity int, opts ...Option) *Queue {
	if capacity < 1 {
		capacity = 16
	}
	q := &Queue{
		speaker: speaker,
		timeout: 30 * time.Second,
		ch:      make(chan Request, capacity),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Start launches the consumer. It returns immediately; the consumer
// stops when ctx is canceled or Close is called.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go q.consume(ctx)
}

// Enqueue offers a request without blocking. When the queue is full the
// request is dropped, keeping older pending narrations in order, and
// Enqueue reports false.
func (q *Queue) Enqueue(req Request) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.ch <- req:
		return true
	default:
		q.dropped.Add(1)
		slog.Warn("narration queue full, dropping request", "chars", len(req.Text))
		return false
	}
}

// Len returns the number of pending requests.
func (q *Queue) Len() int { return len(q.ch) }

// Dropped returns how many requests were rejected by a full queue.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Close stops the consumer and discards pending requests. It blocks
// until the in-flight request finishes or its timeout fires.
func (q *Queue) Close() {
	q.stopOnce.Do(func() { close(q.done) })
	q.wg.Wait()
}

func (q *Queue) consume(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case req := <-q.ch:
			q.speakOne(ctx, req)
		}
	}
}

// speakOne runs one synthesis under the per-request timeout. A speaker
// that ignores cancellation is abandoned in its goroutine rather than
// wedging the consumer.
func (q *Queue) speakOne(ctx context.Context, req Request) {
	sctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	start := time.Now()
	errc := make(chan error, 1)
	go func() { errc <- q.speaker.Speak(sctx, req) }()

	var err error
	select {
	case err = <-errc:
	case <-sctx.Done():
		err = sctx.Err()
	}
	elapsed := time.Since(start)
	if err != nil {
		slog.Error("speech synthesis failed", "error", err, "chars", len(req.Text), "duration", elapsed)
	}
	if q.observer != nil {
		q.observer(req, elapsed, err)
	}
}
