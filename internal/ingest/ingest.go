// Package ingest feeds raw chat payloads into the message pipeline. Two
// transports exist: a poller against the local REST endpoint and a
// websocket stream. Both deliver through the same Sink, and both may run
// at once; deduplication downstream makes duplicate delivery harmless.
package ingest

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Sink receives raw payloads from a transport. HandleRaw must be safe
// for concurrent use.
type Sink interface {
	// HandleRaw processes one raw payload.
	HandleRaw(ctx context.Context, raw string)
	// MarkSeen records a message id as already processed without
	// narrating it.
	MarkSeen(id string)
}

// newBackoff builds the retry backoff shared by both transports: start
// at floor, double per failure, cap at ceil. Randomization is off so the
// delay sequence is monotone until reset.
func newBackoff(floor, ceil time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = floor
	b.MaxInterval = ceil
	b.Multiplier = 2
	b.RandomizationFactor = 0
	return b
}
