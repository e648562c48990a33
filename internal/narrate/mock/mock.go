// Package mock provides a test double for the narrate.Speaker interface.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/echochat/internal/narrate"
)

// Speaker records every request it receives. Delay and Err simulate a
// slow or failing engine.
type Speaker struct {
	mu       sync.Mutex
	requests []narrate.Request

	// Delay is how long each Speak call takes, honoring ctx cancellation.
	Delay time.Duration
	// Err is returned from every Speak call when non-nil.
	Err error
}

var _ narrate.Speaker = (*Speaker)(nil)

func (s *Speaker) Speak(ctx context.Context, req narrate.Request) error {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.Err
}

// Requests returns a copy of everything spoken so far.
func (s *Speaker) Requests() []narrate.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]narrate.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests were spoken.
func (s *Speaker) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
