package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

// Stream ingests raw stanzas pushed over a websocket. Disconnects are
// expected whenever the game client restarts, so the stream reconnects
// forever with backoff until its context is canceled.
type Stream struct {
	url  string
	sink Sink
}

// NewStream builds a Stream reading from url into sink.
func NewStream(url string, sink Sink) *Stream {
	return &Stream{url: url, sink: sink}
}

// Run connects and reads until ctx is canceled, reconnecting on any
// failure. It only returns the ctx error.
func (s *Stream) Run(ctx context.Context) error {
	b := newBackoff(time.Second, 30*time.Second)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, _, err := websocket.Dial(ctx, s.url, nil)
		if err != nil {
			wait := b.NextBackOff()
			slog.Debug("stream dial failed", "url", s.url, "error", err, "next_retry", wait)
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		b.Reset()
		slog.Info("message stream connected", "url", s.url)

		err = s.readLoop(ctx, conn)
		conn.Close(websocket.StatusNormalClosure, "reconnecting")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := b.NextBackOff()
		slog.Warn("message stream disconnected", "error", err, "next_retry", wait)
		if !sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		s.sink.HandleRaw(ctx, string(data))
	}
}

// sleep waits for d or ctx cancellation, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
