package ingest

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/MrWong99/echochat/internal/observe"
)

// Source fetches raw payloads from the local endpoint.
type Source interface {
	RawGet(ctx context.Context, path string) (string, error)
}

// Endpoint versions probed in order; newer clients serve v6, older ones
// only v5.
var messagePaths = []string{"/chat/v6/messages", "/chat/v5/messages"}

// perPollTimeout bounds one fetch so a hung endpoint cannot stall the
// poll loop past its backoff schedule.
const perPollTimeout = 5 * time.Second

// PollerConfig configures a Poller. Source and Sink are required.
type PollerConfig struct {
	Source Source
	Sink   Sink

	// Interval is the delay between successful polls, also the backoff
	// floor after failures.
	Interval time.Duration
	// MaxInterval caps the failure backoff.
	MaxInterval time.Duration
	// WarnThreshold is how many consecutive failures are tolerated at
	// debug level before escalating to a warning.
	WarnThreshold int
	Metrics       *observe.Metrics
}

// Poller repeatedly fetches pending messages and feeds them to the sink
// as synthetic stanzas. The first successful batch after startup is
// backfill of whatever the endpoint buffered while we were away; it is
// marked seen and never narrated.
type Poller struct {
	source  Source
	sink    Sink
	metrics *observe.Metrics

	interval      time.Duration
	warnThreshold int
	backoff       *backoff.ExponentialBackOff

	path       string
	firstBatch bool
	failures   int
}

// NewPoller builds a Poller. Zero durations fall back to a 2s floor and
// 30s ceiling.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxInterval < cfg.Interval {
		cfg.MaxInterval = 30 * time.Second
	}
	if cfg.WarnThreshold <= 0 {
		cfg.WarnThreshold = 5
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Poller{
		source:        cfg.Source,
		sink:          cfg.Sink,
		metrics:       cfg.Metrics,
		interval:      cfg.Interval,
		warnThreshold: cfg.WarnThreshold,
		backoff:       newBackoff(cfg.Interval, cfg.MaxInterval),
		firstBatch:    true,
	}
}

// Run polls until ctx is canceled. Transient failures back off
// exponentially and recover silently; Run only returns the ctx error.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("message polling started", "interval", p.interval)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		wait := p.interval
		if err := p.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.failures++
			p.metrics.RecordPollCycle(ctx, "error")
			wait = p.backoff.NextBackOff()
			if p.failures == p.warnThreshold {
				slog.Warn("message polling keeps failing",
					"consecutive_failures", p.failures, "error", err, "next_retry", wait)
			} else {
				slog.Debug("message poll failed",
					"consecutive_failures", p.failures, "error", err, "next_retry", wait)
			}
		} else {
			if p.failures >= p.warnThreshold {
				slog.Info("message polling recovered", "after_failures", p.failures)
			}
			p.failures = 0
			p.backoff.Reset()
			p.metrics.RecordPollCycle(ctx, "ok")
		}
		timer.Reset(wait)
	}
}

func (p *Poller) pollOnce(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(ctx, perPollTimeout)
	defer cancel()

	body, err := p.fetch(tctx)
	if err != nil {
		return err
	}
	records := extractRecords(body)

	if p.firstBatch {
		p.firstBatch = false
		for _, rec := range records {
			p.sink.MarkSeen(rec.ID)
		}
		if len(records) > 0 {
			slog.Info("skipping buffered history from before startup", "messages", len(records))
		}
		return nil
	}
	for _, rec := range records {
		p.sink.HandleRaw(ctx, rec.Stanza())
	}
	return nil
}

// fetch tries the known endpoint versions, sticking with whichever
// answered last time and falling back to the others on failure.
func (p *Poller) fetch(ctx context.Context) (string, error) {
	paths := messagePaths
	if p.path != "" {
		paths = append([]string{p.path}, otherPaths(p.path)...)
	}
	var lastErr error
	for _, path := range paths {
		body, err := p.source.RawGet(ctx, path)
		if err == nil {
			p.path = path
			return body, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("ingest: all message endpoints failed: %w", lastErr)
}

func otherPaths(current string) []string {
	var out []string
	for _, path := range messagePaths {
		if path != current {
			out = append(out, path)
		}
	}
	return out
}

// Record is one message from the poll endpoint normalized across schema
// versions.
type Record struct {
	ID   string
	Body string
	From string
	CID  string
	Type string
}

// extractRecords pulls messages out of a poll response. Field names vary
// across endpoint versions, so each field has a fallback chain. Records
// without an id get a synthetic one so deduplication still bounds them.
func extractRecords(body string) []Record {
	list := gjson.Get(body, "messages")
	if !list.Exists() {
		list = gjson.Get(body, "msgs")
	}
	if !list.IsArray() {
		return nil
	}
	var out []Record
	list.ForEach(func(_, v gjson.Result) bool {
		rec := Record{
			ID:   firstString(v, "id", "messageId", "mid"),
			Body: firstString(v, "body", "msg", "message", "content"),
			From: firstString(v, "from", "sender", "fromId", "puuid"),
			CID:  firstString(v, "cid", "channel", "channelId", "conversationId", "room"),
			Type: firstString(v, "type"),
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		out = append(out, rec)
		return true
	})
	return out
}

func firstString(v gjson.Result, keys ...string) string {
	for _, k := range keys {
		if s := v.Get(k).String(); s != "" {
			return s
		}
	}
	return ""
}

// Stanza renders the record as a message stanza so polled and streamed
// messages run the exact same parse and classification path. JID-shaped
// cids name the room directly; bare cid tokens are mapped onto their
// conversation domain first. Room conversations put the sender in the
// resource part; whispers put it in the local part.
func (r Record) Stanza() string {
	from := r.From
	typ := r.Type
	domain := domainForCID(r.CID)
	switch {
	case strings.Contains(r.CID, "@"):
		from = r.CID + "/" + r.From
		if typ == "" {
			typ = "groupchat"
		}
	case strings.HasPrefix(domain, "ares-"):
		from = r.CID + "@" + domain + ".pvp.net/" + r.From
		if typ == "" {
			typ = "groupchat"
		}
	default:
		if !strings.Contains(from, "@") {
			from = r.From + "@" + domain + ".pvp.net"
		}
		if typ == "" {
			typ = "chat"
		}
	}
	var b strings.Builder
	b.WriteString("<message from='")
	b.WriteString(html.EscapeString(from))
	b.WriteString("' id='")
	b.WriteString(html.EscapeString(r.ID))
	b.WriteString("' type='")
	b.WriteString(html.EscapeString(typ))
	b.WriteString("'><body>")
	b.WriteString(html.EscapeString(r.Body))
	b.WriteString("</body></message>")
	return b.String()
}

// domainForCID maps a bare conversation id token onto its chat domain.
// Party cids start with "party"; pregame and coregame cids carry their
// phase in the token. Anything else is a direct conversation.
func domainForCID(cid string) string {
	c := strings.ToLower(cid)
	switch {
	case strings.HasPrefix(c, "party"):
		return "ares-parties"
	case strings.Contains(c, "pregame"):
		return "ares-pregame"
	case strings.Contains(c, "coregame"), strings.Contains(c, "match"):
		return "ares-coregame"
	default:
		return "prod.chat"
	}
}
