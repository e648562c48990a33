package chat

import (
	"encoding/xml"
	"html"
	"io"
	"regexp"
	"strings"
)

// Size caps for untrusted stanza input. A stanza beyond maxStanzaLen is
// dropped whole; a body beyond maxBodyLen is truncated at the cap.
const (
	maxStanzaLen = 32 << 10
	maxBodyLen   = 8 << 10
)

// carbonsNS marks a stanza as a carbon copy of the player's own outbound
// message, wrapped in a forwarded envelope.
const carbonsNS = "urn:xmpp:carbons:2"

// ParsedStanza holds the attributes and body extracted from one message
// stanza. Body is kept entity-escaped as it appeared on the wire;
// unescaping happens exactly once in NewMessage.
type ParsedStanza struct {
	From     string
	To       string
	ID       string
	Type     string
	Body     string
	HasBody  bool
	// CarbonTo is the "to" attribute of the inner forwarded message when
	// the stanza was a carbon copy, empty otherwise.
	CarbonTo string
	// Archived is set when the stanza carried a delay stamp or an archive
	// marker, meaning it is replayed history.
	Archived bool
}

// ParseStanzas extracts all message stanzas from raw input. The local
// chat endpoint batches multiple stanzas into one payload, so input is
// split on message boundaries first and each fragment parsed on its own.
// Fragments that defeat the XML tokenizer fall back to regex extraction;
// fragments yielding neither a from nor a body are dropped.
func ParseStanzas(raw string) []ParsedStanza {
	var out []ParsedStanza
	for _, frag := range splitBatch(raw) {
		if len(frag) > maxStanzaLen {
			continue
		}
		st, ok := parseOne(frag)
		if !ok {
			st, ok = parseFallback(frag)
		}
		if ok {
			out = append(out, st)
		}
	}
	return out
}

// splitBatch splits a payload into per-stanza fragments at top-level
// message boundaries. Nesting depth is tracked so carbon envelopes,
// which wrap a second message element, stay in one fragment; a
// self-closing message tag opens and closes at once. Input with no
// message element comes back as a single fragment so presence and iq
// stanzas pass through untouched.
func splitBatch(raw string) []string {
	start := strings.Index(raw, "<message")
	if start < 0 {
		return []string{raw}
	}
	var (
		frags []string
		depth int
		pos   = start
	)
	emit := func() bool {
		frags = append(frags, raw[start:pos])
		next := strings.Index(raw[pos:], "<message")
		if next < 0 {
			return false
		}
		start = pos + next
		pos = start
		depth = 0
		return true
	}
	for pos < len(raw) {
		open := strings.Index(raw[pos:], "<message")
		clos := strings.Index(raw[pos:], "</message>")
		switch {
		case open >= 0 && (clos < 0 || open < clos):
			tagEnd := strings.Index(raw[pos+open:], ">")
			if tagEnd < 0 {
				// Truncated start tag; hand the remainder to the fallback.
				pos = len(raw)
				emit()
				return frags
			}
			selfClosing := strings.HasSuffix(raw[pos+open:pos+open+tagEnd], "/")
			pos += open + tagEnd + 1
			if selfClosing {
				if depth == 0 && !emit() {
					return frags
				}
			} else {
				depth++
			}
		case clos >= 0:
			depth--
			pos += clos + len("</message>")
			if depth <= 0 && !emit() {
				return frags
			}
		default:
			// Unbalanced remainder; hand it to the fallback parser.
			pos = len(raw)
			emit()
			return frags
		}
	}
	return frags
}

// parseOne walks the fragment with a streaming tokenizer. It tolerates
// trailing garbage after the closing tag and unknown child elements, but
// reports failure on input the tokenizer cannot make sense of so the
// regex fallback gets a chance.
func parseOne(frag string) (ParsedStanza, bool) {
	dec := xml.NewDecoder(strings.NewReader(frag))
	// Chat payloads regularly omit namespace declarations.
	dec.Strict = false

	var (
		st       ParsedStanza
		depth    int
		msgSeen  int
		inBody   bool
		inCarbon bool
		body     strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A broken tail after a complete stanza is tolerable.
			if msgSeen > 0 && st.From != "" {
				break
			}
			return ParsedStanza{}, false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "message":
				msgSeen++
				if msgSeen == 1 {
					for _, a := range t.Attr {
						switch a.Name.Local {
						case "from":
							st.From = a.Value
						case "to":
							st.To = a.Value
						case "id":
							st.ID = a.Value
						case "type":
							st.Type = a.Value
						}
					}
				} else if inCarbon && st.CarbonTo == "" {
					for _, a := range t.Attr {
						if a.Name.Local == "to" {
							st.CarbonTo = a.Value
						}
					}
				}
			case "sent", "received", "forwarded":
				for _, a := range t.Attr {
					if a.Name.Local == "xmlns" && a.Value == carbonsNS {
						inCarbon = true
					}
				}
				if t.Name.Local == "forwarded" {
					inCarbon = true
				}
			case "body":
				// First body wins; for carbons that is the forwarded one.
				if !st.HasBody {
					inBody = true
					st.HasBody = true
				}
			case "delay", "stamp", "archived", "result":
				st.Archived = true
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "body" {
				inBody = false
			}
			if depth <= 0 && msgSeen > 0 {
				// Closing tag of the outer message; ignore the rest.
				if st.From == "" && !st.HasBody {
					return ParsedStanza{}, false
				}
				if st.HasBody {
					st.Body = capBody(body.String())
				}
				return st, true
			}
		case xml.CharData:
			if inBody && body.Len() < maxBodyLen {
				// The tokenizer already unescaped entities; re-escape so
				// Body keeps the wire form and NewMessage unescapes once.
				body.WriteString(html.EscapeString(string(t)))
			}
		}
	}
	if msgSeen == 0 || st.From == "" {
		return ParsedStanza{}, false
	}
	if st.HasBody {
		st.Body = capBody(body.String())
	}
	return st, true
}

func capBody(s string) string {
	if len(s) > maxBodyLen {
		return s[:maxBodyLen]
	}
	return s
}

// Regex fallback for stanzas the tokenizer rejects, e.g. truncated or
// interleaved fragments. Attribute order varies between servers, so each
// attribute has its own pattern.
var (
	reFrom  = regexp.MustCompile(`from=['"]([^'"]+)['"]`)
	reTo    = regexp.MustCompile(`\sto=['"]([^'"]+)['"]`)
	reID    = regexp.MustCompile(`\sid=['"]([^'"]+)['"]`)
	reType  = regexp.MustCompile(`\stype=['"]([^'"]+)['"]`)
	reBody  = regexp.MustCompile(`<body[^>]*>(.*?)</body>`)
	reStamp = regexp.MustCompile(`<(?:delay|stamp|archived|result)[\s/>]`)
)

func parseFallback(frag string) (ParsedStanza, bool) {
	var st ParsedStanza
	if m := reFrom.FindStringSubmatch(frag); m != nil {
		st.From = m[1]
	}
	if m := reTo.FindStringSubmatch(frag); m != nil {
		st.To = m[1]
	}
	if m := reID.FindStringSubmatch(frag); m != nil {
		st.ID = m[1]
	}
	if m := reType.FindStringSubmatch(frag); m != nil {
		st.Type = m[1]
	}
	if m := reBody.FindStringSubmatch(frag); m != nil {
		st.HasBody = true
		st.Body = capBody(m[1])
	}
	st.Archived = reStamp.MatchString(frag)
	if st.From == "" && !st.HasBody {
		return ParsedStanza{}, false
	}
	return st, true
}

// IsMessage reports whether the raw input contains a message stanza.
func IsMessage(raw string) bool {
	return strings.Contains(raw, "<message")
}

// IsPresence reports whether the raw input is a presence stanza.
func IsPresence(raw string) bool {
	return strings.Contains(raw, "<presence")
}

var rePresencePayload = regexp.MustCompile(`<p>([^<]+)</p>`)

// PresencePayload extracts the base64 payload from a presence stanza,
// empty when none is present.
func PresencePayload(raw string) string {
	if m := rePresencePayload.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}
