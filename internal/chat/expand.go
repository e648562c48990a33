package chat

import "regexp"

// shortForm rewrites one chat shorthand into speakable text. Patterns
// are word-bounded and case-insensitive; longer forms are listed before
// their prefixes so "ggwp" never half-expands.
type shortForm struct {
	re   *regexp.Regexp
	repl string
}

var shortForms = []shortForm{
	{regexp.MustCompile(`(?i)\bggwp\b`), "good game, well played"},
	{regexp.MustCompile(`(?i)\bglhf\b`), "good luck, have fun"},
	{regexp.MustCompile(`(?i)\bgg\b`), "good game"},
	{regexp.MustCompile(`(?i)\bgl\b`), "good luck"},
	{regexp.MustCompile(`(?i)\bhf\b`), "have fun"},
	{regexp.MustCompile(`(?i)\bwp\b`), "well played"},
	{regexp.MustCompile(`(?i)\bnt\b`), "nice try"},
	{regexp.MustCompile(`(?i)\bns\b`), "nice shot"},
	{regexp.MustCompile(`(?i)\bty\b`), "thank you"},
	{regexp.MustCompile(`(?i)\bthx\b`), "thanks"},
	{regexp.MustCompile(`(?i)\bnp\b`), "no problem"},
	{regexp.MustCompile(`(?i)\bbrb\b`), "be right back"},
	{regexp.MustCompile(`(?i)\bafk\b`), "away from keyboard"},
	{regexp.MustCompile(`(?i)\bomw\b`), "on my way"},
	{regexp.MustCompile(`(?i)\bidk\b`), "I don't know"},
	{regexp.MustCompile(`(?i)\bimo\b`), "in my opinion"},
	{regexp.MustCompile(`(?i)\bwtf\b`), "what the heck"},
	{regexp.MustCompile(`(?i)\bult\b`), "ultimate"},
	{regexp.MustCompile(`(?i)\b(\d+)\s*hp\b`), "$1 health"},
}

// ExpandShortForms rewrites common chat shorthand in text for narration.
// The input is never modified; callers keep the original content for
// counting and display.
func ExpandShortForms(text string) string {
	out := text
	for _, f := range shortForms {
		out = f.re.ReplaceAllString(out, f.repl)
	}
	return out
}
