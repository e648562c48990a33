package narrate

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// ESpeak speaks through the espeak-ng command line tool. Each request is
// one process invocation; canceling the context kills the process, which
// is how the queue enforces its per-request timeout.
type ESpeak struct {
	// Binary is the executable to run, "espeak-ng" when empty.
	Binary string
	// DefaultVoice is used when a request carries no voice hint.
	DefaultVoice string
}

var _ Speaker = (*ESpeak)(nil)

// Speak synthesizes req.Text. The text is passed as a single argv
// element, never through a shell.
func (e *ESpeak) Speak(ctx context.Context, req Request) error {
	if req.Text == "" {
		return nil
	}
	bin := e.Binary
	if bin == "" {
		bin = "espeak-ng"
	}
	args := []string{"-s", strconv.Itoa(wordsPerMinute(req.RateHint))}
	voice := req.VoiceHint
	if voice == "" {
		voice = e.DefaultVoice
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, "--", req.Text)

	cmd := exec.CommandContext(ctx, bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("espeak: %w: %s", err, out)
	}
	return nil
}

// wordsPerMinute maps the 0..100 rate hint onto espeak's speed flag,
// with 50 landing on espeak's default of 175 wpm.
func wordsPerMinute(rate int) int {
	if rate < 0 {
		rate = 0
	}
	if rate > 100 {
		rate = 100
	}
	return 80 + rate*19/10
}
