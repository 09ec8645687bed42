package engine

import (
	"context"
	"time"
)

// reveal plays the already-complete reply back as growing rune prefixes at
// a fixed cadence, preserving the feel of streamed delivery without the
// provider actually streaming. The reply is appended to the transcript only
// after the reveal completes; abandonment mid-reveal drops it entirely.
func (e *Engine) reveal(ctx context.Context, conversationID, full string) {
	if e.onReveal == nil {
		return
	}

	runes := []rune(full)
	if len(runes) == 0 {
		e.onReveal(conversationID, "", true)
		return
	}

	ticker := time.NewTicker(e.revealInterval)
	defer ticker.Stop()

	for i := 1; i <= len(runes); i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		e.onReveal(conversationID, string(runes[:i]), i == len(runes))
	}
}
