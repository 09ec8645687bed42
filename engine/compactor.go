package engine

import (
	"context"

	"omniterm/config"
	"omniterm/model"
	"omniterm/prompt"
)

// Compaction thresholds for surfaces that carry a rolling summary.
const (
	compactHighWater = 25 // history length past which compaction triggers
	compactStride    = 5  // and only every stride-th message after that
	compactSlice     = 10 // newest archived messages actually summarized
)

// maybeCompact submits aged-out history for summarization when the
// transcript has grown past the high-water mark. It runs on its own
// goroutine, racing freely with the user-facing generation; a per
// conversation latch stops it from piling up, and failures are logged and
// otherwise ignored. The summarized messages are not deleted, only the
// window keeps them out of future requests.
func (e *Engine) maybeCompact(p model.Provider, conversationID string, history []model.Message, window int) {
	if len(history) <= compactHighWater || len(history)%compactStride != 0 {
		return
	}

	e.mu.Lock()
	if e.compacting[conversationID] {
		e.mu.Unlock()
		return
	}
	e.compacting[conversationID] = true
	e.mu.Unlock()

	archived := history[:len(history)-window]
	if len(archived) > compactSlice {
		archived = archived[len(archived)-compactSlice:]
	}
	slice := make([]model.Message, len(archived))
	copy(slice, archived)

	e.compactWG.Add(1)
	go func() {
		defer e.compactWG.Done()
		defer func() {
			e.mu.Lock()
			delete(e.compacting, conversationID)
			e.mu.Unlock()
		}()

		req := model.GenerationRequest{
			System: prompt.SummarizerSystem,
			Messages: []model.Message{
				{Role: model.RoleUser, Content: prompt.SummaryRequest(slice)},
			},
		}
		text, err := p.Generate(context.Background(), req)
		if err != nil || text == "" {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[compactor] summarization failed for %s: %v", conversationID, err)
			}
			return
		}

		prev, err := e.store.Summary(conversationID)
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[compactor] summary read failed for %s: %v", conversationID, err)
			}
			return
		}
		if err := e.store.SetSummary(conversationID, prompt.AppendSummary(prev, text)); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[compactor] summary write failed for %s: %v", conversationID, err)
			}
		}
	}()
}
