package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"omniterm/model"
)

// memStore is an in-memory Store for pipeline tests.
type memStore struct {
	mu        sync.Mutex
	messages  map[string][]model.Message
	summaries map[string]string
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{
		messages:  make(map[string][]model.Message),
		summaries: make(map[string]string),
	}
}

func (s *memStore) AppendMessage(conversationID string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	return nil
}

func (s *memStore) Messages(conversationID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages[conversationID]))
	copy(out, s.messages[conversationID])
	return out, nil
}

func (s *memStore) Summary(conversationID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries[conversationID], nil
}

func (s *memStore) SetSummary(conversationID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if content == "" {
		delete(s.summaries, conversationID)
		return nil
	}
	s.summaries[conversationID] = content
	return nil
}

func (s *memStore) DeleteConversation(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, conversationID)
	delete(s.summaries, conversationID)
	return nil
}

func (s *memStore) count(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[conversationID])
}

// fakeProvider runs a scripted generate function.
type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	requests []model.GenerationRequest
	generate func(ctx context.Context, req model.GenerationRequest) (string, error)
}

func (p *fakeProvider) Generate(ctx context.Context, req model.GenerationRequest) (string, error) {
	p.mu.Lock()
	p.calls++
	p.requests = append(p.requests, req)
	fn := p.generate
	p.mu.Unlock()
	if fn == nil {
		return "ok", nil
	}
	return fn(ctx, req)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func basicTurn(conv, text string) Turn {
	return Turn{
		ConversationID:   conv,
		Text:             text,
		WindowSize:       10,
		Framing:          func(summary string) string { return "framing" },
		ReplyAs:          Speaker{ID: "c1", Name: "Mika"},
		Filler:           "(signal lost...)",
		MissingKeyNotice: "configure a key",
	}
}

func TestSendAppendsUserMessageBeforeNetwork(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{
		generate: func(ctx context.Context, req model.GenerationRequest) (string, error) {
			return "", &model.GenerationError{Kind: model.ErrProviderError, Message: "API Error 500"}
		},
	}
	e := New(store, Options{RevealInterval: time.Microsecond})
	e.SetProvider(provider, true)

	if err := e.Send(basicTurn("conv", "hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// the user message is durable immediately, before the provider answers
	msgs, _ := store.Messages("conv")
	if len(msgs) < 1 || msgs[0].Role != model.RoleUser || msgs[0].Content != "hello" {
		t.Fatalf("user message not appended synchronously: %+v", msgs)
	}

	waitFor(t, func() bool { return store.count("conv") == 2 })
	msgs, _ = store.Messages("conv")
	errMsg := msgs[1]
	if errMsg.Role != model.RoleAssistant || errMsg.SenderID != "system" {
		t.Errorf("error message = %+v, want assistant role from system", errMsg)
	}
	if errMsg.Content != "Error: API Error 500" {
		t.Errorf("error content = %q", errMsg.Content)
	}

	waitFor(t, func() bool { return e.State("conv") == StateIdle })
}

func TestSendSuccessAppendsReply(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{
		generate: func(ctx context.Context, req model.GenerationRequest) (string, error) {
			return "hi there", nil
		},
	}
	e := New(store, Options{RevealInterval: time.Microsecond})
	e.SetProvider(provider, true)

	if err := e.Send(basicTurn("conv", "hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	waitFor(t, func() bool { return store.count("conv") == 2 })
	msgs, _ := store.Messages("conv")
	reply := msgs[1]
	if reply.Content != "hi there" || reply.SenderID != "c1" || reply.SenderName != "Mika" {
		t.Errorf("reply = %+v", reply)
	}
	if reply.ID < msgs[0].ID {
		t.Errorf("reply id %d precedes user id %d", reply.ID, msgs[0].ID)
	}
}

func TestSingleFlightPerConversation(t *testing.T) {
	store := newMemStore()
	release := make(chan struct{})
	provider := &fakeProvider{
		generate: func(ctx context.Context, req model.GenerationRequest) (string, error) {
			<-release
			return "done", nil
		},
	}
	e := New(store, Options{RevealInterval: time.Microsecond})
	e.SetProvider(provider, true)

	if err := e.Send(basicTurn("conv", "first")); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	waitFor(t, func() bool { return e.State("conv") != StateIdle })

	// second send on the same conversation is rejected outright
	err := e.Send(basicTurn("conv", "second"))
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("second Send = %v, want ErrBusy", err)
	}
	if store.count("conv") != 1 {
		t.Errorf("rejected send appended a message: %d", store.count("conv"))
	}

	// an unrelated conversation is not blocked
	if err := e.Send(basicTurn("other", "hello")); err != nil {
		t.Errorf("unrelated Send: %v", err)
	}

	close(release)
	waitFor(t, func() bool { return store.count("conv") == 2 })
	if got := provider.callCount(); got != 2 {
		t.Errorf("provider calls = %d, want 2 (one per conversation)", got)
	}
}

func TestNoCredentialShortCircuits(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{}
	e := New(store, Options{})
	e.SetProvider(provider, false)

	if err := e.Send(basicTurn("conv", "hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if provider.callCount() != 0 {
		t.Error("network call made without credential")
	}
	msgs, _ := store.Messages("conv")
	if len(msgs) != 2 {
		t.Fatalf("message count = %d, want user message plus notice", len(msgs))
	}
	if msgs[0].Content != "hello" {
		t.Errorf("user message = %+v", msgs[0])
	}
	if msgs[1].Content != "configure a key" || msgs[1].SenderID != "system" {
		t.Errorf("notice = %+v", msgs[1])
	}
	if e.State("conv") != StateIdle {
		t.Errorf("state = %s, want idle", e.State("conv"))
	}
}

func TestEmptyTurnRejected(t *testing.T) {
	e := New(newMemStore(), Options{})
	e.SetProvider(&fakeProvider{}, true)
	if err := e.Send(basicTurn("conv", "")); err == nil {
		t.Error("expected error for empty turn")
	}
}

func TestImageOnlyTurnAccepted(t *testing.T) {
	store := newMemStore()
	e := New(store, Options{RevealInterval: time.Microsecond})
	e.SetProvider(&fakeProvider{}, true)

	turn := basicTurn("conv", "")
	turn.Image = "data:image/png;base64,AAAA"
	if err := e.Send(turn); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitFor(t, func() bool { return store.count("conv") == 2 })
	msgs, _ := store.Messages("conv")
	if msgs[0].Image != turn.Image {
		t.Errorf("image not preserved: %+v", msgs[0])
	}
}

func TestRevealEmitsGrowingPrefixes(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{
		generate: func(ctx context.Context, req model.GenerationRequest) (string, error) {
			return "héllo", nil
		},
	}

	var mu sync.Mutex
	var partials []string
	var doneAt string
	e := New(store, Options{
		RevealInterval: time.Microsecond,
		OnReveal: func(conversationID, partial string, done bool) {
			mu.Lock()
			partials = append(partials, partial)
			if done {
				doneAt = partial
			}
			mu.Unlock()
		},
	})
	e.SetProvider(provider, true)

	if err := e.Send(basicTurn("conv", "hi")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitFor(t, func() bool { return store.count("conv") == 2 })

	mu.Lock()
	defer mu.Unlock()
	if len(partials) != 5 {
		t.Fatalf("reveal steps = %d, want one per rune (5)", len(partials))
	}
	for i, p := range partials {
		if p != string([]rune("héllo")[:i+1]) {
			t.Errorf("partial[%d] = %q", i, p)
		}
	}
	if doneAt != "héllo" {
		t.Errorf("done partial = %q, want full text", doneAt)
	}
}

func TestAbandonDropsResult(t *testing.T) {
	store := newMemStore()
	started := make(chan struct{})
	provider := &fakeProvider{
		generate: func(ctx context.Context, req model.GenerationRequest) (string, error) {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	e := New(store, Options{RevealInterval: time.Microsecond})
	e.SetProvider(provider, true)

	if err := e.Send(basicTurn("conv", "hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	<-started
	e.Abandon("conv")

	waitFor(t, func() bool { return e.State("conv") == StateIdle })
	if store.count("conv") != 1 {
		t.Errorf("message count = %d, want only the user message", store.count("conv"))
	}

	// the conversation is usable again afterwards
	provider.mu.Lock()
	provider.generate = nil
	provider.mu.Unlock()
	if err := e.Send(basicTurn("conv", "again")); err != nil {
		t.Errorf("Send after Abandon: %v", err)
	}
	waitFor(t, func() bool { return store.count("conv") == 3 })
}

func TestFramingReceivesCurrentSummary(t *testing.T) {
	store := newMemStore()
	store.SetSummary("conv", "old summary")
	provider := &fakeProvider{}
	e := New(store, Options{RevealInterval: time.Microsecond})
	e.SetProvider(provider, true)

	var got string
	turn := basicTurn("conv", "hello")
	turn.Framing = func(summary string) string {
		got = summary
		return "framing"
	}
	if err := e.Send(turn); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitFor(t, func() bool { return store.count("conv") == 2 })
	if got != "old summary" {
		t.Errorf("framing summary = %q", got)
	}
}

func TestWindowAppliedToRequest(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 20; i++ {
		store.AppendMessage("conv", model.Message{ID: int64(i), Role: model.RoleUser, Content: "old"})
	}
	provider := &fakeProvider{}
	e := New(store, Options{RevealInterval: time.Microsecond})
	e.SetProvider(provider, true)

	if err := e.Send(basicTurn("conv", "newest")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitFor(t, func() bool { return store.count("conv") == 22 })

	provider.mu.Lock()
	defer provider.mu.Unlock()
	req := provider.requests[0]
	if len(req.Messages) != 10 {
		t.Fatalf("window = %d, want 10", len(req.Messages))
	}
	if req.Messages[len(req.Messages)-1].Content != "newest" {
		t.Errorf("newest user message not last in window")
	}
	if req.System != "framing" {
		t.Errorf("system = %q", req.System)
	}
}

func TestCompaction(t *testing.T) {
	t.Run("triggers past high water on stride", func(t *testing.T) {
		store := newMemStore()
		// 29 prior messages; the send makes it 30: >25 and divisible by 5
		for i := 0; i < 29; i++ {
			store.AppendMessage("conv", model.Message{ID: int64(i), Role: model.RoleUser, Content: "old"})
		}
		store.SetSummary("conv", "earlier events")

		var summarizeReq model.GenerationRequest
		provider := &fakeProvider{
			generate: func(ctx context.Context, req model.GenerationRequest) (string, error) {
				if strings.Contains(req.System, "summarizer") {
					summarizeReq = req
					return "fresh summary", nil
				}
				return "reply", nil
			},
		}
		e := New(store, Options{RevealInterval: time.Microsecond})
		e.SetProvider(provider, true)

		turn := basicTurn("conv", "msg 30")
		turn.WindowSize = 15
		turn.Compact = true
		if err := e.Send(turn); err != nil {
			t.Fatalf("Send: %v", err)
		}
		waitFor(t, func() bool { return store.count("conv") == 31 })
		e.compactWG.Wait()

		sum, _ := store.Summary("conv")
		if sum != "earlier events\n[Update]: fresh summary" {
			t.Errorf("summary = %q", sum)
		}

		// archived slice is the newest 10 of the 15 aged-out messages
		if summarizeReq.System == "" {
			t.Fatal("summarizer never called")
		}
		body := summarizeReq.Messages[0].Content
		if !strings.Contains(body, "user: old") {
			t.Errorf("summarize body missing transcript: %q", body)
		}
	})

	t.Run("skips off stride", func(t *testing.T) {
		store := newMemStore()
		// 30 prior messages; the send makes it 31: off the stride
		for i := 0; i < 30; i++ {
			store.AppendMessage("conv", model.Message{ID: int64(i), Role: model.RoleUser, Content: "old"})
		}
		provider := &fakeProvider{}
		e := New(store, Options{RevealInterval: time.Microsecond})
		e.SetProvider(provider, true)

		turn := basicTurn("conv", "msg 31")
		turn.WindowSize = 15
		turn.Compact = true
		if err := e.Send(turn); err != nil {
			t.Fatalf("Send: %v", err)
		}
		waitFor(t, func() bool { return store.count("conv") == 32 })
		e.compactWG.Wait()

		if provider.callCount() != 1 {
			t.Errorf("provider calls = %d, want 1 (no summarization)", provider.callCount())
		}
	})

	t.Run("failure leaves summary untouched", func(t *testing.T) {
		store := newMemStore()
		for i := 0; i < 29; i++ {
			store.AppendMessage("conv", model.Message{ID: int64(i), Role: model.RoleUser, Content: "old"})
		}
		store.SetSummary("conv", "earlier events")

		provider := &fakeProvider{
			generate: func(ctx context.Context, req model.GenerationRequest) (string, error) {
				if strings.Contains(req.System, "summarizer") {
					return "", &model.GenerationError{Kind: model.ErrNetwork, Message: "down"}
				}
				return "reply", nil
			},
		}
		e := New(store, Options{RevealInterval: time.Microsecond})
		e.SetProvider(provider, true)

		turn := basicTurn("conv", "msg 30")
		turn.WindowSize = 15
		turn.Compact = true
		if err := e.Send(turn); err != nil {
			t.Fatalf("Send: %v", err)
		}
		waitFor(t, func() bool { return store.count("conv") == 31 })
		e.compactWG.Wait()

		sum, _ := store.Summary("conv")
		if sum != "earlier events" {
			t.Errorf("summary = %q, want untouched", sum)
		}
	})
}
