package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"omniterm/config"
	"omniterm/model"
	"omniterm/prompt"
)

// State is the per-conversation pipeline state. Transitions:
//
//	Idle -> Composing -> Awaiting -> Revealing -> Idle
//	                     Awaiting -> Failed    -> Idle
//
// Failed is transient; the error is recorded in the transcript and the
// conversation returns to Idle immediately.
type State int

const (
	StateIdle State = iota
	StateComposing
	StateAwaiting
	StateRevealing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateAwaiting:
		return "awaiting"
	case StateRevealing:
		return "revealing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrBusy is returned when a conversation already has a generation in
// flight. The rejected send causes no state change and no network call.
var ErrBusy = errors.New("generation already in flight for this conversation")

// Speaker is the identity a generated reply is attributed to.
type Speaker struct {
	ID   string
	Name string
}

// SystemSpeaker attributes surfaced errors and notices.
var SystemSpeaker = Speaker{ID: "system", Name: "System"}

// Turn describes one user turn handed to Send. Framing is a closure over
// everything but the rolling summary: the summary is read inside the
// pipeline, after the user message is durably appended, and passed in.
type Turn struct {
	ConversationID   string
	Text             string
	Image            string
	WindowSize       int
	Framing          func(summary string) string
	ReplyAs          Speaker
	Compact          bool   // run the history compactor on this surface
	Filler           string // substituted for an empty provider reply
	MissingKeyNotice string
}

// Options configures an Engine.
type Options struct {
	// RevealInterval is the pacing of the typewriter reveal. Defaults to
	// 15ms per rune.
	RevealInterval time.Duration

	// OnMessage is called after any message is durably appended: the user
	// message, the reply, or a surfaced error. May be nil.
	OnMessage func(conversationID string, msg model.Message)

	// OnReveal is called with growing prefixes of the reply during the
	// reveal phase. May be nil; the reveal is then skipped entirely.
	OnReveal func(conversationID string, partial string, done bool)
}

// Engine drives the generation pipeline, at most one in flight per
// conversation. It holds no conversation data itself; everything durable
// lives in the Store.
type Engine struct {
	store Store

	mu         sync.Mutex
	provider   model.Provider
	hasKey     bool
	states     map[string]State
	cancels    map[string]context.CancelFunc
	compacting map[string]bool
	compactWG  sync.WaitGroup

	revealInterval time.Duration
	onMessage      func(conversationID string, msg model.Message)
	onReveal       func(conversationID string, partial string, done bool)
}

func New(store Store, opts Options) *Engine {
	interval := opts.RevealInterval
	if interval <= 0 {
		interval = 15 * time.Millisecond
	}
	return &Engine{
		store:          store,
		states:         make(map[string]State),
		cancels:        make(map[string]context.CancelFunc),
		compacting:     make(map[string]bool),
		revealInterval: interval,
		onMessage:      opts.OnMessage,
		onReveal:       opts.OnReveal,
	}
}

// SetProvider installs the active adapter. With credentialed false the
// engine short-circuits every send locally and never touches the network.
func (e *Engine) SetProvider(p model.Provider, credentialed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.provider = p
	e.hasKey = credentialed
}

// State reports the pipeline state of a conversation.
func (e *Engine) State(conversationID string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[conversationID]
}

// Send runs one user turn. The user message is appended synchronously and
// durably before any assembly or network activity, so it survives whatever
// happens afterwards. The rest of the pipeline runs on its own goroutine.
func (e *Engine) Send(turn Turn) error {
	if turn.Text == "" && turn.Image == "" {
		return errors.New("empty turn")
	}
	if turn.WindowSize <= 0 {
		turn.WindowSize = prompt.ChatWindow
	}

	e.mu.Lock()
	switch e.states[turn.ConversationID] {
	case StateComposing, StateAwaiting, StateRevealing:
		e.mu.Unlock()
		return ErrBusy
	}
	p, hasKey := e.provider, e.hasKey

	userMsg := model.Message{
		ID:       model.NewMessageID(),
		Role:     model.RoleUser,
		Content:  turn.Text,
		Image:    turn.Image,
		SenderID: "me",
	}
	if err := e.store.AppendMessage(turn.ConversationID, userMsg); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to record user message: %w", err)
	}

	if !hasKey || p == nil {
		// No credential: the user message stays, a local notice replies,
		// and no network request is ever made.
		e.mu.Unlock()
		e.notify(turn.ConversationID, userMsg)
		notice := model.Message{
			ID:         model.NewMessageID(),
			Role:       model.RoleAssistant,
			Content:    turn.MissingKeyNotice,
			SenderID:   SystemSpeaker.ID,
			SenderName: SystemSpeaker.Name,
		}
		if err := e.store.AppendMessage(turn.ConversationID, notice); err != nil {
			return fmt.Errorf("failed to record notice: %w", err)
		}
		e.notify(turn.ConversationID, notice)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.states[turn.ConversationID] = StateComposing
	e.cancels[turn.ConversationID] = cancel
	e.mu.Unlock()

	e.notify(turn.ConversationID, userMsg)
	go e.run(ctx, p, turn)
	return nil
}

// Abandon cancels any in-flight generation for a conversation. An already
// completed pipeline is unaffected.
func (e *Engine) Abandon(conversationID string) {
	e.mu.Lock()
	cancel := e.cancels[conversationID]
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) run(ctx context.Context, p model.Provider, turn Turn) {
	convID := turn.ConversationID

	history, err := e.store.Messages(convID)
	if err != nil {
		e.fail(turn, fmt.Sprintf("Error: %v", err))
		return
	}
	summary, err := e.store.Summary(convID)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[engine] summary read failed for %s: %v", convID, err)
		}
		summary = ""
	}

	if turn.Compact {
		e.maybeCompact(p, convID, history, turn.WindowSize)
	}

	req := model.GenerationRequest{
		System:   turn.Framing(summary),
		Messages: prompt.Window(history, turn.WindowSize),
		Filler:   turn.Filler,
	}

	e.setState(convID, StateAwaiting)
	text, err := p.Generate(ctx, req)
	if ctx.Err() != nil {
		// Abandoned while waiting; drop the result.
		e.finish(convID)
		return
	}
	if err != nil {
		e.fail(turn, "Error: "+model.AsGenerationError(err).Message)
		return
	}

	e.setState(convID, StateRevealing)
	e.reveal(ctx, convID, text)
	if ctx.Err() != nil {
		e.finish(convID)
		return
	}

	reply := model.Message{
		ID:         model.NewMessageID(),
		Role:       model.RoleAssistant,
		Content:    text,
		SenderID:   turn.ReplyAs.ID,
		SenderName: turn.ReplyAs.Name,
	}
	if err := e.store.AppendMessage(convID, reply); err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[engine] failed to record reply for %s: %v", convID, err)
		}
		e.finish(convID)
		return
	}
	e.finish(convID)
	e.notify(convID, reply)
}

// fail records the error as an assistant-role transcript message attributed
// to the system, passes through Failed, and returns the conversation to
// Idle.
func (e *Engine) fail(turn Turn, content string) {
	e.setState(turn.ConversationID, StateFailed)
	msg := model.Message{
		ID:         model.NewMessageID(),
		Role:       model.RoleAssistant,
		Content:    content,
		SenderID:   SystemSpeaker.ID,
		SenderName: SystemSpeaker.Name,
	}
	if err := e.store.AppendMessage(turn.ConversationID, msg); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[engine] failed to record error for %s: %v", turn.ConversationID, err)
	}
	e.finish(turn.ConversationID)
	e.notify(turn.ConversationID, msg)
}

func (e *Engine) setState(conversationID string, s State) {
	e.mu.Lock()
	e.states[conversationID] = s
	e.mu.Unlock()
}

func (e *Engine) finish(conversationID string) {
	e.mu.Lock()
	e.states[conversationID] = StateIdle
	delete(e.cancels, conversationID)
	e.mu.Unlock()
}

func (e *Engine) notify(conversationID string, msg model.Message) {
	if e.onMessage != nil {
		e.onMessage(conversationID, msg)
	}
}
