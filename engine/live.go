package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"omniterm/config"
	"omniterm/model"
	"omniterm/prompt"
)

// Comment types in a live room.
const (
	CommentNormal = "normal"
	CommentFan    = "fan"
	CommentHater  = "hater"
	CommentGift   = "gift"
	CommentHost   = "host"
)

// Comment is one entry in the live room's comment feed.
type Comment struct {
	ID   int64
	User string
	Text string
	Type string
}

// StreamStats is the live room's rolling counters. Duration is in seconds.
type StreamStats struct {
	Viewers  int
	Likes    int
	Coins    int
	Duration int
}

const (
	maxComments   = 50 // comment feed ring
	maxContentLog = 5  // host output ring fed back via recent comments

	defaultHostInterval     = 10 * time.Second
	defaultAudienceInterval = 1500 * time.Millisecond
	defaultStatsInterval    = time.Second
)

// audiencePools holds canned audience chatter per language and comment
// type.
var audiencePools = map[string]map[string][]string{
	prompt.LangChinese: {
		CommentNormal: {"???", "这是哪？", "好酷的背景", "真的假的？", "主播好", "有人吗", "第一！"},
		CommentFan:    {"太强了！！！", "爱你 ❤️", "送你一个火箭", "关注了", "主播好帅/美", "绝绝子 ✨", "审美在线"},
		CommentHater:  {"无语", "划走", "好无聊...", "谁在乎？", "取关了", "呵呵", "假的吧", "机器人？"},
		CommentGift:   {"送出了 火箭 🚀", "送出了 玫瑰 🌹", "送出了 钻石 💎", "送出了 跑车 🏎️"},
	},
	prompt.LangEnglish: {
		CommentNormal: {"???", "Lol", "What is this place?", "Hi", "Lag?", "Cool background", "Is this real?", "Any mods?", "First!"},
		CommentFan:    {"OMG!!!", "Love you ❤️", "Take my coins!", "Notice me senpai", "Best streamer ever", "SLAY ✨", "So aesthetic"},
		CommentHater:  {"Cringe", "Skip", "Boring...", "Who cares?", "Unsubbed", "L", "Fake", "Bot?"},
		CommentGift:   {"sent a Rocket 🚀", "sent a Rose 🌹", "sent a Gem 💎", "sent a Nuke ☢️"},
	},
	prompt.LangJapanese: {
		CommentNormal: {"???", "ここどこ？", "背景かっこいい", "マジ？", "こんにちは", "ラグい？", "初見です"},
		CommentFan:    {"すごい！！！", "大好き ❤️", "投げ銭するわ", "先輩気づいて", "最高かよ", "尊い ✨", "センスいい"},
		CommentHater:  {"微妙", "スキップ", "つまんない...", "誰得？", "解除した", "草", "フェイク乙", "BOT?"},
		CommentGift:   {"が ロケット 🚀 を送りました", "が バラ 🌹 を送りました", "が ダイヤ 💎 を送りました", "が 核爆弾 ☢️ を送りました"},
	},
}

// LiveOptions configures a LiveRoom.
type LiveOptions struct {
	AllowHaters bool
	OnComment   func(Comment)
	Seed        int64 // 0 seeds from the clock

	// Interval overrides for tests. Zero values use the defaults.
	HostInterval     time.Duration
	AudienceInterval time.Duration
	StatsInterval    time.Duration
}

// LiveRoom hosts an AI-run live stream. Unlike chat surfaces the NPC host
// persona is bound once at stream setup and speaks on a periodic timer, not
// per user turn. Comments are an in-memory ring, not a persisted
// conversation.
type LiveRoom struct {
	character model.Contact
	topic     string
	language  string
	provider  model.Provider

	allowHaters      bool
	onComment        func(Comment)
	hostInterval     time.Duration
	audienceInterval time.Duration
	statsInterval    time.Duration

	mu         sync.Mutex
	comments   []Comment
	contentLog []string
	stats      StreamStats
	rng        *rand.Rand

	generating atomic.Bool
	stop       chan struct{}
	stopOnce   sync.Once
	done       sync.WaitGroup
}

// NewLiveRoom binds a host character and topic into a room. language is the
// resolved output language code.
func NewLiveRoom(character model.Contact, topic, language string, p model.Provider, opts LiveOptions) *LiveRoom {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	hostInterval := opts.HostInterval
	if hostInterval <= 0 {
		hostInterval = defaultHostInterval
	}
	audienceInterval := opts.AudienceInterval
	if audienceInterval <= 0 {
		audienceInterval = defaultAudienceInterval
	}
	statsInterval := opts.StatsInterval
	if statsInterval <= 0 {
		statsInterval = defaultStatsInterval
	}

	if _, ok := audiencePools[language]; !ok {
		language = prompt.LangEnglish
	}

	return &LiveRoom{
		character:        character,
		topic:            topic,
		language:         language,
		provider:         p,
		allowHaters:      opts.AllowHaters,
		onComment:        opts.OnComment,
		hostInterval:     hostInterval,
		audienceInterval: audienceInterval,
		statsInterval:    statsInterval,
		rng:              rand.New(rand.NewSource(seed)),
		stop:             make(chan struct{}),
	}
}

// Start opens the stream and launches the timer loops.
func (r *LiveRoom) Start() {
	r.mu.Lock()
	r.stats = StreamStats{Viewers: 100}
	r.mu.Unlock()

	r.done.Add(1)
	go r.loop()
}

// End closes the stream and returns the final stats. Safe to call more than
// once.
func (r *LiveRoom) End() StreamStats {
	r.stopOnce.Do(func() { close(r.stop) })
	r.done.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *LiveRoom) loop() {
	defer r.done.Done()

	hostTicker := time.NewTicker(r.hostInterval)
	audienceTicker := time.NewTicker(r.audienceInterval)
	statsTicker := time.NewTicker(r.statsInterval)
	defer hostTicker.Stop()
	defer audienceTicker.Stop()
	defer statsTicker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-statsTicker.C:
			r.statsTick()
		case <-audienceTicker.C:
			r.audienceTick()
		case <-hostTicker.C:
			r.done.Add(1)
			go func() {
				defer r.done.Done()
				r.hostTick()
			}()
		}
	}
}

// Comments returns a snapshot of the comment feed, oldest first.
func (r *LiveRoom) Comments() []Comment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Comment, len(r.comments))
	copy(out, r.comments)
	return out
}

// Stats returns a snapshot of the rolling counters.
func (r *LiveRoom) Stats() StreamStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// ContentLog returns the host's recent utterances, oldest first.
func (r *LiveRoom) ContentLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.contentLog))
	copy(out, r.contentLog)
	return out
}

// SendViewerChat posts the user's own comment into the feed.
func (r *LiveRoom) SendViewerChat(text string) {
	r.addComment("Me", text, CommentNormal)
}

// Like bumps the like counter.
func (r *LiveRoom) Like() {
	r.mu.Lock()
	r.stats.Likes++
	r.mu.Unlock()
}

func (r *LiveRoom) addComment(user, text, typ string) {
	c := Comment{ID: model.NewMessageID(), User: user, Text: text, Type: typ}

	r.mu.Lock()
	r.comments = append(r.comments, c)
	if len(r.comments) > maxComments {
		r.comments = r.comments[len(r.comments)-maxComments:]
	}
	cb := r.onComment
	r.mu.Unlock()

	if cb != nil {
		cb(c)
	}
}

// statsTick advances the duration and drifts the viewer count.
func (r *LiveRoom) statsTick() {
	r.mu.Lock()
	r.stats.Duration++
	r.stats.Viewers += r.rng.Intn(10) - 3
	if r.stats.Viewers < 0 {
		r.stats.Viewers = 0
	}
	r.mu.Unlock()
}

// audienceTick synthesizes background chatter from the language pools.
func (r *LiveRoom) audienceTick() {
	r.mu.Lock()
	if r.rng.Float64() > 0.4 {
		r.mu.Unlock()
		return
	}

	typ := CommentNormal
	if r.allowHaters && r.rng.Float64() < 0.15 {
		typ = CommentHater
	} else if r.rng.Float64() < 0.2 {
		typ = CommentFan
	}
	if typ == CommentFan && r.rng.Float64() < 0.3 {
		typ = CommentGift
	}

	pool := audiencePools[r.language][typ]
	text := pool[r.rng.Intn(len(pool))]
	user := fmt.Sprintf("User_%d", r.rng.Intn(10000))

	switch typ {
	case CommentGift:
		r.stats.Coins += 10
	case CommentFan:
		r.stats.Likes++
	}
	r.mu.Unlock()

	r.addComment(user, text, typ)
}

// hostTick runs one AI host turn: a system-prompt only generation over the
// last few comments. The latch drops the tick entirely when the previous
// call is still in flight, so a slow provider never queues host lines.
func (r *LiveRoom) hostTick() {
	if !r.generating.CompareAndSwap(false, true) {
		return
	}
	defer r.generating.Store(false)

	r.mu.Lock()
	recent := make([]string, 0, prompt.HostWindow)
	start := len(r.comments) - prompt.HostWindow
	if start < 0 {
		start = 0
	}
	for _, c := range r.comments[start:] {
		recent = append(recent, fmt.Sprintf("%s: %s", c.User, c.Text))
	}
	viewers := r.stats.Viewers
	r.mu.Unlock()

	framing := prompt.HostFraming(prompt.HostInputs{
		Character: r.character,
		Topic:     r.topic,
		Viewers:   viewers,
		Recent:    recent,
		Language:  r.language,
	})

	text, err := r.provider.Generate(context.Background(), model.GenerationRequest{System: framing})
	if err != nil || text == "" {
		// Host errors never surface in the feed; the stream just stays
		// quiet until the next tick.
		if config.DebugLog != nil {
			config.DebugLog.Printf("[live] host generation failed: %v", err)
		}
		return
	}

	select {
	case <-r.stop:
		// the stream ended while the line was generating; drop it so the
		// stats returned by End stay final
		return
	default:
	}

	r.mu.Lock()
	r.contentLog = append(r.contentLog, text)
	if len(r.contentLog) > maxContentLog {
		r.contentLog = r.contentLog[len(r.contentLog)-maxContentLog:]
	}
	r.mu.Unlock()

	r.addComment(r.character.Name, text, CommentHost)
}
