package model

import (
	"sync/atomic"
	"time"
)

// Message roles as they appear in history and on the wire
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a single entry in a conversation transcript.
// Image, when set, is an inline base64 data URI attached to the message.
type Message struct {
	ID         int64  `json:"id"` // millisecond timestamp
	Role       string `json:"role"`
	Content    string `json:"content"`
	Image      string `json:"image,omitempty"`
	SenderID   string `json:"sender_id,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
}

var lastMessageID atomic.Int64

// NewMessageID returns the current time in milliseconds, clamped so that
// ids never decrease even when two messages land within the same tick.
func NewMessageID() int64 {
	now := time.Now().UnixMilli()
	for {
		prev := lastMessageID.Load()
		if now < prev {
			now = prev
		}
		if lastMessageID.CompareAndSwap(prev, now) {
			return now
		}
	}
}
