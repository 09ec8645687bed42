package model

// AssistantConfig is the identity of the singleton assistant. It can be
// edited directly or hot-swapped wholesale from a world book character.
type AssistantConfig struct {
	Name         string `json:"name"`
	Avatar       string `json:"avatar"`
	Greeting     string `json:"greeting"`
	SystemPrompt string `json:"system_prompt"`
}

// UserProfile is the global player identity shown to the model when the
// global profile is in effect.
type UserProfile struct {
	Name   string `json:"name"`
	UID    string `json:"uid"`
	Avatar string `json:"avatar"`
	Gender string `json:"gender"`
	Bio    string `json:"bio"`
}

// Contact is a roleplay character: a one-to-one chat partner, a candidate
// group member, or a live stream host.
//
// Language is a per-contact output language override; "auto" or empty
// defers to the configured system language.
type Contact struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Bio         string `json:"bio"`
	Personality string `json:"personality"`
	Level       int    `json:"level"`
	Language    string `json:"language,omitempty"`
}

// Group is a multi-member roleplay chat room. Members holds contact ids in
// roster order; that order is significant because generated replies are
// attributed to the first roster member.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Avatar  string   `json:"avatar"`
	Notice  string   `json:"notice"`
	OwnerID string   `json:"owner_id,omitempty"`
	Members []string `json:"members"`
}
