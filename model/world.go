package model

// WorldMetadata describes a world book for listing and import/export.
type WorldMetadata struct {
	Name        string   `json:"name"`
	Author      string   `json:"author"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
}

// WorldCharacter is the persona a world book installs into the assistant
// when the world is applied.
type WorldCharacter struct {
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Personality string `json:"personality"`
	Greeting    string `json:"greeting"`
}

// WorldPlayer is the per-world player identity, used instead of the global
// profile when the global profile is disabled.
type WorldPlayer struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Bio    string `json:"bio"`
}

// WorldData holds the lore text injected into assistant framing plus any
// structured entries carried along for future use.
type WorldData struct {
	Lore    string   `json:"lore"`
	Entries []string `json:"entries"`
}

// World is a complete world book.
type World struct {
	ID        string         `json:"id"`
	Metadata  WorldMetadata  `json:"metadata"`
	Character WorldCharacter `json:"character"`
	Player    WorldPlayer    `json:"player"`
	Data      WorldData      `json:"world"`
}
