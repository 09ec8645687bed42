package prompt

import "omniterm/model"

// Context window sizes per conversation surface.
const (
	AssistantWindow = 15
	ChatWindow      = 10
	HostWindow      = 3 // recent comments shown to the live host
)

// Window returns the most recent max messages, oldest first, verbatim. No
// token counting and no partial truncation.
func Window(msgs []model.Message, max int) []model.Message {
	if max <= 0 || len(msgs) <= max {
		return msgs
	}
	return msgs[len(msgs)-max:]
}
