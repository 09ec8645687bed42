package engine

import "omniterm/model"

// Store is the slice of the repository the engine needs. *storage.Store
// satisfies it; tests use an in-memory fake.
type Store interface {
	AppendMessage(conversationID string, msg model.Message) error
	Messages(conversationID string) ([]model.Message, error)
	Summary(conversationID string) (string, error)
	SetSummary(conversationID, content string) error
	DeleteConversation(conversationID string) error
}
