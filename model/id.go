package model

import "github.com/google/uuid"

// NewID returns a random identifier for directory records (contacts,
// groups, world books). Message ids are timestamps, see NewMessageID.
func NewID() string {
	return uuid.NewString()
}
