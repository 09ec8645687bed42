package storage

import (
	"database/sql"
	"fmt"

	"omniterm/model"
)

// AppendMessage appends a message to a conversation transcript. Ordering is
// by insertion; message ids are non-decreasing but may collide within a
// millisecond.
func (s *Store) AppendMessage(conversationID string, msg model.Message) error {
	_, err := s.db.Exec(`
		INSERT INTO messages (conversation_id, id, role, content, image, sender_id, sender_name)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conversationID, msg.ID, msg.Role, msg.Content, msg.Image, msg.SenderID, msg.SenderName)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// Messages returns the full transcript of a conversation in insertion
// order.
func (s *Store) Messages(conversationID string) ([]model.Message, error) {
	rows, err := s.db.Query(`
		SELECT id, role, content, image, sender_id, sender_name
		FROM messages WHERE conversation_id = ? ORDER BY seq`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Image, &m.SenderID, &m.SenderName); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MessageCount returns the transcript length of a conversation.
func (s *Store) MessageCount(conversationID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`,
		conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// DeleteConversation removes a conversation's transcript and its summary.
func (s *Store) DeleteConversation(conversationID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM summaries WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}

	return tx.Commit()
}

// Summary returns the rolling summary for a conversation, or "" when none
// has been generated yet.
func (s *Store) Summary(conversationID string) (string, error) {
	var content string
	err := s.db.QueryRow(`SELECT content FROM summaries WHERE conversation_id = ?`,
		conversationID).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query summary: %w", err)
	}
	return content, nil
}

// SetSummary replaces the rolling summary for a conversation. An empty
// content clears it.
func (s *Store) SetSummary(conversationID, content string) error {
	if content == "" {
		_, err := s.db.Exec(`DELETE FROM summaries WHERE conversation_id = ?`, conversationID)
		if err != nil {
			return fmt.Errorf("failed to clear summary: %w", err)
		}
		return nil
	}

	_, err := s.db.Exec(`
		INSERT INTO summaries (conversation_id, content) VALUES (?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET content = excluded.content`,
		conversationID, content)
	if err != nil {
		return fmt.Errorf("failed to set summary: %w", err)
	}
	return nil
}
