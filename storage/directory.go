package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"omniterm/model"
)

// The directory holds contacts and groups. Deleting either cascades to the
// associated conversation transcript; deleting a contact also removes it
// from every group roster.

// SaveContact inserts or updates a contact.
func (s *Store) SaveContact(c model.Contact) error {
	if c.Language == "" {
		c.Language = "auto"
	}
	_, err := s.db.Exec(`
		INSERT INTO contacts (id, name, avatar, bio, personality, level, language)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, avatar = excluded.avatar, bio = excluded.bio,
			personality = excluded.personality, level = excluded.level,
			language = excluded.language`,
		c.ID, c.Name, c.Avatar, c.Bio, c.Personality, c.Level, c.Language)
	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}
	return nil
}

// Contact returns a contact by id.
func (s *Store) Contact(id string) (model.Contact, error) {
	var c model.Contact
	err := s.db.QueryRow(`
		SELECT id, name, avatar, bio, personality, level, language
		FROM contacts WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Avatar, &c.Bio, &c.Personality, &c.Level, &c.Language)
	if err == sql.ErrNoRows {
		return model.Contact{}, fmt.Errorf("contact not found: %s", id)
	}
	if err != nil {
		return model.Contact{}, fmt.Errorf("failed to query contact: %w", err)
	}
	return c, nil
}

// Contacts returns all contacts ordered by name.
func (s *Store) Contacts() ([]model.Contact, error) {
	rows, err := s.db.Query(`
		SELECT id, name, avatar, bio, personality, level, language
		FROM contacts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Avatar, &c.Bio, &c.Personality, &c.Level, &c.Language); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// DeleteContact removes a contact, its conversation transcript and summary,
// and its membership in every group.
func (s *Store) DeleteContact(id string) error {
	groups, err := s.Groups()
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM contacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete contact messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM summaries WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete contact summary: %w", err)
	}

	for _, g := range groups {
		trimmed := g.Members[:0:0]
		removed := false
		for _, mid := range g.Members {
			if mid == id {
				removed = true
				continue
			}
			trimmed = append(trimmed, mid)
		}
		if !removed {
			continue
		}
		members, err := json.Marshal(trimmed)
		if err != nil {
			return fmt.Errorf("failed to encode group members: %w", err)
		}
		if _, err := tx.Exec(`UPDATE groups SET members = ? WHERE id = ?`, string(members), g.ID); err != nil {
			return fmt.Errorf("failed to update group roster: %w", err)
		}
	}

	return tx.Commit()
}

// SaveGroup inserts or updates a group. Roster order in Members is
// preserved.
func (s *Store) SaveGroup(g model.Group) error {
	members, err := json.Marshal(g.Members)
	if err != nil {
		return fmt.Errorf("failed to encode group members: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO groups (id, name, avatar, notice, owner_id, members)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, avatar = excluded.avatar,
			notice = excluded.notice, owner_id = excluded.owner_id,
			members = excluded.members`,
		g.ID, g.Name, g.Avatar, g.Notice, g.OwnerID, string(members))
	if err != nil {
		return fmt.Errorf("failed to save group: %w", err)
	}
	return nil
}

// Group returns a group by id.
func (s *Store) Group(id string) (model.Group, error) {
	var g model.Group
	var members string
	err := s.db.QueryRow(`
		SELECT id, name, avatar, notice, owner_id, members
		FROM groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.Avatar, &g.Notice, &g.OwnerID, &members)
	if err == sql.ErrNoRows {
		return model.Group{}, fmt.Errorf("group not found: %s", id)
	}
	if err != nil {
		return model.Group{}, fmt.Errorf("failed to query group: %w", err)
	}
	if err := json.Unmarshal([]byte(members), &g.Members); err != nil {
		return model.Group{}, fmt.Errorf("failed to decode group members: %w", err)
	}
	return g, nil
}

// Groups returns all groups ordered by name.
func (s *Store) Groups() ([]model.Group, error) {
	rows, err := s.db.Query(`
		SELECT id, name, avatar, notice, owner_id, members
		FROM groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var g model.Group
		var members string
		if err := rows.Scan(&g.ID, &g.Name, &g.Avatar, &g.Notice, &g.OwnerID, &members); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		if err := json.Unmarshal([]byte(members), &g.Members); err != nil {
			return nil, fmt.Errorf("failed to decode group members: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// DeleteGroup removes a group and its conversation transcript. Member
// contacts are untouched.
func (s *Store) DeleteGroup(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM groups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete group messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM summaries WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete group summary: %w", err)
	}

	return tx.Commit()
}

// GroupMembers resolves a group's roster to contacts, preserving roster
// order and skipping ids that no longer resolve.
func (s *Store) GroupMembers(g model.Group) ([]model.Contact, error) {
	var members []model.Contact
	for _, id := range g.Members {
		c, err := s.Contact(id)
		if err != nil {
			continue
		}
		members = append(members, c)
	}
	return members, nil
}
