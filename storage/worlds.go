package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"omniterm/model"
)

// World books are stored as JSON blobs keyed by id, the same shape they
// travel in for import/export.

// SaveWorld inserts or updates a world book.
func (s *Store) SaveWorld(w model.World) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to encode world: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO worlds (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		w.ID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save world: %w", err)
	}
	return nil
}

// World returns a world book by id.
func (s *Store) World(id string) (model.World, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM worlds WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return model.World{}, fmt.Errorf("world not found: %s", id)
	}
	if err != nil {
		return model.World{}, fmt.Errorf("failed to query world: %w", err)
	}

	var w model.World
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return model.World{}, fmt.Errorf("failed to decode world: %w", err)
	}
	return w, nil
}

// Worlds returns all stored world books.
func (s *Store) Worlds() ([]model.World, error) {
	rows, err := s.db.Query(`SELECT data FROM worlds ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query worlds: %w", err)
	}
	defer rows.Close()

	var worlds []model.World
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan world: %w", err)
		}
		var w model.World
		if err := json.Unmarshal([]byte(data), &w); err != nil {
			return nil, fmt.Errorf("failed to decode world: %w", err)
		}
		worlds = append(worlds, w)
	}
	return worlds, rows.Err()
}

// DeleteWorld removes a world book.
func (s *Store) DeleteWorld(id string) error {
	_, err := s.db.Exec(`DELETE FROM worlds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete world: %w", err)
	}
	return nil
}

// ===== Settings blobs =====

const (
	kvAssistant    = "assistant"
	kvUserProfile  = "user_profile"
	kvCurrentWorld = "current_world"
)

func (s *Store) getKV(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query kv %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) setKV(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set kv %q: %w", key, err)
	}
	return nil
}

func (s *Store) getJSON(key string, out any) (bool, error) {
	raw, err := s.getKV(key)
	if err != nil || raw == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("failed to decode kv %q: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(key string, in any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode kv %q: %w", key, err)
	}
	return s.setKV(key, string(raw))
}

// AssistantConfig returns the stored assistant identity, or the default one
// when none has been saved yet.
func (s *Store) AssistantConfig() (model.AssistantConfig, error) {
	cfg := model.AssistantConfig{
		Name:         "Nova",
		Greeting:     "Hello! How can I help you today?",
		SystemPrompt: "You are a helpful AI assistant living inside the user's device.",
	}
	if _, err := s.getJSON(kvAssistant, &cfg); err != nil {
		return model.AssistantConfig{}, err
	}
	return cfg, nil
}

func (s *Store) SetAssistantConfig(cfg model.AssistantConfig) error {
	return s.setJSON(kvAssistant, cfg)
}

// UserProfile returns the stored global profile, or a zero profile.
func (s *Store) UserProfile() (model.UserProfile, error) {
	var p model.UserProfile
	if _, err := s.getJSON(kvUserProfile, &p); err != nil {
		return model.UserProfile{}, err
	}
	return p, nil
}

func (s *Store) SetUserProfile(p model.UserProfile) error {
	return s.setJSON(kvUserProfile, p)
}

// CurrentWorldID returns the id of the applied world, or "".
func (s *Store) CurrentWorldID() (string, error) {
	return s.getKV(kvCurrentWorld)
}

func (s *Store) SetCurrentWorldID(id string) error {
	return s.setKV(kvCurrentWorld, id)
}
