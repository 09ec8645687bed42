package engine

import (
	"strings"
	"testing"

	"omniterm/model"
	"omniterm/prompt"
)

func TestAssistantTurn(t *testing.T) {
	tc := TurnContext{
		Assistant: model.AssistantConfig{Name: "Nova", SystemPrompt: "Be kind."},
		World: model.World{
			Metadata: model.WorldMetadata{Name: "Default"},
			Data:     model.WorldData{Lore: "Nothing special."},
		},
		UseGlobalProfile: true,
		Profile:          model.UserProfile{Name: "Alex"},
		Language:         "zh",
	}

	turn := AssistantTurn(tc, "hello", "")
	if turn.ConversationID != AssistantConversationID {
		t.Errorf("conversation = %q", turn.ConversationID)
	}
	if turn.WindowSize != prompt.AssistantWindow {
		t.Errorf("window = %d, want %d", turn.WindowSize, prompt.AssistantWindow)
	}
	if !turn.Compact {
		t.Error("assistant surface must compact")
	}
	if turn.ReplyAs.Name != "Nova" {
		t.Errorf("speaker = %+v", turn.ReplyAs)
	}
	if turn.Filler != prompt.NoSignal("zh") {
		t.Errorf("filler = %q, want localized", turn.Filler)
	}

	framing := turn.Framing("past events")
	if !strings.Contains(framing, "Name: Nova") || !strings.Contains(framing, "past events") {
		t.Errorf("framing = %q", framing)
	}
}

func TestContactTurnLanguagePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		override string
		system   string
		wantLang string
	}{
		{"contact override wins", "ja", "zh", "Japanese (日本語)"},
		{"auto falls back to system", "auto", "zh", "Simplified Chinese (简体中文)"},
		{"no language anywhere", "", "", "English"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contact := model.Contact{ID: "c1", Name: "Mika", Language: tt.override}
			turn := ContactTurn(contact, tt.system, "hi", "")
			framing := turn.Framing("")
			if !strings.Contains(framing, "You MUST reply in "+tt.wantLang) {
				t.Errorf("framing language wrong:\n%s", framing)
			}
		})
	}
}

func TestContactTurnShape(t *testing.T) {
	contact := model.Contact{ID: "c1", Name: "Mika"}
	turn := ContactTurn(contact, "en", "hi", "")
	if turn.ConversationID != "c1" {
		t.Errorf("conversation = %q", turn.ConversationID)
	}
	if turn.WindowSize != prompt.ChatWindow {
		t.Errorf("window = %d", turn.WindowSize)
	}
	if turn.Compact {
		t.Error("contact surface must not compact")
	}
	if turn.ReplyAs.ID != "c1" || turn.ReplyAs.Name != "Mika" {
		t.Errorf("speaker = %+v", turn.ReplyAs)
	}
}

func TestGroupTurnAttribution(t *testing.T) {
	group := model.Group{ID: "g1", Name: "Club", Members: []string{"c1", "c2"}}

	t.Run("first roster member speaks", func(t *testing.T) {
		members := []model.Contact{{ID: "c1", Name: "Mika"}, {ID: "c2", Name: "Ren"}}
		turn := GroupTurn(group, members, "en", "hi", "")
		if turn.ReplyAs.ID != "c1" || turn.ReplyAs.Name != "Mika" {
			t.Errorf("speaker = %+v, want first roster member", turn.ReplyAs)
		}
		framing := turn.Framing("")
		if !strings.Contains(framing, "Members: Mika, Ren.") {
			t.Errorf("framing roster wrong:\n%s", framing)
		}
		if !strings.Contains(framing, "ONE appropriate member replies") {
			t.Error("single-reply rule missing")
		}
	})

	t.Run("empty roster falls back to system", func(t *testing.T) {
		turn := GroupTurn(group, nil, "en", "hi", "")
		if turn.ReplyAs != SystemSpeaker {
			t.Errorf("speaker = %+v, want system", turn.ReplyAs)
		}
	})
}

func TestApplyWorldCharacter(t *testing.T) {
	store := newMemStore()
	store.AppendMessage(AssistantConversationID, model.Message{ID: 1, Role: model.RoleUser, Content: "hi"})
	store.SetSummary(AssistantConversationID, "old life")
	e := New(store, Options{})

	world := model.World{
		Character: model.WorldCharacter{
			Name:        "Vex",
			Greeting:    "What now?",
			Personality: "Sharp and impatient.",
		},
	}

	next, err := e.ApplyWorldCharacter(world)
	if err != nil {
		t.Fatalf("ApplyWorldCharacter: %v", err)
	}
	if next.Name != "Vex" || next.SystemPrompt != "Sharp and impatient." || next.Greeting != "What now?" {
		t.Errorf("assistant config = %+v", next)
	}

	if store.count(AssistantConversationID) != 0 {
		t.Error("assistant transcript survived persona swap")
	}
	sum, _ := store.Summary(AssistantConversationID)
	if sum != "" {
		t.Error("assistant summary survived persona swap")
	}
}
