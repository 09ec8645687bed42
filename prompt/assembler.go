package prompt

import (
	"fmt"
	"strings"

	"omniterm/model"
)

// The framing builders are pure functions of their inputs. The engine calls
// them after the user message has been durably appended, so the summary
// they receive is the one current at send time.

// AssistantInputs feeds the singleton assistant framing.
type AssistantInputs struct {
	Assistant        model.AssistantConfig
	World            model.World
	Profile          model.UserProfile
	UseGlobalProfile bool
	Summary          string
	Language         string // resolved code, see ResolveLanguage
}

// AssistantFraming builds the assistant system text in fixed order: persona
// identity and instructions, world context, the effective user profile
// line (global profile XOR world player, never both), the language
// directive, and the rolling summary block when one exists.
func AssistantFraming(in AssistantInputs) string {
	var profile string
	if in.UseGlobalProfile {
		profile = fmt.Sprintf("[User Profile]: Name:%s, Gender:%s, Bio:%s",
			in.Profile.Name, in.Profile.Gender, in.Profile.Bio)
	} else {
		name := in.World.Player.Name
		if name == "" {
			name = "User"
		}
		bio := in.World.Player.Bio
		if bio == "" {
			bio = "Unknown"
		}
		profile = fmt.Sprintf("[User Profile]: Name:%s, Bio:%s", name, bio)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[AI Assistant Persona]:\nName: %s\nInstructions: %s\n\n",
		in.Assistant.Name, in.Assistant.SystemPrompt)
	fmt.Fprintf(&b, "[Current World Context]:\nWorld Name: %s\nLore: %s\n\n",
		in.World.Metadata.Name, in.World.Data.Lore)
	b.WriteString(profile)
	b.WriteString(LanguageDirective(in.Language))
	if in.Summary != "" {
		fmt.Fprintf(&b, "\n\n[Previous Conversation Summary]:\n%s", in.Summary)
	}
	return b.String()
}

// ContactFraming builds the one-to-one roleplay system text for a contact.
func ContactFraming(contact model.Contact, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Roleplay as %s.\nDescription: %s.\nPersonality: %s.\nLevel: %d.\n\n",
		contact.Name, contact.Bio, contact.Personality, contact.Level)
	b.WriteString("Instructions:\n")
	b.WriteString("1. Stay in character at all times.\n")
	b.WriteString("2. Keep responses concise and engaging.\n")
	b.WriteString("3. Do not output internal monologue unless asked.")
	b.WriteString(LanguageDirective(language))
	return b.String()
}

// GroupFraming builds the group chat system text. The model plays the whole
// roster but exactly one member answers each user turn.
func GroupFraming(group model.Group, memberNames []string, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are playing roles of group members in %q.\n", group.Name)
	fmt.Fprintf(&b, "Members: %s. Notice: %s.\n", strings.Join(memberNames, ", "), group.Notice)
	b.WriteString("Rule: When user speaks, ONE appropriate member replies.\n")
	b.WriteString("Style: Casual group chat. Short messages.")
	b.WriteString(LanguageDirective(language))
	return b.String()
}

// HostInputs feeds the live stream host framing.
type HostInputs struct {
	Character model.Contact
	Topic     string
	Viewers   int
	Recent    []string // formatted "user: text" lines, newest last
	Language  string
}

// HostFraming builds the timer-driven live host prompt. It is the entire
// request: host calls carry no message history, only this text.
func HostFraming(in HostInputs) string {
	recent := strings.Join(in.Recent, "\n")
	if recent == "" {
		recent = "(No comments yet)"
	}
	var b strings.Builder
	b.WriteString("You are playing the role of a live streamer.\n")
	fmt.Fprintf(&b, "Character: %s.\nPersonality: %s.\n", in.Character.Name, in.Character.Personality)
	fmt.Fprintf(&b, "Stream Topic: %s.\nCurrent Stats: %d viewers.\n\n", in.Topic, in.Viewers)
	b.WriteString("Task: React to the recent comments or continue discussing the topic.\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. Keep response very short (max 20 words).\n")
	b.WriteString("2. Act naturally as a streamer talking to chat.\n")
	fmt.Fprintf(&b, "3.%s\n\n", LanguageDirective(in.Language))
	fmt.Fprintf(&b, "Recent Comments:\n%s", recent)
	return b.String()
}

// SummarizerSystem frames the archival summarization call.
const SummarizerSystem = "You are a summarizer."

// SummaryRequest renders an archived history slice into the summarization
// user message.
func SummaryRequest(msgs []model.Message) string {
	var b strings.Builder
	b.WriteString("Please summarize the following conversation history into a concise paragraph ")
	b.WriteString("to be used as context memory for future interactions. ")
	b.WriteString("Keep important facts, names, and current status.\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

// AppendSummary merges a freshly generated summary into the existing one.
// Summaries only ever grow; nothing trims them automatically.
func AppendSummary(prev, next string) string {
	if prev == "" {
		return next
	}
	return prev + "\n[Update]: " + next
}
