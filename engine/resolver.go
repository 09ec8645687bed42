package engine

import (
	"omniterm/model"
	"omniterm/prompt"
)

// AssistantConversationID is the singleton assistant thread. Contact and
// group conversations use the contact/group id directly.
const AssistantConversationID = "assistant"

// TurnContext carries the records an assistant turn is resolved against.
type TurnContext struct {
	Assistant        model.AssistantConfig
	World            model.World
	Profile          model.UserProfile
	UseGlobalProfile bool
	Language         string // configured system language code
}

// AssistantTurn resolves a user turn on the singleton assistant surface.
// The assistant surface is the only one carrying a rolling summary, so it
// is the only one that compacts.
func AssistantTurn(tc TurnContext, text, image string) Turn {
	lang := prompt.ResolveLanguage("", tc.Language)
	return Turn{
		ConversationID: AssistantConversationID,
		Text:           text,
		Image:          image,
		WindowSize:     prompt.AssistantWindow,
		Compact:        true,
		Framing: func(summary string) string {
			return prompt.AssistantFraming(prompt.AssistantInputs{
				Assistant:        tc.Assistant,
				World:            tc.World,
				Profile:          tc.Profile,
				UseGlobalProfile: tc.UseGlobalProfile,
				Summary:          summary,
				Language:         lang,
			})
		},
		ReplyAs:          Speaker{ID: "assistant", Name: tc.Assistant.Name},
		Filler:           prompt.NoSignal(lang),
		MissingKeyNotice: prompt.MissingKeyNotice(lang),
	}
}

// ContactTurn resolves a one-to-one roleplay turn. The contact's language
// override wins over the configured system language.
func ContactTurn(contact model.Contact, systemLang, text, image string) Turn {
	lang := prompt.ResolveLanguage(contact.Language, systemLang)
	return Turn{
		ConversationID: contact.ID,
		Text:           text,
		Image:          image,
		WindowSize:     prompt.ChatWindow,
		Framing: func(string) string {
			return prompt.ContactFraming(contact, lang)
		},
		ReplyAs:          Speaker{ID: contact.ID, Name: contact.Name},
		Filler:           prompt.NoSignal(lang),
		MissingKeyNotice: prompt.MissingKeyNotice(lang),
	}
}

// GroupTurn resolves a group chat turn. The model is instructed that
// exactly one appropriate member answers; since the reply text is not
// parsed for the actual speaker, attribution goes to the first roster
// member that still resolves.
func GroupTurn(group model.Group, members []model.Contact, systemLang, text, image string) Turn {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}

	speaker := SystemSpeaker
	if len(members) > 0 {
		speaker = Speaker{ID: members[0].ID, Name: members[0].Name}
	}

	lang := prompt.ResolveLanguage("", systemLang)
	return Turn{
		ConversationID: group.ID,
		Text:           text,
		Image:          image,
		WindowSize:     prompt.ChatWindow,
		Framing: func(string) string {
			return prompt.GroupFraming(group, names, lang)
		},
		ReplyAs:          speaker,
		Filler:           prompt.NoSignal(lang),
		MissingKeyNotice: prompt.MissingKeyNotice(lang),
	}
}

// ApplyWorldCharacter hot-swaps the assistant persona from a world book
// character. The assistant transcript and its summary are cleared so the
// new persona starts fresh. The returned config
// is not yet persisted; the caller stores it.
func (e *Engine) ApplyWorldCharacter(world model.World) (model.AssistantConfig, error) {
	next := model.AssistantConfig{
		Name:         world.Character.Name,
		Avatar:       world.Character.Avatar,
		Greeting:     world.Character.Greeting,
		SystemPrompt: world.Character.Personality,
	}
	if err := e.store.DeleteConversation(AssistantConversationID); err != nil {
		return model.AssistantConfig{}, err
	}
	return next, nil
}
