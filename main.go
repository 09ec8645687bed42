package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"omniterm/config"
	"omniterm/engine"
	"omniterm/model"
	"omniterm/prompt"
	"omniterm/provider"
	"omniterm/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "omniterm: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DataDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "omniterm: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	eng := engine.New(store, engine.Options{
		OnReveal: func(conversationID, partial string, done bool) {
			// reprint the growing prefix on one line
			fmt.Printf("\r\033[K%s", partial)
			if done {
				fmt.Println()
			}
		},
		OnMessage: func(conversationID string, msg model.Message) {
			// replies arrive through the reveal; only surfaced errors and
			// notices need printing here
			if msg.Role == model.RoleAssistant && msg.SenderID == engine.SystemSpeaker.ID {
				fmt.Println(msg.Content)
			}
		},
	})

	var prov model.Provider
	if apiKey := cfg.APIKey(); apiKey != "" {
		p, err := provider.New(model.ProviderConfig{
			Kind:     model.ProviderKind(cfg.ProviderKind),
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			APIKey:   apiKey,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "omniterm: %v\n", err)
			os.Exit(1)
		}
		prov = p
		eng.SetProvider(p, true)
	}

	if err := seedDefaultWorld(store); err != nil {
		fmt.Fprintf(os.Stderr, "omniterm: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, store, eng, prov); err != nil {
		fmt.Fprintf(os.Stderr, "omniterm: %v\n", err)
		os.Exit(1)
	}
}

// seedDefaultWorld stores a plain starter world on first run so the
// assistant always has a world context to frame against.
func seedDefaultWorld(store *storage.Store) error {
	worlds, err := store.Worlds()
	if err != nil {
		return err
	}
	if len(worlds) > 0 {
		return nil
	}

	world := model.World{
		ID: model.NewID(),
		Metadata: model.WorldMetadata{
			Name:        "Default",
			Description: "An ordinary present-day world.",
			Version:     "1.0",
		},
		Data: model.WorldData{Lore: "Nothing unusual. The world works the way it appears to."},
	}
	if err := store.SaveWorld(world); err != nil {
		return err
	}
	return store.SetCurrentWorldID(world.ID)
}

// session is the REPL's active surface. contact and group are mutually
// exclusive; both nil means the assistant.
type session struct {
	assistant model.AssistantConfig
	contact   *model.Contact
	group     *model.Group
	members   []model.Contact
}

// run is the interactive assistant loop. Lines starting with / are
// commands; anything else is a turn sent to the current conversation.
func run(cfg *config.Config, store *storage.Store, eng *engine.Engine, prov model.Provider) error {
	assistant, err := store.AssistantConfig()
	if err != nil {
		return err
	}
	s := &session{assistant: assistant}

	fmt.Printf("%s — %s\n", s.assistant.Name, s.assistant.Greeting)
	fmt.Println("Type /help for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/live") {
			if err := startLive(cfg, store, prov, line, scanner); err != nil {
				fmt.Printf("error: %v\n", err)
			}
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := command(cfg, store, eng, s, line)
			if err != nil {
				fmt.Printf("error: %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		var turn engine.Turn
		switch {
		case s.contact != nil:
			turn = engine.ContactTurn(*s.contact, cfg.Language, line, "")
		case s.group != nil:
			turn = engine.GroupTurn(*s.group, s.members, cfg.Language, line, "")
		default:
			tc, err := assistantContext(cfg, store, s.assistant)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			turn = engine.AssistantTurn(tc, line, "")
		}

		if err := eng.Send(turn); err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		waitIdle(eng, turn.ConversationID)
	}
}

// assistantContext gathers the records the assistant surface resolves
// against: persona, applied world, and the effective profile source.
func assistantContext(cfg *config.Config, store *storage.Store, assistant model.AssistantConfig) (engine.TurnContext, error) {
	tc := engine.TurnContext{
		Assistant:        assistant,
		UseGlobalProfile: cfg.UseGlobalProfile,
		Language:         cfg.Language,
	}

	profile, err := store.UserProfile()
	if err != nil {
		return engine.TurnContext{}, err
	}
	tc.Profile = profile

	worldID, err := store.CurrentWorldID()
	if err != nil {
		return engine.TurnContext{}, err
	}
	if worldID != "" {
		world, err := store.World(worldID)
		if err == nil {
			tc.World = world
		}
	}
	return tc, nil
}

func command(cfg *config.Config, store *storage.Store, eng *engine.Engine, s *session, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Println("/newcontact <name> [personality]       create a roleplay contact")
		fmt.Println("/contacts                              list contacts")
		fmt.Println("/chat <contact-id>                     switch to a contact conversation")
		fmt.Println("/newgroup <name> <contact-id> [...]    create a group chat")
		fmt.Println("/groups                                list groups")
		fmt.Println("/group <group-id>                      switch to a group conversation")
		fmt.Println("/assistant                             switch back to the assistant")
		fmt.Println("/live <contact-id> <topic>             start a live stream hosted by a contact")
		fmt.Println("/newworld <name> [character-name]      create a world book")
		fmt.Println("/worlds                                list world books")
		fmt.Println("/apply <world-id>                      apply a world character to the assistant")
		fmt.Println("/quit                                  exit")
		return false, nil

	case "/newcontact":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /newcontact <name> [personality]")
		}
		c := model.Contact{
			ID:   model.NewID(),
			Name: fields[1],
		}
		if len(fields) > 2 {
			c.Personality = strings.Join(fields[2:], " ")
		}
		if err := store.SaveContact(c); err != nil {
			return false, err
		}
		fmt.Printf("created %s (%s)\n", c.Name, c.ID)
		return false, nil

	case "/contacts":
		contacts, err := store.Contacts()
		if err != nil {
			return false, err
		}
		for _, c := range contacts {
			fmt.Printf("%s  %s\n", c.ID, c.Name)
		}
		return false, nil

	case "/chat":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /chat <contact-id>")
		}
		c, err := store.Contact(fields[1])
		if err != nil {
			return false, err
		}
		s.contact, s.group, s.members = &c, nil, nil
		fmt.Printf("chatting with %s\n", c.Name)
		return false, nil

	case "/newgroup":
		if len(fields) < 3 {
			return false, fmt.Errorf("usage: /newgroup <name> <contact-id> [contact-id ...]")
		}
		for _, id := range fields[2:] {
			if _, err := store.Contact(id); err != nil {
				return false, err
			}
		}
		g := model.Group{
			ID:      model.NewID(),
			Name:    fields[1],
			Members: fields[2:],
		}
		if err := store.SaveGroup(g); err != nil {
			return false, err
		}
		fmt.Printf("created %s (%s)\n", g.Name, g.ID)
		return false, nil

	case "/groups":
		groups, err := store.Groups()
		if err != nil {
			return false, err
		}
		for _, g := range groups {
			fmt.Printf("%s  %s (%d members)\n", g.ID, g.Name, len(g.Members))
		}
		return false, nil

	case "/group":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /group <group-id>")
		}
		g, err := store.Group(fields[1])
		if err != nil {
			return false, err
		}
		members, err := store.GroupMembers(g)
		if err != nil {
			return false, err
		}
		s.group, s.members, s.contact = &g, members, nil
		fmt.Printf("joined %s\n", g.Name)
		return false, nil

	case "/assistant":
		s.contact, s.group, s.members = nil, nil, nil
		fmt.Printf("back with %s\n", s.assistant.Name)
		return false, nil

	case "/newworld":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /newworld <name> [character-name]")
		}
		world := model.World{
			ID:       model.NewID(),
			Metadata: model.WorldMetadata{Name: fields[1], Version: "1.0"},
		}
		if len(fields) > 2 {
			world.Character = model.WorldCharacter{Name: fields[2]}
		}
		if err := store.SaveWorld(world); err != nil {
			return false, err
		}
		fmt.Printf("created %s (%s)\n", world.Metadata.Name, world.ID)
		return false, nil

	case "/worlds":
		worlds, err := store.Worlds()
		if err != nil {
			return false, err
		}
		for _, w := range worlds {
			fmt.Printf("%s  %s (%s)\n", w.ID, w.Metadata.Name, w.Metadata.Author)
		}
		return false, nil

	case "/apply":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /apply <world-id>")
		}
		world, err := store.World(fields[1])
		if err != nil {
			return false, err
		}
		next, err := eng.ApplyWorldCharacter(world)
		if err != nil {
			return false, err
		}
		if err := store.SetAssistantConfig(next); err != nil {
			return false, err
		}
		if err := store.SetCurrentWorldID(world.ID); err != nil {
			return false, err
		}
		s.assistant = next
		fmt.Printf("%s — %s\n", next.Name, next.Greeting)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
}

// startLive parses the /live command and hands control to the stream loop
// until the user ends it.
func startLive(cfg *config.Config, store *storage.Store, prov model.Provider, line string, scanner *bufio.Scanner) error {
	if prov == nil {
		return fmt.Errorf("live streaming needs an API key, configure one first")
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return fmt.Errorf("usage: /live <contact-id> <topic>")
	}
	host, err := store.Contact(fields[1])
	if err != nil {
		return err
	}
	topic := strings.Join(fields[2:], " ")
	liveSession(cfg, prov, host, topic, scanner)
	return nil
}

// liveSession runs one stream: the host speaks on its timer, the audience
// chatters, and the user's lines go into the comment feed. /like bumps the
// like counter, /end closes the stream.
func liveSession(cfg *config.Config, prov model.Provider, host model.Contact, topic string, scanner *bufio.Scanner) engine.StreamStats {
	lang := prompt.ResolveLanguage(host.Language, cfg.Language)
	room := engine.NewLiveRoom(host, topic, lang, prov, engine.LiveOptions{
		AllowHaters: true,
		OnComment: func(c engine.Comment) {
			fmt.Printf("\r\033[K[%s] %s: %s\nlive> ", c.Type, c.User, c.Text)
		},
	})
	room.Start()
	fmt.Printf("%s is now streaming %q. /like to like, /end to stop.\n", host.Name, topic)

	for {
		fmt.Print("live> ")
		if !scanner.Scan() {
			break
		}
		switch line := strings.TrimSpace(scanner.Text()); line {
		case "":
		case "/end":
			stats := room.End()
			fmt.Printf("stream over: %ds, %d viewers, %d likes, %d coins\n",
				stats.Duration, stats.Viewers, stats.Likes, stats.Coins)
			return stats
		case "/like":
			room.Like()
		default:
			room.SendViewerChat(line)
		}
	}
	return room.End()
}

// waitIdle blocks the prompt until the pipeline for the conversation has
// finished, so the reveal prints before the next read.
func waitIdle(eng *engine.Engine, conversationID string) {
	for eng.State(conversationID) != engine.StateIdle {
		time.Sleep(10 * time.Millisecond)
	}
}
