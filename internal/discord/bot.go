// Package discord wires the playback core to the Discord gateway: one bot
// session, one playback session per guild.
package discord

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"

	"wavepilot/internal/config"
	"wavepilot/internal/resolver"
	"wavepilot/internal/track"
)

// Bot is the Discord gateway front-end.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	resolver *resolver.YouTube
	prober   *track.HTTPProber

	mu       sync.Mutex
	sessions map[string]*Session
}

// StartBot runs the bot until the context is canceled.
func StartBot(ctx context.Context, cfg *config.Config) error {
	b := &Bot{
		cfg:      cfg,
		resolver: resolver.NewYouTube(cfg.ProxyURL),
		prober:   track.NewHTTPProber(cfg.ProbeTimeout),
		sessions: make(map[string]*Session),
	}
	if err := b.run(ctx); err != nil {
		return fmt.Errorf("bot run error: %w", err)
	}
	return nil
}

func (b *Bot) run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg

	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onInteractionCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	log.Println("[INFO] Shutdown signal received. Cleaning up...")

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sessions {
		s.Shutdown()
	}
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
}

func (b *Bot) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	log.Printf("[INFO] Logged in as %s", s.State.User.String())

	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", commandDefs); err != nil {
		log.Printf("[ERR] Failed to register slash commands: %v", err)
		return
	}
	log.Printf("[INFO] Registered %d slash commands", len(commandDefs))
}

// getOrCreateSession returns the playback session for a guild, creating it
// on first use.
func (b *Bot) getOrCreateSession(guildID string) *Session {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessions[guildID]; ok {
		return s
	}
	s := newSession(b.dg, guildID, b.cfg, b.resolver, b.prober)
	b.sessions[guildID] = s
	return s
}

// findUserVoiceState finds the voice channel a user currently sits in.
func (b *Bot) findUserVoiceState(guildID, userID string) (*discordgo.VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs, nil
		}
	}
	return nil, fmt.Errorf("user not in any voice channel")
}
