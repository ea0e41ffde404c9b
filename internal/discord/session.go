package discord

import (
	"log"

	"github.com/bwmarrin/discordgo"

	"wavepilot/internal/config"
	"wavepilot/internal/events"
	"wavepilot/internal/track"
	"wavepilot/internal/voice"
)

// Session is one guild's playback state: a queue, a driver, and the bus
// connecting them. Playback chains itself: the driver reports a finished
// track on the bus and the session advances the queue.
type Session struct {
	GuildID string
	Bus     *events.Bus
	Queue   *track.AudioQueue
	Driver  *voice.Driver
}

func newSession(dg *discordgo.Session, guildID string, cfg *config.Config, res track.Resolver, prober track.Prober) *Session {
	bus := events.New()

	s := &Session{
		GuildID: guildID,
		Bus:     bus,
		Queue:   track.New(bus, res, prober, cfg.MaxQueueSize, cfg.MaxHistorySize),
		Driver: voice.New(
			bus,
			voice.NewDiscordConnector(dg, guildID),
			voice.NewFFmpegSourceFactory(cfg.FFmpegPath),
			voice.DefaultOptions(),
		),
	}

	bus.Subscribe(events.TopicPlaybackEnded, s.onPlaybackEnded)
	log.Printf("[Session] Created playback session for guild %s", guildID)
	return s
}

func (s *Session) onPlaybackEnded(evt events.Event) {
	if evt.Err != nil {
		log.Printf("[ERR] [Session %s] Playback ended with error, advancing: %v", s.GuildID, evt.Err)
	}
	s.Queue.NextAudio()
}

// Shutdown clears the queue and drops the voice connection. The session
// object stays usable; reset, not destroyed.
func (s *Session) Shutdown() {
	s.Queue.ResetQueue()
	s.Driver.Disconnect()
}
