package voice

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

// Connection is one live voice session. Send blocks while the transport's
// opus buffer is full, which paces the encode loop.
type Connection interface {
	ChannelID() string
	Move(channelID string) error
	Speaking(on bool) error
	Send(opus []byte)
	Disconnect() error
}

// Connector joins voice channels for one guild.
type Connector interface {
	Join(channelID string) (Connection, error)
}

// DiscordConnector joins guild voice channels over a discordgo session.
type DiscordConnector struct {
	dg      *discordgo.Session
	guildID string
}

func NewDiscordConnector(dg *discordgo.Session, guildID string) *DiscordConnector {
	return &DiscordConnector{dg: dg, guildID: guildID}
}

func (c *DiscordConnector) Join(channelID string) (Connection, error) {
	vc, err := c.dg.ChannelVoiceJoin(c.guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}
	log.Printf("[Voice] Joined voice channel %s on guild %s", channelID, c.guildID)
	return &discordConnection{vc: vc}, nil
}

type discordConnection struct {
	vc *discordgo.VoiceConnection
}

func (c *discordConnection) ChannelID() string { return c.vc.ChannelID }

func (c *discordConnection) Move(channelID string) error {
	return c.vc.ChangeChannel(channelID, false, true)
}

func (c *discordConnection) Speaking(on bool) error { return c.vc.Speaking(on) }

func (c *discordConnection) Send(opus []byte) { c.vc.OpusSend <- opus }

func (c *discordConnection) Disconnect() error { return c.vc.Disconnect() }
