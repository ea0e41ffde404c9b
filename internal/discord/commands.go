package discord

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"wavepilot/internal/track"
)

var commandDefs = []*discordgo.ApplicationCommand{
	{
		Name:        "play",
		Description: "Queue a track by URL or title",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "YouTube URL or search phrase",
				Required:    true,
			},
		},
	},
	{Name: "skip", Description: "Skip to the next track"},
	{Name: "remove", Description: "Drop the current track without recording it in history"},
	{Name: "previous", Description: "Go back to the previously played track"},
	{Name: "restart", Description: "Replay the session from the first track"},
	{
		Name:        "seek",
		Description: "Jump to a position in the current track",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "seconds",
				Description: "Position in seconds",
				Required:    true,
			},
		},
	},
	{Name: "stop", Description: "Stop playback and clear the queue"},
	{Name: "queue", Description: "Show upcoming and recently played tracks"},
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.GuildID == "" {
		RespondEmbedEphemeral(s, i, errorEmbed("This command only works in a server"))
		return
	}

	switch i.ApplicationCommandData().Name {
	case "play":
		b.handlePlay(s, i)
	case "skip":
		b.handleSkip(s, i)
	case "remove":
		b.handleRemove(s, i)
	case "previous":
		b.handlePrevious(s, i)
	case "restart":
		b.handleRestart(s, i)
	case "seek":
		b.handleSeek(s, i)
	case "stop":
		b.handleStop(s, i)
	case "queue":
		b.handleQueue(s, i)
	}
}

func (b *Bot) handlePlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	query := strings.TrimSpace(i.ApplicationCommandData().Options[0].StringValue())
	userID := i.Member.User.ID

	vs, err := b.findUserVoiceState(i.GuildID, userID)
	if err != nil {
		RespondEmbedEphemeral(s, i, errorEmbed("Join a voice channel first"))
		return
	}

	// Resolution goes to the network, acknowledge before it runs.
	if err := Defer(s, i); err != nil {
		log.Printf("[ERR] Failed to defer interaction: %v", err)
		return
	}

	go func() {
		webpageURL := query
		if !isURL(query) {
			found, err := b.resolver.Search(query)
			if err != nil {
				FollowupEmbed(s, i, errorEmbed(fmt.Sprintf("Nothing found for %q", query)))
				return
			}
			webpageURL = found
		}

		info, err := b.resolver.Resolve(webpageURL)
		if err != nil {
			log.Printf("[ERR] Failed to resolve %q: %v", webpageURL, err)
			FollowupEmbed(s, i, errorEmbed("Could not resolve that track"))
			return
		}

		audio := track.NewAudio(userID, i.Member.User.Username, vs.ChannelID, i.ChannelID, info)

		session := b.getOrCreateSession(i.GuildID)
		if !session.Queue.Append(audio) {
			FollowupEmbed(s, i, errorEmbed("The queue is full"))
			return
		}

		embed := &discordgo.MessageEmbed{
			Title:       "🎶 Queued",
			Description: fmt.Sprintf("[%s](%s)", audio.Title, audio.WebpageURL),
			Color:       EmbedColor,
		}
		if audio.Thumbnail != "" {
			embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: audio.Thumbnail}
		}
		if audio.Duration > 0 {
			embed.Footer = &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf("Duration %s · requested by %s", audio.Duration.Round(time.Second), audio.RequesterName),
			}
		}
		FollowupEmbed(s, i, embed)
	}()
}

func (b *Bot) handleSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session := b.getOrCreateSession(i.GuildID)

	if session.Queue.CurrentAudio() == nil && session.Queue.Len() == 0 {
		RespondEmbedEphemeral(s, i, errorEmbed("Nothing is playing"))
		return
	}

	desc := "End of queue"
	if next := session.Queue.NextAudio(); next != nil {
		desc = next.String()
	}
	RespondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "⏭ Skipped",
		Description: desc,
		Color:       EmbedColor,
	})
}

func (b *Bot) handleRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session := b.getOrCreateSession(i.GuildID)

	title, ok := session.Queue.RemoveCurrentAudio()
	if !ok {
		RespondEmbedEphemeral(s, i, errorEmbed("Nothing is playing"))
		return
	}
	RespondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "🗑 Removed",
		Description: title,
		Color:       EmbedColor,
	})
}

func (b *Bot) handlePrevious(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session := b.getOrCreateSession(i.GuildID)

	prev := session.Queue.PreviousAudio()
	if prev == nil {
		RespondEmbedEphemeral(s, i, errorEmbed("No previously played track"))
		return
	}
	RespondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "⏮ Playing previous",
		Description: prev.String(),
		Color:       EmbedColor,
	})
}

func (b *Bot) handleRestart(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session := b.getOrCreateSession(i.GuildID)

	if session.Queue.CurrentAudio() == nil && session.Queue.HistoryLen() == 0 {
		RespondEmbedEphemeral(s, i, errorEmbed("Nothing to restart"))
		return
	}
	session.Queue.RestartQueue()
	RespondEmbed(s, i, &discordgo.MessageEmbed{
		Title: "🔄 Restarted from the top",
		Color: EmbedColor,
	})
}

func (b *Bot) handleSeek(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session := b.getOrCreateSession(i.GuildID)

	if !session.Driver.IsPlaying() {
		RespondEmbedEphemeral(s, i, errorEmbed("Nothing is playing"))
		return
	}
	seconds := i.ApplicationCommandData().Options[0].IntValue()
	if seconds < 0 {
		seconds = 0
	}
	session.Driver.GoTo(time.Duration(seconds) * time.Second)
	RespondEmbed(s, i, &discordgo.MessageEmbed{
		Title: fmt.Sprintf("⏩ Jumped to %ds", seconds),
		Color: EmbedColor,
	})
}

func (b *Bot) handleStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session := b.getOrCreateSession(i.GuildID)
	session.Shutdown()
	RespondEmbed(s, i, &discordgo.MessageEmbed{
		Title: "⏹ Playback stopped",
		Color: EmbedColor,
	})
}

func (b *Bot) handleQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session := b.getOrCreateSession(i.GuildID)
	queue := session.Queue

	embed := &discordgo.MessageEmbed{Title: "🎼 Queue", Color: EmbedColor}

	if cur := queue.CurrentAudio(); cur != nil {
		embed.Description = fmt.Sprintf("▶️ [%s](%s)", cur.Title, cur.WebpageURL)
	} else {
		embed.Description = "Nothing is playing"
	}

	if next := queue.QueueString(10); next != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Up next (%d)", queue.Len()),
			Value: next,
		})
	}
	if prev := queue.HistoryString(5); prev != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Recently played",
			Value: prev,
		})
	}

	RespondEmbed(s, i, embed)
}

func isURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}
