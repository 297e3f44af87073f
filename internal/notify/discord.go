package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo.Session methods we use, enabling
// test mocks.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts progression events to a Discord channel as embeds.
// It uses the REST API only; no Gateway connection is held open.
type DiscordNotifier struct {
	sess      discordSession
	channelID string
}

// DiscordOpts holds parameters for creating a DiscordNotifier.
type DiscordOpts struct {
	BotToken  string // Discord bot token
	ChannelID string // channel to post to
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// NewDiscord creates a DiscordNotifier.
func NewDiscord(opts DiscordOpts) (*DiscordNotifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: discord bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: discord channel_id is required")
	}

	n := &DiscordNotifier{channelID: opts.ChannelID}
	if opts.Session != nil {
		n.sess = opts.Session
	} else {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("notify: create discord session: %w", err)
		}
		n.sess = dg
	}
	return n, nil
}

func (n *DiscordNotifier) Name() string { return "discord" }

func (n *DiscordNotifier) Notify(ctx context.Context, event Event) error {
	embed := &discordgo.MessageEmbed{
		Title: event.Headline(),
		Color: severityColorInt(event.Severity()),
	}
	if event.Feedback != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Feedback",
			Value: event.Feedback,
		})
	}
	if event.Points > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Points",
			Value:  fmt.Sprintf("%d", event.Points),
			Inline: true,
		})
	}

	_, err := n.sess.ChannelMessageSendEmbed(n.channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}

// severityColorInt maps a severity to a Discord embed color.
func severityColorInt(severity string) int {
	switch severity {
	case "success":
		return 0x36a64f
	case "warning":
		return 0xe8a33d
	case "error":
		return 0xd72b3f
	default:
		return 0x439fe0
	}
}
