package notify

import (
	"fmt"

	"github.com/mkernan/questboard/internal/config"
	"github.com/sirupsen/logrus"
)

// FromConfig builds a Dispatcher from the notify section of the config.
// The log sink is always present; Slack and Discord join when configured.
func FromConfig(cfg config.NotifyConfig, log *logrus.Logger) (*Dispatcher, error) {
	sinks := []Notifier{NewLogNotifier(log)}

	if cfg.Slack.BotToken != "" {
		slack, err := NewSlack(SlackOpts{
			BotToken:  cfg.Slack.BotToken,
			ChannelID: cfg.Slack.Channel,
		})
		if err != nil {
			return nil, fmt.Errorf("notify: configure slack: %w", err)
		}
		sinks = append(sinks, slack)
	}

	if cfg.Discord.BotToken != "" {
		discord, err := NewDiscord(DiscordOpts{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.ChannelID,
		})
		if err != nil {
			return nil, fmt.Errorf("notify: configure discord: %w", err)
		}
		sinks = append(sinks, discord)
	}

	return NewDispatcher(log, sinks...), nil
}
