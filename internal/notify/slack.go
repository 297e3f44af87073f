package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
)

// maxSlackRetries caps retries for rate-limited Slack API calls.
const maxSlackRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier posts progression events to a Slack channel as attachments.
type SlackNotifier struct {
	client    slackClient
	channelID string
}

// SlackOpts holds parameters for creating a SlackNotifier.
type SlackOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a SlackNotifier.
func NewSlack(opts SlackOpts) (*SlackNotifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: slack bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: slack channel is required")
	}

	n := &SlackNotifier{channelID: opts.ChannelID}
	if opts.Client != nil {
		n.client = opts.Client
	} else {
		n.client = slackapi.New(opts.BotToken)
	}
	return n, nil
}

func (n *SlackNotifier) Name() string { return "slack" }

// Notify posts the event. Rate-limited calls retry with backoff, honoring
// the RetryAfter duration Slack reports.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	att := slackapi.Attachment{
		Title:    event.Headline(),
		Color:    severityColor(event.Severity()),
		Fallback: event.Headline(),
	}
	if event.Feedback != "" {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: "Feedback",
			Value: event.Feedback,
		})
	}
	if event.Points > 0 {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: "Points",
			Value: fmt.Sprintf("%d", event.Points),
			Short: true,
		})
	}

	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := n.client.PostMessageContext(ctx, n.channelID,
			slackapi.MsgOptionAttachments(att))
		return postErr
	})
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}

// severityColor maps a severity to a Slack sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return "#36a64f"
	case "warning":
		return "#e8a33d"
	case "error":
		return "#d72b3f"
	default:
		return "#439fe0"
	}
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit
// errors. It respects context cancellation and Slack's RetryAfter.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxSlackRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err // not a rate limit error, don't retry
		}

		if attempt == maxSlackRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
