package notify

import (
	"context"
	"time"

	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/service"
	"github.com/slack-go/slack"
)

const postTimeout = 10 * time.Second

var levelEmoji = map[models.NotificationLevel]string{
	models.SuccessNotification: ":white_check_mark:",
	models.WarningNotification: ":warning:",
	models.ErrorNotification:   ":x:",
}

// SlackForwarder posts run notifications to a Slack incoming webhook.
type SlackForwarder struct {
	webhookURL string
	logger     service.Logger
}

func NewSlackForwarder(webhookURL string, logger service.Logger) *SlackForwarder {
	return &SlackForwarder{webhookURL: webhookURL, logger: logger}
}

// Forward consumes events until ctx is done or the channel is closed. Only
// notification events are posted; a failed post is logged and skipped.
func (f *SlackForwarder) Forward(ctx context.Context, events <-chan models.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != models.NotificationEvent || ev.Notification == nil {
				continue
			}
			if err := f.Post(ctx, *ev.Notification); err != nil {
				f.logger.Errorf("Failed to forward notification to Slack: %v", err)
			}
		}
	}
}

// Post sends a single notification.
func (f *SlackForwarder) Post(ctx context.Context, n models.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()
	msg := &slack.WebhookMessage{Text: Format(n)}
	return slack.PostWebhookContext(ctx, f.webhookURL, msg)
}

// Format renders a notification as Slack message text.
func Format(n models.Notification) string {
	if emoji, ok := levelEmoji[n.Level]; ok {
		return emoji + " " + n.Message
	}
	return n.Message
}
