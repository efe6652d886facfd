package Notifier

import (
	"context"
	"fmt"
	"strings"

	"AviCRM/Directory"
	"AviCRM/Models"

	"github.com/slack-go/slack"
)

type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts a line per assignment to the task channel.
type SlackNotifier struct {
	client  slackPoster
	channel string
}

func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{client: slack.New(token), channel: channel}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) TaskAssigned(ctx context.Context, entry Directory.Entry, task Models.TaskRecord) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(assignmentMessage(entry, task), false))
	if err != nil {
		return fmt.Errorf("post to slack channel %s: %w", s.channel, err)
	}
	return nil
}

func assignmentMessage(entry Directory.Entry, task Models.TaskRecord) string {
	var message strings.Builder

	assignee := entry.Username
	if entry.FirstName != "" {
		assignee = fmt.Sprintf("%s (%s)", entry.FirstName, entry.Username)
	}

	title := task.Title()
	if title == "" {
		title = "Untitled task"
	}

	message.WriteString(fmt.Sprintf("*New task assigned to %s*\n", assignee))
	message.WriteString(fmt.Sprintf("*Task:* %s (#%d)\n", title, task.ID))
	if priority := task.Priority(); priority != "" {
		message.WriteString(fmt.Sprintf("*Priority:* %s\n", priority))
	}
	if due := task.DueDate(); due != "" {
		message.WriteString(fmt.Sprintf("*Due:* %s\n", due))
	}
	return message.String()
}
