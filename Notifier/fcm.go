package Notifier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"AviCRM/Directory"
	"AviCRM/Models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// InitFirebase builds the FCM client from a service account key file.
func InitFirebase(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	opt := option.WithCredentialsFile(credentialsFile)

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Messaging client: %w", err)
	}

	log.Println("Firebase initialized successfully")
	return client, nil
}

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type tokenLookup interface {
	Lookup(username string) (string, error)
}

// FCMNotifier pushes new assignments to the device the username registered.
type FCMNotifier struct {
	client messageSender
	tokens tokenLookup
}

func NewFCMNotifier(client messageSender, tokens tokenLookup) *FCMNotifier {
	return &FCMNotifier{client: client, tokens: tokens}
}

func (f *FCMNotifier) Name() string { return "fcm" }

func (f *FCMNotifier) TaskAssigned(ctx context.Context, entry Directory.Entry, task Models.TaskRecord) error {
	token, err := f.tokens.Lookup(entry.Username)
	if errors.Is(err, Models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	title := task.Title()
	if title == "" {
		title = "New task"
	}

	priority := task.Priority()
	androidPriority := "normal"
	if strings.EqualFold(priority, "high") || strings.EqualFold(priority, "urgent") {
		androidPriority = "high"
	}

	message := &messaging.Message{
		Token: token,
		Data: map[string]string{
			"type":        "task_assigned",
			"task_id":     task.IDString(),
			"title":       task.Title(),
			"priority":    priority,
			"status":      string(task.Status),
			"assigned_at": task.AssignedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		},
		Notification: &messaging.Notification{
			Title: "New Task Assigned",
			Body:  title,
		},
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
			Priority: androidPriority,
		},
	}

	response, err := f.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending Firebase message: %w", err)
	}

	log.Printf("Sent task %d push to %s: %s", task.ID, entry.Username, response)
	return nil
}
