package Commands

import (
	"context"
	"log"

	"AviCRM/Config"
	"AviCRM/Directory"
	"AviCRM/Models"
	"AviCRM/Notifier"
	"AviCRM/Storage"
	"AviCRM/TaskSync"
)

func newCoordinator(cfg *Config.Config, notifiers Notifier.Fanout) *TaskSync.Coordinator {
	return TaskSync.NewCoordinator(
		Directory.NewResolver(cfg.DataDir, cfg.RegistryFile),
		Storage.NewTaskStore(),
		Storage.NewNotificationStore(),
		Storage.NewIDGenerator(),
		notifiers,
	)
}

// newNotifiers enables every channel that is configured. A channel that
// fails to start is logged and left out.
func newNotifiers(ctx context.Context, cfg *Config.Config, tokens *Models.DeviceTokens) Notifier.Fanout {
	var notifiers Notifier.Fanout

	if cfg.FirebaseCredentials != "" && tokens != nil {
		client, err := Notifier.InitFirebase(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("Push notifications disabled: %v", err)
		} else {
			notifiers = append(notifiers, Notifier.NewFCMNotifier(client, tokens))
		}
	}

	if cfg.SlackBotToken != "" && cfg.SlackTaskChannel != "" {
		notifiers = append(notifiers, Notifier.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackTaskChannel))
		log.Printf("Slack assignment announcements enabled for %s", cfg.SlackTaskChannel)
	}
	return notifiers
}
