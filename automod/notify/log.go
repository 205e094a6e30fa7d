package notify

import (
	"context"
	"log/slog"

	"github.com/socialdesk/moddesk/automod/engine"
)

// Notifier which only writes notifications to the log. Used when no delivery channel is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

var _ engine.Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) Notify(ctx context.Context, target, message string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("moderation notification", "target", target, "message", message)
	return nil
}
