package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/socialdesk/moddesk/automod/engine"
	"github.com/socialdesk/moddesk/util"
)

// Posts every notification to a single slack channel, via an "incoming webhook". The target is included in the message text.
type SlackNotifier struct {
	WebhookURL string
	Client     *http.Client
	Logger     *slog.Logger
}

var _ engine.Notifier = (*SlackNotifier)(nil)

func NewSlackNotifier(webhookURL string, logger *slog.Logger) *SlackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackNotifier{
		WebhookURL: webhookURL,
		Client:     util.RobustHTTPClient(logger),
		Logger:     logger.With("notifier", "slack"),
	}
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

func (n *SlackNotifier) Notify(ctx context.Context, target, message string) error {
	msg := fmt.Sprintf("⚠️ Moderation Notice ⚠️\nTo: `%s`\n%s\n", target, message)
	n.Logger.Debug("sending slack notification", "target", target)
	return n.sendSlackMsg(ctx, msg)
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK || string(respBody) != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
