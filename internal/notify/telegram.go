package notify

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"stcam/internal/capture"
	"stcam/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram pushes one-line capture outcome messages to a chat, so a
// headless deployment still surfaces every outcome somewhere visible.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// NewTelegram creates a notifier for the given bot token and chat
func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		api:    api,
		chatID: chatID,
		logger: logger,
	}, nil
}

// NotifyCapture sends the outcome of one capture attempt. Send failures are
// logged, never propagated: notification is best-effort.
func (t *Telegram) NotifyCapture(res capture.Result) {
	msg := tgbotapi.NewMessage(t.chatID, FormatResult(res))
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Warn("Failed to send capture notification",
			"component", "notify",
			"capture_id", res.CaptureID,
			"error", err)
	}
}

// FormatResult renders a capture result as a single human-readable line
func FormatResult(res capture.Result) string {
	switch res.Outcome() {
	case storage.OutcomeOK:
		return fmt.Sprintf("📷 Capture %s: image saved as %s", res.CaptureID, filepath.Base(res.ImagePath))
	case storage.OutcomeAuthFailed:
		return fmt.Sprintf("⚠️ Capture %s failed: token expired, refresh failed: check credentials", res.CaptureID)
	case storage.OutcomeNoImage:
		return fmt.Sprintf("⚠️ Capture %s failed: no image URL found in device status", res.CaptureID)
	case storage.OutcomeCommandFailed:
		return fmt.Sprintf("⚠️ Capture %s failed: device rejected the capture command", res.CaptureID)
	case storage.OutcomeDownloadFailed:
		return fmt.Sprintf("⚠️ Capture %s failed: could not download the captured image", res.CaptureID)
	default:
		return fmt.Sprintf("⚠️ Capture %s failed: %v", res.CaptureID, res.Err)
	}
}

var _ capture.Notifier = (*Telegram)(nil)
