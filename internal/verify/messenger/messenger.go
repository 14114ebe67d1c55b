// Package messenger delivers one-time codes to a user's chat.
package messenger

import (
	"context"
	"errors"
	"log/slog"
)

// ErrDelivery wraps every failure to hand a message to the chat provider.
var ErrDelivery = errors.New("messenger: delivery failed")

// Sender delivers text to a chat.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// Checker is implemented by senders that can validate their configuration.
type Checker interface {
	Check(ctx context.Context) error
}

// LogSender writes messages to the log instead of delivering them. It is
// meant for local development and the e2e tests.
type LogSender struct {
	Logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{Logger: logger}
}

func (s *LogSender) Send(ctx context.Context, chatID, text string) error {
	s.Logger.InfoContext(ctx, "message delivered", "chat_id", chatID, "text", text)
	return nil
}
