// Package notify delivers alert messages to subscriber groups.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers text to the group identified by tag.
type Sender interface {
	Send(ctx context.Context, text, tag string) error
}

// BestEffort wraps a Sender so that delivery failures are logged, never returned.
type BestEffort struct {
	sender Sender
	name   string
	logger *zap.Logger
}

func NewBestEffort(name string, sender Sender, logger *zap.Logger) *BestEffort {
	return &BestEffort{sender: sender, name: name, logger: logger}
}

// Notify makes one delivery attempt and reports whether it succeeded.
func (b *BestEffort) Notify(ctx context.Context, text, tag string) bool {
	if err := b.sender.Send(ctx, text, tag); err != nil {
		b.logger.Error("Notification failed",
			zap.String("channel", b.name),
			zap.String("tag", tag),
			zap.Error(err))
		return false
	}
	b.logger.Info("Notification sent",
		zap.String("channel", b.name),
		zap.String("tag", tag))
	return true
}

// LogSender only writes the message to the log. It is used when no push
// channel is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, text, tag string) error {
	l.logger.Info("Notification (log only)", zap.String("tag", tag), zap.String("text", text))
	return nil
}
