package mailer

import (
	"context"
	"time"

	"github.com/ignite/pulsemail/internal/pkg/logger"
)

// LogSender pretends to deliver by logging. Used in development when SES is
// disabled, so the whole pipeline can run without a mail provider.
type LogSender struct{}

// NewLogSender creates a sender that logs instead of delivering.
func NewLogSender() *LogSender { return &LogSender{} }

func (s *LogSender) Send(_ context.Context, msg *Message) (*Result, error) {
	logger.Info("dry-run send",
		"to", logger.RedactEmail(msg.To),
		"campaign_id", msg.CampaignID,
		"subject", msg.Subject)
	return &Result{Success: true, MessageID: "dry-run", SentAt: time.Now()}, nil
}
