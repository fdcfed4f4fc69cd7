// Package mailer is the outbound delivery boundary. The worker hands it
// fully rendered messages; everything upstream stays transport-agnostic.
package mailer

import (
	"context"
	"time"
)

// Message is one fully rendered outgoing email.
type Message struct {
	CampaignID string
	ContactID  string
	To         string
	FromName   string
	FromEmail  string
	Subject    string
	HTMLBody   string
	TextBody   string
}

// Result reports one delivery attempt. A rejected message comes back with
// Success=false and the provider error; the transport call itself only
// errors on misconfiguration.
type Result struct {
	Success   bool
	MessageID string
	Error     error
	SentAt    time.Time
}

// Sender delivers rendered email.
type Sender interface {
	Send(ctx context.Context, msg *Message) (*Result, error)
}
