package domain

import "time"

// EmailLogStatus enumerates the delivery/engagement states of one send.
type EmailLogStatus string

const (
	EmailPending EmailLogStatus = "pending"
	EmailSent    EmailLogStatus = "sent"
	EmailOpened  EmailLogStatus = "opened"
	EmailClicked EmailLogStatus = "clicked"
	EmailBounced EmailLogStatus = "bounced"
	EmailFailed  EmailLogStatus = "failed"
)

// EmailLog is one row per (campaign, contact) send attempt. Status only
// advances along pending -> sent -> opened -> clicked; bounced and failed
// are absorbing terminal alternatives. The row's own opened_at/status
// fields double as the idempotency token for first-event counting.
type EmailLog struct {
	ID         string         `json:"id" db:"id"`
	CampaignID string         `json:"campaign_id" db:"campaign_id"`
	ContactID  string         `json:"contact_id" db:"contact_id"`
	RunID      *string        `json:"run_id" db:"run_id"`
	Email      string         `json:"email" db:"email"`
	Status     EmailLogStatus `json:"status" db:"status"`
	Error      string         `json:"error,omitempty" db:"error"`
	SentAt     *time.Time     `json:"sent_at" db:"sent_at"`
	OpenedAt   *time.Time     `json:"opened_at" db:"opened_at"`
	ClickedAt  *time.Time     `json:"clicked_at" db:"clicked_at"`
	BouncedAt  *time.Time     `json:"bounced_at" db:"bounced_at"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}
