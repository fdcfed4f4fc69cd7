package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
)

// Campaign represents an email campaign with its targeting and
// denormalized engagement counters.
type Campaign struct {
	ID          string         `json:"id" db:"id"`
	UserID      string         `json:"user_id" db:"user_id"`
	TemplateID  *string        `json:"template_id" db:"template_id"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description" db:"description"`
	FromName    string         `json:"from_name" db:"from_name"`
	FromEmail   string         `json:"from_email" db:"from_email"`
	TargetTags  []string       `json:"target_tags" db:"target_tags"`
	Status      CampaignStatus `json:"status" db:"status"`

	// Counters are monotonically non-decreasing within a run; only an
	// explicit rerun resets them.
	TotalRecipients   int `json:"total_recipients" db:"total_recipients"`
	TotalSent         int `json:"total_sent" db:"total_sent"`
	TotalFailed       int `json:"total_failed" db:"total_failed"`
	TotalOpened       int `json:"total_opened" db:"total_opened"`
	TotalClicked      int `json:"total_clicked" db:"total_clicked"`
	TotalUnsubscribed int `json:"total_unsubscribed" db:"total_unsubscribed"`

	ScheduledAt *time.Time `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at" db:"sent_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state. Terminal
// campaigns may still be rerun, which moves them back to draft.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignFailed
}

// CanPause reports whether a pause transition is legal from the current state.
func (c *Campaign) CanPause() bool {
	return c.Status == CampaignSending || c.Status == CampaignScheduled
}

// CampaignRun is an immutable record of one execution attempt of a campaign.
// Tracking events never mutate it; EmailLog rows carry a run_id back-reference
// so historical runs stay queryable after a rerun.
type CampaignRun struct {
	ID              string     `json:"id" db:"id"`
	CampaignID      string     `json:"campaign_id" db:"campaign_id"`
	RunNumber       int        `json:"run_number" db:"run_number"`
	TotalRecipients int        `json:"total_recipients" db:"total_recipients"`
	TotalSent       int        `json:"total_sent" db:"total_sent"`
	TotalOpened     int        `json:"total_opened" db:"total_opened"`
	TotalClicked    int        `json:"total_clicked" db:"total_clicked"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	CompletedAt     *time.Time `json:"completed_at" db:"completed_at"`
}

// CampaignAnalytics holds rate metrics derived live from EmailLog rows.
// Never persisted.
type CampaignAnalytics struct {
	CampaignID      string  `json:"campaign_id"`
	TotalRecipients int     `json:"total_recipients"`
	Sent            int     `json:"sent"`
	Opened          int     `json:"opened"`
	Clicked         int     `json:"clicked"`
	Bounced         int     `json:"bounced"`
	Failed          int     `json:"failed"`
	OpenRate        float64 `json:"open_rate"`
	ClickRate       float64 `json:"click_rate"`
	BounceRate      float64 `json:"bounce_rate"`
	DeliveryRate    float64 `json:"delivery_rate"`
	ClickToOpenRate float64 `json:"click_to_open_rate"`
}
