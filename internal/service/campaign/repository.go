package campaign

import (
	"context"

	"github.com/ignite/pulsemail/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, userID, id string) (*domain.Campaign, error)

	// List returns campaigns matching the given filter, ordered by created_at DESC.
	List(ctx context.Context, userID string, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)

	// Update modifies a campaign. Only non-nil fields in the update are applied.
	Update(ctx context.Context, userID, id string, u UpdateFields) error

	// Delete removes a campaign. Only draft campaigns can be deleted.
	Delete(ctx context.Context, userID, id string) error

	// UpdateStatus transitions a campaign's status, stamping sent_at when
	// entering sending and completed_at when entering completed/failed.
	UpdateStatus(ctx context.Context, userID, id string, status domain.CampaignStatus) error

	// SetRecipientCount overwrites total_recipients.
	SetRecipientCount(ctx context.Context, userID, id string, n int) error

	// ResetForRerun moves a campaign back to draft in one statement:
	// clears scheduled_at/sent_at/completed_at, zeroes the sent/failed/
	// opened/clicked counters, and writes the freshly resolved recipient
	// count. Prior EmailLog rows are left untouched.
	ResetForRerun(ctx context.Context, userID, id string, totalRecipients int) error

	// CreateRun inserts an execution record with the next sequential
	// run number for the campaign and returns it.
	CreateRun(ctx context.Context, run *domain.CampaignRun) (*domain.CampaignRun, error)

	// ListRuns returns a campaign's runs, newest first.
	ListRuns(ctx context.Context, campaignID string) ([]domain.CampaignRun, error)

	// LogCounts aggregates this campaign's EmailLog rows for analytics.
	LogCounts(ctx context.Context, userID, id string) (*LogCounts, error)
}

// RecipientResolver computes the set of contacts eligible for a campaign:
// active status and, when targetTags is non-empty, at least one matching tag.
// Always a fresh query, never cached.
type RecipientResolver interface {
	CountRecipients(ctx context.Context, userID string, targetTags []string) (int, error)
	ListRecipients(ctx context.Context, userID string, targetTags []string) ([]domain.Contact, error)
}

// Enqueuer snapshots a run's recipients into EmailLog rows and queues the
// send jobs. Returns the number of recipients enqueued.
type Enqueuer interface {
	EnqueueRun(ctx context.Context, c *domain.Campaign, run *domain.CampaignRun, contacts []domain.Contact) (int, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name        *string
	Description *string
	FromName    *string
	FromEmail   *string
	TemplateID  *string
	TargetTags  *[]string
	ScheduledAt *string
}

// LogCounts is the aggregation of a campaign's EmailLog rows used to derive
// rate metrics.
type LogCounts struct {
	Total   int
	Sent    int // rows with sent_at set, whatever happened afterwards
	Opened  int // rows with opened_at set
	Clicked int // rows in clicked status
	Bounced int
	Failed  int
}
