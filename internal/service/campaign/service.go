package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/pkg/logger"
)

// Service implements campaign business logic. It coordinates the repository,
// the recipient resolver, and the send queue. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo     Repository
	resolver RecipientResolver
	queue    Enqueuer // optional; nil means start only transitions status
}

// NewService creates a campaign service backed by the given repository and
// recipient resolver.
func NewService(repo Repository, resolver RecipientResolver) *Service {
	return &Service{repo: repo, resolver: resolver}
}

// SetEnqueuer wires the send queue. Without it, starting a campaign
// transitions status but queues nothing (useful in tests and dry runs).
func (s *Service) SetEnqueuer(q Enqueuer) { s.queue = q }

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, userID, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, userID string, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, userID, f)
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	c := &domain.Campaign{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        input.Name,
		Description: input.Description,
		FromName:    input.FromName,
		FromEmail:   input.FromEmail,
		TargetTags:  normalizeTags(input.TargetTags),
		Status:      domain.CampaignDraft,
		ScheduledAt: input.ScheduledAt,
	}
	if input.TemplateID != "" {
		c.TemplateID = &input.TemplateID
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

// Update modifies mutable campaign fields. Only draft campaigns should be
// edited, but we leave that enforcement to the repository/database.
func (s *Service) Update(ctx context.Context, userID, id string, u UpdateFields) error {
	if u.TargetTags != nil {
		norm := normalizeTags(*u.TargetTags)
		u.TargetTags = &norm
	}
	return s.repo.Update(ctx, userID, id, u)
}

// Delete removes a campaign (only draft).
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

// Start moves a draft campaign into scheduled or sending. Recipients are
// resolved fresh, the count is persisted, and when the target is sending a
// run is created and its recipients are enqueued. A future scheduled_at
// targets scheduled; the scheduler promotes it when due.
func (s *Service) Start(ctx context.Context, userID, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignDraft {
		return nil, &InvalidStateError{Current: c.Status, Requested: "start"}
	}
	if c.TemplateID == nil || *c.TemplateID == "" {
		return nil, ErrNoTemplate
	}

	contacts, err := s.resolver.ListRecipients(ctx, userID, c.TargetTags)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	if len(contacts) == 0 {
		return nil, ErrNoRecipients
	}
	if err := s.repo.SetRecipientCount(ctx, userID, id, len(contacts)); err != nil {
		return nil, fmt.Errorf("set recipient count: %w", err)
	}
	c.TotalRecipients = len(contacts)

	if c.ScheduledAt != nil && c.ScheduledAt.After(time.Now()) {
		if err := s.repo.UpdateStatus(ctx, userID, id, domain.CampaignScheduled); err != nil {
			return nil, fmt.Errorf("transition to scheduled: %w", err)
		}
		c.Status = domain.CampaignScheduled
		return c, nil
	}

	return s.beginSending(ctx, userID, c, contacts)
}

// ActivateScheduled promotes a due scheduled campaign into sending. Called
// by the worker's scheduler tick.
func (s *Service) ActivateScheduled(ctx context.Context, userID, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignScheduled {
		return nil, &InvalidStateError{Current: c.Status, Requested: "activate"}
	}

	// Membership may have changed since scheduling; resolve again.
	contacts, err := s.resolver.ListRecipients(ctx, userID, c.TargetTags)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	if err := s.repo.SetRecipientCount(ctx, userID, id, len(contacts)); err != nil {
		return nil, fmt.Errorf("set recipient count: %w", err)
	}
	c.TotalRecipients = len(contacts)

	return s.beginSending(ctx, userID, c, contacts)
}

func (s *Service) beginSending(ctx context.Context, userID string, c *domain.Campaign, contacts []domain.Contact) (*domain.Campaign, error) {
	if err := s.repo.UpdateStatus(ctx, userID, c.ID, domain.CampaignSending); err != nil {
		return nil, fmt.Errorf("transition to sending: %w", err)
	}
	c.Status = domain.CampaignSending

	run, err := s.repo.CreateRun(ctx, &domain.CampaignRun{
		ID:              uuid.New().String(),
		CampaignID:      c.ID,
		TotalRecipients: len(contacts),
		StartedAt:       time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	if s.queue != nil {
		n, err := s.queue.EnqueueRun(ctx, c, run, contacts)
		if err != nil {
			if rbErr := s.repo.UpdateStatus(ctx, userID, c.ID, domain.CampaignFailed); rbErr != nil {
				logger.Error("rollback to failed", "campaign_id", c.ID, "error", rbErr)
			}
			return nil, fmt.Errorf("enqueue recipients: %w", err)
		}
		logger.Info("campaign enqueued", "campaign_id", c.ID, "run", run.RunNumber, "recipients", n)
	}

	return c, nil
}

// Pause halts a sending or scheduled campaign. No other state may pause.
func (s *Service) Pause(ctx context.Context, userID, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !c.CanPause() {
		return nil, &InvalidStateError{Current: c.Status, Requested: "pause"}
	}
	if err := s.repo.UpdateStatus(ctx, userID, id, domain.CampaignPaused); err != nil {
		return nil, err
	}
	c.Status = domain.CampaignPaused
	return c, nil
}

// Resume restarts a paused campaign. The target is scheduled when
// scheduled_at is still in the future, else sending.
func (s *Service) Resume(ctx context.Context, userID, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignPaused {
		return nil, &InvalidStateError{Current: c.Status, Requested: "resume"}
	}

	target := domain.CampaignSending
	if c.ScheduledAt != nil && c.ScheduledAt.After(time.Now()) {
		target = domain.CampaignScheduled
	}
	if err := s.repo.UpdateStatus(ctx, userID, id, target); err != nil {
		return nil, err
	}
	c.Status = target
	return c, nil
}

// Rerun moves a completed or failed campaign back to draft: timestamps and
// counters are reset and total_recipients is recomputed against the current
// contact table. Prior EmailLog rows are preserved and stay queryable by
// their run_id.
func (s *Service) Rerun(ctx context.Context, userID, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !c.IsTerminal() {
		return nil, &InvalidStateError{Current: c.Status, Requested: "rerun"}
	}

	n, err := s.resolver.CountRecipients(ctx, userID, c.TargetTags)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	if err := s.repo.ResetForRerun(ctx, userID, id, n); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID, id)
}

// Duplicate copies a campaign's content and targeting into a new draft.
// Counters and EmailLog rows are not copied; total_recipients is resolved
// fresh rather than carrying the source's stale snapshot.
func (s *Service) Duplicate(ctx context.Context, userID, id string) (*domain.Campaign, error) {
	src, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	n, err := s.resolver.CountRecipients(ctx, userID, src.TargetTags)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}

	dup := &domain.Campaign{
		ID:              uuid.New().String(),
		UserID:          userID,
		TemplateID:      src.TemplateID,
		Name:            src.Name + " (Copy)",
		Description:     src.Description,
		FromName:        src.FromName,
		FromEmail:       src.FromEmail,
		TargetTags:      append([]string(nil), src.TargetTags...),
		Status:          domain.CampaignDraft,
		TotalRecipients: n,
	}
	if _, err := s.repo.Create(ctx, dup); err != nil {
		return nil, err
	}
	if err := s.repo.SetRecipientCount(ctx, userID, dup.ID, n); err != nil {
		return nil, err
	}
	return dup, nil
}

// Runs returns a campaign's execution history, newest first.
func (s *Service) Runs(ctx context.Context, userID, id string) ([]domain.CampaignRun, error) {
	if _, err := s.repo.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.repo.ListRuns(ctx, id)
}

// Analytics derives rate metrics live from the campaign's EmailLog rows.
// Nothing here is persisted.
func (s *Service) Analytics(ctx context.Context, userID, id string) (*domain.CampaignAnalytics, error) {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.LogCounts(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	a := &domain.CampaignAnalytics{
		CampaignID:      c.ID,
		TotalRecipients: c.TotalRecipients,
		Sent:            counts.Sent,
		Opened:          counts.Opened,
		Clicked:         counts.Clicked,
		Bounced:         counts.Bounced,
		Failed:          counts.Failed,
	}
	if counts.Sent > 0 {
		a.OpenRate = rate(counts.Opened, counts.Sent)
		a.ClickRate = rate(counts.Clicked, counts.Sent)
		a.BounceRate = rate(counts.Bounced, counts.Sent)
		a.DeliveryRate = rate(counts.Sent-counts.Bounced, counts.Sent)
	}
	if counts.Opened > 0 {
		a.ClickToOpenRate = rate(counts.Clicked, counts.Opened)
	}
	return a, nil
}

func rate(part, whole int) float64 {
	return float64(part) / float64(whole) * 100
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	FromName    string     `json:"from_name"`
	FromEmail   string     `json:"from_email"`
	TemplateID  string     `json:"template_id"`
	TargetTags  []string   `json:"target_tags"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// normalizeTags lowercases and dedupes a tag list, dropping empties.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
