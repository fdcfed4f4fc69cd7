package campaign_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/service/campaign"
)

// memRepo is an in-memory campaign repository for unit testing.
type memRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign // keyed by id
	runs      map[string][]domain.CampaignRun
	counts    map[string]campaign.LogCounts
}

func newMemRepo() *memRepo {
	return &memRepo{
		campaigns: make(map[string]*domain.Campaign),
		runs:      make(map[string][]domain.CampaignRun),
		counts:    make(map[string]campaign.LogCounts),
	}
}

func (m *memRepo) Get(_ context.Context, userID, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, userID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.UserID != userID {
			continue
		}
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, c *domain.Campaign) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		return "", fmt.Errorf("id required")
	}
	cp := *c
	m.campaigns[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memRepo) Update(_ context.Context, userID, id string, u campaign.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return campaign.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.TargetTags != nil {
		c.TargetTags = *u.TargetTags
	}
	return nil
}

func (m *memRepo) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return campaign.ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, userID, id string, status domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return campaign.ErrNotFound
	}
	c.Status = status
	now := time.Now()
	switch status {
	case domain.CampaignSending:
		c.SentAt = &now
	case domain.CampaignCompleted, domain.CampaignFailed:
		c.CompletedAt = &now
	}
	return nil
}

func (m *memRepo) SetRecipientCount(_ context.Context, userID, id string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return campaign.ErrNotFound
	}
	c.TotalRecipients = n
	return nil
}

func (m *memRepo) ResetForRerun(_ context.Context, userID, id string, totalRecipients int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return campaign.ErrNotFound
	}
	c.Status = domain.CampaignDraft
	c.ScheduledAt, c.SentAt, c.CompletedAt = nil, nil, nil
	c.TotalSent, c.TotalFailed, c.TotalOpened, c.TotalClicked = 0, 0, 0, 0
	c.TotalRecipients = totalRecipients
	return nil
}

func (m *memRepo) CreateRun(_ context.Context, run *domain.CampaignRun) (*domain.CampaignRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.RunNumber = len(m.runs[run.CampaignID]) + 1
	m.runs[run.CampaignID] = append(m.runs[run.CampaignID], *run)
	return run, nil
}

func (m *memRepo) ListRuns(_ context.Context, campaignID string) ([]domain.CampaignRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CampaignRun(nil), m.runs[campaignID]...), nil
}

func (m *memRepo) LogCounts(_ context.Context, userID, id string) (*campaign.LogCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counts[id]
	return &c, nil
}

// memResolver returns a fixed recipient set.
type memResolver struct {
	contacts []domain.Contact
}

func (r *memResolver) CountRecipients(_ context.Context, _ string, targetTags []string) (int, error) {
	cs, _ := r.ListRecipients(context.Background(), "", targetTags)
	return len(cs), nil
}

func (r *memResolver) ListRecipients(_ context.Context, _ string, targetTags []string) ([]domain.Contact, error) {
	var out []domain.Contact
	for _, c := range r.contacts {
		if c.Status != domain.ContactActive {
			continue
		}
		if c.HasAnyTag(targetTags) {
			out = append(out, c)
		}
	}
	return out, nil
}

const testUser = "user-1"

func activeContact(id string, tags ...string) domain.Contact {
	return domain.Contact{ID: id, UserID: testUser, Email: id + "@test.com", Status: domain.ContactActive, Tags: tags}
}

func newTestService(contacts ...domain.Contact) (*campaign.Service, *memRepo) {
	repo := newMemRepo()
	svc := campaign.NewService(repo, &memResolver{contacts: contacts})
	return svc, repo
}

func mustCreate(t *testing.T, svc *campaign.Service, in campaign.CreateInput) *domain.Campaign {
	t.Helper()
	if in.Name == "" {
		in.Name = "Camp"
	}
	if in.TemplateID == "" {
		in.TemplateID = "tpl-1"
	}
	c, err := svc.Create(context.Background(), testUser, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return c
}

func TestCreateDraft(t *testing.T) {
	svc, _ := newTestService()
	c := mustCreate(t, svc, campaign.CreateInput{Name: "Welcome", TargetTags: []string{"VIP", "vip", " lead "}})
	if c.Status != domain.CampaignDraft {
		t.Fatalf("expected draft, got %s", c.Status)
	}
	if len(c.TargetTags) != 2 || c.TargetTags[0] != "vip" || c.TargetTags[1] != "lead" {
		t.Fatalf("tags not normalized: %v", c.TargetTags)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Create(context.Background(), testUser, campaign.CreateInput{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestStartComputesRecipients(t *testing.T) {
	svc, repo := newTestService(
		activeContact("a", "vip"),
		activeContact("b", "lead"),
		activeContact("c", "other"),
	)
	c := mustCreate(t, svc, campaign.CreateInput{TargetTags: []string{"vip", "lead"}})

	started, err := svc.Start(context.Background(), testUser, c.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != domain.CampaignSending {
		t.Fatalf("expected sending, got %s", started.Status)
	}
	if started.TotalRecipients != 2 {
		t.Fatalf("expected 2 recipients, got %d", started.TotalRecipients)
	}
	runs, _ := repo.ListRuns(context.Background(), c.ID)
	if len(runs) != 1 || runs[0].RunNumber != 1 {
		t.Fatalf("expected run #1, got %+v", runs)
	}
}

func TestStartFutureScheduleTargetsScheduled(t *testing.T) {
	future := time.Now().Add(time.Hour)
	svc, repo := newTestService(activeContact("a"))
	c := mustCreate(t, svc, campaign.CreateInput{ScheduledAt: &future})

	started, err := svc.Start(context.Background(), testUser, c.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != domain.CampaignScheduled {
		t.Fatalf("expected scheduled, got %s", started.Status)
	}
	// No run until the scheduler activates it.
	runs, _ := repo.ListRuns(context.Background(), c.ID)
	if len(runs) != 0 {
		t.Fatalf("expected no runs yet, got %d", len(runs))
	}
}

func TestStartRequiresTemplate(t *testing.T) {
	svc, _ := newTestService(activeContact("a"))
	c, _ := svc.Create(context.Background(), testUser, campaign.CreateInput{Name: "NoTpl"})
	if _, err := svc.Start(context.Background(), testUser, c.ID); !errors.Is(err, campaign.ErrNoTemplate) {
		t.Fatalf("expected ErrNoTemplate, got %v", err)
	}
}

func TestStartRequiresRecipients(t *testing.T) {
	svc, _ := newTestService() // no contacts at all
	c := mustCreate(t, svc, campaign.CreateInput{})
	if _, err := svc.Start(context.Background(), testUser, c.ID); !errors.Is(err, campaign.ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}

func TestPauseOnlyFromSendingOrScheduled(t *testing.T) {
	svc, repo := newTestService(activeContact("a"))

	for _, status := range []domain.CampaignStatus{
		domain.CampaignDraft, domain.CampaignPaused, domain.CampaignCompleted, domain.CampaignFailed,
	} {
		c := mustCreate(t, svc, campaign.CreateInput{Name: "P-" + string(status)})
		repo.UpdateStatus(context.Background(), testUser, c.ID, status)

		_, err := svc.Pause(context.Background(), testUser, c.ID)
		var ise *campaign.InvalidStateError
		if !errors.As(err, &ise) {
			t.Fatalf("pause from %s: expected InvalidStateError, got %v", status, err)
		}
		got, _ := svc.Get(context.Background(), testUser, c.ID)
		if got.Status != status {
			t.Fatalf("pause from %s mutated status to %s", status, got.Status)
		}
	}

	for _, status := range []domain.CampaignStatus{domain.CampaignSending, domain.CampaignScheduled} {
		c := mustCreate(t, svc, campaign.CreateInput{Name: "OK-" + string(status)})
		repo.UpdateStatus(context.Background(), testUser, c.ID, status)
		paused, err := svc.Pause(context.Background(), testUser, c.ID)
		if err != nil {
			t.Fatalf("pause from %s: %v", status, err)
		}
		if paused.Status != domain.CampaignPaused {
			t.Fatalf("expected paused, got %s", paused.Status)
		}
	}
}

func TestResumeOnlyFromPaused(t *testing.T) {
	svc, repo := newTestService(activeContact("a"))
	c := mustCreate(t, svc, campaign.CreateInput{})

	if _, err := svc.Resume(context.Background(), testUser, c.ID); err == nil {
		t.Fatal("expected error resuming a draft")
	}

	repo.UpdateStatus(context.Background(), testUser, c.ID, domain.CampaignPaused)
	resumed, err := svc.Resume(context.Background(), testUser, c.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != domain.CampaignSending {
		t.Fatalf("expected sending (no future schedule), got %s", resumed.Status)
	}
}

func TestResumeFutureScheduleTargetsScheduled(t *testing.T) {
	future := time.Now().Add(2 * time.Hour)
	svc, repo := newTestService(activeContact("a"))
	c := mustCreate(t, svc, campaign.CreateInput{ScheduledAt: &future})
	repo.UpdateStatus(context.Background(), testUser, c.ID, domain.CampaignPaused)

	resumed, err := svc.Resume(context.Background(), testUser, c.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != domain.CampaignScheduled {
		t.Fatalf("expected scheduled, got %s", resumed.Status)
	}
}

func TestRerunResetsCountersAndRecomputes(t *testing.T) {
	svc, repo := newTestService(activeContact("a", "vip"), activeContact("b", "vip"), activeContact("c", "vip"))
	c := mustCreate(t, svc, campaign.CreateInput{TargetTags: []string{"vip"}})

	repo.mu.Lock()
	stored := repo.campaigns[c.ID]
	stored.Status = domain.CampaignCompleted
	stored.TotalRecipients = 100
	stored.TotalSent = 100
	stored.TotalOpened = 40
	stored.TotalClicked = 10
	now := time.Now()
	stored.SentAt, stored.CompletedAt = &now, &now
	repo.mu.Unlock()

	rerun, err := svc.Rerun(context.Background(), testUser, c.ID)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if rerun.Status != domain.CampaignDraft {
		t.Fatalf("expected draft, got %s", rerun.Status)
	}
	if rerun.TotalSent != 0 || rerun.TotalOpened != 0 || rerun.TotalClicked != 0 || rerun.TotalFailed != 0 {
		t.Fatalf("counters not reset: %+v", rerun)
	}
	if rerun.SentAt != nil || rerun.CompletedAt != nil || rerun.ScheduledAt != nil {
		t.Fatal("timestamps not cleared")
	}
	if rerun.TotalRecipients != 3 {
		t.Fatalf("expected recomputed recipients 3, got %d", rerun.TotalRecipients)
	}
}

func TestRerunOnlyFromTerminal(t *testing.T) {
	svc, repo := newTestService(activeContact("a"))
	c := mustCreate(t, svc, campaign.CreateInput{})
	repo.UpdateStatus(context.Background(), testUser, c.ID, domain.CampaignSending)

	_, err := svc.Rerun(context.Background(), testUser, c.ID)
	var ise *campaign.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestDuplicate(t *testing.T) {
	svc, repo := newTestService(activeContact("a", "vip"), activeContact("b", "vip"))
	c := mustCreate(t, svc, campaign.CreateInput{Name: "Spring Sale", TargetTags: []string{"vip"}})

	repo.mu.Lock()
	repo.campaigns[c.ID].Status = domain.CampaignCompleted
	repo.campaigns[c.ID].TotalSent = 50
	repo.campaigns[c.ID].TotalRecipients = 50
	repo.mu.Unlock()

	dup, err := svc.Duplicate(context.Background(), testUser, c.ID)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.Name != "Spring Sale (Copy)" {
		t.Fatalf("expected copy suffix, got %q", dup.Name)
	}
	if dup.Status != domain.CampaignDraft {
		t.Fatalf("expected draft, got %s", dup.Status)
	}
	if dup.TotalSent != 0 || dup.TotalOpened != 0 {
		t.Fatal("counters must not be copied")
	}
	if dup.TotalRecipients != 2 {
		t.Fatalf("expected recipients recomputed to 2, got %d", dup.TotalRecipients)
	}
	if dup.ID == c.ID {
		t.Fatal("duplicate must be a new campaign")
	}
}

func TestAnalyticsRates(t *testing.T) {
	svc, repo := newTestService(activeContact("a"))
	c := mustCreate(t, svc, campaign.CreateInput{})
	repo.mu.Lock()
	repo.campaigns[c.ID].TotalRecipients = 100
	repo.counts[c.ID] = campaign.LogCounts{Total: 100, Sent: 80, Opened: 40, Clicked: 10, Bounced: 4, Failed: 16}
	repo.mu.Unlock()

	a, err := svc.Analytics(context.Background(), testUser, c.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if a.OpenRate != 50 {
		t.Fatalf("open rate: got %f", a.OpenRate)
	}
	if a.ClickRate != 12.5 {
		t.Fatalf("click rate: got %f", a.ClickRate)
	}
	if a.BounceRate != 5 {
		t.Fatalf("bounce rate: got %f", a.BounceRate)
	}
	if a.DeliveryRate != 95 {
		t.Fatalf("delivery rate: got %f", a.DeliveryRate)
	}
	if a.ClickToOpenRate != 25 {
		t.Fatalf("click-to-open rate: got %f", a.ClickToOpenRate)
	}
}

func TestAnalyticsZeroSendsNoDivide(t *testing.T) {
	svc, _ := newTestService(activeContact("a"))
	c := mustCreate(t, svc, campaign.CreateInput{})
	a, err := svc.Analytics(context.Background(), testUser, c.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if a.OpenRate != 0 || a.ClickToOpenRate != 0 {
		t.Fatalf("expected zero rates, got %+v", a)
	}
}

func TestGetNotFound(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Get(context.Background(), testUser, "nonexistent"); err != campaign.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	svc, _ := newTestService()
	c := mustCreate(t, svc, campaign.CreateInput{})
	if _, err := svc.Get(context.Background(), "other-user", c.ID); err != campaign.ErrNotFound {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}
}
