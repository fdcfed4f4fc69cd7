package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/repository/postgres"
	"github.com/ignite/pulsemail/internal/service/campaign"
	"github.com/ignite/pulsemail/internal/service/contact"
	"github.com/ignite/pulsemail/internal/template"
)

// fakeCampaignRepo backs the campaign service with a map.
type fakeCampaignRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.Campaign
}

func (f *fakeCampaignRepo) Get(_ context.Context, userID, id string) (*domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != userID {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaignRepo) List(_ context.Context, userID string, _ campaign.ListFilter) ([]domain.Campaign, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Campaign
	for _, c := range f.rows {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (f *fakeCampaignRepo) Create(_ context.Context, c *domain.Campaign) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.rows[c.ID] = &cp
	return c.ID, nil
}

func (f *fakeCampaignRepo) Update(_ context.Context, userID, id string, u campaign.UpdateFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != userID {
		return campaign.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	return nil
}

func (f *fakeCampaignRepo) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != userID || c.Status != domain.CampaignDraft {
		return campaign.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeCampaignRepo) UpdateStatus(_ context.Context, userID, id string, status domain.CampaignStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != userID {
		return campaign.ErrNotFound
	}
	c.Status = status
	return nil
}

func (f *fakeCampaignRepo) SetRecipientCount(_ context.Context, userID, id string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.rows[id]; ok && c.UserID == userID {
		c.TotalRecipients = n
	}
	return nil
}

func (f *fakeCampaignRepo) ResetForRerun(_ context.Context, userID, id string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != userID || !c.IsTerminal() {
		return campaign.ErrNotFound
	}
	c.Status = domain.CampaignDraft
	c.TotalRecipients = n
	return nil
}

func (f *fakeCampaignRepo) CreateRun(_ context.Context, run *domain.CampaignRun) (*domain.CampaignRun, error) {
	run.RunNumber = 1
	return run, nil
}

func (f *fakeCampaignRepo) ListRuns(context.Context, string) ([]domain.CampaignRun, error) {
	return nil, nil
}

func (f *fakeCampaignRepo) LogCounts(_ context.Context, userID, id string) (*campaign.LogCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.rows[id]; !ok || c.UserID != userID {
		return nil, campaign.ErrNotFound
	}
	return &campaign.LogCounts{Total: 10, Sent: 10, Opened: 5, Clicked: 2}, nil
}

type fakeResolver struct{ contacts []domain.Contact }

func (f *fakeResolver) CountRecipients(context.Context, string, []string) (int, error) {
	return len(f.contacts), nil
}
func (f *fakeResolver) ListRecipients(context.Context, string, []string) ([]domain.Contact, error) {
	return f.contacts, nil
}

// fakeContactRepo implements just enough of the contact repository for the
// endpoints these tests hit; the rest return zero values.
type fakeContactRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.Contact
}

func (f *fakeContactRepo) Get(_ context.Context, userID, id string) (*domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != userID {
		return nil, contact.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeContactRepo) GetByEmail(_ context.Context, userID, email string) (*domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.rows {
		if c.UserID == userID && c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, contact.ErrNotFound
}

func (f *fakeContactRepo) List(_ context.Context, userID string, _ contact.ListFilter) ([]domain.Contact, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Contact
	for _, c := range f.rows {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (f *fakeContactRepo) ListAll(ctx context.Context, userID string) ([]domain.Contact, error) {
	out, _, err := f.List(ctx, userID, contact.ListFilter{})
	return out, err
}

func (f *fakeContactRepo) Create(_ context.Context, c *domain.Contact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.rows[c.ID] = &cp
	return c.ID, nil
}

func (f *fakeContactRepo) Update(context.Context, string, string, contact.UpdateFields) error {
	return nil
}

func (f *fakeContactRepo) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != userID {
		return contact.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeContactRepo) Merge(context.Context, string, *domain.Contact, string) error { return nil }

func (f *fakeContactRepo) BulkDelete(context.Context, string, []string) (int, error) { return 0, nil }
func (f *fakeContactRepo) BulkUpdateStatus(_ context.Context, _ string, ids []string, _ domain.ContactStatus) (int, error) {
	return len(ids), nil
}
func (f *fakeContactRepo) BulkAddTags(context.Context, string, []string, []string) (int, error) {
	return 0, nil
}
func (f *fakeContactRepo) BulkRemoveTags(context.Context, string, []string, []string) (int, error) {
	return 0, nil
}
func (f *fakeContactRepo) BulkMoveToList(context.Context, string, []string, *string) (int, error) {
	return 0, nil
}

func (f *fakeContactRepo) AppendActivity(context.Context, *domain.ContactActivity) error { return nil }
func (f *fakeContactRepo) ListActivities(context.Context, string, int) ([]domain.ContactActivity, error) {
	return nil, nil
}

func (f *fakeContactRepo) CreateDuplicate(context.Context, *domain.ContactDuplicate) (bool, error) {
	return true, nil
}
func (f *fakeContactRepo) ListDuplicates(context.Context, string, domain.DuplicateStatus) ([]domain.ContactDuplicate, error) {
	return nil, nil
}
func (f *fakeContactRepo) GetDuplicate(context.Context, string, string) (*domain.ContactDuplicate, error) {
	return nil, contact.ErrDuplicateNotFound
}
func (f *fakeContactRepo) ResolveDuplicate(context.Context, string, string, domain.DuplicateStatus) error {
	return nil
}

type fakeTemplates struct {
	mu   sync.Mutex
	rows map[string]*domain.Template
}

func (f *fakeTemplates) Get(_ context.Context, userID, id string) (*domain.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.UserID != userID {
		return nil, postgres.ErrTemplateNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTemplates) List(_ context.Context, userID string) ([]domain.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Template
	for _, t := range f.rows {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTemplates) Create(_ context.Context, t *domain.Template) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.rows[t.ID] = &cp
	return t.ID, nil
}

func (f *fakeTemplates) Update(context.Context, string, string, postgres.TemplateUpdate) error {
	return nil
}
func (f *fakeTemplates) Delete(context.Context, string, string) error { return nil }

type fakeDashboard struct{ err error }

func (f fakeDashboard) Stats(context.Context, string) (*postgres.DashboardStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &postgres.DashboardStats{TotalContacts: 42, EmailsSent: 100}, nil
}

type fakeLogs struct{}

func (fakeLogs) ListByCampaign(context.Context, string, string, int, int) ([]domain.EmailLog, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeCampaignRepo, *fakeContactRepo) {
	t.Helper()

	campRepo := &fakeCampaignRepo{rows: map[string]*domain.Campaign{}}
	contactRepo := &fakeContactRepo{rows: map[string]*domain.Contact{}}
	resolver := &fakeResolver{contacts: []domain.Contact{
		{ID: "ct-1", UserID: "u-1", Email: "a@example.com", Status: domain.ContactActive},
	}}

	h := NewHandlers(
		campaign.NewService(campRepo, resolver),
		contact.NewService(contactRepo),
		&fakeTemplates{rows: map[string]*domain.Template{}},
		fakeDashboard{},
		fakeLogs{},
		template.NewEngine(),
	)
	srv := httptest.NewServer(SetupRoutes(h, nil, "demo-user-id", false))
	t.Cleanup(srv.Close)
	return srv, campRepo, contactRepo
}

func doJSON(t *testing.T, method, url string, body interface{}, asUser string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if asUser != "" {
		req.Header.Set("x-user-id", asUser)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return res
}

func decodeBody(t *testing.T, res *http.Response, dst interface{}) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	res, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
}

func TestPrincipalFallsBackToDemoUser(t *testing.T) {
	srv, campRepo, _ := newTestServer(t)
	campRepo.rows["c-demo"] = &domain.Campaign{ID: "c-demo", UserID: "demo-user-id", Name: "Demo"}

	res := doJSON(t, http.MethodGet, srv.URL+"/api/campaigns", nil, "")
	var out PaginatedResponse
	decodeBody(t, res, &out)
	if out.Pagination.Total != 1 {
		t.Fatalf("demo tenant total = %d", out.Pagination.Total)
	}
}

func TestTenantIsolation(t *testing.T) {
	srv, campRepo, _ := newTestServer(t)
	campRepo.rows["c-1"] = &domain.Campaign{ID: "c-1", UserID: "u-1", Name: "Mine"}

	res := doJSON(t, http.MethodGet, srv.URL+"/api/campaigns/c-1", nil, "u-2")
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign tenant read: status = %d, want 404", res.StatusCode)
	}
}

func TestCreateCampaign(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res := doJSON(t, http.MethodPost, srv.URL+"/api/campaigns", map[string]interface{}{
		"name":        "Spring Sale",
		"target_tags": []string{"VIP", "vip", "new"},
	}, "u-1")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var c domain.Campaign
	decodeBody(t, res, &c)
	if c.Status != domain.CampaignDraft {
		t.Fatalf("status = %s, want draft", c.Status)
	}
	if len(c.TargetTags) != 2 {
		t.Fatalf("tags = %v, want deduped pair", c.TargetTags)
	}

	res = doJSON(t, http.MethodPost, srv.URL+"/api/campaigns", map[string]string{}, "u-1")
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("nameless create: status = %d", res.StatusCode)
	}
}

func TestStartRejectsNonDraft(t *testing.T) {
	srv, campRepo, _ := newTestServer(t)
	campRepo.rows["c-1"] = &domain.Campaign{
		ID: "c-1", UserID: "u-1", Name: "Done", Status: domain.CampaignCompleted,
	}

	res := doJSON(t, http.MethodPost, srv.URL+"/api/campaigns/c-1/start", nil, "u-1")
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("start completed campaign: status = %d, want 400", res.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body.Error, "completed") {
		t.Fatalf("error does not name the current status: %q", body.Error)
	}
}

func TestStartDraftWithTemplate(t *testing.T) {
	srv, campRepo, _ := newTestServer(t)
	tmplID := "tmpl-1"
	campRepo.rows["c-1"] = &domain.Campaign{
		ID: "c-1", UserID: "u-1", Name: "Go", Status: domain.CampaignDraft, TemplateID: &tmplID,
	}

	res := doJSON(t, http.MethodPost, srv.URL+"/api/campaigns/c-1/start", nil, "u-1")
	var c domain.Campaign
	decodeBody(t, res, &c)
	if c.Status != domain.CampaignSending {
		t.Fatalf("status = %s, want sending", c.Status)
	}
	if c.TotalRecipients != 1 {
		t.Fatalf("recipients = %d", c.TotalRecipients)
	}
}

func TestCreateContactValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res := doJSON(t, http.MethodPost, srv.URL+"/api/contacts", map[string]string{
		"email": "not-an-email",
	}, "u-1")
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad email: status = %d", res.StatusCode)
	}

	res = doJSON(t, http.MethodPost, srv.URL+"/api/contacts", map[string]string{
		"email": "ada@example.com",
	}, "u-1")
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d", res.StatusCode)
	}

	res = doJSON(t, http.MethodPost, srv.URL+"/api/contacts", map[string]string{
		"email": "ADA@example.com",
	}, "u-1")
	res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email: status = %d, want 409", res.StatusCode)
	}
}

func TestBulkRejectsUnknownAction(t *testing.T) {
	srv, _, _ := newTestServer(t)
	res := doJSON(t, http.MethodPost, srv.URL+"/api/contacts/bulk", map[string]interface{}{
		"action":      "explode",
		"contact_ids": []string{"ct-1"},
	}, "u-1")
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", res.StatusCode)
	}
}

func TestTemplateSyntaxRejectedAtSave(t *testing.T) {
	srv, _, _ := newTestServer(t)
	res := doJSON(t, http.MethodPost, srv.URL+"/api/templates", map[string]string{
		"name":      "Broken",
		"subject":   "ok",
		"html_body": "{% if %}",
	}, "u-1")
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(e.Error, "invalid html template") {
		t.Fatalf("error = %q", e.Error)
	}
}

func TestTemplatePreview(t *testing.T) {
	srv, _, _ := newTestServer(t)
	res := doJSON(t, http.MethodPost, srv.URL+"/api/templates/preview", map[string]interface{}{
		"subject":   "Hello {{ first_name }}",
		"html_body": "<p>{{ company | default: \"there\" }}</p>",
		"sample":    map[string]string{"first_name": "Ada"},
	}, "u-1")
	var out map[string]string
	decodeBody(t, res, &out)
	if out["subject"] != "Hello Ada" {
		t.Fatalf("subject = %q", out["subject"])
	}
	if out["html_body"] != "<p>there</p>" {
		t.Fatalf("html_body = %q", out["html_body"])
	}
}

func TestDashboardStats(t *testing.T) {
	srv, _, _ := newTestServer(t)
	res := doJSON(t, http.MethodGet, srv.URL+"/api/dashboard/stats", nil, "u-1")
	var stats postgres.DashboardStats
	decodeBody(t, res, &stats)
	if stats.TotalContacts != 42 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestStoreFailureCarriesDetails(t *testing.T) {
	h := NewHandlers(
		campaign.NewService(&fakeCampaignRepo{rows: map[string]*domain.Campaign{}}, &fakeResolver{}),
		contact.NewService(&fakeContactRepo{rows: map[string]*domain.Contact{}}),
		&fakeTemplates{rows: map[string]*domain.Template{}},
		fakeDashboard{err: errors.New("connection reset")},
		fakeLogs{},
		template.NewEngine(),
	)
	srv := httptest.NewServer(SetupRoutes(h, nil, "demo-user-id", false))
	defer srv.Close()

	res := doJSON(t, http.MethodGet, srv.URL+"/api/dashboard/stats", nil, "u-1")
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", res.StatusCode)
	}
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == "" || body.Details != "connection reset" {
		t.Fatalf("envelope = %+v, want underlying message in details", body)
	}
}

func TestAnalyticsDerivesRates(t *testing.T) {
	srv, campRepo, _ := newTestServer(t)
	campRepo.rows["c-1"] = &domain.Campaign{ID: "c-1", UserID: "u-1", Name: "N", Status: domain.CampaignCompleted}

	res := doJSON(t, http.MethodGet, srv.URL+"/api/campaigns/c-1/analytics", nil, "u-1")
	var a domain.CampaignAnalytics
	decodeBody(t, res, &a)
	if a.OpenRate != 50 {
		t.Fatalf("open rate = %v, want 50", a.OpenRate)
	}
	if a.ClickRate != 20 {
		t.Fatalf("click rate = %v, want 20", a.ClickRate)
	}
}

func TestUnknownCampaignIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	res := doJSON(t, http.MethodGet, srv.URL+"/api/campaigns/nope", nil, "u-1")
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", res.StatusCode)
	}
}
