// Package contact implements CRM contact management: CRUD, bulk operations,
// CSV import, duplicate detection, and the transactional merge flow.
package contact

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/pulsemail/internal/domain"
)

// Service implements contact business logic on top of the repository.
type Service struct {
	repo Repository
}

// NewService creates a contact service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a single contact.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Contact, error) {
	return s.repo.Get(ctx, userID, id)
}

// List returns contacts matching the filter plus the unpaged total.
func (s *Service) List(ctx context.Context, userID string, f ListFilter) ([]domain.Contact, int, error) {
	return s.repo.List(ctx, userID, f)
}

// CreateInput holds the fields for creating a new contact.
type CreateInput struct {
	Email      string         `json:"email"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Company    string         `json:"company"`
	Phone      string         `json:"phone"`
	Tags       []string       `json:"tags"`
	ListID     string         `json:"list_id"`
	CustomData map[string]any `json:"custom_data"`
}

// Create validates and persists a new active contact. Email is unique per
// user; a clash returns ErrEmailExists.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*domain.Contact, error) {
	email := normalizeEmail(input.Email)
	if !validEmail(email) {
		return nil, fmt.Errorf("invalid email %q", input.Email)
	}
	if existing, err := s.repo.GetByEmail(ctx, userID, email); err == nil && existing != nil {
		return nil, ErrEmailExists
	}

	c := &domain.Contact{
		ID:         uuid.New().String(),
		UserID:     userID,
		Email:      email,
		FirstName:  strings.TrimSpace(input.FirstName),
		LastName:   strings.TrimSpace(input.LastName),
		Company:    strings.TrimSpace(input.Company),
		Phone:      strings.TrimSpace(input.Phone),
		Status:     domain.ContactActive,
		Tags:       normalizeTags(input.Tags),
		CustomData: input.CustomData,
	}
	if input.ListID != "" {
		c.ListID = &input.ListID
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

// Update modifies mutable contact fields.
func (s *Service) Update(ctx context.Context, userID, id string, u UpdateFields) error {
	if u.Email != nil {
		email := normalizeEmail(*u.Email)
		if !validEmail(email) {
			return fmt.Errorf("invalid email %q", *u.Email)
		}
		u.Email = &email
	}
	if u.Tags != nil {
		norm := normalizeTags(*u.Tags)
		u.Tags = &norm
	}
	return s.repo.Update(ctx, userID, id, u)
}

// Delete removes a contact and cascades to its email logs and activities.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

// Activities returns the contact's timeline, newest first.
func (s *Service) Activities(ctx context.Context, userID, id string, limit int) ([]domain.ContactActivity, error) {
	if _, err := s.repo.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListActivities(ctx, id, limit)
}

// AddNote appends a free-form note to the contact's timeline.
func (s *Service) AddNote(ctx context.Context, userID, id, title, description string) error {
	if _, err := s.repo.Get(ctx, userID, id); err != nil {
		return err
	}
	if title == "" {
		title = "Note"
	}
	return s.repo.AppendActivity(ctx, &domain.ContactActivity{
		ID:          uuid.New().String(),
		ContactID:   id,
		Type:        domain.ActivityNote,
		Title:       title,
		Description: description,
	})
}

// BulkInput is the payload of a bulk contact operation.
type BulkInput struct {
	Action     string   `json:"action"`
	ContactIDs []string `json:"contact_ids"`
	Data       BulkData `json:"data"`
}

// BulkData carries the action-specific arguments.
type BulkData struct {
	Status string   `json:"status"`
	Tags   []string `json:"tags"`
	ListID *string  `json:"list_id"`
}

// Bulk applies one operation to a set of contacts and returns how many rows
// were affected. Each action runs as a single transaction in the repository.
func (s *Service) Bulk(ctx context.Context, userID string, input BulkInput) (int, error) {
	if len(input.ContactIDs) == 0 {
		return 0, fmt.Errorf("contact_ids is required")
	}

	switch input.Action {
	case "delete":
		return s.repo.BulkDelete(ctx, userID, input.ContactIDs)
	case "update_status":
		status := domain.ContactStatus(input.Data.Status)
		switch status {
		case domain.ContactActive, domain.ContactUnsubscribed, domain.ContactBounced, domain.ContactComplained:
		default:
			return 0, fmt.Errorf("invalid status %q", input.Data.Status)
		}
		return s.repo.BulkUpdateStatus(ctx, userID, input.ContactIDs, status)
	case "add_tags":
		tags := normalizeTags(input.Data.Tags)
		if len(tags) == 0 {
			return 0, fmt.Errorf("tags is required for add_tags")
		}
		return s.repo.BulkAddTags(ctx, userID, input.ContactIDs, tags)
	case "remove_tags":
		tags := normalizeTags(input.Data.Tags)
		if len(tags) == 0 {
			return 0, fmt.Errorf("tags is required for remove_tags")
		}
		return s.repo.BulkRemoveTags(ctx, userID, input.ContactIDs, tags)
	case "move_to_list":
		return s.repo.BulkMoveToList(ctx, userID, input.ContactIDs, input.Data.ListID)
	default:
		return 0, fmt.Errorf("unknown bulk action %q", input.Action)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
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
