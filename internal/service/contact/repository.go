package contact

import (
	"context"

	"github.com/ignite/pulsemail/internal/domain"
)

// ListFilter narrows and pages contact listings.
type ListFilter struct {
	Search string // matches email, first name, last name, company
	Status domain.ContactStatus
	Tag    string
	ListID string
	Limit  int
	Offset int
}

// UpdateFields carries a partial contact update. Nil pointers are left
// untouched.
type UpdateFields struct {
	Email      *string               `json:"email"`
	FirstName  *string               `json:"first_name"`
	LastName   *string               `json:"last_name"`
	Company    *string               `json:"company"`
	Phone      *string               `json:"phone"`
	Status     *domain.ContactStatus `json:"status"`
	Tags       *[]string             `json:"tags"`
	ListID     *string               `json:"list_id"`
	DoNotEmail *bool                 `json:"do_not_email"`
	CustomData *map[string]any       `json:"custom_data"`
}

// Repository is the persistence contract for contacts, their activity
// timeline, and duplicate bookkeeping. Merge and the Bulk* methods must each
// run as a single transaction so a partial failure never leaves email logs
// reassigned without the secondary deleted, or half a bulk batch applied.
type Repository interface {
	Get(ctx context.Context, userID, id string) (*domain.Contact, error)
	GetByEmail(ctx context.Context, userID, email string) (*domain.Contact, error)
	List(ctx context.Context, userID string, f ListFilter) ([]domain.Contact, int, error)
	ListAll(ctx context.Context, userID string) ([]domain.Contact, error)
	Create(ctx context.Context, c *domain.Contact) (string, error)
	Update(ctx context.Context, userID, id string, u UpdateFields) error
	Delete(ctx context.Context, userID, id string) error

	// Merge applies the precomputed merged field set to the primary row,
	// reassigns the secondary's email_logs and contact_activities to the
	// primary, deletes the secondary, and marks any duplicate pair linking
	// the two as merged. All in one transaction.
	Merge(ctx context.Context, userID string, merged *domain.Contact, secondaryID string) error

	BulkDelete(ctx context.Context, userID string, ids []string) (int, error)
	BulkUpdateStatus(ctx context.Context, userID string, ids []string, status domain.ContactStatus) (int, error)
	BulkAddTags(ctx context.Context, userID string, ids []string, tags []string) (int, error)
	BulkRemoveTags(ctx context.Context, userID string, ids []string, tags []string) (int, error)
	BulkMoveToList(ctx context.Context, userID string, ids []string, listID *string) (int, error)

	AppendActivity(ctx context.Context, a *domain.ContactActivity) error
	ListActivities(ctx context.Context, contactID string, limit int) ([]domain.ContactActivity, error)

	// CreateDuplicate records a pending pair, reporting whether the pair is
	// new. Recording a known pair is a no-op and returns false.
	CreateDuplicate(ctx context.Context, d *domain.ContactDuplicate) (bool, error)
	ListDuplicates(ctx context.Context, userID string, status domain.DuplicateStatus) ([]domain.ContactDuplicate, error)
	GetDuplicate(ctx context.Context, userID, id string) (*domain.ContactDuplicate, error)
	ResolveDuplicate(ctx context.Context, userID, id string, status domain.DuplicateStatus) error
}
