package domain

import "time"

// ContactStatus enumerates the states a contact can be in.
type ContactStatus string

const (
	ContactActive       ContactStatus = "active"
	ContactUnsubscribed ContactStatus = "unsubscribed"
	ContactBounced      ContactStatus = "bounced"
	ContactComplained   ContactStatus = "complained"
)

// Contact represents a single CRM contact. Email is unique per user.
type Contact struct {
	ID        string        `json:"id" db:"id"`
	UserID    string        `json:"user_id" db:"user_id"`
	ListID    *string       `json:"list_id" db:"list_id"`
	Email     string        `json:"email" db:"email"`
	FirstName string        `json:"first_name" db:"first_name"`
	LastName  string        `json:"last_name" db:"last_name"`
	Company   string        `json:"company" db:"company"`
	Phone     string        `json:"phone" db:"phone"`
	Status    ContactStatus `json:"status" db:"status"`
	Tags      []string      `json:"tags" db:"tags"`

	// Score is a coarse engagement signal: +1 per first open, +3 per
	// first click. Monotonic except on merge, which takes the max.
	Score      int            `json:"score" db:"score"`
	DoNotEmail bool           `json:"do_not_email" db:"do_not_email"`
	CustomData map[string]any `json:"custom_data" db:"custom_data"`

	LastEngagedAt   *time.Time `json:"last_engaged_at" db:"last_engaged_at"`
	LastContactedAt *time.Time `json:"last_contacted_at" db:"last_contacted_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IsMailable reports whether the contact may receive campaign email.
func (c *Contact) IsMailable() bool {
	return c.Status == ContactActive && !c.DoNotEmail
}

// HasAnyTag reports whether the contact carries at least one of the given
// tags. An empty filter matches every contact.
func (c *Contact) HasAnyTag(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range c.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ContactList groups contacts for bulk assignment.
type ContactList struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description" db:"description"`
	ContactCount int       `json:"contact_count" db:"contact_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ActivityType enumerates the kinds of contact activity entries.
type ActivityType string

const (
	ActivityEmailSent     ActivityType = "email_sent"
	ActivityEmailOpened   ActivityType = "email_opened"
	ActivityEmailClicked  ActivityType = "email_clicked"
	ActivityUnsubscribed  ActivityType = "unsubscribed"
	ActivityNote          ActivityType = "note"
	ActivityStatusChanged ActivityType = "status_changed"
	ActivityMerged        ActivityType = "merged"
)

// ContactActivity is an append-only log entry on a contact's timeline.
// Never mutated or deleted except via contact deletion.
type ContactActivity struct {
	ID          string         `json:"id" db:"id"`
	ContactID   string         `json:"contact_id" db:"contact_id"`
	Type        ActivityType   `json:"type" db:"type"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	Metadata    map[string]any `json:"metadata" db:"metadata"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// DuplicateStatus enumerates the resolution states of a duplicate pair.
type DuplicateStatus string

const (
	DuplicatePending DuplicateStatus = "pending"
	DuplicateIgnored DuplicateStatus = "ignored"
	DuplicateMerged  DuplicateStatus = "merged"
)

// ContactDuplicate pairs two contacts suspected to be the same person.
// Mutated only by merge/ignore actions, never by tracking.
type ContactDuplicate struct {
	ID         string          `json:"id" db:"id"`
	UserID     string          `json:"user_id" db:"user_id"`
	ContactID1 string          `json:"contact_id_1" db:"contact_id_1"`
	ContactID2 string          `json:"contact_id_2" db:"contact_id_2"`
	Reason     string          `json:"reason" db:"reason"`
	Status     DuplicateStatus `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at" db:"resolved_at"`
}

// MergeStrategy selects which contact's fields win in a merge.
type MergeStrategy string

const (
	// MergePrimary keeps every non-null primary field and only fills
	// primary nulls from the secondary. Default.
	MergePrimary MergeStrategy = "primary"
	// MergeSecondary prefers the secondary's non-null fields everywhere
	// except id/userId.
	MergeSecondary MergeStrategy = "secondary"
	// MergeNewest fills primary nulls from the secondary, preferring
	// whichever value is non-null.
	MergeNewest MergeStrategy = "newest"
)
