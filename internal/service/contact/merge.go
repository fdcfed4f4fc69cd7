package contact

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/pulsemail/internal/domain"
)

// MergeInput identifies the two contacts to merge and how to resolve
// conflicting fields.
type MergeInput struct {
	PrimaryContactID   string               `json:"primary_contact_id"`
	SecondaryContactID string               `json:"secondary_contact_id"`
	MergeStrategy      domain.MergeStrategy `json:"merge_strategy"`
}

// Merge folds the secondary contact into the primary: the merged field set is
// computed per strategy, tag sets are unioned, the higher score wins, the
// secondary's email logs and activities are reassigned to the primary, and
// the secondary row is deleted. The repository runs the whole sequence in
// one transaction, so a failure leaves both contacts untouched.
func (s *Service) Merge(ctx context.Context, userID string, input MergeInput) (*domain.Contact, error) {
	if input.PrimaryContactID == "" || input.SecondaryContactID == "" {
		return nil, fmt.Errorf("primary_contact_id and secondary_contact_id are required")
	}
	if input.PrimaryContactID == input.SecondaryContactID {
		return nil, ErrSelfMerge
	}

	strategy := input.MergeStrategy
	if strategy == "" {
		strategy = domain.MergePrimary
	}
	switch strategy {
	case domain.MergePrimary, domain.MergeSecondary, domain.MergeNewest:
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", input.MergeStrategy)
	}

	primary, err := s.repo.Get(ctx, userID, input.PrimaryContactID)
	if err != nil {
		return nil, err
	}
	secondary, err := s.repo.Get(ctx, userID, input.SecondaryContactID)
	if err != nil {
		return nil, err
	}

	merged := mergeContacts(primary, secondary, strategy)
	if err := s.repo.Merge(ctx, userID, merged, secondary.ID); err != nil {
		return nil, fmt.Errorf("merge contacts: %w", err)
	}

	// The timeline entry rides outside the transaction; losing it does not
	// invalidate the merge itself.
	_ = s.repo.AppendActivity(ctx, &domain.ContactActivity{
		ID:        uuid.New().String(),
		ContactID: merged.ID,
		Type:      domain.ActivityMerged,
		Title:     "Contact merged",
		Description: fmt.Sprintf("Merged %s into this contact (%s strategy)",
			secondary.Email, strategy),
		Metadata: map[string]any{
			"secondary_contact_id": secondary.ID,
			"strategy":             string(strategy),
		},
	})

	return s.repo.Get(ctx, userID, merged.ID)
}

// mergeContacts computes the surviving field set. Identity (id, user_id) and
// created_at always come from the primary.
func mergeContacts(p, sec *domain.Contact, strategy domain.MergeStrategy) *domain.Contact {
	out := *p

	switch strategy {
	case domain.MergeSecondary:
		out.Email = pickString(sec.Email, p.Email)
		out.FirstName = pickString(sec.FirstName, p.FirstName)
		out.LastName = pickString(sec.LastName, p.LastName)
		out.Company = pickString(sec.Company, p.Company)
		out.Phone = pickString(sec.Phone, p.Phone)
		out.Status = sec.Status
		out.ListID = pickStringPtr(sec.ListID, p.ListID)
	default:
		// primary and newest both keep the primary's non-empty fields and
		// only fill its gaps from the secondary.
		out.FirstName = pickString(p.FirstName, sec.FirstName)
		out.LastName = pickString(p.LastName, sec.LastName)
		out.Company = pickString(p.Company, sec.Company)
		out.Phone = pickString(p.Phone, sec.Phone)
		out.ListID = pickStringPtr(p.ListID, sec.ListID)
	}

	out.Tags = normalizeTags(append(append([]string(nil), p.Tags...), sec.Tags...))
	if sec.Score > out.Score {
		out.Score = sec.Score
	}
	// A suppression on either side survives the merge.
	out.DoNotEmail = p.DoNotEmail || sec.DoNotEmail
	out.CustomData = mergeCustomData(p.CustomData, sec.CustomData, strategy)
	out.LastEngagedAt = laterTime(p.LastEngagedAt, sec.LastEngagedAt)
	out.LastContactedAt = laterTime(p.LastContactedAt, sec.LastContactedAt)

	return &out
}

func mergeCustomData(primary, secondary map[string]any, strategy domain.MergeStrategy) map[string]any {
	if len(primary) == 0 && len(secondary) == 0 {
		return nil
	}
	out := make(map[string]any, len(primary)+len(secondary))
	lower, upper := secondary, primary
	if strategy == domain.MergeSecondary {
		lower, upper = primary, secondary
	}
	for k, v := range lower {
		out[k] = v
	}
	for k, v := range upper {
		out[k] = v
	}
	return out
}

func pickString(first, second string) string {
	if first != "" {
		return first
	}
	return second
}

func pickStringPtr(first, second *string) *string {
	if first != nil && *first != "" {
		return first
	}
	return second
}

func laterTime(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}
