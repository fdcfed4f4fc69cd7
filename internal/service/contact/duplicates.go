package contact

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/pulsemail/internal/domain"
)

// ScanDuplicates sweeps the user's contacts for likely duplicates and
// records each suspect pair as pending. Emails are unique per user, so the
// scan keys on matching full names and matching phone numbers. Returns the
// number of newly recorded pairs; re-recording a known pair is a no-op.
func (s *Service) ScanDuplicates(ctx context.Context, userID string) (int, error) {
	contacts, err := s.repo.ListAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list contacts: %w", err)
	}

	byName := make(map[string][]string)
	byPhone := make(map[string][]string)
	for _, c := range contacts {
		if name := normalizeName(c.FirstName, c.LastName); name != "" {
			byName[name] = append(byName[name], c.ID)
		}
		if phone := normalizePhone(c.Phone); phone != "" {
			byPhone[phone] = append(byPhone[phone], c.ID)
		}
	}

	created := 0
	record := func(ids []string, reason string) error {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				id1, id2 := ids[i], ids[j]
				if id2 < id1 {
					id1, id2 = id2, id1
				}
				inserted, err := s.repo.CreateDuplicate(ctx, &domain.ContactDuplicate{
					ID:         uuid.New().String(),
					UserID:     userID,
					ContactID1: id1,
					ContactID2: id2,
					Reason:     reason,
					Status:     domain.DuplicatePending,
				})
				if err != nil {
					return err
				}
				if inserted {
					created++
				}
			}
		}
		return nil
	}

	for _, ids := range byName {
		if len(ids) > 1 {
			if err := record(ids, "matching name"); err != nil {
				return created, err
			}
		}
	}
	for _, ids := range byPhone {
		if len(ids) > 1 {
			if err := record(ids, "matching phone"); err != nil {
				return created, err
			}
		}
	}
	return created, nil
}

// Duplicates lists the user's duplicate pairs, optionally filtered by status.
func (s *Service) Duplicates(ctx context.Context, userID string, status domain.DuplicateStatus) ([]domain.ContactDuplicate, error) {
	return s.repo.ListDuplicates(ctx, userID, status)
}

// IgnoreDuplicate marks a pending pair as not-a-duplicate.
func (s *Service) IgnoreDuplicate(ctx context.Context, userID, id string) error {
	if _, err := s.repo.GetDuplicate(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.ResolveDuplicate(ctx, userID, id, domain.DuplicateIgnored)
}

// MergeDuplicate resolves a pending pair by merging contact 2 into contact 1.
// The repository's merge transaction marks the pair merged.
func (s *Service) MergeDuplicate(ctx context.Context, userID, id string, strategy domain.MergeStrategy) (*domain.Contact, error) {
	pair, err := s.repo.GetDuplicate(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.Merge(ctx, userID, MergeInput{
		PrimaryContactID:   pair.ContactID1,
		SecondaryContactID: pair.ContactID2,
		MergeStrategy:      strategy,
	})
}

func normalizeName(first, last string) string {
	first = strings.ToLower(strings.TrimSpace(first))
	last = strings.ToLower(strings.TrimSpace(last))
	if first == "" || last == "" {
		return ""
	}
	return first + " " + last
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < 7 {
		return ""
	}
	return b.String()
}
