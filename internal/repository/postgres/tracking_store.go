package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/service/tracking"
)

// EngagementStore implements tracking.Store. The mark operations are single
// conditional UPDATEs whose affected-row count is the first-event signal, so
// two racing beacons for the same pair can never both count. With reruns a
// pair can own several log rows; the marks target the newest one.
type EngagementStore struct{ db *sql.DB }

// NewEngagementStore creates a Postgres-backed engagement store.
func NewEngagementStore(db *sql.DB) *EngagementStore { return &EngagementStore{db: db} }

const latestLogForPair = `
	SELECT id FROM email_logs
	WHERE campaign_id = $1 AND contact_id = $2
	ORDER BY created_at DESC LIMIT 1`

func (s *EngagementStore) MarkOpened(ctx context.Context, campaignID, contactID string) (*tracking.OpenResult, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_logs SET
			opened_at = NOW(),
			status = CASE WHEN status = 'sent' THEN 'opened' ELSE status END
		WHERE id = (`+latestLogForPair+`) AND opened_at IS NULL
	`, campaignID, contactID)
	if err != nil {
		return nil, fmt.Errorf("mark opened: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return &tracking.OpenResult{Found: true, FirstOpen: true}, nil
	}

	// Zero rows means either a repeat open or no log at all.
	var found bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM email_logs WHERE campaign_id = $1 AND contact_id = $2)
	`, campaignID, contactID).Scan(&found)
	if err != nil {
		return nil, fmt.Errorf("check log exists: %w", err)
	}
	return &tracking.OpenResult{Found: found}, nil
}

func (s *EngagementStore) MarkClicked(ctx context.Context, campaignID, contactID string) (*tracking.ClickResult, error) {
	// Backfill the open first: a click implies an open, e.g. when images
	// were blocked. Separate statement so its affected count tells us
	// whether the open still needs counting.
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_logs SET opened_at = NOW()
		WHERE id = (`+latestLogForPair+`) AND opened_at IS NULL
	`, campaignID, contactID)
	if err != nil {
		return nil, fmt.Errorf("backfill open: %w", err)
	}
	backfilled, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `
		UPDATE email_logs SET status = 'clicked', clicked_at = NOW()
		WHERE id = (`+latestLogForPair+`) AND status <> 'clicked'
	`, campaignID, contactID)
	if err != nil {
		return nil, fmt.Errorf("mark clicked: %w", err)
	}
	clicked, _ := res.RowsAffected()

	return &tracking.ClickResult{
		FirstClick:     clicked > 0,
		OpenBackfilled: backfilled > 0,
	}, nil
}

func (s *EngagementStore) IncrementCampaignCounters(ctx context.Context, campaignID string, opened, clicked int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET
			total_opened = total_opened + $1,
			total_clicked = total_clicked + $2,
			updated_at = NOW()
		WHERE id = $3
	`, opened, clicked, campaignID)
	if err != nil {
		return fmt.Errorf("increment campaign counters: %w", err)
	}
	return nil
}

func (s *EngagementStore) IncrementTemplateCounters(ctx context.Context, campaignID string, opened, clicked int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE templates SET
			total_opened = total_opened + $1,
			total_clicked = total_clicked + $2,
			updated_at = NOW()
		WHERE id = (SELECT template_id FROM campaigns WHERE id = $3)
	`, opened, clicked, campaignID)
	if err != nil {
		return fmt.Errorf("increment template counters: %w", err)
	}
	return nil
}

func (s *EngagementStore) IncrementCampaignUnsubscribed(ctx context.Context, campaignID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET total_unsubscribed = total_unsubscribed + 1, updated_at = NOW()
		WHERE id = $1
	`, campaignID)
	if err != nil {
		return fmt.Errorf("increment unsubscribed: %w", err)
	}
	return nil
}

func (s *EngagementStore) BumpContactScore(ctx context.Context, contactID string, delta int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE contacts SET score = score + $1, last_engaged_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`, delta, contactID)
	if err != nil {
		return fmt.Errorf("bump contact score: %w", err)
	}
	return nil
}

func (s *EngagementStore) TouchContactEngagement(ctx context.Context, contactID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE contacts SET last_engaged_at = NOW(), updated_at = NOW() WHERE id = $1
	`, contactID)
	if err != nil {
		return fmt.Errorf("touch engagement: %w", err)
	}
	return nil
}

func (s *EngagementStore) AppendActivity(ctx context.Context, a *domain.ContactActivity) error {
	// Same insert the contact repository uses.
	return (&ContactRepo{db: s.db}).AppendActivity(ctx, a)
}

func (s *EngagementStore) UnsubscribeContact(ctx context.Context, contactID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE contacts SET do_not_email = true, status = 'unsubscribed', updated_at = NOW()
		WHERE id = $1
	`, contactID)
	if err != nil {
		return fmt.Errorf("unsubscribe contact: %w", err)
	}
	return nil
}
