package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/pulsemail/internal/domain"
)

// EmailLogRepo owns the send-side of email_logs: the pending snapshot a run
// starts from and the sent/failed outcomes the worker writes back.
type EmailLogRepo struct{ db *sql.DB }

// NewEmailLogRepo creates a Postgres-backed email log repository.
func NewEmailLogRepo(db *sql.DB) *EmailLogRepo { return &EmailLogRepo{db: db} }

// InsertLogs writes a run's pending snapshot rows in one transaction. The
// caller mints the ids so queue jobs can reference their rows directly.
func (r *EmailLogRepo) InsertLogs(ctx context.Context, logs []domain.EmailLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO email_logs (id, campaign_id, contact_id, run_id, email, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`)
	if err != nil {
		return fmt.Errorf("prepare snapshot: %w", err)
	}
	defer stmt.Close()

	for _, l := range logs {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx, l.ID, l.CampaignID, l.ContactID, l.RunID, l.Email, l.Status); err != nil {
			return fmt.Errorf("snapshot recipient %s: %w", l.ContactID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// MarkSent records a successful delivery: the log row advances to sent, the
// campaign and run sent counters move, and the contact's last_contacted_at
// is stamped. The pending guard keeps a redelivered job from double counting.
func (r *EmailLogRepo) MarkSent(ctx context.Context, logID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark sent: %w", err)
	}
	defer tx.Rollback()

	var campaignID, contactID string
	var runID sql.NullString
	err = tx.QueryRowContext(ctx, `
		UPDATE email_logs SET status = 'sent', sent_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING campaign_id, contact_id, run_id
	`, logID).Scan(&campaignID, &contactID, &runID)
	if err == sql.ErrNoRows {
		return nil // already marked, nothing to count
	}
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE campaigns SET total_sent = total_sent + 1, updated_at = NOW() WHERE id = $1
	`, campaignID); err != nil {
		return fmt.Errorf("count sent on campaign: %w", err)
	}
	if runID.Valid {
		if _, err := tx.ExecContext(ctx, `
			UPDATE campaign_runs SET total_sent = total_sent + 1 WHERE id = $1
		`, runID.String); err != nil {
			return fmt.Errorf("count sent on run: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE contacts SET last_contacted_at = NOW(), updated_at = NOW() WHERE id = $1
	`, contactID); err != nil {
		return fmt.Errorf("stamp contact: %w", err)
	}

	return tx.Commit()
}

// MarkFailed records a permanently failed delivery attempt.
func (r *EmailLogRepo) MarkFailed(ctx context.Context, logID, reason string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark failed: %w", err)
	}
	defer tx.Rollback()

	var campaignID string
	err = tx.QueryRowContext(ctx, `
		UPDATE email_logs SET status = 'failed', error = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING campaign_id
	`, logID, reason).Scan(&campaignID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE campaigns SET total_failed = total_failed + 1, updated_at = NOW() WHERE id = $1
	`, campaignID); err != nil {
		return fmt.Errorf("count failed on campaign: %w", err)
	}

	return tx.Commit()
}

// PendingCount reports how many of a run's rows are still unprocessed.
func (r *EmailLogRepo) PendingCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM email_logs WHERE run_id = $1 AND status = 'pending'
	`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return n, nil
}

// SentCount reports how many of a run's rows made it out. Zero on a drained
// run means every delivery failed.
func (r *EmailLogRepo) SentCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM email_logs WHERE run_id = $1 AND sent_at IS NOT NULL
	`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sent count: %w", err)
	}
	return n, nil
}

// CompleteRun stamps completed_at and freezes the run's outcome counters
// from its own log rows.
func (r *EmailLogRepo) CompleteRun(ctx context.Context, runID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_runs r SET
			completed_at = NOW(),
			total_sent    = (SELECT COUNT(sent_at) FROM email_logs WHERE run_id = r.id),
			total_opened  = (SELECT COUNT(opened_at) FROM email_logs WHERE run_id = r.id),
			total_clicked = (SELECT COUNT(*) FROM email_logs WHERE run_id = r.id AND status = 'clicked')
		WHERE id = $1 AND completed_at IS NULL
	`, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// ListByCampaign returns a campaign's log rows, optionally narrowed to one
// run, newest first.
func (r *EmailLogRepo) ListByCampaign(ctx context.Context, campaignID, runID string, limit, offset int) ([]domain.EmailLog, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
		SELECT id, campaign_id, contact_id, run_id, email, status, COALESCE(error,''),
		       sent_at, opened_at, clicked_at, bounced_at, created_at
		FROM email_logs
		WHERE campaign_id = $1`
	args := []interface{}{campaignID}
	idx := 2
	if runID != "" {
		q += fmt.Sprintf(" AND run_id = $%d", idx)
		args = append(args, runID)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailLog
	for rows.Next() {
		var l domain.EmailLog
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.ContactID, &l.RunID, &l.Email,
			&l.Status, &l.Error, &l.SentAt, &l.OpenedAt, &l.ClickedAt, &l.BouncedAt,
			&l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan email log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
