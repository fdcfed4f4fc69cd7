package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `
	id, user_id, template_id, name, COALESCE(description,''),
	COALESCE(from_name,''), COALESCE(from_email,''), target_tags, status,
	total_recipients, total_sent, total_failed, total_opened, total_clicked,
	total_unsubscribed, scheduled_at, sent_at, completed_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.TemplateID, &c.Name, &c.Description,
		&c.FromName, &c.FromEmail, pq.Array(&c.TargetTags), &c.Status,
		&c.TotalRecipients, &c.TotalSent, &c.TotalFailed, &c.TotalOpened,
		&c.TotalClicked, &c.TotalUnsubscribed,
		&c.ScheduledAt, &c.SentAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, userID, id string) (*domain.Campaign, error) {
	return scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1 AND user_id = $2
	`, id, userID))
}

// GetByID fetches a campaign without a tenant guard. Worker-only: queue
// jobs carry no principal, the campaign row itself names its owner.
func (r *CampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	return scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1
	`, id))
}

// ListDueScheduled returns scheduled campaigns whose time has come, across
// all tenants. Used by the scheduler tick.
func (r *CampaignRepo) ListDueScheduled(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list due scheduled: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) List(ctx context.Context, userID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ` WHERE user_id = $1`
	args := []interface{}{userID}
	idx := 2
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, user_id, template_id, name, description, from_name, from_email,
			 target_tags, status, total_recipients, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`, c.ID, c.UserID, c.TemplateID, c.Name, c.Description, c.FromName, c.FromEmail,
		pq.Array(c.TargetTags), c.Status, c.TotalRecipients, c.ScheduledAt)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}

func (r *CampaignRepo) Update(ctx context.Context, userID, id string, u campaign.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.FromName != nil {
		add("from_name", *u.FromName)
	}
	if u.FromEmail != nil {
		add("from_email", *u.FromEmail)
	}
	if u.TemplateID != nil {
		add("template_id", *u.TemplateID)
	}
	if u.TargetTags != nil {
		add("target_tags", pq.Array(*u.TargetTags))
	}
	if u.ScheduledAt != nil {
		add("scheduled_at", *u.ScheduledAt)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	q := fmt.Sprintf("UPDATE campaigns SET %s WHERE id = $%d AND user_id = $%d",
		joinComma(sets), idx, idx+1)
	args = append(args, id, userID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM campaigns
		WHERE id = $1 AND user_id = $2 AND status = 'draft'
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, userID, id string, status domain.CampaignStatus) error {
	q := `UPDATE campaigns SET status = $1, updated_at = NOW()`
	switch status {
	case domain.CampaignSending:
		q += `, sent_at = COALESCE(sent_at, NOW())`
	case domain.CampaignCompleted, domain.CampaignFailed:
		q += `, completed_at = NOW()`
	}
	q += ` WHERE id = $2 AND user_id = $3`

	res, err := r.db.ExecContext(ctx, q, status, id, userID)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) SetRecipientCount(ctx context.Context, userID, id string, n int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET total_recipients = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
	`, n, id, userID)
	if err != nil {
		return fmt.Errorf("set recipient count: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// ResetForRerun is a single statement so a rerun can never leave the row
// half reset. Email logs are deliberately untouched.
func (r *CampaignRepo) ResetForRerun(ctx context.Context, userID, id string, totalRecipients int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			status = 'draft',
			total_recipients = $1,
			total_sent = 0, total_failed = 0,
			total_opened = 0, total_clicked = 0, total_unsubscribed = 0,
			scheduled_at = NULL, sent_at = NULL, completed_at = NULL,
			updated_at = NOW()
		WHERE id = $2 AND user_id = $3 AND status IN ('completed','failed')
	`, totalRecipients, id, userID)
	if err != nil {
		return fmt.Errorf("reset campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) CreateRun(ctx context.Context, run *domain.CampaignRun) (*domain.CampaignRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO campaign_runs
			(id, campaign_id, run_number, total_recipients, started_at)
		SELECT $1, $2, COALESCE(MAX(run_number), 0) + 1, $3, $4
		FROM campaign_runs WHERE campaign_id = $2
		RETURNING run_number
	`, run.ID, run.CampaignID, run.TotalRecipients, run.StartedAt).Scan(&run.RunNumber)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

func (r *CampaignRepo) ListRuns(ctx context.Context, campaignID string) ([]domain.CampaignRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, run_number, total_recipients,
		       total_sent, total_opened, total_clicked, started_at, completed_at
		FROM campaign_runs
		WHERE campaign_id = $1
		ORDER BY run_number DESC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignRun
	for rows.Next() {
		var run domain.CampaignRun
		if err := rows.Scan(
			&run.ID, &run.CampaignID, &run.RunNumber, &run.TotalRecipients,
			&run.TotalSent, &run.TotalOpened, &run.TotalClicked,
			&run.StartedAt, &run.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) LogCounts(ctx context.Context, userID, id string) (*campaign.LogCounts, error) {
	c := &campaign.LogCounts{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(l.sent_at),
		       COUNT(l.opened_at),
		       COUNT(*) FILTER (WHERE l.status = 'clicked'),
		       COUNT(*) FILTER (WHERE l.status = 'bounced'),
		       COUNT(*) FILTER (WHERE l.status = 'failed')
		FROM email_logs l
		JOIN campaigns c ON c.id = l.campaign_id
		WHERE l.campaign_id = $1 AND c.user_id = $2
	`, id, userID).Scan(&c.Total, &c.Sent, &c.Opened, &c.Clicked, &c.Bounced, &c.Failed)
	if err != nil {
		return nil, fmt.Errorf("log counts: %w", err)
	}
	return c, nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
