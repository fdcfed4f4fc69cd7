package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// DashboardStats is the aggregate view on the dashboard landing page. All
// numbers are computed live, nothing is cached.
type DashboardStats struct {
	TotalContacts    int     `json:"total_contacts"`
	ActiveContacts   int     `json:"active_contacts"`
	TotalCampaigns   int     `json:"total_campaigns"`
	ActiveCampaigns  int     `json:"active_campaigns"`
	EmailsSent       int     `json:"emails_sent"`
	EmailsOpened     int     `json:"emails_opened"`
	EmailsClicked    int     `json:"emails_clicked"`
	AverageOpenRate  float64 `json:"average_open_rate"`
	AverageClickRate float64 `json:"average_click_rate"`
}

// DashboardRepo aggregates per-tenant stats across contacts, campaigns, and
// email logs.
type DashboardRepo struct{ db *sql.DB }

// NewDashboardRepo creates a Postgres-backed dashboard repository.
func NewDashboardRepo(db *sql.DB) *DashboardRepo { return &DashboardRepo{db: db} }

func (r *DashboardRepo) Stats(ctx context.Context, userID string) (*DashboardStats, error) {
	s := &DashboardStats{}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'active')
		FROM contacts WHERE user_id = $1
	`, userID).Scan(&s.TotalContacts, &s.ActiveContacts)
	if err != nil {
		return nil, fmt.Errorf("contact stats: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status IN ('scheduled','sending','paused'))
		FROM campaigns WHERE user_id = $1
	`, userID).Scan(&s.TotalCampaigns, &s.ActiveCampaigns)
	if err != nil {
		return nil, fmt.Errorf("campaign stats: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(l.sent_at), COUNT(l.opened_at),
		       COUNT(*) FILTER (WHERE l.status = 'clicked')
		FROM email_logs l
		JOIN campaigns c ON c.id = l.campaign_id
		WHERE c.user_id = $1
	`, userID).Scan(&s.EmailsSent, &s.EmailsOpened, &s.EmailsClicked)
	if err != nil {
		return nil, fmt.Errorf("email stats: %w", err)
	}

	if s.EmailsSent > 0 {
		s.AverageOpenRate = float64(s.EmailsOpened) / float64(s.EmailsSent) * 100
		s.AverageClickRate = float64(s.EmailsClicked) / float64(s.EmailsSent) * 100
	}
	return s, nil
}
