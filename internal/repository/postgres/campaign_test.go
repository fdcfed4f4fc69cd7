package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/service/campaign"
)

func TestUpdateStatusStampsSentAt(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepo(db)

	mock.ExpectExec("sent_at = COALESCE").
		WithArgs(domain.CampaignSending, "camp-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), "user-1", "camp-1", domain.CampaignSending); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusStampsCompletedAt(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepo(db)

	mock.ExpectExec("completed_at = NOW").
		WithArgs(domain.CampaignCompleted, "camp-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), "user-1", "camp-1", domain.CampaignCompleted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
}

func TestUpdateStatusUnknownCampaign(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepo(db)

	mock.ExpectExec("UPDATE campaigns SET status").
		WithArgs(domain.CampaignPaused, "ghost", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "user-1", "ghost", domain.CampaignPaused)
	if !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResetForRerunOnlyTerminal(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepo(db)

	// The status guard is in the statement itself; a non-terminal campaign
	// matches zero rows.
	mock.ExpectExec("status IN \\('completed','failed'\\)").
		WithArgs(42, "camp-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ResetForRerun(context.Background(), "user-1", "camp-1", 42)
	if !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRunAssignsNextNumber(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepo(db)

	started := time.Now()
	mock.ExpectQuery("INSERT INTO campaign_runs").
		WithArgs("run-1", "camp-1", 100, started).
		WillReturnRows(sqlmock.NewRows([]string{"run_number"}).AddRow(3))

	run, err := repo.CreateRun(context.Background(), &domain.CampaignRun{
		ID:              "run-1",
		CampaignID:      "camp-1",
		TotalRecipients: 100,
		StartedAt:       started,
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.RunNumber != 3 {
		t.Fatalf("run_number = %d, want 3", run.RunNumber)
	}
}

func TestLogCounts(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepo(db)

	mock.ExpectQuery("FROM email_logs l").
		WithArgs("camp-1", "user-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"total", "sent", "opened", "clicked", "bounced", "failed"},
		).AddRow(100, 95, 40, 10, 3, 2))

	counts, err := repo.LogCounts(context.Background(), "user-1", "camp-1")
	if err != nil {
		t.Fatalf("LogCounts: %v", err)
	}
	if counts.Sent != 95 || counts.Opened != 40 || counts.Clicked != 10 {
		t.Fatalf("counts = %+v", counts)
	}
}
