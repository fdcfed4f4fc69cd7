package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestMarkOpenedFirstOpen(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewEngagementStore(db)

	mock.ExpectExec("UPDATE email_logs SET").
		WithArgs("camp-1", "contact-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := store.MarkOpened(context.Background(), "camp-1", "contact-1")
	if err != nil {
		t.Fatalf("MarkOpened: %v", err)
	}
	if !res.Found || !res.FirstOpen {
		t.Fatalf("result = %+v, want found first open", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMarkOpenedRepeatOpen(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewEngagementStore(db)

	// Conditional update touches nothing, row exists: repeat open.
	mock.ExpectExec("UPDATE email_logs SET").
		WithArgs("camp-1", "contact-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("camp-1", "contact-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	res, err := store.MarkOpened(context.Background(), "camp-1", "contact-1")
	if err != nil {
		t.Fatalf("MarkOpened: %v", err)
	}
	if !res.Found || res.FirstOpen {
		t.Fatalf("result = %+v, want found repeat open", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMarkOpenedMissingRow(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewEngagementStore(db)

	mock.ExpectExec("UPDATE email_logs SET").
		WithArgs("camp-1", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("camp-1", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	res, err := store.MarkOpened(context.Background(), "camp-1", "ghost")
	if err != nil {
		t.Fatalf("MarkOpened: %v", err)
	}
	if res.Found {
		t.Fatalf("result = %+v, want not found", res)
	}
}

func TestMarkClickedBackfillsOpen(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewEngagementStore(db)

	// opened_at was null: both conditional updates land.
	mock.ExpectExec("UPDATE email_logs SET opened_at").
		WithArgs("camp-1", "contact-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE email_logs SET status = 'clicked'").
		WithArgs("camp-1", "contact-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := store.MarkClicked(context.Background(), "camp-1", "contact-1")
	if err != nil {
		t.Fatalf("MarkClicked: %v", err)
	}
	if !res.FirstClick || !res.OpenBackfilled {
		t.Fatalf("result = %+v, want first click with backfill", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMarkClickedAfterOpen(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewEngagementStore(db)

	// opened_at already set, status not yet clicked.
	mock.ExpectExec("UPDATE email_logs SET opened_at").
		WithArgs("camp-1", "contact-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE email_logs SET status = 'clicked'").
		WithArgs("camp-1", "contact-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := store.MarkClicked(context.Background(), "camp-1", "contact-1")
	if err != nil {
		t.Fatalf("MarkClicked: %v", err)
	}
	if !res.FirstClick || res.OpenBackfilled {
		t.Fatalf("result = %+v, want first click without backfill", res)
	}
}

func TestMarkClickedRepeat(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewEngagementStore(db)

	mock.ExpectExec("UPDATE email_logs SET opened_at").
		WithArgs("camp-1", "contact-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE email_logs SET status = 'clicked'").
		WithArgs("camp-1", "contact-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := store.MarkClicked(context.Background(), "camp-1", "contact-1")
	if err != nil {
		t.Fatalf("MarkClicked: %v", err)
	}
	if res.FirstClick || res.OpenBackfilled {
		t.Fatalf("result = %+v, want no-op", res)
	}
}
