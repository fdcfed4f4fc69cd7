package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/pulsemail/internal/domain"
)

// ErrTemplateNotFound is returned for an unknown template id.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateRepo provides template CRUD. Templates are plain content rows;
// their business logic lives in the renderer, so no service layer sits on
// top of this repository.
type TemplateRepo struct{ db *sql.DB }

// NewTemplateRepo creates a Postgres-backed template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

const templateColumns = `
	id, user_id, name, COALESCE(subject,''), COALESCE(html_body,''),
	COALESCE(text_body,''), COALESCE(preview_text,''),
	total_opened, total_clicked, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (*domain.Template, error) {
	t := &domain.Template{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.Name, &t.Subject, &t.HTMLBody,
		&t.TextBody, &t.PreviewText,
		&t.TotalOpened, &t.TotalClicked, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) Get(ctx context.Context, userID, id string) (*domain.Template, error) {
	return scanTemplate(r.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE id = $1 AND user_id = $2
	`, id, userID))
}

func (r *TemplateRepo) List(ctx context.Context, userID string) ([]domain.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TemplateRepo) Create(ctx context.Context, t *domain.Template) (string, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO templates
			(id, user_id, name, subject, html_body, text_body, preview_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`, t.ID, t.UserID, t.Name, t.Subject, t.HTMLBody, t.TextBody, t.PreviewText)
	if err != nil {
		return "", fmt.Errorf("create template: %w", err)
	}
	return t.ID, nil
}

// TemplateUpdate carries a partial template update.
type TemplateUpdate struct {
	Name        *string `json:"name"`
	Subject     *string `json:"subject"`
	HTMLBody    *string `json:"html_body"`
	TextBody    *string `json:"text_body"`
	PreviewText *string `json:"preview_text"`
}

func (r *TemplateRepo) Update(ctx context.Context, userID, id string, u TemplateUpdate) error {
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
	if u.Subject != nil {
		add("subject", *u.Subject)
	}
	if u.HTMLBody != nil {
		add("html_body", *u.HTMLBody)
	}
	if u.TextBody != nil {
		add("text_body", *u.TextBody)
	}
	if u.PreviewText != nil {
		add("preview_text", *u.PreviewText)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	q := fmt.Sprintf("UPDATE templates SET %s WHERE id = $%d AND user_id = $%d",
		joinComma(sets), idx, idx+1)
	args = append(args, id, userID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *TemplateRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM templates WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrTemplateNotFound
	}
	return nil
}
