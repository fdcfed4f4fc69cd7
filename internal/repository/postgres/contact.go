package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/service/contact"
)

// ContactRepo implements contact.Repository against PostgreSQL. It also
// serves as the campaign recipient resolver.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = `
	id, user_id, list_id, email, COALESCE(first_name,''), COALESCE(last_name,''),
	COALESCE(company,''), COALESCE(phone,''), status, tags, score, do_not_email,
	custom_data, last_engaged_at, last_contacted_at, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*domain.Contact, error) {
	c := &domain.Contact{}
	var custom []byte
	err := row.Scan(
		&c.ID, &c.UserID, &c.ListID, &c.Email, &c.FirstName, &c.LastName,
		&c.Company, &c.Phone, &c.Status, pq.Array(&c.Tags), &c.Score, &c.DoNotEmail,
		&custom, &c.LastEngagedAt, &c.LastContactedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	if len(custom) > 0 {
		if err := json.Unmarshal(custom, &c.CustomData); err != nil {
			return nil, fmt.Errorf("decode custom data: %w", err)
		}
	}
	return c, nil
}

func encodeCustomData(data map[string]any) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode custom data: %w", err)
	}
	return b, nil
}

func (r *ContactRepo) Get(ctx context.Context, userID, id string) (*domain.Contact, error) {
	return scanContact(r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id = $1 AND user_id = $2
	`, id, userID))
}

func (r *ContactRepo) GetByEmail(ctx context.Context, userID, email string) (*domain.Contact, error) {
	return scanContact(r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE user_id = $1 AND email = $2
	`, userID, email))
}

func (r *ContactRepo) List(ctx context.Context, userID string, f contact.ListFilter) ([]domain.Contact, int, error) {
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
	if f.Tag != "" {
		where += fmt.Sprintf(" AND $%d = ANY(tags)", idx)
		args = append(args, f.Tag)
		idx++
	}
	if f.ListID != "" {
		where += fmt.Sprintf(" AND list_id = $%d", idx)
		args = append(args, f.ListID)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(
			" AND (email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d OR company ILIKE $%d)",
			idx, idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	q := `SELECT ` + contactColumns + ` FROM contacts` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *ContactRepo) ListAll(ctx context.Context, userID string) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *ContactRepo) Create(ctx context.Context, c *domain.Contact) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	custom, err := encodeCustomData(c.CustomData)
	if err != nil {
		return "", err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO contacts
			(id, user_id, list_id, email, first_name, last_name, company, phone,
			 status, tags, score, do_not_email, custom_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`, c.ID, c.UserID, c.ListID, c.Email, c.FirstName, c.LastName, c.Company, c.Phone,
		c.Status, pq.Array(c.Tags), c.Score, c.DoNotEmail, custom)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return "", contact.ErrEmailExists
		}
		return "", fmt.Errorf("create contact: %w", err)
	}
	return c.ID, nil
}

func (r *ContactRepo) Update(ctx context.Context, userID, id string, u contact.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Email != nil {
		add("email", *u.Email)
	}
	if u.FirstName != nil {
		add("first_name", *u.FirstName)
	}
	if u.LastName != nil {
		add("last_name", *u.LastName)
	}
	if u.Company != nil {
		add("company", *u.Company)
	}
	if u.Phone != nil {
		add("phone", *u.Phone)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.Tags != nil {
		add("tags", pq.Array(*u.Tags))
	}
	if u.ListID != nil {
		add("list_id", *u.ListID)
	}
	if u.DoNotEmail != nil {
		add("do_not_email", *u.DoNotEmail)
	}
	if u.CustomData != nil {
		custom, err := encodeCustomData(*u.CustomData)
		if err != nil {
			return err
		}
		add("custom_data", custom)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	q := fmt.Sprintf("UPDATE contacts SET %s WHERE id = $%d AND user_id = $%d",
		joinComma(sets), idx, idx+1)
	args = append(args, id, userID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM contacts WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

// Merge runs the whole fold as one transaction: merged fields onto the
// primary, email logs and activities reassigned, secondary deleted, any
// duplicate pair marked merged. Reassignment happens before deletion so the
// foreign keys never dangle.
func (r *ContactRepo) Merge(ctx context.Context, userID string, merged *domain.Contact, secondaryID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	custom, err := encodeCustomData(merged.CustomData)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE contacts SET
			email = $1, first_name = $2, last_name = $3, company = $4, phone = $5,
			status = $6, tags = $7, score = $8, do_not_email = $9, custom_data = $10,
			list_id = $11, last_engaged_at = $12, last_contacted_at = $13,
			updated_at = NOW()
		WHERE id = $14 AND user_id = $15
	`, merged.Email, merged.FirstName, merged.LastName, merged.Company, merged.Phone,
		merged.Status, pq.Array(merged.Tags), merged.Score, merged.DoNotEmail, custom,
		merged.ListID, merged.LastEngagedAt, merged.LastContactedAt,
		merged.ID, userID)
	if err != nil {
		return fmt.Errorf("apply merged fields: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contact.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE email_logs SET contact_id = $1 WHERE contact_id = $2
	`, merged.ID, secondaryID); err != nil {
		return fmt.Errorf("reassign email logs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE contact_activities SET contact_id = $1 WHERE contact_id = $2
	`, merged.ID, secondaryID); err != nil {
		return fmt.Errorf("reassign activities: %w", err)
	}

	res, err = tx.ExecContext(ctx, `
		DELETE FROM contacts WHERE id = $1 AND user_id = $2
	`, secondaryID, userID)
	if err != nil {
		return fmt.Errorf("delete secondary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contact.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE contact_duplicates
		SET status = 'merged', resolved_at = NOW()
		WHERE user_id = $1 AND status = 'pending'
		  AND ((contact_id_1 = $2 AND contact_id_2 = $3)
		    OR (contact_id_1 = $3 AND contact_id_2 = $2))
	`, userID, merged.ID, secondaryID); err != nil {
		return fmt.Errorf("resolve duplicate pair: %w", err)
	}

	return tx.Commit()
}

func (r *ContactRepo) BulkDelete(ctx context.Context, userID string, ids []string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM contacts WHERE user_id = $1 AND id = ANY($2)
	`, userID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("bulk delete: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *ContactRepo) BulkUpdateStatus(ctx context.Context, userID string, ids []string, status domain.ContactStatus) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET status = $1, updated_at = NOW()
		WHERE user_id = $2 AND id = ANY($3)
	`, status, userID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("bulk update status: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *ContactRepo) BulkAddTags(ctx context.Context, userID string, ids []string, tags []string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET tags = (SELECT COALESCE(array_agg(DISTINCT t), '{}')
		            FROM unnest(tags || $1::text[]) AS t),
		    updated_at = NOW()
		WHERE user_id = $2 AND id = ANY($3)
	`, pq.Array(tags), userID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("bulk add tags: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *ContactRepo) BulkRemoveTags(ctx context.Context, userID string, ids []string, tags []string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET tags = (SELECT COALESCE(array_agg(t), '{}')
		            FROM unnest(tags) AS t
		            WHERE t <> ALL($1::text[])),
		    updated_at = NOW()
		WHERE user_id = $2 AND id = ANY($3)
	`, pq.Array(tags), userID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("bulk remove tags: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *ContactRepo) BulkMoveToList(ctx context.Context, userID string, ids []string, listID *string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET list_id = $1, updated_at = NOW()
		WHERE user_id = $2 AND id = ANY($3)
	`, listID, userID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("bulk move to list: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *ContactRepo) AppendActivity(ctx context.Context, a *domain.ContactActivity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	meta, err := encodeCustomData(a.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO contact_activities
			(id, contact_id, type, title, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, a.ID, a.ContactID, a.Type, a.Title, a.Description, meta)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (r *ContactRepo) ListActivities(ctx context.Context, contactID string, limit int) ([]domain.ContactActivity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contact_id, type, title, COALESCE(description,''), metadata, created_at
		FROM contact_activities
		WHERE contact_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, contactID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []domain.ContactActivity
	for rows.Next() {
		var a domain.ContactActivity
		var meta []byte
		if err := rows.Scan(&a.ID, &a.ContactID, &a.Type, &a.Title, &a.Description, &meta, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Metadata); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ContactRepo) CreateDuplicate(ctx context.Context, d *domain.ContactDuplicate) (bool, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO contact_duplicates
			(id, user_id, contact_id_1, contact_id_2, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (contact_id_1, contact_id_2) DO NOTHING
	`, d.ID, d.UserID, d.ContactID1, d.ContactID2, d.Reason, d.Status)
	if err != nil {
		return false, fmt.Errorf("create duplicate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create duplicate: %w", err)
	}
	return n > 0, nil
}

func (r *ContactRepo) ListDuplicates(ctx context.Context, userID string, status domain.DuplicateStatus) ([]domain.ContactDuplicate, error) {
	q := `
		SELECT id, user_id, contact_id_1, contact_id_2, COALESCE(reason,''),
		       status, created_at, resolved_at
		FROM contact_duplicates
		WHERE user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		q += ` AND status = $2`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list duplicates: %w", err)
	}
	defer rows.Close()

	var out []domain.ContactDuplicate
	for rows.Next() {
		var d domain.ContactDuplicate
		if err := rows.Scan(&d.ID, &d.UserID, &d.ContactID1, &d.ContactID2, &d.Reason,
			&d.Status, &d.CreatedAt, &d.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan duplicate: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *ContactRepo) GetDuplicate(ctx context.Context, userID, id string) (*domain.ContactDuplicate, error) {
	d := &domain.ContactDuplicate{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, contact_id_1, contact_id_2, COALESCE(reason,''),
		       status, created_at, resolved_at
		FROM contact_duplicates
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&d.ID, &d.UserID, &d.ContactID1, &d.ContactID2, &d.Reason,
		&d.Status, &d.CreatedAt, &d.ResolvedAt)
	if err == sql.ErrNoRows {
		return nil, contact.ErrDuplicateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get duplicate: %w", err)
	}
	return d, nil
}

func (r *ContactRepo) ResolveDuplicate(ctx context.Context, userID, id string, status domain.DuplicateStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contact_duplicates SET status = $1, resolved_at = NOW()
		WHERE id = $2 AND user_id = $3
	`, status, id, userID)
	if err != nil {
		return fmt.Errorf("resolve duplicate: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrDuplicateNotFound
	}
	return nil
}

// CountRecipients implements campaign.RecipientResolver: active contacts
// holding at least one target tag. An empty tag set matches everyone.
func (r *ContactRepo) CountRecipients(ctx context.Context, userID string, targetTags []string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM contacts
		WHERE user_id = $1 AND status = 'active'
		  AND (cardinality($2::text[]) = 0 OR tags && $2::text[])
	`, userID, pq.Array(targetTags)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	return n, nil
}

// ListRecipients returns the resolved recipient rows for execution. Always a
// fresh query; membership is never cached.
func (r *ContactRepo) ListRecipients(ctx context.Context, userID string, targetTags []string) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE user_id = $1 AND status = 'active'
		  AND (cardinality($2::text[]) = 0 OR tags && $2::text[])
		ORDER BY created_at
	`, userID, pq.Array(targetTags))
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
