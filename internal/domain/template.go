package domain

import "time"

// Template holds reusable email content. The open/click counters mirror
// EmailLog first events for this template across every campaign using it.
type Template struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Name         string    `json:"name" db:"name"`
	Subject      string    `json:"subject" db:"subject"`
	HTMLBody     string    `json:"html_body" db:"html_body"`
	TextBody     string    `json:"text_body" db:"text_body"`
	PreviewText  string    `json:"preview_text" db:"preview_text"`
	TotalOpened  int       `json:"total_opened" db:"total_opened"`
	TotalClicked int       `json:"total_clicked" db:"total_clicked"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// User is the tenant partition key for every owned entity.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Picture   string    `json:"picture" db:"picture"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
