package chat

import (
	"time"
)

// Translation is a localized content record attached to a parent content
// item (program page, news item, ...). One translation per locale per parent.
type Translation struct {
	ID        string    `json:"id" db:"id"`
	ParentID  string    `json:"parent_id" db:"parent_id"`
	Locale    string    `json:"locale" db:"locale"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
