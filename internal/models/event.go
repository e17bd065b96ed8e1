package models

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Venue       string    `json:"venue"`
	Date        string    `json:"date"` // free text as entered by the editor
	Time        *string   `json:"time"` // free text, nil when not given
	IsFeatured  bool      `json:"is_featured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TimeText returns the time string or "" when unset.
func (e Event) TimeText() string {
	if e.Time == nil {
		return ""
	}
	return *e.Time
}
