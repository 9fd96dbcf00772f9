package models

import "time"

// Tag is a canonical tag shared across assets.
type Tag struct {
	ID        string    `json:"id" db:"id"`
	Slug      string    `json:"slug" db:"slug"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LocalizedTag is one locale's name/slug translation of a canonical tag.
type LocalizedTag struct {
	ID        string    `json:"id" db:"id"`
	TagID     string    `json:"tag_id" db:"tag_id"`
	Locale    string    `json:"locale" db:"locale"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
