package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// LocalizedAsset is one locale's translated presentation of an Asset.
// Unique per (asset_id, locale); created and overwritten by the
// localization stage and by the quality remediator.
type LocalizedAsset struct {
	ID             string     `json:"id" db:"id"`
	AssetID        string     `json:"asset_id" db:"asset_id"`
	Locale         string     `json:"locale" db:"locale"`
	Slug           string     `json:"slug" db:"slug"`
	Title          string     `json:"title" db:"title"`
	SeoTitle       *string    `json:"seo_title,omitempty" db:"seo_title"`
	SeoDescription *string    `json:"seo_description,omitempty" db:"seo_description"`
	AltText        *string    `json:"alt_text,omitempty" db:"alt_text"`
	Description    *string    `json:"description,omitempty" db:"description"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsThin reports whether the localized content is incomplete: a missing
// SEO title or description, or a description under minDescriptionLength
// characters, marks the row as remediation-eligible.
func (l *LocalizedAsset) IsThin(minDescriptionLength int) bool {
	if l.SeoTitle == nil || strings.TrimSpace(*l.SeoTitle) == "" {
		return true
	}
	if l.SeoDescription == nil || strings.TrimSpace(*l.SeoDescription) == "" {
		return true
	}
	// Length is counted in characters, matching char_length on the SQL side.
	if l.Description == nil || utf8.RuneCountInString(strings.TrimSpace(*l.Description)) < minDescriptionLength {
		return true
	}
	return false
}

// UpsertLocalizedAssetRequest is the request for creating/overwriting a localization
type UpsertLocalizedAssetRequest struct {
	AssetID        string  `json:"asset_id" validate:"required"`
	Locale         string  `json:"locale" validate:"required"`
	Slug           string  `json:"slug" validate:"required"`
	Title          string  `json:"title" validate:"required"`
	SeoTitle       *string `json:"seo_title,omitempty"`
	SeoDescription *string `json:"seo_description,omitempty"`
	AltText        *string `json:"alt_text,omitempty"`
	Description    *string `json:"description,omitempty"`
}
