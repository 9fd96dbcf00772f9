package models

import "time"

// AssetStatus is the publication state of an Asset. The transition
// DRAFT -> PUBLISHED is one-way; there is no unpublish.
type AssetStatus string

const (
	AssetStatusDraft     AssetStatus = "DRAFT"
	AssetStatusPublished AssetStatus = "PUBLISHED"
)

func (s AssetStatus) IsValid() bool {
	return s == AssetStatusDraft || s == AssetStatusPublished
}

// Asset is a generated content item in its canonical (origin-locale)
// representation. Created DRAFT by the generator; flipped to PUBLISHED
// exactly once when the default locale has been localized.
type Asset struct {
	ID           string      `json:"id" db:"id"`
	Slug         string      `json:"slug" db:"slug"`
	Title        string      `json:"title" db:"title"`
	Description  *string     `json:"description,omitempty" db:"description"`
	CategorySlug string      `json:"category_slug" db:"category_slug"`
	OriginLocale string      `json:"origin_locale" db:"origin_locale"`
	ImageURL     string      `json:"image_url" db:"image_url"`
	Status       AssetStatus `json:"status" db:"status"`
	Published    bool        `json:"published" db:"published"`
	PublishedAt  *time.Time  `json:"published_at,omitempty" db:"published_at"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time  `json:"deleted_at,omitempty" db:"deleted_at"`

	// Populated on read when requested; not a column.
	Tags []Tag `json:"tags,omitempty" db:"-"`
}

// CreateAssetRequest is the request for creating a draft asset
type CreateAssetRequest struct {
	Slug         string `json:"slug" validate:"required"`
	Title        string `json:"title" validate:"required"`
	CategorySlug string `json:"category_slug" validate:"required"`
	OriginLocale string `json:"origin_locale" validate:"required"`
	ImageURL     string `json:"image_url" validate:"required"`
}

// AssetListResponse is the response for listing assets
type AssetListResponse struct {
	Items      []Asset `json:"items"`
	TotalCount int     `json:"total_count"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
}
