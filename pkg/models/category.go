package models

import (
	"time"

	"github.com/lib/pq"
)

// Category is the generation config for one topic area. Read-mostly;
// edited by operators through the admin API.
type Category struct {
	ID               string         `json:"id" db:"id"`
	Slug             string         `json:"slug" db:"slug"`
	Name             string         `json:"name" db:"name"`
	Locale           string         `json:"locale" db:"locale"`
	DailyQuota       int            `json:"daily_quota" db:"daily_quota"`
	IsActive         bool           `json:"is_active" db:"is_active"`
	StylePreset      string         `json:"style_preset" db:"style_preset"`
	SeedKeywords     pq.StringArray `json:"seed_keywords" db:"seed_keywords"`
	NegativeKeywords pq.StringArray `json:"negative_keywords" db:"negative_keywords"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time     `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CreateCategoryRequest is the request for creating/upserting a category
type CreateCategoryRequest struct {
	Slug             string   `json:"slug" validate:"required"`
	Name             string   `json:"name" validate:"required"`
	Locale           string   `json:"locale" validate:"required"`
	DailyQuota       int      `json:"daily_quota" validate:"gte=0"`
	IsActive         bool     `json:"is_active"`
	StylePreset      string   `json:"style_preset"`
	SeedKeywords     []string `json:"seed_keywords,omitempty"`
	NegativeKeywords []string `json:"negative_keywords,omitempty"`
}

// UpdateCategoryRequest is the request for partially updating a category
type UpdateCategoryRequest struct {
	Name             *string  `json:"name,omitempty"`
	DailyQuota       *int     `json:"daily_quota,omitempty" validate:"omitempty,gte=0"`
	IsActive         *bool    `json:"is_active,omitempty"`
	StylePreset      *string  `json:"style_preset,omitempty"`
	SeedKeywords     []string `json:"seed_keywords,omitempty"`
	NegativeKeywords []string `json:"negative_keywords,omitempty"`
}

// LocalizedCategory is one locale's translation of a category
type LocalizedCategory struct {
	ID         string    `json:"id" db:"id"`
	CategoryID string    `json:"category_id" db:"category_id"`
	Locale     string    `json:"locale" db:"locale"`
	Name       string    `json:"name" db:"name"`
	Slug       string    `json:"slug" db:"slug"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// CategoryListResponse is the response for listing categories
type CategoryListResponse struct {
	Items      []Category `json:"items"`
	TotalCount int        `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}
