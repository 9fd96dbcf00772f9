package models

import "time"

// RelatedLinkType distinguishes the two ranking strategies behind the
// related-content index.
type RelatedLinkType string

const (
	RelatedLinkTypeTag      RelatedLinkType = "TAG_RELATED"
	RelatedLinkTypeCategory RelatedLinkType = "CATEGORY_RELATED"
)

func (t RelatedLinkType) IsValid() bool {
	return t == RelatedLinkTypeTag || t == RelatedLinkTypeCategory
}

// RelatedLink is a precomputed, weighted, directed edge between two
// published assets. Unique per (from_asset_id, to_asset_id, type, locale);
// owned entirely by the link indexer.
type RelatedLink struct {
	ID          string          `json:"id" db:"id"`
	FromAssetID string          `json:"from_asset_id" db:"from_asset_id"`
	ToAssetID   string          `json:"to_asset_id" db:"to_asset_id"`
	Type        RelatedLinkType `json:"type" db:"type"`
	Locale      string          `json:"locale" db:"locale"`
	Weight      int             `json:"weight" db:"weight"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// RelatedAsset is a read-model row joining a related link with the
// target asset's localized presentation.
type RelatedAsset struct {
	AssetID  string          `json:"asset_id" db:"asset_id"`
	Slug     string          `json:"slug" db:"slug"`
	Title    string          `json:"title" db:"title"`
	ImageURL string          `json:"image_url" db:"image_url"`
	Locale   string          `json:"locale" db:"locale"`
	Type     RelatedLinkType `json:"type" db:"type"`
	Weight   int             `json:"weight" db:"weight"`
}
