package models

// Stage names double as queue stream suffixes and log/metric labels.
const (
	StagePromptSynth       = "prompt-generate"
	StageAssetGenerate     = "asset-generate"
	StageLocalize          = "localize"
	StageLinkIndex         = "link-index"
	StageRemediate         = "remediate"
	StageCategoryTranslate = "category-translate"
)

// Remediation modes
const (
	RemediateModeSingle = "single"
	RemediateModeBatch  = "batch"
)

// PromptGenerateJob asks the synthesizer for count ideas in one category.
type PromptGenerateJob struct {
	CategoryID string `json:"category_id" validate:"required"`
	Count      int    `json:"count,omitempty"`
}

// AssetGenerateJob carries one generation request into the generator stage.
type AssetGenerateJob struct {
	GenerationRequestID string `json:"generation_request_id" validate:"required"`
}

// LocalizeJob fans an asset out across locales. An empty Locales slice
// means the full supported set.
type LocalizeJob struct {
	AssetID string   `json:"asset_id" validate:"required"`
	Locales []string `json:"locales,omitempty"`
}

// LinkIndexJob recomputes the related-content index for one asset.
type LinkIndexJob struct {
	AssetID string `json:"asset_id" validate:"required"`
}

// RemediateJob repairs thin localized content, one row or a capped batch.
type RemediateJob struct {
	Mode             string `json:"mode" validate:"required,oneof=single batch"`
	LocalizedAssetID string `json:"localized_asset_id,omitempty"`
	Limit            int    `json:"limit,omitempty"`
}

// CategoryTranslateJob refreshes category translations for the given
// locales. An empty CategoryID means all active categories.
type CategoryTranslateJob struct {
	CategoryID string   `json:"category_id,omitempty"`
	Locales    []string `json:"locales,omitempty"`
}
