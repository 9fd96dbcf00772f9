// Package ai defines the contracts for the external model gateway the
// pipeline stages call: idea synthesis, artifact rendering, tagging,
// translation, and description repair.
package ai

import "context"

// Idea is one generated topic/prompt pair.
type Idea struct {
	Topic      string `json:"topic"`
	PromptText string `json:"prompt_text"`
}

// IdeaRequest carries a category's generation config to the idea generator.
type IdeaRequest struct {
	Category         string   `json:"category"`
	Locale           string   `json:"locale"`
	Count            int      `json:"count"`
	StylePreset      string   `json:"style_preset,omitempty"`
	SeedKeywords     []string `json:"seed_keywords,omitempty"`
	NegativeKeywords []string `json:"negative_keywords,omitempty"`
}

// IdeaGenerator produces deduplicatable topic/prompt ideas for a category.
type IdeaGenerator interface {
	GenerateIdeas(ctx context.Context, req IdeaRequest) ([]Idea, error)
}

// ImageGenerator renders one artifact from a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, promptText string) ([]byte, string, error)
}

// TagResult is the enrichment output for a freshly generated asset.
type TagResult struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Tagger enriches a topic with a title, description, and tag set.
type Tagger interface {
	Tag(ctx context.Context, topic, locale string) (*TagResult, error)
}

// CanonicalContent is the origin-locale content handed to the translator.
type CanonicalContent struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	AltText     string   `json:"alt_text,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// TranslatedTag is one tag's translation in a target locale.
type TranslatedTag struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Translation is one locale's translated presentation.
type Translation struct {
	Locale         string          `json:"locale"`
	Title          string          `json:"title"`
	Slug           string          `json:"slug"`
	SeoTitle       string          `json:"seo_title"`
	SeoDescription string          `json:"seo_description"`
	AltText        string          `json:"alt_text"`
	Description    string          `json:"description"`
	Tags           []TranslatedTag `json:"tags,omitempty"`
	Category       string          `json:"category,omitempty"`
}

// Translator translates canonical content into a batch of locales.
// Locales absent from the result are treated as failed by the caller.
type Translator interface {
	Translate(ctx context.Context, content CanonicalContent, locales []string) ([]Translation, error)
}

// ExistingFields carries the current (possibly thin) localized fields to
// the describer so it can fill only what is missing.
type ExistingFields struct {
	Description    string `json:"description,omitempty"`
	SeoTitle       string `json:"seo_title,omitempty"`
	SeoDescription string `json:"seo_description,omitempty"`
}

// DescribeResult is the repaired field set for a thin localization.
type DescribeResult struct {
	Description    string `json:"description"`
	SeoTitle       string `json:"seo_title"`
	SeoDescription string `json:"seo_description"`
}

// Describer rewrites missing or under-length SEO fields.
type Describer interface {
	Describe(ctx context.Context, title, locale string, existing ExistingFields) (*DescribeResult, error)
}
