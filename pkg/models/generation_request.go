package models

import "time"

// RequestStatus is the lifecycle state of a GenerationRequest.
// DONE and SKIPPED are terminal.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "PENDING"
	RequestStatusProcessing RequestStatus = "PROCESSING"
	RequestStatusDone       RequestStatus = "DONE"
	RequestStatusFailed     RequestStatus = "FAILED"
	RequestStatusSkipped    RequestStatus = "SKIPPED"
)

// IsTerminal returns true once the request can never be picked up again
// without an administrative reset.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusDone || s == RequestStatusSkipped
}

// IsValid returns true for a known status value.
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusPending, RequestStatusProcessing, RequestStatusDone, RequestStatusFailed, RequestStatusSkipped:
		return true
	}
	return false
}

// CanTransitionTo enforces the request state machine:
// PENDING -> PROCESSING -> {DONE | FAILED | SKIPPED}, FAILED -> PROCESSING.
// Terminal states have no outgoing edges.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch s {
	case RequestStatusPending:
		return next == RequestStatusProcessing || next == RequestStatusSkipped
	case RequestStatusProcessing:
		return next == RequestStatusDone || next == RequestStatusFailed || next == RequestStatusSkipped
	case RequestStatusFailed:
		return next == RequestStatusProcessing || next == RequestStatusSkipped
	}
	return false
}

// GenerationRequest is one deduplicated unit of work for the generator.
// Created by prompt synthesis; mutated only by the generator stage.
type GenerationRequest struct {
	ID          string        `json:"id" db:"id"`
	CategoryID  string        `json:"category_id" db:"category_id"`
	Topic       string        `json:"topic" db:"topic"`
	PromptText  string        `json:"prompt_text" db:"prompt_text"`
	Locale      string        `json:"locale" db:"locale"`
	ContentHash string        `json:"content_hash" db:"content_hash"`
	Status      RequestStatus `json:"status" db:"status"`
	Attempts    int           `json:"attempts" db:"attempts"`
	LastError   *string       `json:"last_error,omitempty" db:"last_error"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// CreateGenerationRequest is the request for persisting a new generation request
type CreateGenerationRequest struct {
	CategoryID  string `json:"category_id" validate:"required"`
	Topic       string `json:"topic" validate:"required"`
	PromptText  string `json:"prompt_text" validate:"required"`
	Locale      string `json:"locale" validate:"required"`
	ContentHash string `json:"content_hash" validate:"required"`
}

// GenerationRequestListResponse is the response for listing generation requests
type GenerationRequestListResponse struct {
	Items      []GenerationRequest `json:"items"`
	TotalCount int                 `json:"total_count"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
}
