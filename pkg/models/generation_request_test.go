package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    RequestStatus
		to      RequestStatus
		allowed bool
	}{
		{name: "pending to processing", from: RequestStatusPending, to: RequestStatusProcessing, allowed: true},
		{name: "pending to skipped via disable", from: RequestStatusPending, to: RequestStatusSkipped, allowed: true},
		{name: "pending straight to done", from: RequestStatusPending, to: RequestStatusDone, allowed: false},
		{name: "processing to done", from: RequestStatusProcessing, to: RequestStatusDone, allowed: true},
		{name: "processing to failed", from: RequestStatusProcessing, to: RequestStatusFailed, allowed: true},
		{name: "processing to skipped at attempt ceiling", from: RequestStatusProcessing, to: RequestStatusSkipped, allowed: true},
		{name: "failed back to processing on retry", from: RequestStatusFailed, to: RequestStatusProcessing, allowed: true},
		{name: "failed to skipped", from: RequestStatusFailed, to: RequestStatusSkipped, allowed: true},
		{name: "failed straight to done", from: RequestStatusFailed, to: RequestStatusDone, allowed: false},
		{name: "done is terminal", from: RequestStatusDone, to: RequestStatusProcessing, allowed: false},
		{name: "skipped is terminal", from: RequestStatusSkipped, to: RequestStatusProcessing, allowed: false},
		{name: "skipped cannot complete", from: RequestStatusSkipped, to: RequestStatusDone, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestRequestStatusIsTerminal(t *testing.T) {
	assert.True(t, RequestStatusDone.IsTerminal())
	assert.True(t, RequestStatusSkipped.IsTerminal())
	assert.False(t, RequestStatusPending.IsTerminal())
	assert.False(t, RequestStatusProcessing.IsTerminal())
	assert.False(t, RequestStatusFailed.IsTerminal())
}

func TestRequestStatusIsValid(t *testing.T) {
	assert.True(t, RequestStatusPending.IsValid())
	assert.False(t, RequestStatus("RUNNING").IsValid())
	assert.False(t, RequestStatus("").IsValid())
}
