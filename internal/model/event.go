package model

import (
	"time"

	"github.com/leadbot/crm-assistant/internal/lead"
)

// CaptureMode says how a lead was gathered.
type CaptureMode string

const (
	ModeGuided  CaptureMode = "guided"
	ModeOneShot CaptureMode = "oneshot"
)

// LeadEvent records one CRM submission attempt.
type LeadEvent struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	CRM       string      `json:"crm"`
	Mode      CaptureMode `json:"mode"`
	Success   bool        `json:"success"`
	RecordID  string      `json:"record_id,omitempty"`
	Message   string      `json:"message,omitempty"`
	Lead      lead.Record `json:"lead"`
	CreatedAt time.Time   `json:"created_at"`

	// JetStream metadata (populated on read)
	Sequence uint64 `json:"sequence,omitempty"`
}

// Outcome is the subject token for the event result.
func (e *LeadEvent) Outcome() string {
	if e.Success {
		return "created"
	}
	return "failed"
}

// ListLeadEventsResponse is the response for listing lead events.
type ListLeadEventsResponse struct {
	Events       []LeadEvent `json:"events"`
	HasMore      bool        `json:"has_more"`
	LastSequence uint64      `json:"last_sequence"`
}
