// Package crm routes generic lead records to the configured CRM back-end.
//
// Every back-end implements Adapter and reports its outcome as a Result;
// transport failures never cross the adapter boundary as errors.
package crm

import (
	"context"
	"strings"
)

// Name identifies a supported CRM back-end.
type Name string

const (
	Zoho    Name = "zoho"
	HubSpot Name = "hubspot"
)

// DefaultLeadSource is sent when a record carries no lead source.
const DefaultLeadSource = "Telegram Bot"

// ParseName normalizes a configured CRM identifier.
func ParseName(s string) (Name, error) {
	switch n := Name(strings.ToLower(strings.TrimSpace(s))); n {
	case Zoho, HubSpot:
		return n, nil
	default:
		return n, &UnsupportedError{Name: s}
	}
}

// Payload is the CRM-specific field set sent to a back-end. Keys that are
// absent are not sent.
type Payload map[string]string

// Result is the uniform outcome of a create call.
type Result struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(id string) Result {
	return Result{Success: true, ID: id}
}

// Failed builds a failure result.
func Failed(message string) Result {
	return Result{Success: false, Message: message}
}

// Adapter creates one record in a specific CRM.
type Adapter interface {
	// Name returns the back-end this adapter talks to.
	Name() Name

	// CreateRecord sends the mapped payload. It makes a single attempt.
	CreateRecord(ctx context.Context, payload Payload) Result
}
