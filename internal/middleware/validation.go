package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/leadbot/crm-assistant/internal/crm"
)

// Limits on inbound webhook fields.
const (
	MaxMessageBytes = 4096
	MaxUserIDBytes  = 128
	MaxEventsPage   = 100
)

// ValidateMessageText validates chat message text.
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("text cannot be empty")
	}
	if len(text) > MaxMessageBytes {
		return errors.New("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	return nil
}

// ValidateUserID validates a chat user ID.
func ValidateUserID(id string) error {
	if len(id) == 0 {
		return errors.New("user ID cannot be empty")
	}
	if len(id) > MaxUserIDBytes {
		return errors.New("user ID exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("user ID must be valid UTF-8")
	}
	return nil
}

// ValidateCRMFilter validates an optional CRM filter.
func ValidateCRMFilter(name string) error {
	if name == "" {
		return nil
	}
	if _, err := crm.ParseName(name); err != nil {
		return errors.New("unknown CRM")
	}
	return nil
}

// ValidateLimit validates a page size.
func ValidateLimit(limit int) error {
	if limit < 1 || limit > MaxEventsPage {
		return errors.New("limit must be between 1 and 100")
	}
	return nil
}
