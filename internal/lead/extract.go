package lead

import (
	"regexp"
)

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

var (
	emailPattern    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern    = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	nonDigitPattern = regexp.MustCompile(`\D`)
)

// Extraction is the best-effort result of scanning a free-text message.
// Name is never filled.
type Extraction struct {
	Name  string
	Email string
	Phone string
}

// Found reports whether at least one field was extracted.
func (e Extraction) Found() bool {
	return e.Name != "" || e.Email != "" || e.Phone != ""
}

// Record converts the extraction into a lead record.
func (e Extraction) Record() Record {
	return Record{
		Email: e.Email,
		Phone: e.Phone,
	}
}

// Extract pulls the first email address and the first phone number out of text.
// A phone number is kept only when it normalizes to 10..15 digits.
func Extract(text string) Extraction {
	var out Extraction

	if email := emailPattern.FindString(text); email != "" {
		out.Email = email
	}

	if raw := phonePattern.FindString(text); raw != "" {
		digits := NormalizePhone(raw)
		if len(digits) >= minPhoneDigits && len(digits) <= maxPhoneDigits {
			out.Phone = digits
		}
	}

	return out
}

// NormalizePhone strips every non-digit character.
func NormalizePhone(raw string) string {
	return nonDigitPattern.ReplaceAllString(raw, "")
}
