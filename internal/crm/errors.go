package crm

import (
	"errors"
	"fmt"
)

// ErrUnsupportedCRM is matched by UnsupportedError.
var ErrUnsupportedCRM = errors.New("unsupported CRM")

// UnsupportedError reports a CRM identifier that has no adapter.
type UnsupportedError struct {
	Name string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported CRM %q (expected %q or %q)", e.Name, Zoho, HubSpot)
}

// Is lets errors.Is match ErrUnsupportedCRM.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupportedCRM
}

// TokenError reports that an OAuth access token could not be obtained.
type TokenError struct {
	Op  string
	Err error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token %s: %v", e.Op, e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// IsTokenError reports whether err carries a TokenError.
func IsTokenError(err error) bool {
	var te *TokenError
	return errors.As(err, &te)
}
