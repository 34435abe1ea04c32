package model

import "errors"

// ValidationError marks a request rejected before any state mutation: bad
// table name, unsupported filter, malformed cron expression, restoring from
// a non-completed job.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation builds a ValidationError from a preformatted message.
func Validation(msg string) error { return &ValidationError{Msg: msg} }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
