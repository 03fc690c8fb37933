package extract

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by this package wraps exactly one of them.
var (
	ErrMalformedLine  = errors.New("malformed json")
	ErrMissingField   = errors.New("missing required field")
	ErrInvalidField   = errors.New("invalid field value")
	ErrRangeViolation = errors.New("value out of range")
)

// FieldError ties a failure to the JSON path that caused it (e.g. players[3].item_4)
type FieldError struct {
	Path   string
	Err    error
	Detail string
}

func (e *FieldError) Error() string {
	path := e.Path
	if path == "" {
		path = "$"
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v (%s)", path, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %v", path, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// RangeError reports an enumerated value outside its defined range
type RangeError struct {
	Field string
	Value int64
	Min   int64
	Max   int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %v: %d not in [%d, %d]", e.Field, ErrRangeViolation, e.Value, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error {
	return ErrRangeViolation
}

// Path returns the JSON path of the field that failed, or "" if err carries none
func Path(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Path
	}
	var re *RangeError
	if errors.As(err, &re) {
		return re.Field
	}
	return ""
}
