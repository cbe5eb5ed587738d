package service

import "fmt"

// APIError is a domain failure with a fixed HTTP translation. StatusText is
// the "status" field of the response envelope, which the wire format keeps
// distinct from the numeric code.
type APIError struct {
	Status     int
	StatusText string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func newAPIError(status int, statusText, message string) *APIError {
	return &APIError{Status: status, StatusText: statusText, Message: message}
}

// FieldError describes a single violated field constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries one entry per violated field and renders as a 422.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s %s", e.Fields[0].Field, e.Fields[0].Message)
}
