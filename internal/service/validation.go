package service

import (
	"regexp"
	"strings"
)

const minPasswordLength = 8

var (
	nameRe  = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRe = regexp.MustCompile(`^[0-9+\-\s]*$`)
)

func validateRegistration(in RegisterInput) *ValidationError {
	var fields []FieldError

	fields = appendNameErrors(fields, "firstName", "First name", in.FirstName)
	fields = appendNameErrors(fields, "lastName", "Last name", in.LastName)

	switch {
	case strings.TrimSpace(in.Email) == "":
		fields = append(fields, FieldError{Field: "email", Message: "Email is required"})
	case !emailRe.MatchString(in.Email):
		fields = append(fields, FieldError{Field: "email", Message: "Email must be a valid email address"})
	}

	switch {
	case in.Password == "":
		fields = append(fields, FieldError{Field: "password", Message: "Password is required"})
	case len(in.Password) < minPasswordLength:
		fields = append(fields, FieldError{Field: "password", Message: "Password must be at least 8 characters long"})
	}

	if in.Phone != "" && !phoneRe.MatchString(in.Phone) {
		fields = append(fields, FieldError{Field: "phone", Message: "Phone number must contain only numbers, spaces, plus signs, and hyphens"})
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func appendNameErrors(fields []FieldError, field, label, value string) []FieldError {
	switch {
	case strings.TrimSpace(value) == "":
		return append(fields, FieldError{Field: field, Message: label + " is required"})
	case !nameRe.MatchString(value):
		return append(fields, FieldError{Field: field, Message: label + " must contain only letters and spaces"})
	}
	return fields
}
