package types

import "errors"

// Validation errors shared across components.
var (
	ErrInvalidUsername   = errors.New("username must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidCourseName = errors.New("course name must be 1-100 characters")
	ErrInvalidRole       = errors.New("invalid role: must be 'student' or 'admin'")
)
