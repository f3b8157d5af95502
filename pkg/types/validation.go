package types

import "regexp"

// Compiled once at package initialization; validation runs on every
// provisioning request.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidUsername checks account username format: 1-50 characters,
// alphanumeric plus underscore and hyphen.
func IsValidUsername(username string) bool {
	if len(username) < 1 || len(username) > 50 {
		return false
	}
	return usernameRegex.MatchString(username)
}

// IsValidCourseName checks course name format. Course names act as
// primary keys, so they must be non-empty and bounded.
func IsValidCourseName(name string) bool {
	return len(name) >= 1 && len(name) <= 100
}

// IsValidRole checks that a role tag is one of the two known roles.
func IsValidRole(role Role) bool {
	return role == RoleStudent || role == RoleAdmin
}
