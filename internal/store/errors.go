package store

import (
	"errors"
	"fmt"
)

// Store operation errors. The session layer maps these onto wire
// messages, so each failure mode gets its own value.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCourseNotFound     = errors.New("course not found")
	ErrCourseFull         = errors.New("course is full")
	ErrAlreadyRegistered  = errors.New("already registered for course")
	ErrNotRegistered      = errors.New("not registered for course")
	ErrCourseExists       = errors.New("course already exists")
	ErrInvalidSchedule    = errors.New("invalid schedule format")
	ErrInvalidCapacity    = errors.New("capacity must be a positive integer")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrStoreClosed        = errors.New("store is closed")
)

// ScheduleConflictError reports the first registered course whose
// schedule overlaps the requested one. Conflicts are checked in
// ascending course-name order, so the reported course is deterministic
// for a given registration set.
type ScheduleConflictError struct {
	Course   string
	Schedule string
}

func (e *ScheduleConflictError) Error() string {
	return fmt.Sprintf("schedule conflict with '%s' (%s)", e.Course, e.Schedule)
}

// LimitExceededError reports that a student already holds the maximum
// number of registrations.
type LimitExceededError struct {
	Max int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("cannot register for more than %d courses", e.Max)
}

// CapacityNotIncreasedError reports a capacity update that does not
// grow the course. Capacity only ever increases; shrinking could strand
// committed registrations above quota.
type CapacityNotIncreasedError struct {
	Current   int
	Requested int
}

func (e *CapacityNotIncreasedError) Error() string {
	return fmt.Sprintf("new capacity (%d) must be greater than current capacity (%d)",
		e.Requested, e.Current)
}
