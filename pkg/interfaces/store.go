package interfaces

import (
	"context"

	"registrar/pkg/types"
)

// EnrollmentStore is the persistence boundary for accounts, courses and
// registrations. Every mutating method commits its checks and its write
// as one atomic unit, serialized against all other mutations, so the
// capacity, duplicate, per-student-limit and schedule-overlap invariants
// hold after every committed operation. Read methods observe a
// consistent committed snapshot.
type EnrollmentStore interface {
	// AuthenticateStudent verifies student credentials and returns the
	// student's current registrations on success.
	AuthenticateStudent(ctx context.Context, username, password string) ([]types.Course, error)

	// AuthenticateAdmin verifies admin credentials and returns the full
	// course catalog with remaining seats on success.
	AuthenticateAdmin(ctx context.Context, username, password string) ([]types.CourseDetail, error)

	// ListCourses returns every course with its remaining seat count.
	ListCourses(ctx context.Context) ([]types.CourseDetail, error)

	// StudentCourses returns the courses a student is registered in.
	StudentCourses(ctx context.Context, username string) ([]types.Course, error)

	// Enroll registers a student in a course after checking, atomically
	// with the insert: course exists, seats remain, not already
	// registered, under the per-student course limit, and no schedule
	// conflict with any current registration.
	Enroll(ctx context.Context, username, courseName string) error

	// Withdraw removes a registration, failing if it does not exist.
	Withdraw(ctx context.Context, username, courseName string) error

	// CreateCourse adds a course with a validated schedule descriptor
	// and a positive capacity.
	CreateCourse(ctx context.Context, name, scheduleDescriptor string, capacity int) error

	// UpdateCapacity raises a course's capacity. Capacity never
	// decreases; a registration committed under the old capacity can
	// therefore never become over-quota.
	UpdateCapacity(ctx context.Context, name string, newCapacity int) error

	// AddStudent provisions a student account with a hashed credential.
	AddStudent(ctx context.Context, name, username, password string) error

	// HealthCheck verifies connectivity and basic read access.
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and releases the store.
	Close() error
}
