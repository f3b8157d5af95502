// Package store implements the enrollment store: the durable table of
// accounts, courses and registrations, with atomic read-modify-write
// operations that enforce the enrollment invariants as a unit.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"registrar/internal/schedule"
	dbconfig "registrar/pkg/database"
	"registrar/pkg/types"
)

// Store is the SQLite-backed enrollment store. Every mutation is queued
// to a single writer goroutine and executed inside one transaction, so
// check-and-commit sequences are serialized against each other: two
// sessions racing for the last seat can never both win. Reads go
// straight to the pool; WAL gives them a committed snapshot.
type Store struct {
	db            *sql.DB
	maxPerStudent int
	writeCh       chan writeOp
	shutdown      chan struct{}
	wg            sync.WaitGroup
	closed        bool
	mu            sync.RWMutex // protects closed
}

// writeOp is one queued mutation. fn runs inside a transaction owned by
// the writer goroutine; returning an error rolls the transaction back.
type writeOp struct {
	ctx    context.Context
	fn     func(tx *sql.Tx) error
	result chan error
}

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can
// serve plain reads and in-transaction re-validation alike.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewStore opens the database and starts the writer goroutine. The
// schema must be migrated separately (see pkg/database) before use.
func NewStore(cfg *dbconfig.Config, maxPerStudent int) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	if maxPerStudent <= 0 {
		return nil, fmt.Errorf("max courses per student must be positive, got %d", maxPerStudent)
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:            db,
		maxPerStudent: maxPerStudent,
		writeCh:       make(chan writeOp, 100),
		shutdown:      make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

// DB exposes the underlying connection for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// writeLoop executes queued mutations one at a time. Single-writer
// serialization is what makes each operation's check-and-commit
// sequence atomic with respect to every other mutation.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeCh:
			op.result <- s.runWrite(op)
		case <-s.shutdown:
			// Fail queued ops so no caller is left waiting on a result.
			for {
				select {
				case op := <-s.writeCh:
					op.result <- ErrStoreClosed
				default:
					return
				}
			}
		}
	}
}

// runWrite wraps one mutation in a transaction. A failed operation
// rolls back and leaves the store unchanged.
func (s *Store) runWrite(op writeOp) error {
	tx, err := s.db.BeginTx(op.ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := op.fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// executeWrite queues a mutation and waits for its outcome.
func (s *Store) executeWrite(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeCh <- writeOp{ctx: ctx, fn: fn, result: result}:
		return <-result
	case <-ctx.Done():
		return ctx.Err()
	case <-s.shutdown:
		return ErrStoreClosed
	}
}

// AuthenticateStudent verifies student credentials. Unknown usernames
// and wrong passwords fail identically.
func (s *Store) AuthenticateStudent(ctx context.Context, username, password string) ([]types.Course, error) {
	if err := s.verifyCredentials(ctx, username, password, types.RoleStudent); err != nil {
		return nil, err
	}
	return s.studentCourses(ctx, s.db, username)
}

// AuthenticateAdmin verifies admin credentials and returns the catalog.
func (s *Store) AuthenticateAdmin(ctx context.Context, username, password string) ([]types.CourseDetail, error) {
	if err := s.verifyCredentials(ctx, username, password, types.RoleAdmin); err != nil {
		return nil, err
	}
	return s.courseDetails(ctx)
}

func (s *Store) verifyCredentials(ctx context.Context, username, password string, role types.Role) error {
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT password_hash FROM accounts WHERE username = ? AND role = ?",
		username, string(role),
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("failed to query account: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// ListCourses returns every course with its remaining seat count. One
// query computes both, so the count reflects a single committed snapshot.
func (s *Store) ListCourses(ctx context.Context) ([]types.CourseDetail, error) {
	return s.courseDetails(ctx)
}

func (s *Store) courseDetails(ctx context.Context) ([]types.CourseDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, c.schedule, c.capacity,
		       c.capacity - COUNT(r.course_name) AS remaining_seats
		FROM courses c
		LEFT JOIN registrations r ON c.name = r.course_name
		GROUP BY c.name, c.schedule, c.capacity
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	courses := []types.CourseDetail{}
	for rows.Next() {
		var c types.CourseDetail
		if err := rows.Scan(&c.Name, &c.Schedule, &c.Capacity, &c.RemainingSeats); err != nil {
			return nil, fmt.Errorf("failed to scan course row: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// StudentCourses returns the courses a student is registered in,
// ordered by course name.
func (s *Store) StudentCourses(ctx context.Context, username string) ([]types.Course, error) {
	return s.studentCourses(ctx, s.db, username)
}

func (s *Store) studentCourses(ctx context.Context, q querier, username string) ([]types.Course, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.name, c.schedule, c.capacity
		FROM courses c
		JOIN registrations r ON c.name = r.course_name
		WHERE r.student_username = ?
		ORDER BY c.name
	`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	courses := []types.Course{}
	for rows.Next() {
		var c types.Course
		if err := rows.Scan(&c.Name, &c.Schedule, &c.Capacity); err != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// Enroll registers a student in a course. All checks run inside the
// same transaction as the insert, on the writer goroutine, so the seat
// count and the student's registration set cannot change between check
// and commit.
func (s *Store) Enroll(ctx context.Context, username, courseName string) error {
	err := s.executeWrite(ctx, func(tx *sql.Tx) error {
		var descriptor string
		var capacity int
		err := tx.QueryRowContext(ctx,
			"SELECT schedule, capacity FROM courses WHERE name = ?", courseName,
		).Scan(&descriptor, &capacity)
		if err == sql.ErrNoRows {
			return ErrCourseNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to query course: %w", err)
		}

		var taken int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM registrations WHERE course_name = ?", courseName,
		).Scan(&taken); err != nil {
			return fmt.Errorf("failed to count registrations: %w", err)
		}
		if capacity-taken <= 0 {
			return ErrCourseFull
		}

		var exists int
		err = tx.QueryRowContext(ctx,
			"SELECT 1 FROM registrations WHERE student_username = ? AND course_name = ?",
			username, courseName,
		).Scan(&exists)
		if err == nil {
			return ErrAlreadyRegistered
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check registration: %w", err)
		}

		registered, err := s.studentCourses(ctx, tx, username)
		if err != nil {
			return err
		}
		if len(registered) >= s.maxPerStudent {
			return &LimitExceededError{Max: s.maxPerStudent}
		}

		candidate, err := schedule.Parse(descriptor)
		if err != nil {
			// Descriptors are validated at creation; an unparsable row
			// cannot be compared, so it cannot conflict.
			return s.insertRegistration(ctx, tx, username, courseName)
		}
		for _, course := range registered {
			held, err := schedule.Parse(course.Schedule)
			if err != nil {
				continue
			}
			if schedule.Overlaps(candidate, held) {
				return &ScheduleConflictError{Course: course.Name, Schedule: course.Schedule}
			}
		}

		return s.insertRegistration(ctx, tx, username, courseName)
	})
	if err != nil {
		return err
	}

	log.Info().Str("student", username).Str("course", courseName).Msg("student registered")
	return nil
}

func (s *Store) insertRegistration(ctx context.Context, tx *sql.Tx, username, courseName string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO registrations (student_username, course_name) VALUES (?, ?)",
		username, courseName,
	)
	if err != nil {
		return fmt.Errorf("failed to insert registration: %w", err)
	}
	return nil
}

// Withdraw removes a registration, failing if none exists. The
// existence check and the delete are one statement, atomic by itself.
func (s *Store) Withdraw(ctx context.Context, username, courseName string) error {
	err := s.executeWrite(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM registrations WHERE student_username = ? AND course_name = ?",
			username, courseName,
		)
		if err != nil {
			return fmt.Errorf("failed to delete registration: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return ErrNotRegistered
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("student", username).Str("course", courseName).Msg("student withdrew")
	return nil
}

// CreateCourse adds a catalog entry. The schedule descriptor must parse
// and the capacity must be positive.
func (s *Store) CreateCourse(ctx context.Context, name, scheduleDescriptor string, capacity int) error {
	if !types.IsValidCourseName(name) {
		return types.ErrInvalidCourseName
	}
	if capacity <= 0 {
		return ErrInvalidCapacity
	}
	if _, err := schedule.Parse(scheduleDescriptor); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	err := s.executeWrite(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM courses WHERE name = ?", name,
		).Scan(&exists)
		if err == nil {
			return ErrCourseExists
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check course: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO courses (name, schedule, capacity) VALUES (?, ?, ?)",
			name, scheduleDescriptor, capacity,
		)
		if err != nil {
			return fmt.Errorf("failed to insert course: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("course", name).Str("schedule", scheduleDescriptor).
		Int("capacity", capacity).Msg("course created")
	return nil
}

// UpdateCapacity raises a course's capacity. Requests that do not grow
// the course are rejected; capacity never decreases.
func (s *Store) UpdateCapacity(ctx context.Context, name string, newCapacity int) error {
	err := s.executeWrite(ctx, func(tx *sql.Tx) error {
		var current int
		err := tx.QueryRowContext(ctx,
			"SELECT capacity FROM courses WHERE name = ?", name,
		).Scan(&current)
		if err == sql.ErrNoRows {
			return ErrCourseNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to query course: %w", err)
		}

		if newCapacity <= current {
			return &CapacityNotIncreasedError{Current: current, Requested: newCapacity}
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE courses SET capacity = ? WHERE name = ?", newCapacity, name,
		)
		if err != nil {
			return fmt.Errorf("failed to update capacity: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("course", name).Int("capacity", newCapacity).Msg("course capacity raised")
	return nil
}

// AddStudent provisions a student account.
func (s *Store) AddStudent(ctx context.Context, name, username, password string) error {
	if !types.IsValidUsername(username) {
		return types.ErrInvalidUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.executeWrite(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM accounts WHERE username = ?", username,
		).Scan(&exists)
		if err == nil {
			return ErrUsernameTaken
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check username: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO accounts (username, name, password_hash, role) VALUES (?, ?, ?, ?)",
			username, name, string(hash), string(types.RoleStudent),
		)
		if err != nil {
			return fmt.Errorf("failed to insert account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("username", username).Msg("student account added")
	return nil
}

// EnsureAdmin provisions the admin account on first boot. Subsequent
// boots find the account and leave it untouched, including its
// password, so a rotated credential survives restarts.
func (s *Store) EnsureAdmin(ctx context.Context, username, password string) error {
	if !types.IsValidUsername(username) {
		return types.ErrInvalidUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	created := false
	err = s.executeWrite(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM accounts WHERE username = ? AND role = ?",
			username, string(types.RoleAdmin),
		).Scan(&exists)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check admin account: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO accounts (username, name, password_hash, role) VALUES (?, ?, ?, ?)",
			username, "Administrator", string(hash), string(types.RoleAdmin),
		)
		if err != nil {
			return fmt.Errorf("failed to insert admin account: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return err
	}

	if created {
		log.Info().Str("username", username).Msg("default admin account created")
	}
	return nil
}

// HealthCheck verifies connectivity and basic read access.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM courses").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close stops the writer goroutine and closes the database. Queued
// writes that have not started are abandoned; the in-flight one
// finishes before the writer exits.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("timed out waiting for store writer to stop")
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
