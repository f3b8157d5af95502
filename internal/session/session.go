// Package session implements the per-connection state machine: it
// gates every command on authentication state and role, delegates to
// the enrollment store, and translates store results into wire
// responses. One Session belongs to exactly one connection and is
// never shared.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"registrar/internal/store"
	"registrar/pkg/interfaces"
	"registrar/pkg/types"
)

// State is the connection's position in the authentication lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

// Session holds the authentication state for one live connection.
type Session struct {
	store    interfaces.EnrollmentStore
	log      zerolog.Logger
	state    State
	role     types.Role
	username string
}

// New creates a session in the unauthenticated state.
func New(enrollments interfaces.EnrollmentStore, log zerolog.Logger) *Session {
	return &Session{
		store: enrollments,
		log:   log,
		state: StateUnauthenticated,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Username returns the authenticated identity, or "" before login.
func (s *Session) Username() string {
	return s.username
}

// Handle processes one request and returns the response. done is true
// once the session has reached the closed state and the connection
// should be torn down. A failed command never changes state.
func (s *Session) Handle(ctx context.Context, req types.Request) (resp types.Response, done bool) {
	switch s.state {
	case StateUnauthenticated:
		return s.handleUnauthenticated(ctx, req), false
	case StateAuthenticated:
		return s.handleAuthenticated(ctx, req)
	default:
		return types.Error("Session closed"), true
	}
}

func (s *Session) handleUnauthenticated(ctx context.Context, req types.Request) types.Response {
	switch req.Action {
	case types.ActionLoginStudent:
		return s.loginStudent(ctx, req.Data)
	case types.ActionLoginAdmin:
		return s.loginAdmin(ctx, req.Data)
	default:
		return types.Error("Authentication required")
	}
}

func (s *Session) handleAuthenticated(ctx context.Context, req types.Request) (types.Response, bool) {
	if req.Action == types.ActionLogout {
		s.state = StateClosed
		s.log.Info().Str("username", s.username).Str("role", string(s.role)).Msg("logged out")
		return types.Success("Logged out"), true
	}

	switch s.role {
	case types.RoleStudent:
		return s.handleStudent(ctx, req), false
	case types.RoleAdmin:
		return s.handleAdmin(ctx, req), false
	default:
		// Unreachable: role is set to a known value at login.
		return types.Error("Invalid session role"), true
	}
}

func (s *Session) handleStudent(ctx context.Context, req types.Request) types.Response {
	switch req.Action {
	case types.ActionListCoursesStudent:
		return s.listCourses(ctx)
	case types.ActionMyCourses:
		return s.myCourses(ctx)
	case types.ActionRegisterCourse:
		return s.registerCourse(ctx, req.Data)
	case types.ActionWithdrawCourse:
		return s.withdrawCourse(ctx, req.Data)
	default:
		return types.Error("Invalid action for student")
	}
}

func (s *Session) handleAdmin(ctx context.Context, req types.Request) types.Response {
	switch req.Action {
	case types.ActionListCoursesAdmin:
		return s.listCourses(ctx)
	case types.ActionCreateCourse:
		return s.createCourse(ctx, req.Data)
	case types.ActionUpdateCourse:
		return s.updateCourse(ctx, req.Data)
	case types.ActionAddStudent:
		return s.addStudent(ctx, req.Data)
	default:
		return types.Error("Invalid action for admin")
	}
}

func (s *Session) loginStudent(ctx context.Context, data types.RequestData) types.Response {
	if data.Username == "" || data.Password == "" {
		return types.Error("Username and password required")
	}

	courses, err := s.store.AuthenticateStudent(ctx, data.Username, data.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			return types.Error("Invalid credentials")
		}
		return s.internalError(err)
	}

	s.state = StateAuthenticated
	s.role = types.RoleStudent
	s.username = data.Username
	s.log.Info().Str("username", data.Username).Msg("student authenticated")

	return types.SuccessData(map[string]interface{}{"registered_courses": courses})
}

func (s *Session) loginAdmin(ctx context.Context, data types.RequestData) types.Response {
	if data.Username == "" || data.Password == "" {
		return types.Error("Username and password required")
	}

	courses, err := s.store.AuthenticateAdmin(ctx, data.Username, data.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			return types.Error("Invalid credentials")
		}
		return s.internalError(err)
	}

	s.state = StateAuthenticated
	s.role = types.RoleAdmin
	s.username = data.Username
	s.log.Info().Str("username", data.Username).Msg("admin authenticated")

	return types.SuccessData(map[string]interface{}{"courses": courses})
}

func (s *Session) listCourses(ctx context.Context) types.Response {
	courses, err := s.store.ListCourses(ctx)
	if err != nil {
		return s.internalError(err)
	}
	return types.SuccessData(map[string]interface{}{"courses": courses})
}

func (s *Session) myCourses(ctx context.Context) types.Response {
	courses, err := s.store.StudentCourses(ctx, s.username)
	if err != nil {
		return s.internalError(err)
	}
	return types.SuccessData(map[string]interface{}{"registered_courses": courses})
}

func (s *Session) registerCourse(ctx context.Context, data types.RequestData) types.Response {
	if data.CourseName == "" {
		return types.Error("Course name required")
	}

	err := s.store.Enroll(ctx, s.username, data.CourseName)
	if err == nil {
		return types.Success(fmt.Sprintf("Successfully registered for '%s'", data.CourseName))
	}

	var conflict *store.ScheduleConflictError
	var limit *store.LimitExceededError
	switch {
	case errors.Is(err, store.ErrCourseNotFound):
		return types.Error(fmt.Sprintf("Course '%s' not found", data.CourseName))
	case errors.Is(err, store.ErrCourseFull):
		return types.Error(fmt.Sprintf("Course '%s' is full", data.CourseName))
	case errors.Is(err, store.ErrAlreadyRegistered):
		return types.Error(fmt.Sprintf("You are already registered for '%s'", data.CourseName))
	case errors.As(err, &limit):
		return types.Error(fmt.Sprintf("Cannot register for more than %d courses", limit.Max))
	case errors.As(err, &conflict):
		return types.Error(fmt.Sprintf("Schedule conflict with '%s' (%s)", conflict.Course, conflict.Schedule))
	default:
		return s.internalError(err)
	}
}

func (s *Session) withdrawCourse(ctx context.Context, data types.RequestData) types.Response {
	if data.CourseName == "" {
		return types.Error("Course name required")
	}

	err := s.store.Withdraw(ctx, s.username, data.CourseName)
	if err == nil {
		return types.Success(fmt.Sprintf("Successfully withdrew from '%s'", data.CourseName))
	}
	if errors.Is(err, store.ErrNotRegistered) {
		return types.Error(fmt.Sprintf("You are not registered for '%s'", data.CourseName))
	}
	return s.internalError(err)
}

func (s *Session) createCourse(ctx context.Context, data types.RequestData) types.Response {
	if data.Name == "" || data.Schedule == "" || data.Capacity == nil {
		return types.Error("Course name, schedule, and capacity required")
	}

	err := s.store.CreateCourse(ctx, data.Name, data.Schedule, *data.Capacity)
	if err == nil {
		return types.Success(fmt.Sprintf("Course '%s' created successfully", data.Name))
	}

	switch {
	case errors.Is(err, store.ErrInvalidCapacity):
		return types.Error("Invalid capacity value")
	case errors.Is(err, store.ErrInvalidSchedule):
		return types.Error("Invalid schedule format. Use Days HH:MM-HH:MM (e.g., MWF 10:00-11:00)")
	case errors.Is(err, store.ErrCourseExists):
		return types.Error(fmt.Sprintf("Course '%s' already exists", data.Name))
	case errors.Is(err, types.ErrInvalidCourseName):
		return types.Error("Invalid course name")
	default:
		return s.internalError(err)
	}
}

func (s *Session) updateCourse(ctx context.Context, data types.RequestData) types.Response {
	if data.Name == "" || data.Capacity == nil {
		return types.Error("Course name and new capacity required")
	}

	err := s.store.UpdateCapacity(ctx, data.Name, *data.Capacity)
	if err == nil {
		return types.Success(fmt.Sprintf("Capacity for course '%s' updated to %d", data.Name, *data.Capacity))
	}

	var notRaised *store.CapacityNotIncreasedError
	switch {
	case errors.Is(err, store.ErrCourseNotFound):
		return types.Error(fmt.Sprintf("Course '%s' not found", data.Name))
	case errors.As(err, &notRaised):
		return types.Error(fmt.Sprintf("New capacity (%d) must be greater than current capacity (%d)",
			notRaised.Requested, notRaised.Current))
	default:
		return s.internalError(err)
	}
}

func (s *Session) addStudent(ctx context.Context, data types.RequestData) types.Response {
	if data.Name == "" || data.Username == "" || data.Password == "" {
		return types.Error("Student name, username, and password required")
	}

	err := s.store.AddStudent(ctx, data.Name, data.Username, data.Password)
	if err == nil {
		return types.Success(fmt.Sprintf("Student '%s' added successfully", data.Username))
	}

	switch {
	case errors.Is(err, store.ErrUsernameTaken):
		return types.Error(fmt.Sprintf("Student username '%s' already exists", data.Username))
	case errors.Is(err, types.ErrInvalidUsername):
		return types.Error("Invalid username format")
	default:
		return s.internalError(err)
	}
}

// internalError logs the underlying failure and returns a generic
// response; storage details never reach the wire.
func (s *Session) internalError(err error) types.Response {
	s.log.Error().Err(err).Str("username", s.username).Msg("operation failed")
	return types.Error("An internal server error occurred")
}
