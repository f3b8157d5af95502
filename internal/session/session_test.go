package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"registrar/internal/store"
	"registrar/pkg/interfaces"
	"registrar/pkg/types"
)

// mockStore controls store behavior for state machine tests.
type mockStore struct {
	authErr     error
	enrollErr   error
	withdrawErr error
	createErr   error
	updateErr   error
	addErr      error
	listErr     error

	courses    []types.CourseDetail
	registered []types.Course

	lastEnrollUser   string
	lastEnrollCourse string
}

func (m *mockStore) AuthenticateStudent(ctx context.Context, username, password string) ([]types.Course, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	return m.registered, nil
}

func (m *mockStore) AuthenticateAdmin(ctx context.Context, username, password string) ([]types.CourseDetail, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	return m.courses, nil
}

func (m *mockStore) ListCourses(ctx context.Context) ([]types.CourseDetail, error) {
	return m.courses, m.listErr
}

func (m *mockStore) StudentCourses(ctx context.Context, username string) ([]types.Course, error) {
	return m.registered, m.listErr
}

func (m *mockStore) Enroll(ctx context.Context, username, courseName string) error {
	m.lastEnrollUser = username
	m.lastEnrollCourse = courseName
	return m.enrollErr
}

func (m *mockStore) Withdraw(ctx context.Context, username, courseName string) error {
	return m.withdrawErr
}

func (m *mockStore) CreateCourse(ctx context.Context, name, scheduleDescriptor string, capacity int) error {
	return m.createErr
}

func (m *mockStore) UpdateCapacity(ctx context.Context, name string, newCapacity int) error {
	return m.updateErr
}

func (m *mockStore) AddStudent(ctx context.Context, name, username, password string) error {
	return m.addErr
}

func (m *mockStore) HealthCheck(ctx context.Context) error { return nil }
func (m *mockStore) Close() error                          { return nil }

var _ interfaces.EnrollmentStore = (*mockStore)(nil)

func newTestSession(m *mockStore) *Session {
	return New(m, zerolog.Nop())
}

func loginStudent(t *testing.T, s *Session) {
	t.Helper()
	resp, done := s.Handle(context.Background(), types.Request{
		Action: types.ActionLoginStudent,
		Data:   types.RequestData{Username: "alice", Password: "secret"},
	})
	if resp.Status != types.StatusSuccess || done {
		t.Fatalf("student login failed: %+v done=%v", resp, done)
	}
}

func loginAdmin(t *testing.T, s *Session) {
	t.Helper()
	resp, done := s.Handle(context.Background(), types.Request{
		Action: types.ActionLoginAdmin,
		Data:   types.RequestData{Username: "admin", Password: "secret"},
	})
	if resp.Status != types.StatusSuccess || done {
		t.Fatalf("admin login failed: %+v done=%v", resp, done)
	}
}

func TestSession_AuthRequired(t *testing.T) {
	for _, action := range []string{
		types.ActionListCoursesStudent,
		types.ActionRegisterCourse,
		types.ActionCreateCourse,
		types.ActionLogout,
		"no_such_action",
	} {
		s := newTestSession(&mockStore{})
		resp, done := s.Handle(context.Background(), types.Request{Action: action})
		if done {
			t.Errorf("%s before login closed the session", action)
		}
		if resp.Status != types.StatusError || resp.Message != "Authentication required" {
			t.Errorf("%s before login: got %+v, want auth-required error", action, resp)
		}
		if s.State() != StateUnauthenticated {
			t.Errorf("%s before login changed state to %v", action, s.State())
		}
	}
}

func TestSession_LoginStudent(t *testing.T) {
	m := &mockStore{registered: []types.Course{{Name: "CS101", Schedule: "MWF 10:00-11:00", Capacity: 10}}}
	s := newTestSession(m)

	resp, done := s.Handle(context.Background(), types.Request{
		Action: types.ActionLoginStudent,
		Data:   types.RequestData{Username: "alice", Password: "secret"},
	})
	if done || resp.Status != types.StatusSuccess {
		t.Fatalf("login: got %+v done=%v", resp, done)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("login data has type %T, want map", resp.Data)
	}
	if _, ok := data["registered_courses"]; !ok {
		t.Error("login data missing registered_courses")
	}
	if s.State() != StateAuthenticated || s.Username() != "alice" {
		t.Errorf("state after login: %v / %q", s.State(), s.Username())
	}
}

func TestSession_LoginFailures(t *testing.T) {
	s := newTestSession(&mockStore{authErr: store.ErrInvalidCredentials})
	resp, _ := s.Handle(context.Background(), types.Request{
		Action: types.ActionLoginStudent,
		Data:   types.RequestData{Username: "alice", Password: "wrong"},
	})
	if resp.Message != "Invalid credentials" {
		t.Errorf("bad credentials: got %q", resp.Message)
	}
	if s.State() != StateUnauthenticated {
		t.Error("failed login must not authenticate")
	}

	s = newTestSession(&mockStore{})
	resp, _ = s.Handle(context.Background(), types.Request{Action: types.ActionLoginStudent})
	if resp.Message != "Username and password required" {
		t.Errorf("missing fields: got %q", resp.Message)
	}

	// Store failures surface as a generic message, not internals.
	s = newTestSession(&mockStore{authErr: errors.New("disk melted")})
	resp, _ = s.Handle(context.Background(), types.Request{
		Action: types.ActionLoginStudent,
		Data:   types.RequestData{Username: "alice", Password: "secret"},
	})
	if strings.Contains(resp.Message, "disk") {
		t.Errorf("store detail leaked to wire: %q", resp.Message)
	}
	if resp.Status != types.StatusError {
		t.Errorf("store failure: got status %q", resp.Status)
	}
}

func TestSession_RoleScoping(t *testing.T) {
	m := &mockStore{}

	s := newTestSession(m)
	loginStudent(t, s)
	resp, done := s.Handle(context.Background(), types.Request{Action: types.ActionCreateCourse})
	if done || resp.Message != "Invalid action for student" {
		t.Errorf("student create_course: got %+v done=%v", resp, done)
	}
	if s.State() != StateAuthenticated {
		t.Error("rejected command must not change state")
	}

	s = newTestSession(m)
	loginAdmin(t, s)
	resp, done = s.Handle(context.Background(), types.Request{Action: types.ActionRegisterCourse})
	if done || resp.Message != "Invalid action for admin" {
		t.Errorf("admin register_course: got %+v done=%v", resp, done)
	}

	// Unknown actions get the same role-scoped rejection.
	resp, _ = s.Handle(context.Background(), types.Request{Action: "fly_to_moon"})
	if resp.Message != "Invalid action for admin" {
		t.Errorf("unknown action: got %q", resp.Message)
	}
}

func TestSession_Logout(t *testing.T) {
	s := newTestSession(&mockStore{})
	loginStudent(t, s)

	resp, done := s.Handle(context.Background(), types.Request{Action: types.ActionLogout})
	if !done || resp.Status != types.StatusSuccess || resp.Message != "Logged out" {
		t.Fatalf("logout: got %+v done=%v", resp, done)
	}
	if s.State() != StateClosed {
		t.Errorf("state after logout = %v, want closed", s.State())
	}

	// Closed is terminal.
	resp, done = s.Handle(context.Background(), types.Request{Action: types.ActionMyCourses})
	if !done || resp.Status != types.StatusError {
		t.Errorf("command after logout: got %+v done=%v", resp, done)
	}
}

func TestSession_RegisterCourse(t *testing.T) {
	m := &mockStore{}
	s := newTestSession(m)
	loginStudent(t, s)

	resp, _ := s.Handle(context.Background(), types.Request{
		Action: types.ActionRegisterCourse,
		Data:   types.RequestData{CourseName: "CS101"},
	})
	if resp.Status != types.StatusSuccess || resp.Message != "Successfully registered for 'CS101'" {
		t.Errorf("register: got %+v", resp)
	}
	if m.lastEnrollUser != "alice" || m.lastEnrollCourse != "CS101" {
		t.Errorf("enroll called with %q/%q", m.lastEnrollUser, m.lastEnrollCourse)
	}

	resp, _ = s.Handle(context.Background(), types.Request{Action: types.ActionRegisterCourse})
	if resp.Message != "Course name required" {
		t.Errorf("missing course name: got %q", resp.Message)
	}
}

func TestSession_RegisterCourse_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"not found", store.ErrCourseNotFound, "Course 'CS101' not found"},
		{"full", store.ErrCourseFull, "Course 'CS101' is full"},
		{"duplicate", store.ErrAlreadyRegistered, "You are already registered for 'CS101'"},
		{"limit", &store.LimitExceededError{Max: 5}, "Cannot register for more than 5 courses"},
		{
			"conflict",
			&store.ScheduleConflictError{Course: "MATH1", Schedule: "MWF 10:00-11:00"},
			"Schedule conflict with 'MATH1' (MWF 10:00-11:00)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(&mockStore{enrollErr: tt.err})
			loginStudent(t, s)
			resp, _ := s.Handle(context.Background(), types.Request{
				Action: types.ActionRegisterCourse,
				Data:   types.RequestData{CourseName: "CS101"},
			})
			if resp.Status != types.StatusError || resp.Message != tt.message {
				t.Errorf("got %+v, want message %q", resp, tt.message)
			}
		})
	}
}

func TestSession_Withdraw(t *testing.T) {
	s := newTestSession(&mockStore{withdrawErr: store.ErrNotRegistered})
	loginStudent(t, s)
	resp, _ := s.Handle(context.Background(), types.Request{
		Action: types.ActionWithdrawCourse,
		Data:   types.RequestData{CourseName: "CS101"},
	})
	if resp.Message != "You are not registered for 'CS101'" {
		t.Errorf("withdraw unregistered: got %q", resp.Message)
	}
}

func TestSession_AdminCommands(t *testing.T) {
	capacity := 10
	ctx := context.Background()

	s := newTestSession(&mockStore{})
	loginAdmin(t, s)
	resp, _ := s.Handle(ctx, types.Request{
		Action: types.ActionCreateCourse,
		Data:   types.RequestData{Name: "CS101", Schedule: "MWF 10:00-11:00", Capacity: &capacity},
	})
	if resp.Message != "Course 'CS101' created successfully" {
		t.Errorf("create: got %q", resp.Message)
	}

	resp, _ = s.Handle(ctx, types.Request{
		Action: types.ActionCreateCourse,
		Data:   types.RequestData{Name: "CS101", Schedule: "MWF 10:00-11:00"},
	})
	if resp.Message != "Course name, schedule, and capacity required" {
		t.Errorf("create without capacity: got %q", resp.Message)
	}

	s = newTestSession(&mockStore{updateErr: &store.CapacityNotIncreasedError{Current: 1, Requested: 1}})
	loginAdmin(t, s)
	one := 1
	resp, _ = s.Handle(ctx, types.Request{
		Action: types.ActionUpdateCourse,
		Data:   types.RequestData{Name: "CS101", Capacity: &one},
	})
	if resp.Message != "New capacity (1) must be greater than current capacity (1)" {
		t.Errorf("non-increasing update: got %q", resp.Message)
	}

	s = newTestSession(&mockStore{addErr: store.ErrUsernameTaken})
	loginAdmin(t, s)
	resp, _ = s.Handle(ctx, types.Request{
		Action: types.ActionAddStudent,
		Data:   types.RequestData{Name: "Alice", Username: "alice", Password: "pw"},
	})
	if resp.Message != "Student username 'alice' already exists" {
		t.Errorf("duplicate username: got %q", resp.Message)
	}
}

func TestSession_CreateCourse_InvalidSchedule(t *testing.T) {
	capacity := 10
	s := newTestSession(&mockStore{createErr: store.ErrInvalidSchedule})
	loginAdmin(t, s)
	resp, _ := s.Handle(context.Background(), types.Request{
		Action: types.ActionCreateCourse,
		Data:   types.RequestData{Name: "X", Schedule: "MWF 25:00-26:00", Capacity: &capacity},
	})
	if resp.Message != "Invalid schedule format. Use Days HH:MM-HH:MM (e.g., MWF 10:00-11:00)" {
		t.Errorf("invalid schedule: got %q", resp.Message)
	}
}
