package types

// Role identifies what an authenticated account is allowed to do.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Actions accepted on the wire. Dispatch switches over this closed set;
// anything else is rejected by the session state machine.
const (
	ActionLoginStudent       = "login_student"
	ActionLoginAdmin         = "login_admin"
	ActionListCoursesStudent = "list_courses_student"
	ActionListCoursesAdmin   = "list_courses_admin"
	ActionMyCourses          = "my_courses"
	ActionRegisterCourse     = "register_course"
	ActionWithdrawCourse     = "withdraw_course"
	ActionCreateCourse       = "create_course"
	ActionUpdateCourse       = "update_course"
	ActionAddStudent         = "add_student"
	ActionLogout             = "logout"
)

// Request is one client command frame.
type Request struct {
	Action string      `json:"action"`
	Data   RequestData `json:"data"`
}

// RequestData carries the union of all per-action fields. Each handler
// checks the fields its action requires; absent fields decode to zero
// values, except Capacity which stays nil so "missing" and "0" are
// distinguishable.
type RequestData struct {
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Name       string `json:"name,omitempty"`
	CourseName string `json:"course_name,omitempty"`
	Schedule   string `json:"schedule,omitempty"`
	Capacity   *int   `json:"capacity,omitempty"`
}

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is one server reply frame.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Course is a catalog entry as seen in a student's registration list.
type Course struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Capacity int    `json:"capacity"`
}

// CourseDetail adds the live seat count for catalog views. The count is
// always computed against a committed snapshot, never a half-applied write.
type CourseDetail struct {
	Course
	RemainingSeats int `json:"remaining_seats"`
}

// Success builds a success response with a human-readable message.
func Success(message string) Response {
	return Response{Status: StatusSuccess, Message: message}
}

// SuccessData builds a success response carrying a data payload.
func SuccessData(data interface{}) Response {
	return Response{Status: StatusSuccess, Data: data}
}

// Error builds an error response. Message content is the only error
// taxonomy the wire exposes, so it must be distinguishable by clients.
func Error(message string) Response {
	return Response{Status: StatusError, Message: message}
}
