package schedule

import "errors"

// Parse rejection reasons. All are wrapped with the offending input so
// callers can surface a useful message.
var (
	ErrMalformedDescriptor = errors.New("malformed schedule descriptor")
	ErrUnknownDay          = errors.New("unknown day letter")
	ErrInvalidTime         = errors.New("invalid 24-hour time")
	ErrInvertedWindow      = errors.New("start time must be before end time")
)
