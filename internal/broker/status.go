package broker

import "strconv"

// Status is the outcome a handler reports: either a numeric HTTP status or
// one of the success/failure sentinels, which bypass style resolution.
type Status struct {
	code     int
	sentinel string
}

// StatusSuccess forces a success reply regardless of any style table.
var StatusSuccess = Status{sentinel: "success"}

// StatusFailure forces a failure reply regardless of any style table.
var StatusFailure = Status{sentinel: "failure"}

// StatusCode wraps a numeric HTTP status.
func StatusCode(code int) Status {
	return Status{code: code}
}

// IsSentinel reports whether this is one of the success/failure sentinels.
func (s Status) IsSentinel() bool { return s.sentinel != "" }

// IsSuccess reports whether this is the success sentinel.
func (s Status) IsSuccess() bool { return s.sentinel == "success" }

// IsFailure reports whether this is the failure sentinel.
func (s Status) IsFailure() bool { return s.sentinel == "failure" }

// Code returns the numeric HTTP status; zero for sentinels.
func (s Status) Code() int { return s.code }

func (s Status) String() string {
	if s.sentinel != "" {
		return s.sentinel
	}
	return strconv.Itoa(s.code)
}
