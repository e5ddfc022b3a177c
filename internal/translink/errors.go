package translink

import "fmt"

// InvalidRequestError is returned when the resource URL cannot be formed
type InvalidRequestError struct {
	StopID string
	Err    error
}

func (e *InvalidRequestError) Error() string {
	return "Invalid URL"
}

func (e *InvalidRequestError) Unwrap() error {
	return e.Err
}

// NetworkError wraps a transport-level failure (DNS, refused connection, timeout, cancellation)
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("Network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is returned for non-2xx responses. The body is not read.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("TransLink API Error: %d %s", e.StatusCode, e.Message)
}

// DecodingError is returned when a 2xx body does not match the timetable schema
type DecodingError struct {
	Message string
	Err     error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("Failed to decode response: %s", e.Message)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}
