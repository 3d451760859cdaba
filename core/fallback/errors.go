package fallback

import "fmt"

// UploadOrRequestError is returned for every failure of the request/response
// path: transport errors, non-2xx statuses and replies flagged as errors.
type UploadOrRequestError struct {
	Operation string
	// StatusCode is zero when the request never got a response.
	StatusCode int
	Message    string
	Err        error
}

func (e *UploadOrRequestError) Error() string {
	msg := "fallback " + e.Operation + " failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UploadOrRequestError) Unwrap() error { return e.Err }
