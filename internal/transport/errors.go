package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TimeoutError is returned when the client-side deadline for a call expires
// before the server answers.
type TimeoutError struct {
	Method  string
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s timed out after %s", e.Method, e.URL, e.Timeout)
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Status  int
	Message string
	// Payload is the decoded error body, or {"raw": text} when the body was not JSON.
	Payload map[string]any
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NetworkError covers failures below HTTP: DNS, refused connections, resets,
// and cancellation by the caller.
type NetworkError struct {
	URL     string
	Message string
	Cause   error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is, or wraps, a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// decodeError builds an HTTPError from a failed response body. The server's
// "error" field wins; otherwise a generic message carrying the status is used.
func decodeError(status int, body []byte) *HTTPError {
	payload := map[string]any{}
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		payload = map[string]any{"raw": string(body)}
	}

	message := fmt.Sprintf("request failed (%d)", status)
	if msg, ok := payload["error"].(string); ok && msg != "" {
		message = msg
	}

	return &HTTPError{
		Status:  status,
		Message: message,
		Payload: payload,
	}
}
