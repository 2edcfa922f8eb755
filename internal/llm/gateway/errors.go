package gateway

import (
	"fmt"
)

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "gateway http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("gateway http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("gateway http error: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// StreamError is an error object the gateway sent inside the event stream.
type StreamError struct {
	Raw string
}

func (e *StreamError) Error() string {
	return "gateway stream error: " + e.Raw
}
