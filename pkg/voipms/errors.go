package voipms

import "fmt"

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// APIError is returned when the API answers with HTTP 200 but a status other
// than "success", e.g. "invalid_credentials".
type APIError struct {
	Method string
	Status string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: api status %q", e.Method, e.Status)
}
