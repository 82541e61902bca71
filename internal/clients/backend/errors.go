package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrSessionExpired means the session could not be refreshed and stored
// credentials were cleared. The user has to log in again.
var ErrSessionExpired = errors.New("session expired, please log in again")

// APIError represents a non-2xx backend response
type APIError struct {
	StatusCode int
	// Detail is the backend's "detail" message, verbatim
	Detail   string
	Endpoint string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status: %d, endpoint: %s)", e.Detail, e.StatusCode, e.Endpoint)
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationItem struct {
	Msg string `json:"msg"`
}

func newAPIError(status int, body []byte, endpoint string) *APIError {
	return &APIError{
		StatusCode: status,
		Detail:     parseDetail(status, body),
		Endpoint:   endpoint,
	}
}

// parseDetail extracts the error message from a FastAPI-style body: a detail
// string, or a validation list whose msg fields are joined.
func parseDetail(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Detail) > 0 {
		var s string
		if err := json.Unmarshal(eb.Detail, &s); err == nil {
			return s
		}
		var items []validationItem
		if err := json.Unmarshal(eb.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
		return string(eb.Detail)
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}
