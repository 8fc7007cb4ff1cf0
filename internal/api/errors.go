package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/nowplaying/internal/shared"
)

// APIError is a non-2xx response from the Web API.
//
// It matches [shared.ErrAPIRequest] and, depending on Status, [shared.ErrUnauthorized],
// [shared.ErrNotFound] or [shared.ErrRateLimited].
type APIError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("spotify API error: %s %s: status %d: %s", e.Method, e.Path, e.Status, msg)
}

func (e *APIError) Unwrap() []error {
	errs := []error{shared.ErrAPIRequest}
	switch e.Status {
	case http.StatusUnauthorized:
		errs = append(errs, shared.ErrUnauthorized)
	case http.StatusNotFound:
		errs = append(errs, shared.ErrNotFound)
	case http.StatusTooManyRequests:
		errs = append(errs, shared.ErrRateLimited)
	}
	return errs
}

// errorEnvelope covers both the Web API shape ({"error":{"status","message"}}) and the accounts
// service shape ({"error":"code","error_description":"..."}).
type errorEnvelope struct {
	Error            json.RawMessage `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

type regularError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

func newAPIError(status int, method, path string, body []byte) *APIError {
	return &APIError{Status: status, Message: errorMessage(body), Method: method, Path: path}
}

func errorMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return strings.TrimSpace(truncate(string(body), 200))
	}

	var regular regularError
	if err := json.Unmarshal(env.Error, &regular); err == nil {
		if regular.Reason != "" {
			return regular.Message + " (" + regular.Reason + ")"
		}
		return regular.Message
	}

	var code string
	if err := json.Unmarshal(env.Error, &code); err == nil {
		if env.ErrorDescription != "" {
			return code + ": " + env.ErrorDescription
		}
		return code
	}

	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return shared.Truncate(s, n) + "..."
}
