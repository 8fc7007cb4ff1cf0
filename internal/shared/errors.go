package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig   = fmt.Errorf("configuration not found")
	ErrInvalidConfig   = fmt.Errorf("invalid configuration")
	ErrMissingClientID = fmt.Errorf("missing spotify client_id")

	// Secure store errors
	ErrItemNotFound   = fmt.Errorf("item not found")
	ErrUnexpectedData = fmt.Errorf("unexpected data in secure store")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenInvalid     = fmt.Errorf("stored token is invalid")
	ErrAuthFailed       = fmt.Errorf("authorization failed")
	ErrStateMismatch    = fmt.Errorf("oauth state mismatch")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Request pipeline errors
	ErrInvalidURL   = fmt.Errorf("invalid URL")
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrNetwork      = fmt.Errorf("network error")
	ErrDecoding     = fmt.Errorf("decoding error")
	ErrAPIRequest   = fmt.Errorf("API request failed")
	ErrNotFound     = fmt.Errorf("resource not found")
	ErrRateLimited  = fmt.Errorf("rate limited")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// UserMessage returns the line shown to a person for a classified error.
//
// Unclassified errors fall through to their own text.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingClientID):
		return "Spotify client_id is not configured. Add it to config.toml or set NP_CLIENT_ID."
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrTokenInvalid):
		return "You are not signed in. Run `np auth login`."
	case errors.Is(err, ErrUnauthorized):
		return "Spotify rejected the session. Run `np auth login` to sign in again."
	case errors.Is(err, ErrStateMismatch):
		return "The sign-in response did not match this request. Try again."
	case errors.Is(err, ErrTimeout):
		return "Timed out waiting for Spotify."
	case errors.Is(err, ErrInvalidURL):
		return "The request could not be built (invalid URL)."
	case errors.Is(err, ErrRateLimited):
		return "Spotify is rate limiting requests. Try again shortly."
	case errors.Is(err, ErrNetwork):
		return "Could not reach Spotify. Check your connection and try again."
	case errors.Is(err, ErrDecoding):
		return "Spotify sent a response this client could not read."
	case errors.Is(err, ErrNotFound):
		return "Nothing was found for that request."
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrUnexpectedData):
		return "The local credential store could not be read. Run `np auth logout` and sign in again."
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrMissingArgument):
		return err.Error()
	default:
		return err.Error()
	}
}
