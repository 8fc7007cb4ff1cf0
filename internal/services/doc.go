// Package services defines the [Repository] interface for a Spotify account and implements it over the Web API.
//
// # Repository
//
// [SpotifyRepository] builds one [api.Endpoint] per operation and sends it through an [api.Pipeline]. The
// pipeline attaches the bearer token, retries transient failures and classifies errors; the repository adds
// input validation, limit clamping and reauthorization.
//
// When a call fails with [shared.ErrUnauthorized] the repository asks its [Reauthorizer] to renew the session
// once and retries the call once. A failed renewal is returned joined with the original 401.
//
// # Wire types and mapping
//
// The Spotify* types mirror Web API JSON. Optional fields are pointers so that mapping can tell "missing"
// from "zero". The Map* functions in mapping.go turn them into package models values and are pure:
//   - missing shuffle is off, missing or unknown repeat is off, missing public is false
//   - a missing owner or user display name falls back to the id
//   - a recently-played item with an unparsable played_at is dropped, the rest of the page is kept
//   - local and null playlist items are skipped
//   - has-next and has-previous follow the presence of the next and previous links
//
// # Error Handling
//
// Services return the pipeline's errors unchanged, plus:
//   - [shared.ErrMissingArgument] : a required id, name or query was empty
//   - [shared.ErrInvalidArgument] : a value was out of range (negative position, unknown time range)
package services
