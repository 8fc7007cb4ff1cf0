// Package api is the request pipeline for the Spotify Web API.
//
// An [Endpoint] describes a request; a [Pipeline] builds it, decorates it through its [Interceptor]s,
// sends it and classifies the outcome.
//
// # Retries
//
// 5xx responses, 429 responses and transport failures are retried according to [RetryPolicy]. Waits
// respect the caller's context. A 429 with a Retry-After header waits that long instead of the backoff.
// Once attempts run out the call fails with [shared.ErrNetwork] wrapping the last cause.
//
// 401 is never retried here: the repository layer owns reauthorization.
//
// # Errors
//
//   - [shared.ErrInvalidURL] : the endpoint could not be turned into a URL
//   - [shared.ErrUnauthorized] : 401
//   - [shared.ErrNetwork] : retries exhausted
//   - [shared.ErrDecoding] : a 2xx body did not match the expected type
//   - [*APIError] : any other status, also matching [shared.ErrAPIRequest] and [shared.ErrNotFound] for 404
package api
