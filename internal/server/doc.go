// Package server provides the HTTP routing and the loopback listener used during sign-in.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] runs in the order it was added.
//
// [CallbackRouter] registers each [Route] as an [http.ServeMux] method pattern, so the mux answers wrong
// methods with 405 before any handler runs.
//
// # OAuth Callback Handler
//
// [CallbackHandler] serves the redirect path. It forwards the callback URL to the authorizer, which checks the
// state, exchanges the code and reports the result to the session manager. The handler only forwards one
// accepted callback, so a replayed redirect is rejected.
//
// # Current Usage
//
// When the user runs `np auth login`, a [Server] starts on the loopback address from the config, waits for
// the redirect, and shuts down once the session manager leaves the authorizing state.
package server
