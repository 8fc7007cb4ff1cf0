package api

import (
	"context"
	"fmt"
	"net/http"
)

// DefaultUserAgent is sent when no other user agent is configured.
const DefaultUserAgent = "nowplaying/0.1 (+https://github.com/desertthunder/nowplaying)"

// Interceptor decorates a request before each attempt.
//
// An error aborts the call without retrying.
type Interceptor interface {
	Intercept(ctx context.Context, req *http.Request) error
}

// InterceptorFunc adapts a function to [Interceptor].
type InterceptorFunc func(ctx context.Context, req *http.Request) error

func (f InterceptorFunc) Intercept(ctx context.Context, req *http.Request) error { return f(ctx, req) }

// AccessTokenProvider supplies the bearer token for a request.
type AccessTokenProvider interface {
	CurrentAccessToken(ctx context.Context) (string, error)
}

// DefaultHeaders fills Accept, Content-Type and User-Agent where the request does not set them.
func DefaultHeaders(userAgent string) Interceptor {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return InterceptorFunc(func(ctx context.Context, req *http.Request) error {
		setDefault(req.Header, "Accept", "application/json")
		setDefault(req.Header, "Content-Type", "application/json")
		setDefault(req.Header, "User-Agent", userAgent)
		return nil
	})
}

// BearerAuth attaches the provider's current access token.
//
// The token is read on every attempt so a renewal between attempts is picked up.
func BearerAuth(p AccessTokenProvider) Interceptor {
	return InterceptorFunc(func(ctx context.Context, req *http.Request) error {
		token, err := p.CurrentAccessToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to read access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	})
}

func setDefault(h http.Header, key, value string) {
	if h.Get(key) == "" {
		h.Set(key, value)
	}
}
