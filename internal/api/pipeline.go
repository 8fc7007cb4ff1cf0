package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/time/rate"
)

const (
	maxResponseBytes = 8 << 20
	// maxRetryAfter is the longest Retry-After the pipeline waits out; longer waits fail with ErrRateLimited.
	maxRetryAfter = 30 * time.Second
)

// RetryPolicy bounds retries of transient failures.
//
// Attempt n (from 0) waits InitialDelay * Multiplier^n, capped at MaxDelay.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy retries three times starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second, Multiplier: 2}
}

// BackOff builds the exponential schedule for one [Pipeline.Send] call. Delays are not randomized.
func (p RetryPolicy) BackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = max(p.InitialDelay, 0)
	b.RandomizationFactor = 0
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 2
	}
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval <= 0 {
		b.MaxInterval = backoff.DefaultMaxInterval
	}
	b.Reset()
	return b
}

// Options configures a [Pipeline].
type Options struct {
	Client       *http.Client
	Interceptors []Interceptor
	Retry        RetryPolicy
	Limiter      *rate.Limiter // optional; paces every attempt
	Logger       *log.Logger
}

// Pipeline turns an [Endpoint] into a decoded response or a classified error.
//
// It keeps no per-call state and is safe for concurrent use.
type Pipeline struct {
	client       *http.Client
	interceptors []Interceptor
	retry        RetryPolicy
	limiter      *rate.Limiter
	logger       *log.Logger
}

// New creates a [Pipeline]. A nil client gets a 15s timeout.
func New(opts Options) *Pipeline {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}
	if opts.Retry.MaxRetries < 0 {
		opts.Retry.MaxRetries = 0
	}

	return &Pipeline{
		client:       opts.Client,
		interceptors: opts.Interceptors,
		retry:        opts.Retry,
		limiter:      opts.Limiter,
		logger:       opts.Logger,
	}
}

// Do sends ep and decodes the response body into a new T.
func Do[T any](ctx context.Context, p *Pipeline, ep Endpoint) (T, error) {
	var out T
	err := p.Send(ctx, ep, &out)
	return out, err
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// Send performs ep, retrying transient failures, and decodes a 2xx body into out when out is non-nil.
//
// Errors:
//   - [shared.ErrInvalidURL] before any network activity
//   - [shared.ErrUnauthorized] on 401, never retried
//   - [shared.ErrNetwork] once retries of 5xx, 429 or transport failures are exhausted
//   - [shared.ErrDecoding] when a 2xx body does not decode
//   - [*APIError] for any other non-2xx status
func (p *Pipeline) Send(ctx context.Context, ep Endpoint, out any) error {
	u, err := ep.URL()
	if err != nil {
		return err
	}

	body, contentType, err := ep.encodeBody()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	method := ep.method()
	target := u.String()

	var (
		attempt int
		lastErr error
	)
	operation := func() (*response, error) {
		attempt++
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(contextError(ctx, err))
			}
		}

		req, err := p.newRequest(ctx, method, target, body, contentType, ep.Headers)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		start := time.Now()
		resp, err := p.roundTrip(req)
		logger := p.logger.With("method", method, "endpoint", ep.Path, "attempt", attempt)

		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(contextError(ctx, ctx.Err()))
			}
			logger.Debug("request failed", "error", err, "duration", time.Since(start))
			lastErr = err
			return nil, err
		}
		logger.Debug("response", "status", resp.status, "duration", time.Since(start))

		switch {
		case resp.status >= 200 && resp.status < 300:
			return resp, nil
		case resp.status == http.StatusTooManyRequests:
			lastErr = newAPIError(resp.status, method, ep.Path, resp.body)
			wait, ok := retryAfter(resp.header, time.Now())
			switch {
			case !ok:
				return nil, lastErr
			case wait > maxRetryAfter:
				return nil, backoff.Permanent(lastErr)
			default:
				return nil, backoff.RetryAfter(int((wait + time.Second - 1) / time.Second))
			}
		case resp.status >= 500:
			lastErr = newAPIError(resp.status, method, ep.Path, resp.body)
			return nil, lastErr
		default:
			return nil, backoff.Permanent(newAPIError(resp.status, method, ep.Path, resp.body))
		}
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(p.retry.BackOff()),
		backoff.WithMaxTries(uint(p.retry.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			p.logger.Debug("retrying", "method", method, "endpoint", ep.Path, "delay", delay, "error", err)
		}),
	)

	var permanent *backoff.PermanentError
	switch {
	case err == nil:
		return decode(resp, out, ep.AllowEmpty)
	case errors.As(err, &permanent):
		return permanent.Err
	case ctx.Err() != nil:
		return contextError(ctx, ctx.Err())
	default:
		return fmt.Errorf("%w: giving up after %d attempts: %w", shared.ErrNetwork, attempt, lastErr)
	}
}

// newRequest builds and decorates one attempt. Its errors are never retried.
func (p *Pipeline) newRequest(ctx context.Context, method, target string, body []byte, contentType string, headers map[string]string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidURL, err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, i := range p.interceptors {
		if err := i.Intercept(ctx, req); err != nil {
			return nil, err
		}
	}

	return req, nil
}

func (p *Pipeline) roundTrip(req *http.Request) (*response, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// decode fills out from a 2xx body. A 204 or a nil out skips decoding; any other empty body is
// [shared.ErrDecoding] unless allowEmpty is set.
func decode(resp *response, out any, allowEmpty bool) error {
	if out == nil || resp.status == http.StatusNoContent {
		return nil
	}
	if len(bytes.TrimSpace(resp.body)) == 0 {
		if allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: empty %d response body", shared.ErrDecoding, resp.status)
	}

	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDecoding, err)
	}
	return nil
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}

	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}

	return 0, false
}

func contextError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", shared.ErrTimeout, err)
	}
	return fmt.Errorf("request cancelled: %w", err)
}
