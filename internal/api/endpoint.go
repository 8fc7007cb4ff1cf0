package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/nowplaying/internal/shared"
)

// Encoding selects how [Endpoint.Body] is written to the request.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingForm
)

// Endpoint describes one outbound request. It is built per call site and never mutated afterwards.
type Endpoint struct {
	BaseURL    string
	Path       string
	Method     string // defaults to GET
	Headers    map[string]string
	Parameters url.Values
	Body       any // []byte is sent as is; url.Values with EncodingForm; anything else is JSON
	Encoding   Encoding
	AllowEmpty bool // a 2xx with no body leaves the decode target untouched
}

// Get is shorthand for a GET [Endpoint] with query parameters.
func Get(base, path string, params url.Values) Endpoint {
	return Endpoint{BaseURL: base, Path: path, Method: http.MethodGet, Parameters: params}
}

// URL joins BaseURL and Path and appends Parameters.
//
// It fails with [shared.ErrInvalidURL] when either part is missing or malformed.
func (e Endpoint) URL() (*url.URL, error) {
	if strings.TrimSpace(e.BaseURL) == "" {
		return nil, fmt.Errorf("%w: empty base URL", shared.ErrInvalidURL)
	}

	base, err := url.Parse(e.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q is not absolute", shared.ErrInvalidURL, e.BaseURL)
	}

	ref, err := url.Parse(e.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidURL, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return nil, fmt.Errorf("%w: path %q must be relative", shared.ErrInvalidURL, e.Path)
	}

	u := *base
	u.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
	u.RawPath = ""

	query := base.Query()
	for k, vs := range ref.Query() {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	for k, vs := range e.Parameters {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	u.RawQuery = query.Encode()
	u.Fragment = ""

	return &u, nil
}

func (e Endpoint) method() string {
	if e.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(e.Method)
}

// encodeBody returns the serialized body and its content type. A nil body yields nil.
func (e Endpoint) encodeBody() ([]byte, string, error) {
	switch body := e.Body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return body, "application/octet-stream", nil
	case url.Values:
		if e.Encoding == EncodingForm {
			return []byte(body.Encode()), "application/x-www-form-urlencoded", nil
		}
	}

	if e.Encoding == EncodingForm {
		return nil, "", fmt.Errorf("form encoding requires url.Values, got %T", e.Body)
	}

	data, err := json.Marshal(e.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request body: %w", err)
	}
	return data, "application/json", nil
}
