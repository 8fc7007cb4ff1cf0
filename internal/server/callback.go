package server

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// URLHandler consumes a redirect URL. auth.Authorizer satisfies it.
type URLHandler interface {
	Handle(ctx context.Context, u *url.URL) bool
}

// CallbackHandler receives the OAuth redirect on the loopback server and forwards it to a [URLHandler].
//
// Only the first redirect the target accepts is forwarded. The outcome itself is reported by the
// authorizer to the session manager, so the page shown here only confirms receipt.
type CallbackHandler struct {
	target URLHandler
	path   string
	logger *log.Logger

	mu          sync.Mutex
	callbackHit bool
	done        chan struct{}
}

// NewCallbackHandler creates a [CallbackHandler] serving path.
func NewCallbackHandler(target URLHandler, path string, logger *log.Logger) *CallbackHandler {
	if path == "" {
		path = "/callback"
	}
	if logger == nil {
		logger = shared.NopLogger()
	}

	return &CallbackHandler{target: target, path: path, logger: logger, done: make(chan struct{})}
}

// CallbackPath returns the path component of a redirect URI.
func CallbackPath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" {
		return "/callback"
	}
	return u.Path
}

// Routes returns the single GET route for the redirect path.
func (h *CallbackHandler) Routes() []Route {
	return []Route{{Method: http.MethodGet, Path: h.path}}
}

// Done is closed once a redirect has been forwarded.
func (h *CallbackHandler) Done() <-chan struct{} {
	return h.done
}

// ServeHTTP forwards the callback URL and renders a confirmation page. Method filtering is left to the
// router that registered [CallbackHandler.Routes].
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.callbackHit {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	u := &url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	if !h.target.Handle(context.WithoutCancel(r.Context()), u) {
		h.logger.Warn("redirect not accepted", "path", r.URL.Path)
		render(w, http.StatusNotFound, resultPage{
			Title:   "No Sign-In Pending",
			Message: "This redirect does not match a sign-in in progress. Run np auth login to start again.",
		}, h.logger)
		return
	}

	h.callbackHit = true
	close(h.done)

	page := resultPage{
		Title:   "Authorization Received",
		Message: "You can close this window and return to the terminal.",
		OK:      true,
	}
	status := http.StatusOK

	if reason := r.URL.Query().Get("error"); reason != "" {
		page = resultPage{Title: "Authorization Declined", Message: "Spotify reported: " + reason}
		status = http.StatusBadRequest
	}

	render(w, status, page, h.logger)
}

func render(w http.ResponseWriter, status int, page resultPage, logger *log.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := resultTemplate.Execute(w, page); err != nil {
		logger.Warn("failed to render callback page", "error", err)
	}
}

type resultPage struct {
	Title   string
	Message string
	OK      bool
}

var resultTemplate = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; }
        .ok { color: #1DB954; }
        .err { color: #E22134; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1 class="{{if .OK}}ok{{else}}err{{end}}">{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))
