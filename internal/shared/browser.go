package shared

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// launcher is a command that takes the URL as its final argument.
type launcher []string

// launchers lists candidate commands per GOOS, tried in order until one is on PATH.
//
// Windows goes through rundll32 rather than `cmd /c start`, which splits query strings on '&'.
var launchers = map[string][]launcher{
	"darwin":  {{"open"}},
	"linux":   {{"xdg-open"}, {"sensible-browser"}, {"x-www-browser"}},
	"freebsd": {{"xdg-open"}},
	"openbsd": {{"xdg-open"}},
	"windows": {{"rundll32", "url.dll,FileProtocolHandler"}},
}

// BrowserOpener starts the system browser. The zero value uses the host platform.
type BrowserOpener struct {
	GOOS     string                                  // defaults to runtime.GOOS
	LookPath func(file string) (string, error)       // defaults to exec.LookPath
	Start    func(name string, args ...string) error // defaults to starting the command detached
	Getenv   func(key string) string                 // defaults to os.Getenv
}

// OpenBrowser opens rawURL with the host's default browser.
func OpenBrowser(rawURL string) error {
	return BrowserOpener{}.Open(rawURL)
}

// Open validates rawURL and hands it to the first available launcher. A command named in $BROWSER wins.
func (o BrowserOpener) Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: refusing to open %q", ErrInvalidURL, rawURL)
	}

	cmd, err := o.resolve()
	if err != nil {
		return err
	}

	args := append(cmd[1:len(cmd):len(cmd)], u.String())
	if err := o.start(cmd[0], args...); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func (o BrowserOpener) resolve() (launcher, error) {
	lookPath := o.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	getenv := o.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	goos := o.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	if fields := strings.Fields(getenv("BROWSER")); len(fields) > 0 {
		if _, err := lookPath(fields[0]); err == nil {
			return launcher(fields), nil
		}
	}

	candidates, ok := launchers[goos]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
	for _, c := range candidates {
		if _, err := lookPath(c[0]); err == nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no browser launcher found for %s; open the URL manually", goos)
}

func (o BrowserOpener) start(name string, args ...string) error {
	if o.Start != nil {
		return o.Start(name, args...)
	}

	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
