package testutil

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestRecorder(t *testing.T) {
	var seen string
	srv := NewRecorder(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
		JSON(w, http.StatusCreated, `{"ok":true}`)
	})

	resp, err := http.Post(srv.URL+"/tracks", "application/json", strings.NewReader(`{"uris":["a"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if seen != `{"uris":["a"]}` {
		t.Errorf("expected handler to read the body, got %q", seen)
	}

	req, body := srv.Last()
	if string(body) != seen || req.URL.Path != "/tracks" || srv.Hits() != 1 {
		t.Errorf("unexpected record %s %q after %d hits", req.URL.Path, body, srv.Hits())
	}
	if resp.StatusCode != http.StatusCreated || resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("unexpected response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestLimitedWriter(t *testing.T) {
	var buf strings.Builder
	w := NewLimitedWriter(1, 0, &buf)

	if _, err := w.Write([]byte("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := w.Write([]byte("b")); err == nil {
		t.Error("expected second write to fail")
	}
	if buf.String() != "a" {
		t.Errorf("expected only the first write, got %q", buf.String())
	}
}
