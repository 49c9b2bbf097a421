package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/uniqa/tools/web_fetch"
)

func newSession(t *testing.T) web_fetch.Session {
	t.Helper()
	sess, err := New(web_fetch.Options{UserAgent: "uniqa-test"}).NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

// hang blocks until the client goes away.
func hang(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(5 * time.Second):
	}
}

func TestFetchOutcomes(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "uniqa-test" {
			http.Error(w, "bad agent", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><h1>ITMO</h1><p>founded in 1900</p></body></html>"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><script>x()</script></body></html>"))
	})
	mux.HandleFunc("/missing", http.NotFound)
	mux.HandleFunc("/binary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF"))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("  plain\n\ntext "))
	})
	mux.HandleFunc("/plain-tagged", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("<p>ITMO &amp; <b>labs</b></p><script>x()</script>"))
	})
	mux.HandleFunc("/plain-tags-only", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("<br/> <hr>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sess := newSession(t)
	tests := []struct {
		path   string
		status web_fetch.Status
		text   string
		reason string
	}{
		{"/page", web_fetch.StatusSuccess, "ITMO founded in 1900", ""},
		{"/empty", web_fetch.StatusEmpty, "", ""},
		{"/missing", web_fetch.StatusFailure, "", "HTTP 404"},
		{"/binary", web_fetch.StatusFailure, "", "unsupported content type"},
		{"/plain", web_fetch.StatusSuccess, "plain text", ""},
		{"/plain-tagged", web_fetch.StatusSuccess, "ITMO & labs", ""},
		{"/plain-tags-only", web_fetch.StatusEmpty, "", ""},
	}
	for _, tt := range tests {
		out := sess.Fetch(context.Background(), srv.URL+tt.path, time.Second)
		if out.Status != tt.status {
			t.Fatalf("%s: status = %s, want %s (reason %q)", tt.path, out.Status, tt.status, out.Reason)
		}
		if out.Text != tt.text {
			t.Fatalf("%s: text = %q, want %q", tt.path, out.Text, tt.text)
		}
		if !strings.Contains(out.Reason, tt.reason) {
			t.Fatalf("%s: reason = %q, want it to contain %q", tt.path, out.Reason, tt.reason)
		}
	}
}

func TestFetchDeadline(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(hang))
	defer srv.Close()

	sess := newSession(t)
	start := time.Now()
	out := sess.Fetch(context.Background(), srv.URL, 100*time.Millisecond)
	if out.Status != web_fetch.StatusFailure || out.Reason != web_fetch.ReasonTimeout {
		t.Fatalf("expected timeout failure, got %+v", out)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("fetch overran its deadline: %s", elapsed)
	}
}

func TestFetchSlowBodyHitsDeadline(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>partial"))
		w.(http.Flusher).Flush()
		hang(w, r)
	}))
	defer srv.Close()

	out := newSession(t).Fetch(context.Background(), srv.URL, 150*time.Millisecond)
	if out.Status != web_fetch.StatusFailure || out.Reason != web_fetch.ReasonTimeout {
		t.Fatalf("expected timeout while reading body, got %+v", out)
	}
	if out.Text != "" {
		t.Fatalf("partial text leaked: %q", out.Text)
	}
}

func TestFetchCanceled(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(hang))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	out := newSession(t).Fetch(ctx, srv.URL, 5*time.Second)
	if out.Status != web_fetch.StatusFailure || out.Reason != web_fetch.ReasonCanceled {
		t.Fatalf("expected canceled failure, got %+v", out)
	}
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()
	out := newSession(t).Fetch(context.Background(), "http://127.0.0.1:1/unreachable", time.Second)
	if out.Status != web_fetch.StatusFailure || out.Reason == "" {
		t.Fatalf("expected failure with reason, got %+v", out)
	}
	out = newSession(t).Fetch(context.Background(), " ", time.Second)
	if out.Status != web_fetch.StatusFailure {
		t.Fatalf("expected failure for blank url, got %+v", out)
	}
}
