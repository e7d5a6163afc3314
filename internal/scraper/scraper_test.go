package scraper_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AI-Template-SDK/senso-visibility/internal/providers/testutil"
	"github.com/AI-Template-SDK/senso-visibility/internal/scraper"
)

func TestFetchPageText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(testutil.SampleHomepageHTML()))
		case "/slow":
			time.Sleep(500 * time.Millisecond)
			w.Write([]byte("<html><body>late</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := scraper.New(200 * time.Millisecond)
	ctx := context.Background()

	t.Run("homepage", func(t *testing.T) {
		text := f.FetchPageText(ctx, server.URL+"/")
		if !strings.Contains(text, "Acme") {
			t.Errorf("expected page text to mention Acme, got %q", text)
		}
		if strings.Contains(text, "\n") || strings.Contains(text, "  ") {
			t.Errorf("expected collapsed whitespace, got %q", text)
		}
	})

	tests := []struct {
		name string
		url  string
	}{
		{"not found", server.URL + "/missing"},
		{"timeout", server.URL + "/slow"},
		{"bad scheme", "ftp://example.org"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if text := f.FetchPageText(ctx, tt.url); text != "" {
				t.Errorf("expected empty text, got %q", text)
			}
		})
	}

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if text := f.FetchPageText(cancelled, server.URL+"/"); text != "" {
			t.Errorf("expected empty text, got %q", text)
		}
	})
}

func TestClean(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	got := scraper.Clean(long)
	if len([]rune(got)) != scraper.MaxPageChars {
		t.Errorf("expected %d chars, got %d", scraper.MaxPageChars, len([]rune(got)))
	}
	if got := scraper.Clean("  a\n\tb  "); got != "a b" {
		t.Errorf("Clean() = %q", got)
	}
}
