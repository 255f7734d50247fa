package article

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/latebit/wikinet/internal/fetch"
)

// fakeWiki serves a tiny MediaWiki Action API with formatversion=2 responses.
func fakeWiki(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "query" || q.Get("format") != "json" || q.Get("formatversion") != "2" || q.Get("redirects") != "1" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		title := q.Get("titles")
		w.Header().Set("Content-Type", "application/json")

		if title == "Missing" {
			fmt.Fprintf(w, `{"query":{"pages":[{"ns":0,"title":%q,"missing":true}]}}`, title)
			return
		}
		if title == "Broken" {
			fmt.Fprint(w, `{"error":{"code":"internal_api_error","info":"boom"}}`)
			return
		}

		switch q.Get("prop") {
		case "info":
			fmt.Fprintf(w, `{"query":{"pages":[{"pageid":1,"ns":0,"title":%q}]}}`, title)
		case "extracts":
			if q.Get("explaintext") != "1" {
				http.Error(w, "expected explaintext", http.StatusBadRequest)
				return
			}
			fmt.Fprintf(w, `{"query":{"pages":[{"pageid":1,"ns":0,"title":%q,"extract":"Text of %s."}]}}`, title, title)
		case "links":
			if q.Get("plnamespace") != "0" {
				http.Error(w, "expected namespace 0", http.StatusBadRequest)
				return
			}
			if q.Get("plcontinue") == "" {
				fmt.Fprintf(w, `{"continue":{"plcontinue":"1|0|C","continue":"||"},"query":{"pages":[{"pageid":1,"ns":0,"title":%q,"links":[{"ns":0,"title":"A"},{"ns":0,"title":"B"}]}]}}`, title)
				return
			}
			fmt.Fprintf(w, `{"batchcomplete":true,"query":{"pages":[{"pageid":1,"ns":0,"title":%q,"links":[{"ns":0,"title":"C"}]}]}}`, title)
		default:
			http.Error(w, "unknown prop", http.StatusBadRequest)
		}
	}))
}

func newTestWikipedia(t *testing.T, endpoint string) *Wikipedia {
	t.Helper()
	w, err := NewWikipedia(WikipediaOptions{
		Endpoint: endpoint,
		Client:   fetch.NewClient(fetch.Options{BaseBackoff: time.Millisecond}),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewWikipedia() error: %v", err)
	}
	return w
}

func TestWikipediaText(t *testing.T) {
	srv := fakeWiki(t)
	defer srv.Close()
	w := newTestWikipedia(t, srv.URL)

	text, err := w.Text(context.Background(), "Network theory")
	if err != nil {
		t.Fatalf("Text() error: %v", err)
	}
	if text != "Text of Network theory." {
		t.Errorf("Text() = %q", text)
	}
}

func TestWikipediaLinksFollowsContinuation(t *testing.T) {
	srv := fakeWiki(t)
	defer srv.Close()
	w := newTestWikipedia(t, srv.URL)

	got, err := w.Links(context.Background(), "Network theory")
	if err != nil {
		t.Fatalf("Links() error: %v", err)
	}
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("Links() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Links()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWikipediaMissingArticle(t *testing.T) {
	srv := fakeWiki(t)
	defer srv.Close()
	w := newTestWikipedia(t, srv.URL)

	if _, err := w.Text(context.Background(), "Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Text() error = %v, want ErrNotFound", err)
	}
	if _, err := w.Links(context.Background(), "Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Links() error = %v, want ErrNotFound", err)
	}
	ok, err := w.Exists(context.Background(), "Missing")
	if err != nil || ok {
		t.Errorf("Exists(Missing) = (%v, %v), want (false, nil)", ok, err)
	}
	ok, err = w.Exists(context.Background(), "Network theory")
	if err != nil || !ok {
		t.Errorf("Exists(Network theory) = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestWikipediaAPIError(t *testing.T) {
	srv := fakeWiki(t)
	defer srv.Close()
	w := newTestWikipedia(t, srv.URL)

	_, err := w.Text(context.Background(), "Broken")
	if err == nil {
		t.Fatal("Text() expected error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("API error must not be reported as ErrNotFound: %v", err)
	}
}

func TestNewWikipediaDefaults(t *testing.T) {
	w, err := NewWikipedia(WikipediaOptions{Language: "de"})
	if err != nil {
		t.Fatalf("NewWikipedia() error: %v", err)
	}
	if w.Host() != "de.wikipedia.org" {
		t.Errorf("Host() = %q, want de.wikipedia.org", w.Host())
	}

	if _, err := NewWikipedia(WikipediaOptions{Endpoint: "not a url"}); err == nil {
		t.Error("NewWikipedia() should reject an endpoint without host")
	}
}
