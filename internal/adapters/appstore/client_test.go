package appstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"app_reviews/internal/adapters/appstore"
	"app_reviews/internal/domain"
)

var pageRe = regexp.MustCompile(`/page=(\d+)/id=(\d+)/json$`)

func entry(id string) map[string]any {
	return map[string]any{
		"id":         map[string]any{"label": id},
		"author":     map[string]any{"name": map[string]any{"label": "user-" + id}},
		"im:rating":  map[string]any{"label": "5"},
		"updated":    map[string]any{"label": "2024-05-01T10:00:00-07:00"},
		"im:version": map[string]any{"label": "1.0"},
		"title":      map[string]any{"label": "t"},
		"content":    map[string]any{"label": "c"},
	}
}

// feedServer serves sizes[n-1] entries for page n; page 1 gets a leading metadata entry
// counted inside its size.
func feedServer(t *testing.T, sizes []int, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		m := pageRe.FindStringSubmatch(r.URL.Path)
		if m == nil {
			http.NotFound(w, r)
			return
		}
		page, _ := strconv.Atoi(m[1])
		n := 0
		if page <= len(sizes) {
			n = sizes[page-1]
		}
		entries := make([]any, 0, n)
		for i := 0; i < n; i++ {
			if page == 1 && i == 0 {
				entries = append(entries, map[string]any{"im:name": map[string]any{"label": "App"}})
				continue
			}
			entries = append(entries, entry(fmt.Sprintf("p%d-%d", page, i)))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"feed": map[string]any{"entry": entries}})
	}))
}

func newClient(base string) *appstore.Client { return appstore.New(base, 1000) }

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestReviews_ExcludesMetadataAndStopsOnShortPage(t *testing.T) {
	var hits int32
	ts := feedServer(t, []int{50, 50, 20, 50}, &hits)
	defer ts.Close()

	got, err := newClient(ts.URL).Reviews(ctx(t), "511711198", "kr", 1000)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if want := 49 + 50 + 20; len(got) != want {
		t.Fatalf("got %d reviews, want %d", len(got), want)
	}
	if id := got[0]["id"].(map[string]any)["label"]; id != "p1-1" {
		t.Fatalf("first review should skip the metadata entry, got %v", id)
	}
	if h := atomic.LoadInt32(&hits); h != 3 {
		t.Fatalf("expected 3 page requests, got %d", h)
	}
}

func TestReviews_TruncatesToMax(t *testing.T) {
	var hits int32
	ts := feedServer(t, []int{50, 50, 50}, &hits)
	defer ts.Close()

	got, err := newClient(ts.URL).Reviews(ctx(t), "1", "us", 60)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 60 {
		t.Fatalf("got %d, want 60", len(got))
	}
	// ceil(60/50) = 2 pages
	if h := atomic.LoadInt32(&hits); h != 2 {
		t.Fatalf("expected 2 page requests, got %d", h)
	}
}

func TestReviews_MetadataOnly(t *testing.T) {
	var hits int32
	ts := feedServer(t, []int{1}, &hits)
	defer ts.Close()

	got, err := newClient(ts.URL).Reviews(ctx(t), "1", "kr", 200)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no reviews, got %d", len(got))
	}
}

func TestReviews_SingleObjectEntry(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"feed": map[string]any{"entry": entry("solo")}})
	}))
	defer ts.Close()

	got, err := newClient(ts.URL).Reviews(ctx(t), "1", "kr", 50)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	// a lone entry on page 1 is the metadata entry
	if len(got) != 0 {
		t.Fatalf("expected 0 reviews, got %d", len(got))
	}
}

func TestReviews_HTTPErrorAborts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pageRe.FindStringSubmatch(r.URL.Path)[1] == "2" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		entries := make([]any, 0, 50)
		for i := 0; i < 50; i++ {
			entries = append(entries, entry(strconv.Itoa(i)))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"feed": map[string]any{"entry": entries}})
	}))
	defer ts.Close()

	got, err := newClient(ts.URL).Reviews(ctx(t), "1", "kr", 200)
	if err == nil {
		t.Fatalf("expected error, got %d reviews", len(got))
	}
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T", err)
	}
	if te.Status != http.StatusServiceUnavailable || te.Op != "page 2" {
		t.Fatalf("unexpected transport error: %+v", te)
	}
	if got != nil {
		t.Fatalf("expected no partial result")
	}
}

func TestReviews_RejectsNonNumericID(t *testing.T) {
	_, err := newClient("http://127.0.0.1:0").Reviews(ctx(t), "kb-life", "kr", 50)
	if !errors.Is(err, domain.ErrInvalidAppID) {
		t.Fatalf("expected ErrInvalidAppID, got %v", err)
	}
}
