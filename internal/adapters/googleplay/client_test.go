package googleplay_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"app_reviews/internal/adapters/googleplay"
	"app_reviews/internal/domain"
)

// item builds one positional review record.
func item(id, user string, score int, at int64, content string) []any {
	return []any{
		id,
		[]any{user, nil},
		score,
		nil,
		content,
		[]any{at, 0},
		3,
		[]any{nil, "thanks!", []any{at + 60, 0}},
		nil,
		nil,
		"2.1.0",
	}
}

// envelope wraps review items and a continuation token the way the store does.
func envelope(items []any, token any) string {
	data, _ := json.Marshal([]any{items, []any{nil, token}})
	frame, _ := json.Marshal([]any{[]any{"wrb.fr", "UsvDTd", string(data), nil, nil, nil, "generic"}})
	return ")]}'\n\n" + string(frame)
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestReviewsAll_FollowsTokens(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/batchexecute") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("hl") != "ko" || r.URL.Query().Get("gl") != "kr" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_ = r.ParseForm()
		freq := r.PostForm.Get("f.req")
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			if strings.Contains(freq, "TOKEN-1") {
				t.Errorf("first call must not carry a token: %s", freq)
			}
			fmt.Fprint(w, envelope([]any{
				item("r1", "kim", 5, 1714521600, "good"),
				item("r2", "lee", 4, 1714435200, "ok"),
			}, "TOKEN-1"))
		default:
			if !strings.Contains(freq, "TOKEN-1") {
				t.Errorf("second call must carry the token: %s", freq)
			}
			fmt.Fprint(w, envelope([]any{item("r3", "park", 1, 1714348800, "bad")}, nil))
		}
	}))
	defer ts.Close()

	got, err := googleplay.New(ts.URL, 1000).ReviewsAll(ctx(t), "kr.co.kbliSmart", "ko", "kr", domain.SortNewest)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d reviews, want 3", len(got))
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	r := got[0]
	if r["userName"] != "kim" || r["content"] != "good" || r["replyContent"] != "thanks!" {
		t.Fatalf("unexpected mapping: %+v", r)
	}
	at, ok := r["at"].(time.Time)
	if !ok || at.Unix() != 1714521600 || at.Location() != time.UTC {
		t.Fatalf("unexpected at: %#v", r["at"])
	}
	if score, _ := r["score"].(float64); score != 5 {
		t.Fatalf("unexpected score: %#v", r["score"])
	}
}

func TestReviewsAll_NullPayloadIsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `)]}'`+"\n\n"+`[["wrb.fr","UsvDTd",null,null,null,[5],"generic"]]`)
	}))
	defer ts.Close()

	got, err := googleplay.New(ts.URL, 1000).ReviewsAll(ctx(t), "x.y", "ko", "kr", domain.SortNewest)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty, got %d", len(got))
	}
}

func TestReviewsAll_404IsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := googleplay.New(ts.URL, 1000).ReviewsAll(ctx(t), "no.such.app", "ko", "kr", domain.SortNewest)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "no.such.app") {
		t.Fatalf("error should name the app id: %v", err)
	}
}

func TestReviewsAll_ServerErrorIsTransport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := googleplay.New(ts.URL, 1000).ReviewsAll(ctx(t), "a.b", "ko", "kr", domain.SortNewest)
	var te *domain.TransportError
	if !errors.As(err, &te) || te.Status != http.StatusInternalServerError {
		t.Fatalf("expected TransportError 500, got %v", err)
	}
}
