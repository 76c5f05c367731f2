package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"app_reviews/internal/app"
	"app_reviews/internal/domain"
)

// ---- fakes ----

type fakeGoogle struct {
	raw   []domain.RawReview
	err   error
	calls int
}

func (f *fakeGoogle) ReviewsAll(ctx context.Context, appID, lang, country string, sort domain.GoogleSort) ([]domain.RawReview, error) {
	f.calls++
	return f.raw, f.err
}

type fakeApple struct {
	raw   []domain.RawReview
	err   error
	panic bool
}

func (f *fakeApple) Reviews(ctx context.Context, appID, country string, max int) ([]domain.RawReview, error) {
	if f.panic {
		panic("boom")
	}
	return f.raw, f.err
}

func googleRaw(n int) []domain.RawReview {
	out := make([]domain.RawReview, 0, n)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out = append(out, domain.RawReview{
			"reviewId":     fmt.Sprintf("g-%d", i),
			"userName":     fmt.Sprintf("user%d", i),
			"score":        float64(i%5 + 1),
			"at":           base.Add(-time.Duration(i) * time.Hour),
			"content":      "body\x07",
			"replyContent": nil,
			"repliedAt":    nil,
		})
	}
	return out
}

func appleRaw(id, rating, updated string) domain.RawReview {
	return domain.RawReview{
		"id":         map[string]any{"label": id},
		"author":     map[string]any{"name": map[string]any{"label": "apple-" + id}},
		"im:rating":  map[string]any{"label": rating},
		"updated":    map[string]any{"label": updated},
		"im:version": map[string]any{"label": "3.0"},
		"title":      map[string]any{"label": "title"},
		"content":    map[string]any{"label": "content"},
	}
}

func newPipeline(g *fakeGoogle, a *fakeApple) *app.Pipeline {
	return app.NewPipeline(g, a, app.NewNormalizer(seoul))
}

// ---- tests ----

func TestRun_GoogleTruncatesToMax(t *testing.T) {
	p := newPipeline(&fakeGoogle{raw: googleRaw(30)}, &fakeApple{})
	res := p.Run(context.Background(), domain.RunConfig{Source: domain.SourceGoogle, AppID: "a.b", MaxCount: 10})
	if res.Err != nil {
		t.Fatalf("err: %v", res.Err)
	}
	if len(res.Rows) != 10 {
		t.Fatalf("got %d rows, want 10", len(res.Rows))
	}
	r := res.Rows[0]
	if r.Author != "user0" || r.Rating != 1 || r.Body != "body" || r.WrittenAt.String() != "2024-05-01 09:00:00" {
		t.Fatalf("unexpected first row: %+v", r)
	}
	if r.ReplyBody == nil || *r.ReplyBody != "N/A" || r.RepliedAt == nil || r.RepliedAt.Valid {
		t.Fatalf("missing reply fields should render N/A: %+v", r)
	}
	if r.Title != nil || r.Version != nil {
		t.Fatalf("google rows carry no title/version")
	}
}

func TestRun_GoogleEmptySkipsExport(t *testing.T) {
	p := newPipeline(&fakeGoogle{}, &fakeApple{})
	res := p.Run(context.Background(), domain.RunConfig{Source: domain.SourceGoogle, AppID: "a.b", MaxCount: 50})
	if res.Message != "no reviews found" || res.Err != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, _, err := p.Export(res, domain.FormatCSV); !errors.Is(err, domain.ErrNoReviews) {
		t.Fatalf("export should refuse empty results, got %v", err)
	}
}

func TestRun_GoogleNotFoundNamesApp(t *testing.T) {
	p := newPipeline(&fakeGoogle{err: fmt.Errorf("%w: x.y", domain.ErrNotFound)}, &fakeApple{})
	res := p.Run(context.Background(), domain.RunConfig{Source: domain.SourceGoogle, AppID: "x.y", MaxCount: 50})
	if !errors.Is(res.Err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", res.Err)
	}
	if !strings.Contains(res.Message, `"x.y"`) {
		t.Fatalf("message should name the app: %q", res.Message)
	}
}

func TestRun_AppleRatingAndFilter(t *testing.T) {
	apple := &fakeApple{raw: []domain.RawReview{
		appleRaw("1", "5", "2024-05-03T10:00:00-07:00"),
		appleRaw("2", "great", "2024-05-02T10:00:00-07:00"),
		appleRaw("3", "2", "2024-04-01T10:00:00-07:00"),
		appleRaw("1", "5", "2024-05-03T10:00:00-07:00"), // repeated across pages
	}}
	p := newPipeline(&fakeGoogle{}, apple)
	since, _ := p.Normalizer().Since("2024-05-01")
	res := p.Run(context.Background(), domain.RunConfig{Source: domain.SourceApple, AppID: "1", MaxCount: 50, Since: since})
	if res.Err != nil {
		t.Fatalf("err: %v", res.Err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(res.Rows), res.Rows)
	}
	if res.Rows[1].Rating != 0 || res.Rows[1].Author != "apple-2" {
		t.Fatalf("non-numeric rating should default to 0 and keep the row: %+v", res.Rows[1])
	}
	if *res.Rows[0].Version != "3.0" || *res.Rows[0].Title != "title" {
		t.Fatalf("apple optional fields missing: %+v", res.Rows[0])
	}
	if !reflect.DeepEqual(res.Distribution, map[int]int{5: 1, 0: 1}) {
		t.Fatalf("unexpected distribution: %v", res.Distribution)
	}
}

func TestRun_FutureSinceIsEmpty(t *testing.T) {
	p := newPipeline(&fakeGoogle{raw: googleRaw(5)}, &fakeApple{raw: []domain.RawReview{appleRaw("1", "4", "2024-05-03T10:00:00Z")}})
	future := time.Now().AddDate(0, 0, 7)
	for _, src := range []domain.Source{domain.SourceGoogle, domain.SourceApple} {
		res := p.Run(context.Background(), domain.RunConfig{Source: src, AppID: "1", MaxCount: 50, Since: &future})
		if len(res.Rows) != 0 || res.Message != "no reviews found" {
			t.Fatalf("%s: expected empty result, got %+v", src, res)
		}
	}
}

func TestRunAll_IsolatesFailures(t *testing.T) {
	apple := &fakeApple{err: &domain.TransportError{Source: domain.SourceApple, Op: "page 2", Status: 503, Err: errors.New("bad status")}}
	p := newPipeline(&fakeGoogle{raw: googleRaw(3)}, apple)
	out := p.RunAll(context.Background(),
		domain.RunConfig{Source: domain.SourceGoogle, AppID: "a.b", MaxCount: 50},
		domain.RunConfig{Source: domain.SourceApple, AppID: "1", MaxCount: 50},
	)
	if len(out) != 2 || !out[0].OK() {
		t.Fatalf("google should succeed: %+v", out)
	}
	if out[1].Err == nil || !strings.Contains(out[1].Message, "page 2") {
		t.Fatalf("apple failure should be reported: %+v", out[1])
	}
}

func TestRun_PanicIsContained(t *testing.T) {
	p := newPipeline(&fakeGoogle{}, &fakeApple{panic: true})
	res := p.Run(context.Background(), domain.RunConfig{Source: domain.SourceApple, AppID: "1", MaxCount: 50})
	if res.Err == nil || res.Message == "" {
		t.Fatalf("panic should surface as an error result: %+v", res)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	p := newPipeline(&fakeGoogle{}, &fakeApple{})
	raw := googleRaw(8)
	cfg := domain.RunConfig{Source: domain.SourceGoogle}
	a := p.Normalize(raw, cfg)
	b := p.Normalize(raw, cfg)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("normalizing twice differs")
	}
}

func TestExport_CSVFromResult(t *testing.T) {
	p := newPipeline(&fakeGoogle{raw: googleRaw(2)}, &fakeApple{})
	res := p.Run(context.Background(), domain.RunConfig{Source: domain.SourceGoogle, AppID: "a.b", MaxCount: 50})
	r, name, err := p.Export(res, domain.FormatCSV)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if name != "google_reviews.csv" {
		t.Fatalf("unexpected filename %q", name)
	}
	b, _ := io.ReadAll(r)
	if lines := strings.Count(string(b), "\n"); lines != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", lines)
	}
}
