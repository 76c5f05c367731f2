// internal/adapters/appstore/client.go
package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"app_reviews/internal/adapters/observability"
	"app_reviews/internal/domain"
)

// PageSize is fixed by the customer reviews feed.
const PageSize = 50

const DefaultBase = "https://itunes.apple.com"

type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
}

func New(base string, rps int) *Client {
	if base == "" {
		base = DefaultBase
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Reviews walks the feed one page at a time until max entries are collected
// or the feed runs dry. Any failed page aborts the whole fetch.
func (c *Client) Reviews(ctx context.Context, appID, country string, max int) ([]domain.RawReview, error) {
	if !isDigits(appID) {
		return nil, fmt.Errorf("%w: %q must be numeric", domain.ErrInvalidAppID, appID)
	}
	if max <= 0 {
		return nil, nil
	}
	pages := (max + PageSize - 1) / PageSize

	var out []domain.RawReview
	for page := 1; page <= pages; page++ {
		entries, err := c.page(ctx, appID, country, page)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("app_id", appID).Int("page", page).Int("entries", len(entries)).Msg("appstore page")

		if len(entries) == 0 {
			break
		}
		reviews := entries
		if page == 1 {
			// first entry of page 1 describes the feed itself
			if len(entries) <= 1 {
				break
			}
			reviews = entries[1:]
		}
		out = append(out, reviews...)

		if len(out) >= max || len(entries) < PageSize {
			break
		}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

type feedDoc struct {
	Feed struct {
		Entry json.RawMessage `json:"entry"`
	} `json:"feed"`
}

func (c *Client) page(ctx context.Context, appID, country string, page int) ([]domain.RawReview, error) {
	u := fmt.Sprintf("%s/%s/rss/customerreviews/page=%d/id=%s/json", c.base, country, page, appID)
	op := fmt.Sprintf("page %d", page)

	var doc feedDoc
	if err := c.get(ctx, u, op, &doc); err != nil {
		return nil, err
	}
	entries, err := decodeEntries(doc.Feed.Entry)
	if err != nil {
		return nil, &domain.TransportError{Source: domain.SourceApple, Op: op, Err: err}
	}
	return entries, nil
}

// decodeEntries accepts a list of entries, a lone entry object, or nothing.
func decodeEntries(raw json.RawMessage) ([]domain.RawReview, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var list []map[string]any
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode entry list: %w", err)
		}
		out := make([]domain.RawReview, 0, len(list))
		for _, e := range list {
			out = append(out, e)
		}
		return out, nil
	case '{':
		var one map[string]any
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		return []domain.RawReview{one}, nil
	}
	return nil, errors.New("feed.entry is neither list nor object")
}

// get performs one rate-limited GET and decodes JSON into out. No retries.
func (c *Client) get(ctx context.Context, url, op string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "app-reviews/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("appstore", "customerreviews", 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.TransportError{Source: domain.SourceApple, Op: op, Err: err}
	}
	defer resp.Body.Close()
	observability.ObserveExternal("appstore", "customerreviews", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		// read a small error body for diagnostics
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.TransportError{
			Source: domain.SourceApple, Op: op, Status: resp.StatusCode,
			Err: fmt.Errorf("bad status: %s", strings.TrimSpace(string(b))),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Source: domain.SourceApple, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
