// internal/adapters/googleplay/client.go
package googleplay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"app_reviews/internal/adapters/observability"
	"app_reviews/internal/domain"
)

const DefaultBase = "https://play.google.com"

// batchSize is the most reviews the store hands out per call.
const batchSize = 199

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

// ReviewsAll follows continuation tokens until the store stops returning them.
// There is no count control: callers truncate the result themselves.
func (c *Client) ReviewsAll(ctx context.Context, appID, lang, country string, sort domain.GoogleSort) ([]domain.RawReview, error) {
	if appID == "" {
		return nil, fmt.Errorf("%w: empty", domain.ErrInvalidAppID)
	}
	var (
		out   []domain.RawReview
		token string
	)
	for batch := 1; ; batch++ {
		items, next, err := c.fetch(ctx, appID, lang, country, sort, token, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		log.Debug().Str("app_id", appID).Int("batch", batch).Int("items", len(items)).Msg("googleplay batch")

		if next == "" || len(items) == 0 {
			return out, nil
		}
		token = next
	}
}

func (c *Client) fetch(ctx context.Context, appID, lang, country string, sort domain.GoogleSort, token string, batch int) ([]domain.RawReview, string, error) {
	body, err := c.post(ctx, appID, lang, country, requestPayload(appID, sort, token), batch)
	if err != nil {
		return nil, "", err
	}
	items, next, err := parseResponse(body)
	if err != nil {
		return nil, "", &domain.TransportError{Source: domain.SourceGoogle, Op: fmt.Sprintf("batch %d", batch), Err: err}
	}
	return items, next, nil
}

// requestPayload builds the f.req value for the review list rpc.
func requestPayload(appID string, sort domain.GoogleSort, token string) string {
	var tok any
	if token != "" {
		tok = token
	}
	inner, _ := json.Marshal([]any{
		nil, nil,
		[]any{2, int(sort), []any{batchSize, nil, tok}, nil, []any{}},
		[]any{appID, 7},
	})
	outer, _ := json.Marshal([]any{[]any{[]any{"UsvDTd", string(inner), nil, "generic"}}})
	return string(outer)
}

func (c *Client) post(ctx context.Context, appID, lang, country, payload string, batch int) ([]byte, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("hl", lang)
	q.Set("gl", country)
	u := c.base + "/_/PlayStoreUi/data/batchexecute?" + q.Encode()
	form := url.Values{}
	form.Set("f.req", payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("User-Agent", "app-reviews/1.0")

	op := fmt.Sprintf("batch %d", batch)
	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("googleplay", "batchexecute", 0, time.Since(start))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.TransportError{Source: domain.SourceGoogle, Op: op, Err: err}
	}
	defer resp.Body.Close()
	observability.ObserveExternal("googleplay", "batchexecute", resp.StatusCode, time.Since(start))

	switch resp.StatusCode {
	case http.StatusOK:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &domain.TransportError{Source: domain.SourceGoogle, Op: op, Status: resp.StatusCode, Err: err}
		}
		return b, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, appID)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &domain.TransportError{
			Source: domain.SourceGoogle, Op: op, Status: resp.StatusCode,
			Err: fmt.Errorf("bad status: %s", strings.TrimSpace(string(b))),
		}
	}
}
