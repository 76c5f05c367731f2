package googleplay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"app_reviews/internal/domain"
)

var errNoEnvelope = errors.New("response has no rpc envelope")

// parseResponse returns the raw reviews and the continuation token ("" at the end).
//
// The body is `)]}'` followed by a blank line and a JSON envelope whose
// first frame carries the rpc result as a JSON-encoded string.
func parseResponse(body []byte) ([]domain.RawReview, string, error) {
	if i := bytes.Index(body, []byte("\n\n")); bytes.HasPrefix(body, []byte(")]}'")) && i >= 0 {
		body = body[i+2:]
	}
	var env []any
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, "", fmt.Errorf("decode envelope: %w", err)
	}
	frame, ok := idx(env, 0).([]any)
	if !ok {
		return nil, "", errNoEnvelope
	}
	payload, ok := idx(frame, 2).(string)
	if !ok {
		// null payload: nothing (more) for this app
		return nil, "", nil
	}
	var data []any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, "", fmt.Errorf("decode payload: %w", err)
	}

	items, _ := idx(data, 0).([]any)
	out := make([]domain.RawReview, 0, len(items))
	for _, it := range items {
		out = append(out, mapItem(it))
	}

	// the token sits at the end of the last trailing frame that carries one
	var token string
	for i := len(data) - 1; i >= 1 && token == ""; i-- {
		if tail, ok := data[i].([]any); ok && len(tail) > 0 {
			token, _ = tail[len(tail)-1].(string)
		}
	}
	return out, token, nil
}

// mapItem names the positional fields of one review.
func mapItem(it any) domain.RawReview {
	return domain.RawReview{
		"reviewId":             at(it, 0),
		"userName":             at(it, 1, 0),
		"score":                at(it, 2),
		"content":              at(it, 4),
		"at":                   unixAt(at(it, 5, 0)),
		"thumbsUpCount":        at(it, 6),
		"replyContent":         at(it, 7, 1),
		"repliedAt":            unixAt(at(it, 7, 2, 0)),
		"reviewCreatedVersion": at(it, 10),
	}
}

func idx(v []any, i int) any {
	if i < 0 || i >= len(v) {
		return nil
	}
	return v[i]
}

// at is a safe nested lookup over positional arrays.
func at(v any, path ...int) any {
	cur := v
	for _, i := range path {
		arr, ok := cur.([]any)
		if !ok {
			return nil
		}
		cur = idx(arr, i)
	}
	return cur
}

func unixAt(v any) any {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return time.Unix(int64(f), 0).UTC()
}
