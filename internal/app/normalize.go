package app

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"app_reviews/internal/domain"
)

// DefaultZone is the display zone used when none is configured.
const DefaultZone = "Asia/Seoul"

// LoadZone resolves name, falling back to a fixed KST offset when the tz database is unavailable.
func LoadZone(name string) *time.Location {
	if name == "" {
		name = DefaultZone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("KST", 9*60*60)
}

// zone-less layouts are read as UTC
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
	"Jan 2, 2006",
	"01/02/2006",
}

// Normalizer turns raw values into display-ready ones. It holds no per-run state.
type Normalizer struct {
	loc *time.Location
}

func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = LoadZone("")
	}
	return &Normalizer{loc: loc}
}

func (n *Normalizer) Location() *time.Location { return n.loc }

// Time parses v into the display zone; anything unparseable is an invalid Timestamp.
func (n *Normalizer) Time(v any) domain.Timestamp {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case *time.Time:
		if x == nil {
			return domain.Timestamp{}
		}
		t = *x
	case float64:
		t = time.Unix(int64(x), 0)
	case int64:
		t = time.Unix(x, 0)
	case int:
		t = time.Unix(int64(x), 0)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return domain.Timestamp{}
		}
		t = time.Unix(i, 0)
	case string:
		var ok bool
		if t, ok = parseTimeString(x); !ok {
			return domain.Timestamp{}
		}
	default:
		return domain.Timestamp{}
	}
	if t.IsZero() {
		return domain.Timestamp{}
	}
	return domain.Timestamp{Time: t.In(n.loc), Valid: true}
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == domain.NotAvailable {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Since parses a YYYY-MM-DD start boundary as midnight in the display zone.
func (n *Normalizer) Since(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, n.loc)
	if err != nil {
		return nil, fmt.Errorf("since must be YYYY-MM-DD: %w", err)
	}
	return &t, nil
}

// Sanitize strips ASCII control characters. Tab, LF and CR are kept.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r <= 0x08, r == 0x0B, r == 0x0C, r >= 0x0E && r <= 0x1F, r == 0x7F:
			return -1
		}
		return r
	}, s)
}

// Text returns sanitized text, N/A when missing. Non-string values are
// formatted first, then sanitized like any other text.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return domain.NotAvailable
	case string:
		return Sanitize(x)
	default:
		return Sanitize(fmt.Sprint(x))
	}
}

// OptText is Text for fields that only some sources supply.
func OptText(v any) *string {
	if v == nil {
		return nil
	}
	s := Text(v)
	return &s
}

// Rating maps numbers and numeric strings to 1..5; anything else is 0.
func Rating(v any) int {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		var err error
		if f, err = x.Float64(); err != nil {
			return 0
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(x), 64); err != nil {
			return 0
		}
	default:
		return 0
	}
	if f < 0 || f > 5 || f != float64(int(f)) {
		return 0
	}
	return int(f)
}

// FilterSince keeps rows written at or after since. Rows without a valid
// date cannot be compared and are dropped only while a filter is active.
func FilterSince(rows []domain.Review, since *time.Time) []domain.Review {
	if since == nil {
		return rows
	}
	out := make([]domain.Review, 0, len(rows))
	for _, r := range rows {
		if r.WrittenAt.Valid && !r.WrittenAt.Time.Before(*since) {
			out = append(out, r)
		}
	}
	return out
}

// Dedupe keeps the first row per review key, preserving order.
func Dedupe(rows []domain.Review) []domain.Review {
	seen := make(map[string]struct{}, len(rows))
	out := make([]domain.Review, 0, len(rows))
	for _, r := range rows {
		k := r.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Distribution counts rows per rating (0 = missing).
func Distribution(rows []domain.Review) map[int]int {
	out := make(map[int]int, 6)
	for _, r := range rows {
		out[r.Rating]++
	}
	return out
}
