package app

import (
	"strings"

	"app_reviews/internal/domain"
)

/********** alias registries (single source of truth) **********/

var googleAliases = map[string][]string{
	"id":         {"reviewId"},
	"author":     {"userName"},
	"rating":     {"score"},
	"written_at": {"at"},
	"body":       {"content"},
	"reply_body": {"replyContent"},
	"replied_at": {"repliedAt"},
}

var appleAliases = map[string][]string{
	"id":         {"id.label"},
	"author":     {"author.name.label"},
	"rating":     {"im:rating.label"},
	"written_at": {"updated.label"},
	"title":      {"title.label"},
	"body":       {"content.label"},
	"version":    {"im:version.label"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// firstAlias returns the first non-nil value for a named alias set.
func firstAlias(m map[string]any, aliases map[string][]string, key string) any {
	for _, p := range aliases[key] {
		if v := lookupAny(m, p); v != nil {
			return v
		}
	}
	return nil
}

func idString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

/********** per-source mappers **********/

func (n *Normalizer) mapGoogle(r domain.RawReview) domain.Review {
	rv := domain.Review{
		Source:    domain.SourceGoogle,
		SourceID:  idString(firstAlias(r, googleAliases, "id")),
		Author:    Text(firstAlias(r, googleAliases, "author")),
		Rating:    Rating(firstAlias(r, googleAliases, "rating")),
		WrittenAt: n.Time(firstAlias(r, googleAliases, "written_at")),
		Body:      Text(firstAlias(r, googleAliases, "body")),
	}
	// reply columns always exist for Google rows; blanks render as N/A
	reply := Text(firstAlias(r, googleAliases, "reply_body"))
	rv.ReplyBody = &reply
	repliedAt := n.Time(firstAlias(r, googleAliases, "replied_at"))
	rv.RepliedAt = &repliedAt
	return rv
}

func (n *Normalizer) mapApple(r domain.RawReview) domain.Review {
	return domain.Review{
		Source:    domain.SourceApple,
		SourceID:  idString(firstAlias(r, appleAliases, "id")),
		Author:    Text(firstAlias(r, appleAliases, "author")),
		Rating:    Rating(firstAlias(r, appleAliases, "rating")),
		WrittenAt: n.Time(firstAlias(r, appleAliases, "written_at")),
		Title:     OptText(firstAlias(r, appleAliases, "title")),
		Body:      Text(firstAlias(r, appleAliases, "body")),
		Version:   OptText(firstAlias(r, appleAliases, "version")),
	}
}

// Map normalizes a raw batch from one source. It never drops rows.
func (n *Normalizer) Map(src domain.Source, raw []domain.RawReview) []domain.Review {
	out := make([]domain.Review, 0, len(raw))
	for _, r := range raw {
		switch src {
		case domain.SourceGoogle:
			out = append(out, n.mapGoogle(r))
		case domain.SourceApple:
			out = append(out, n.mapApple(r))
		}
	}
	return out
}
