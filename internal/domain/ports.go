package domain

import (
	"context"
	"time"
)

type GooglePlayClient interface {
	// ReviewsAll returns the full review history, ordered by sort.
	ReviewsAll(ctx context.Context, appID, lang, country string, sort GoogleSort) ([]RawReview, error)
}

type AppStoreClient interface {
	Reviews(ctx context.Context, appID, country string, max int) ([]RawReview, error)
}

// ExportStore holds the latest published export buffers.
type ExportStore interface {
	Put(ctx context.Context, key string, b []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// ReviewArchive is an optional write-only sink for normalized rows.
type ReviewArchive interface {
	ArchiveReviews(ctx context.Context, runID, appID string, rs []Review) error
	// LogMiss records a target that produced no rows (unknown app, bad id).
	LogMiss(ctx context.Context, runID string, src Source, appID, reason string) error
}

type GoogleSort int

const (
	SortRelevance GoogleSort = 1
	SortNewest    GoogleSort = 2
	SortRating    GoogleSort = 3
)

// RunConfig replaces the per-revision scripts with one record.
type RunConfig struct {
	Source   Source
	AppID    string
	Lang     string
	Country  string
	MaxCount int
	Since    *time.Time // inclusive; nil keeps all
	Format   ExportFormat
}

type RunResult struct {
	Source       Source
	AppID        string
	Rows         []Review
	Distribution map[int]int
	Message      string
	Err          error
}

// OK reports whether rows are ready for export.
func (r RunResult) OK() bool { return r.Err == nil && len(r.Rows) > 0 }
