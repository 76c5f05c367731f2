package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"app_reviews/internal/domain"
)

// maxRowsPerInsert keeps one statement well under the 65535 placeholder limit.
const maxRowsPerInsert = 500

func valStr(p *string) any {
	if p == nil || *p == domain.NotAvailable {
		return nil
	}
	return *p
}

// valTime stores timestamps as UTC DATETIME; invalid ones become NULL.
func valTime(t *domain.Timestamp) any {
	if t == nil || !t.Valid {
		return nil
	}
	return t.Time.UTC().Format(time.DateTime)
}

// Repo archives normalized reviews. It never reads them back into the pipeline.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) ArchiveReviews(ctx context.Context, runID, appID string, rs []domain.Review) error {
	if len(rs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(rs); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(rs))
		if err := insertChunk(ctx, tx, runID, appID, rs[start:end]); err != nil {
			return fmt.Errorf("insert reviews [%d:%d]: %w", start, end, err)
		}
	}
	return tx.Commit()
}

func insertChunk(ctx context.Context, tx *sql.Tx, runID, appID string, rs []domain.Review) error {
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*12) // 12 params per row
	for _, rv := range rs {
		values = append(values, reviewPlaceholders)
		author := rv.Author
		args = append(args,
			string(rv.Source),      // source
			appID,                  // app_id
			rv.Key(),               // review_key
			runID,                  // run_id
			valStr(&author),        // author
			rv.Rating,              // rating
			valTime(&rv.WrittenAt), // written_at
			rv.Body,                // body
			valStr(rv.ReplyBody),   // reply_body
			valTime(rv.RepliedAt),  // replied_at
			valStr(rv.Title),       // title
			valStr(rv.Version),     // version
		)
	}
	sqlStr := insertReviewsPrefix + strings.Join(values, ",") + insertReviewsOnDup
	_, err := tx.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) LogMiss(ctx context.Context, runID string, src domain.Source, appID, reason string) error {
	_, err := r.db.ExecContext(ctx, insertMissSQL, string(src), appID, runID, reason)
	return err
}
