package mysql

// Note: `version` is a keyword in some dialects; keep it quoted everywhere.
const insertReviewsPrefix = "INSERT INTO reviews\n  (source, app_id, review_key, run_id, author, rating, written_at, body, reply_body, replied_at, title, `version`)\nVALUES "

const reviewPlaceholders = "(?,?,?,?,?,?,?,?,?,?,?,?)"

// A later run refreshes mutable fields; COALESCE keeps the old value when the
// new one is NULL (e.g. a timestamp that failed to parse this time).
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  run_id     = VALUES(run_id),\n" +
	"  author     = VALUES(author),\n" +
	"  rating     = VALUES(rating),\n" +
	"  written_at = COALESCE(VALUES(written_at), reviews.written_at),\n" +
	"  body       = VALUES(body),\n" +
	"  reply_body = COALESCE(VALUES(reply_body), reviews.reply_body),\n" +
	"  replied_at = COALESCE(VALUES(replied_at), reviews.replied_at),\n" +
	"  title      = COALESCE(VALUES(title), reviews.title),\n" +
	"  `version`  = COALESCE(VALUES(`version`), reviews.`version`),\n" +
	"  updated_at = CURRENT_TIMESTAMP\n"

const insertMissSQL = `
INSERT INTO ingest_misses (source, app_id, run_id, reason)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  run_id  = VALUES(run_id),
  reason  = VALUES(reason),
  seen_at = CURRENT_TIMESTAMP
`
