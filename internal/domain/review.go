package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// RawReview is a source-specific record as returned by a collaborator.
type RawReview = map[string]any

// NotAvailable is rendered in place of missing text and invalid timestamps.
const NotAvailable = "N/A"

// DisplayLayout is the single string format for every normalized timestamp.
const DisplayLayout = "2006-01-02 15:04:05"

type Source string

const (
	SourceGoogle Source = "google"
	SourceApple  Source = "apple"
)

func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceGoogle, SourceApple:
		return Source(s), nil
	}
	return "", ErrUnknownSource
}

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case FormatCSV, FormatXLSX:
		return ExportFormat(s), nil
	case "":
		return FormatCSV, nil
	}
	return "", ErrUnknownFormat
}

// Timestamp is a display-zone time that may be missing.
// An invalid Timestamp still renders (as N/A) so the row is never lost.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

func (t Timestamp) String() string {
	if !t.Valid {
		return NotAvailable
	}
	return t.Time.Format(DisplayLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

// Review is the normalized row shared by both sources.
type Review struct {
	Source    Source     `json:"source"`
	SourceID  string     `json:"source_id,omitempty"`
	Author    string     `json:"author"`
	Rating    int        `json:"rating"` // 0 = missing
	WrittenAt Timestamp  `json:"written_at"`
	Body      string     `json:"body"`
	ReplyBody *string    `json:"reply_body,omitempty"`
	RepliedAt *Timestamp `json:"replied_at,omitempty"`
	Title     *string    `json:"title,omitempty"`
	Version   *string    `json:"version,omitempty"`
}

// Key identifies a review within its source: the store id when present,
// otherwise a digest of author, timestamp and body.
func (r Review) Key() string {
	if r.SourceID != "" {
		return string(r.Source) + ":" + r.SourceID
	}
	sig := strings.Join([]string{string(r.Source), r.Author, r.WrittenAt.String(), r.Body}, "|")
	sum := sha1.Sum([]byte(sig))
	return hex.EncodeToString(sum[:])
}
