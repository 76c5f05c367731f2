// Package export serializes normalized reviews into downloadable buffers.
// Nothing here touches the filesystem.
package export

import (
	"bytes"
	"fmt"
	"strconv"

	"app_reviews/internal/domain"
)

// Columns returns the header row for a source.
func Columns(src domain.Source) []string {
	if src == domain.SourceApple {
		return []string{"author", "rating", "written_at", "title", "body", "version"}
	}
	return []string{"author", "rating", "written_at", "body", "reply_body", "replied_at"}
}

// Filename is the download name, e.g. google_reviews.csv.
func Filename(src domain.Source, f domain.ExportFormat) string {
	return fmt.Sprintf("%s_reviews.%s", src, f)
}

// Key names a published export in the export store.
func Key(src domain.Source, appID string, f domain.ExportFormat) string {
	return fmt.Sprintf("exports:%s:%s:%s", src, appID, f)
}

// ContentType is the MIME type served for a format.
func ContentType(f domain.ExportFormat) string {
	if f == domain.FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Export writes rows in format f. The returned reader starts at offset 0
// and rows are only read.
func Export(src domain.Source, rows []domain.Review, f domain.ExportFormat) (*bytes.Reader, error) {
	var (
		b   []byte
		err error
	)
	switch f {
	case domain.FormatCSV:
		b, err = writeCSV(src, rows)
	case domain.FormatXLSX:
		b, err = writeXLSX(src, rows)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownFormat, f)
	}
	if err != nil {
		return nil, fmt.Errorf("export %s %s: %w", src, f, err)
	}
	return bytes.NewReader(b), nil
}

// record flattens one review in Columns order.
func record(src domain.Source, r domain.Review) []string {
	if src == domain.SourceApple {
		return []string{r.Author, strconv.Itoa(r.Rating), r.WrittenAt.String(), optStr(r.Title), r.Body, optStr(r.Version)}
	}
	replied := domain.NotAvailable
	if r.RepliedAt != nil {
		replied = r.RepliedAt.String()
	}
	return []string{r.Author, strconv.Itoa(r.Rating), r.WrittenAt.String(), r.Body, optStr(r.ReplyBody), replied}
}

func optStr(p *string) string {
	if p == nil {
		return domain.NotAvailable
	}
	return *p
}
