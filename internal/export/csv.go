package export

import (
	"bytes"
	"encoding/csv"

	"app_reviews/internal/domain"
)

func writeCSV(src domain.Source, rows []domain.Review) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns(src)); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(record(src, r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
