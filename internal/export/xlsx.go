package export

import (
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"app_reviews/internal/domain"
)

const sheetName = "Reviews"

const (
	minColWidth = 8
	maxColWidth = 80
)

func writeXLSX(src domain.Source, rows []domain.Review) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Error().Err(err).Msg("close xlsx workbook failed")
		}
	}()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	cols := Columns(src)
	widths := make([]int, len(cols))
	if err := setRow(f, 1, toAny(cols), widths, cols); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return nil, err
	}

	for i, r := range rows {
		rec := record(src, r)
		vals := toAny(rec)
		vals[1] = r.Rating // keep rating numeric in the sheet
		if err := setRow(f, i+2, vals, widths, rec); err != nil {
			return nil, err
		}
	}

	for i, w := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetName, name, name, float64(clamp(w+2, minColWidth, maxColWidth))); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// setRow writes one row and widens columns to the display width of text,
// so Hangul and other wide runes get enough room.
func setRow(f *excelize.File, row int, vals []any, widths []int, text []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &vals); err != nil {
		return err
	}
	for i, s := range text {
		if w := runewidth.StringWidth(s); w > widths[i] {
			widths[i] = w
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
