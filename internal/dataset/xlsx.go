package dataset

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

func isWorkbook(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".xlsx")
}

// readWorkbook reads the first sheet of an Eurostat .xlsx download laid out like the
// SDMX-CSV file: one header row, then one observation per row.
func readWorkbook(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()

	next := func() ([]string, error) {
		for rows.Next() {
			cols, err := rows.Columns()
			if err != nil {
				return nil, err
			}
			if len(cols) == 0 {
				continue
			}
			return cols, nil
		}
		if err := rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return fromRecords(next)
}
