// Package export writes analysis tables to an Excel workbook.
package export

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/gdpscope-cli/internal/analysis"
	"github.com/KaramelBytes/gdpscope-cli/internal/dataset"
	"github.com/KaramelBytes/gdpscope-cli/internal/panel"
	"github.com/KaramelBytes/gdpscope-cli/internal/utils"
	"github.com/xuri/excelize/v2"
)

// Sheet names, in workbook order.
const (
	SheetPanel  = "Panel"
	SheetTop    = "Top"
	SheetTrend  = "Trend"
	SheetCorr   = "Correlation"
	sheetFirst  = "Sheet1"
	columnWidth = 14
)

// Workbook is the set of tables exported together. Nil or empty parts are skipped.
type Workbook struct {
	Panel    *panel.Panel
	Top      []dataset.Row
	TopYear  int
	TrendGeo string
	Trend    *analysis.Trend
	Growth   []analysis.GrowthPoint
	Corr     *analysis.CorrMatrix
}

// WriteXLSX saves the workbook to path.
func WriteXLSX(path string, wb Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	var sheets []string
	if wb.Panel != nil && wb.Panel.Cols() > 0 {
		sheets = append(sheets, SheetPanel)
	}
	if len(wb.Top) > 0 {
		sheets = append(sheets, SheetTop)
	}
	if wb.Trend != nil || len(wb.Growth) > 0 {
		sheets = append(sheets, SheetTrend)
	}
	if wb.Corr != nil && len(wb.Corr.Columns) > 0 {
		sheets = append(sheets, SheetCorr)
	}
	if len(sheets) == 0 {
		return fmt.Errorf("export: no tables to write")
	}
	if err := f.SetSheetName(sheetFirst, sheets[0]); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, s := range sheets[1:] {
		if _, err := f.NewSheet(s); err != nil {
			return fmt.Errorf("new sheet %s: %w", s, err)
		}
	}

	for _, s := range sheets {
		var err error
		switch s {
		case SheetPanel:
			err = writePanel(f, wb.Panel)
		case SheetTop:
			err = writeTop(f, wb.Top, wb.TopYear)
		case SheetTrend:
			err = writeTrend(f, wb.TrendGeo, wb.Trend, wb.Growth)
		case SheetCorr:
			err = writeCorr(f, wb.Corr)
		}
		if err != nil {
			return fmt.Errorf("sheet %s: %w", s, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

// cellValue keeps undefined numbers as empty cells; Excel has no NaN.
func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func widen(f *excelize.File, sheet string, cols int) error {
	last, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, columnWidth)
}

func writePanel(f *excelize.File, p *panel.Panel) error {
	header := []interface{}{"Year"}
	for _, g := range p.Geos {
		header = append(header, g)
	}
	if err := setRow(f, SheetPanel, 1, header); err != nil {
		return err
	}
	for i, y := range p.Years {
		row := []interface{}{y}
		for _, v := range p.Values[i] {
			row = append(row, cellValue(v))
		}
		if err := setRow(f, SheetPanel, i+2, row); err != nil {
			return err
		}
	}
	return widen(f, SheetPanel, len(header))
}

func writeTop(f *excelize.File, top []dataset.Row, year int) error {
	if err := setRow(f, SheetTop, 1, []interface{}{"Rank", "Geo", fmt.Sprintf("GDP %d", year)}); err != nil {
		return err
	}
	for i, r := range top {
		if err := setRow(f, SheetTop, i+2, []interface{}{i + 1, r.Geo, cellValue(r.Value)}); err != nil {
			return err
		}
	}
	return widen(f, SheetTop, 3)
}

func writeTrend(f *excelize.File, geo string, t *analysis.Trend, growth []analysis.GrowthPoint) error {
	row := 1
	if t != nil {
		stats := [][]interface{}{
			{"Geo", geo},
			{"Slope", cellValue(t.Slope)},
			{"Intercept", cellValue(t.Intercept)},
			{"r", cellValue(t.R)},
			{"R²", cellValue(t.R2)},
			{"p-value", cellValue(t.PValue)},
			{"Slope stderr", cellValue(t.StdErr)},
			{"Intercept stderr", cellValue(t.InterceptError)},
			{"n", t.N},
		}
		for _, s := range stats {
			if err := setRow(f, SheetTrend, row, s); err != nil {
				return err
			}
			row++
		}
		row++
	}
	if len(growth) > 0 {
		if err := setRow(f, SheetTrend, row, []interface{}{"Year", "GDP", "Growth %", "Fitted"}); err != nil {
			return err
		}
		row++
		for _, g := range growth {
			vals := []interface{}{g.Year, cellValue(g.Value), cellValue(g.GrowthPct)}
			if t != nil {
				vals = append(vals, cellValue(t.At(g.Year)))
			}
			if err := setRow(f, SheetTrend, row, vals); err != nil {
				return err
			}
			row++
		}
	}
	return widen(f, SheetTrend, 4)
}

func writeCorr(f *excelize.File, m *analysis.CorrMatrix) error {
	header := []interface{}{""}
	for _, c := range m.Columns {
		header = append(header, c)
	}
	if err := setRow(f, SheetCorr, 1, header); err != nil {
		return err
	}
	for i, c := range m.Columns {
		row := []interface{}{c}
		for _, v := range m.Values[i] {
			row = append(row, cellValue(v))
		}
		if err := setRow(f, SheetCorr, i+2, row); err != nil {
			return err
		}
	}
	return widen(f, SheetCorr, len(header))
}
