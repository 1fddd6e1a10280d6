// Package dataset loads Eurostat SDMX-CSV extracts and filters them down to the
// observations one analysis needs.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Column names required in the input header.
const (
	ColIndicator = "na_item"
	ColUnit      = "unit"
	ColPeriod    = "TIME_PERIOD"
	ColGeo       = "geo"
	ColValue     = "OBS_VALUE"
)

var requiredColumns = []string{ColIndicator, ColUnit, ColPeriod, ColGeo, ColValue}

// Observation is one row of source data. Value is NaN when the source cell is empty
// or not a number.
type Observation struct {
	Indicator string
	Unit      string
	Period    string
	Geo       string
	Value     float64
}

// Missing reports whether the observed value is absent.
func (o Observation) Missing() bool { return math.IsNaN(o.Value) }

// Year parses the time period as a calendar year.
func (o Observation) Year() (int, bool) {
	t, err := time.Parse("2006", strings.TrimSpace(o.Period))
	if err != nil {
		return 0, false
	}
	return t.Year(), true
}

// Table is the fully loaded source file.
type Table struct {
	Name string
	Rows []Observation
	// Columns is the header as read, including columns the analyses ignore.
	Columns []string
	// Malformed counts non-empty OBS_VALUE cells that did not parse as numbers.
	Malformed int
}

// MissingColumnError reports a required column absent from the header.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

// Load reads a delimited file, or the first sheet of an .xlsx workbook, fully into
// memory.
func Load(path string) (*Table, error) {
	if isWorkbook(path) {
		t, err := readWorkbook(path)
		if err != nil {
			return nil, err
		}
		t.Name = filepath.Base(path)
		return t, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	t, err := Read(f, sniffDelimiter(path))
	if err != nil {
		return nil, err
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// Read parses delimited text with a header row. A zero delimiter means comma.
func Read(r io.Reader, delim rune) (*Table, error) {
	if delim == 0 {
		delim = ','
	}
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return fromRecords(cr.Read)
}

// fromRecords builds a table from a record source whose first record is the header.
// next returns io.EOF after the last record.
func fromRecords(next func() ([]string, error)) (*Table, error) {
	header, err := next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &MissingColumnError{Column: requiredColumns[0]}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := &Table{Columns: make([]string, len(header))}
	index := make(map[string]int, len(header))
	for i, h := range header {
		// SDMX-CSV exports may start with a UTF-8 BOM.
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.Columns[i] = name
		index[name] = i
	}
	pos := make([]int, len(requiredColumns))
	for i, name := range requiredColumns {
		idx, ok := index[name]
		if !ok {
			return nil, &MissingColumnError{Column: name}
		}
		pos[i] = idx
	}

	line := 1
	for {
		rec, err := next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++
		field := func(i int) string {
			if pos[i] >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[pos[i]])
		}
		o := Observation{
			Indicator: field(0),
			Unit:      field(1),
			Period:    field(2),
			Geo:       field(3),
			Value:     math.NaN(),
		}
		if raw := field(4); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				o.Value = v
			} else {
				t.Malformed++
			}
		}
		t.Rows = append(t.Rows, o)
	}
	return t, nil
}

func sniffDelimiter(path string) rune {
	name := strings.ToLower(path)
	if strings.HasSuffix(name, ".tsv") {
		return '\t'
	}
	return ','
}
