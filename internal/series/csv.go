// Package series loads and describes the observed price history.
package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// maxReportedErrors bounds LoadReport.Errors; Skipped keeps the full count.
const maxReportedErrors = 20

// LoadReport summarizes a CSV load.
type LoadReport struct {
	Rows    int
	Skipped int
	Errors  []*ParseError
}

func (r *LoadReport) skip(err *ParseError) {
	r.Skipped++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, err)
	}
}

// LoadCSV loads a price history from a CSV file.
func LoadCSV(filename string) (Series, LoadReport, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ReadCSV(file)
}

// ReadCSV reads (timestamp, price) rows. The first row is a header and is
// skipped. Rows with an unparsable timestamp or a missing, non-numeric,
// negative or non-finite price are skipped and reported, never fatal.
// The result is ordered by timestamp.
func ReadCSV(r io.Reader) (Series, LoadReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		out    Series
		report LoadReport
		row    int
	)
	for ; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				report.skip(&ParseError{Row: row, Column: csvErr.Column, Err: csvErr.Err})
				continue
			}
			return nil, report, fmt.Errorf("failed to read csv: %w", err)
		}
		if row == 0 {
			continue
		}
		report.Rows++

		if len(record) < 2 {
			report.skip(&ParseError{Row: row, Column: len(record), Err: errMissingColumn})
			continue
		}

		ts, err := ParseTime(record[0])
		if err != nil {
			report.skip(&ParseError{Row: row, Column: 0, Value: record[0], Err: err})
			continue
		}

		price, err := parsePrice(record[1])
		if err != nil {
			report.skip(&ParseError{Row: row, Column: 1, Value: record[1], Err: err})
			continue
		}

		out = append(out, Point{Time: ts, Value: price})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out, report, nil
}

func parsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errBadPrice
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, errBadPrice
	}
	return v, nil
}
