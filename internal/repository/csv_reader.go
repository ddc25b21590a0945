package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"EpiPulse/internal/domain/models"
	"EpiPulse/pkg/util"
)

// ColumnMap names the CSV columns holding each field. Disease is optional.
type ColumnMap struct {
	Date    string
	Cases   string
	Country string
	Disease string
}

// DefaultColumns matches the OWID layout.
func DefaultColumns() ColumnMap {
	return ColumnMap{Date: "date", Cases: "new_cases", Country: "location"}
}

// ReadOptions control ParseCases.
type ReadOptions struct {
	Columns ColumnMap
	// FixedDisease labels every row when the file has no disease column.
	FixedDisease string
	// Keep, when set, drops rows whose country it rejects before they are
	// materialized.
	Keep func(country string) bool
}

// ParseStats reports rows ParseCases skipped.
type ParseStats struct {
	Rows       int
	BadDates   int
	NaNCases   int
	Filtered   int
	HasDisease bool
}

// ParseCases reads case rows from a CSV stream with a header line. Cases
// that are empty or not numeric become NaN; rows with an unparseable date
// are skipped.
func ParseCases(r io.Reader, opts ReadOptions) ([]models.CasePoint, ParseStats, error) {
	var stats ParseStats

	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, fmt.Errorf("csv: empty input")
		}
		return nil, stats, fmt.Errorf("csv header: %w", err)
	}

	idx, err := resolveColumns(header, opts.Columns)
	if err != nil {
		return nil, stats, err
	}
	stats.HasDisease = idx.disease >= 0 || opts.FixedDisease != ""

	out := make([]models.CasePoint, 0, 1024)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("csv line %d: %w", stats.Rows+2, err)
		}
		stats.Rows++

		country := field(rec, idx.country)
		if opts.Keep != nil && !opts.Keep(country) {
			stats.Filtered++
			continue
		}

		date, err := models.ParseDate(field(rec, idx.date))
		if err != nil {
			stats.BadDates++
			continue
		}

		cases := util.ParseFloatOrNaN(field(rec, idx.cases))
		if math.IsNaN(cases) {
			stats.NaNCases++
		}

		disease := opts.FixedDisease
		if idx.disease >= 0 {
			disease = field(rec, idx.disease)
		}

		out = append(out, models.CasePoint{
			Date:    date,
			Cases:   cases,
			Country: country,
			Disease: disease,
		})
	}
	return out, stats, nil
}

// ParseCountries collects the distinct non-empty countries of a CSV stream.
func ParseCountries(r io.Reader, cols ColumnMap) ([]string, error) {
	seen := make(map[string]struct{})
	_, _, err := ParseCases(r, ReadOptions{
		Columns: cols,
		Keep: func(country string) bool {
			if country != "" {
				seen[country] = struct{}{}
			}
			return false
		},
	})
	if err != nil {
		return nil, err
	}
	return sortedKeys(seen), nil
}

type columnIndex struct {
	date, cases, country, disease int
}

func resolveColumns(header []string, cols ColumnMap) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		// strip a UTF-8 BOM on the first column
		pos[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}

	idx := columnIndex{disease: -1}
	var missing []string
	lookup := func(name string, dst *int) {
		if i, ok := pos[name]; ok {
			*dst = i
			return
		}
		missing = append(missing, name)
	}
	lookup(cols.Date, &idx.date)
	lookup(cols.Cases, &idx.cases)
	lookup(cols.Country, &idx.country)
	if len(missing) > 0 {
		return idx, fmt.Errorf("csv: missing columns %s", strings.Join(missing, ", "))
	}
	if cols.Disease != "" {
		if i, ok := pos[cols.Disease]; ok {
			idx.disease = i
		}
	}
	return idx, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
