package csvstore

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gridsage/gridsage/internal/domain/energy"
)

// CSV layouts of the upstream exporter. Row anomalies are coerced to null
// columns, never raised: queries skip nulls when summing.
const (
	timestampLayout = "01/02/06 15:04"
	dateLayout      = "01/02/06"
)

// Interval export header names.
const (
	colDate      = "DATE"
	colStartTime = "START TIME"
	colEndTime   = "END TIME"
	colStartDate = "START DATE"
	colEndDate   = "END DATE"
	colUsage     = "USAGE (kWh)"
	colCost      = "COST"
)

// rows is a header-indexed CSV table.
type rows struct {
	index   map[string]int
	records [][]string
}

// readCSV parses one file into a header-indexed table.
func readCSV(path string) (*rows, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the configured data directory
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows become null columns, not errors
	r.TrimLeadingSpace = true

	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	index := make(map[string]int, len(all[0]))
	for i, name := range all[0] {
		index[strings.TrimSpace(name)] = i
	}
	return &rows{index: index, records: all[1:]}, nil
}

// field returns the named column of a record, or ok=false when the column is
// absent from the header or the row is too short.
func (t *rows) field(record []string, name string) (string, bool) {
	i, ok := t.index[name]
	if !ok || i >= len(record) {
		return "", false
	}
	return record[i], true
}

// parseIntervalRows converts a table into interval records, coercing
// per-column anomalies to nulls.
func parseIntervalRows(t *rows) []energy.IntervalRecord {
	out := make([]energy.IntervalRecord, 0, len(t.records))
	for _, rec := range t.records {
		var r energy.IntervalRecord

		date, hasDate := t.field(rec, colDate)
		if start, ok := t.field(rec, colStartTime); ok && hasDate {
			if end, ok := t.field(rec, colEndTime); ok {
				startTS, startErr := parseTimestamp(date, start)
				endTS, endErr := parseTimestamp(date, end)
				if startErr == nil && endErr == nil && endTS.After(startTS) {
					r.StartTS, r.EndTS, r.HasTimes = startTS, endTS, true
				}
			}
		}

		if v, ok := t.field(rec, colUsage); ok {
			if f, err := parseNumber(v); err == nil {
				r.UsageKWh, r.HasUsage = f, true
			}
		}
		if v, ok := t.field(rec, colCost); ok {
			if f, err := parseNumber(v); err == nil {
				r.Cost, r.HasCost = f, true
			}
		}

		out = append(out, r)
	}
	return out
}

// parseBillRows converts a table into billing periods, coercing per-column
// anomalies to nulls.
func parseBillRows(t *rows) []energy.BillingPeriod {
	out := make([]energy.BillingPeriod, 0, len(t.records))
	for _, rec := range t.records {
		var b energy.BillingPeriod

		if start, ok := t.field(rec, colStartDate); ok {
			if end, ok := t.field(rec, colEndDate); ok {
				startD, startErr := time.Parse(dateLayout, strings.TrimSpace(start))
				endD, endErr := time.Parse(dateLayout, strings.TrimSpace(end))
				if startErr == nil && endErr == nil && !endD.Before(startD) {
					b.StartDate, b.EndDate, b.HasDates = startD, endD, true
				}
			}
		}

		if v, ok := t.field(rec, colUsage); ok {
			if f, err := parseNumber(v); err == nil {
				b.UsageKWh, b.HasUsage = f, true
			}
		}
		if v, ok := t.field(rec, colCost); ok {
			if f, err := parseNumber(v); err == nil {
				b.Cost, b.HasCost = f, true
			}
		}

		out = append(out, b)
	}
	return out
}

// parseTimestamp combines a date field and a time field into one timestamp
// using the exporter's fixed layout.
func parseTimestamp(date, clock string) (time.Time, error) {
	return time.Parse(timestampLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock))
}

// parseNumber strips currency symbols, thousands separators, and spaces
// before parsing as floating point.
func parseNumber(s string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ':
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return 0, fmt.Errorf("empty numeric field")
	}
	return strconv.ParseFloat(cleaned, 64)
}
