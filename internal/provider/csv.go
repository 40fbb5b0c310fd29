package provider

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"backlab/internal/domain"
)

// LoadCSV reads a price series from a CSV file with the columns
//
//	timestamp,open,high,low,close,volume
//
// A header row is detected and skipped. Timestamps may be RFC 3339 or
// Unix seconds. Rows must already be in ascending timestamp order; the
// caller validates the resulting series before use.
func LoadCSV(path, symbol string, interval domain.Interval) (*domain.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6
	r.TrimLeadingSpace = true

	var bars []domain.Bar
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		line++

		if line == 1 && isHeader(record) {
			continue
		}

		bar, err := parseBarRecord(record)
		if err != nil {
			return nil, &domain.DataIntegrityError{Reason: fmt.Sprintf("%s line %d: %v", path, line, err)}
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return &domain.PriceSeries{Symbol: strings.ToUpper(symbol), Interval: interval, Bars: bars}, nil
}

func isHeader(record []string) bool {
	_, err := strconv.ParseFloat(record[1], 64)
	return err != nil
}

func parseBarRecord(record []string) (domain.Bar, error) {
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return domain.Bar{}, fmt.Errorf("timestamp %q: %w", record[0], err)
	}

	vals := make([]float64, 4)
	for i, name := range []string{"open", "high", "low", "close"} {
		v, err := strconv.ParseFloat(record[i+1], 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("%s %q: %w", name, record[i+1], err)
		}
		vals[i] = v
	}

	volume, err := strconv.ParseInt(record[5], 10, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("volume %q: %w", record[5], err)
	}

	return domain.Bar{
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    volume,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
