package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"time"
)

// PriceTable is a wide price table: one row per timestamp, one column per
// symbol. Rows are ordered by ascending timestamp. Gap policy (forward-fill
// vs drop) is a DataSource concern; the table only requires rectangular data.
type PriceTable struct {
	Times   []time.Time
	Symbols []string
	// Values[i][j] is the price of Symbols[j] at Times[i].
	Values [][]float64
}

// Len returns the number of rows.
func (t *PriceTable) Len() int { return len(t.Times) }

// Validate checks the table is rectangular and non-empty.
func (t *PriceTable) Validate() error {
	if len(t.Times) == 0 || len(t.Symbols) == 0 {
		return fmt.Errorf("price table is empty")
	}
	if len(t.Values) != len(t.Times) {
		return fmt.Errorf("price table has %d rows for %d timestamps", len(t.Values), len(t.Times))
	}
	for i, row := range t.Values {
		if len(row) != len(t.Symbols) {
			return fmt.Errorf("price table row %d has %d values for %d symbols", i, len(row), len(t.Symbols))
		}
	}
	return nil
}

// Column returns the price series for the given symbol, or false when the
// symbol is not present.
func (t *PriceTable) Column(symbol string) ([]float64, bool) {
	for j, s := range t.Symbols {
		if s != symbol {
			continue
		}
		col := make([]float64, len(t.Values))
		for i, row := range t.Values {
			col[i] = row[j]
		}
		return col, true
	}
	return nil, false
}

// Returns computes per-period simple returns column-wise. The result has one
// fewer row than the price table.
func (t *PriceTable) Returns() [][]float64 {
	if len(t.Values) < 2 {
		return nil
	}
	out := make([][]float64, len(t.Values)-1)
	for i := 1; i < len(t.Values); i++ {
		row := make([]float64, len(t.Symbols))
		for j := range t.Symbols {
			prev := t.Values[i-1][j]
			if prev == 0 {
				row[j] = 0
				continue
			}
			row[j] = t.Values[i][j]/prev - 1
		}
		out[i-1] = row
	}
	return out
}

// LogReturns computes per-period log returns for a single price series.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(prices[i]/prices[i-1]))
	}
	return out
}

// CSV encodes the table with a timestamp column followed by one column per
// symbol.
func (t *PriceTable) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"timestamp"}, t.Symbols...)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i, ts := range t.Times {
		row := make([]string, 0, len(t.Symbols)+1)
		row = append(row, ts.UTC().Format(time.RFC3339))
		for j := range t.Symbols {
			row = append(row, strconv.FormatFloat(t.Values[i][j], 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
