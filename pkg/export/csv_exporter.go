package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset defines tabular export content. GroupBy names the column rows are
// grouped on; Rows are expected to arrive already ordered by it.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	GroupBy string
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes. A grouped dataset is written with the
// group column first, followed by the remaining headers in order.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	columns := data.csvColumns()
	if len(columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}

	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, columns)
	for _, row := range data.Rows {
		record := make([]string, len(columns))
		for i, column := range columns {
			record[i] = row[column]
		}
		records = append(records, record)
	}

	buf := &bytes.Buffer{}
	if err := csv.NewWriter(buf).WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (d Dataset) csvColumns() []string {
	if d.GroupBy == "" {
		return d.Headers
	}
	return append([]string{d.GroupBy}, d.columns()...)
}
